package models

// Endpoint names one backend call and the dashboard bucket it feeds.
type Endpoint string

const (
	EndpointAll        Endpoint = "all"
	EndpointDaily      Endpoint = "daily"
	EndpointWeekly     Endpoint = "weekly"
	EndpointHourly     Endpoint = "hourly"
	EndpointFiveMin    Endpoint = "fiveMin"
	EndpointIterations Endpoint = "iterations"
)

// Endpoints returns the fixed set of endpoints refreshed on every cycle, in
// display order.
func Endpoints() []Endpoint {
	return []Endpoint{
		EndpointAll,
		EndpointDaily,
		EndpointWeekly,
		EndpointHourly,
		EndpointFiveMin,
		EndpointIterations,
	}
}

// IsSeries reports whether the endpoint returns a timestamp-keyed series
// rather than a single sample.
func (e Endpoint) IsSeries() bool {
	return e != EndpointAll
}

// FetchStatus is the provenance of one endpoint's data within a cycle.
type FetchStatus string

const (
	StatusSuccess      FetchStatus = "success"
	StatusUsedFallback FetchStatus = "usedFallback"
)

// FetchOutcome is the settled result of one endpoint call in a refresh cycle.
// Exactly one of Overall (EndpointAll) or Series (all others) is set.
// Outcomes live for one cycle and are discarded once merged into state.
type FetchOutcome struct {
	Name    Endpoint         `json:"name"`
	Status  FetchStatus      `json:"status"`
	Overall *SentimentSample `json:"overall,omitempty"`
	Series  Series           `json:"series,omitempty"`
	Err     error            `json:"-"`
}

// UsedFallback reports whether the outcome carries synthetic data.
func (o FetchOutcome) UsedFallback() bool {
	return o.Status == StatusUsedFallback
}
