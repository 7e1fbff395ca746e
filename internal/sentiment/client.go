package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rewired-gh/sentimentdash/internal/fetcher"
	"github.com/rewired-gh/sentimentdash/internal/models"
)

// TimestampLayout is the format of the iterations endpoint's timestamp parameter.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// DateLayout is the format of range query dates.
const DateLayout = "2006-01-02"

// ErrNoData is returned when the backend has no tweets for the request.
var ErrNoData = errors.New("no sentiment data")

// ErrUnknownEndpoint is returned for endpoints the client has no route for.
var ErrUnknownEndpoint = errors.New("unknown endpoint")

var paths = map[models.Endpoint]string{
	models.EndpointAll:        "/get_weighted_sentiment_all",
	models.EndpointDaily:      "/get_sentiment_by_day",
	models.EndpointWeekly:     "/get_sentiment_by_week",
	models.EndpointHourly:     "/get_sentiment_by_hour",
	models.EndpointFiveMin:    "/get_sentiment_by_5min",
	models.EndpointIterations: "/get_sentiment_iterations",
}

// Client provides access to the sentiment backend API
type Client struct {
	baseURL string
	fetcher *fetcher.Fetcher
}

// NewClient creates a new sentiment backend client
func NewClient(baseURL string, f *fetcher.Fetcher) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: f,
	}
}

// EndpointURL builds the request URL for an endpoint. The iterations endpoint
// is parameterized by now.
func (c *Client) EndpointURL(e models.Endpoint, now time.Time) (string, error) {
	path, ok := paths[e]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEndpoint, e)
	}
	u := c.baseURL + path
	if e == models.EndpointIterations {
		q := url.Values{}
		q.Set("timestamp", now.UTC().Format(TimestampLayout))
		u += "?" + q.Encode()
	}
	return u, nil
}

// Fetch retrieves and validates one endpoint. A schema mismatch is reported
// as models.ErrInvalidPayload.
func (c *Client) Fetch(ctx context.Context, e models.Endpoint, now time.Time) (models.FetchOutcome, error) {
	u, err := c.EndpointURL(e, now)
	if err != nil {
		return models.FetchOutcome{}, err
	}

	body, err := c.fetcher.FetchJSON(ctx, u)
	if err != nil {
		return models.FetchOutcome{}, fmt.Errorf("failed to fetch %s: %w", e, noData(err))
	}

	out := models.FetchOutcome{Name: e, Status: models.StatusSuccess}
	if e.IsSeries() {
		series, err := models.DecodeSeries(body)
		if err != nil {
			return models.FetchOutcome{}, fmt.Errorf("failed to decode %s: %w", e, err)
		}
		out.Series = series
		return out, nil
	}

	sample, err := models.DecodeSample(body)
	if err != nil {
		return models.FetchOutcome{}, fmt.Errorf("failed to decode %s: %w", e, err)
	}
	out.Overall = &sample
	return out, nil
}

// FetchRange retrieves the aggregate sample for tweets between start and end.
func (c *Client) FetchRange(ctx context.Context, start, end time.Time) (models.SentimentSample, error) {
	q := url.Values{}
	q.Set("start", start.Format(DateLayout))
	q.Set("end", end.Format(DateLayout))

	body, err := c.fetcher.FetchJSON(ctx, c.baseURL+"/get_sentiment_range?"+q.Encode())
	if err != nil {
		return models.SentimentSample{}, fmt.Errorf("failed to fetch range: %w", noData(err))
	}

	sample, err := models.DecodeSample(body)
	if err != nil {
		return models.SentimentSample{}, fmt.Errorf("failed to decode range: %w", err)
	}
	return sample, nil
}

// FetchTopUsers retrieves the users with the most total likes.
func (c *Client) FetchTopUsers(ctx context.Context) ([]models.UserLikes, error) {
	body, err := c.fetcher.FetchJSON(ctx, c.baseURL+"/get_top_users_by_likes")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch top users: %w", noData(err))
	}

	var users []models.UserLikes
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("failed to decode top users: %w", err)
	}
	return users, nil
}

// FetchTopTweets retrieves the most retweeted tweets.
func (c *Client) FetchTopTweets(ctx context.Context) ([]models.Tweet, error) {
	body, err := c.fetcher.FetchJSON(ctx, c.baseURL+"/get_top_tweets_by_retweets")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch top tweets: %w", noData(err))
	}

	var tweets []models.Tweet
	if err := json.Unmarshal(body, &tweets); err != nil {
		return nil, fmt.Errorf("failed to decode top tweets: %w", err)
	}
	return tweets, nil
}

// noData maps a 404 from the backend onto ErrNoData, keeping the original error.
func noData(err error) error {
	var statusErr *fetcher.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return errors.Join(ErrNoData, err)
	}
	return err
}
