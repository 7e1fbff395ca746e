package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/rewired-gh/sentimentdash/internal/aggregator"
	"github.com/rewired-gh/sentimentdash/internal/analytics"
	"github.com/rewired-gh/sentimentdash/internal/models"
	"github.com/rewired-gh/sentimentdash/internal/sentiment"
)

const rule = 72

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("-", rule))
}

func printHeader(w io.Writer, backend string, s aggregator.State) {
	fmt.Fprintln(w, strings.Repeat("=", rule))
	fmt.Fprintf(w, "SENTIMENT REPORT  %s\n", s.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintln(w, strings.Repeat("=", rule))
	fmt.Fprintf(w, "Backend: %s\n", backend)
	fmt.Fprintf(w, "Status:  %s (synthetic: %s)\n", s.Status, s.Mode)
}

// printProvenance lists every endpoint with its data source and bucket count.
func printProvenance(w io.Writer, s aggregator.State) {
	section(w, "DATA SOURCES")
	fallback := make(map[models.Endpoint]bool, len(s.FallbackEndpoints))
	for _, e := range s.FallbackEndpoints {
		fallback[e] = true
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENDPOINT\tSOURCE\tBUCKETS")
	for _, e := range models.Endpoints() {
		source := "live"
		if fallback[e] {
			source = "synthetic"
		}
		buckets := "-"
		if e.IsSeries() {
			buckets = humanize.Comma(int64(len(s.Buckets[e])))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e, source, buckets)
	}
	_ = tw.Flush()
}

func printOverall(w io.Writer, s aggregator.State) {
	section(w, "OVERALL")
	o := s.Overall
	if o == nil {
		fmt.Fprintln(w, "  no overall sample")
		return
	}
	fmt.Fprintf(w, "  Score:    %.1f / 100 (%s)\n", o.NormalizedScore, analytics.Label(o.NormalizedScore))
	fmt.Fprintf(w, "  Raw:      %+.2f\n", o.RawScore)
	fmt.Fprintf(w, "  Tweets:   %s\n", humanize.Comma(int64(o.TotalTweets)))
	fmt.Fprintf(w, "  Mix:      %.0f%% positive / %.0f%% neutral / %.0f%% negative\n",
		o.Distribution.Positive*100, o.Distribution.Neutral*100, o.Distribution.Negative*100)
}

func printMetrics(w io.Writer, m *models.DerivedMetrics) {
	section(w, "LAST 7 DAYS")
	if m == nil {
		fmt.Fprintln(w, "  no daily data")
		return
	}
	fmt.Fprintf(w, "  Avg sentiment:   %.1f (%+.1f%% vs previous 7)\n", m.AvgSentiment, m.SentimentChange)
	fmt.Fprintf(w, "  Tweets:          %s (%+.1f%% vs previous 7)\n", humanize.Comma(int64(m.TotalTweets)), m.VolumeChange)
	fmt.Fprintf(w, "  Volatility:      %.2f\n", m.Volatility)
	if m.MostPositiveDay != nil {
		fmt.Fprintf(w, "  Most positive:   %s (%.1f)\n", m.MostPositiveDay.Key, m.MostPositiveDay.Sentiment)
	}
	if m.MostNegativeDay != nil {
		fmt.Fprintf(w, "  Most negative:   %s (%.1f)\n", m.MostNegativeDay.Key, m.MostNegativeDay.Sentiment)
	}
}

func printInsights(w io.Writer, insights []models.Insight) {
	section(w, "INSIGHTS")
	if len(insights) == 0 {
		fmt.Fprintln(w, "  nothing notable")
		return
	}
	for _, in := range insights {
		fmt.Fprintf(w, "  [%s] %s\n      %s\n", in.Type, in.Title, in.Description)
	}
}

func printRankings(ctx context.Context, w io.Writer, client *sentiment.Client) {
	section(w, "TOP USERS BY LIKES")
	users, err := client.FetchTopUsers(ctx)
	if err != nil {
		fmt.Fprintf(w, "  unavailable: %v\n", err)
	} else {
		for i, u := range users {
			fmt.Fprintf(w, "  %2d. %-24s %s\n", i+1, u.User, humanize.Comma(u.TotalLikes))
		}
	}

	section(w, "TOP TWEETS BY RETWEETS")
	tweets, err := client.FetchTopTweets(ctx)
	if err != nil {
		fmt.Fprintf(w, "  unavailable: %v\n", err)
		return
	}
	for i, t := range tweets {
		fmt.Fprintf(w, "  %2d. %s retweets  @%s: %s\n", i+1,
			humanize.Comma(int64(t.Retweets)), t.User, truncate(t.Text, 60))
	}
}

func truncate(s string, n int) string {
	r := []rune(strings.ReplaceAll(s, "\n", " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
