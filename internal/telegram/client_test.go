package telegram

import (
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/sentimentdash/internal/aggregator"
	"github.com/rewired-gh/sentimentdash/internal/models"
)

type fakeBot struct {
	sent  []string
	fails int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.fails > 0 {
		f.fails--
		return tgbotapi.Message{}, errors.New("telegram: Too Many Requests")
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig).Text)
	return tgbotapi.Message{}, nil
}

type fakeDashboard struct {
	state     aggregator.State
	triggered int
}

func (f *fakeDashboard) Snapshot() aggregator.State { return f.state }
func (f *fakeDashboard) Trigger()                   { f.triggered++ }

func testClient(t *testing.T, bot *fakeBot) (*Client, *[]time.Duration) {
	t.Helper()
	c, err := newClient(bot, "42", 3, time.Second)
	if err != nil {
		t.Fatalf("newClient failed: %v", err)
	}
	var sleeps []time.Duration
	c.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	c.now = func() time.Time { return time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC) }
	return c, &sleeps
}

func TestNewClient_InvalidChatID(t *testing.T) {
	if _, err := newClient(&fakeBot{}, "not-a-number", 3, time.Second); err == nil {
		t.Error("Expected error for invalid chat ID")
	}
}

func TestSend_RetriesLinearly(t *testing.T) {
	bot := &fakeBot{fails: 2}
	c, sleeps := testClient(t, bot)

	if err := c.SendRecovery(3); err != nil {
		t.Fatalf("SendRecovery failed: %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("Expected 1 delivered message, got %d", len(bot.sent))
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*sleeps) != len(want) || (*sleeps)[0] != want[0] || (*sleeps)[1] != want[1] {
		t.Errorf("Expected sleeps %v, got %v", want, *sleeps)
	}
}

func TestSend_GivesUp(t *testing.T) {
	bot := &fakeBot{fails: 5}
	c, sleeps := testClient(t, bot)

	err := c.SendDegraded(models.SyntheticFull, nil)
	if err == nil || !strings.Contains(err.Error(), "after 3 retries") {
		t.Fatalf("Expected retry exhaustion error, got %v", err)
	}
	if len(*sleeps) != 2 {
		t.Errorf("Expected no sleep after the last attempt, got %v", *sleeps)
	}
}

func TestFormatDegraded(t *testing.T) {
	msg := formatDegraded(models.SyntheticPartial,
		[]models.Endpoint{models.EndpointWeekly, models.EndpointFiveMin},
		time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC))

	for _, want := range []string{"*Sentiment dashboard degraded*", "2025\\-01\\-06 10:30:00", "Mode: *partial*", "Synthetic: weekly, fiveMin"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected message to contain %q, got:\n%s", want, msg)
		}
	}
}

func TestFormatRecovery(t *testing.T) {
	at := time.Date(2025, 1, 6, 10, 30, 0, 0, time.UTC)
	if msg := formatRecovery(1, at); !strings.Contains(msg, "after 1 degraded cycle\n") {
		t.Errorf("Unexpected singular message:\n%s", msg)
	}
	if msg := formatRecovery(1200, at); !strings.Contains(msg, "after 1,200 degraded cycles") {
		t.Errorf("Unexpected plural message:\n%s", msg)
	}
}

func TestFormatInsights(t *testing.T) {
	overall := &models.SentimentSample{
		NormalizedScore: 58.7,
		TotalTweets:     15420,
		Distribution:    models.Distribution{Positive: 0.42, Neutral: 0.38, Negative: 0.2},
	}
	insights := []models.Insight{{ID: 1, Title: "Sentiment Trend", Description: "Sentiment has improved by 7.3% compared to the previous period."}}

	msg := formatInsights(overall, insights)
	for _, want := range []string{
		"Score: *58\\.7* \\(Positive\\)",
		"Tweets: 15,420",
		"42% positive, 38% neutral, 20% negative",
		"1\\. *Sentiment Trend*",
		"improved by 7\\.3% compared",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected message to contain %q, got:\n%s", want, msg)
		}
	}
}

func TestHandleCommand(t *testing.T) {
	bot := &fakeBot{}
	c, _ := testClient(t, bot)
	pct := 2.5
	dash := &fakeDashboard{state: aggregator.State{
		Status:  aggregator.StatusReady,
		Mode:    models.SyntheticNone,
		Overall: &models.SentimentSample{NormalizedScore: 72, TotalTweets: 900},
		Trend:   &aggregator.Trend{Direction: aggregator.TrendUp, Percent: &pct},
	}}

	command := func(chatID int64, text string) *tgbotapi.Message {
		return &tgbotapi.Message{
			Chat:     &tgbotapi.Chat{ID: chatID},
			Text:     text,
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(strings.Fields(text)[0])}},
		}
	}

	c.handleCommand(command(42, "/status"), dash)
	c.handleCommand(command(42, "/refresh"), dash)
	c.handleCommand(command(7, "/refresh"), dash) // other chats are ignored

	if len(bot.sent) != 2 {
		t.Fatalf("Expected 2 replies, got %d", len(bot.sent))
	}
	if !strings.Contains(bot.sent[0], "*Status:* ready") || !strings.Contains(bot.sent[0], "Trend: up \\+2\\.5%") {
		t.Errorf("Unexpected status reply:\n%s", bot.sent[0])
	}
	if dash.triggered != 1 {
		t.Errorf("Expected 1 trigger, got %d", dash.triggered)
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"58.7", "58\\.7"},
		{"(a-b)!", "\\(a\\-b\\)\\!"},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeMarkdownV2(tt.in); got != tt.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, expected %q", tt.in, got, tt.want)
		}
	}
}
