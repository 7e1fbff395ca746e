// Package telegram sends dashboard notifications through the Telegram Bot API
// and answers a small set of bot commands.
//
// Messages use MarkdownV2; every dynamic value is escaped before it is
// interpolated. Sends are retried with a linear delay.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/sentimentdash/internal/aggregator"
	"github.com/rewired-gh/sentimentdash/internal/analytics"
	"github.com/rewired-gh/sentimentdash/internal/logger"
	"github.com/rewired-gh/sentimentdash/internal/models"
)

// sender is the subset of *tgbotapi.BotAPI used for delivery.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Dashboard is what bot commands read and trigger. *aggregator.Aggregator
// implements it.
type Dashboard interface {
	Snapshot() aggregator.State
	Trigger()
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	api            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	sleep          func(time.Duration)
	now            func() time.Time
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	c, err := newClient(bot, chatID, maxRetries, retryDelayBase)
	if err != nil {
		return nil, err
	}
	c.api = bot
	return c, nil
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		sleep:          time.Sleep,
		now:            time.Now,
	}, nil
}

// SendDegraded reports that the dashboard is showing synthetic data.
func (c *Client) SendDegraded(mode models.SyntheticMode, endpoints []models.Endpoint) error {
	return c.send(formatDegraded(mode, endpoints, c.now()))
}

// SendRecovery reports that every endpoint is live again.
func (c *Client) SendRecovery(degradedCycles int) error {
	return c.send(formatRecovery(degradedCycles, c.now()))
}

// SendInsights posts the overall score with the current insights.
func (c *Client) SendInsights(overall *models.SentimentSample, insights []models.Insight) error {
	return c.send(formatInsights(overall, insights))
}

func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i < c.maxRetries-1 {
			c.sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// ListenForCommands answers /status and /refresh from the configured chat
// until ctx is cancelled. It returns immediately for clients without a live bot.
func (c *Client) ListenForCommands(ctx context.Context, dash Dashboard) {
	if c.api == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := c.api.GetUpdatesChan(u)

	go func() {
		defer c.api.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil {
					c.handleCommand(update.Message, dash)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message, dash Dashboard) {
	if msg.Chat == nil || msg.Chat.ID != c.chatID || !msg.IsCommand() {
		return
	}

	var reply string
	switch msg.Command() {
	case "status":
		reply = formatStatus(dash.Snapshot())
	case "refresh":
		dash.Trigger()
		reply = "🔄 Refresh scheduled"
	default:
		reply = escapeMarkdownV2("Commands: /status, /refresh")
	}

	if err := c.send(reply); err != nil {
		logger.Warn("Failed to answer /%s: %v", msg.Command(), err)
	}
}

func formatDegraded(mode models.SyntheticMode, endpoints []models.Endpoint, at time.Time) string {
	names := make([]string, len(endpoints))
	for i, e := range endpoints {
		names[i] = string(e)
	}

	var b strings.Builder
	b.WriteString("⚠️ *Sentiment dashboard degraded*\n\n")
	fmt.Fprintf(&b, "📅 %s\n", escapeMarkdownV2(at.UTC().Format("2006-01-02 15:04:05")))
	fmt.Fprintf(&b, "Mode: *%s*\n", escapeMarkdownV2(string(mode)))
	if len(names) > 0 {
		fmt.Fprintf(&b, "Synthetic: %s\n", escapeMarkdownV2(strings.Join(names, ", ")))
	}
	return b.String()
}

func formatRecovery(degradedCycles int, at time.Time) string {
	cycles := "cycle"
	if degradedCycles != 1 {
		cycles = "cycles"
	}
	return fmt.Sprintf("✅ *Sentiment backend recovered*\n\n📅 %s\nLive data restored after %s degraded %s\n",
		escapeMarkdownV2(at.UTC().Format("2006-01-02 15:04:05")),
		escapeMarkdownV2(humanize.Comma(int64(degradedCycles))),
		cycles)
}

func formatInsights(overall *models.SentimentSample, insights []models.Insight) string {
	var b strings.Builder
	b.WriteString("📊 *Sentiment update*\n\n")
	if overall != nil {
		writeOverall(&b, overall)
	}
	for i, in := range insights {
		fmt.Fprintf(&b, "\n%d\\. *%s*\n   %s\n", i+1, escapeMarkdownV2(in.Title), escapeMarkdownV2(in.Description))
	}
	return b.String()
}

func formatStatus(s aggregator.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Status:* %s\n", escapeMarkdownV2(string(s.Status)))
	if s.Status == aggregator.StatusLoading {
		return b.String()
	}
	fmt.Fprintf(&b, "*Mode:* %s\n", escapeMarkdownV2(string(s.Mode)))
	if s.Overall != nil {
		writeOverall(&b, s.Overall)
	}
	if s.Trend != nil && s.Trend.Percent != nil {
		fmt.Fprintf(&b, "Trend: %s %s\n", escapeMarkdownV2(string(s.Trend.Direction)),
			escapeMarkdownV2(fmt.Sprintf("%+.1f%%", *s.Trend.Percent)))
	}
	if !s.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "Updated %s\n", escapeMarkdownV2(humanize.Time(s.UpdatedAt)))
	}
	return b.String()
}

func writeOverall(b *strings.Builder, o *models.SentimentSample) {
	fmt.Fprintf(b, "Score: *%s* \\(%s\\)\n",
		escapeMarkdownV2(fmt.Sprintf("%.1f", o.NormalizedScore)),
		escapeMarkdownV2(analytics.Label(o.NormalizedScore)))
	fmt.Fprintf(b, "Tweets: %s\n", escapeMarkdownV2(humanize.Comma(int64(o.TotalTweets))))
	fmt.Fprintf(b, "Mix: %s\n", escapeMarkdownV2(fmt.Sprintf("%.0f%% positive, %.0f%% neutral, %.0f%% negative",
		o.Distribution.Positive*100, o.Distribution.Neutral*100, o.Distribution.Negative*100)))
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
