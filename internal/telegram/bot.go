package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/ingestion"
	"github.com/jonathan/deal-tracker/internal/observability"
	"go.uber.org/zap"
)

const (
	pollTimeout = 50 * time.Second
	maxBackoff  = time.Minute
)

const helpText = `Defense Deal Tracker bot

Forward me articles or send URLs to add them to the triage queue.

Commands:
/status - View queue stats
/help - Show this message`

// API is the Bot API surface the bot needs.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Submitter queues URLs found in a message.
type Submitter interface {
	IngestMessage(ctx context.Context, text, origin string, max int) (*ingestion.Report, error)
}

// StatsSource reports queue counts.
type StatsSource interface {
	QueueStats(ctx context.Context) (*db.QueueStats, error)
}

// Bot turns chat messages into ingestion submissions.
type Bot struct {
	api     API
	submit  Submitter
	stats   StatsSource
	allowed map[int64]bool
	maxURLs int
	logger  *zap.Logger
}

// NewBot creates a Bot. An empty allowlist admits every user.
func NewBot(api API, submit Submitter, stats StatsSource, allowed []int64, maxURLs int, logger *zap.Logger) *Bot {
	if maxURLs <= 0 {
		maxURLs = ingestion.DefaultMaxURLs
	}
	b := &Bot{
		api:     api,
		submit:  submit,
		stats:   stats,
		allowed: make(map[int64]bool, len(allowed)),
		maxURLs: maxURLs,
		logger:  observability.OrNop(logger),
	}
	for _, id := range allowed {
		b.allowed[id] = true
	}
	return b
}

// ParseAllowedUsers parses a comma-separated list of user ids.
func ParseAllowedUsers(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram user id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (b *Bot) authorized(u *User) bool {
	if len(b.allowed) == 0 {
		return true
	}
	return u != nil && b.allowed[u.ID]
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	var offset int64
	backoff := time.Second

	b.logger.Info("telegram bot polling")
	for {
		updates, err := b.api.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Warn("failed to get updates", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil {
				continue
			}
			reply := b.HandleMessage(ctx, u.Message)
			if reply == "" {
				continue
			}
			if err := b.api.SendMessage(ctx, u.Message.Chat.ID, reply); err != nil {
				b.logger.Warn("failed to send reply", zap.Int64("chat_id", u.Message.Chat.ID), zap.Error(err))
			}
		}
	}
}

// HandleMessage processes one message and returns the reply text.
func (b *Bot) HandleMessage(ctx context.Context, m *Message) string {
	if !b.authorized(m.From) {
		return "Unauthorized. Contact the admin to get access."
	}

	switch command(m.Text) {
	case "/start", "/help":
		return helpText
	case "/status":
		return b.statusReply(ctx)
	}

	text := messageURLText(m)
	if len(ingestion.ExtractURLs(text, b.maxURLs)) == 0 {
		return "No URLs found in message. Forward an article or send a URL directly."
	}

	origin := "telegram"
	if m.From != nil && m.From.Username != "" {
		origin = "telegram:" + m.From.Username
	}
	report, err := b.submit.IngestMessage(ctx, text, origin, b.maxURLs)
	if err != nil {
		b.logger.Error("failed to ingest message", zap.Error(err))
		return "Something went wrong while queueing. Try again later."
	}
	return submissionReply(report)
}

func (b *Bot) statusReply(ctx context.Context) string {
	s, err := b.stats.QueueStats(ctx)
	if err != nil {
		b.logger.Error("failed to load queue stats", zap.Error(err))
		return "Could not load queue status."
	}
	return fmt.Sprintf("Queue Status\n\nNew items: %d\nScraped: %d\nWith AI summary: %d\nPending triage: %d\nApproved: %d\nRejected: %d\nTotal: %d",
		s.New, s.Scraped, s.WithExtraction, s.Pending, s.Approved, s.Rejected, s.Total)
}

func submissionReply(r *ingestion.Report) string {
	var lines []string
	for _, res := range r.Results {
		switch {
		case res.Err != nil:
			lines = append(lines, fmt.Sprintf("Could not queue %s: %v", res.URL, res.Err))
		case res.Created:
			lines = append(lines, fmt.Sprintf("Added to queue (ID: %d)", res.ItemID))
		default:
			lines = append(lines, fmt.Sprintf("Already in queue (ID: %d)", res.ItemID))
		}
	}
	lines = append(lines, fmt.Sprintf("\n%d new, %d duplicate", r.New, r.Duplicate))
	return strings.Join(lines, "\n")
}

// command returns the leading bot command, without any @botname suffix.
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}

// messageURLText gathers every place a link can hide in a message: the text,
// the caption, and hidden text_link targets.
func messageURLText(m *Message) string {
	parts := []string{m.Text}
	parts = append(parts, entityURLs(m.Text, m.Entities)...)
	parts = append(parts, m.Caption)
	parts = append(parts, entityURLs(m.Caption, m.CaptionEntities)...)
	return strings.Join(parts, "\n")
}

func entityURLs(text string, entities []Entity) []string {
	var out []string
	var units []uint16
	for _, e := range entities {
		switch e.Type {
		case "text_link":
			if e.URL != "" {
				out = append(out, e.URL)
			}
		case "url":
			if units == nil {
				units = utf16.Encode([]rune(text))
			}
			if e.Offset < 0 || e.Offset+e.Length > len(units) {
				continue
			}
			out = append(out, string(utf16.Decode(units[e.Offset:e.Offset+e.Length])))
		}
	}
	return out
}
