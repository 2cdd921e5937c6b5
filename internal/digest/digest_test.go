package digest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonathan/deal-tracker/internal/actiontoken"
	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/db/memstore"
	"github.com/jonathan/deal-tracker/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	msgs []*Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg *Message) error {
	r.msgs = append(r.msgs, msg)
	return r.err
}

func strPtr(s string) *string { return &s }

func seed(t *testing.T) (*memstore.Store, int64) {
	t.Helper()
	ctx := context.Background()
	s := memstore.New()

	id, _, err := s.InsertItemIfAbsent(ctx, &db.Candidate{URL: "https://x.test/acme", Title: "Acme raises $10M <Series A>"})
	require.NoError(t, err)
	text := "body"
	require.NoError(t, s.SaveScrapeResult(ctx, &db.ScrapeResult{ItemID: id, Success: true, Text: &text}))
	tt := types.TransactionEquityRound
	require.NoError(t, s.SaveExtraction(ctx, &db.Extraction{
		ItemID:          id,
		Company:         strPtr("Acme"),
		DealAmount:      strPtr("$10M"),
		TransactionType: &tt,
		Sectors:         types.Sectors{types.SectorAIML, types.SectorSpace},
		Complete:        true,
	}))

	// Scraped but without a complete extraction: not part of the digest.
	other, _, err := s.InsertItemIfAbsent(ctx, &db.Candidate{URL: "https://x.test/other", Title: "Other"})
	require.NoError(t, err)
	require.NoError(t, s.SaveScrapeResult(ctx, &db.ScrapeResult{ItemID: other, Success: true, Text: &text}))
	return s, id
}

func newSigner() *actiontoken.Signer {
	return actiontoken.NewSigner("secret", 24*time.Hour, nil)
}

func TestBuild_SignsLinks(t *testing.T) {
	store, id := seed(t)
	signer := newSigner()
	d := NewDigester(store, signer, nil, "https://deals.example", nil)

	dg, err := d.Build(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, dg.Count)
	assert.Equal(t, "24 hours", dg.ExpiresIn)

	e := dg.Items[0]
	assert.Equal(t, id, e.ItemID)
	assert.Equal(t, "Acme", e.Company)
	assert.Equal(t, []string{"AI/ML", "Space"}, e.Sectors)
	require.True(t, strings.HasPrefix(e.ApproveURL, "https://deals.example/api/action?token="))

	for url, want := range map[string]actiontoken.Action{e.ApproveURL: actiontoken.ActionApprove, e.RejectURL: actiontoken.ActionReject} {
		token := strings.ReplaceAll(strings.TrimPrefix(url, "https://deals.example/api/action?token="), "%3A", ":")
		claims, err := signer.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, id, claims.ItemID)
		assert.Equal(t, want, claims.Action)
	}
}

func TestRender(t *testing.T) {
	dg := &Digest{
		Count:     1,
		ExpiresIn: "24 hours",
		Items: []Entry{{
			ItemID:     1,
			Title:      "Acme <b>raises</b>",
			SourceURL:  "https://x.test/a",
			ApproveURL: "https://deals.example/api/action?token=1%3Aapprove%3A1%3Aabc",
			RejectURL:  "https://deals.example/api/action?token=1%3Areject%3A1%3Aabc",
		}},
	}
	msg, err := Render(dg)
	require.NoError(t, err)

	assert.Equal(t, "Defense Tracker: 1 new item for review", msg.Subject)
	assert.Contains(t, msg.Text, "- Unknown: Acme <b>raises</b>")
	assert.Contains(t, msg.HTML, "Unknown Company")
	assert.Contains(t, msg.HTML, "Acme &lt;b&gt;raises&lt;/b&gt;")
	assert.Contains(t, msg.HTML, "expire in 24 hours")
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("sends", func(t *testing.T) {
		store, _ := seed(t)
		sender := &recordingSender{}
		report, err := NewDigester(store, newSigner(), sender, "http://localhost:8080", nil).Run(ctx, Options{})
		require.NoError(t, err)
		assert.Equal(t, &Report{Items: 1, Sent: true}, report)
		require.Len(t, sender.msgs, 1)
	})

	t.Run("dry run prints", func(t *testing.T) {
		store, _ := seed(t)
		sender := &recordingSender{}
		var out bytes.Buffer
		report, err := NewDigester(store, newSigner(), sender, "http://localhost:8080", nil).Run(ctx, Options{DryRun: true, Out: &out})
		require.NoError(t, err)
		assert.False(t, report.Sent)
		assert.Empty(t, sender.msgs)
		assert.Contains(t, out.String(), "Subject: Defense Tracker: 1 new item for review")
		assert.Contains(t, out.String(), "Approve: http://localhost:8080/api/action?token=")
	})

	t.Run("empty digest is not sent", func(t *testing.T) {
		sender := &recordingSender{}
		report, err := NewDigester(memstore.New(), newSigner(), sender, "", nil).Run(ctx, Options{})
		require.NoError(t, err)
		assert.Equal(t, 0, report.Items)
		assert.Empty(t, sender.msgs)
	})

	t.Run("no sender", func(t *testing.T) {
		store, _ := seed(t)
		_, err := NewDigester(store, newSigner(), nil, "", nil).Run(ctx, Options{})
		assert.ErrorIs(t, err, ErrNoSender)
	})

	t.Run("send failure", func(t *testing.T) {
		store, _ := seed(t)
		sender := &recordingSender{err: errors.New("auth failed")}
		report, err := NewDigester(store, newSigner(), sender, "", nil).Run(ctx, Options{})
		require.Error(t, err)
		assert.False(t, report.Sent)
	})
}

func TestBuildMIME(t *testing.T) {
	body, err := buildMIME("a@x.test", "b@x.test", &Message{Subject: "Hi", Text: "plain", HTML: "<p>html</p>"})
	require.NoError(t, err)

	s := string(body)
	assert.Contains(t, s, "From: a@x.test\r\n")
	assert.Contains(t, s, "To: b@x.test\r\n")
	assert.Contains(t, s, "Content-Type: multipart/alternative; boundary=")
	assert.Contains(t, s, "text/plain; charset=utf-8")
	assert.Contains(t, s, "<p>html</p>")
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "1 hour", humanDuration(time.Hour))
	assert.Equal(t, "24 hours", humanDuration(24*time.Hour))
	assert.Equal(t, "1h30m0s", humanDuration(90*time.Minute))
}
