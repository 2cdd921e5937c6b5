package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/db/memstore"
	"github.com/jonathan/deal-tracker/internal/ingestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBot(t *testing.T, allowed []int64) (*Bot, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	gw := ingestion.NewGateway(store, nil)
	return NewBot(nil, gw, store, allowed, 5, nil), store
}

func TestHandleMessage_CapsURLs(t *testing.T) {
	bot, store := newBot(t, nil)
	ctx := context.Background()

	msg := &Message{
		From: &User{ID: 1, Username: "alice"},
		Text: "check this out https://a.test and also https://b.test plus https://c.test https://d.test https://e.test https://f.test",
	}
	reply := bot.HandleMessage(ctx, msg)
	assert.Contains(t, reply, "5 new, 0 duplicate")

	stats, err := store.QueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Total)

	item, err := store.GetItemByURL(ctx, "https://f.test")
	require.NoError(t, err)
	assert.Nil(t, item)

	item, err = store.GetItemByURL(ctx, "https://a.test")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "telegram:alice", item.Origin)

	reply = bot.HandleMessage(ctx, &Message{From: &User{ID: 1}, Text: "again https://a.test"})
	assert.Contains(t, reply, "Already in queue")
	assert.Contains(t, reply, "0 new, 1 duplicate")
}

func TestHandleMessage_Commands(t *testing.T) {
	bot, store := newBot(t, nil)
	ctx := context.Background()
	_, _, err := store.InsertItemIfAbsent(ctx, &db.Candidate{URL: "https://x.test/a"})
	require.NoError(t, err)

	assert.Equal(t, helpText, bot.HandleMessage(ctx, &Message{Text: "/start"}))
	assert.Equal(t, helpText, bot.HandleMessage(ctx, &Message{Text: "/help@DealBot"}))

	status := bot.HandleMessage(ctx, &Message{Text: "/status"})
	assert.Contains(t, status, "New items: 1")
	assert.Contains(t, status, "Total: 1")

	assert.Contains(t, bot.HandleMessage(ctx, &Message{Text: "hello"}), "No URLs found")
}

func TestHandleMessage_Allowlist(t *testing.T) {
	bot, store := newBot(t, []int64{42})
	ctx := context.Background()

	reply := bot.HandleMessage(ctx, &Message{From: &User{ID: 7}, Text: "https://a.test"})
	assert.Contains(t, reply, "Unauthorized")
	reply = bot.HandleMessage(ctx, &Message{Text: "https://a.test"})
	assert.Contains(t, reply, "Unauthorized")

	stats, err := store.QueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)

	reply = bot.HandleMessage(ctx, &Message{From: &User{ID: 42}, Text: "https://a.test"})
	assert.Contains(t, reply, "Added to queue")
}

func TestMessageURLText(t *testing.T) {
	text := "Über news: https://a.test/x see link"
	msg := &Message{
		Text: text,
		Entities: []Entity{
			{Type: "url", Offset: 11, Length: 16},
			{Type: "text_link", Offset: 30, Length: 4, URL: "https://hidden.test/story"},
			{Type: "bold", Offset: 0, Length: 4},
		},
		Caption: "caption https://c.test",
	}
	urls := ingestion.ExtractURLs(messageURLText(msg), 10)
	assert.Equal(t, []string{"https://a.test/x", "https://hidden.test/story", "https://c.test"}, urls)
}

func TestParseAllowedUsers(t *testing.T) {
	ids, err := ParseAllowedUsers(" 1, 22 ,,333")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 22, 333}, ids)

	ids, err = ParseAllowedUsers("")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = ParseAllowedUsers("1,abc")
	assert.Error(t, err)
}

func TestClient(t *testing.T) {
	var mu sync.Mutex
	var sent []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		switch {
		case strings.HasSuffix(r.URL.Path, "/bottok/getUpdates"):
			assert.Equal(t, "5", r.Form.Get("offset"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok": true,
				"result": []map[string]any{
					{"update_id": 5, "message": map[string]any{"message_id": 1, "chat": map[string]any{"id": 99}, "text": "hi"}},
				},
			})
		case strings.HasSuffix(r.URL.Path, "/bottok/sendMessage"):
			mu.Lock()
			sent = append(sent, r.Form.Get("chat_id")+":"+r.Form.Get("text"))
			mu.Unlock()
			_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
		default:
			_, _ = w.Write([]byte(`{"ok":false,"description":"Not Found"}`))
		}
	}))
	defer srv.Close()

	c := NewClient("tok", srv.URL)
	ctx := context.Background()

	updates, err := c.GetUpdates(ctx, 5, time.Second)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, int64(99), updates[0].Message.Chat.ID)

	require.NoError(t, c.SendMessage(ctx, 99, "pong"))
	assert.Equal(t, []string{"99:pong"}, sent)

	bad := NewClient("other", srv.URL)
	_, err = bad.GetUpdates(ctx, 0, time.Second)
	assert.ErrorContains(t, err, "Not Found")
}

type fakeAPI struct {
	mu      sync.Mutex
	batches [][]Update
	offsets []int64
	replies []string
	cancel  context.CancelFunc
}

func (f *fakeAPI) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, offset)
	if len(f.batches) == 0 {
		f.cancel()
		return nil, ctx.Err()
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func (f *fakeAPI) SendMessage(_ context.Context, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, text)
	return nil
}

func TestRun_AdvancesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := &fakeAPI{
		cancel: cancel,
		batches: [][]Update{
			{{UpdateID: 10, Message: &Message{Chat: Chat{ID: 1}, Text: "/help"}}},
			{{UpdateID: 11}},
		},
	}
	store := memstore.New()
	bot := NewBot(api, ingestion.NewGateway(store, nil), store, nil, 5, nil)

	require.NoError(t, bot.Run(ctx))
	assert.Equal(t, []int64{0, 11, 12}, api.offsets)
	assert.Equal(t, []string{helpText}, api.replies)
}
