// Package telegram runs the chat bot that accepts article links and reports
// queue status.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultAPIURL is the Bot API root.
const DefaultAPIURL = "https://api.telegram.org"

// Update is an incoming Bot API update.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is the subset of a Bot API message the bot reads.
type Message struct {
	MessageID       int64    `json:"message_id"`
	From            *User    `json:"from,omitempty"`
	Chat            Chat     `json:"chat"`
	Text            string   `json:"text,omitempty"`
	Caption         string   `json:"caption,omitempty"`
	Entities        []Entity `json:"entities,omitempty"`
	CaptionEntities []Entity `json:"caption_entities,omitempty"`
}

// User identifies a sender.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

// Chat identifies a conversation.
type Chat struct {
	ID int64 `json:"id"`
}

// Entity marks a span of message text. Offsets count UTF-16 code units.
type Entity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	URL    string `json:"url,omitempty"`
}

// Client is a minimal Bot API client.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Client. An empty baseURL uses DefaultAPIURL.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 70 * time.Second},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, form url.Values, out any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("telegram %s: failed to decode response (%s): %w", method, resp.Status, err)
	}
	if !body.OK {
		return fmt.Errorf("telegram %s: %s", method, body.Description)
	}
	if out != nil {
		if err := json.Unmarshal(body.Result, out); err != nil {
			return fmt.Errorf("telegram %s: failed to decode result: %w", method, err)
		}
	}
	return nil
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	form := url.Values{}
	form.Set("offset", strconv.FormatInt(offset, 10))
	form.Set("timeout", strconv.Itoa(int(timeout/time.Second)))
	form.Set("allowed_updates", `["message"]`)

	var updates []Update
	if err := c.call(ctx, "getUpdates", form, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage posts a plain-text reply.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(chatID, 10))
	form.Set("text", text)
	form.Set("disable_web_page_preview", "true")
	return c.call(ctx, "sendMessage", form, nil)
}
