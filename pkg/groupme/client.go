// Package groupme provides a read-only client for the GroupMe v3 API.
package groupme

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// MaxPageSize is the largest page the messages endpoint returns.
const MaxPageSize = 100

// Client defines the GroupMe operations used by lead intake.
type Client interface {
	// Messages returns up to limit messages older than beforeID, newest
	// first. An empty beforeID starts at the latest message.
	Messages(ctx context.Context, groupID, beforeID string, limit int) ([]Message, error)
	// Bots lists the bots owned by the token's user.
	Bots(ctx context.Context) ([]Bot, error)
}

// Message is one group message.
type Message struct {
	ID         string `json:"id"`
	CreatedAt  int64  `json:"created_at"`
	UserID     string `json:"user_id"`
	GroupID    string `json:"group_id"`
	Name       string `json:"name"`
	Text       string `json:"text"`
	SenderType string `json:"sender_type"`
	System     bool   `json:"system"`
}

// Time returns the creation time of the message.
func (m Message) Time() time.Time {
	return time.Unix(m.CreatedAt, 0).UTC()
}

// Bot is a GroupMe bot registration.
type Bot struct {
	BotID       string `json:"bot_id"`
	GroupID     string `json:"group_id"`
	Name        string `json:"name"`
	CallbackURL string `json:"callback_url"`
}

type envelope[T any] struct {
	Response T `json:"response"`
}

type messagesResponse struct {
	Count    int       `json:"count"`
	Messages []Message `json:"messages"`
}

// Option configures the GroupMe client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit throttles API calls to rps requests per second. A
// non-positive rps disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a GroupMe client for the given access token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: "https://api.groupme.com/v3",
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(5, 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// retryableStatusCode returns true if the HTTP status code should trigger a retry.
func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusInternalServerError ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable
}

// retryGet executes a GET with exponential backoff on transient failures
// (429, 500, 502, 503). Only reads are retried.
func (c *httpClient) retryGet(ctx context.Context, reqURL string) ([]byte, int, error) {
	const maxAttempts = 3
	backoff := 500 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, 0, eris.Wrap(err, "groupme: rate limit")
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, 0, eris.Wrap(err, "groupme: create request")
		}
		req.Header.Set("X-Access-Token", c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				return nil, resp.StatusCode, eris.Wrap(readErr, "groupme: read response body")
			}
			if !retryableStatusCode(resp.StatusCode) {
				return body, resp.StatusCode, nil
			}
			lastErr = eris.Errorf("groupme: status %d: %s", resp.StatusCode, string(body))
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, 0, lastErr
}

func (c *httpClient) Messages(ctx context.Context, groupID, beforeID string, limit int) ([]Message, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if beforeID != "" {
		q.Set("before_id", beforeID)
	}
	reqURL := fmt.Sprintf("%s/groups/%s/messages?%s", c.baseURL, url.PathEscape(groupID), q.Encode())

	body, status, err := c.retryGet(ctx, reqURL)
	if err != nil {
		return nil, eris.Wrapf(err, "groupme: list messages for group %s", groupID)
	}
	// 304 means there is nothing before beforeID.
	if status == http.StatusNotModified {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("groupme: list messages unexpected status %d: %s", status, string(body))
	}

	var env envelope[messagesResponse]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrap(err, "groupme: unmarshal messages")
	}
	return env.Response.Messages, nil
}

func (c *httpClient) Bots(ctx context.Context) ([]Bot, error) {
	body, status, err := c.retryGet(ctx, c.baseURL+"/bots")
	if err != nil {
		return nil, eris.Wrap(err, "groupme: list bots")
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("groupme: list bots unexpected status %d: %s", status, string(body))
	}

	var env envelope[[]Bot]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, eris.Wrap(err, "groupme: unmarshal bots")
	}
	return env.Response, nil
}

// FindBotGroup returns the group of the first bot whose callback URL
// contains callbackFragment.
func FindBotGroup(ctx context.Context, c Client, callbackFragment string) (Bot, error) {
	bots, err := c.Bots(ctx)
	if err != nil {
		return Bot{}, err
	}
	for _, b := range bots {
		if callbackFragment != "" && strings.Contains(strings.ToLower(b.CallbackURL), strings.ToLower(callbackFragment)) {
			return b, nil
		}
	}
	return Bot{}, eris.Errorf("groupme: no bot with callback containing %q", callbackFragment)
}
