package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"kanban-cli/internal/model"
)

const maxErrorBody = 4 << 10

// HTTPError is a non-2xx answer from the authority.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

func IsNotFound(err error) bool {
	var herr *HTTPError
	return errors.As(err, &herr) && herr.StatusCode == http.StatusNotFound
}

// Client talks to a board authority over REST and a websocket push channel.
type Client struct {
	base   *url.URL
	http   *http.Client
	dialer *websocket.Dialer
	log    *log.Entry

	reconnectMin time.Duration
	reconnectMax time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

func WithLogger(l *log.Entry) Option {
	return func(c *Client) { c.log = l }
}

// WithReconnectBackoff bounds the delay between push channel reconnect attempts.
func WithReconnectBackoff(min, max time.Duration) Option {
	return func(c *Client) {
		c.reconnectMin = min
		c.reconnectMax = max
	}
}

// NewClient returns a client for the authority rooted at baseURL, e.g.
// http://localhost:8080/api/v1.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: missing host", baseURL)
	}
	c := &Client{
		base:         u,
		http:         &http.Client{Timeout: 30 * time.Second},
		dialer:       websocket.DefaultDialer,
		log:          log.WithField("component", "transport"),
		reconnectMin: 500 * time.Millisecond,
		reconnectMax: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) endpoint(parts ...string) string {
	return c.base.JoinPath(parts...).String()
}

func (c *Client) ListBoards(ctx context.Context) ([]model.BoardSummary, error) {
	data, err := c.do(ctx, http.MethodGet, c.endpoint("boards"), nil)
	if err != nil {
		return nil, err
	}
	return decodeSummaries(data)
}

func (c *Client) FetchBoard(ctx context.Context, id string) (model.Board, error) {
	if strings.TrimSpace(id) == "" {
		return model.Board{}, errors.New("missing board id")
	}
	data, err := c.do(ctx, http.MethodGet, c.endpoint("boards", id), nil)
	if err != nil {
		return model.Board{}, err
	}
	return DecodeBoard(data)
}

// PutBoard submits a full board snapshot and returns the authority's resulting board.
func (c *Client) PutBoard(ctx context.Context, b model.Board) (model.Board, error) {
	if strings.TrimSpace(b.ID) == "" {
		return model.Board{}, errors.New("missing board id")
	}
	data, err := c.do(ctx, http.MethodPut, c.endpoint("boards", b.ID), b)
	if err != nil {
		return model.Board{}, err
	}
	return DecodeBoard(data)
}

func (c *Client) CreateBoard(ctx context.Context, name string) (model.Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Board{}, errors.New("missing board name")
	}
	data, err := c.do(ctx, http.MethodPost, c.endpoint("boards"), map[string]string{"name": name})
	if err != nil {
		return model.Board{}, err
	}
	return DecodeBoard(data)
}

func (c *Client) do(ctx context.Context, method, u string, body any) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	c.log.WithFields(log.Fields{
		"method":  method,
		"url":     u,
		"status":  resp.StatusCode,
		"elapsed": time.Since(start),
	}).Debug("authority request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{Method: method, URL: u, StatusCode: resp.StatusCode, Body: string(msg)}
	}
	return io.ReadAll(resp.Body)
}
