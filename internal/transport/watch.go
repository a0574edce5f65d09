package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"kanban-cli/internal/model"
)

const watchBuffer = 16

func (c *Client) watchURL(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", errors.New("missing board id")
	}
	u, err := url.Parse(c.endpoint("boards", id, "watch"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

// Watch subscribes to the authority's push channel for a board. Every text frame that
// decodes to a valid board is delivered; anything else is logged and dropped. The
// connection is re-established with exponential backoff until ctx is cancelled, at
// which point the channel is closed.
func (c *Client) Watch(ctx context.Context, id string) (<-chan model.Board, error) {
	u, err := c.watchURL(id)
	if err != nil {
		return nil, err
	}
	out := make(chan model.Board, watchBuffer)
	go c.watchLoop(ctx, u, out)
	return out, nil
}

func (c *Client) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.reconnectMin
	b.MaxInterval = c.reconnectMax
	b.Reset()
	return b
}

func (c *Client) watchLoop(ctx context.Context, u string, out chan<- model.Board) {
	defer close(out)
	l := c.log.WithField("url", u)
	bo := c.newBackoff()
	for {
		connected, err := c.watchOnce(ctx, u, out, l)
		if ctx.Err() != nil {
			return
		}
		if connected {
			bo.Reset()
		}
		wait := bo.NextBackOff()
		l.WithError(err).WithField("retry_in", wait).Warn("push channel lost; reconnecting")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// watchOnce reads frames from one connection until it fails. connected reports whether
// the dial succeeded.
func (c *Client) watchOnce(ctx context.Context, u string, out chan<- model.Board, l *log.Entry) (connected bool, err error) {
	conn, resp, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return false, fmt.Errorf("dial %s: %w (status %d)", u, err, resp.StatusCode)
		}
		return false, fmt.Errorf("dial %s: %w", u, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	l.Debug("push channel connected")

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		if mt != websocket.TextMessage {
			continue
		}
		b, err := DecodeBoard(data)
		if err != nil {
			l.WithError(err).Debug("dropping push frame")
			continue
		}
		select {
		case out <- b:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}
