package authority

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 32 * 1024,
	// CORS is open on every route; the push channel follows suit.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWatch streams the current board, then every published change, to a websocket.
func (s *Server) handleWatch(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	// Subscribe before reading so no change slips between the snapshot and the feed.
	frames, unsubscribe := s.hub.Subscribe(id)
	defer unsubscribe()

	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return s.storeError(err)
	}
	initial, err := json.Marshal(cur)
	if err != nil {
		return err
	}

	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		return nil
	}
	defer conn.Close()
	s.metrics.watchers.Inc()
	defer s.metrics.watchers.Dec()

	l := s.log.WithFields(log.Fields{"board": id, "remote": c.RealIP()})
	l.Debug("watcher connected")
	defer l.Debug("watcher disconnected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, initial); err != nil {
		return nil
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- pumpFramesToWS(ctx, frames, conn)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		errCh <- drainWS(conn)
	}()

	// Wait for either direction to stop.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			l.WithError(err).Debug("watch ended")
		}
	}
	cancel()
	_ = conn.Close()
	wg.Wait()
	return nil
}

func pumpFramesToWS(ctx context.Context, frames <-chan []byte, conn *websocket.Conn) error {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			return ctx.Err()
		case data := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
	}
}

// drainWS reads until the peer goes away. Inbound frames are ignored: boards change
// only through PUT.
func drainWS(conn *websocket.Conn) error {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return err
		}
	}
}
