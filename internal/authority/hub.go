package authority

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"kanban-cli/internal/model"
)

const subscriberBuffer = 8

// Hub fans board frames out to the watchers of each board.
type Hub struct {
	mu    sync.Mutex
	subs  map[string]map[chan []byte]struct{}
	relay *RedisRelay
	log   *log.Entry
}

func NewHub() *Hub {
	return &Hub{
		subs: map[string]map[chan []byte]struct{}{},
		log:  log.WithField("component", "hub"),
	}
}

// Subscribe registers a watcher of boardID. The returned func unregisters it.
func (h *Hub) Subscribe(boardID string) (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	if h.subs[boardID] == nil {
		h.subs[boardID] = map[chan []byte]struct{}{}
	}
	h.subs[boardID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[boardID], ch)
			if len(h.subs[boardID]) == 0 {
				delete(h.subs, boardID)
			}
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Watchers(boardID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[boardID])
}

// Publish delivers b to local watchers and, when a relay is attached, to other
// instances.
func (h *Hub) Publish(ctx context.Context, b model.Board) {
	data, err := json.Marshal(b)
	if err != nil {
		h.log.WithError(err).Error("marshal board frame")
		return
	}
	if h.relay != nil {
		// The relay echoes our own message back; local delivery happens there.
		err := h.relay.publish(ctx, b.ID, data)
		if err == nil {
			return
		}
		h.log.WithError(err).Warn("relay publish failed; delivering locally")
	}
	h.deliver(b.ID, data)
}

// deliver never blocks: a watcher that fell behind loses its oldest frame. Frames carry
// whole boards, so the newest one is all a watcher needs.
func (h *Hub) deliver(boardID string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[boardID] {
		select {
		case ch <- data:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- data:
		default:
		}
	}
}

// RedisRelay shares board frames between authority instances over redis pub/sub on the
// channel board.<id>.
type RedisRelay struct {
	rc        *redis.Client
	hub       *Hub
	log       *log.Entry
	ready     chan struct{}
	readyOnce sync.Once
}

const relayPattern = "board.*"

func relayChannel(boardID string) string { return "board." + boardID }

// AttachRelay routes the hub's publications through redis. Run must be started for
// frames to reach local watchers.
func (h *Hub) AttachRelay(rc *redis.Client) *RedisRelay {
	r := &RedisRelay{rc: rc, hub: h, log: log.WithField("component", "relay"), ready: make(chan struct{})}
	h.relay = r
	return r
}

func (r *RedisRelay) publish(ctx context.Context, boardID string, data []byte) error {
	return r.rc.Publish(ctx, relayChannel(boardID), data).Err()
}

// Run relays frames from redis to local watchers until ctx is cancelled, resubscribing
// when the subscription drops.
func (r *RedisRelay) Run(ctx context.Context) {
	for {
		sub := r.rc.PSubscribe(ctx, relayPattern)
		if _, err := sub.Receive(ctx); err != nil {
			r.log.WithError(err).Warn("pubsub subscribe failed")
		} else {
			r.readyOnce.Do(func() { close(r.ready) })
			r.consume(ctx, sub.Channel())
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		r.log.Error("pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (r *RedisRelay) consume(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.hub.deliver(strings.TrimPrefix(msg.Channel, "board."), []byte(msg.Payload))
		}
	}
}

// Ready waits until the relay has subscribed once.
func (r *RedisRelay) Ready(ctx context.Context) error {
	select {
	case <-r.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
