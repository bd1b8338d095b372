package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"proplend/core/events"
	"proplend/core/types"
)

const (
	wsWriteTimeout   = 10 * time.Second
	subscriberBuffer = 64
)

// Hub fans committed ledger events out to websocket subscribers. Slow
// subscribers that fill their buffer are dropped.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	logger *slog.Logger
}

type subscriber struct {
	ch     chan *types.Event
	filter map[string]struct{}
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

func (s *subscriber) wants(eventType string) bool {
	if len(s.filter) == 0 {
		return true
	}
	_, ok := s.filter[eventType]
	return ok
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{subs: make(map[*subscriber]struct{}), logger: logger}
}

// Emit implements events.Emitter.
func (h *Hub) Emit(evt events.Event) {
	rendered := events.Canonical(evt)
	if rendered == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if !sub.wants(rendered.Type) {
			continue
		}
		select {
		case sub.ch <- rendered:
		default:
			h.logger.Warn("event subscriber dropped", "type", rendered.Type)
			delete(h.subs, sub)
			sub.close()
		}
	}
}

// Subscribe registers a subscriber for the given event types; none means all.
func (h *Hub) Subscribe(eventTypes []string) (<-chan *types.Event, func()) {
	sub := &subscriber{ch: make(chan *types.Event, subscriberBuffer)}
	if len(eventTypes) > 0 {
		sub.filter = make(map[string]struct{}, len(eventTypes))
		for _, t := range eventTypes {
			sub.filter[t] = struct{}{}
		}
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[sub]; ok {
			delete(h.subs, sub)
			sub.close()
		}
		h.mu.Unlock()
	}
	return sub.ch, cancel
}

// Subscribers reports the live subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	var filter []string
	if raw := strings.TrimSpace(r.URL.Query().Get("types")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				filter = append(filter, trimmed)
			}
		}
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	ctx := conn.CloseRead(r.Context())
	if err := s.streamEvents(ctx, conn, filter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn, filter []string) error {
	updates, cancel := s.hub.Subscribe(filter)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return conn.Close(websocket.StatusTryAgainLater, "subscriber too slow")
			}
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt *types.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
