package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/crater/internal/events"
)

const (
	// replayBufferSize is the number of recent bus messages kept for
	// Last-Event-ID reconnection.
	replayBufferSize = 512

	streamKeepalive = 15 * time.Second
)

// streamEvent is one bus message as delivered to stream clients.
type streamEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// eventHub fans bus messages out to connected stream clients and keeps a
// ring of recent messages for replay.
type eventHub struct {
	mu      sync.Mutex
	clients map[*streamClient]struct{}
	lastID  uint64
	ring    [replayBufferSize]streamEvent
	ringPos int
	ringLen int
}

type streamClient struct {
	patterns []string
	ch       chan streamEvent
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[*streamClient]struct{})}
}

// broadcast records the message and hands it to every matching client.
// Slow clients miss messages rather than stall the relay.
func (h *eventHub) broadcast(topic string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	evt := streamEvent{ID: h.lastID, Topic: topic, Data: data}
	h.ring[h.ringPos] = evt
	h.ringPos = (h.ringPos + 1) % replayBufferSize
	if h.ringLen < replayBufferSize {
		h.ringLen++
	}

	for c := range h.clients {
		if !c.wants(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
		}
	}
}

func (h *eventHub) subscribe(patterns []string) *streamClient {
	c := &streamClient{patterns: patterns, ch: make(chan streamEvent, 64)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *eventHub) unsubscribe(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// since returns the buffered messages newer than id, oldest first.
func (h *eventHub) since(id uint64) []streamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []streamEvent
	start := (h.ringPos - h.ringLen + replayBufferSize) % replayBufferSize
	for i := range h.ringLen {
		evt := h.ring[(start+i)%replayBufferSize]
		if evt.ID > id {
			out = append(out, evt)
		}
	}
	return out
}

func (c *streamClient) wants(topic string) bool {
	if len(c.patterns) == 0 {
		return true
	}
	for _, p := range c.patterns {
		if topicMatches(p, topic) {
			return true
		}
	}
	return false
}

// topicMatches matches a dot-separated topic against a NATS-style pattern:
// "*" matches one segment, a trailing ">" matches one or more.
func topicMatches(pattern, topic string) bool {
	pp := strings.Split(pattern, ".")
	tp := strings.Split(topic, ".")
	for i, seg := range pp {
		if seg == ">" {
			return i < len(tp)
		}
		if i >= len(tp) || (seg != "*" && seg != tp[i]) {
			return false
		}
	}
	return len(pp) == len(tp)
}

// RelayEvents copies every crater bus message into the stream hub until ctx
// is cancelled.
func (s *CraterServer) RelayEvents(ctx context.Context, sub events.Subscriber) error {
	ch, cancel, err := sub.Subscribe(events.TopicAll)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", events.TopicAll, err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.hub.broadcast(msg.Topic, msg.Data)
		}
	}
}

// handleEventStream handles GET /v1/events/stream as server-sent events.
// ?topics= takes a comma-separated list of patterns.
func (s *CraterServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var patterns []string
	for _, p := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}

	client := s.hub.subscribe(patterns)
	defer s.hub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if last := r.Header.Get("Last-Event-ID"); last != "" {
		id, err := strconv.ParseUint(last, 10, 64)
		if err != nil {
			slog.Debug("ignoring bad Last-Event-ID", "value", last)
		} else {
			for _, evt := range s.hub.since(id) {
				if client.wants(evt.Topic) {
					writeStreamEvent(w, evt)
				}
			}
		}
	}
	flusher.Flush()

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-client.ch:
			writeStreamEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeStreamEvent(w http.ResponseWriter, evt streamEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Topic, evt.Data)
}
