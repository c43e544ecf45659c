// Package network fans lifecycle events out to UI clients over websockets.
// Delivery is fire-and-forget: the engine never blocks on, or hears back
// from, the presentation layer.
package network

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/metrics"
)

const pollInterval = 500 * time.Millisecond

// Hub maintains the set of connected UI clients and broadcasts every new
// lifecycle event to them. It polls the event log rather than hooking the
// append path, so a slow client can never stall the engine.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// NewHub creates a hub over the given event log.
func NewHub(eventLog *events.EventLog, log *logger.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		eventLog:   eventLog,
		logger:     log,
		metrics:    m,
	}
}

// Run services client churn and event fan-out until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	cursor := h.eventLog.Len()
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.metrics.WSClientsActive.Set(float64(len(h.clients)))
			h.logger.Infof("ui client connected, %d active", len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.WSClientsActive.Set(float64(len(h.clients)))
				h.logger.Infof("ui client disconnected, %d active", len(h.clients))
			}

		case message := <-h.broadcast:
			h.send(message)

		case <-ticker.C:
			all := h.eventLog.Replay()
			for ; cursor < len(all); cursor++ {
				h.publish(all[cursor])
			}
		}
	}
}

// publish serializes one event and fans it out.
func (h *Hub) publish(event events.GameEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Errorf("encode event %s: %v", event.ID, err)
		return
	}
	h.send(data)
}

// send delivers to every client, dropping those whose buffers are full.
func (h *Hub) send(message []byte) {
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			delete(h.clients, client)
			close(client.send)
			h.metrics.WSClientsActive.Set(float64(len(h.clients)))
			h.logger.Warnf("ui client dropped, send buffer full")
		}
	}
}
