package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"go-chat-vault/internal/event"
	"go-chat-vault/internal/metrics"
)

// Hub fans bus events out to the open connections of the event's owner.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	bus        event.Bus
}

func NewHub(bus event.Bus) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		bus:        bus,
	}
}

// Run serves registrations and events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			owned, ok := h.clients[client.ownerID]
			if !ok {
				owned = map[*Client]struct{}{}
				h.clients[client.ownerID] = owned
			}
			owned[client] = struct{}{}
			metrics.WebsocketConnections.Inc()
		case client := <-h.unregister:
			h.remove(client)
		case e, ok := <-events:
			if !ok {
				return
			}
			h.dispatch(e)
		}
	}
}

func (h *Hub) dispatch(e event.Event) {
	owned := h.clients[e.OwnerID]
	if len(owned) == 0 {
		return
	}

	message, err := json.Marshal(e)
	if err != nil {
		slog.Error("failed to marshal event", "type", e.Type, "error", err)
		return
	}

	for client := range owned {
		select {
		case client.send <- message:
		default:
			slog.Warn("dropping slow websocket client", "owner_id", client.ownerID)
			h.remove(client)
		}
	}
}

func (h *Hub) closeAll() {
	for _, owned := range h.clients {
		for client := range owned {
			close(client.send)
			metrics.WebsocketConnections.Dec()
		}
	}
	h.clients = map[string]map[*Client]struct{}{}
}

func (h *Hub) remove(client *Client) {
	owned, ok := h.clients[client.ownerID]
	if !ok {
		return
	}
	if _, ok := owned[client]; !ok {
		return
	}

	delete(owned, client)
	close(client.send)
	metrics.WebsocketConnections.Dec()
	if len(owned) == 0 {
		delete(h.clients, client.ownerID)
	}
}
