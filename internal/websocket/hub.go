package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Hub fans fleet events out to connected subscribers. Slow subscribers are
// dropped rather than allowed to block publishers.
type Hub struct {
	clients      map[string]*Client
	clientsMutex sync.RWMutex

	Register   chan *Client
	Unregister chan *Client

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration

	log zerolog.Logger
}

func NewHub(writeWait, pongWait, pingPeriod time.Duration, log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		writeWait:  writeWait,
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	h.clients[client.ID] = client
	h.log.Debug().Str("client_id", client.ID).Msg("event subscriber registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.clientsMutex.Lock()
	defer h.clientsMutex.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
		h.log.Debug().Str("client_id", client.ID).Msg("event subscriber unregistered")
	}
}

// Publish broadcasts one event to every subscriber. Safe to call on a nil
// hub so services can run without the feed wired (tests do).
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal event")
		return
	}

	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()

	for id, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			h.log.Warn().Str("client_id", id).Msg("subscriber send buffer full, dropping connection")
			go func(c *Client) { h.Unregister <- c }(client)
		}
	}
}

// Subscribers reports the current number of connected clients.
func (h *Hub) Subscribers() int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients)
}
