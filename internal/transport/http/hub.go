package http

import (
	"sync"
)

// envelope is the wire format for every outbound frame.
type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// messagePayload carries a presentation-sink message: the client owns
// rendering, the server only picks keys and placeholders.
type messagePayload struct {
	Key          string            `json:"key"`
	Placeholders map[string]string `json:"placeholders,omitempty"`
}

// Hub tracks connected clients and implements the presentation sink.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]chan envelope
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]chan envelope)}
}

// register attaches a send channel for a participant, displacing any
// previous connection under the same id.
func (h *Hub) register(playerID string) chan envelope {
	send := make(chan envelope, 16)
	h.mu.Lock()
	if previous, ok := h.clients[playerID]; ok {
		close(previous)
	}
	h.clients[playerID] = send
	h.mu.Unlock()
	return send
}

func (h *Hub) unregister(playerID string, send chan envelope) {
	h.mu.Lock()
	if current, ok := h.clients[playerID]; ok && current == send {
		delete(h.clients, playerID)
		close(send)
	}
	h.mu.Unlock()
}

// Tell sends one keyed message to a single participant. Slow readers have
// their oldest frame dropped rather than blocking the caller.
func (h *Hub) Tell(playerID string, key string, placeholders map[string]string) {
	h.send(playerID, envelope{Type: "message", Payload: messagePayload{Key: key, Placeholders: placeholders}})
}

// send delivers a raw envelope; the read lock excludes a concurrent close.
func (h *Hub) send(playerID string, msg envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if ch, ok := h.clients[playerID]; ok {
		deliver(ch, msg)
	}
}

// Broadcast sends one keyed message to every listed participant.
func (h *Hub) Broadcast(playerIDs []string, key string, placeholders map[string]string) {
	msg := envelope{Type: "message", Payload: messagePayload{Key: key, Placeholders: placeholders}}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, playerID := range playerIDs {
		if send, ok := h.clients[playerID]; ok {
			deliver(send, msg)
		}
	}
}

func deliver(send chan envelope, msg envelope) {
	select {
	case send <- msg:
	default:
		select {
		case <-send:
		default:
		}
		select {
		case send <- msg:
		default:
		}
	}
}
