// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

// Package notify pushes recognition outcomes to connected WebSocket
// clients. Delivery is targeted: a completion event reaches only the
// clients of the user who submitted the job.
package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/pantrio/internal/logging"
	"github.com/tomtom215/pantrio/internal/metrics"
)

// Message types pushed to clients.
const (
	MessageTypeJobCompleted = "job_completed"
	MessageTypeJobFailed    = "job_failed"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
)

// Message is the envelope written to WebSocket clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// notice pairs a message with its target user. An empty UserID
// broadcasts to everyone.
type notice struct {
	UserID  string
	Message Message
}

// Hub maintains active clients indexed by user and routes notices to
// the matching connections.
type Hub struct {
	clients    map[*Client]bool
	byUser     map[string]map[*Client]bool
	notices    chan notice
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		byUser:     make(map[string]map[*Client]bool),
		notices:    make(chan notice, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Run drives the hub until the context is cancelled. Lifecycle events
// take priority over notices so the client set is consistent before any
// delivery.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case n := <-h.notices:
			h.deliver(n)
		}
	}
}

// Notify queues a message for one user's connections. Non-blocking: a
// full queue drops the notice, the durable job record still carries the
// outcome.
func (h *Hub) Notify(userID, messageType string, data interface{}) {
	n := notice{UserID: userID, Message: Message{Type: messageType, Data: data}}
	select {
	case h.notices <- n:
		metrics.NotificationsPublished.Inc()
	default:
		metrics.NotificationsDropped.Inc()
		logging.Warn().Str("user_id", userID).Str("message_type", messageType).
			Msg("Notification queue full, dropping notice")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UserClientCount returns the number of connections held by one user.
func (h *Hub) UserClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID])
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	set, ok := h.byUser[client.userID]
	if !ok {
		set = make(map[*Client]bool)
		h.byUser[client.userID] = set
	}
	set[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	logging.Info().Str("user_id", client.userID).Int("total_clients", total).
		Msg("WebSocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		h.detachLocked(client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	logging.Info().Str("user_id", client.userID).Int("total_clients", total).
		Msg("WebSocket client disconnected")
}

// detachLocked removes a client from both indexes. Caller holds mu.
func (h *Hub) detachLocked(client *Client) {
	delete(h.clients, client)
	if set, ok := h.byUser[client.userID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.byUser, client.userID)
		}
	}
}

// deliver fans a notice out to the target user's connections in client
// ID order so delivery is reproducible.
func (h *Hub) deliver(n notice) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var pool map[*Client]bool
	if n.UserID == "" {
		pool = h.clients
	} else {
		pool = h.byUser[n.UserID]
	}

	targets := make([]*Client, 0, len(pool))
	for client := range pool {
		targets = append(targets, client)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })

	var toRemove []*Client
	for _, client := range targets {
		select {
		case client.send <- n.Message:
		default:
			// Slow consumer, disconnect rather than block the hub.
			toRemove = append(toRemove, client)
		}
	}
	for _, client := range toRemove {
		h.detachLocked(client)
		close(client.send)
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, client := range clients {
		h.detachLocked(client)
		close(client.send)
	}
	h.mu.Unlock()

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().
		Str("component", "notify-hub").
		Str("reason", reason).
		Int("clients_closed", len(clients)).
		Msg("Notification hub stopped")
}

// timestamp formats event times consistently for the wire.
func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
