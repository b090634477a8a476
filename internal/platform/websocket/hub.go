// Package websocket fans bed-state transition events out to connected
// clients. It implements a hub-and-spoke pattern where clients
// subscribe to hospital topics and receive every event broadcast for
// that hospital.
package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Event is the structured notification emitted after every committed
// bed-state transition.
type Event struct {
	Type       string          `json:"type"`
	HospitalID string          `json:"hospital_id"`
	PatientID  string          `json:"patient_id,omitempty"`
	BedID      string          `json:"bed_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// ClientMessage represents an inbound message from a WebSocket client.
type ClientMessage struct {
	Action    string   `json:"action"`
	Hospitals []string `json:"hospitals"`
}

// Client represents a single WebSocket connection.
type Client struct {
	ID        string
	Hospitals []string
	Send      chan []byte
	hub       *Hub
}

// Hub is the central connection manager that tracks clients and their
// hospital subscriptions. All operations are thread-safe.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // hospital id -> set of clients
	all     map[*Client]struct{}
}

// NewHub creates a new Hub ready to manage WebSocket clients.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
	}
}

// Register adds a client to the hub and subscribes it to its initial hospitals.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}

	for _, hosp := range client.Hospitals {
		if h.clients[hosp] == nil {
			h.clients[hosp] = make(map[*Client]struct{})
		}
		h.clients[hosp][client] = struct{}{}
	}
}

// Unregister removes a client from the hub, all subscriptions, and
// closes the client's Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	for _, hosp := range client.Hospitals {
		if subscribers, ok := h.clients[hosp]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, hosp)
			}
		}
	}

	delete(h.all, client)
	close(client.Send)
}

// Subscribe dynamically adds hospital subscriptions to a registered client.
func (h *Hub) Subscribe(client *Client, hospitals []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, hosp := range hospitals {
		if h.clients[hosp] == nil {
			h.clients[hosp] = make(map[*Client]struct{})
		}
		h.clients[hosp][client] = struct{}{}
	}
	client.Hospitals = append(client.Hospitals, hospitals...)
}

// Unsubscribe removes hospital subscriptions from a registered client.
func (h *Hub) Unsubscribe(client *Client, hospitals []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removeSet := make(map[string]struct{}, len(hospitals))
	for _, hosp := range hospitals {
		removeSet[hosp] = struct{}{}
		if subscribers, ok := h.clients[hosp]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, hosp)
			}
		}
	}

	remaining := make([]string, 0, len(client.Hospitals))
	for _, hosp := range client.Hospitals {
		if _, rm := removeSet[hosp]; !rm {
			remaining = append(remaining, hosp)
		}
	}
	client.Hospitals = remaining
}

// ProcessMessage handles an inbound ClientMessage, dispatching to
// Subscribe or Unsubscribe as appropriate.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Hospitals)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Hospitals)
	}
}

// Broadcast sends an event to all clients subscribed to the event's hospital.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("websocket: failed to marshal event: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[event.HospitalID] {
		select {
		case client.Send <- data:
		default:
			// Client buffer full; skip to avoid blocking.
		}
	}
}

// Publish satisfies the transition engine's notification hook.
func (h *Hub) Publish(_ context.Context, event Event) error {
	h.Broadcast(event)
	return nil
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// HospitalCount returns the number of clients subscribed to a hospital.
func (h *Hub) HospitalCount(hospitalID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[hospitalID])
}

// ---------------------------------------------------------------------------
// Handler — Echo HTTP handler for WebSocket connections
// ---------------------------------------------------------------------------

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// Handler handles HTTP-to-WebSocket upgrades and message routing.
type Handler struct {
	hub *Hub
}

// NewHandler creates a new Handler bound to the given Hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes registers the WebSocket endpoint on the provided Echo group.
func (wsh *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", wsh.HandleConnect)
}

// HandleConnect upgrades an HTTP connection to WebSocket, registers the
// client with the hub, and starts read/write pumps.
func (wsh *Handler) HandleConnect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:        uuid.New().String(),
		Hospitals: []string{},
		Send:      make(chan []byte, 256),
		hub:       wsh.hub,
	}

	wsh.hub.Register(client)

	go wsh.writePump(client, ws)
	go wsh.readPump(client, ws)

	return nil
}

func (wsh *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		wsh.hub.Unregister(client)
		ws.Close()
	}()

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue // Ignore malformed messages.
		}

		wsh.hub.ProcessMessage(client, msg)
	}
}

func (wsh *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	defer ws.Close()

	for message := range client.Send {
		if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			break
		}
	}
}
