// Package ws streams change events to connected sessions over websockets.
// This is the cross-device half of change propagation: a mutation from one
// partner's session reaches the other partner's mounted mirrors through the
// bus, and their browser through this hub.
package ws

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
)

// Event is the JSON frame sent to clients.
type Event struct {
	Table string `json:"table"`
	Type  string `json:"type"`
	Row   any    `json:"row,omitempty"`
}

// Client is one connected session.
type Client struct {
	Role domain.Role
	Conn *websocket.Conn
	Send chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// Hub fans bus events out to connected clients. Notification events are
// delivered only to their recipient; everything else goes to both roles.
type Hub struct {
	mu      sync.RWMutex
	clients map[domain.Role]map[*Client]struct{}
	stop    func()
	done    chan struct{}
}

// NewHub subscribes to the bus wildcard feed and starts forwarding.
func NewHub(bus *gateway.Bus) *Hub {
	h := &Hub{
		clients: map[domain.Role]map[*Client]struct{}{},
		done:    make(chan struct{}),
	}
	ch, stop := bus.Subscribe(gateway.TableAny)
	h.stop = stop
	go func() {
		defer close(h.done)
		for c := range ch {
			h.broadcast(c)
		}
	}()
	return h
}

// AddClient registers a connection for role and starts its write and
// keepalive loops.
func (h *Hub) AddClient(role domain.Role, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		Role:   role,
		Conn:   conn,
		Send:   make(chan Event, 64),
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	if h.clients[role] == nil {
		h.clients[role] = map[*Client]struct{}{}
	}
	h.clients[role][c] = struct{}{}
	h.mu.Unlock()

	go c.writeLoop()
	go c.keepAliveLoop()

	return c
}

// RemoveClient unregisters and closes a connection.
func (h *Hub) RemoveClient(c *Client) {
	c.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	if set, ok := h.clients[c.Role]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.Role)
		}
	}

	_ = c.Conn.Close(websocket.StatusNormalClosure, "bye")
}

// Close stops forwarding and disconnects everyone.
func (h *Hub) Close() {
	h.stop()
	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			c.cancel()
			_ = c.Conn.Close(websocket.StatusGoingAway, "shutdown")
		}
	}
	h.clients = map[domain.Role]map[*Client]struct{}{}
}

func (h *Hub) broadcast(change gateway.Change) {
	ev := Event{Table: change.Table, Type: string(change.Type), Row: change.Row}

	// Notifications are addressed; keep the other partner's feed quiet.
	var only domain.Role
	if n, ok := change.Row.(*domain.Notification); ok {
		only = n.Recipient
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for role, set := range h.clients {
		if only != "" && role != only {
			continue
		}
		for c := range set {
			select {
			case c.Send <- ev:
			default:
				// channel full: drop, the client reconciles on reconnect
			}
		}
	}
}

// writeLoop drains Send until the client's context is cancelled. Send is
// never closed: a broadcast holding the read lock may still deliver into it
// while RemoveClient waits for the write lock, so the channel is simply
// abandoned once the client is out of the map.
func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.Send:
			writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = wsjson.Write(writeCtx, c.Conn, ev)
			cancel()
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = c.Conn.Ping(pingCtx)
			cancel()
		}
	}
}
