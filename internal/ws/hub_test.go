package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/ourlittleworld/go-couple-backend/internal/domain"
	"github.com/ourlittleworld/go-couple-backend/internal/gateway"
)

// dialTestClient stands up a server endpoint that registers the accepted
// connection on the hub, and dials it.
func dialTestClient(t *testing.T, hub *Hub, role domain.Role) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		c := hub.AddClient(role, conn)
		defer hub.RemoveClient(c)
		// hold the connection open until the peer goes away
		ctx := r.Context()
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	conn, _, err := websocket.Dial(ctx, strings.Replace(srv.URL, "http", "ws", 1), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })

	// the server registers the client a beat after the handshake returns
	waitForClients(t, hub, role)
	return conn
}

func waitForClients(t *testing.T, hub *Hub, role domain.Role) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.clients[role])
		hub.mu.RUnlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client for %s never registered", role)
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var ev Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestHub_ForwardsChangesToClients(t *testing.T) {
	bus := gateway.NewBus()
	defer bus.Close()
	hub := NewHub(bus)
	defer hub.Close()

	conn := dialTestClient(t, hub, domain.RoleHim)

	bus.Publish(gateway.Change{Table: "posts", Type: gateway.Inserted})

	ev := readEvent(t, conn)
	if ev.Table != "posts" || ev.Type != string(gateway.Inserted) {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestHub_NotificationsAreAddressed(t *testing.T) {
	bus := gateway.NewBus()
	defer bus.Close()
	hub := NewHub(bus)
	defer hub.Close()

	his := dialTestClient(t, hub, domain.RoleHim)
	hers := dialTestClient(t, hub, domain.RoleHer)

	// addressed to her: his feed stays quiet
	bus.Publish(gateway.Change{
		Table: "notifications",
		Type:  gateway.Inserted,
		Row:   &domain.Notification{ID: "n1", Recipient: domain.RoleHer, Title: "hi"},
	})
	// a broadcast change follows so the quiet feed has something to prove
	// itself with
	bus.Publish(gateway.Change{Table: "captions", Type: gateway.Updated})

	ev := readEvent(t, hers)
	if ev.Table != "notifications" {
		t.Fatalf("her first event: %+v", ev)
	}
	ev = readEvent(t, hers)
	if ev.Table != "captions" {
		t.Fatalf("her second event: %+v", ev)
	}

	// him: the notification was skipped, the caption change arrives first
	ev = readEvent(t, his)
	if ev.Table != "captions" {
		t.Fatalf("his first event should be the caption change, got %+v", ev)
	}
}

func TestHub_DisconnectDuringBroadcastDoesNotPanic(t *testing.T) {
	bus := gateway.NewBus()
	defer bus.Close()
	hub := NewHub(bus)
	defer hub.Close()

	dialTestClient(t, hub, domain.RoleHim)

	hub.mu.RLock()
	var c *Client
	for cl := range hub.clients[domain.RoleHim] {
		c = cl
	}
	hub.mu.RUnlock()

	// hold the lock a broadcast holds while the peer goes away; the removal
	// has to wait for it
	hub.mu.RLock()
	removed := make(chan struct{})
	go func() {
		hub.RemoveClient(c)
		close(removed)
	}()

	// the client's loops wind down before the removal gets the lock
	<-c.ctx.Done()
	time.Sleep(20 * time.Millisecond)

	// the delivery the in-flight broadcast would attempt against this client
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("send to disconnecting client panicked: %v", r)
			}
		}()
		select {
		case c.Send <- Event{Table: "captions", Type: string(gateway.Updated)}:
		default:
		}
	}()

	hub.mu.RUnlock()
	<-removed
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	bus := gateway.NewBus()
	defer bus.Close()
	hub := NewHub(bus)

	conn := dialTestClient(t, hub, domain.RoleHim)
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var ev Event
	if err := wsjson.Read(ctx, conn, &ev); err == nil {
		t.Fatalf("read after hub close should fail")
	}

	// publishing after close must not panic; there is nobody to deliver to
	bus.Publish(gateway.Change{Table: "posts", Type: gateway.Inserted})
}
