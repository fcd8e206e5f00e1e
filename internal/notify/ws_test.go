package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zulandar/switchyard/internal/apperr"
)

func wsServer(t *testing.T, hub *Hub, authorize Authorizer) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewPeer(hub, conn, "u1", authorize).Serve(context.Background())
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func allowOnly(boardID string) Authorizer {
	return func(_ context.Context, userID, b string) error {
		if b != boardID {
			return errors.New("not a member of board " + b)
		}
		return nil
	}
}

func TestPeer_JoinAndReceive(t *testing.T) {
	hub := NewHub(nil)
	conn := dial(t, wsServer(t, hub, allowOnly("b1")))

	if err := conn.WriteJSON(Message{Type: TypeJoinBoard, Data: "b1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, func() bool { return hub.Subscribers("b1") == 1 })

	hub.Publish(context.Background(), "b1", "Card moved")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var sig Signal
	if err := conn.ReadJSON(&sig); err != nil {
		t.Fatalf("read: %v", err)
	}
	if sig.Type != TypeBoardUpdate || sig.BoardID != "b1" || sig.Message != "Card moved" {
		t.Errorf("signal = %+v", sig)
	}
}

func TestPeer_JoinRefused(t *testing.T) {
	hub := NewHub(nil)
	conn := dial(t, wsServer(t, hub, allowOnly("b1")))

	conn.WriteJSON(Message{Type: TypeJoinBoard, Data: "b2"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != TypeError || !strings.Contains(msg.Data, "b2") {
		t.Errorf("reply = %+v", msg)
	}
	if n := hub.Subscribers("b2"); n != 0 {
		t.Errorf("Subscribers(b2) = %d, want 0", n)
	}
}

func TestPeer_Ping(t *testing.T) {
	hub := NewHub(nil)
	conn := dial(t, wsServer(t, hub, allowOnly("b1")))

	conn.WriteJSON(Message{Type: TypePing})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != TypePong {
		t.Errorf("reply type = %q, want pong", msg.Type)
	}
}

func TestPeer_LeaveAndDisconnect(t *testing.T) {
	hub := NewHub(nil)
	conn := dial(t, wsServer(t, hub, func(context.Context, string, string) error { return nil }))

	conn.WriteJSON(Message{Type: TypeJoinBoard, Data: "b1"})
	conn.WriteJSON(Message{Type: TypeJoinBoard, Data: "b2"})
	waitFor(t, func() bool { return hub.Subscribers("b1") == 1 && hub.Subscribers("b2") == 1 })

	conn.WriteJSON(Message{Type: TypeLeaveBoard, Data: "b1"})
	waitFor(t, func() bool { return hub.Subscribers("b1") == 0 })

	conn.Close()
	waitFor(t, func() bool { return hub.Subscribers("b2") == 0 })
}

func TestPeer_RevokedMemberStopsReceiving(t *testing.T) {
	hub := NewHub(nil)
	var member atomic.Bool
	member.Store(true)
	authorize := func(_ context.Context, _, boardID string) error {
		if !member.Load() {
			return fmt.Errorf("%w: not a member of board %s", apperr.ErrUnauthorized, boardID)
		}
		return nil
	}
	conn := dial(t, wsServer(t, hub, authorize))

	conn.WriteJSON(Message{Type: TypeJoinBoard, Data: "b1"})
	waitFor(t, func() bool { return hub.Subscribers("b1") == 1 })

	member.Store(false)
	hub.Publish(context.Background(), "b1", "User Bob was removed from the board")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != TypeError || !strings.Contains(msg.Data, "b1") {
		t.Errorf("frame = %+v, want error for b1", msg)
	}
	waitFor(t, func() bool { return hub.Subscribers("b1") == 0 })
}

func TestPeer_DeletedBoardSendsLastSignal(t *testing.T) {
	hub := NewHub(nil)
	var gone atomic.Bool
	authorize := func(_ context.Context, _, boardID string) error {
		if gone.Load() {
			return fmt.Errorf("%w: board %s", apperr.ErrNotFound, boardID)
		}
		return nil
	}
	conn := dial(t, wsServer(t, hub, authorize))

	conn.WriteJSON(Message{Type: TypeJoinBoard, Data: "b1"})
	waitFor(t, func() bool { return hub.Subscribers("b1") == 1 })

	gone.Store(true)
	hub.Publish(context.Background(), "b1", "Board deleted")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var sig Signal
	if err := conn.ReadJSON(&sig); err != nil {
		t.Fatalf("read: %v", err)
	}
	if sig.Type != TypeBoardUpdate || sig.BoardID != "b1" {
		t.Errorf("signal = %+v", sig)
	}
	waitFor(t, func() bool { return hub.Subscribers("b1") == 0 })
}
