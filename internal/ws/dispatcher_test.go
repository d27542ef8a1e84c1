package ws

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/gobwas/ws/wsutil"

	"github.com/z4fwan/z.om/internal/protocol"
)

func TestDispatcherRoutesToHandler(t *testing.T) {
	d := NewEventDispatcher()

	var gotConn *Connection
	var gotMsg interface{}
	d.Register(protocol.EventRegisterUser, func(conn *Connection, msg interface{}) {
		gotConn, gotMsg = conn, msg
	})

	c := &Connection{ID: "c1"}
	d.Dispatch(c, []byte(`{"event":"register-user","data":{"userId":"alice"}}`))

	if gotConn != c {
		t.Fatal("handler not invoked with the dispatching connection")
	}
	m, ok := gotMsg.(protocol.RegisterUserData)
	if !ok || m.UserID != "alice" {
		t.Errorf("handler msg = %#v, want RegisterUserData for alice", gotMsg)
	}
}

// readReply runs Dispatch in a goroutine and reads the single frame the
// dispatcher writes back on the connection.
func readReply(t *testing.T, d *EventDispatcher, raw string) protocol.Envelope {
	t.Helper()

	srv, cli := net.Pipe()
	t.Cleanup(func() {
		srv.Close()
		cli.Close()
	})
	conn := &Connection{ID: "c1", Conn: srv}

	go d.Dispatch(conn, []byte(raw))

	data, err := wsutil.ReadServerText(cli)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("reply not a valid envelope: %v", err)
	}
	return env
}

func TestDispatcherMalformedFrameSendsError(t *testing.T) {
	d := NewEventDispatcher()

	env := readReply(t, d, `{"event":"fly-to-moon","data":{}}`)
	if env.Event != protocol.EventError {
		t.Fatalf("reply event = %q, want %q", env.Event, protocol.EventError)
	}
	var payload protocol.ErrorData
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode error data: %v", err)
	}
	if payload.Code != "parse_error" {
		t.Errorf("error code = %q, want parse_error", payload.Code)
	}
}

func TestDispatcherUnregisteredEventSendsError(t *testing.T) {
	d := NewEventDispatcher()

	// A valid client event with no handler registered for it.
	env := readReply(t, d, `{"event":"stranger:skip","data":{}}`)
	if env.Event != protocol.EventError {
		t.Fatalf("reply event = %q, want %q", env.Event, protocol.EventError)
	}
	var payload protocol.ErrorData
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("decode error data: %v", err)
	}
	if payload.Code != "unsupported_event" {
		t.Errorf("error code = %q, want unsupported_event", payload.Code)
	}
}

func TestDispatcherAnswersPing(t *testing.T) {
	d := NewEventDispatcher()

	env := readReply(t, d, `{"event":"ping","data":{}}`)
	if env.Event != protocol.EventPong {
		t.Errorf("reply event = %q, want %q", env.Event, protocol.EventPong)
	}
}
