package ws

import (
	"log"
	"time"

	"github.com/z4fwan/z.om/internal/protocol"
)

// EventHandler is the callback signature for handling a parsed client event.
// The msg parameter is the value returned by protocol.ParseClientEvent for
// that event (a typed payload struct, or raw bytes for opaque payloads).
type EventHandler func(conn *Connection, msg interface{})

// EventDispatcher routes incoming WebSocket frames to registered handlers
// based on the event name. It answers the application-level ping internally
// and sends structured error events for malformed or unsupported frames.
type EventDispatcher struct {
	handlers map[string]EventHandler
}

// NewEventDispatcher creates an EventDispatcher with no handlers registered.
// Replies (pong, error events) are written directly on the connection.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{handlers: make(map[string]EventHandler)}
}

// Register associates an EventHandler with an event name. If a handler was
// already registered for the event, it is silently replaced.
func (d *EventDispatcher) Register(event string, handler EventHandler) {
	d.handlers[event] = handler
}

// Dispatch is the onMessage callback implementation. It parses the raw frame
// into a typed event, answers ping internally, and routes everything else to
// the registered handler. Parse errors and unregistered events result in an
// error event sent back to the client.
func (d *EventDispatcher) Dispatch(conn *Connection, data []byte) {
	event, msg, err := protocol.ParseClientEvent(data)
	if err != nil {
		log.Printf("ws: dispatch parse error conn=%s: %v", conn.ID, err)
		d.sendError(conn, "parse_error", "invalid event format")
		return
	}

	// Built-in ping handler — respond immediately without requiring registration.
	if event == protocol.EventPing {
		d.sendPong(conn)
		return
	}

	handler, ok := d.handlers[event]
	if !ok {
		log.Printf("ws: unsupported event=%q conn=%s", event, conn.ID)
		d.sendError(conn, "unsupported_event", "unsupported event")
		return
	}

	handler(conn, msg)
}

// sendError sends a structured error event back to the client. Errors during
// construction or transmission are logged but not propagated.
func (d *EventDispatcher) sendError(conn *Connection, code string, message string) {
	data, err := protocol.NewEvent(protocol.EventError, protocol.ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		log.Printf("ws: failed to build error event conn=%s: %v", conn.ID, err)
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		log.Printf("ws: failed to send error event conn=%s: %v", conn.ID, err)
	}
}

// sendPong answers a client ping and refreshes the connection's LastPing
// timestamp to reflect the most recent keepalive.
func (d *EventDispatcher) sendPong(conn *Connection) {
	conn.LastPing = time.Now()

	data, err := protocol.NewEvent(protocol.EventPong, nil)
	if err != nil {
		log.Printf("ws: failed to build pong conn=%s: %v", conn.ID, err)
		return
	}

	if err := conn.WriteMessage(data); err != nil {
		log.Printf("ws: failed to send pong conn=%s: %v", conn.ID, err)
	}
}
