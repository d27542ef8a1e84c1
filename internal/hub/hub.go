// Package hub implements the realtime core: the connection registry, presence
// broadcasting, the stranger matcher, the signaling relay, the disconnect
// reconciler, and the moderation capture hook.
//
// All state (connections, identity registry, waiting queue, pairing table)
// is owned by a single event-loop goroutine. Transport workers and messaging
// callbacks never touch the maps directly; they enqueue closures onto the
// command channel and the loop executes them one at a time. This removes the
// possibility of interleaved mutations between, say, a disconnect and a match
// for the same connection.
package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/z4fwan/z.om/internal/metrics"
	"github.com/z4fwan/z.om/internal/protocol"
	"github.com/z4fwan/z.om/internal/report"
)

// Sender delivers frames to live connections. The WebSocket server implements
// it; tests substitute an in-memory recorder.
type Sender interface {
	// Send writes a frame to one connection. An error means the connection
	// is gone or unwritable; the hub treats it as best-effort.
	Send(connID string, data []byte) error

	// Broadcast writes a frame to every live connection.
	Broadcast(data []byte)
}

// ReportSink accepts moderation reports for asynchronous persistence. Submit
// must not block the caller: the sink hands the report off and invokes done
// (from any goroutine) once persistence has succeeded or failed.
type ReportSink interface {
	Submit(r *report.Report, done func(error))
}

// Config holds hub tunables.
type Config struct {
	// WaitTimeout bounds how long a connection may sit in the waiting queue
	// before being expelled with a stranger:waitingExpired event. Zero
	// disables expiry; waiting connections then stay queued until matched
	// or disconnected.
	WaitTimeout time.Duration

	// SweepInterval is how often the queue is scanned for expired waiters.
	// Only used when WaitTimeout > 0.
	SweepInterval time.Duration

	// CommandBuffer is the capacity of the command channel.
	CommandBuffer int
}

// DefaultConfig returns a Config with production defaults: no wait expiry,
// 5s sweep interval, 1024 buffered commands.
func DefaultConfig() Config {
	return Config{
		WaitTimeout:   0,
		SweepInterval: 5 * time.Second,
		CommandBuffer: 1024,
	}
}

// connState is the hub's view of one live connection.
type connState struct {
	id      string
	profile json.RawMessage // display payload from the last stranger:joinQueue
}

// Hub is the single-instance realtime core. Create it with New, wire the
// transport with SetSender, then call Run in its own goroutine.
type Hub struct {
	cfg    Config
	sender Sender
	sink   ReportSink

	commands chan func()
	done     chan struct{}
	stopOnce sync.Once

	// Loop-owned state. Only the Run goroutine (or in-package tests calling
	// handlers directly) may touch these.
	conns    map[string]*connState
	registry *registry
	queue    *waitQueue
	pairs    map[string]string // connection id <-> partner connection id, symmetric

	// deliveryHook, when set, observes every successful relay delivery.
	deliveryHook func(event string, connID string)
}

// New creates a Hub with the given configuration. The sender and report sink
// are wired separately because the transport and the hub reference each other.
func New(cfg Config) *Hub {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Second
	}
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = 1024
	}
	return &Hub{
		cfg:      cfg,
		commands: make(chan func(), cfg.CommandBuffer),
		done:     make(chan struct{}),
		conns:    make(map[string]*connState),
		registry: newRegistry(),
		queue:    newWaitQueue(),
		pairs:    make(map[string]string),
	}
}

// SetSender wires the frame sender. Must be called before Run.
func (h *Hub) SetSender(s Sender) {
	h.sender = s
}

// SetReportSink wires the asynchronous report persistence collaborator.
func (h *Hub) SetReportSink(sink ReportSink) {
	h.sink = sink
}

// SetDeliveryHook registers a callback invoked after every successful relay
// delivery with the event name and the receiving connection id. Pass nil to
// remove it.
func (h *Hub) SetDeliveryHook(fn func(event string, connID string)) {
	h.deliveryHook = fn
}

// Run executes the event loop until Stop is called. It must run in exactly
// one goroutine.
func (h *Hub) Run() {
	var tick <-chan time.Time
	if h.cfg.WaitTimeout > 0 {
		t := time.NewTicker(h.cfg.SweepInterval)
		defer t.Stop()
		tick = t.C
	}

	log.Printf("hub: event loop started (wait_timeout=%s)", h.cfg.WaitTimeout)

	for {
		select {
		case fn := <-h.commands:
			fn()
		case now := <-tick:
			h.expireWaiting(now)
		case <-h.done:
			log.Printf("hub: event loop stopped")
			return
		}
	}
}

// Stop terminates the event loop. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// enqueue schedules fn on the event loop. Dropped silently after Stop.
func (h *Hub) enqueue(fn func()) {
	select {
	case h.commands <- fn:
	case <-h.done:
	}
}

// ---------------------------------------------------------------------------
// Public API — called from transport workers and messaging callbacks.
// Each method enqueues a command; the loop does the actual work.
// ---------------------------------------------------------------------------

// Connect announces a new connection. If identity is non-empty (taken from
// the handshake query) it is registered immediately.
func (h *Hub) Connect(connID, identity string) {
	h.enqueue(func() { h.handleConnect(connID, identity) })
}

// RegisterUser binds a durable identity to an existing connection.
func (h *Hub) RegisterUser(connID, identity string) {
	h.enqueue(func() { h.handleRegisterUser(connID, identity) })
}

// JoinQueue puts a connection into the stranger queue, matching immediately
// if a live candidate is waiting. The profile is the client's opaque display
// payload, retained for friend introductions.
func (h *Hub) JoinQueue(connID string, profile json.RawMessage) {
	h.enqueue(func() { h.handleJoinQueue(connID, profile) })
}

// Skip leaves the current pairing (notifying the partner) and immediately
// re-enters the queue.
func (h *Hub) Skip(connID string) {
	h.enqueue(func() { h.handleSkip(connID) })
}

// RelayToPartner forwards an event to the sender's current stranger partner,
// injecting the sender's connection id as "from". No partner, no delivery.
func (h *Hub) RelayToPartner(connID, event string, data json.RawMessage) {
	h.enqueue(func() { h.handleRelayToPartner(connID, event, data) })
}

// RelayToIdentity forwards an event to the connection currently registered
// for the target identity, injecting the sender's identity (or connection id
// if unregistered) as "from". Unknown target, no delivery.
func (h *Hub) RelayToIdentity(connID, target, event string, data json.RawMessage) {
	h.enqueue(func() { h.handleRelayToIdentity(connID, target, event, data) })
}

// AddFriend exchanges the stored display profiles of both sides of the
// sender's current pairing.
func (h *Hub) AddFriend(connID string) {
	h.enqueue(func() { h.handleAddFriend(connID) })
}

// Report captures a moderation report against the sender's current partner
// and hands it to the report sink for asynchronous persistence.
func (h *Hub) Report(connID string, data protocol.ReportData) {
	h.enqueue(func() { h.handleReport(connID, data) })
}

// Disconnect reconciles all state for a closed connection.
func (h *Hub) Disconnect(connID string) {
	h.enqueue(func() { h.handleDisconnect(connID) })
}

// AdminAction delivers an administrative notification (suspend, block, ...)
// to the live connection of the target identity, if any.
func (h *Hub) AdminAction(identity, action string, payload json.RawMessage) {
	h.enqueue(func() { h.handleAdminAction(identity, action, payload) })
}

// ---------------------------------------------------------------------------
// Loop-side handlers
// ---------------------------------------------------------------------------

func (h *Hub) handleConnect(connID, identity string) {
	h.conns[connID] = &connState{id: connID}

	h.send(connID, protocol.EventConnected, protocol.ConnectedData{ConnectionID: connID})

	if identity != "" {
		h.registerIdentity(connID, identity)
	}
}

func (h *Hub) handleRegisterUser(connID, identity string) {
	if _, ok := h.conns[connID]; !ok {
		return
	}
	if identity == "" {
		return
	}
	h.registerIdentity(connID, identity)
}

// registerIdentity binds identity to connID and broadcasts the updated
// presence list. A repeat registration of the same pair changes nothing and
// skips the broadcast.
func (h *Hub) registerIdentity(connID, identity string) {
	changed, superseded := h.registry.register(identity, connID)
	if superseded != "" {
		log.Printf("hub: identity %s superseded connection %s with %s", identity, superseded, connID)
	}
	if changed {
		h.broadcastPresence()
	}
}

func (h *Hub) handleDisconnect(connID string) {
	if _, ok := h.conns[connID]; !ok {
		return
	}

	// Order matters: the queue purge must precede pair teardown so that the
	// re-queued partner can never be matched against the departing
	// connection's stale queue entry.
	h.queue.remove(connID)

	if partner, ok := h.leavePair(connID); ok {
		h.send(partner, protocol.EventDisconnected, nil)
		h.matchOrWait(partner)
	}

	if h.registry.unregisterConn(connID) {
		h.broadcastPresence()
	}

	delete(h.conns, connID)
	h.updateGauges()
}

func (h *Hub) handleAdminAction(identity, action string, payload json.RawMessage) {
	connID, ok := h.registry.lookup(identity)
	if !ok {
		return
	}
	h.send(connID, protocol.EventUserAction, protocol.UserActionData{
		Action:  action,
		Payload: payload,
	})
}

// broadcastPresence pushes the full sorted online-identity list to every
// live connection.
func (h *Hub) broadcastPresence() {
	ids := h.registry.identities()

	frame, err := protocol.NewEvent(protocol.EventOnlineUsers, ids)
	if err != nil {
		log.Printf("hub: failed to build presence frame: %v", err)
		return
	}
	if h.sender != nil {
		h.sender.Broadcast(frame)
	}
	metrics.OnlineIdentities.Set(float64(len(ids)))
}

// send marshals and delivers a single server event. Delivery is best-effort:
// a dead connection is reaped by the transport, not here.
func (h *Hub) send(connID, event string, data interface{}) {
	frame, err := protocol.NewEvent(event, data)
	if err != nil {
		log.Printf("hub: failed to build %q frame for %s: %v", event, connID, err)
		return
	}
	h.deliver(connID, event, frame)
}

// deliver writes a prebuilt frame and fires the delivery hook on success.
func (h *Hub) deliver(connID, event string, frame []byte) {
	if h.sender == nil {
		return
	}
	if err := h.sender.Send(connID, frame); err != nil {
		return
	}
	if h.deliveryHook != nil {
		h.deliveryHook(event, connID)
	}
}

// updateGauges refreshes the loop-owned metrics gauges.
func (h *Hub) updateGauges() {
	metrics.QueueWaiting.Set(float64(h.queue.len()))
	metrics.ActivePairs.Set(float64(len(h.pairs) / 2))
}
