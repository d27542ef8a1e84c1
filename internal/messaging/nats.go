// Package messaging provides the NATS client wrapper used between the
// realtime server and its collaborators: request/reply hand-off of moderation
// reports to the moderator service, and fan-in of administrative actions
// destined for live connections.
package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/z4fwan/z.om/internal/report"
)

// NATS subjects.
const (
	// SubjectReportSubmit carries moderation reports from realtime servers
	// to the moderator service (request/reply).
	SubjectReportSubmit = "report.submit"

	// SubjectAdminAction carries admin notifications (suspend, block, ...)
	// from the admin layer to whichever realtime server holds the target
	// user's connection.
	SubjectAdminAction = "admin.action"

	// moderatorQueue is the queue group moderator instances join so each
	// report is handled by exactly one of them.
	moderatorQueue = "moderators"
)

// ReportAck is the moderator's reply to a report submission.
type ReportAck struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// AdminActionMsg is an administrative notification targeting one identity.
type AdminActionMsg struct {
	UserID  string          `json:"userId"`
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NATSClient wraps the NATS connection with helper methods for the subjects
// above.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL            string        // nats://localhost:4222
	Name           string        // client name for identification
	ReconnectWait  time.Duration // time between reconnect attempts
	MaxReconnects  int           // max reconnect attempts (-1 for infinite)
	RequestTimeout time.Duration // timeout for request/reply calls
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:            "nats://localhost:4222",
		Name:           "zom",
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1, // infinite reconnects
		RequestTimeout: 5 * time.Second,
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// SubmitReport sends a report to the moderator service and waits up to
// timeout for the acknowledgement. A non-OK ack is returned as an error.
func (c *NATSClient) SubmitReport(r *report.Report, timeout time.Duration) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("nats: marshal report: %w", err)
	}

	msg, err := c.conn.Request(SubjectReportSubmit, data, timeout)
	if err != nil {
		return fmt.Errorf("nats: report request: %w", err)
	}

	var ack ReportAck
	if err := json.Unmarshal(msg.Data, &ack); err != nil {
		return fmt.Errorf("nats: decode report ack: %w", err)
	}
	if !ack.OK {
		return fmt.Errorf("nats: report rejected: %s", ack.Error)
	}
	return nil
}

// SubscribeReportSubmit registers the moderator-side handler for report
// submissions. Instances share the moderator queue group so each report is
// processed once. The handler's error (or nil) is sent back as the ack.
func (c *NATSClient) SubscribeReportSubmit(handler func(data []byte) error) error {
	sub, err := c.conn.QueueSubscribe(SubjectReportSubmit, moderatorQueue, func(msg *nats.Msg) {
		ack := ReportAck{OK: true}
		if err := handler(msg.Data); err != nil {
			ack = ReportAck{OK: false, Error: err.Error()}
		}

		reply, err := json.Marshal(ack)
		if err != nil {
			log.Printf("[nats] marshal report ack: %v", err)
			return
		}
		if err := msg.Respond(reply); err != nil {
			log.Printf("[nats] respond report ack: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", SubjectReportSubmit, err)
	}

	c.mu.Lock()
	c.subs[SubjectReportSubmit] = sub
	c.mu.Unlock()
	return nil
}

// PublishAdminAction publishes an admin notification for a target identity.
func (c *NATSClient) PublishAdminAction(msg AdminActionMsg) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("nats: marshal admin action: %w", err)
	}
	return c.conn.Publish(SubjectAdminAction, data)
}

// SubscribeAdminActions registers a handler for admin notifications. Every
// realtime server subscribes; servers without the target connection drop the
// action in the hub.
func (c *NATSClient) SubscribeAdminActions(handler func(msg AdminActionMsg)) error {
	sub, err := c.conn.Subscribe(SubjectAdminAction, func(m *nats.Msg) {
		var msg AdminActionMsg
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			log.Printf("[nats] decode admin action: %v", err)
			return
		}
		handler(msg)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", SubjectAdminAction, err)
	}

	c.mu.Lock()
	c.subs[SubjectAdminAction] = sub
	c.mu.Unlock()
	return nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// ReportSubmitter adapts the NATS client to the hub's asynchronous report
// sink: Submit returns immediately and the request/reply round trip runs in
// its own goroutine.
type ReportSubmitter struct {
	client  *NATSClient
	timeout time.Duration
}

// NewReportSubmitter wraps client with the given request timeout.
func NewReportSubmitter(client *NATSClient, timeout time.Duration) *ReportSubmitter {
	if timeout <= 0 {
		timeout = DefaultNATSConfig().RequestTimeout
	}
	return &ReportSubmitter{client: client, timeout: timeout}
}

// Submit hands the report off for persistence and invokes done with the
// outcome once the moderator has replied (or the request timed out).
func (s *ReportSubmitter) Submit(r *report.Report, done func(error)) {
	go func() {
		done(s.client.SubmitReport(r, s.timeout))
	}()
}
