package hub

import (
	"encoding/json"
	"log"

	"github.com/z4fwan/z.om/internal/metrics"
	"github.com/z4fwan/z.om/internal/protocol"
)

// handleRelayToPartner forwards an event to the sender's current partner.
// The payload is forwarded verbatim with the sender's connection id injected
// as "from". A sender with no partner produces no delivery and no error;
// races between a relay and a pair teardown are expected.
func (h *Hub) handleRelayToPartner(connID, event string, data json.RawMessage) {
	partner, ok := h.pairs[connID]
	if !ok {
		metrics.RelaysDropped.WithLabelValues(event).Inc()
		return
	}

	frame, err := protocol.NewRelayEvent(event, data, connID)
	if err != nil {
		log.Printf("hub: failed to build relay %q from %s: %v", event, connID, err)
		return
	}

	h.deliver(partner, event, frame)
	metrics.EventsRelayed.WithLabelValues(event).Inc()
}

// handleRelayToIdentity forwards an event to whichever connection currently
// holds the target identity. The injected "from" is the sender's identity,
// falling back to the connection id if the sender never registered. An
// offline target produces no delivery and no error.
func (h *Hub) handleRelayToIdentity(connID, target, event string, data json.RawMessage) {
	targetConn, ok := h.registry.lookup(target)
	if !ok {
		metrics.RelaysDropped.WithLabelValues(event).Inc()
		return
	}

	from := h.registry.identityOf(connID)
	if from == "" {
		from = connID
	}

	frame, err := protocol.NewRelayEvent(event, data, from)
	if err != nil {
		log.Printf("hub: failed to build relay %q from %s: %v", event, connID, err)
		return
	}

	h.deliver(targetConn, event, frame)
	metrics.EventsRelayed.WithLabelValues(event).Inc()
}

// handleAddFriend exchanges display profiles across the sender's pairing:
// the partner receives the sender's stored profile plus the sender's
// connection id, and the sender gets the partner's profile back as
// confirmation.
func (h *Hub) handleAddFriend(connID string) {
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	partner, ok := h.pairs[connID]
	if !ok {
		return
	}
	pc, ok := h.conns[partner]
	if !ok {
		return
	}

	h.send(partner, protocol.EventFriendRequest, protocol.FriendRequestData{
		UserData: c.profile,
		From:     connID,
	})
	h.send(connID, protocol.EventFriendRequestSent, protocol.FriendRequestSentData{
		UserData: pc.profile,
	})
}
