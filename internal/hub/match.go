package hub

import (
	"encoding/json"
	"log"
	"time"

	"github.com/z4fwan/z.om/internal/metrics"
	"github.com/z4fwan/z.om/internal/protocol"
)

func (h *Hub) handleJoinQueue(connID string, profile json.RawMessage) {
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	if len(profile) > 0 {
		c.profile = profile
	}

	// A join while matched abandons the current pairing first. The former
	// partner is told the stranger left but is not re-queued on their behalf.
	if partner, ok := h.leavePair(connID); ok {
		h.send(partner, protocol.EventDisconnected, nil)
	}

	h.matchOrWait(connID)
}

func (h *Hub) handleSkip(connID string) {
	if _, ok := h.conns[connID]; !ok {
		return
	}

	if partner, ok := h.leavePair(connID); ok {
		h.send(partner, protocol.EventDisconnected, nil)
	}

	h.matchOrWait(connID)
}

// matchOrWait tries to pair connID with the longest-waiting live candidate;
// if none exists it joins the queue itself. Already-queued connections stay
// where they are (idempotent re-join).
func (h *Hub) matchOrWait(connID string) {
	if _, ok := h.conns[connID]; !ok {
		return
	}
	if h.queue.contains(connID) {
		h.updateGauges()
		return
	}

	if partner, ok := h.findMatch(connID); ok {
		h.pair(connID, partner)
		return
	}

	h.queue.push(connID, time.Now())
	h.send(connID, protocol.EventWaiting, nil)
	h.updateGauges()
}

// findMatch pops queue entries until it finds a live, unpaired candidate
// other than connID. Stale entries (connections that vanished without a
// clean disconnect) are discarded as they surface. The loop is bounded by
// the queue length at entry, so a queue full of stale entries terminates
// after draining it once.
func (h *Hub) findMatch(connID string) (string, bool) {
	for i := h.queue.len(); i > 0; i-- {
		e, ok := h.queue.pop()
		if !ok {
			return "", false
		}
		if e.connID == connID {
			continue
		}
		if _, live := h.conns[e.connID]; !live {
			log.Printf("hub: discarding stale queue entry %s", e.connID)
			continue
		}
		if _, paired := h.pairs[e.connID]; paired {
			continue
		}
		return e.connID, true
	}
	return "", false
}

// pair records a symmetric pairing and notifies both sides, each receiving
// the other's connection id.
func (h *Hub) pair(a, b string) {
	h.pairs[a] = b
	h.pairs[b] = a

	h.send(a, protocol.EventMatched, protocol.MatchedData{PartnerID: b})
	h.send(b, protocol.EventMatched, protocol.MatchedData{PartnerID: a})

	metrics.MatchesTotal.Inc()
	h.updateGauges()
}

// leavePair removes connID's pairing from both directions and returns the
// former partner. Not paired means nothing happens.
func (h *Hub) leavePair(connID string) (string, bool) {
	partner, ok := h.pairs[connID]
	if !ok {
		return "", false
	}
	delete(h.pairs, connID)
	delete(h.pairs, partner)
	h.updateGauges()
	return partner, true
}

// expireWaiting expels queue entries older than WaitTimeout, telling each
// expelled connection its wait ran out.
func (h *Hub) expireWaiting(now time.Time) {
	cutoff := now.Add(-h.cfg.WaitTimeout)
	for h.queue.len() > 0 {
		head := h.queue.entries[0]
		if head.enqueuedAt.After(cutoff) {
			break
		}
		h.queue.pop()
		h.send(head.connID, protocol.EventWaitingExpired, nil)
	}
	h.updateGauges()
}
