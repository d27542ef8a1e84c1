// Package protocol defines the WebSocket event vocabulary spoken between the
// client and the realtime server. Every frame is a JSON envelope carrying an
// event name and an event-specific data object.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Event name constants
// ---------------------------------------------------------------------------

// Client -> Server events.
const (
	EventRegisterUser = "register-user"

	EventJoinQueue   = "stranger:joinQueue"
	EventSkip        = "stranger:skip"
	EventStrangerMsg = "stranger:chatMessage"
	EventAddFriend   = "stranger:addFriend"
	EventReport      = "stranger:report"

	EventWebRTCOffer     = "webrtc:offer"
	EventWebRTCAnswer    = "webrtc:answer"
	EventWebRTCCandidate = "webrtc:ice-candidate"

	EventInitiateCall     = "private:initiate-call"
	EventCallAccepted     = "private:call-accepted"
	EventCallRejected     = "private:call-rejected"
	EventPrivateOffer     = "private:offer"
	EventPrivateAnswer    = "private:answer"
	EventPrivateCandidate = "private:ice-candidate"
	EventEndCall          = "private:end-call"

	EventPing = "ping"
)

// Server -> Client events.
const (
	EventConnected   = "connected"
	EventOnlineUsers = "getOnlineUsers"

	EventWaiting        = "stranger:waiting"
	EventWaitingExpired = "stranger:waitingExpired"
	EventMatched        = "stranger:matched"
	EventDisconnected   = "stranger:disconnected"

	EventFriendRequest     = "stranger:friendRequest"
	EventFriendRequestSent = "stranger:friendRequestSent"

	EventReportSuccess = "stranger:reportSuccess"
	EventReportError   = "stranger:reportError"

	EventIncomingCall = "private:incoming-call"
	EventCallEnded    = "private:call-ended"

	EventUserAction  = "user-action"
	EventBanned      = "banned"
	EventRateLimited = "rateLimited"
	EventError       = "error"
	EventPong        = "pong"
)

// ---------------------------------------------------------------------------
// Envelope
// ---------------------------------------------------------------------------

// Envelope is the outer frame of every message: an event name plus the raw
// data object, decoded lazily into the event's concrete struct.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ParseClientEvent decodes raw frame bytes into the event name and its typed
// payload. Unknown and server-only event names are rejected. For
// stranger:joinQueue the payload is returned as raw bytes, since the queue
// payload is an opaque client-defined display profile.
func ParseClientEvent(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse frame: %w", err)
	}
	if env.Event == "" {
		return "", nil, fmt.Errorf("protocol: missing or empty \"event\" field")
	}

	var (
		msg interface{}
		err error
	)

	switch env.Event {
	case EventRegisterUser:
		var m RegisterUserData
		err = json.Unmarshal(env.Data, &m)
		msg = m
	case EventJoinQueue:
		// Opaque profile payload, stored verbatim on the connection.
		msg = env.Data
	case EventSkip, EventAddFriend, EventPing:
		msg = struct{}{}
	case EventStrangerMsg:
		var m ChatMessageData
		err = json.Unmarshal(env.Data, &m)
		msg = m
	case EventReport:
		var m ReportData
		err = json.Unmarshal(env.Data, &m)
		msg = m
	case EventWebRTCOffer, EventWebRTCAnswer, EventWebRTCCandidate:
		// Forwarded verbatim to the partner; the server never inspects
		// session descriptions or candidates.
		msg = env.Data
	case EventInitiateCall:
		var m InitiateCallData
		err = json.Unmarshal(env.Data, &m)
		msg = m
	case EventCallAccepted:
		var m CallAcceptedData
		err = json.Unmarshal(env.Data, &m)
		msg = m
	case EventCallRejected:
		var m CallRejectedData
		err = json.Unmarshal(env.Data, &m)
		msg = m
	case EventPrivateOffer:
		var m PrivateOfferData
		err = json.Unmarshal(env.Data, &m)
		msg = m
	case EventPrivateAnswer:
		var m PrivateAnswerData
		err = json.Unmarshal(env.Data, &m)
		msg = m
	case EventPrivateCandidate:
		var m PrivateCandidateData
		err = json.Unmarshal(env.Data, &m)
		msg = m
	case EventEndCall:
		var m EndCallData
		err = json.Unmarshal(env.Data, &m)
		msg = m
	default:
		return env.Event, nil, fmt.Errorf("protocol: unknown client event: %q", env.Event)
	}

	if err != nil {
		return env.Event, nil, fmt.Errorf("protocol: failed to decode %q data: %w", env.Event, err)
	}
	return env.Event, msg, nil
}

// NewEvent encodes a server event into frame bytes. The data value is
// marshalled as the envelope's data object; a nil data produces an empty
// object rather than JSON null so clients can always index into it.
func NewEvent(event string, data interface{}) ([]byte, error) {
	if data == nil {
		data = struct{}{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal %q data: %w", event, err)
	}
	out, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal %q envelope: %w", event, err)
	}
	return out, nil
}

// NewRelayEvent encodes a relayed event: the original data object with a
// server-injected "from" field identifying the sender. The data is decoded
// into a generic map so the injection survives arbitrary client payloads.
func NewRelayEvent(event string, data json.RawMessage, from string) ([]byte, error) {
	m := map[string]interface{}{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("protocol: relay data for %q is not an object: %w", event, err)
		}
		// A JSON null zeroes the map back to nil.
		if m == nil {
			m = map[string]interface{}{}
		}
	}
	m["from"] = from
	return NewEvent(event, m)
}
