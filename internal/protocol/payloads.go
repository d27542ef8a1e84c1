package protocol

import "encoding/json"

// ---------------------------------------------------------------------------
// Client -> Server data structs
// ---------------------------------------------------------------------------

// RegisterUserData binds a durable user identity to the current connection.
type RegisterUserData struct {
	UserID string `json:"userId"`
}

// ChatMessageData is a free-text message for the current stranger partner.
type ChatMessageData struct {
	Message string `json:"message"`
}

// ReportData is a moderation complaint against the current stranger partner.
type ReportData struct {
	ReporterID  string `json:"reporterId"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// InitiateCallData asks the server to ring a registered identity.
type InitiateCallData struct {
	ReceiverID string          `json:"receiverId"`
	CallerInfo json.RawMessage `json:"callerInfo"`
	CallType   string          `json:"callType"`
}

// CallAcceptedData notifies the original caller that the callee picked up.
type CallAcceptedData struct {
	CallerID     string          `json:"callerId"`
	AcceptorInfo json.RawMessage `json:"acceptorInfo"`
}

// CallRejectedData notifies the original caller that the callee declined.
type CallRejectedData struct {
	CallerID string `json:"callerId"`
	Reason   string `json:"reason"`
}

// PrivateOfferData carries a session description to a registered identity.
type PrivateOfferData struct {
	ReceiverID string          `json:"receiverId"`
	SDP        json.RawMessage `json:"sdp"`
}

// PrivateAnswerData carries the answering session description back to the caller.
type PrivateAnswerData struct {
	CallerID string          `json:"callerId"`
	SDP      json.RawMessage `json:"sdp"`
}

// PrivateCandidateData carries a network candidate to a registered identity.
type PrivateCandidateData struct {
	TargetUserID string          `json:"targetUserId"`
	Candidate    json.RawMessage `json:"candidate"`
}

// EndCallData tears down a call with a registered identity.
type EndCallData struct {
	TargetUserID string `json:"targetUserId"`
}

// ---------------------------------------------------------------------------
// Server -> Client data structs
// ---------------------------------------------------------------------------

// ConnectedData tells a client its transient connection id after the upgrade.
type ConnectedData struct {
	ConnectionID string `json:"connectionId"`
}

// MatchedData announces a stranger pairing, carrying the partner's
// transient connection id.
type MatchedData struct {
	PartnerID string `json:"partnerId"`
}

// FriendRequestData delivers the partner's display profile alongside a
// friend-introduction request.
type FriendRequestData struct {
	UserData json.RawMessage `json:"userData"`
	From     string          `json:"from"`
}

// FriendRequestSentData confirms a friend introduction and carries the
// partner's display profile back to the requester.
type FriendRequestSentData struct {
	UserData json.RawMessage `json:"userData"`
}

// ReportSuccessData confirms that a moderation report was persisted.
type ReportSuccessData struct {
	Message string `json:"message"`
}

// ReportErrorData tells the reporter that their report was not persisted.
type ReportErrorData struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// UserActionData delivers an administrative action notification to the
// affected user's live connection.
type UserActionData struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// BannedData is sent when a banned user attempts to enter the stranger queue.
type BannedData struct {
	Reason   string `json:"reason"`
	Duration int    `json:"duration"` // remaining seconds
}

// RateLimitedData is sent when a client exceeds an action's rate limit.
type RateLimitedData struct {
	RetryAfter int `json:"retryAfter"` // seconds
}

// ErrorData reports a protocol-level error back to the client.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
