package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseClientEvent_RegisterUser(t *testing.T) {
	raw := []byte(`{"event":"register-user","data":{"userId":"alice"}}`)

	event, msg, err := ParseClientEvent(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event != EventRegisterUser {
		t.Errorf("event = %q, want %q", event, EventRegisterUser)
	}
	m, ok := msg.(RegisterUserData)
	if !ok {
		t.Fatalf("msg type = %T, want RegisterUserData", msg)
	}
	if m.UserID != "alice" {
		t.Errorf("userId = %q, want alice", m.UserID)
	}
}

func TestParseClientEvent_JoinQueueOpaquePayload(t *testing.T) {
	raw := []byte(`{"event":"stranger:joinQueue","data":{"name":"A","avatar":"x.png"}}`)

	_, msg, err := ParseClientEvent(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, ok := msg.(json.RawMessage)
	if !ok {
		t.Fatalf("msg type = %T, want json.RawMessage", msg)
	}
	var profile map[string]string
	if err := json.Unmarshal(data, &profile); err != nil {
		t.Fatalf("payload not preserved: %v", err)
	}
	if profile["name"] != "A" {
		t.Errorf("profile = %v", profile)
	}
}

func TestParseClientEvent_TypedPayloads(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"chat", `{"event":"stranger:chatMessage","data":{"message":"hi"}}`, EventStrangerMsg},
		{"report", `{"event":"stranger:report","data":{"reason":"Other"}}`, EventReport},
		{"initiate", `{"event":"private:initiate-call","data":{"receiverId":"bob","callType":"video"}}`, EventInitiateCall},
		{"end", `{"event":"private:end-call","data":{"targetUserId":"bob"}}`, EventEndCall},
	}
	for _, tc := range cases {
		event, _, err := ParseClientEvent([]byte(tc.raw))
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
			continue
		}
		if event != tc.want {
			t.Errorf("%s: event = %q, want %q", tc.name, event, tc.want)
		}
	}
}

func TestParseClientEvent_Rejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `garbage`},
		{"missing event", `{"data":{}}`},
		{"unknown event", `{"event":"fly-to-moon","data":{}}`},
		{"server-only event", `{"event":"stranger:matched","data":{}}`},
	}
	for _, tc := range cases {
		if _, _, err := ParseClientEvent([]byte(tc.raw)); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
}

func TestNewEvent_NilDataBecomesEmptyObject(t *testing.T) {
	raw, err := NewEvent(EventWaiting, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("frame not valid JSON: %v", err)
	}
	if env.Event != EventWaiting {
		t.Errorf("event = %q, want %q", env.Event, EventWaiting)
	}
	if string(env.Data) != "{}" {
		t.Errorf("data = %s, want {}", env.Data)
	}
}

func TestNewRelayEvent_InjectsFrom(t *testing.T) {
	raw, err := NewRelayEvent(EventWebRTCOffer, json.RawMessage(`{"sdp":"v=0"}`), "conn-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("frame not valid JSON: %v", err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("data not an object: %v", err)
	}
	if data["from"] != "conn-1" {
		t.Errorf("from = %v, want conn-1", data["from"])
	}
	if data["sdp"] != "v=0" {
		t.Errorf("sdp = %v, want preserved", data["sdp"])
	}
}

func TestNewRelayEvent_EmptyData(t *testing.T) {
	raw, err := NewRelayEvent(EventCallEnded, nil, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var env Envelope
	_ = json.Unmarshal(raw, &env)
	var data map[string]interface{}
	_ = json.Unmarshal(env.Data, &data)
	if data["from"] != "alice" {
		t.Errorf("from = %v, want alice", data["from"])
	}
}

func TestNewRelayEvent_NullData(t *testing.T) {
	raw, err := NewRelayEvent(EventWebRTCOffer, json.RawMessage(`null`), "conn-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("frame not valid JSON: %v", err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("data not an object: %v", err)
	}
	if data["from"] != "conn-1" {
		t.Errorf("from = %v, want conn-1", data["from"])
	}
	if len(data) != 1 {
		t.Errorf("data = %v, want only the from field", data)
	}
}

func TestNewRelayEvent_NonObjectData(t *testing.T) {
	if _, err := NewRelayEvent(EventWebRTCOffer, json.RawMessage(`[1,2]`), "x"); err == nil {
		t.Error("array relay data should be rejected")
	}
}
