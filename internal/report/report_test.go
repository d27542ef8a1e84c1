package report

import "testing"

func TestValidateAcceptsAllReasons(t *testing.T) {
	reasons := []string{
		"Nudity or Sexual Content",
		"Harassment or Hate Speech",
		"Spam or Scams",
		"Threatening Behavior",
		"Underage User",
		"Other",
	}
	for _, reason := range reasons {
		r := &Report{Reporter: "alice", Reported: "bob", Reason: reason}
		if err := r.Validate(); err != nil {
			t.Errorf("reason %q should validate: %v", reason, err)
		}
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		r    Report
	}{
		{"missing reporter", Report{Reported: "bob", Reason: "Other"}},
		{"missing reported", Report{Reporter: "alice", Reason: "Other"}},
		{"empty reason", Report{Reporter: "alice", Reported: "bob"}},
		{"unknown reason", Report{Reporter: "alice", Reported: "bob", Reason: "vibes"}},
	}
	for _, tc := range cases {
		if err := tc.r.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestNormalizeDefaultsCategory(t *testing.T) {
	r := &Report{Reporter: "alice", Reported: "bob", Reason: "Other"}
	r.Normalize()
	if r.Category != DefaultCategory {
		t.Errorf("category = %q, want %q", r.Category, DefaultCategory)
	}

	r = &Report{Reporter: "alice", Reported: "bob", Reason: "Other", Category: "private_call"}
	r.Normalize()
	if r.Category != "private_call" {
		t.Errorf("explicit category overwritten to %q", r.Category)
	}
}
