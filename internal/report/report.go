// Package report defines moderation reports and their PostgreSQL-backed
// store. A report is an immutable record of a complaint filed by one user
// against their current stranger-chat partner; review-status transitions
// belong to the external moderation workflow, not to this package.
package report

import "fmt"

// validReasons is the fixed set of allowed complaint reasons, matching the
// CHECK constraint on the reports table.
var validReasons = map[string]bool{
	"Nudity or Sexual Content":  true,
	"Harassment or Hate Speech": true,
	"Spam or Scams":             true,
	"Threatening Behavior":      true,
	"Underage User":             true,
	"Other":                     true,
}

const (
	// DefaultCategory is applied when the client does not name one.
	DefaultCategory = "stranger_chat"

	// ChatTypeStranger marks reports captured inside a stranger pairing.
	ChatTypeStranger = "stranger"

	// StatusPending is the initial review status of every stored report.
	StatusPending = "pending"
)

// Context records which feature produced the report and the transient
// connection ids of both participants at capture time.
type Context struct {
	ChatType      string   `json:"chatType"`
	ConnectionIDs []string `json:"connectionIds"`
}

// Report is a single moderation complaint. Reporter and Reported are durable
// user identities, never connection ids.
type Report struct {
	Reporter    string  `json:"reporter"`
	Reported    string  `json:"reported"`
	Reason      string  `json:"reason"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category"`
	Context     Context `json:"context"`
}

// ValidReason reports whether reason is in the allowed set.
func ValidReason(reason string) bool {
	return validReasons[reason]
}

// Normalize fills in defaulted fields in place.
func (r *Report) Normalize() {
	if r.Category == "" {
		r.Category = DefaultCategory
	}
}

// Validate checks the report is storable: both parties identified and the
// reason drawn from the allowed set.
func (r *Report) Validate() error {
	if r.Reporter == "" {
		return fmt.Errorf("report: missing reporter identity")
	}
	if r.Reported == "" {
		return fmt.Errorf("report: missing reported identity")
	}
	if !ValidReason(r.Reason) {
		return fmt.Errorf("report: invalid reason %q", r.Reason)
	}
	return nil
}
