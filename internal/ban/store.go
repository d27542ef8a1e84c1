// Package ban provides identity-keyed ban management backed by Redis.
// Ban records are stored as simple key-value pairs with TTL-based expiry:
//
//	Key:   ban:user:<identity>
//	Value: <reason>
//	TTL:   ban duration
//
// Bans are applied by the moderator service when an identity crosses the
// report threshold, and checked by the realtime server before a connection
// may enter the stranger queue.
package ban

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// BanPrefix is the Redis key prefix for ban records.
	BanPrefix = "ban:user:"

	// ReportsPrefix is the Redis key prefix for per-identity report counters
	// driving the escalating ban system.
	ReportsPrefix = "reports:user:"

	// Escalating ban durations.
	Ban15Min  = 15 * time.Minute // 1st offense
	Ban1Hour  = 1 * time.Hour    // 2nd offense
	Ban24Hour = 24 * time.Hour   // 3rd+ offense

	// ReportsTTL is how long the report counter lives in Redis. After 24h
	// without new reports the counter resets to zero.
	ReportsTTL = 24 * time.Hour

	// AutoBanThreshold is the number of reports within ReportsTTL that
	// triggers an automatic ban.
	AutoBanThreshold = 3
)

// Store manages ban records in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a new ban store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// IsBanned checks if an identity is currently banned.
// Returns (isBanned, remainingSeconds, reason, error).
// If the identity is not banned, isBanned is false and the other return
// values are zero/empty. Redis errors are returned so callers can decide how
// to handle them (the recommended policy is fail-open).
func (s *Store) IsBanned(ctx context.Context, identity string) (bool, int, string, error) {
	key := BanPrefix + identity

	reason, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, 0, "", nil
	}
	if err != nil {
		return false, 0, "", err
	}

	// Key exists — get the remaining TTL.
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		// We know the ban exists but can't read the TTL. Report banned
		// with 0 remaining rather than swallowing the ban.
		return true, 0, reason, nil
	}

	remaining := 0
	if ttl > 0 {
		remaining = int(ttl.Seconds())
	}

	return true, remaining, reason, nil
}

// Ban sets a ban on an identity with the given duration and reason.
// The ban automatically expires after the specified duration.
func (s *Store) Ban(ctx context.Context, identity string, duration time.Duration, reason string) error {
	key := BanPrefix + identity
	return s.client.Set(ctx, key, reason, duration).Err()
}

// Unban removes a ban from an identity immediately.
func (s *Store) Unban(ctx context.Context, identity string) error {
	key := BanPrefix + identity
	return s.client.Del(ctx, key).Err()
}

// ---------------------------------------------------------------------------
// Escalating ban system
// ---------------------------------------------------------------------------

// escalationDuration returns the ban duration for a given offense count.
func escalationDuration(offenseCount int) time.Duration {
	switch {
	case offenseCount <= 1:
		return Ban15Min
	case offenseCount == 2:
		return Ban1Hour
	default:
		return Ban24Hour
	}
}

// GetOffenseCount returns the current report counter for an identity.
// Returns 0 if the key does not exist (no reports recorded or counter
// expired).
func (s *Store) GetOffenseCount(ctx context.Context, identity string) (int, error) {
	key := ReportsPrefix + identity
	val, err := s.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// Escalate increments the offense counter for an identity and applies a ban
// whose duration escalates with the number of offenses:
//
//	1st offense  -> 15 minutes
//	2nd offense  -> 1 hour
//	3rd+ offense -> 24 hours
//
// The offense counter has a 24h TTL that resets on first increment, so
// counters naturally expire if there is no new activity.
//
// Returns the ban duration that was applied.
func (s *Store) Escalate(ctx context.Context, identity string, reason string) (time.Duration, error) {
	key := ReportsPrefix + identity

	// Atomically increment the counter.
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("ban: escalate incr: %w", err)
	}

	// Set TTL only on first increment so the window doesn't slide.
	if count == 1 {
		if err := s.client.Expire(ctx, key, ReportsTTL).Err(); err != nil {
			return 0, fmt.Errorf("ban: escalate expire: %w", err)
		}
	}

	duration := escalationDuration(int(count))
	if err := s.Ban(ctx, identity, duration, reason); err != nil {
		return 0, fmt.Errorf("ban: escalate ban: %w", err)
	}

	return duration, nil
}

// ApplyReportCount applies an auto-ban for an externally counted number of
// recent reports, typically the authoritative count from the report store.
// Below the threshold nothing happens. Returns (banned, duration, error).
func (s *Store) ApplyReportCount(ctx context.Context, identity string, count int) (bool, time.Duration, error) {
	if count < AutoBanThreshold {
		return false, 0, nil
	}
	duration := escalationDuration(count)
	if err := s.Ban(ctx, identity, duration, "multiple_reports"); err != nil {
		return false, 0, fmt.Errorf("ban: apply report count: %w", err)
	}
	return true, duration, nil
}

// ReportAndCheck increments the Redis report counter for an identity and
// checks whether the auto-ban threshold (3 reports in 24h) has been reached.
// It serves as the fallback decision path when the authoritative report
// count is unavailable.
//
// If the threshold is met or exceeded, a ban with escalating duration is
// applied. Returns (banned, duration, error).
func (s *Store) ReportAndCheck(ctx context.Context, identity string) (bool, time.Duration, error) {
	key := ReportsPrefix + identity

	// Atomically increment the report counter.
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ban: report incr: %w", err)
	}

	// Set TTL only on first increment so the 24h window doesn't slide.
	if count == 1 {
		if err := s.client.Expire(ctx, key, ReportsTTL).Err(); err != nil {
			return false, 0, fmt.Errorf("ban: report expire: %w", err)
		}
	}

	// Auto-ban when threshold is reached.
	if count >= AutoBanThreshold {
		duration := escalationDuration(int(count))
		if err := s.Ban(ctx, identity, duration, "multiple_reports"); err != nil {
			return false, 0, fmt.Errorf("ban: report ban: %w", err)
		}
		return true, duration, nil
	}

	return false, 0, nil
}
