// Package guard implements the per-user activity governor: a sliding-window
// flood limiter with a cooldown and a consecutive-repeat detector. It decides,
// for every inbound unit of work, whether it may proceed to the model backend.
package guard

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Reason classifies a rejection.
type Reason string

const (
	// ReasonCoolingDown means a previously triggered cooldown has not
	// elapsed yet.
	ReasonCoolingDown Reason = "cooling-down"
	// ReasonDuplicateContent means the same normalized content arrived more
	// than the repeat threshold allows.
	ReasonDuplicateContent Reason = "duplicate-content"
	// ReasonRateExceeded means the per-window admit quota was exceeded; a
	// cooldown has been set.
	ReasonRateExceeded Reason = "rate-exceeded"
)

// Decision is the outcome of evaluating one inbound unit.
type Decision struct {
	Allowed    bool
	Reason     Reason
	RetryAfter time.Duration
}

// Policy holds the numeric thresholds the ledger enforces.
type Policy struct {
	RateWindow      time.Duration
	RateQuota       int
	Cooldown        time.Duration
	RepeatThreshold int
}

// record tracks one user's recent activity. Timestamps are trimmed to the
// rate window on every evaluation, so the slice stays small; the record
// itself is never removed from the map.
type record struct {
	timestamps   []time.Time
	lastMessage  string
	repeatCount  int
	blockedUntil time.Time
}

// Ledger is an owned store of per-user activity records. Safe for concurrent
// use.
type Ledger struct {
	mu      sync.Mutex
	policy  Policy
	logger  *slog.Logger
	records map[int64]*record
}

// NewLedger creates a Ledger enforcing the given policy.
func NewLedger(log *slog.Logger, policy Policy) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		policy:  policy,
		logger:  log.With(slog.String("service", "guard")),
		records: make(map[int64]*record),
	}
}

// Evaluate decides whether the inbound unit identified by contentKey from
// userID may be admitted at time now.
//
// The checks run in a fixed order: active cooldown first (no state is touched
// on that path), then the window is trimmed and now appended, then repeat
// detection, then flood detection. A unit rejected as a duplicate has already
// contributed its timestamp, so duplicates still count toward the flood
// quota.
func (l *Ledger) Evaluate(userID int64, contentKey string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[userID]
	if !ok {
		rec = &record{}
		l.records[userID] = rec
	}

	if rec.blockedUntil.After(now) {
		return Decision{
			Allowed:    false,
			Reason:     ReasonCoolingDown,
			RetryAfter: rec.blockedUntil.Sub(now),
		}
	}

	cutoff := now.Add(-l.policy.RateWindow)
	kept := rec.timestamps[:0]
	for _, t := range rec.timestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	rec.timestamps = append(kept, now)

	// An empty key never matches a previous one: media units derive a key
	// from their file identifier, so this only guards degenerate input.
	if contentKey != "" && strings.EqualFold(contentKey, rec.lastMessage) {
		rec.repeatCount++
	} else {
		rec.lastMessage = contentKey
		rec.repeatCount = 1
	}
	if rec.repeatCount > l.policy.RepeatThreshold {
		return Decision{Allowed: false, Reason: ReasonDuplicateContent}
	}

	if len(rec.timestamps) > l.policy.RateQuota {
		rec.blockedUntil = now.Add(l.policy.Cooldown)
		l.logger.Warn("rate limit hit",
			slog.Int64("user_id", userID),
			slog.Duration("cooldown", l.policy.Cooldown),
		)
		return Decision{
			Allowed:    false,
			Reason:     ReasonRateExceeded,
			RetryAfter: l.policy.Cooldown,
		}
	}

	return Decision{Allowed: true}
}
