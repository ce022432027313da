// Package tier holds the durable set of users granted the extended history
// retention tier. Membership is mutable only by the configured administrator
// and is persisted as a whole on every change, so it survives restarts and
// takes effect on the next inbound message without one.
package tier

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/yetazero/GeminiTelegramBot/internal/jsonfile"
)

var (
	// ErrUnauthorized is returned when anyone but the administrator tries
	// to change tier membership.
	ErrUnauthorized = errors.New("tier: requester is not the administrator")
	// ErrNotEnabled is returned when disabling a user who was never in the
	// extended tier.
	ErrNotEnabled = errors.New("tier: extended history was not enabled for user")
)

// Registry is the owned, durable extended-tier membership set. Safe for
// concurrent use.
type Registry struct {
	mu      sync.Mutex
	path    string
	adminID int64
	logger  *slog.Logger
	members map[int64]struct{}
}

// Load reads the registry file at path, treating a missing file as an empty
// set and a corrupt file as empty with an operator warning.
func Load(log *slog.Logger, path string, adminID int64) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		path:    path,
		adminID: adminID,
		logger:  log.With(slog.String("service", "tier")),
		members: make(map[int64]struct{}),
	}
	var ids []int64
	if err := jsonfile.Read(path, &ids); err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn("tier registry unreadable, starting with empty set", slog.Any("error", err))
		}
		return r
	}
	for _, id := range ids {
		r.members[id] = struct{}{}
	}
	return r
}

// IsExtended reports whether userID is in the extended tier.
func (r *Registry) IsExtended(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[userID]
	return ok
}

// SetExtended grants or revokes the extended tier for userID. Only the
// administrator identity may call it; on success the full set is persisted
// immediately.
func (r *Registry) SetExtended(requesterID, userID int64, enabled bool) error {
	if requesterID != r.adminID {
		r.logger.Warn("unauthorized tier change attempt",
			slog.Int64("requester_id", requesterID),
			slog.Int64("user_id", userID),
		)
		return ErrUnauthorized
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if enabled {
		r.members[userID] = struct{}{}
	} else {
		if _, ok := r.members[userID]; !ok {
			return ErrNotEnabled
		}
		delete(r.members, userID)
	}
	if err := r.persist(); err != nil {
		return err
	}
	r.logger.Info("extended history changed",
		slog.Int64("user_id", userID),
		slog.Bool("enabled", enabled),
	)
	return nil
}

// persist writes the whole membership set. Caller holds the lock.
func (r *Registry) persist() error {
	ids := make([]int64, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if err := jsonfile.Write(r.path, ids); err != nil {
		return fmt.Errorf("persist tier registry: %w", err)
	}
	return nil
}
