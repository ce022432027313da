// Package history persists the bounded per-user conversation log. Each user
// has at most one file per retention tier; every save is a whole-file atomic
// rewrite of the trimmed log.
package history

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/yetazero/GeminiTelegramBot/internal/jsonfile"
)

// Tier selects a retention policy.
type Tier string

const (
	// TierStandard keeps the last few exchanges.
	TierStandard Tier = "standard"
	// TierExtended keeps a much longer record, granted per user by the
	// administrator.
	TierExtended Tier = "extended"
)

// Turn is one role-tagged unit of conversation content.
type Turn struct {
	Role  string   `json:"role"`
	Parts []string `json:"parts"`
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Store reads and writes per-user history files. Safe for concurrent use:
// the read-modify-write in Append is serialized by a mutex and every save is
// an atomic whole-file rewrite.
type Store struct {
	mu          sync.Mutex
	standardDir string
	extendedDir string
	standardCap int
	extendedCap int
	logger      *slog.Logger
}

// NewStore creates a Store rooted at the two tier directories. The caps are
// the maximum number of stored turns per tier; trimming always discards the
// oldest turns first.
func NewStore(log *slog.Logger, standardDir, extendedDir string, standardCap, extendedCap int) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	for _, dir := range []string{standardDir, extendedDir} {
		if err := jsonfile.EnsureDir(dir); err != nil {
			return nil, err
		}
	}
	return &Store{
		standardDir: standardDir,
		extendedDir: extendedDir,
		standardCap: standardCap,
		extendedCap: extendedCap,
		logger:      log.With(slog.String("service", "history")),
	}, nil
}

func (s *Store) path(userID int64, tier Tier) string {
	if tier == TierExtended {
		return filepath.Join(s.extendedDir, fmt.Sprintf("%d_full_history.json", userID))
	}
	return filepath.Join(s.standardDir, fmt.Sprintf("%d_history.json", userID))
}

func (s *Store) cap(tier Tier) int {
	if tier == TierExtended {
		return s.extendedCap
	}
	return s.standardCap
}

// Load returns the user's stored turns for the tier. A missing file is an
// empty log. A corrupt file is also treated as empty: the damage is logged
// for the operator and never surfaces to the end user.
func (s *Store) Load(userID int64, tier Tier) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(userID, tier)
}

func (s *Store) load(userID int64, tier Tier) []Turn {
	var turns []Turn
	err := jsonfile.Read(s.path(userID, tier), &turns)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("history unreadable, starting empty",
				slog.Int64("user_id", userID),
				slog.String("tier", string(tier)),
				slog.Any("error", err),
			)
		}
		return nil
	}
	return turns
}

// Append concatenates turns onto the stored log, trims to the tier cap from
// the front, rewrites the file in full, and returns the persisted sequence.
func (s *Store) Append(userID int64, tier Tier, turns ...Turn) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := append(s.load(userID, tier), turns...)
	if limit := s.cap(tier); len(log) > limit {
		log = log[len(log)-limit:]
	}
	if err := jsonfile.Write(s.path(userID, tier), log); err != nil {
		return nil, fmt.Errorf("persist history for user %d: %w", userID, err)
	}
	return log, nil
}

// Reset deletes the user's durable record for both tiers.
func (s *Store) Reset(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tier := range []Tier{TierStandard, TierExtended} {
		path := s.path(userID, tier)
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("delete %s history for user %d: %w", tier, userID, err)
		}
		s.logger.Info("deleted chat history file",
			slog.Int64("user_id", userID),
			slog.String("tier", string(tier)),
		)
	}
	return nil
}
