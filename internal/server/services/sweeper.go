package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/shareguard/shareguard/internal/logging"
	"github.com/shareguard/shareguard/internal/server/repositories/repomanager"
	"github.com/shareguard/shareguard/internal/server/storage"
)

// Sweeper reclaims orphan ciphertext blobs: objects in the blob store that
// no file registry row references. Orphans appear when an upload fails
// after the blob write, or when a blob delete fails after the row delete.
//
// A blob is only removed after it has been seen unreferenced on two
// consecutive passes. The first sighting may be an upload whose registry
// row simply has not committed yet; a blob still unreferenced a full
// interval later is garbage.
type Sweeper struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       *storage.Store
	logger      logging.Logger
	interval    time.Duration

	// candidates holds blob names seen unreferenced on the previous pass.
	candidates map[string]struct{}
}

func NewSweeper(db *sql.DB, repomanager repomanager.RepositoryManager, store *storage.Store, interval time.Duration, logger logging.Logger) *Sweeper {
	return &Sweeper{
		db:          db,
		repomanager: repomanager,
		store:       store,
		logger:      logger,
		interval:    interval,
		candidates:  make(map[string]struct{}),
	}
}

// SweepOnce runs a single pass: lists all blobs, deletes the ones that were
// already unreferenced on the previous pass and still are, and remembers
// the rest of the unreferenced ones for the next pass. Returns the number
// of blobs deleted.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	names, err := s.store.ListBlobs(ctx)
	if err != nil {
		return 0, err
	}

	fileRepo := s.repomanager.Files(s.db)
	next := make(map[string]struct{})
	deleted := 0

	for _, name := range names {
		referenced, err := fileRepo.StoredNameExists(ctx, name)
		if err != nil {
			return deleted, err
		}
		if referenced {
			continue
		}
		if _, seenBefore := s.candidates[name]; !seenBefore {
			next[name] = struct{}{}
			continue
		}
		if err := s.store.Delete(ctx, name); err != nil {
			s.logger.Warn(ctx, "orphan blob delete failed", "name", name, "error", err)
			next[name] = struct{}{}
			continue
		}
		s.logger.Info(ctx, "orphan blob removed", "name", name)
		deleted++
	}

	s.candidates = next
	return deleted, nil
}

// Run executes SweepOnce every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.logger.Error(ctx, "blob sweep failed", "error", err)
			}
		}
	}
}
