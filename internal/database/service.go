package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/contribution-proof/internal/proof"
)

// Listing bounds for recent runs
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// HistoryService records proof runs and answers history queries
type HistoryService struct {
	repo   *Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewHistoryService creates a new history service
func NewHistoryService(repo *Repository, logger *slog.Logger) *HistoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// RecordProof stores a generated proof together with the digest of the dataset it scored
func (s *HistoryService) RecordProof(ctx context.Context, resp *proof.ProofResponse, digest, source string) (*ProofRun, error) {
	body, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proof response: %w", err)
	}

	run := NewProofRun(source)
	run.CreatedAt = s.now().UTC()
	run.DLPID = resp.DLPID.String()
	run.Score = resp.Score
	run.Valid = resp.Valid
	run.FamilySize = resp.FamilySize()
	run.Digest = digest
	run.Response = body

	if err := s.repo.SaveRun(ctx, run); err != nil {
		return nil, err
	}

	s.logger.Debug("Proof run recorded", "id", run.ID, "source", source, "digest", digest)
	return run, nil
}

// Get returns one recorded run
func (s *HistoryService) Get(ctx context.Context, id string) (*ProofRun, error) {
	return s.repo.GetRun(ctx, id)
}

// Recent returns the newest runs. Limits outside 1..MaxListLimit are clamped.
func (s *HistoryService) Recent(ctx context.Context, limit int) ([]*ProofRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.repo.ListRuns(ctx, limit)
}

// Stats returns aggregate counts over the history
func (s *HistoryService) Stats(ctx context.Context) (*RunStats, error) {
	return s.repo.Stats(ctx)
}

// Purge removes runs older than retentionDays. Zero keeps everything.
func (s *HistoryService) Purge(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays)
	removed, err := s.repo.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.logger.Info("Purged expired proof runs", "removed", removed, "retention_days", retentionDays)
	}
	return removed, nil
}

// RunRetention purges once immediately and then on every interval until ctx is done
func (s *HistoryService) RunRetention(ctx context.Context, retentionDays int, interval time.Duration) {
	purge := func() {
		if _, err := s.Purge(ctx, retentionDays); err != nil {
			s.logger.Error("Retention purge failed", "error", err)
		}
	}

	purge()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge()
		}
	}
}
