// Package proof computes the proof of contribution for a submitted dataset.
package proof

import (
	"log/slog"

	"github.com/ZanzyTHEbar/contribution-proof/internal/errors"
)

// Generator scores datasets
type Generator struct {
	logger *slog.Logger
}

// NewGenerator creates a generator logging to logger, or to the default logger when nil
func NewGenerator(logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{logger: logger}
}

// Generate scans cfg.InputDir and returns the proof for the dataset it holds.
// It fails without a partial result when the members file is missing or any
// JSON file cannot be read or parsed.
func (g *Generator) Generate(cfg Config) (*ProofResponse, error) {
	g.logger.Info("Starting proof generation...")

	scan, err := ScanInput(cfg.InputDir)
	if err != nil {
		return nil, err
	}

	var members MembersFound
	switch s := scan.(type) {
	case MembersFound:
		members = s
	case MembersNotFound:
		return nil, errors.NewMissingInputError(MembersFilename, cfg.InputDir)
	}

	familySize := len(members.Records)
	scores := ScoreMembers(familySize)

	resp := NewProofResponse(cfg.DLPID)
	resp.Authenticity = scores.Authenticity
	resp.Ownership = scores.Ownership
	resp.Quality = scores.Quality
	resp.Uniqueness = scores.Uniqueness

	resp.Score = AggregateScore(resp.Quality, resp.Ownership)
	resp.Valid = IsValid(resp.Score)

	resp.Attributes[AttributeFamilySize] = familySize
	resp.Metadata[MetadataDLPID] = cfg.DLPID

	g.logger.Debug("Proof scored",
		"members_file", members.Path,
		"family_size", familySize,
		"score", resp.Score,
		"valid", resp.Valid,
	)

	return resp, nil
}
