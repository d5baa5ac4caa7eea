package database

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Run sources
const (
	SourceJob = "job"
	SourceAPI = "api"
)

// ProofRun is one recorded proof generation
type ProofRun struct {
	ID         string          `json:"id" db:"id"`
	DLPID      string          `json:"dlp_id" db:"dlp_id"`
	Score      float64         `json:"score" db:"score"`
	Valid      bool            `json:"valid" db:"valid"`
	FamilySize int             `json:"family_size" db:"family_size"`
	Digest     string          `json:"digest" db:"digest"`
	Response   json.RawMessage `json:"response" db:"response"`
	Source     string          `json:"source" db:"source"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// RunStats summarises the recorded history
type RunStats struct {
	Total        int            `json:"total"`
	Valid        int            `json:"valid"`
	AverageScore float64        `json:"average_score"`
	BySource     map[string]int `json:"by_source"`
}

// NewProofRun creates a run record with a generated ID
func NewProofRun(source string) *ProofRun {
	return &ProofRun{
		ID:        uuid.New().String(),
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
}
