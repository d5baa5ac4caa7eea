package types

import (
	"github.com/ZanzyTHEbar/contribution-proof/internal/database"
	"github.com/ZanzyTHEbar/contribution-proof/internal/proof"
)

// ProofRequestForm documents the multipart fields accepted by POST /v1/proofs
type ProofRequestForm struct {
	// Files are the dataset files; zip archives are unpacked before scanning
	Files []string `form:"files" binding:"required"`
	// DLPID overrides the configured pool identifier
	DLPID string `form:"dlp_id"`
}

// ProofCreatedResponse is returned for a generated or cached proof
type ProofCreatedResponse struct {
	ID     string               `json:"id"`
	Digest string               `json:"digest"`
	Cached bool                 `json:"cached"`
	Proof  *proof.ProofResponse `json:"proof"`
}

// RunListResponse lists recorded proof runs, newest first
type RunListResponse struct {
	Runs  []*database.ProofRun `json:"runs"`
	Count int                  `json:"count"`
}

// HealthResponse reports service liveness
type HealthResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Timestamp string                 `json:"timestamp"`
	Metrics   map[string]interface{} `json:"metrics"`
}

// StatsResponse aggregates history and runtime statistics
type StatsResponse struct {
	History     *database.RunStats     `json:"history"`
	Metrics     map[string]interface{} `json:"metrics"`
	RateLimit   map[string]interface{} `json:"rate_limit,omitempty"`
	Cache       map[string]interface{} `json:"cache,omitempty"`
	Database    map[string]interface{} `json:"database,omitempty"`
	Compression map[string]interface{} `json:"compression,omitempty"`
}
