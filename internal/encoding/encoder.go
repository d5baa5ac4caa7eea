package encoding

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gowebpki/jcs"
)

// ResultsFilename is the document the proof job publishes
const ResultsFilename = "results.json"

// Canonical returns the RFC 8785 canonical JSON form of v
func Canonical(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal failed: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: transform failed: %w", err)
	}
	return canonical, nil
}

// Digest returns the sha256 digest of the canonical form of v
func Digest(v interface{}) (string, error) {
	canonical, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return HashBytes(canonical), nil
}

// HashBytes returns a "sha256:"-prefixed hex digest
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// DatasetDigest identifies a dataset by its file names and contents together
// with the pool it is scored for. File order does not matter.
func DatasetDigest(dlpID string, files map[string][]byte) (string, error) {
	manifest := make(map[string]string, len(files))
	for name, content := range files {
		manifest[name] = HashBytes(content)
	}

	return Digest(map[string]interface{}{
		"dlp_id": dlpID,
		"files":  manifest,
	})
}

// WriteResults writes v as indented JSON to dir/results.json, replacing any
// previous file atomically. It returns the path written.
func WriteResults(dir string, v interface{}) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".results-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create results file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write results file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close results file: %w", err)
	}

	path := filepath.Join(dir, ResultsFilename)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move results file into place: %w", err)
	}
	return path, nil
}
