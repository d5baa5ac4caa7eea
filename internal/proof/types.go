package proof

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DLPID identifies the data liquidity pool a proof is generated for. It is opaque:
// integer and string identifiers both serialise back exactly as supplied.
type DLPID struct {
	literal string // JSON encoding of the identifier
}

// IntDLPID returns an integer identifier
func IntDLPID(id int64) DLPID {
	return DLPID{literal: strconv.FormatInt(id, 10)}
}

// StringDLPID returns a string identifier
func StringDLPID(id string) DLPID {
	b, _ := json.Marshal(id)
	return DLPID{literal: string(b)}
}

// ParseDLPID reads an identifier from configuration text. Base-10 integers become
// integer identifiers, anything else is kept as a string.
func ParseDLPID(s string) DLPID {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntDLPID(n)
	}
	return StringDLPID(s)
}

// IsZero reports whether the identifier was never set
func (d DLPID) IsZero() bool {
	return d.literal == ""
}

// IsInteger reports whether the identifier is numeric
func (d DLPID) IsInteger() bool {
	return d.literal != "" && d.literal[0] != '"'
}

// String returns the identifier without JSON quoting
func (d DLPID) String() string {
	if !d.IsInteger() && d.literal != "" {
		var s string
		if err := json.Unmarshal([]byte(d.literal), &s); err == nil {
			return s
		}
	}
	return d.literal
}

// MarshalJSON implements json.Marshaler
func (d DLPID) MarshalJSON() ([]byte, error) {
	if d.literal == "" {
		return []byte("null"), nil
	}
	return []byte(d.literal), nil
}

// UnmarshalJSON accepts a JSON integer or string
func (d *DLPID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = DLPID{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("dlp_id: %w", err)
		}
		*d = StringDLPID(s)
		return nil
	}

	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("dlp_id must be an integer or a string, got %s", data)
	}
	*d = IntDLPID(n)
	return nil
}

// ProofResponse is the proof of contribution produced for one dataset.
// Field order matches the published results document.
type ProofResponse struct {
	DLPID        DLPID          `json:"dlp_id"`
	Valid        bool           `json:"valid"`
	Score        float64        `json:"score"`
	Authenticity float64        `json:"authenticity"`
	Ownership    float64        `json:"ownership"`
	Quality      float64        `json:"quality"`
	Uniqueness   float64        `json:"uniqueness"`
	Attributes   map[string]any `json:"attributes"`
	Metadata     map[string]any `json:"metadata"`
}

// NewProofResponse creates an empty response bound to dlpID
func NewProofResponse(dlpID DLPID) *ProofResponse {
	return &ProofResponse{
		DLPID:      dlpID,
		Attributes: map[string]any{},
		Metadata:   map[string]any{},
	}
}

// FamilySize returns the family_size attribute, or -1 when it is absent
func (r *ProofResponse) FamilySize() int {
	switch v := r.Attributes[AttributeFamilySize].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return -1
		}
		return int(n)
	default:
		return -1
	}
}

// Config holds the inputs of a single proof run
type Config struct {
	InputDir string
	DLPID    DLPID
}
