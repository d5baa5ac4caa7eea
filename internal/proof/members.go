package proof

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/contribution-proof/internal/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MembersFilename is the only dataset file whose contents feed the scores
const MembersFilename = "members.json"

const membersSchemaURL = "https://contribution-proof.local/schemas/members.schema.json"

var membersSchema = jsonschema.MustCompileString(membersSchemaURL, `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "array"
}`)

// MembersScan is the outcome of scanning an input directory for the members file.
// It is either MembersFound or MembersNotFound.
type MembersScan interface {
	isMembersScan()
}

// MembersFound carries the parsed member records
type MembersFound struct {
	Path    string
	Records []json.RawMessage
}

// MembersNotFound means no members file was present
type MembersNotFound struct{}

func (MembersFound) isMembersScan()    {}
func (MembersNotFound) isMembersScan() {}

// ScanInput parses every .json file in dir and captures the members list.
// Any unreadable or malformed JSON file fails the scan.
func ScanInput(dir string) (MembersScan, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewFilesystemError("failed to read input directory", dir, err)
	}

	var scan MembersScan = MembersNotFound{}
	for _, entry := range entries {
		if entry.IsDir() || !isJSONFile(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewFilesystemError("failed to read input file", path, err)
		}

		if entry.Name() != MembersFilename {
			var discard json.RawMessage
			if err := json.Unmarshal(data, &discard); err != nil {
				return nil, errors.NewParseError(path, err)
			}
			continue
		}

		records, err := parseMembers(data)
		if err != nil {
			return nil, errors.NewParseError(path, err)
		}
		scan = MembersFound{Path: path, Records: records}
	}

	return scan, nil
}

func isJSONFile(name string) bool {
	return strings.ToLower(filepath.Ext(name)) == ".json"
}

func parseMembers(data []byte) ([]json.RawMessage, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	if err := membersSchema.Validate(doc); err != nil {
		return nil, err
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}
