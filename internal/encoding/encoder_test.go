package encoding

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalSortsKeys(t *testing.T) {
	out, err := Canonical(map[string]interface{}{
		"b": 1,
		"a": []int{3, 2, 1},
		"c": "<tag>",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":[3,2,1],"b":1,"c":"<tag>"}`, string(out))
}

func TestDigestIsStable(t *testing.T) {
	first, err := Digest(map[string]int{"x": 1, "y": 2})
	require.NoError(t, err)
	second, err := Digest(map[string]int{"y": 2, "x": 1})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(first, "sha256:"))
	assert.Len(t, first, len("sha256:")+64)
}

func TestDatasetDigest(t *testing.T) {
	files := map[string][]byte{
		"members.json": []byte(`[1,2,3]`),
		"other.json":   []byte(`{}`),
	}

	base, err := DatasetDigest("42", files)
	require.NoError(t, err)

	tests := []struct {
		name  string
		dlpID string
		files map[string][]byte
		same  bool
	}{
		{name: "identical dataset", dlpID: "42", files: files, same: true},
		{name: "different pool", dlpID: "43", files: files, same: false},
		{
			name:  "different content",
			dlpID: "42",
			files: map[string][]byte{"members.json": []byte(`[1,2]`), "other.json": []byte(`{}`)},
			same:  false,
		},
		{
			name:  "renamed file",
			dlpID: "42",
			files: map[string][]byte{"members.json": []byte(`[1,2,3]`), "renamed.json": []byte(`{}`)},
			same:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			digest, err := DatasetDigest(tt.dlpID, tt.files)
			require.NoError(t, err)
			if tt.same {
				assert.Equal(t, base, digest)
			} else {
				assert.NotEqual(t, base, digest)
			}
		})
	}
}

func TestWriteResults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")

	path, err := WriteResults(dir, map[string]interface{}{"dlp_id": 42, "valid": true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ResultsFilename), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"dlp_id\": 42")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["valid"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestWriteResultsOverwrites(t *testing.T) {
	dir := t.TempDir()

	_, err := WriteResults(dir, map[string]int{"score": 1})
	require.NoError(t, err)
	path, err := WriteResults(dir, map[string]int{"score": 2})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"score": 2}`, string(data))
}
