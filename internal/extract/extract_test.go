package extract

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/contribution-proof/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func TestArchivesExtractsInPlace(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, filepath.Join(dir, "dataset.zip"), map[string]string{
		"members.json":     `[{"name":"a"}]`,
		"extra/notes.json": `{}`,
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plain.json"), []byte(`{}`), 0644))

	extracted, err := NewExtractor(0, nil).Archives(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"dataset.zip"}, extracted)

	data, err := os.ReadFile(filepath.Join(dir, "members.json"))
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"a"}]`, string(data))
	assert.FileExists(t, filepath.Join(dir, "extra", "notes.json"))
}

func TestArchivesDetectsZipByContent(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, filepath.Join(dir, "upload.bin"), map[string]string{"members.json": `[]`})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fake.zip"), []byte("not an archive"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny"), []byte("P"), 0644))

	extracted, err := NewExtractor(0, nil).Archives(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"upload.bin"}, extracted)
	assert.FileExists(t, filepath.Join(dir, "members.json"))
}

func TestArchivesRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	inner := filepath.Join(dir, "input")
	require.NoError(t, os.Mkdir(inner, 0755))
	writeZip(t, filepath.Join(inner, "evil.zip"), map[string]string{"../escaped.json": `{}`})

	_, err := NewExtractor(0, nil).Archives(inner)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.NoFileExists(t, filepath.Join(dir, "escaped.json"))
}

func TestArchivesEnforcesSizeLimit(t *testing.T) {
	dir := t.TempDir()
	writeZip(t, filepath.Join(dir, "big.zip"), map[string]string{
		"members.json": "[" + strings.Repeat("1,", 100) + "1]",
	})

	_, err := NewExtractor(64, nil).Archives(dir)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestArchivesMissingDirectory(t *testing.T) {
	_, err := NewExtractor(0, nil).Archives(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFilesystem))
}
