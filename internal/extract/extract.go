// Package extract unpacks zip archives found in a dataset directory.
package extract

import (
	"archive/zip"
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/contribution-proof/internal/errors"
)

var zipMagic = [][]byte{
	[]byte("PK\x03\x04"),
	[]byte("PK\x05\x06"), // empty archive
}

// Extractor unpacks archives in place
type Extractor struct {
	// MaxBytes caps the total uncompressed size per archive, zero disables the cap
	MaxBytes int64
	logger   *slog.Logger
}

// NewExtractor creates an extractor
func NewExtractor(maxBytes int64, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{MaxBytes: maxBytes, logger: logger}
}

// Archives extracts every zip archive directly inside dir into dir and
// returns the names of the archives it unpacked. Archives are detected by
// content, not by extension.
func (e *Extractor) Archives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewFilesystemError("failed to read input directory", dir, err)
	}

	var extracted []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		ok, err := isZip(path)
		if err != nil {
			return extracted, errors.NewFilesystemError("failed to inspect input file", path, err)
		}
		if !ok {
			continue
		}

		count, err := e.extractArchive(path, dir)
		if err != nil {
			return extracted, err
		}

		e.logger.Info("Extracted archive", "archive", entry.Name(), "files", count)
		extracted = append(extracted, entry.Name())
	}

	return extracted, nil
}

func isZip(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	header := make([]byte, 4)
	if _, err := io.ReadFull(f, header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		return false, err
	}

	for _, magic := range zipMagic {
		if bytes.Equal(header, magic) {
			return true, nil
		}
	}
	return false, nil
}

func (e *Extractor) extractArchive(archivePath, dest string) (int, error) {
	reader, err := zip.OpenReader(archivePath)
	if stderrors.Is(err, zip.ErrInsecurePath) {
		errors.SafeClose(reader, archivePath)
		return 0, errors.NewValidationError("archive entry escapes the input directory", archivePath)
	}
	if err != nil {
		return 0, errors.NewParseError(archivePath, fmt.Errorf("invalid zip archive: %w", err))
	}
	defer errors.SafeClose(reader, archivePath)

	var written int64
	count := 0
	for _, file := range reader.File {
		if !filepath.IsLocal(file.Name) {
			return count, errors.NewValidationError("archive entry escapes the input directory", file.Name)
		}

		target := filepath.Join(dest, filepath.FromSlash(file.Name))
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return count, errors.NewFilesystemError("failed to create directory", target, err)
			}
			continue
		}

		n, err := e.extractFile(file, target, written)
		if err != nil {
			return count, err
		}
		written += n
		count++
	}

	return count, nil
}

func (e *Extractor) extractFile(file *zip.File, target string, alreadyWritten int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return 0, errors.NewFilesystemError("failed to create directory", filepath.Dir(target), err)
	}

	src, err := file.Open()
	if err != nil {
		return 0, errors.NewParseError(file.Name, fmt.Errorf("failed to open archive entry: %w", err))
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, errors.NewFilesystemError("failed to create extracted file", target, err)
	}
	defer errors.SafeClose(dst, target)

	var r io.Reader = src
	if e.MaxBytes > 0 {
		// one byte over the remaining budget is enough to detect an overflow
		r = io.LimitReader(src, e.MaxBytes-alreadyWritten+1)
	}

	n, err := io.Copy(dst, r)
	if err != nil {
		return n, errors.NewFilesystemError("failed to extract archive entry", target, err)
	}
	if e.MaxBytes > 0 && alreadyWritten+n > e.MaxBytes {
		return n, errors.NewValidationError("archive exceeds the extraction size limit", fmt.Sprintf("%d bytes", e.MaxBytes))
	}
	return n, nil
}
