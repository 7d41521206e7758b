package nodedist

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// stageError tags an error with the pipeline stage that produced it
type stageError struct {
	stage Stage
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// readErr attributes a read failure to the network when the body itself failed,
// otherwise to decompression or archive parsing
func readErr(body *bodyReader, err error) error {
	if body.err != nil {
		return &stageError{stage: StageNetwork, err: err}
	}
	return &stageError{stage: StageDecode, err: err}
}

func writeErr(err error) error {
	return &stageError{stage: StageWrite, err: err}
}

// cleanEntryName normalizes a tar header name for comparison
func cleanEntryName(name string) string {
	name = strings.TrimPrefix(name, "./")
	if name == "" {
		return ""
	}
	return path.Clean(name)
}

func isRegular(header *tar.Header) bool {
	//nolint:staticcheck // TypeRegA is still produced by old archivers
	return header.Typeflag == tar.TypeReg || header.Typeflag == tar.TypeRegA
}

// extractEntry reads a tar.gz stream from in and copies the one regular entry
// named want into a temporary file beside dest. Every other entry is skipped
// by advancing the tar reader. The archive is read to the end so duplicates
// and trailing corruption are detected. It returns the unpublished temp path.
func extractEntry(body *bodyReader, in io.Reader, want, dest string) (tmp string, written int64, err error) {
	gzipReader, err := gzip.NewReader(in)
	if err != nil {
		return "", 0, readErr(body, fmt.Errorf("create gzip reader: %w", err))
	}
	defer gzipReader.Close()

	var tmpPath string
	defer func() {
		if err != nil && tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	tarReader := tar.NewReader(gzipReader)
	matched := false

	for {
		header, nextErr := tarReader.Next()
		if nextErr == io.EOF {
			break
		}
		if nextErr != nil {
			return "", 0, readErr(body, fmt.Errorf("read tar header: %w", nextErr))
		}

		if cleanEntryName(header.Name) != want {
			continue
		}
		if matched {
			return "", 0, &stageError{stage: StageDecode, err: fmt.Errorf("%w: %s", ErrDuplicateEntry, want)}
		}
		if !isRegular(header) {
			return "", 0, &stageError{stage: StageDecode, err: fmt.Errorf("entry %s is not a regular file", header.Name)}
		}
		matched = true

		tmpPath, written, err = copyEntry(body, tarReader, dest)
		if err != nil {
			return "", 0, err
		}
	}

	if !matched {
		return "", 0, &stageError{stage: StageDecode, err: fmt.Errorf("%w: %s", ErrEntryNotFound, want)}
	}

	// Drain tar padding and the gzip trailer so the CRC is checked
	if _, err := io.Copy(io.Discard, gzipReader); err != nil {
		return "", 0, readErr(body, fmt.Errorf("read gzip trailer: %w", err))
	}

	return tmpPath, written, nil
}

// copyEntry copies r into a new temporary file in dest's directory
func copyEntry(body *bodyReader, r io.Reader, dest string) (string, int64, error) {
	destDir := filepath.Dir(dest)
	if err := os.MkdirAll(destDir, dirPerm); err != nil {
		return "", 0, writeErr(fmt.Errorf("create dest dir: %w", err))
	}

	tmpFile, err := os.CreateTemp(destDir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return "", 0, writeErr(fmt.Errorf("create temp file: %w", err))
	}
	tmpPath := tmpFile.Name()

	w := &errWriter{w: tmpFile}
	n, err := io.Copy(w, r)
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		if w.err != nil {
			return "", 0, writeErr(fmt.Errorf("write file: %w", err))
		}
		return "", 0, readErr(body, fmt.Errorf("read entry: %w", err))
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", 0, writeErr(fmt.Errorf("sync temp file: %w", err))
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", 0, writeErr(fmt.Errorf("close temp file: %w", err))
	}

	return tmpPath, n, nil
}
