package testutil

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Entry describes one tar entry. Names ending in "/" are directories and a
// non-empty Link makes a symlink.
type Entry struct {
	Name string
	Body string
	Mode int64
	Link string
}

// TarGz builds a gzip-compressed tar archive in memory.
func TarGz(t testing.TB, entries []Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, e := range entries {
		header := &tar.Header{Name: e.Name, Mode: e.Mode}
		switch {
		case strings.HasSuffix(e.Name, "/"):
			header.Typeflag = tar.TypeDir
			if header.Mode == 0 {
				header.Mode = 0o755
			}
		case e.Link != "":
			header.Typeflag = tar.TypeSymlink
			header.Linkname = e.Link
			if header.Mode == 0 {
				header.Mode = 0o777
			}
		default:
			header.Typeflag = tar.TypeReg
			header.Size = int64(len(e.Body))
			if header.Mode == 0 {
				header.Mode = 0o644
			}
		}

		if err := tarWriter.WriteHeader(header); err != nil {
			t.Fatalf("failed to write header for %s: %v", e.Name, err)
		}
		if header.Typeflag == tar.TypeReg {
			if _, err := tarWriter.Write([]byte(e.Body)); err != nil {
				t.Fatalf("failed to write content for %s: %v", e.Name, err)
			}
		}
	}

	if err := tarWriter.Close(); err != nil {
		t.Fatalf("failed to close tar writer: %v", err)
	}
	if err := gzipWriter.Close(); err != nil {
		t.Fatalf("failed to close gzip writer: %v", err)
	}

	return buf.Bytes()
}

// NodeArchive builds an archive laid out like an official Node.js tarball,
// with node at {basename}/bin/node holding nodeBody.
func NodeArchive(t testing.TB, basename, nodeBody string) []byte {
	t.Helper()

	return TarGz(t, []Entry{
		{Name: basename + "/"},
		{Name: basename + "/README.md", Body: "Node.js\n"},
		{Name: basename + "/bin/"},
		{Name: basename + "/bin/node", Body: nodeBody, Mode: 0o700},
		{Name: basename + "/bin/npm", Link: "../lib/node_modules/npm/bin/npm-cli.js"},
		{Name: basename + "/include/node/node.h", Body: "#define NODE 1\n"},
	})
}

// ReadTarGz returns the content of every regular file in a tar.gz archive.
func ReadTarGz(t testing.TB, data []byte) map[string]string {
	t.Helper()

	gzipReader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to create gzip reader: %v", err)
	}
	defer gzipReader.Close()

	files := make(map[string]string)
	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read tar header: %v", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		content, err := io.ReadAll(tarReader)
		if err != nil {
			t.Fatalf("failed to read %s: %v", header.Name, err)
		}
		files[header.Name] = string(content)
	}
	return files
}

// RandomString returns n bytes of deterministic, poorly compressible data.
func RandomString(n int, seed int64) string {
	r := rand.New(rand.NewSource(seed))
	b := make([]byte, n)
	r.Read(b)
	return string(b)
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
