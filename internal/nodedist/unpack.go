package nodedist

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

// EnsureUnpacked makes destDir hold the tree found under stripPrefix in the
// tar.gz at url. If destDir already exists nothing is fetched. The tree is
// extracted into a temporary sibling directory and renamed into place only
// after the whole archive has been read.
func (f *Fetcher) EnsureUnpacked(ctx context.Context, url, stripPrefix, destDir string) (*Result, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	return f.guard(ctx, destDir, func(ctx context.Context, destDir string) (*Result, error) {
		return f.unpack(ctx, url, stripPrefix, destDir)
	})
}

func (f *Fetcher) unpack(ctx context.Context, url, stripPrefix, destDir string) (*Result, error) {
	fail := func(stage Stage, err error) error {
		return &FetchError{Stage: stage, Dest: destDir, URL: url, Err: err}
	}

	f.logger.InfoContext(ctx, "directory not found, fetching", "dest", destDir, "url", url)

	resp, err := f.get(ctx, url)
	if err != nil {
		return nil, fail(StageNetwork, err)
	}
	defer resp.Body.Close()

	body := newBodyReader(resp.Body, resp.ContentLength, progressLogger(ctx, f.logger, url))

	parent := filepath.Dir(destDir)
	if err := os.MkdirAll(parent, dirPerm); err != nil {
		return nil, fail(StageWrite, fmt.Errorf("create dest dir: %w", err))
	}
	tmpDir, err := os.MkdirTemp(parent, "."+filepath.Base(destDir)+".*.tmp")
	if err != nil {
		return nil, fail(StageWrite, fmt.Errorf("create temp dir: %w", err))
	}
	published := false
	defer func() {
		if !published {
			os.RemoveAll(tmpDir)
		}
	}()

	written, err := extractTree(body, stripPrefix, tmpDir)
	if err != nil {
		return nil, failStaged(fail, err)
	}

	if err := os.Chmod(tmpDir, dirPerm); err != nil {
		return nil, fail(StageWrite, fmt.Errorf("chmod temp dir: %w", err))
	}
	if err := os.Rename(tmpDir, destDir); err != nil {
		return nil, fail(StageWrite, fmt.Errorf("rename temp dir: %w", err))
	}
	published = true

	f.logger.InfoContext(ctx, "unpacked archive",
		"dest", destDir,
		"size", humanize.Bytes(uint64(written)),
		"downloaded", humanize.Bytes(uint64(body.read)))

	return &Result{
		Path:       destDir,
		Written:    written,
		Downloaded: body.read,
	}, nil
}

// extractTree extracts the entries under prefix into destDir.
// Directories, regular files and symlinks pointing inside the tree are kept;
// other entry types are skipped. Every filesystem operation goes through an
// *os.Root, so an entry can never be written through a symlink that leaves
// the tree, including chains of links that each look harmless on their own.
func extractTree(body *bodyReader, prefix, destDir string) (int64, error) {
	gzipReader, err := gzip.NewReader(body)
	if err != nil {
		return 0, readErr(body, fmt.Errorf("create gzip reader: %w", err))
	}
	defer gzipReader.Close()

	root, err := os.OpenRoot(destDir)
	if err != nil {
		return 0, writeErr(fmt.Errorf("open temp dir: %w", err))
	}
	defer root.Close()

	tree := &treeWriter{root: root, dir: filepath.Clean(destDir)}

	tarReader := tar.NewReader(gzipReader)
	prefix = strings.Trim(cleanEntryName(prefix), "/")

	var written int64
	files := 0

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, readErr(body, fmt.Errorf("read tar header: %w", err))
		}

		rel, ok := stripEntryPrefix(cleanEntryName(header.Name), prefix)
		if !ok {
			continue
		}

		// Security check: prevent path traversal
		target := filepath.Join(tree.dir, filepath.FromSlash(rel))
		if !strings.HasPrefix(target, tree.dir+string(os.PathSeparator)) {
			return 0, &stageError{stage: StageDecode, err: fmt.Errorf("illegal file path: %s", header.Name)}
		}
		name := filepath.FromSlash(rel)

		switch {
		case header.Typeflag == tar.TypeDir:
			if err := root.MkdirAll(name, dirPerm); err != nil {
				return 0, tree.fail(name, fmt.Errorf("create directory %s: %w", rel, err))
			}

		case isRegular(header):
			n, err := tree.writeFile(body, tarReader, name, os.FileMode(header.Mode)&0777|0600)
			if err != nil {
				return 0, err
			}
			written += n
			files++

		case header.Typeflag == tar.TypeSymlink:
			if !symlinkInside(tree.dir, target, header.Linkname) {
				return 0, &stageError{stage: StageDecode, err: fmt.Errorf("illegal symlink target: %s -> %s", header.Name, header.Linkname)}
			}
			if err := tree.mkdirParent(name); err != nil {
				return 0, err
			}
			if err := root.Symlink(header.Linkname, name); err != nil {
				return 0, tree.fail(name, fmt.Errorf("create symlink %s: %w", rel, err))
			}

		default:
			// Skip other types (hard links, devices, fifos)
			continue
		}
	}

	if files == 0 {
		return 0, &stageError{stage: StageDecode, err: fmt.Errorf("%w: no files under %s/", ErrEntryNotFound, prefix)}
	}

	if _, err := io.Copy(io.Discard, gzipReader); err != nil {
		return 0, readErr(body, fmt.Errorf("read gzip trailer: %w", err))
	}

	if err := tree.checkLinks(); err != nil {
		return 0, err
	}

	return written, nil
}

// stripEntryPrefix returns name relative to prefix, false when name lies outside it
func stripEntryPrefix(name, prefix string) (string, bool) {
	if prefix == "" {
		return name, name != "" && name != "."
	}
	rel, ok := strings.CutPrefix(name, prefix+"/")
	if !ok || rel == "" {
		return "", false
	}
	return rel, true
}

// symlinkInside reports whether a relative link at target resolves within root
func symlinkInside(root, target, link string) bool {
	if link == "" || path.IsAbs(link) || filepath.IsAbs(link) {
		return false
	}
	resolved := filepath.Join(filepath.Dir(target), filepath.FromSlash(link))
	return resolved == root || strings.HasPrefix(resolved, root+string(os.PathSeparator))
}

// treeWriter creates entries below dir through root
type treeWriter struct {
	root *os.Root
	dir  string
}

func (t *treeWriter) mkdirParent(name string) error {
	parent := filepath.Dir(name)
	if parent == "." {
		return nil
	}
	if err := t.root.MkdirAll(parent, dirPerm); err != nil {
		return t.fail(name, fmt.Errorf("create parent dir for %s: %w", name, err))
	}
	return nil
}

func (t *treeWriter) writeFile(body *bodyReader, r io.Reader, name string, mode os.FileMode) (int64, error) {
	if err := t.mkdirParent(name); err != nil {
		return 0, err
	}

	outFile, err := t.root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, t.fail(name, fmt.Errorf("create file %s: %w", name, err))
	}

	w := &errWriter{w: outFile}
	n, err := io.Copy(w, r)
	if err != nil {
		outFile.Close()
		if w.err != nil {
			return 0, writeErr(fmt.Errorf("write file %s: %w", name, err))
		}
		return 0, readErr(body, fmt.Errorf("read entry %s: %w", name, err))
	}

	if err := outFile.Close(); err != nil {
		return 0, writeErr(fmt.Errorf("close file %s: %w", name, err))
	}
	// OpenFile modes are subject to umask
	if err := t.root.Chmod(name, mode); err != nil {
		return 0, t.fail(name, fmt.Errorf("chmod %s: %w", name, err))
	}
	return n, nil
}

// fail classifies a failed root operation. Paths that resolve outside the
// tree are archive defects, anything else is a filesystem failure.
func (t *treeWriter) fail(name string, err error) error {
	if t.escapes(filepath.Join(t.dir, name)) {
		return &stageError{stage: StageDecode, err: fmt.Errorf("illegal file path: %s resolves outside the archive root", filepath.ToSlash(name))}
	}
	return writeErr(err)
}

// escapes reports whether the deepest existing ancestor of p resolves outside dir
func (t *treeWriter) escapes(p string) bool {
	realDir, err := filepath.EvalSymlinks(t.dir)
	if err != nil {
		return false
	}
	for p != t.dir && strings.HasPrefix(p, t.dir+string(os.PathSeparator)) {
		resolved, err := filepath.EvalSymlinks(p)
		if err == nil {
			return !within(realDir, resolved)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return false
		}
		p = filepath.Dir(p)
	}
	return false
}

// checkLinks rejects the tree when any extracted symlink resolves outside it.
// Dangling links are kept; they were checked lexically when created.
func (t *treeWriter) checkLinks() error {
	realDir, err := filepath.EvalSymlinks(t.dir)
	if err != nil {
		return writeErr(fmt.Errorf("resolve temp dir: %w", err))
	}
	return filepath.WalkDir(t.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return writeErr(err)
		}
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil {
			return nil
		}
		if !within(realDir, resolved) {
			rel, _ := filepath.Rel(t.dir, p)
			return &stageError{stage: StageDecode, err: fmt.Errorf("illegal symlink target: %s resolves outside the archive root", filepath.ToSlash(rel))}
		}
		return nil
	})
}

func within(dir, p string) bool {
	return p == dir || strings.HasPrefix(p, dir+string(os.PathSeparator))
}
