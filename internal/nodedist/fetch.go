package nodedist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTimeout bounds a whole EnsureDownloaded or EnsureUnpacked call
	DefaultTimeout = 10 * time.Minute
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "wsbuild/1.0"
	// ExecutableMode is the mode of every file published by EnsureDownloaded
	ExecutableMode os.FileMode = 0755

	dirPerm = 0755
)

// Options configures a Fetcher.
type Options struct {
	// Client performs the requests. Defaults to a plain http.Client.
	Client *http.Client
	// Logger receives progress and lifecycle messages. Defaults to a no-op logger.
	Logger    Logger
	UserAgent string
	// Timeout bounds each call including lock waits. Zero selects DefaultTimeout,
	// a negative value disables the bound.
	Timeout time.Duration
	// Verify checks the archive against the release's SHASUMS256.txt.
	Verify bool
	// Keyring, when set with Verify, requires SHASUMS256.txt to carry a valid
	// detached signature from one of its keys.
	Keyring openpgp.EntityList
	// LockPoll is the cross-process lock retry interval.
	LockPoll time.Duration
	// LockDir holds the cross-process lock files. Defaults to os.TempDir()/wsbuild-locks.
	LockDir string
}

// Fetcher downloads release archives and extracts them to the local filesystem.
// It is safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	logger    Logger
	userAgent string
	timeout   time.Duration
	verify    bool
	keyring   openpgp.EntityList
	lockPoll  time.Duration
	lockDir   string
	flight    singleflight.Group
}

// NewFetcher creates a new fetcher
func NewFetcher(opts Options) *Fetcher {
	f := &Fetcher{
		client:    opts.Client,
		logger:    opts.Logger,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
		verify:    opts.Verify,
		keyring:   opts.Keyring,
		lockPoll:  opts.LockPoll,
		lockDir:   opts.LockDir,
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.logger == nil {
		f.logger = noopLogger{}
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.timeout == 0 {
		f.timeout = DefaultTimeout
	}
	return f
}

// EnsureDownloaded makes dest hold the node executable of rel.
//
// If dest already exists nothing is fetched. Otherwise the release archive is
// streamed through gzip and tar, the single entry at rel.EntryPath() is copied
// to a temporary file beside dest, and that file is published at dest with
// mode 0755 once the whole archive has been read. On failure dest is left
// untouched and the returned error is a *FetchError naming the failed stage.
func (f *Fetcher) EnsureDownloaded(ctx context.Context, rel Release, dest string) (*Result, error) {
	ctx, cancel := f.withTimeout(ctx)
	defer cancel()

	return f.guard(ctx, dest, func(ctx context.Context, dest string) (*Result, error) {
		return f.download(ctx, rel, dest)
	})
}

func (f *Fetcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout < 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}

// download performs the fetch with the per-path guard already held
func (f *Fetcher) download(ctx context.Context, rel Release, dest string) (*Result, error) {
	url := rel.ArchiveURL()
	fail := func(stage Stage, err error) error {
		return &FetchError{Stage: stage, Dest: dest, URL: url, Err: err}
	}

	f.logger.InfoContext(ctx, "node not found, fetching", "dest", dest, "url", url)

	var expected string
	verified := VerificationNone
	if f.verify {
		sum, method, stage, err := f.expectedChecksum(ctx, rel)
		if err != nil {
			return nil, fail(stage, err)
		}
		expected, verified = sum, method
	}

	resp, err := f.get(ctx, url)
	if err != nil {
		return nil, fail(StageNetwork, err)
	}
	defer resp.Body.Close()

	body := newBodyReader(resp.Body, resp.ContentLength, progressLogger(ctx, f.logger, url))
	var in io.Reader = body
	var hasher hash.Hash
	if expected != "" {
		hasher = sha256.New()
		in = io.TeeReader(body, hasher)
	}

	tmpPath, written, err := extractEntry(body, in, rel.EntryPath(), dest)
	if err != nil {
		return nil, failStaged(fail, err)
	}
	// From here on tmpPath must be removed unless it is published
	published := false
	defer func() {
		if !published {
			os.Remove(tmpPath)
		}
	}()

	if hasher != nil {
		// Trailing bytes after the gzip stream are part of the checksum
		if _, err := io.Copy(io.Discard, in); err != nil {
			return nil, fail(StageNetwork, fmt.Errorf("read response body: %w", err))
		}
		actual := hex.EncodeToString(hasher.Sum(nil))
		if actual != expected {
			return nil, fail(StageVerify, fmt.Errorf("%w for %s:\nactual:   %s\nexpected: %s",
				ErrChecksumMismatch, rel.Filename(), actual, expected))
		}
	}

	if err := publishFile(tmpPath, dest); err != nil {
		return nil, fail(StageWrite, err)
	}
	published = true

	f.logger.InfoContext(ctx, "fetched node",
		"dest", dest,
		"size", humanize.Bytes(uint64(written)),
		"downloaded", humanize.Bytes(uint64(body.read)),
		"verified", verified.String())

	return &Result{
		Path:       dest,
		Written:    written,
		Downloaded: body.read,
		Verified:   verified,
	}, nil
}

// expectedChecksum downloads SHASUMS256.txt (and its signature when a keyring
// is configured) and returns the archive's expected SHA-256
func (f *Fetcher) expectedChecksum(ctx context.Context, rel Release) (string, VerificationMethod, Stage, error) {
	shasums, err := f.fetchSmall(ctx, rel.ShasumsURL())
	if err != nil {
		return "", VerificationNone, StageNetwork, fmt.Errorf("download checksums: %w", err)
	}

	method := VerificationSHA256
	if len(f.keyring) > 0 {
		signature, err := f.fetchSmall(ctx, rel.SignatureURL())
		if err != nil {
			return "", VerificationNone, StageNetwork, fmt.Errorf("download signature: %w", err)
		}
		if err := verifySignature(f.keyring, shasums, signature); err != nil {
			return "", VerificationNone, StageVerify, err
		}
		method = VerificationGPG
	}

	sum, err := findChecksum(shasums, rel.Filename())
	if err != nil {
		return "", VerificationNone, StageVerify, err
	}
	return sum, method, "", nil
}

func (f *Fetcher) fetchSmall(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return data, nil
}

// get issues a GET and rejects non-2xx responses. The caller closes the body.
func (f *Fetcher) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	return resp, nil
}

// publishFile makes tmpPath executable and renames it over dest
func publishFile(tmpPath, dest string) error {
	if err := os.Chmod(tmpPath, ExecutableMode); err != nil {
		return fmt.Errorf("set executable: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// failStaged converts an error carrying a stage into a *FetchError
func failStaged(fail func(Stage, error) error, err error) error {
	var se *stageError
	if errors.As(err, &se) {
		return fail(se.stage, se.err)
	}
	return fail(StageDecode, err)
}
