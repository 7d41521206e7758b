package nodedist

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ZebulonRouseFrantzich/wsbuild/internal/lockfile"
)

type fetchFunc func(ctx context.Context, dest string) (*Result, error)

// guard runs fetch at most once at a time for dest. Callers in this process
// share one in-flight execution; other processes are excluded by a lock file.
// An existing dest short-circuits before and after the lock is taken.
func (f *Fetcher) guard(ctx context.Context, dest string, fetch fetchFunc) (*Result, error) {
	abs, err := filepath.Abs(dest)
	if err != nil {
		return nil, &FetchError{Stage: StageCheck, Dest: dest, Err: fmt.Errorf("resolve path: %w", err)}
	}

	if res, err := f.skipIfExists(ctx, abs); res != nil || err != nil {
		return res, err
	}

	// The shared execution runs under the first caller's context. Waiting
	// callers stop as soon as their own context is done; the first caller
	// waits for its fetch to unwind and reports the stage it stopped in.
	var leader atomic.Bool
	ch := f.flight.DoChan(abs, func() (any, error) {
		leader.Store(true)
		return f.locked(ctx, abs, fetch)
	})

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		if !leader.Load() {
			return nil, &FetchError{Stage: StageCheck, Dest: abs, Err: fmt.Errorf("wait for in-flight fetch: %w", ctx.Err())}
		}
		r = <-ch
	}
	if r.Err != nil {
		return nil, r.Err
	}
	// Each caller gets its own copy of the shared result
	res := *r.Val.(*Result)
	return &res, nil
}

func (f *Fetcher) locked(ctx context.Context, dest string, fetch fetchFunc) (*Result, error) {
	start := time.Now()

	lock, err := lockfile.Acquire(ctx, f.lockPath(dest), f.lockPoll)
	if err != nil {
		return nil, &FetchError{Stage: StageCheck, Dest: dest, Err: err}
	}
	defer lock.Release()

	// Another process may have finished while we waited.
	if res, err := f.skipIfExists(ctx, dest); res != nil || err != nil {
		return res, err
	}

	res, err := fetch(ctx, dest)
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	return res, nil
}

// skipIfExists returns a skipped Result when dest is present, nil when absent
func (f *Fetcher) skipIfExists(ctx context.Context, dest string) (*Result, error) {
	_, err := os.Lstat(dest)
	if err == nil {
		f.logger.DebugContext(ctx, "destination exists, skipping fetch", "dest", dest)
		return &Result{Path: dest, Skipped: true}, nil
	}
	if os.IsNotExist(err) {
		return nil, nil
	}
	return nil, &FetchError{Stage: StageCheck, Dest: dest, Err: fmt.Errorf("stat destination: %w", err)}
}

// lockPath keeps lock files out of the destination directory
func (f *Fetcher) lockPath(dest string) string {
	dir := f.lockDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "wsbuild-locks")
	}
	sum := sha256.Sum256([]byte(dest))
	return filepath.Join(dir, hex.EncodeToString(sum[:8])+".lock")
}
