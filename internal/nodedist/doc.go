// Package nodedist fetches Node.js release archives and extracts what a
// workspace needs from them.
//
// # Pipeline
//
// EnsureDownloaded streams a release tarball through gzip and tar, picks the
// single entry {basename}/bin/node and publishes it as an executable file:
//
//	network -> (sha256) -> gunzip -> tar -> temp file -> chmod 0755 -> rename
//
// Each stage consumes its input only as fast as the next one accepts it, so
// memory use does not grow with the archive size. The destination is written
// through a temporary file in the same directory and renamed into place after
// the whole archive has been read, so a failed or cancelled call never leaves
// a partial file behind.
//
// # Idempotency
//
// The presence of the destination path is the whole cache key. If it exists
// no request is made. Its content is not checked against the configured
// version.
//
// # Concurrency
//
// Calls for the same destination are serialized: callers in one process share
// a single in-flight fetch, and a lock file keeps other processes out.
//
// # Errors
//
// Every failure is a *FetchError naming the stage (network, decode, verify,
// write) and the destination:
//
//	res, err := fetcher.EnsureDownloaded(ctx, rel, "./tmp/workspace/node")
//	var fe *nodedist.FetchError
//	if errors.As(err, &fe) && errors.Is(err, nodedist.ErrEntryNotFound) {
//	    // the tarball layout changed upstream
//	}
package nodedist
