package nodedist

import (
	"context"
	"io"

	"github.com/dustin/go-humanize"
)

// progressInterval is how many bytes are read between progress reports
const progressInterval = 8 << 20

// bodyReader wraps the response body. It counts bytes, reports progress and
// remembers the first read error so failures can be attributed to the network.
type bodyReader struct {
	r          io.Reader
	total      int64
	read       int64
	lastReport int64
	err        error
	onProgress func(read, total int64)
}

func newBodyReader(r io.Reader, total int64, onProgress func(read, total int64)) *bodyReader {
	return &bodyReader{r: r, total: total, onProgress: onProgress}
}

func (b *bodyReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if n > 0 {
		b.read += int64(n)
		if b.onProgress != nil && b.read-b.lastReport >= progressInterval {
			b.onProgress(b.read, b.total)
			b.lastReport = b.read
		}
	}
	if err != nil && err != io.EOF && b.err == nil {
		b.err = err
	}
	return n, err
}

// errWriter remembers the first write error so failures can be attributed to the filesystem
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	n, err := e.w.Write(p)
	if err != nil && e.err == nil {
		e.err = err
	}
	return n, err
}

// progressLogger returns a callback logging download progress at debug level
func progressLogger(ctx context.Context, logger Logger, url string) func(read, total int64) {
	return func(read, total int64) {
		if total > 0 {
			logger.DebugContext(ctx, "download progress",
				"url", url,
				"downloaded", humanize.Bytes(uint64(read)),
				"total", humanize.Bytes(uint64(total)),
				"percent", humanize.FtoaWithDigits(float64(read)*100/float64(total), 2))
			return
		}
		logger.DebugContext(ctx, "download progress", "url", url, "downloaded", humanize.Bytes(uint64(read)))
	}
}
