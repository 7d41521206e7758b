package nodedist

import (
	"errors"
	"fmt"
	"time"
)

// Stage identifies the pipeline step that failed.
type Stage string

const (
	// StageCheck covers the destination existence check and the per-path lock
	StageCheck Stage = "check"
	// StageNetwork covers the HTTP request and reading the response body
	StageNetwork Stage = "network"
	// StageDecode covers gzip decompression and tar parsing
	StageDecode Stage = "decode"
	// StageVerify covers checksum and signature verification
	StageVerify Stage = "verify"
	// StageWrite covers creating, writing and publishing the destination
	StageWrite Stage = "write"
)

var (
	// ErrEntryNotFound is returned when the archive has no entry at the expected path
	ErrEntryNotFound = errors.New("expected entry not found in archive")
	// ErrDuplicateEntry is returned when more than one entry matches the expected path
	ErrDuplicateEntry = errors.New("archive contains the expected entry more than once")
	// ErrChecksumMismatch is returned when the archive does not match SHASUMS256.txt
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrUnsupportedPlatform is returned for OS/arch pairs without a Node.js tarball
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// FetchError reports a pipeline failure together with the stage and destination.
type FetchError struct {
	Stage Stage
	Dest  string
	URL   string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.Dest, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// StatusError is returned for a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status code: %d", e.URL, e.Code)
}

// VerificationMethod indicates how a download was verified
type VerificationMethod int

const (
	// VerificationNone indicates the archive was not verified
	VerificationNone VerificationMethod = iota
	// VerificationSHA256 indicates the archive matched SHASUMS256.txt
	VerificationSHA256
	// VerificationGPG indicates SHASUMS256.txt was signed by a trusted key and the archive matched it
	VerificationGPG
)

// String returns the string representation of the verification method
func (v VerificationMethod) String() string {
	switch v {
	case VerificationGPG:
		return "GPG"
	case VerificationSHA256:
		return "SHA256"
	case VerificationNone:
		return "None"
	default:
		return "Unknown"
	}
}

// Result describes a completed EnsureDownloaded or EnsureUnpacked call.
type Result struct {
	Path string
	// Skipped is true when the destination already existed and nothing was fetched
	Skipped bool
	// Written is the number of bytes written to the destination
	Written int64
	// Downloaded is the number of compressed bytes read from the network
	Downloaded int64
	Verified   VerificationMethod
	Duration   time.Duration
}
