package fgethttp

import (
	"errors"
	"fmt"
)

var (
	ErrNoCallback    = errors.New("a completion callback is required")
	ErrNoURL         = errors.New("a URL is required")
	ErrSessionActive = errors.New("a download session is already running on this engine")
	ErrBadStatus     = errors.New("unexpected response status")
	ErrUnknownSize   = errors.New("unable to determine content length")
	ErrRangeIgnored  = errors.New("server ignored the range request")
	ErrShortChunk    = errors.New("stream ended before the range was filled")
	ErrOverflow      = errors.New("server sent more bytes than requested")
	ErrRangeMismatch = errors.New("server answered with a different range")
	ErrCancelled     = errors.New("download cancelled")
)

// UsageError reports a caller mistake detected before any network activity.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return "usage error: " + e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// ProbeError reports a failed capability probe. StatusCode is 0 when no response arrived.
type ProbeError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ProbeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("probe %s: %v: %d", e.URL, e.Err, e.StatusCode)
	}
	return fmt.Sprintf("probe %s: %v", e.URL, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// TransportError reports a chunk whose connection failed mid-stream.
type TransportError struct {
	Chunk int
	Err   error
}

func (e *TransportError) Error() string { return fmt.Sprintf("chunk %d: %v", e.Chunk, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// FilesystemError reports a failure creating, writing, renaming or removing an artifact.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string { return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err) }
func (e *FilesystemError) Unwrap() error { return e.Err }
