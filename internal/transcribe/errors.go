package transcribe

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured indicates no API key has been set. Surfacing it should
// prompt reconfiguration, not a retry.
var ErrNotConfigured = errors.New("API key not configured")

// InvalidInputError reports audio that cannot be submitted at all.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return "invalid audio input: " + e.Reason }

// FailedError is the terminal transcription failure after the retry
// budget is exhausted. It wraps the last underlying cause.
type FailedError struct {
	Attempts int
	Err      error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("transcription failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// Class buckets a single-attempt failure for the retry loop.
type Class int

const (
	// ClassFatal must not be retried: client errors, bad requests and
	// anything unrecognized, treated conservatively.
	ClassFatal Class = iota
	// ClassRateLimit is an endpoint rate-limit signal.
	ClassRateLimit
	// ClassConnection is a connection-level network failure. It also
	// poisons the current handle: the caller refreshes before retrying.
	ClassConnection
	// ClassServer is a remote 5xx.
	ClassServer
)

// Transient reports whether the class warrants a retry.
func (c Class) Transient() bool { return c != ClassFatal }

func (c Class) String() string {
	switch c {
	case ClassRateLimit:
		return "rate_limit"
	case ClassConnection:
		return "connection"
	case ClassServer:
		return "server"
	default:
		return "fatal"
	}
}

// Classify buckets a transcription attempt failure. API errors are
// classified by HTTP status: 429 is a rate limit, 5xx a server error,
// everything else fatal. Transport-level failures are connection-class.
func Classify(err error) Class {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode > 0 {
			return classifyStatus(reqErr.HTTPStatusCode)
		}
		return ClassConnection
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassConnection
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return ClassConnection
	}
	return ClassFatal
}

func classifyStatus(code int) Class {
	switch {
	case code == http.StatusTooManyRequests:
		return ClassRateLimit
	case code >= 500:
		return ClassServer
	default:
		return ClassFatal
	}
}
