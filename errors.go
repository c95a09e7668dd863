package autodrip

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error kinds surfaced by the generation client. Every error returned by
// Client.Generate matches exactly one of the first two via errors.Is.
var (
	// ErrInvalidCredential means the service rejected the API key or the
	// selected project could not be found.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrGenerationFailed covers every other failure: undecodable input,
	// transport errors, rate limits and responses without an image.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrValidationRejected is returned when an upload is not an image.
	// It never reaches the generation service.
	ErrValidationRejected = errors.New("upload rejected")

	// ErrNoImage is returned when a response contains no inline image data.
	ErrNoImage = errors.New("response contained no image")

	// ErrStorageNotConfigured is returned when storage operations are attempted
	// without a configured storage backend.
	ErrStorageNotConfigured = errors.New("storage not configured")
)

// GenerationError carries the classified kind of a failed generation along
// with the operation that failed and the underlying cause.
type GenerationError struct {
	Kind error  // ErrInvalidCredential or ErrGenerationFailed
	Op   string // e.g. "decode", "render", "parse"
	Err  error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of this error.
func (e *GenerationError) Is(target error) bool {
	return target == e.Kind
}

// IsInvalidCredential reports whether err was classified as a credential failure.
func IsInvalidCredential(err error) bool {
	return errors.Is(err, ErrInvalidCredential)
}

// RateLimitError is returned when a rate limit is hit.
type RateLimitError struct {
	RetryAfter time.Duration
	LimitType  string
	Model      string
	Err        error // Underlying error from the provider
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %s limit, retry after %v",
		e.Model, e.LimitType, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// IsRateLimitError checks if an error is a RateLimitError.
func IsRateLimitError(err error) bool {
	var rlErr *RateLimitError
	return errors.As(err, &rlErr)
}

// credentialMarkers are fragments of service error messages that mean the
// key is unusable. "Requested entity was not found" is what the service
// returns when the project behind a key has been removed.
var credentialMarkers = []string{
	"Requested entity was not found",
	"API key not valid",
	"API_KEY_INVALID",
	"API key expired",
}

// IsCredentialMessage reports whether msg contains a credential failure marker.
func IsCredentialMessage(msg string) bool {
	for _, m := range credentialMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// classify wraps err into a GenerationError of the matching kind.
// Errors that are already classified pass through unchanged.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return err
	}
	kind := ErrGenerationFailed
	if errors.Is(err, ErrInvalidCredential) || IsCredentialMessage(err.Error()) {
		kind = ErrInvalidCredential
	}
	return &GenerationError{Kind: kind, Op: op, Err: err}
}
