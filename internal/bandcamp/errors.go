package bandcamp

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFanID is returned when no strategy could isolate a fan identifier.
	ErrNoFanID = errors.New("cannot resolve fan identifier")

	// ErrNoIdentity is returned when the cookie has no identity component.
	ErrNoIdentity = errors.New("could not isolate identity part of cookie")

	// ErrNoBlob is returned when a page carries no data-blob attribute.
	ErrNoBlob = errors.New("no data-blob found in page")

	// ErrNoItems is returned when a page or strategy yields no collection items.
	ErrNoItems = errors.New("no collection items found")
)

// authHint is appended to every authentication failure shown to the user.
const authHint = "log in again and get a fresh cookie"

// AuthError reports an unusable cookie or a session the upstream rejected.
// It is fatal for the whole scrape.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	msg := "authentication failed: " + e.Reason
	if e.Err != nil && e.Err.Error() != e.Reason {
		msg += ": " + e.Err.Error()
	}
	return msg + " (" + authHint + ")"
}

func (e *AuthError) Unwrap() error { return e.Err }

// APIError reports a failed or unusable paginated request.
// Fatal for the visible pass, absorbed for the hidden pass.
type APIError struct {
	Source string
	Page   int
	Err    error
}

func (e *APIError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("%s request failed on page %d: %v", e.Source, e.Page, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Source, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// ParseError reports an embedded JSON blob that could not be decoded.
// It triggers the next extraction strategy rather than aborting.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
