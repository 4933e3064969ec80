package analysis

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session id is unknown to the store.
var ErrSessionNotFound = errors.New("session not found")

// FetchErrorKind classifies fetch-stage failures surfaced to callers.
type FetchErrorKind string

// Fetch error kinds. Everything past the fetch stage degrades instead of
// failing, so these two kinds plus ErrSessionNotFound are the only errors
// that cross the pipeline boundary.
const (
	FetchInvalidURL  FetchErrorKind = "invalid_url"
	FetchUnreachable FetchErrorKind = "unreachable"
)

// FetchError describes why a page could not be fetched.
type FetchError struct {
	Kind  FetchErrorKind
	URL   string
	Cause error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewFetchError builds a FetchError for the given URL and kind.
func NewFetchError(kind FetchErrorKind, url string, cause error) *FetchError {
	return &FetchError{Kind: kind, URL: url, Cause: cause}
}

// FetchErrorIs reports whether err is a FetchError of the given kind.
func FetchErrorIs(err error, kind FetchErrorKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}
