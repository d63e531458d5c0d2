package portal

import (
	"errors"
	"fmt"
)

var (
	// ErrStatus matches any *StatusError.
	ErrStatus = errors.New("portal: unexpected http status")

	// ErrNotHTML is returned when a response body is sniffed as binary
	// content (a PDF download, an image) instead of a page.
	ErrNotHTML = errors.New("portal: response is not html")

	// ErrPageTooLarge is returned instead of a truncated page.
	ErrPageTooLarge = errors.New("portal: page too large")
)

// StatusError reports a non-2xx response with up to 4KB of its body.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: http status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// Is makes errors.Is(err, ErrStatus) true for every StatusError.
func (e *StatusError) Is(target error) bool { return target == ErrStatus }
