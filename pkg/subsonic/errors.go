package subsonic

import (
	"errors"
	"fmt"
	"net/http"
)

// Subsonic error codes.
const (
	ErrCodeGeneric             = 0
	ErrCodeMissingParameter    = 10
	ErrCodeClientTooOld        = 20
	ErrCodeServerTooOld        = 30
	ErrCodeWrongCredentials    = 40
	ErrCodeTokenAuthNotAllowed = 41
	ErrCodeNotAuthorized       = 50
	ErrCodeTrialExpired        = 60
	ErrCodeNotFound            = 70
)

var (
	// ErrNotFound matches API errors for missing songs, and is returned when
	// a search yields no acceptable match.
	ErrNotFound = errors.New("subsonic: not found")

	// ErrInvalidConfig is returned by NewClient for incomplete settings.
	ErrInvalidConfig = errors.New("subsonic: invalid configuration")
)

// Error is a failed subsonic-response.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("subsonic: error %d: %s", e.Code, e.Message)
}

// Is matches another *Error with the same code, and ErrNotFound for code 70.
func (e *Error) Is(target error) bool {
	if target == ErrNotFound {
		return e.Code == ErrCodeNotFound
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Temporary reports whether the request may succeed if repeated. The
// protocol has no dedicated code for overload, so only generic errors count.
func (e *Error) Temporary() bool {
	return e.Code == ErrCodeGeneric
}

// HTTPError is returned for non-200 responses.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("subsonic: unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether the status indicates a transient server problem.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}
