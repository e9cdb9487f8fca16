package meeting

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrUnknownProvider    = errors.New("unknown video provider")
	ErrMissingAccessToken = errors.New("missing provider access token")
	errMissingMeetingURL  = errors.New("provider response has no meeting url")
)

// ProviderError is returned when a call to a provider API did not succeed.
type ProviderError struct {
	Provider   Provider
	Op         string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NotFound reports whether the provider answered 404.
func (e *ProviderError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.NotFound()
}
