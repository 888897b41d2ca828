package headless

import (
	"context"
	"errors"

	"github.com/dmfell/scholarscrape/internal/scholar"
)

// ErrDisabled reports that headless browsing is switched off.
var ErrDisabled = errors.New("headless browsing disabled")

// Disabled implements scholar.SessionSource for configurations without
// a browser. Callers see unavailability and stay on the fast path.
type Disabled struct{}

// NewDisabled returns the disabled session source.
func NewDisabled() Disabled {
	return Disabled{}
}

// Available always reports false.
func (Disabled) Available() bool { return false }

// NewSession always fails with ErrDisabled.
func (Disabled) NewSession(context.Context) (scholar.Browser, error) {
	return nil, ErrDisabled
}
