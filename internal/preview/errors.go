package preview

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentifier marks a missing or malformed path identifier.
	ErrInvalidIdentifier = errors.New("invalid profile identifier")
	// ErrUpstream marks a profile store failure other than "no such row".
	ErrUpstream = errors.New("profile store unavailable")
	// ErrUpstreamTimeout marks a lookup abandoned at the fetch deadline.
	ErrUpstreamTimeout = fmt.Errorf("%w: lookup timed out", ErrUpstream)
)
