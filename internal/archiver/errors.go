package archiver

import (
	"context"
	"errors"
)

var (
	// ErrStaleReference means the remote page changed under us. It is
	// recoverable: the record is rediscovered on the next reload.
	ErrStaleReference = errors.New("stale reference")

	// ErrTimeout means a remote call exceeded its deadline.
	ErrTimeout = errors.New("remote call timed out")

	// ErrMissingID is reported for listing rows without an id.
	ErrMissingID = errors.New("row has no id")

	// ErrListingUnavailable is returned when the listing could not be loaded
	// for too many consecutive iterations.
	ErrListingUnavailable = errors.New("remote listing unavailable")
)

// ErrorKind classifies errors coming back from the Interaction Surface.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindStale
	KindTimeout
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindStale:
		return "stale"
	case KindTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// ClassifyError maps a surface error onto the runner's error taxonomy.
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrStaleReference):
		return KindStale
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindOther
	}
}
