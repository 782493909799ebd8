package playback

import "errors"

var (
	// ErrBlocked means the audio output could not be opened.
	ErrBlocked     = errors.New("playback blocked")
	ErrUnsupported = errors.New("unsupported audio format")
	ErrAborted     = errors.New("playback aborted")
	ErrUnknown     = errors.New("playback failed")
)

type Reason int

const (
	ReasonNone Reason = iota
	ReasonBlocked
	ReasonUnsupported
	ReasonAborted
	ReasonUnknown
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonBlocked:
		return "blocked"
	case ReasonUnsupported:
		return "unsupported"
	case ReasonAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ReasonOf classifies an error returned by the controller.
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrBlocked):
		return ReasonBlocked
	case errors.Is(err, ErrUnsupported):
		return ReasonUnsupported
	case errors.Is(err, ErrAborted):
		return ReasonAborted
	default:
		return ReasonUnknown
	}
}
