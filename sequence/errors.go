package risonanza

import (
	"errors"
	"fmt"
)

// Base errors for the pulse sequence engine.
var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrUnsupportedOperation = errors.New("unsupported operation in pulse program")
	ErrSequenceInvalid      = errors.New("invalid pulse sequence")
)

// Every validation failure wraps ErrSequenceInvalid, so callers can
// match the class with errors.Is(err, ErrSequenceInvalid) or pick out
// the exact cause with one of these.
var (
	ErrLengthMismatch   = fmt.Errorf("%w: every timestamp needs a power level", ErrSequenceInvalid)
	ErrTimeNegative     = fmt.Errorf("%w: timestamps cannot be negative", ErrSequenceInvalid)
	ErrTimeNotMonotonic = fmt.Errorf("%w: timestamps must be strictly increasing", ErrSequenceInvalid)
	ErrDanglingPulse    = fmt.Errorf("%w: the transmitter must end powered off", ErrSequenceInvalid)
	ErrOddRXCount       = fmt.Errorf("%w: every receive window needs a start and an end", ErrSequenceInvalid)
	ErrTXRXOverlap      = fmt.Errorf("%w: simultaneous transmit and receive", ErrSequenceInvalid)
)
