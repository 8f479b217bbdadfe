package risonanza

/*

	A Sequence is the event-list form of an NMR pulse program.

	The transmit side is a piecewise-constant signal stored as its
	change points: a timestamp in microseconds and the complex power
	level that takes effect there. Magnitude carries the pulse power,
	argument carries the RF phase. The receive side is a flat list of
	window boundaries, start and end alternating.

	A Sequence that came out of New is valid by construction and
	never mutated, so it can be handed across goroutines freely.

*/

import (
	"fmt"
	"math"
	"math/cmplx"
)

// GuardUS is the minimum separation in microseconds between transmit
// and receive activity, and the padding applied to gate windows so
// the hardware switches settle before power arrives.
const GuardUS = 1.0

// Tolerances for comparing timelines that went through arithmetic.
const (
	closeRtol = 1e-5
	closeAtol = 1e-8
)

type Sequence struct {
	txTimes  []float64
	txPowers []complex128
	rxTimes  []float64
}

// New validates raw event lists and returns an immutable Sequence.
// The inputs are copied, not retained.
//
// Validity means: matching TX list lengths, both timelines
// non-negative and strictly increasing, the final power level zero,
// an even number of receive boundaries, and no pulse closer than
// GuardUS to a receive window.
func New(txTimes []float64, txPowers []complex128, rxTimes []float64) (Sequence, error) {
	if len(txTimes) != len(txPowers) {
		return Sequence{}, fmt.Errorf("%w: %d timestamps for %d power levels",
			ErrLengthMismatch, len(txTimes), len(txPowers))
	}
	if err := checkTimeline(txTimes); err != nil {
		return Sequence{}, fmt.Errorf("transmit: %w", err)
	}
	if n := len(txPowers); n > 0 && txPowers[n-1] != 0 {
		return Sequence{}, fmt.Errorf("%w: final power level is %v", ErrDanglingPulse, txPowers[n-1])
	}
	if err := checkTimeline(rxTimes); err != nil {
		return Sequence{}, fmt.Errorf("receive: %w", err)
	}
	if len(rxTimes)%2 != 0 {
		return Sequence{}, fmt.Errorf("%w: got %d boundaries", ErrOddRXCount, len(rxTimes))
	}

	s := Sequence{
		txTimes:  append([]float64(nil), txTimes...),
		txPowers: append([]complex128(nil), txPowers...),
		rxTimes:  append([]float64(nil), rxTimes...),
	}
	if err := s.checkOverlap(); err != nil {
		return Sequence{}, err
	}
	return s, nil
}

func checkTimeline(ts []float64) error {
	for i, t := range ts {
		if t < 0 {
			return fmt.Errorf("%w: %vus at index %d", ErrTimeNegative, t, i)
		}
		if i > 0 && ts[i-1] >= t {
			return fmt.Errorf("%w: %vus follows %vus at index %d", ErrTimeNotMonotonic, t, ts[i-1], i)
		}
	}
	return nil
}

// checkOverlap rejects any pulse window closer than GuardUS to a
// receive window on either side. A gap of exactly GuardUS is legal.
func (s Sequence) checkOverlap() error {
	records := s.RXWindows()
	for _, p := range s.PulseWindows() {
		for _, r := range records {
			if p.Start < r.End+GuardUS && p.End+GuardUS > r.Start {
				return fmt.Errorf("%w: pulse %v-%vus against window %v-%vus, keep at least %vus between them",
					ErrTXRXOverlap, p.Start, p.End, r.Start, r.End, GuardUS)
			}
		}
	}
	return nil
}

// Empty is the sequence that transmits nothing and records nothing.
func Empty() Sequence {
	return Sequence{}
}

// Simple is a single pulse followed by a single acquisition:
//
//	TX:  ▇▇▇pulse▇▇▇_____________________________
//	RX:  ____________delay____▇▇▇▇▇record▇▇▇▇▇___
//
// All arguments are in microseconds.
func Simple(pulseLenUS, delayUS, recordLenUS float64) (Sequence, error) {
	return New(
		[]float64{0, pulseLenUS},
		[]complex128{1, 0},
		[]float64{pulseLenUS + delayUS, pulseLenUS + delayUS + recordLenUS},
	)
}

// SpinEcho is the Hahn echo: a 90 degree pulse, a wait of tau, a 180
// degree pulse at twice the length, then acquisition:
//
//	TX:  ▇90▇____tau____▇▇180▇▇_________________________
//	RX:  _______________________delay___▇▇▇record▇▇▇____
//
// All arguments are in microseconds. pulseLenUS is the 90 degree
// pulse length, the refocusing pulse is twice that.
func SpinEcho(pulseLenUS, delayTauUS, delayAfterUS, recordLenUS float64) (Sequence, error) {
	p90End := pulseLenUS
	p180Start := p90End + delayTauUS
	p180End := p180Start + 2*pulseLenUS
	recordStart := p180End + delayAfterUS
	return New(
		[]float64{0, p90End, p180Start, p180End},
		[]complex128{1, 0, 1, 0},
		[]float64{recordStart, recordStart + recordLenUS},
	)
}

// TXTimes returns a copy of the transmit change-point timestamps in
// microseconds.
func (s Sequence) TXTimes() []float64 {
	return append([]float64(nil), s.txTimes...)
}

// TXPowers returns a copy of the complex power levels, one per
// transmit timestamp.
func (s Sequence) TXPowers() []complex128 {
	return append([]complex128(nil), s.txPowers...)
}

// RXTimes returns a copy of the receive window boundaries in
// microseconds, start and end alternating.
func (s Sequence) RXTimes() []float64 {
	return append([]float64(nil), s.rxTimes...)
}

// Shift moves every timestamp by offsetUS and revalidates, so a
// shift that would push an event before zero is rejected.
func (s Sequence) Shift(offsetUS float64) (Sequence, error) {
	tx := make([]float64, len(s.txTimes))
	for i, t := range s.txTimes {
		tx[i] = t + offsetUS
	}
	rx := make([]float64, len(s.rxTimes))
	for i, t := range s.rxTimes {
		rx[i] = t + offsetUS
	}
	return New(tx, s.txPowers, rx)
}

// Equal reports whether two sequences describe the same timeline,
// comparing elementwise with a small numeric tolerance. Sequences of
// different shape are never equal.
func (s Sequence) Equal(other Sequence) bool {
	if len(s.txTimes) != len(other.txTimes) || len(s.rxTimes) != len(other.rxTimes) {
		return false
	}
	for i := range s.txTimes {
		if !closeFloat(s.txTimes[i], other.txTimes[i]) {
			return false
		}
		if !closeComplex(s.txPowers[i], other.txPowers[i]) {
			return false
		}
	}
	for i := range s.rxTimes {
		if !closeFloat(s.rxTimes[i], other.rxTimes[i]) {
			return false
		}
	}
	return true
}

func closeFloat(a, b float64) bool {
	return math.Abs(a-b) <= closeAtol+closeRtol*math.Abs(b)
}

func closeComplex(a, b complex128) bool {
	return cmplx.Abs(a-b) <= closeAtol+closeRtol*cmplx.Abs(b)
}
