package risonanza

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Op is one step of a declarative pulse program. The set of
// operations is closed: Pulse, Delay and Record. Build turns a slice
// of them into an event-list Sequence.
type Op interface {
	op()
}

// Pulse switches the transmitter on for a duration, at a relative
// power from 0 to 1 and an RF phase in radians.
type Pulse struct {
	durationUS float64
	power      float64
	phaseRad   float64
}

// NewPulse validates the pulse parameters. The phase is normalized
// into [0, 2pi).
func NewPulse(durationUS, power, phaseRad float64) (Pulse, error) {
	if power < 0 || power > 1 {
		return Pulse{}, fmt.Errorf("%w: pulse power must be between 0 and 1, got %v", ErrInvalidParameter, power)
	}
	if durationUS < 0 {
		return Pulse{}, fmt.Errorf("%w: pulse durations can only be positive, got %vus", ErrInvalidParameter, durationUS)
	}
	phase := math.Mod(phaseRad, 2*math.Pi)
	if phase < 0 {
		phase += 2 * math.Pi
	}
	return Pulse{durationUS: durationUS, power: power, phaseRad: phase}, nil
}

func (p Pulse) op() {}

func (p Pulse) DurationUS() float64 { return p.durationUS }
func (p Pulse) Power() float64      { return p.power }
func (p Pulse) PhaseRad() float64   { return p.phaseRad }

// Level is the pulse as a single complex power sample, magnitude
// carrying the power and argument the phase.
func (p Pulse) Level() complex128 {
	return cmplx.Rect(p.power, p.phaseRad)
}

// Delay advances the clock with the transmitter off.
type Delay struct {
	durationUS float64
}

func NewDelay(durationUS float64) (Delay, error) {
	if durationUS < 0 {
		return Delay{}, fmt.Errorf("%w: delay durations can only be positive, got %vus", ErrInvalidParameter, durationUS)
	}
	return Delay{durationUS: durationUS}, nil
}

func (d Delay) op() {}

func (d Delay) DurationUS() float64 { return d.durationUS }

// Record opens a receive window for a duration. It carries no data,
// it only marks when the receiver is listening.
type Record struct {
	durationUS float64
}

func NewRecord(durationUS float64) (Record, error) {
	if durationUS < 0 {
		return Record{}, fmt.Errorf("%w: record durations can only be positive, got %vus", ErrInvalidParameter, durationUS)
	}
	return Record{durationUS: durationUS}, nil
}

func (r Record) op() {}

func (r Record) DurationUS() float64 { return r.durationUS }

// Build walks a clock through the program in order. A Pulse emits a
// power-on change point and a power-off change point, a Delay only
// advances the clock, a Record emits one receive window. The result
// goes through the same validation as New, so programs that put a
// pulse against a receive window are rejected here.
func Build(ops []Op) (Sequence, error) {
	var (
		txTimes  []float64
		txPowers []complex128
		rxTimes  []float64
	)

	clock := 0.0
	for _, o := range ops {
		switch ev := o.(type) {
		case Pulse:
			txTimes = append(txTimes, clock)
			txPowers = append(txPowers, ev.Level())
			clock += ev.durationUS
			txTimes = append(txTimes, clock)
			txPowers = append(txPowers, 0)
		case Delay:
			clock += ev.durationUS
		case Record:
			rxTimes = append(rxTimes, clock)
			clock += ev.durationUS
			rxTimes = append(rxTimes, clock)
		default:
			return Sequence{}, fmt.Errorf("%w: %v (%T)", ErrUnsupportedOperation, ev, ev)
		}
	}

	return New(txTimes, txPowers, rxTimes)
}
