package risonanza_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	Rs "github.com/maroda/risonanza/sequence"
)

func TestNewSequenceValidation(t *testing.T) {
	tests := []struct {
		name     string
		txTimes  []float64
		txPowers []complex128
		rxTimes  []float64
		wantErr  error
	}{
		{
			name:     "valid single pulse and window",
			txTimes:  []float64{0, 9},
			txPowers: []complex128{1, 0},
			rxTimes:  []float64{14, 10014},
			wantErr:  nil,
		},
		{
			name:     "valid with mid-pulse power change",
			txTimes:  []float64{1, 5, 7, 9, 10, 15},
			txPowers: []complex128{1, 0, 0, 1, 1i, 0},
			rxTimes:  []float64{6, 8, 16, 20},
			wantErr:  nil,
		},
		{
			name:     "valid with no receive windows",
			txTimes:  []float64{0, 9},
			txPowers: []complex128{1, 0},
			rxTimes:  nil,
			wantErr:  nil,
		},
		{
			name:    "valid with nothing at all",
			wantErr: nil,
		},
		{
			name:     "length mismatch",
			txTimes:  []float64{0, 5},
			txPowers: []complex128{1},
			wantErr:  Rs.ErrLengthMismatch,
		},
		{
			name:     "negative transmit time",
			txTimes:  []float64{-1, 5},
			txPowers: []complex128{1, 0},
			wantErr:  Rs.ErrTimeNegative,
		},
		{
			name:    "negative receive time",
			rxTimes: []float64{-3, 5},
			wantErr: Rs.ErrTimeNegative,
		},
		{
			name:     "repeated transmit time",
			txTimes:  []float64{0, 5, 5},
			txPowers: []complex128{1, 0.5, 0},
			wantErr:  Rs.ErrTimeNotMonotonic,
		},
		{
			name:     "decreasing transmit time",
			txTimes:  []float64{0, 5, 4},
			txPowers: []complex128{1, 0.5, 0},
			wantErr:  Rs.ErrTimeNotMonotonic,
		},
		{
			name:    "decreasing receive time",
			rxTimes: []float64{10, 5},
			wantErr: Rs.ErrTimeNotMonotonic,
		},
		{
			name:     "dangling pulse",
			txTimes:  []float64{0, 5},
			txPowers: []complex128{1, 0.5},
			wantErr:  Rs.ErrDanglingPulse,
		},
		{
			name:    "odd receive boundary count",
			rxTimes: []float64{5, 10, 15},
			wantErr: Rs.ErrOddRXCount,
		},
		{
			name:     "pulse touching receive window",
			txTimes:  []float64{1, 5},
			txPowers: []complex128{1, 0},
			rxTimes:  []float64{5, 10},
			wantErr:  Rs.ErrTXRXOverlap,
		},
		{
			name:     "pulse inside receive window",
			txTimes:  []float64{20, 25},
			txPowers: []complex128{1, 0},
			rxTimes:  []float64{10, 100},
			wantErr:  Rs.ErrTXRXOverlap,
		},
		{
			name:     "pulse right after receive window",
			txTimes:  []float64{10.5, 12},
			txPowers: []complex128{1, 0},
			rxTimes:  []float64{5, 10},
			wantErr:  Rs.ErrTXRXOverlap,
		},
		{
			name:     "exactly the guard gap on both sides",
			txTimes:  []float64{11, 15},
			txPowers: []complex128{1, 0},
			rxTimes:  []float64{5, 10, 16, 20},
			wantErr:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Rs.New(tt.txTimes, tt.txPowers, tt.rxTimes)
			assertError(t, err, tt.wantErr)
			if tt.wantErr != nil {
				assertError(t, err, Rs.ErrSequenceInvalid)
			}
		})
	}
}

func TestNewSequenceOverlapMentionsBothWindows(t *testing.T) {
	_, err := Rs.New([]float64{1, 5}, []complex128{1, 0}, []float64{5, 10})

	assertError(t, err, Rs.ErrTXRXOverlap)
	assertStringContains(t, err.Error(), "simultaneous transmit and receive")
	assertStringContains(t, err.Error(), "1us")
}

func TestEmptySequenceHasNoEvents(t *testing.T) {
	seq := Rs.Empty()

	assertInt(t, len(seq.TXTimes()), 0)
	assertInt(t, len(seq.TXPowers()), 0)
	assertInt(t, len(seq.RXTimes()), 0)
}

func TestSimpleEventList(t *testing.T) {
	seq, err := Rs.Simple(9, 5, 10000)

	assertError(t, err, nil)
	assertFloats(t, seq.TXTimes(), []float64{0, 9})
	assertPowers(t, seq.TXPowers(), []complex128{1, 0})
	assertFloats(t, seq.RXTimes(), []float64{14, 10014})
}

func TestSpinEchoEventList(t *testing.T) {
	seq, err := Rs.SpinEcho(10, 1000, 50, 10000)

	assertError(t, err, nil)
	assertFloats(t, seq.TXTimes(), []float64{0, 10, 1010, 1030})
	assertPowers(t, seq.TXPowers(), []complex128{1, 0, 1, 0})
	assertFloats(t, seq.RXTimes(), []float64{1080, 11080})
}

func TestSequenceAccessorsReturnCopies(t *testing.T) {
	seq, err := Rs.Simple(9, 5, 10000)
	assertError(t, err, nil)

	seq.TXTimes()[0] = 99
	seq.TXPowers()[0] = 99
	seq.RXTimes()[0] = 99

	assertFloats(t, seq.TXTimes(), []float64{0, 9})
	assertPowers(t, seq.TXPowers(), []complex128{1, 0})
	assertFloats(t, seq.RXTimes(), []float64{14, 10014})
}

func TestSequenceShift(t *testing.T) {
	seq, err := Rs.SpinEcho(10, 1000, 50, 10000)
	assertError(t, err, nil)

	shifted, err := seq.Shift(10)

	assertError(t, err, nil)
	assertFloats(t, shifted.TXTimes(), []float64{10, 20, 1020, 1040})
	assertPowers(t, shifted.TXPowers(), []complex128{1, 0, 1, 0})
	assertFloats(t, shifted.RXTimes(), []float64{1090, 11090})
}

func TestSequenceShiftBeforeZeroFails(t *testing.T) {
	seq, err := Rs.Simple(9, 5, 10000)
	assertError(t, err, nil)

	_, err = seq.Shift(-5)

	assertError(t, err, Rs.ErrTimeNegative)
}

func TestSequenceEqualWithinTolerance(t *testing.T) {
	a, err := Rs.Simple(9, 5, 10000)
	assertError(t, err, nil)
	b, err := Rs.New([]float64{0, 9.0000001}, []complex128{1, 0}, []float64{14, 10014})
	assertError(t, err, nil)

	if !a.Equal(b) {
		t.Errorf("sequences differ only by 1e-7us but compared unequal")
	}
	if !b.Equal(a) {
		t.Errorf("tolerant comparison is not symmetric")
	}
}

func TestSequenceEqualDetectsDifferences(t *testing.T) {
	a, err := Rs.Simple(9, 5, 10000)
	assertError(t, err, nil)

	longer, err := Rs.New([]float64{0, 9.1}, []complex128{1, 0}, []float64{14.1, 10014.1})
	assertError(t, err, nil)
	if a.Equal(longer) {
		t.Errorf("sequences with different timestamps compared equal")
	}

	phased, err := Rs.New([]float64{0, 9}, []complex128{1i, 0}, []float64{14, 10014})
	assertError(t, err, nil)
	if a.Equal(phased) {
		t.Errorf("sequences with different power levels compared equal")
	}

	if a.Equal(Rs.Empty()) {
		t.Errorf("sequences of different shape compared equal")
	}
}

// Shared assertion helpers for the package tests.

func assertError(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Errorf("got error %v, want %v", got, want)
	}
}

func assertGotError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Errorf("wanted an error but didn't get one")
	}
}

func assertInt(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func assertStringContains(t testing.TB, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("got %q, want it to contain %q", got, want)
	}
}

func assertFloats(t testing.TB, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d values %v, want %d values %v", len(got), got, len(want), want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func assertPowers(t testing.TB, got, want []complex128) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d levels %v, want %d levels %v", len(got), got, len(want), want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func assertFloatNear(t testing.TB, got, want, delta float64) {
	t.Helper()
	if math.Abs(got-want) > delta {
		t.Errorf("got %v, want %v within %v", got, want, delta)
	}
}
