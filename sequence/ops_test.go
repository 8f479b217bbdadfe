package risonanza_test

import (
	"math"
	"math/cmplx"
	"testing"

	Rs "github.com/maroda/risonanza/sequence"
)

func TestBuildMatchesSimple(t *testing.T) {
	built, err := Rs.Build([]Rs.Op{
		mustPulse(t, 9, 1, 0),
		mustDelay(t, 5),
		mustRecord(t, 10000),
	})
	assertError(t, err, nil)

	direct, err := Rs.Simple(9, 5, 10000)
	assertError(t, err, nil)

	if !built.Equal(direct) {
		t.Errorf("built %v/%v, direct %v/%v", built.TXTimes(), built.RXTimes(), direct.TXTimes(), direct.RXTimes())
	}
}

func TestBuildNothingMatchesEmpty(t *testing.T) {
	built, err := Rs.Build(nil)

	assertError(t, err, nil)
	if !built.Equal(Rs.Empty()) {
		t.Errorf("an empty program did not produce the empty sequence")
	}
}

func TestBuildWalksTheClock(t *testing.T) {
	built, err := Rs.Build([]Rs.Op{
		mustPulse(t, 9, 1, 0),
		mustDelay(t, 1000),
		mustPulse(t, 18, 1, 0),
		mustDelay(t, 1000),
		mustRecord(t, 10000),
		mustDelay(t, 1),
		mustPulse(t, 18, 1, 0),
		mustDelay(t, 1000),
		mustRecord(t, 10000),
	})

	assertError(t, err, nil)
	assertFloats(t, built.TXTimes(), []float64{0, 9, 1009, 1027, 12028, 12046})
	assertPowers(t, built.TXPowers(), []complex128{1, 0, 1, 0, 1, 0})
	assertFloats(t, built.RXTimes(), []float64{2027, 12027, 13046, 23046})
}

func TestBuildCarriesPowerAndPhase(t *testing.T) {
	built, err := Rs.Build([]Rs.Op{
		mustPulse(t, 10, 0.5, math.Pi/2),
		mustDelay(t, 100),
		mustRecord(t, 1000),
	})
	assertError(t, err, nil)

	powers := built.TXPowers()
	assertInt(t, len(powers), 2)
	if cmplx.Abs(powers[0]-0.5i) > 1e-12 {
		t.Errorf("got power level %v, want 0.5i", powers[0])
	}
	assertPowers(t, powers[1:], []complex128{0})
}

func TestBuildRejectsInvalidPrograms(t *testing.T) {
	// Two pulses back to back produce a repeated timestamp.
	_, err := Rs.Build([]Rs.Op{
		mustPulse(t, 9, 1, 0),
		mustPulse(t, 9, 1, 0),
	})
	assertError(t, err, Rs.ErrTimeNotMonotonic)

	// Recording while the pulse is still settling.
	_, err = Rs.Build([]Rs.Op{
		mustPulse(t, 9, 1, 0),
		mustRecord(t, 1000),
	})
	assertError(t, err, Rs.ErrTXRXOverlap)
}

func TestBuildRejectsUnknownOps(t *testing.T) {
	_, err := Rs.Build([]Rs.Op{nil})

	assertError(t, err, Rs.ErrUnsupportedOperation)
}

func TestNewPulseValidation(t *testing.T) {
	tests := []struct {
		name       string
		durationUS float64
		power      float64
		phaseRad   float64
		wantErr    bool
	}{
		{name: "full power", durationUS: 9, power: 1, wantErr: false},
		{name: "zero power", durationUS: 9, power: 0, wantErr: false},
		{name: "power above range", durationUS: 9, power: 1.1, wantErr: true},
		{name: "power below range", durationUS: 9, power: -0.1, wantErr: true},
		{name: "negative duration", durationUS: -1, power: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Rs.NewPulse(tt.durationUS, tt.power, tt.phaseRad)
			if tt.wantErr {
				assertError(t, err, Rs.ErrInvalidParameter)
			} else {
				assertError(t, err, nil)
			}
		})
	}
}

func TestNewPulseNormalizesPhase(t *testing.T) {
	wrapped := mustPulse(t, 9, 1, 2*math.Pi+0.5)
	assertFloatNear(t, wrapped.PhaseRad(), 0.5, 1e-9)

	negative := mustPulse(t, 9, 1, -math.Pi/2)
	assertFloatNear(t, negative.PhaseRad(), 3*math.Pi/2, 1e-9)
}

func TestNewDelayRejectsNegativeDuration(t *testing.T) {
	_, err := Rs.NewDelay(-1)
	assertError(t, err, Rs.ErrInvalidParameter)

	_, err = Rs.NewDelay(0)
	assertError(t, err, nil)
}

func TestNewRecordRejectsNegativeDuration(t *testing.T) {
	_, err := Rs.NewRecord(-1)
	assertError(t, err, Rs.ErrInvalidParameter)

	_, err = Rs.NewRecord(10000)
	assertError(t, err, nil)
}

func mustPulse(t testing.TB, durationUS, power, phaseRad float64) Rs.Pulse {
	t.Helper()
	p, err := Rs.NewPulse(durationUS, power, phaseRad)
	assertError(t, err, nil)
	return p
}

func mustDelay(t testing.TB, durationUS float64) Rs.Delay {
	t.Helper()
	d, err := Rs.NewDelay(durationUS)
	assertError(t, err, nil)
	return d
}

func mustRecord(t testing.TB, durationUS float64) Rs.Record {
	t.Helper()
	r, err := Rs.NewRecord(durationUS)
	assertError(t, err, nil)
	return r
}
