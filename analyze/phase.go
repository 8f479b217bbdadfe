package analyze

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// DefaultPeakWidth is the window in points searched around the
// tallest peak when scoring a phase correction.
const DefaultPeakWidth = 100

var ErrEmptySpectrum = errors.New("empty spectrum")

// PhaseRotate applies a zero order phase shift of p0 degrees to
// every point.
func PhaseRotate(data []complex128, p0Deg float64) []complex128 {
	rot := cmplx.Exp(complex(0, p0Deg*math.Pi/180))
	out := make([]complex128, len(data))
	for i, v := range data {
		out[i] = v * rot
	}
	return out
}

// FindPhaseShift searches for the zero order phase, in degrees, that
// balances the two minima flanking the tallest peak. A well phased
// absorption peak has symmetric feet, so the search drives their
// difference to zero. peakWidth <= 0 falls back to DefaultPeakWidth.
func FindPhaseShift(spectrum []complex128, p0StartDeg float64, peakWidth int) (float64, error) {
	if len(spectrum) == 0 {
		return 0, ErrEmptySpectrum
	}
	if peakWidth <= 0 {
		peakWidth = DefaultPeakWidth
	}

	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			return phaseScore(spectrum, p[0], peakWidth)
		},
	}
	result, err := optimize.Minimize(problem, []float64{p0StartDeg}, nil, &optimize.NelderMead{})
	if err != nil {
		return 0, fmt.Errorf("phase search did not converge: %w", err)
	}
	return result.X[0], nil
}

// phaseScore is the asymmetry of the minima on either side of the
// tallest peak after rotating by p0 degrees. The search window is
// clipped at the spectrum edges.
func phaseScore(spectrum []complex128, p0Deg float64, peakWidth int) float64 {
	re := Real(PhaseRotate(spectrum, p0Deg))
	peak := floats.MaxIdx(re)
	lo := max(peak-peakWidth, 0)
	hi := min(peak+peakWidth, len(re))

	left := re[peak]
	if peak > lo {
		left = floats.Min(re[lo:peak])
	}
	right := re[peak]
	if hi > peak+1 {
		right = floats.Min(re[peak+1 : hi])
	}
	return math.Abs(left - right)
}

// AutoPhaseStart guesses whether the spectrum is upside down: when
// the deepest trough dwarfs the tallest peak the search should start
// half a turn away.
func AutoPhaseStart(spectrum []complex128) float64 {
	if len(spectrum) == 0 {
		return 0
	}
	re := Real(spectrum)
	if math.Abs(floats.Min(re)) > math.Abs(floats.Max(re)) {
		return 180
	}
	return 0
}

// EstimateNoiseAmplitude is the mean magnitude over a stretch of
// points holding no signal. to <= 0 means up to the end.
func EstimateNoiseAmplitude(data []complex128, frm, to int) float64 {
	if to <= 0 || to > len(data) {
		to = len(data)
	}
	if frm < 0 {
		frm = 0
	}
	if frm >= to {
		return 0
	}
	var sum float64
	for _, v := range data[frm:to] {
		sum += cmplx.Abs(v)
	}
	return sum / float64(to-frm)
}
