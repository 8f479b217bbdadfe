package analyze

/*

	Curve models for relaxation and resonance measurements.

	Every fit is unweighted least squares driven by Nelder-Mead,
	with starting guesses derived from the data. That is enough for
	the clean decays and single peaks a bench instrument produces.

*/

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

var ErrShortFit = errors.New("not enough points to fit")

// leastSquares minimizes the summed squared residuals of model over
// the observations, starting from guess.
func leastSquares(xs, ys, guess []float64, model func(p []float64, x float64) float64) ([]float64, error) {
	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			var ssr float64
			for i, x := range xs {
				r := ys[i] - model(p, x)
				ssr += r * r
			}
			return ssr
		},
	}
	result, err := optimize.Minimize(problem, guess, nil, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("fit did not converge: %w", err)
	}
	return result.X, nil
}

// ExpDecay is the three parameter decay A*exp(-lambda*x) + C.
type ExpDecay struct {
	Amplitude float64 // starting height above the offset
	Lambda    float64 // decay rate in 1/x units
	Offset    float64
}

func (e ExpDecay) Eval(x float64) float64 {
	return e.Amplitude*math.Exp(-e.Lambda*x) + e.Offset
}

// HalfLife is the x distance over which the decay loses half its
// height, ln(2)/lambda.
func (e ExpDecay) HalfLife() float64 {
	return math.Ln2 / e.Lambda
}

// FitExpDecay fits an exponential decay, guessing the amplitude from
// the data range and starting with no decay at all.
func FitExpDecay(x, y []float64) (ExpDecay, error) {
	if len(x) != len(y) {
		return ExpDecay{}, fmt.Errorf("%d x values for %d y values", len(x), len(y))
	}
	if len(x) < 4 {
		return ExpDecay{}, ErrShortFit
	}

	guess := []float64{floats.Max(y) - floats.Min(y), 0, floats.Min(y)}
	p, err := leastSquares(x, y, guess, func(p []float64, x float64) float64 {
		return p[0]*math.Exp(-p[1]*x) + p[2]
	})
	if err != nil {
		return ExpDecay{}, err
	}
	return ExpDecay{Amplitude: p[0], Lambda: p[1], Offset: p[2]}, nil
}

// DecayingSinus is a damped oscillation
// A*exp(-lambda*x)*sin(2*pi*f*x + phi) + C.
type DecayingSinus struct {
	Amplitude float64
	Lambda    float64
	Freq      float64 // oscillations per x unit
	Phase     float64 // radians
	Offset    float64
}

func (d DecayingSinus) Eval(x float64) float64 {
	return d.Amplitude*math.Exp(-d.Lambda*x)*math.Sin(2*math.Pi*d.Freq*x+d.Phase) + d.Offset
}

// Period is the length of one oscillation, the quantity a Rabi
// nutation measurement is after.
func (d DecayingSinus) Period() float64 {
	return 1 / d.Freq
}

// FitDecayingSinus fits a damped oscillation. The frequency guess
// comes from the strongest FFT bin, the amplitude guess from the
// standard deviation, so the data should hold a few full periods.
func FitDecayingSinus(x, y []float64) (DecayingSinus, error) {
	if len(x) != len(y) {
		return DecayingSinus{}, fmt.Errorf("%d x values for %d y values", len(x), len(y))
	}
	if len(x) < 6 {
		return DecayingSinus{}, ErrShortFit
	}

	guess := []float64{
		stat.PopStdDev(y, nil) * math.Sqrt2,
		0,
		dominantFreq(y, x[1]-x[0]),
		0,
		stat.Mean(y, nil),
	}
	p, err := leastSquares(x, y, guess, func(p []float64, x float64) float64 {
		return p[0]*math.Exp(-p[1]*x)*math.Sin(2*math.Pi*p[2]*x+p[3]) + p[4]
	})
	if err != nil {
		return DecayingSinus{}, err
	}
	return DecayingSinus{Amplitude: p[0], Lambda: p[1], Freq: p[2], Phase: p[3], Offset: p[4]}, nil
}

// dominantFreq is the strongest non-DC bin of the real spectrum,
// in oscillations per x unit for samples spaced dx apart.
func dominantFreq(y []float64, dx float64) float64 {
	if dx <= 0 || len(y) < 4 {
		return 0
	}
	t := fourier.NewFFT(len(y))
	coeffs := t.Coefficients(nil, append([]float64(nil), y...))
	best := 1
	for i := 2; i < len(coeffs); i++ {
		if cmplx.Abs(coeffs[i]) > cmplx.Abs(coeffs[best]) {
			best = i
		}
	}
	return t.Freq(best) / dx
}

// Lorentzian is the resonance line shape
// A*gamma^2 / ((x-pos)^2 + gamma^2), unit height A at the center.
type Lorentzian struct {
	Amplitude float64
	Gamma     float64 // half width at half maximum
	Position  float64
}

func (l Lorentzian) Eval(x float64) float64 {
	return lorentz(l.Amplitude, l.Gamma, l.Position, x)
}

// FWHM is the full width at half maximum, twice gamma.
func (l Lorentzian) FWHM() float64 {
	return 2 * l.Gamma
}

func lorentz(amp, gamma, pos, x float64) float64 {
	d := x - pos
	return amp * gamma * gamma / (d*d + gamma*gamma)
}

// FitLorentzian fits a single resonance line. The width guess comes
// from the points nearest half maximum on both sides of the peak.
// Gamma comes back non-negative whichever sign the search landed on.
func FitLorentzian(x, y []float64) (Lorentzian, error) {
	if len(x) != len(y) {
		return Lorentzian{}, fmt.Errorf("%d x values for %d y values", len(x), len(y))
	}
	if len(x) < 4 {
		return Lorentzian{}, ErrShortFit
	}

	amp := floats.Max(y) - floats.Min(y)
	peak := floats.MaxIdx(y)
	guess := []float64{amp, halfWidthGuess(x, y, peak, amp/2), x[peak]}
	p, err := leastSquares(x, y, guess, func(p []float64, x float64) float64 {
		return lorentz(p[0], p[1], p[2], x)
	})
	if err != nil {
		return Lorentzian{}, err
	}
	return Lorentzian{Amplitude: p[0], Gamma: math.Abs(p[1]), Position: p[2]}, nil
}

func halfWidthGuess(x, y []float64, peak int, half float64) float64 {
	right := peak + nearestIdx(y[peak:], half)
	left := nearestIdx(y[:peak], half)
	g := (x[right] - x[left]) / 2
	if g <= 0 {
		if len(x) > 1 {
			return x[1] - x[0]
		}
		return 1
	}
	return g
}

// nearestIdx is the index of the value closest to v, 0 when xs is
// empty.
func nearestIdx(xs []float64, v float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, x := range xs {
		if d := math.Abs(x - v); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
