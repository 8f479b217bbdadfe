package fid

import (
	"math"

	"gonum.org/v1/gonum/floats"

	Ra "github.com/maroda/risonanza/analyze"
)

// Peak is one detected resonance.
type Peak struct {
	Location       float64    // position on the index scale
	Amplitude      complex128 // spectrum value at the top
	FWHM           float64    // full width at half maximum, in points
	SignalStrength float64    // sum of the real channel across the line
}

// Spectrum1D is frequency domain data as produced by Spectrum, the
// carrier sitting in the middle bin.
type Spectrum1D struct {
	Data            []complex128
	SpectralWidth   float64
	ObservationFreq float64
	CarrierFreq     float64
}

func NewSpectrum1D(data []complex128, spectralWidth, observationFreq, carrierFreq float64) *Spectrum1D {
	return &Spectrum1D{
		Data:            data,
		SpectralWidth:   spectralWidth,
		ObservationFreq: observationFreq,
		CarrierFreq:     carrierFreq,
	}
}

func (s *Spectrum1D) Size() int {
	return len(s.Data)
}

func (s *Spectrum1D) Real() []float64 {
	return Ra.Real(s.Data)
}

func (s *Spectrum1D) Imag() []float64 {
	return Ra.Imag(s.Data)
}

func (s *Spectrum1D) Absolute() []float64 {
	return Ra.Abs(s.Data)
}

func (s *Spectrum1D) Phase() []float64 {
	return Ra.Phase(s.Data)
}

// Scale is the index scale, the x axis peak positions and integrals
// refer to.
func (s *Spectrum1D) Scale() []float64 {
	out := make([]float64, len(s.Data))
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

// HzScale maps every bin to its absolute frequency, ascending, with
// the carrier in the middle bin.
func (s *Spectrum1D) HzScale() []float64 {
	n := len(s.Data)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	step := s.SpectralWidth / float64(n)
	mid := n / 2
	for i := range out {
		out[i] = s.CarrierFreq + float64(i-mid)*step
	}
	return out
}

// PPMScale is HzScale in parts per million of the observation
// frequency. All zeros when no observation frequency is set.
func (s *Spectrum1D) PPMScale() []float64 {
	if s.ObservationFreq == 0 {
		return make([]float64, len(s.Data))
	}
	out := s.HzScale()
	obsMHz := s.ObservationFreq / 1e6
	for i := range out {
		out[i] /= obsMHz
	}
	return out
}

// MaxPeak is the index of the strongest magnitude.
func (s *Spectrum1D) MaxPeak() int {
	if len(s.Data) == 0 {
		return 0
	}
	return floats.MaxIdx(s.Absolute())
}

// Integrate sums the complex signal over [frm, to) on the index
// scale.
func (s *Spectrum1D) Integrate(frm, to int) complex128 {
	frm, to = s.clip(frm, to)
	var sum complex128
	for _, v := range s.Data[frm:to] {
		sum += v
	}
	return sum
}

// IntegrateAround is Integrate over a window of width points
// centered on pos.
func (s *Spectrum1D) IntegrateAround(pos, width int) complex128 {
	return s.Integrate(pos-width/2, pos+width/2)
}

// Noise is the population standard deviation of the signal between
// frm and to. to <= 0 means the whole spectrum. Pick a stretch
// without peaks to get the noise floor.
func (s *Spectrum1D) Noise(frm, to int) float64 {
	if to <= 0 {
		to = len(s.Data)
	}
	frm, to = s.clip(frm, to)
	n := to - frm
	if n < 2 {
		return 0
	}
	var mean complex128
	for _, v := range s.Data[frm:to] {
		mean += v
	}
	mean /= complex(float64(n), 0)
	var ss float64
	for _, v := range s.Data[frm:to] {
		d := v - mean
		ss += real(d)*real(d) + imag(d)*imag(d)
	}
	return math.Sqrt(ss / float64(n))
}

// Peaks finds local maxima of the real channel above the threshold.
// A threshold of zero or below asks for three times the noise floor
// of the whole spectrum. Width and strength come from the half
// maximum crossings around each top. Plateaus count once.
func (s *Spectrum1D) Peaks(threshold float64) []Peak {
	if len(s.Data) < 3 {
		return nil
	}
	if threshold <= 0 {
		threshold = 3 * s.Noise(0, 0)
	}

	re := s.Real()
	var peaks []Peak
	for i := 1; i < len(re)-1; i++ {
		if re[i] < threshold || re[i] < re[i-1] || re[i] < re[i+1] {
			continue
		}
		if re[i] == re[i-1] {
			continue
		}
		left, right := halfMaxSpan(re, i)
		peaks = append(peaks, Peak{
			Location:       float64(i),
			Amplitude:      s.Data[i],
			FWHM:           float64(right - left),
			SignalStrength: realSum(re, left, right),
		})
	}
	return peaks
}

// halfMaxSpan walks out from the top to the first point at or below
// half height on each side.
func halfMaxSpan(re []float64, peak int) (int, int) {
	half := re[peak] / 2
	left := peak
	for left > 0 && re[left] > half {
		left--
	}
	right := peak
	for right < len(re)-1 && re[right] > half {
		right++
	}
	return left, right
}

func realSum(re []float64, frm, to int) float64 {
	var sum float64
	for _, v := range re[frm : to+1] {
		sum += v
	}
	return sum
}

// Crop cuts the spectrum to [frm, to) and recomputes the spectral
// width and carrier, so HzScale on the slice reports the same
// frequencies the bins had before.
func (s *Spectrum1D) Crop(frm, to int) *Spectrum1D {
	frm, to = s.clip(frm, to)
	n := to - frm
	step := 0.0
	if len(s.Data) > 0 {
		step = s.SpectralWidth / float64(len(s.Data))
	}
	carrier := s.CarrierFreq
	if n > 0 {
		carrier = s.HzScale()[frm+n/2]
	}
	return &Spectrum1D{
		Data:            append([]complex128(nil), s.Data[frm:to]...),
		SpectralWidth:   step * float64(n),
		ObservationFreq: s.ObservationFreq,
		CarrierFreq:     carrier,
	}
}

// CropAround is Crop to a window of width bins centered on pos.
func (s *Spectrum1D) CropAround(pos, width int) *Spectrum1D {
	return s.Crop(pos-width/2, pos+width/2)
}

// FitLorentz fits the real channel with a single resonance line on
// the index scale.
func (s *Spectrum1D) FitLorentz() (Ra.Lorentzian, error) {
	return Ra.FitLorentzian(s.Scale(), s.Real())
}

func (s *Spectrum1D) clip(frm, to int) (int, int) {
	if frm < 0 {
		frm = 0
	}
	if to > len(s.Data) {
		to = len(s.Data)
	}
	if to < frm {
		to = frm
	}
	return frm, to
}
