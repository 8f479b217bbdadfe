package fid

/*

	One dimensional time domain data.

	A FID1D couples the complex samples of one acquisition with the
	metadata needed to interpret and archive them: spectral width,
	carrier and observation frequencies, and free text describing
	what was measured. The text fields are capped so a record always
	fits the fixed file header.

*/

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"time"

	Ra "github.com/maroda/risonanza/analyze"
)

// Character limits for the free text fields.
const (
	MaxLabelLen        = 8
	MaxSpectrometerLen = 32
	MaxSampleLen       = 60
	MaxPulseLen        = 160
)

var ErrNoData = errors.New("no time domain data")

type FID1D struct {
	Data            []complex128
	SpectralWidth   float64 // Hz, the receiver sample rate
	CarrierFreq     float64 // Hz, carrier offset inside the window
	ObservationFreq float64 // Hz, absolute reference frequency
	Label           string  // observed nucleus, e.g. 1H
	Sample          string  // what was in the tube
	Pulse           string  // pulse program description
	Spectrometer    string  // instrument identification
	Timestamp       time.Time
}

// NewFID1D validates the metadata and stamps the record. A zero
// timestamp becomes the current UTC time truncated to the second,
// the resolution the codec stores.
func NewFID1D(data []complex128, spectralWidth, carrierFreq, observationFreq float64,
	label, sample, pulse, spectrometer string, timestamp time.Time) (*FID1D, error) {
	if len(data) == 0 {
		return nil, ErrNoData
	}
	if err := checkMeta(label, sample, pulse, spectrometer); err != nil {
		return nil, err
	}
	if timestamp.IsZero() {
		timestamp = time.Now().UTC().Truncate(time.Second)
	}
	return &FID1D{
		Data:            append([]complex128(nil), data...),
		SpectralWidth:   spectralWidth,
		CarrierFreq:     carrierFreq,
		ObservationFreq: observationFreq,
		Label:           label,
		Sample:          sample,
		Pulse:           pulse,
		Spectrometer:    spectrometer,
		Timestamp:       timestamp,
	}, nil
}

func checkMeta(label, sample, pulse, spectrometer string) error {
	if len(label) > MaxLabelLen {
		return fmt.Errorf("label %q is longer than %d characters", label, MaxLabelLen)
	}
	if len(spectrometer) > MaxSpectrometerLen {
		return fmt.Errorf("spectrometer %q is longer than %d characters", spectrometer, MaxSpectrometerLen)
	}
	if len(sample) > MaxSampleLen {
		return fmt.Errorf("sample %q is longer than %d characters", sample, MaxSampleLen)
	}
	if len(pulse) > MaxPulseLen {
		return fmt.Errorf("pulse description %q is longer than %d characters", pulse, MaxPulseLen)
	}
	return nil
}

func (f *FID1D) Size() int {
	return len(f.Data)
}

func (f *FID1D) Real() []float64 {
	return Ra.Real(f.Data)
}

func (f *FID1D) Imag() []float64 {
	return Ra.Imag(f.Data)
}

func (f *FID1D) Absolute() []float64 {
	return Ra.Abs(f.Data)
}

// USScale is the acquisition time of every sample in microseconds.
func (f *FID1D) USScale() []float64 {
	out := make([]float64, len(f.Data))
	dwell := 1e6 / f.SpectralWidth
	for i := range out {
		out[i] = float64(i) * dwell
	}
	return out
}

// MSScale is USScale in milliseconds.
func (f *FID1D) MSScale() []float64 {
	out := f.USScale()
	for i := range out {
		out[i] /= 1e3
	}
	return out
}

// Equal compares metadata exactly and samples with a small numeric
// tolerance, enough to survive the float32 round trip of the codec.
func (f *FID1D) Equal(other *FID1D) bool {
	if f == nil || other == nil {
		return f == other
	}
	if len(f.Data) != len(other.Data) {
		return false
	}
	if f.SpectralWidth != other.SpectralWidth ||
		f.CarrierFreq != other.CarrierFreq ||
		f.ObservationFreq != other.ObservationFreq {
		return false
	}
	if f.Label != other.Label || f.Sample != other.Sample ||
		f.Pulse != other.Pulse || f.Spectrometer != other.Spectrometer {
		return false
	}
	if !f.Timestamp.Equal(other.Timestamp) {
		return false
	}
	for i := range f.Data {
		if !closeSample(f.Data[i], other.Data[i]) {
			return false
		}
	}
	return true
}

// The float32 storage keeps about seven significant digits, so the
// comparison tolerance sits well above that.
func closeSample(a, b complex128) bool {
	return cmplx.Abs(a-b) <= 1e-8+1e-5*cmplx.Abs(b)
}

// SpectrumOpts tunes the processing pipeline. The zero value asks
// for zero filling and automatic phase correction.
type SpectrumOpts struct {
	NoZeroFill  bool
	NoPhase     bool
	ManualPhase bool    // apply Phase instead of searching
	Phase       float64 // degrees, read only when ManualPhase is set
	PeakWidth   int     // phase search window in points, 0 for the default
}

// Spectrum transforms the FID to the frequency domain: optional zero
// fill to the next power of two at least twice the length, FFT,
// center shift, then zero order phase correction. It returns the
// spectrum together with the phase that was applied.
func (f *FID1D) Spectrum(opts SpectrumOpts) (*Spectrum1D, float64, error) {
	if len(f.Data) == 0 {
		return nil, 0, ErrNoData
	}

	data := append([]complex128(nil), f.Data...)
	if !opts.NoZeroFill {
		data = zeroFill(data)
	}
	spec := Ra.FFTShift(Ra.FFT(data))

	p0 := 0.0
	switch {
	case opts.NoPhase:
	case opts.ManualPhase:
		p0 = opts.Phase
	default:
		var err error
		p0, err = Ra.FindPhaseShift(spec, Ra.AutoPhaseStart(spec), opts.PeakWidth)
		if err != nil {
			return nil, 0, fmt.Errorf("automatic phase correction: %w", err)
		}
	}
	if p0 != 0 {
		spec = Ra.PhaseRotate(spec, p0)
	}

	return NewSpectrum1D(spec, f.SpectralWidth, f.ObservationFreq, f.CarrierFreq), p0, nil
}

// zeroFill pads to the next power of two at least twice the input,
// doubling digital resolution.
func zeroFill(data []complex128) []complex128 {
	size := 1
	for size < 2*len(data) {
		size <<= 1
	}
	out := make([]complex128, size)
	copy(out, data)
	return out
}

// Synthetic builds a decaying complex oscillation, the shape a real
// acquisition of a single resonance would produce. freqHz is the
// offset from the carrier, decay the 1/e time in seconds.
func Synthetic(n int, sampleRate, freqHz, decay float64) []complex128 {
	out := make([]complex128, n)
	for i := range out {
		t := float64(i) / sampleRate
		out[i] = cmplx.Rect(math.Exp(-t/decay), 2*math.Pi*freqHz*t)
	}
	return out
}
