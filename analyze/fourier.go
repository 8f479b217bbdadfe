package analyze

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// FFT returns the discrete Fourier transform of data in standard
// order: the DC bin first, negative frequencies in the back half.
func FFT(data []complex128) []complex128 {
	if len(data) == 0 {
		return nil
	}
	t := fourier.NewCmplxFFT(len(data))
	return t.Coefficients(nil, append([]complex128(nil), data...))
}

// IFFT inverts FFT, including the 1/n normalization the raw
// transform leaves out.
func IFFT(coeffs []complex128) []complex128 {
	n := len(coeffs)
	if n == 0 {
		return nil
	}
	t := fourier.NewCmplxFFT(n)
	seq := t.Sequence(nil, append([]complex128(nil), coeffs...))
	scale := complex(1/float64(n), 0)
	for i := range seq {
		seq[i] *= scale
	}
	return seq
}

// FFTShift rolls the spectrum half a turn so the zero frequency bin
// sits in the middle, negative frequencies first.
func FFTShift(data []complex128) []complex128 {
	n := len(data)
	out := make([]complex128, n)
	h := n / 2
	for i, v := range data {
		out[(i+h)%n] = v
	}
	return out
}

// Real extracts the real channel.
func Real(data []complex128) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = real(v)
	}
	return out
}

// Imag extracts the imaginary channel.
func Imag(data []complex128) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = imag(v)
	}
	return out
}

// Abs extracts the magnitude.
func Abs(data []complex128) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = cmplx.Abs(v)
	}
	return out
}

// Phase extracts the argument of each point, in radians.
func Phase(data []complex128) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = cmplx.Phase(v)
	}
	return out
}
