package plugin

/*
	Phase0

	Zero order phase correction applied in the time domain.

	The raw samples move to the frequency domain to search for the
	rotation that makes the tallest line purely absorptive. A zero
	order correction is one constant factor, so the rotation applies
	to the raw samples directly.
*/

import (
	"fmt"
	"log/slog"

	Ra "github.com/maroda/risonanza/analyze"
)

type PhasePlugin struct {
	PeakWidth int
}

// NewPhaseTransformer returns a phase corrector. Zero peakwidth
// means the default window around the tallest line.
func NewPhaseTransformer(peakwidth int) *PhasePlugin {
	if peakwidth <= 0 {
		peakwidth = Ra.DefaultPeakWidth
	}
	return &PhasePlugin{PeakWidth: peakwidth}
}

func (tp *PhasePlugin) Transform(data []complex128) ([]complex128, error) {
	if len(data) == 0 {
		return data, nil
	}

	spectrum := Ra.FFTShift(Ra.FFT(data))

	p0, err := Ra.FindPhaseShift(spectrum, Ra.AutoPhaseStart(spectrum), tp.PeakWidth)
	if err != nil {
		slog.Error("Phase search failed",
			slog.Int("samples", len(data)),
			slog.Any("error", err))
		return nil, fmt.Errorf("error finding phase shift: %w", err)
	}
	slog.Debug("Phase correction", slog.Float64("p0", p0))

	return Ra.PhaseRotate(data, p0), nil
}

func (tp *PhasePlugin) Type() string { return "phase0" }
