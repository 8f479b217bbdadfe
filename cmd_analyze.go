package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	Ra "github.com/maroda/risonanza/analyze"
	Rf "github.com/maroda/risonanza/fid"
)

var fitModel string

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file.fid]",
	Short: "Transform a stored run and report its resonances",
	Long: `Reads a .fid file, transforms it to the frequency domain with
automatic phase correction and prints what it finds. --fit adds a
model fit: lorentz for a line shape on the spectrum, expdecay for
the time domain envelope.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&fitModel, "fit", "", "Model fit: lorentz or expdecay")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	f, err := Rf.ReadFile(args[0])
	if err != nil {
		return err
	}

	spec, p0, err := f.Spectrum(Rf.SpectrumOpts{})
	if err != nil {
		return err
	}

	hz := spec.HzScale()
	binStep := spec.SpectralWidth / float64(spec.Size())
	top := spec.MaxPeak()

	fmt.Printf("sample: %s  nucleus: %s  pulse: %s\n", f.Sample, f.Label, f.Pulse)
	fmt.Printf("recorded: %s on %s\n", f.Timestamp.Format(time.RFC3339), f.Spectrometer)
	fmt.Printf("points: %d  spectral width: %.0f Hz  phase: %.1f deg\n",
		f.Size(), f.SpectralWidth, p0)
	fmt.Printf("tallest signal: %.4g at %.1f Hz\n", spec.Absolute()[top], hz[top])
	fmt.Printf("noise floor: %.4g\n", spec.Noise(0, 0))

	for i, p := range spec.Peaks(0) {
		fmt.Printf("  peak %d: %.1f Hz  height %.4g  width %.1f Hz\n",
			i+1, hz[int(p.Location)], real(p.Amplitude), p.FWHM*binStep)
	}

	switch fitModel {
	case "":
		return nil

	case "lorentz":
		fit, err := spec.FitLorentz()
		if err != nil {
			return err
		}
		center := hz[0] + fit.Position*binStep
		fmt.Printf("lorentz fit: center %.1f Hz  FWHM %.1f Hz  height %.4g\n",
			center, fit.FWHM()*binStep, fit.Amplitude)
		return nil

	case "expdecay":
		// Fit the time domain envelope, lambda comes out in 1/s
		xs := make([]float64, f.Size())
		for i := range xs {
			xs[i] = float64(i) / f.SpectralWidth
		}
		fit, err := Ra.FitExpDecay(xs, f.Absolute())
		if err != nil {
			return err
		}
		fmt.Printf("decay fit: T2* %.4g s  half life %.4g s  height %.4g\n",
			1/fit.Lambda, fit.HalfLife(), fit.Amplitude)
		return nil
	}

	return fmt.Errorf("unknown fit %q, pick lorentz or expdecay", fitModel)
}
