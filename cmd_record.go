package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	Ri "github.com/maroda/risonanza/instrument"
	Rp "github.com/maroda/risonanza/plugin"
	Rs "github.com/maroda/risonanza/sequence"
)

var (
	recPulseUS    float64
	recTauUS      float64
	recDelayUS    float64
	recRecordUS   float64
	recTXFreq     float64
	recSample     string
	recLabel      string
	recRepTime    time.Duration
	recRuns       int
	recSteps      int
	recTauStartUS float64
	recTauEndUS   float64
	recPulseEndUS float64
	recOut        string
	recOutPath    string
	recMIDIPort   int
	recTransforms []string
)

var recordCmd = &cobra.Command{
	Use:   "record [fid|spinecho|t2|rabi]",
	Short: "Acquire runs on the spectrometer and store them",
	Long: `Builds the pulse sequences for the chosen experiment, plays them
on the connected controller and stores every run through the output
adapter.

Experiments:
  fid       one pulse, then record (repeat with --runs)
  spinecho  90-tau-180, record the echo
  t2        spin echo series over a tau range (--tau-start-us/--tau-end-us/--steps)
  rabi      pulse length sweep for a nutation curve (--pulse-end-us/--steps)`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().Float64Var(&recPulseUS, "pulse-us", 9, "90 degree pulse length in microseconds")
	recordCmd.Flags().Float64Var(&recTauUS, "tau-us", 2000, "Echo delay in microseconds (spinecho)")
	recordCmd.Flags().Float64Var(&recDelayUS, "delay-us", 50, "Ringdown delay before recording, microseconds")
	recordCmd.Flags().Float64Var(&recRecordUS, "record-us", 10000, "Record window length in microseconds")
	recordCmd.Flags().Float64Var(&recTXFreq, "tx-freq", 0, "Transmit frequency in Hz, overrides the config")
	recordCmd.Flags().StringVar(&recSample, "sample", "unknown", "What is in the tube")
	recordCmd.Flags().StringVar(&recLabel, "label", "1H", "Observed nucleus")
	recordCmd.Flags().DurationVar(&recRepTime, "rep-time", time.Second, "Wait between runs")
	recordCmd.Flags().IntVar(&recRuns, "runs", 1, "Repetitions (fid and spinecho)")
	recordCmd.Flags().IntVar(&recSteps, "steps", 8, "Points in a t2 or rabi series")
	recordCmd.Flags().Float64Var(&recTauStartUS, "tau-start-us", 200, "First echo delay of a t2 series, microseconds")
	recordCmd.Flags().Float64Var(&recTauEndUS, "tau-end-us", 10000, "Last echo delay of a t2 series, microseconds")
	recordCmd.Flags().Float64Var(&recPulseEndUS, "pulse-end-us", 40, "Longest pulse of a rabi sweep, microseconds")
	recordCmd.Flags().StringVar(&recOut, "out", "badger", "Output adapter: badger, files or midi")
	recordCmd.Flags().StringVar(&recOutPath, "out-path", "", "Archive path, defaults to the config")
	recordCmd.Flags().IntVar(&recMIDIPort, "midi-port", 0, "MIDI port for --out midi")
	recordCmd.Flags().StringSliceVar(&recTransforms, "transform", nil, "Sample transformers to apply, in order")
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	seqs, descs, err := buildSequences(args[0])
	if err != nil {
		return err
	}

	txFreq := cfg.Spectrometer.TXFreq
	if recTXFreq > 0 {
		txFreq = recTXFreq
	}

	sp, err := Ri.NewSpectrometer(txFreq, cfg.Spectrometer.RXFreq,
		cfg.Spectrometer.SampleRate, cfg.ConnectionSettings())
	if err != nil {
		return err
	}

	if err := sp.Connect(ctx); err != nil {
		return err
	}
	defer sp.Disconnect()

	out, err := recordOutput(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			slog.Error("Could not close the output", slog.Any("Error", err))
		}
	}()

	sess := Ri.NewSession(sp, seqs, recRepTime, recSample, recLabel, args[0], out)
	sess.RunDescs = descs

	for _, name := range recTransforms {
		tr, err := Rp.TransformerLookup(name)
		if err != nil {
			return err
		}
		sess.Transforms = append(sess.Transforms, tr)
	}

	fmt.Printf("recording %d run(s) of %s from %s\n",
		len(seqs), args[0], cfg.ConnectionSettings().SocketAddr())

	if err := sess.Run(ctx); err != nil {
		return err
	}

	if f := sess.LastFID(); f != nil {
		fmt.Printf("done, %d points per run stored via %s\n", f.Size(), out.Type())
	}
	return nil
}

// buildSequences turns the experiment name and flags into the run list
func buildSequences(mode string) ([]Rs.Sequence, []string, error) {
	switch mode {
	case "fid":
		var seqs []Rs.Sequence
		var descs []string
		for i := 0; i < recRuns; i++ {
			seq, err := Rs.Simple(recPulseUS, recDelayUS, recRecordUS)
			if err != nil {
				return nil, nil, err
			}
			seqs = append(seqs, seq)
			descs = append(descs, fmt.Sprintf("fid p90=%vus", recPulseUS))
		}
		return seqs, descs, nil

	case "spinecho":
		var seqs []Rs.Sequence
		var descs []string
		for i := 0; i < recRuns; i++ {
			seq, err := Rs.SpinEcho(recPulseUS, recTauUS, recDelayUS, recRecordUS)
			if err != nil {
				return nil, nil, err
			}
			seqs = append(seqs, seq)
			descs = append(descs, fmt.Sprintf("spinecho p90=%vus tau=%vus", recPulseUS, recTauUS))
		}
		return seqs, descs, nil

	case "t2":
		if recSteps < 2 {
			return nil, nil, fmt.Errorf("a t2 series needs at least 2 steps, got %d", recSteps)
		}
		taus := floats.Span(make([]float64, recSteps), recTauStartUS, recTauEndUS)
		return Ri.T2Sequences(recPulseUS, taus, recRecordUS)

	case "rabi":
		if recSteps < 2 {
			return nil, nil, fmt.Errorf("a rabi sweep needs at least 2 steps, got %d", recSteps)
		}
		lens := floats.Span(make([]float64, recSteps), 1, recPulseEndUS)
		return Ri.RabiSequences(lens, recDelayUS, recRecordUS)
	}

	return nil, nil, fmt.Errorf("unknown experiment %q, pick fid, spinecho, t2 or rabi", mode)
}

func recordOutput(cfg *Ri.Config) (Rp.OutputAdapter, error) {
	switch recOut {
	case "badger":
		path := recOutPath
		if path == "" {
			path = cfg.Archive.Path
		}
		return Rp.NewBadgerOutput(path, cfg.Archive.BatchSize)
	case "files":
		path := recOutPath
		if path == "" {
			path = "."
		}
		return Rp.NewFileOutput(path)
	case "midi":
		return Rp.NewMIDIOutput(recMIDIPort)
	}
	return nil, fmt.Errorf("unknown output %q, pick badger, files or midi", recOut)
}
