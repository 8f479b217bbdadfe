package risonanza

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	Rf "github.com/maroda/risonanza/fid"
	Ro "github.com/maroda/risonanza/obvy"
	Rp "github.com/maroda/risonanza/plugin"
	Rs "github.com/maroda/risonanza/sequence"
	Rt "github.com/maroda/risonanza/types"
)

const InstrumentName = "risonanza v0.1"

// Receiver ringdown after the refocusing pulse.
const ringdownUS = 50.0

// Session drives one experiment: a set of sequences played in
// order, each run transformed, wrapped in metadata and stored.
// Progress goes out on Events without ever blocking the loop.
// One Session per Spectrometer at a time.
type Session struct {
	MU         sync.Mutex
	Spec       *Spectrometer
	Seqs       []Rs.Sequence
	RepTime    time.Duration
	Sample     string
	Label      string
	PulseDesc  string
	RunDescs   []string // optional per-run pulse description
	Output     Rp.OutputAdapter
	Transforms []Rp.SampleTransformer
	Stats      *Ro.StatsInternal
	Events     chan Rt.RunEvent
	lastFID    *Rf.FID1D
}

func NewSession(spec *Spectrometer, seqs []Rs.Sequence, repTime time.Duration,
	sample, label, pulse string, out Rp.OutputAdapter) *Session {
	return &Session{
		Spec:      spec,
		Seqs:      seqs,
		RepTime:   repTime,
		Sample:    sample,
		Label:     label,
		PulseDesc: pulse,
		Output:    out,
		Stats:     Ro.NewStatsInternal(),
		Events:    make(chan Rt.RunEvent, len(seqs)*2+4),
	}
}

// Run plays every sequence. Cancelling the context stops between
// runs, a run already on the hardware completes.
func (s *Session) Run(ctx context.Context) error {
	runID := time.Now().UTC().Format("20060102-150405")
	total := len(s.Seqs)

	s.Stats.RecSessionStart()
	defer s.Stats.RecSessionEnd()

	for i, seq := range s.Seqs {
		select {
		case <-ctx.Done():
			s.emit(runID, i+1, total, Rt.RunFailed, "cancelled")
			return ctx.Err()
		default:
		}

		s.emit(runID, i+1, total, Rt.RunActive, s.runDesc(i))
		start := time.Now()

		samples, err := s.Spec.SendSequence(ctx, seq)
		if err != nil {
			s.Stats.RecRun(false, time.Since(start))
			s.emit(runID, i+1, total, Rt.RunFailed, err.Error())
			return fmt.Errorf("run %d of %d: %w", i+1, total, err)
		}

		// A broken transformer skips, it never loses the run
		for _, tr := range s.Transforms {
			cooked, err := tr.Transform(samples)
			if err != nil {
				slog.Error("Transformer failed, skipping",
					slog.String("type", tr.Type()),
					slog.Any("Error", err))
				s.Stats.RecTransformError()
				continue
			}
			samples = cooked
		}

		f, err := Rf.NewFID1D(samples, s.Spec.SampleRate, 0, s.Spec.RXFreq,
			s.Label, s.Sample, s.runDesc(i), InstrumentName, time.Time{})
		if err != nil {
			s.Stats.RecRun(false, time.Since(start))
			s.emit(runID, i+1, total, Rt.RunFailed, err.Error())
			return fmt.Errorf("run %d of %d: %w", i+1, total, err)
		}

		if s.Output != nil {
			if err := s.Output.WriteRun(f); err != nil {
				s.Stats.RecRun(false, time.Since(start))
				s.emit(runID, i+1, total, Rt.RunFailed, err.Error())
				return fmt.Errorf("storing run %d of %d: %w", i+1, total, err)
			}
		}

		s.setLastFID(f)
		s.Stats.RecRun(true, time.Since(start))
		s.Stats.RecSamples(len(samples))
		s.emit(runID, i+1, total, Rt.RunDone, s.runDesc(i))

		if i == total-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.RepTime):
		}
	}

	return nil
}

func (s *Session) runDesc(i int) string {
	if i < len(s.RunDescs) {
		return s.RunDescs[i]
	}
	return s.PulseDesc
}

func (s *Session) emit(runID string, seq, total int, state Rt.RunState, msg string) {
	if s.Events == nil {
		return
	}
	ev := Rt.RunEvent{
		RunID:     runID,
		Seq:       seq,
		Total:     total,
		State:     state,
		Message:   msg,
		Timestamp: time.Now(),
	}
	select {
	case s.Events <- ev:
	default: // nobody listening, drop instead of stalling the run
	}
}

func (s *Session) setLastFID(f *Rf.FID1D) {
	s.MU.Lock()
	defer s.MU.Unlock()
	s.lastFID = f
}

// LastFID is the most recently stored run, nil before the first.
func (s *Session) LastFID() *Rf.FID1D {
	s.MU.Lock()
	defer s.MU.Unlock()
	return s.lastFID
}

// T2Sequences builds one spin echo per tau for a relaxation fit.
func T2Sequences(pulseLenUS float64, delaysUS []float64, recordUS float64) ([]Rs.Sequence, []string, error) {
	seqs := make([]Rs.Sequence, 0, len(delaysUS))
	descs := make([]string, 0, len(delaysUS))

	for _, tau := range delaysUS {
		seq, err := Rs.SpinEcho(pulseLenUS, tau, ringdownUS, recordUS)
		if err != nil {
			return nil, nil, fmt.Errorf("tau %vus: %w", tau, err)
		}
		seqs = append(seqs, seq)
		descs = append(descs, fmt.Sprintf("spinecho p90=%vus tau=%vus", pulseLenUS, tau))
	}

	return seqs, descs, nil
}

// RabiSequences varies the pulse length for a nutation curve.
func RabiSequences(pulseLensUS []float64, delayUS, recordUS float64) ([]Rs.Sequence, []string, error) {
	seqs := make([]Rs.Sequence, 0, len(pulseLensUS))
	descs := make([]string, 0, len(pulseLensUS))

	for _, p := range pulseLensUS {
		seq, err := Rs.Simple(p, delayUS, recordUS)
		if err != nil {
			return nil, nil, fmt.Errorf("pulse %vus: %w", p, err)
		}
		seqs = append(seqs, seq)
		descs = append(descs, fmt.Sprintf("pulse %vus", p))
	}

	return seqs, descs, nil
}
