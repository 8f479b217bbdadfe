package risonanza

/*

	The Spectrometer is the client side of the controller board.
	It compiles a pulse sequence into the four FPGA channel event
	lists and hands them to an execution Backend for one run.

*/

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"time"

	Rs "github.com/maroda/risonanza/sequence"
)

const (
	// The controller needs settle time before the first event,
	// every sequence slides right by this much on send.
	rxGateShiftUS = 10.0

	dialTimeout = 5 * time.Second
)

var ErrNotConnected = errors.New("not connected to the spectrometer, call Connect first")

type Risonanza interface {
	Connect(ctx context.Context) error
	Disconnect() error
	SendSequence(ctx context.Context, seq Rs.Sequence) ([]complex128, error)
	SendSequences(ctx context.Context, seqs []Rs.Sequence, repTime time.Duration) ([][]complex128, error)
}

type Spectrometer struct {
	TXFreq     float64 // Hz
	RXFreq     float64 // Hz
	SampleRate float64 // Hz
	Settings   ConnectionSettings
	Backend    Backend // swapped for a fake in tests
	conn       net.Conn
}

// NewSpectrometer validates the radio parameters against the board.
// An rxFreq of zero mirrors txFreq, the usual on-resonance case.
func NewSpectrometer(txFreq, rxFreq, sampleRate float64, cs ConnectionSettings) (*Spectrometer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %v must be positive", Rs.ErrInvalidParameter, sampleRate)
	}
	if txFreq < 0 || rxFreq < 0 {
		return nil, fmt.Errorf("%w: negative frequency (tx %v, rx %v)", Rs.ErrInvalidParameter, txFreq, rxFreq)
	}
	if rxFreq == 0 {
		rxFreq = txFreq
	}

	// The decimator divides the FPGA clock by a whole number,
	// anything else silently shifts the rate on the hardware.
	cycles := cs.FPGAClockFreq / sampleRate
	if cycles != math.Trunc(cycles) {
		nearest := cs.FPGAClockFreq / math.Round(cycles)
		return nil, fmt.Errorf("%w: sample rate %v does not divide the FPGA clock %v, closest achievable is %v",
			Rs.ErrInvalidParameter, sampleRate, cs.FPGAClockFreq, nearest)
	}

	return &Spectrometer{
		TXFreq:     txFreq,
		RXFreq:     rxFreq,
		SampleRate: sampleRate,
		Settings:   cs,
	}, nil
}

func (sp *Spectrometer) Connect(ctx context.Context) error {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", sp.Settings.SocketAddr())
	if err != nil {
		slog.Error("Could not reach the controller",
			slog.String("addr", sp.Settings.SocketAddr()),
			slog.Any("Error", err))
		return fmt.Errorf("connecting to %s: %w", sp.Settings.SocketAddr(), err)
	}

	sp.conn = conn
	sp.Backend = NewMarcosBackend(conn)
	slog.Info("Connected to controller", slog.String("addr", sp.Settings.SocketAddr()))

	return nil
}

func (sp *Spectrometer) Disconnect() error {
	if sp.conn == nil {
		return nil
	}
	err := sp.conn.Close()
	sp.conn = nil
	sp.Backend = nil
	return err
}

// SendSequence plays one sequence and returns the complex samples
// the receiver saw during its record windows.
func (sp *Spectrometer) SendSequence(ctx context.Context, seq Rs.Sequence) ([]complex128, error) {
	if sp.Backend == nil {
		return nil, ErrNotConnected
	}

	shifted, err := seq.Shift(rxGateShiftUS)
	if err != nil {
		return nil, fmt.Errorf("preparing sequence: %w", err)
	}

	req := ChannelRequest{
		TXFreq:       sp.TXFreq,
		RXFreq:       sp.RXFreq,
		SamplePeriod: 1e6 / sp.SampleRate,
		Channels:     Channels(shifted),
	}

	samples, err := sp.Backend.Run(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("executing sequence: %w", err)
	}

	slog.Debug("Sequence executed", slog.Int("samples", len(samples)))
	return samples, nil
}

// SendSequences plays a set back to back, sleeping repTime between
// runs so the spins relax. Cancelling the context stops between runs.
func (sp *Spectrometer) SendSequences(ctx context.Context, seqs []Rs.Sequence, repTime time.Duration) ([][]complex128, error) {
	out := make([][]complex128, 0, len(seqs))

	for i, seq := range seqs {
		samples, err := sp.SendSequence(ctx, seq)
		if err != nil {
			return out, fmt.Errorf("sequence %d of %d: %w", i+1, len(seqs), err)
		}
		out = append(out, samples)

		if i == len(seqs)-1 {
			break
		}
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-time.After(repTime):
		}
	}

	return out, nil
}

// Channels derives the four FPGA control lines from one sequence:
// tx0 carries the complex power envelope, tx_gate keys the amplifier
// around the pulses, rx0_en and rx_gate key the receiver windows.
func Channels(seq Rs.Sequence) map[string]ChannelEvents {
	gates := seq.TXGates()
	rx := seq.RXTimes()

	return map[string]ChannelEvents{
		"tx0":     {Times: seq.TXTimes(), Levels: seq.TXPowers()},
		"tx_gate": {Times: windowEdges(gates), Levels: alternating(len(gates) * 2)},
		"rx0_en":  {Times: rx, Levels: alternating(len(rx))},
		"rx_gate": {Times: append([]float64(nil), rx...), Levels: alternating(len(rx))},
	}
}

func windowEdges(ws []Rs.Window) []float64 {
	out := make([]float64, 0, len(ws)*2)
	for _, w := range ws {
		out = append(out, w.Start, w.End)
	}
	return out
}

// alternating is the on/off level pattern of a gate line.
func alternating(n int) []complex128 {
	out := make([]complex128, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = 1
		}
	}
	return out
}
