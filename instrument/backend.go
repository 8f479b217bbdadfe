package risonanza

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	Ra "github.com/maroda/risonanza/analyze"
)

const protocolVersion = "1.0"

// ChannelEvents is one FPGA control line: change timestamps in µs
// and the level at each change.
type ChannelEvents struct {
	Times  []float64
	Levels []complex128
}

// ChannelRequest is everything the backend needs for one run.
type ChannelRequest struct {
	TXFreq       float64 // Hz
	RXFreq       float64 // Hz
	SamplePeriod float64 // µs between RX samples
	Channels     map[string]ChannelEvents
}

// Backend executes one compiled channel request and returns the
// received complex samples.
type Backend interface {
	Run(ctx context.Context, req ChannelRequest) ([]complex128, error)
}

// marcosBackend speaks the msgpack exchange of the marcos server.
type marcosBackend struct {
	conn net.Conn
}

func NewMarcosBackend(conn net.Conn) Backend {
	return &marcosBackend{conn: conn}
}

type wireChannel struct {
	Times   []float64 `msgpack:"times"`
	LevelsI []float64 `msgpack:"levels_i"`
	LevelsQ []float64 `msgpack:"levels_q"`
}

type wireRequest struct {
	Version        string                 `msgpack:"version"`
	TXFreqMHz      float64                `msgpack:"tx_freq"`
	RXFreqMHz      float64                `msgpack:"rx_freq"`
	SamplePeriodUS float64                `msgpack:"rx_period"`
	Channels       map[string]wireChannel `msgpack:"channels"`
}

type wireReply struct {
	RX0I     []float64 `msgpack:"rx0_i"`
	RX0Q     []float64 `msgpack:"rx0_q"`
	Messages []string  `msgpack:"messages"`
	Error    string    `msgpack:"error"`
}

// Run ships the request and blocks for the reply. The context
// deadline becomes the socket deadline, there is no way to abort
// the hardware mid-run.
func (mb *marcosBackend) Run(ctx context.Context, req ChannelRequest) ([]complex128, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := mb.conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("setting socket deadline: %w", err)
		}
		defer mb.conn.SetDeadline(time.Time{})
	}

	wire := wireRequest{
		Version:        protocolVersion,
		TXFreqMHz:      req.TXFreq / 1e6,
		RXFreqMHz:      req.RXFreq / 1e6,
		SamplePeriodUS: req.SamplePeriod,
		Channels:       make(map[string]wireChannel, len(req.Channels)),
	}
	for name, ch := range req.Channels {
		wire.Channels[name] = wireChannel{
			Times:   ch.Times,
			LevelsI: Ra.Real(ch.Levels),
			LevelsQ: Ra.Imag(ch.Levels),
		}
	}

	if err := msgpack.NewEncoder(mb.conn).Encode(wire); err != nil {
		return nil, fmt.Errorf("sending pulse program: %w", err)
	}

	var reply wireReply
	if err := msgpack.NewDecoder(mb.conn).Decode(&reply); err != nil {
		return nil, fmt.Errorf("reading samples: %w", err)
	}

	for _, m := range reply.Messages {
		slog.Info("Controller message", slog.String("msg", m))
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("controller error: %s", reply.Error)
	}
	if len(reply.RX0I) != len(reply.RX0Q) {
		return nil, fmt.Errorf("controller returned %d I against %d Q samples", len(reply.RX0I), len(reply.RX0Q))
	}

	samples := make([]complex128, len(reply.RX0I))
	for i := range samples {
		samples[i] = complex(reply.RX0I[i], reply.RX0Q[i])
	}

	return samples, nil
}
