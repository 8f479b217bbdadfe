//go:build !nomidi

package plugin

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	Rf "github.com/maroda/risonanza/fid"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// MIDIOutput sonifies finished runs: every detected peak becomes a
// note, its position mapped into two octaves around Root and its
// height into velocity.
type MIDIOutput struct {
	Port    drivers.Out
	Send    func(msg midi.Message) error
	Channel uint8
	Root    uint8 // middle of the pitch range
	WG      sync.WaitGroup
}

func NewMIDIOutput(port int) (*MIDIOutput, error) {
	out, err := midi.OutPort(port)
	if err != nil {
		slog.Error("Error opening MIDI port", slog.Int("port", port))
		return nil, fmt.Errorf("error opening MIDI port: %q", err)
	}

	send, err := midi.SendTo(out)
	if err != nil {
		slog.Error("Error sending to MIDI port", slog.Int("port", port))
		return nil, fmt.Errorf("error sending to MIDI port: %q", err)
	}

	initmidi := &MIDIOutput{
		Port:    out,
		Send:    send,
		Channel: 0,
		Root:    60,
		WG:      sync.WaitGroup{},
	}

	return initmidi, nil
}

func (mo *MIDIOutput) SendNoteOnMIDI(midic, midin, midiv uint8) error {
	return mo.Send(midi.NoteOn(midic, midin, midiv))
}

func (mo *MIDIOutput) SendNoteOffMIDI(midic, midin uint8) error {
	return mo.Send(midi.NoteOff(midic, midin))
}

// WriteRun plays the spectrum of one run. Notes sound together,
// a chord of everything resonating in the sample.
func (mo *MIDIOutput) WriteRun(f *Rf.FID1D) error {
	spec, _, err := f.Spectrum(Rf.SpectrumOpts{})
	if err != nil {
		return fmt.Errorf("sonification error: %w", err)
	}

	peaks := spec.Peaks(0)
	if len(peaks) == 0 {
		slog.Info("MIDIOutput found nothing to play", slog.String("label", f.Label))
		return nil
	}

	tallest := 0.0
	for _, p := range peaks {
		if h := real(p.Amplitude); h > tallest {
			tallest = h
		}
	}

	for _, p := range peaks {
		note := NoteForPeak(p.Location/float64(spec.Size()), mo.Root)
		velocity := VelocityForPeak(real(p.Amplitude), tallest)

		mo.WG.Add(1)
		go func(note, velocity uint8) {
			defer mo.WG.Done()
			if err := mo.SendNoteOnMIDI(mo.Channel, note, velocity); err != nil {
				slog.Error("NoteOn event failed")
			}
			time.Sleep(200 * time.Millisecond)
			if err := mo.SendNoteOffMIDI(mo.Channel, note); err != nil {
				slog.Error("NoteOff event failed, attempting Flush")
				mo.Flush()
			}
		}(note, velocity)
	}

	return nil
}

func (mo *MIDIOutput) WriteBatch(fids []*Rf.FID1D) error {
	for _, f := range fids {
		if err := mo.WriteRun(f); err != nil {
			return err
		}
	}
	return nil
}

func (mo *MIDIOutput) QueryRange(start, end time.Time) ([]*Rf.FID1D, error) {
	return nil, fmt.Errorf("MIDI: %w", ErrQueryUnsupported)
}

func (mo *MIDIOutput) Flush() error {
	return mo.Send(midi.ControlChange(0, midi.AllNotesOff, midi.Off))
}

func (mo *MIDIOutput) Close() error {
	mo.WG.Wait()

	if mo.Port != nil {
		mo.Port.Close()
		midi.CloseDriver()
	}
	return nil
}

func (mo *MIDIOutput) Type() string { return "MIDI" }

// NoteForPeak maps a peak position, as a fraction of the spectrum,
// into the two octaves around root. Clamped into MIDI range.
func NoteForPeak(frac float64, root uint8) uint8 {
	if math.IsNaN(frac) {
		return root
	}
	n := int(root) - 12 + int(math.Round(frac*24))
	if n < 0 {
		n = 0
	}
	if n > 127 {
		n = 127
	}
	return uint8(n)
}

// VelocityForPeak scales a peak height against the tallest peak of
// its run into the audible velocity range 40 to 127.
func VelocityForPeak(height, tallest float64) uint8 {
	if tallest <= 0 || height <= 0 {
		return 40
	}
	rel := height / tallest
	if rel > 1 {
		rel = 1
	}
	return uint8(40 + math.Round(rel*87))
}
