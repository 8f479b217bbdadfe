//go:build nomidi

package plugin

import (
	"fmt"
	"time"

	Rf "github.com/maroda/risonanza/fid"
)

type MIDIOutput struct{}

func NewMIDIOutput(port int) (*MIDIOutput, error) {
	return nil, fmt.Errorf("MIDI support not compiled in this build")
}

func (mo *MIDIOutput) WriteRun(f *Rf.FID1D) error {
	return fmt.Errorf("MIDI support not compiled in this build")
}

func (mo *MIDIOutput) WriteBatch(fids []*Rf.FID1D) error {
	return fmt.Errorf("MIDI support not compiled in this build")
}

func (mo *MIDIOutput) QueryRange(start, end time.Time) ([]*Rf.FID1D, error) {
	return nil, fmt.Errorf("MIDI support not compiled in this build")
}

func (mo *MIDIOutput) Flush() error { return nil }
func (mo *MIDIOutput) Close() error { return nil }
func (mo *MIDIOutput) Type() string { return "midi-disabled" }
