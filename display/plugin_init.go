//go:build !nomidi

package risonanza

import (
	"log/slog"

	Rp "github.com/maroda/risonanza/plugin"
)

// InitMIDIOutput attaches a live MIDI plugin to the console,
// every new run is sonified as it lands
func InitMIDIOutput(view *View, port int) error {
	output, err := Rp.NewMIDIOutput(port)
	if err != nil {
		slog.Error("Failed to create adapter",
			slog.Int("port", port),
			slog.Any("error", err))
		return err
	}
	view.Output = output
	slog.Info("MIDI Adapter Enabled", slog.Int("port", port))
	return nil
}

func (v *View) getMIDISystemInfo(systemInfo *SystemInfo) {
	// If the output type is MIDI, fill in the details
	if midiOut, ok := v.Output.(*Rp.MIDIOutput); ok {
		systemInfo.MIDIPort = midiOut.Port.String()
		systemInfo.MIDIChannel = int(midiOut.Channel)
		systemInfo.MIDIRoot = int(midiOut.Root)
	}
}
