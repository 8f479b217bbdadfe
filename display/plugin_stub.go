//go:build nomidi

package risonanza

import (
	"fmt"
	"log/slog"
)

func InitMIDIOutput(view *View, port int) error {
	slog.Warn("MIDI support not compiled in this build")
	return fmt.Errorf("MIDI support not available")
}

func (v *View) getMIDISystemInfo(systemInfo *SystemInfo) {}
