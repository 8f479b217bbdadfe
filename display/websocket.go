package risonanza

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	Rf "github.com/maroda/risonanza/fid"
	Rt "github.com/maroda/risonanza/types"
)

// SpectrumFrame is one processed run reduced to plot points
type SpectrumFrame struct {
	Sample    string     `json:"sample"`
	Label     string     `json:"label"`
	Pulse     string     `json:"pulse"`
	Timestamp time.Time  `json:"timestamp"`
	FreqLow   float64    `json:"freqLow"`  // Hz at the first point
	FreqStep  float64    `json:"freqStep"` // Hz between points
	Points    []float64  `json:"points"`   // magnitude per point
	Peaks     []PeakInfo `json:"peaks"`
}

// PeakInfo locates one resonance on the absolute frequency axis
type PeakInfo struct {
	FreqHz  float64 `json:"freqHz"`
	Height  float64 `json:"height"`
	WidthHz float64 `json:"widthHz"`
}

// wsFrame is what every websocket tick delivers
type wsFrame struct {
	Event    Rt.RunEvent    `json:"event"`
	Spectrum *SpectrumFrame `json:"spectrum,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebsocketHandler streams run progress and the newest spectrum
func (v *View) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Send the current state periodically
	ticker := time.NewTicker(v.refreshOr())
	defer ticker.Stop()
	for range ticker.C {
		frame := wsFrame{
			Event:    v.LastEvent(),
			Spectrum: v.LastFrame(),
		}
		if err := conn.WriteJSON(frame); err != nil {
			return // Connection closed
		}
	}
}

// BuildSpectrumFrame processes a run down to at most /points/ plot
// points. Downsampling keeps the tallest value of each chunk, so
// narrow lines survive the shrink.
func BuildSpectrumFrame(f *Rf.FID1D, points int) (*SpectrumFrame, error) {
	spec, _, err := f.Spectrum(Rf.SpectrumOpts{})
	if err != nil {
		return nil, err
	}

	abs := spec.Absolute()
	hz := spec.HzScale()

	binStep := 0.0
	if len(hz) > 1 {
		binStep = hz[1] - hz[0]
	}

	if points < 1 {
		points = 1
	}
	stride := (len(abs) + points - 1) / points
	if stride < 1 {
		stride = 1
	}

	peaks := spec.Peaks(0)
	info := make([]PeakInfo, 0, len(peaks))
	for _, p := range peaks {
		info = append(info, PeakInfo{
			FreqHz:  hz[int(p.Location)],
			Height:  real(p.Amplitude),
			WidthHz: p.FWHM * binStep,
		})
	}

	return &SpectrumFrame{
		Sample:    f.Sample,
		Label:     f.Label,
		Pulse:     f.Pulse,
		Timestamp: f.Timestamp,
		FreqLow:   hz[0],
		FreqStep:  binStep * float64(stride),
		Points:    DownsampleMax(abs, stride),
		Peaks:     info,
	}, nil
}

// DownsampleMax reduces data by keeping the tallest point of every
// stride wide chunk
func DownsampleMax(data []float64, stride int) []float64 {
	if stride < 2 {
		return append([]float64(nil), data...)
	}
	out := make([]float64, 0, (len(data)+stride-1)/stride)
	for i := 0; i < len(data); i += stride {
		end := i + stride
		if end > len(data) {
			end = len(data)
		}
		top := data[i]
		for _, x := range data[i+1 : end] {
			if x > top {
				top = x
			}
		}
		out = append(out, top)
	}
	return out
}
