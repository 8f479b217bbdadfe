package risonanza

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	Ri "github.com/maroda/risonanza/instrument"
)

// SetupMux handles all data serving:
// - Prometheus metric endpoint
// - Websocket feed for the live console
// - Version for programmatic use
// - Run listings and the latest spectrum for UI feedback
func (v *View) SetupMux() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", v.Stats.Handler())
	r.HandleFunc("/ws", v.WebsocketHandler)
	r.HandleFunc("/healthz", v.HealthzHandler)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(v.StatsMiddleware)
	api.HandleFunc("/version", v.VersionHandler)
	api.HandleFunc("/runs", v.RunsHandler)
	api.HandleFunc("/spectrum", v.SpectrumHandler)
	api.HandleFunc("/system", v.SystemHandler)
	api.PathPrefix("/plugin").HandlerFunc(v.PluginControlHandler)

	// Static files for the browser frontend
	r.PathPrefix("/").Handler(http.FileServer(http.Dir("./web/")))

	return r
}

var Version = "dev"

func (v *View) VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"version": Version})
}

func (v *View) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":     "ok",
		"instrument": Ri.InstrumentName,
	})
}

// RunsHandler lists archived runs, oldest first. The /since/ query
// parameter narrows the window, a Go duration like 15m or 2h,
// the default is a day.
func (v *View) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if v.Archive == nil {
		http.Error(w, "no archive attached", http.StatusInternalServerError)
		return
	}

	since := 24 * time.Hour
	if s := r.URL.Query().Get("since"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			http.Error(w, "invalid since duration", http.StatusBadRequest)
			return
		}
		since = d
	}

	now := time.Now()
	fids, err := v.Archive.QueryRange(now.Add(-since), now)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type RunInfo struct {
		Timestamp time.Time `json:"timestamp"`
		Sample    string    `json:"sample"`
		Label     string    `json:"label"`
		Pulse     string    `json:"pulse"`
		Points    int       `json:"points"`
	}

	runs := make([]RunInfo, 0, len(fids))
	for _, f := range fids {
		runs = append(runs, RunInfo{
			Timestamp: f.Timestamp,
			Sample:    f.Sample,
			Label:     f.Label,
			Pulse:     f.Pulse,
			Points:    f.Size(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

// SpectrumHandler serves the processed points of the newest run
func (v *View) SpectrumHandler(w http.ResponseWriter, r *http.Request) {
	frame := v.LastFrame()
	if frame == nil {
		http.Error(w, "no spectrum yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(frame)
}

// SystemInfo reports what is wired into the running instance
type SystemInfo struct {
	Instrument  string `json:"instrument"`
	Version     string `json:"version"`
	Sample      string `json:"sample,omitempty"`
	Label       string `json:"label,omitempty"`
	Archive     string `json:"archive,omitempty"`
	Output      string `json:"output,omitempty"`
	MIDIPort    string `json:"midiPort,omitempty"`
	MIDIChannel int    `json:"midiChannel,omitempty"`
	MIDIRoot    int    `json:"midiRoot,omitempty"`
}

func (v *View) SystemHandler(w http.ResponseWriter, r *http.Request) {
	systemInfo := SystemInfo{
		Instrument: Ri.InstrumentName,
		Version:    Version,
	}
	if v.Session != nil {
		systemInfo.Sample = v.Session.Sample
		systemInfo.Label = v.Session.Label
	}
	if v.Archive != nil {
		systemInfo.Archive = v.Archive.Type()
	}
	if v.Output != nil {
		systemInfo.Output = v.Output.Type()
	}

	// If the output type is MIDI, fill in the details
	v.getMIDISystemInfo(&systemInfo)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(systemInfo)
}

// PluginControlHandler drives the live output plugin over POST:
// /api/plugin/type /api/plugin/flush /api/plugin/close
func (v *View) PluginControlHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "invalid method, use POST", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 4 || parts[3] == "" {
		http.Error(w, "invalid plugin control", http.StatusBadRequest)
		return
	}
	control := parts[3]

	switch control {
	case "type", "flush", "close":
	default:
		http.Error(w, "invalid plugin control", http.StatusBadRequest)
		return
	}

	v.MU.Lock()
	out := v.Output
	v.MU.Unlock()

	if out == nil {
		http.Error(w, "no output plugin attached", http.StatusInternalServerError)
		return
	}

	switch control {
	case "type":
		fmt.Fprintf(w, "TYPE: %s", out.Type())
	case "flush":
		if err := out.Flush(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "FLUSHED")
	case "close":
		if err := out.Close(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "CLOSED")
	}
}
