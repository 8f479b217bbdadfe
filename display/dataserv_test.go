package risonanza_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	Rd "github.com/maroda/risonanza/display"
	Rf "github.com/maroda/risonanza/fid"
	Ro "github.com/maroda/risonanza/obvy"
)

func TestView_SetupMux(t *testing.T) {
	view := makeTestView(t)
	mux := view.SetupMux()

	t.Run("Websocket Endpoint answers", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/ws", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		// websocket upgrade will fail in test, but check for the 400
		assertStatus(t, w.Code, http.StatusBadRequest)
	})

	t.Run("Metrics Endpoint answers", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/metrics", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		assertStatus(t, w.Code, http.StatusOK)
	})

	t.Run("Health Endpoint answers with JSON", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/healthz", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		assertStatus(t, w.Code, http.StatusOK)

		var resp map[string]string
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		assertError(t, err, nil)
		assertStringContains(t, resp["status"], "ok")
	})

	t.Run("Version Endpoint answers with JSON", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/version", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, r)
		assertStatus(t, w.Code, http.StatusOK)

		// Does it return JSON?
		var resp map[string]string
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		assertError(t, err, nil)

		// Check for the version field
		if _, ok := resp["version"]; !ok {
			t.Errorf("Field 'version' not found in response")
		}
	})
}

func TestView_VersionHandler(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/version", nil)
	w := httptest.NewRecorder()

	view := &Rd.View{}
	view.VersionHandler(w, r)

	// Check status code
	assertStatus(t, w.Code, http.StatusOK)

	// Check response, "dev" is the default
	want := "dev"
	var response map[string]string
	json.Unmarshal(w.Body.Bytes(), &response)
	assertStringContains(t, response["version"], want)
}

func TestView_RunsHandler(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	archive := &storeAdapter{fids: []*Rf.FID1D{
		makeTestFID(t, now.Add(-2*time.Hour)),
		makeTestFID(t, now.Add(-time.Minute)),
	}}
	view := &Rd.View{Archive: archive, Stats: Ro.NewStatsInternal()}

	t.Run("Lists everything in a day by default", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/runs", nil)
		w := httptest.NewRecorder()
		view.RunsHandler(w, r)
		assertStatus(t, w.Code, http.StatusOK)

		var runs []map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &runs)
		assertError(t, err, nil)
		assertInt(t, len(runs), 2)
		assertStringContains(t, runs[0]["sample"].(string), "water")
	})

	t.Run("Narrows the window with since", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/runs?since=5m", nil)
		w := httptest.NewRecorder()
		view.RunsHandler(w, r)
		assertStatus(t, w.Code, http.StatusOK)

		var runs []map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &runs)
		assertError(t, err, nil)
		assertInt(t, len(runs), 1)
	})

	t.Run("Rejects a malformed since", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/runs?since=craquemattic", nil)
		w := httptest.NewRecorder()
		view.RunsHandler(w, r)
		assertStatus(t, w.Code, http.StatusBadRequest)
		assertStringContains(t, w.Body.String(), "invalid")
	})

	t.Run("Fails without an archive", func(t *testing.T) {
		bare := &Rd.View{Stats: Ro.NewStatsInternal()}
		r := httptest.NewRequest("GET", "/api/runs", nil)
		w := httptest.NewRecorder()
		bare.RunsHandler(w, r)
		assertStatus(t, w.Code, http.StatusInternalServerError)
		assertStringContains(t, w.Body.String(), "no archive")
	})
}

func TestView_SpectrumHandler(t *testing.T) {
	view := makeTestView(t)

	t.Run("Empty before the first refresh", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/api/spectrum", nil)
		w := httptest.NewRecorder()
		view.SpectrumHandler(w, r)
		assertStatus(t, w.Code, http.StatusNotFound)
	})

	t.Run("Serves the newest spectrum after a refresh", func(t *testing.T) {
		err := view.RefreshData()
		assertError(t, err, nil)

		r := httptest.NewRequest("GET", "/api/spectrum", nil)
		w := httptest.NewRecorder()
		view.SpectrumHandler(w, r)
		assertStatus(t, w.Code, http.StatusOK)

		var frame Rd.SpectrumFrame
		jerr := json.Unmarshal(w.Body.Bytes(), &frame)
		assertError(t, jerr, nil)
		assertStringContains(t, frame.Sample, "water")
		if len(frame.Points) == 0 {
			t.Error("spectrum frame has no points")
		}
	})
}

func TestView_SystemHandler(t *testing.T) {
	view := makeTestView(t)

	r := httptest.NewRequest("GET", "/api/system", nil)
	w := httptest.NewRecorder()
	view.SystemHandler(w, r)
	assertStatus(t, w.Code, http.StatusOK)

	var systemInfo Rd.SystemInfo
	err := json.Unmarshal(w.Body.Bytes(), &systemInfo)
	assertError(t, err, nil)
	assertStringContains(t, systemInfo.Instrument, "risonanza")
	assertStringContains(t, systemInfo.Archive, "memory")
}

func TestView_PluginControlHandlerNoOutput(t *testing.T) {
	view := makeTestView(t)

	tests := []struct {
		name     string
		method   string
		target   string
		assert   int
		contains string
	}{
		{
			name:     "Plugin Control Endpoint: Bad Method",
			method:   "GET",
			target:   "/api/plugin/type",
			assert:   http.StatusMethodNotAllowed, // 405
			contains: "invalid",
		},
		{
			name:     "Plugin Control Endpoint: Too Few Elements",
			method:   "POST",
			target:   "/api/plugin",
			assert:   http.StatusBadRequest, // 400
			contains: "invalid",
		},
		{
			name:     "Plugin Control Endpoint: Invalid Control",
			method:   "POST",
			target:   "/api/plugin/cornhole",
			assert:   http.StatusBadRequest, // 400
			contains: "invalid",
		},
		{
			name:     "Plugin Control Endpoint: No Output",
			method:   "POST",
			target:   "/api/plugin/type",
			assert:   http.StatusInternalServerError,
			contains: "no output",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			w := httptest.NewRecorder()
			view.PluginControlHandler(w, r)
			assertStatus(t, w.Code, tt.assert)
			assertStringContains(t, w.Body.String(), tt.contains)
		})
	}
}

func TestView_PluginControlHandlerWithOutput(t *testing.T) {
	view := makeTestView(t)
	view.Output = &storeAdapter{}

	tests := []struct {
		name     string
		target   string
		contains string
	}{
		{
			name:     "Plugin Control Endpoint: Type",
			target:   "/api/plugin/type",
			contains: "memory",
		},
		{
			name:     "Plugin Control Endpoint: Flush",
			target:   "/api/plugin/flush",
			contains: "FLUSHED",
		},
		{
			name:     "Plugin Control Endpoint: Close",
			target:   "/api/plugin/close",
			contains: "CLOSED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", tt.target, nil)
			w := httptest.NewRecorder()
			view.PluginControlHandler(w, r)
			assertStatus(t, w.Code, http.StatusOK)
			assertStringContains(t, w.Body.String(), tt.contains)
		})
	}
}

// Helpers //

// storeAdapter is an in memory run store
type storeAdapter struct {
	fids    []*Rf.FID1D
	flushed bool
	closed  bool
}

func (sa *storeAdapter) WriteRun(f *Rf.FID1D) error {
	sa.fids = append(sa.fids, f)
	return nil
}

func (sa *storeAdapter) WriteBatch(fids []*Rf.FID1D) error {
	sa.fids = append(sa.fids, fids...)
	return nil
}

func (sa *storeAdapter) QueryRange(start, end time.Time) ([]*Rf.FID1D, error) {
	var out []*Rf.FID1D
	for _, f := range sa.fids {
		if f.Timestamp.After(start) && f.Timestamp.Before(end) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (sa *storeAdapter) Flush() error { sa.flushed = true; return nil }
func (sa *storeAdapter) Close() error { sa.closed = true; return nil }
func (sa *storeAdapter) Type() string { return "memory" }

// View over an archive holding one recent run, no terminal attached
func makeTestView(t *testing.T) *Rd.View {
	t.Helper()
	archive := &storeAdapter{fids: []*Rf.FID1D{
		makeTestFID(t, time.Now().UTC().Add(-time.Minute).Truncate(time.Second)),
	}}
	return &Rd.View{
		Archive: archive,
		Stats:   Ro.NewStatsInternal(),
	}
}

// A single resonance 50kHz above the carrier
func makeTestFID(t testing.TB, ts time.Time) *Rf.FID1D {
	t.Helper()
	data := Rf.Synthetic(512, 320e3, 50e3, 1e-4)
	f, err := Rf.NewFID1D(data, 320e3, 0, 15.09e6, "1H", "water", "fid", "risonanza test", ts)
	if err != nil {
		t.Fatalf("could not build run fixture: %v", err)
	}
	return f
}
