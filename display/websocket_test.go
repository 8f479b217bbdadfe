package risonanza_test

import (
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	Rd "github.com/maroda/risonanza/display"
	Rf "github.com/maroda/risonanza/fid"
	Rt "github.com/maroda/risonanza/types"
)

func TestDownsampleMax(t *testing.T) {
	tests := []struct {
		name   string
		data   []float64
		stride int
		want   []float64
	}{
		{
			name:   "Stride one copies",
			data:   []float64{1, 2, 3},
			stride: 1,
			want:   []float64{1, 2, 3},
		},
		{
			name:   "Stride zero copies",
			data:   []float64{4, 5},
			stride: 0,
			want:   []float64{4, 5},
		},
		{
			name:   "Keeps the tallest of each chunk",
			data:   []float64{1, 5, 2, 4, 3, 3},
			stride: 3,
			want:   []float64{5, 4},
		},
		{
			name:   "Short last chunk still counts",
			data:   []float64{3, 1, 2, 9, 7},
			stride: 2,
			want:   []float64{3, 9, 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rd.DownsampleMax(tt.data, tt.stride)
			assertInt(t, len(got), len(tt.want))
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("point %d: got %f, want %f", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuildSpectrumFrame(t *testing.T) {
	f := makeTestFID(t, time.Now().UTC())

	t.Run("Shrinks to the requested width", func(t *testing.T) {
		frame, err := Rd.BuildSpectrumFrame(f, 128)
		assertError(t, err, nil)

		// 512 samples zero fill to 1024 bins, stride 8
		assertInt(t, len(frame.Points), 128)
		assertFloat(t, frame.FreqStep, 2500.0)
		assertFloat(t, frame.FreqLow, -160e3)
		assertStringContains(t, frame.Sample, "water")
	})

	t.Run("The resonance survives downsampling", func(t *testing.T) {
		frame, err := Rd.BuildSpectrumFrame(f, 128)
		assertError(t, err, nil)

		// 50kHz above the carrier lands in bin 672, column 84
		top := 0
		for i, p := range frame.Points {
			if p > frame.Points[top] {
				top = i
			}
		}
		assertInt(t, top, 84)
	})

	t.Run("Reports the peak in Hz", func(t *testing.T) {
		frame, err := Rd.BuildSpectrumFrame(f, 128)
		assertError(t, err, nil)

		if len(frame.Peaks) == 0 {
			t.Fatal("no peaks detected")
		}
		found := false
		for _, p := range frame.Peaks {
			if math.Abs(p.FreqHz-50e3) < 1e3 {
				found = true
				if p.Height <= 0 {
					t.Errorf("peak height = %f, want positive", p.Height)
				}
				if p.WidthHz <= 0 {
					t.Errorf("peak width = %f Hz, want positive", p.WidthHz)
				}
			}
		}
		if !found {
			t.Errorf("no peak near 50kHz in %+v", frame.Peaks)
		}
	})

	t.Run("Fails on an empty run", func(t *testing.T) {
		_, err := Rd.BuildSpectrumFrame(&Rf.FID1D{}, 128)
		assertGotError(t, err)
	})
}

func TestView_WebsocketHandler(t *testing.T) {
	view := makeTestView(t)
	view.Refresh = 20 * time.Millisecond

	// Load the frame before any client connects
	err := view.RefreshData()
	assertError(t, err, nil)

	srv := httptest.NewServer(view.SetupMux())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assertError(t, err, nil)
	defer conn.Close()
	assertStatus(t, resp.StatusCode, http.StatusSwitchingProtocols)

	t.Run("Feed carries the newest spectrum", func(t *testing.T) {
		var got struct {
			Event    Rt.RunEvent       `json:"event"`
			Spectrum *Rd.SpectrumFrame `json:"spectrum"`
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		err := conn.ReadJSON(&got)
		assertError(t, err, nil)

		if got.Spectrum == nil {
			t.Fatal("no spectrum in the feed")
		}
		assertStringContains(t, got.Spectrum.Sample, "water")
		if len(got.Spectrum.Points) == 0 {
			t.Error("spectrum frame has no points")
		}
	})
}

// Helpers //

func assertError(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Errorf("got error %q want %q", got, want)
	}
}

func assertGotError(t testing.TB, got error) {
	t.Helper()
	if got == nil {
		t.Errorf("Expected an error but got %q", got)
	}
}

func assertStatus(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct status, got %d, want %d", got, want)
	}
}

func assertInt(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct value, got %d, want %d", got, want)
	}
}

func assertFloat(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("did not get correct value, got %f, want %f", got, want)
	}
}

func assertStringContains(t *testing.T, full, want string) {
	t.Helper()
	if !strings.Contains(full, want) {
		t.Errorf("Did not find %q, expected string contains %q", want, full)
	}
}
