package risonanza_test

import (
	"errors"
	"math"
	"os"
	"strings"
	"testing"

	Ri "github.com/maroda/risonanza/instrument"
)

// Temporary OS file to use for testing configurations
func createTempFile(t testing.TB, data string) (*os.File, func()) {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "db")
	if err != nil {
		t.Fatalf("could not create temp file %v", err)
	}

	tmpfile.Write([]byte(data))
	removeFile := func() {
		tmpfile.Close()
		os.Remove(tmpfile.Name())
	}
	return tmpfile, removeFile
}

func TestLoadConfig(t *testing.T) {
	configFile, delConfig := createTempFile(t, `
[server]
ip_address = "10.0.0.42"
port = 12345
fpga_clk_freq_mhz = 122.88

[spectrometer]
sample_rate = 640000.0
tx_freq = 15090000.0

[archive]
path = "/tmp/risonanza-test"
batch_size = 4

[display]
addr = ":9091"
refresh_ms = 250
`)
	defer delConfig()
	fileName := configFile.Name()

	t.Run("Reads the server block", func(t *testing.T) {
		c, err := Ri.LoadConfig(fileName)
		assertError(t, err, nil)
		assertString(t, c.Server.IPAddress, "10.0.0.42")
		assertInt(t, c.Server.Port, 12345)
	})

	t.Run("Reads the spectrometer block", func(t *testing.T) {
		c, err := Ri.LoadConfig(fileName)
		assertError(t, err, nil)
		assertFloatNear(t, c.Spectrometer.SampleRate, 640e3, 1e-9)
		assertFloatNear(t, c.Spectrometer.TXFreq, 15.09e6, 1e-9)
	})

	t.Run("Reads archive and display blocks", func(t *testing.T) {
		c, err := Ri.LoadConfig(fileName)
		assertError(t, err, nil)
		assertString(t, c.Archive.Path, "/tmp/risonanza-test")
		assertInt(t, c.Archive.BatchSize, 4)
		assertString(t, c.Display.Addr, ":9091")
		assertInt(t, c.Display.RefreshMS, 250)
	})

	t.Run("Missing keys fall back to defaults", func(t *testing.T) {
		c, err := Ri.LoadConfig(fileName)
		assertError(t, err, nil)
		assertString(t, c.Server.User, "root")
		assertFloatNear(t, c.Server.FPGAClkFreqMHz, 122.88, 1e-9)
	})

	t.Run("Errors with malformed TOML", func(t *testing.T) {
		broken, delBroken := createTempFile(t, `[server
ip_address = what`)
		defer delBroken()

		_, err := Ri.LoadConfig(broken.Name())
		assertGotError(t, err)
	})

	t.Run("Errors with a missing explicit file", func(t *testing.T) {
		gone, delGone := createTempFile(t, ``)
		name := gone.Name()
		delGone()

		_, err := Ri.LoadConfig(name)
		assertGotError(t, err)
	})
}

func TestConnectionSettings(t *testing.T) {
	c, err := Ri.LoadConfig("")
	assertError(t, err, nil)

	t.Run("Defaults describe a stock board", func(t *testing.T) {
		assertString(t, c.Server.IPAddress, "192.168.1.100")
		assertInt(t, c.Server.Port, 11111)
		assertInt(t, c.Archive.BatchSize, 8)
		assertString(t, c.Display.Addr, ":8090")
	})

	t.Run("Renders the socket address", func(t *testing.T) {
		cs := c.ConnectionSettings()
		assertString(t, cs.SocketAddr(), "192.168.1.100:11111")
	})

	t.Run("Clock frequency converts to Hz", func(t *testing.T) {
		cs := c.ConnectionSettings()
		assertFloatNear(t, cs.FPGAClockFreq, 122.88e6, 1e-3)
	})
}

// Helpers //

func assertError(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Fatalf("got error %v, want %v", got, want)
	}
}

func assertGotError(t testing.TB, got error) {
	t.Helper()
	if got == nil {
		t.Fatal("wanted an error but didn't get one")
	}
}

func assertInt(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func assertString(t testing.TB, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func assertStringContains(t testing.TB, full, part string) {
	t.Helper()
	if !strings.Contains(full, part) {
		t.Errorf("%q does not contain %q", full, part)
	}
}

func assertFloatNear(t testing.TB, got, want, delta float64) {
	t.Helper()
	if math.Abs(got-want) > delta {
		t.Errorf("got %v, want %v within %v", got, want, delta)
	}
}
