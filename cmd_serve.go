package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	Rd "github.com/maroda/risonanza/display"
	Ro "github.com/maroda/risonanza/obvy"
	Rp "github.com/maroda/risonanza/plugin"
)

var (
	serveNoTUI    bool
	serveMIDIPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Browse the run archive in the terminal and serve the data API",
	Long: `Opens the acquisition console over the run archive: a terminal
spectrum display plus the HTTP data server (runs, spectrum, websocket
feed, prometheus metrics). With --no-tui only the data server runs,
for headless hosts.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoTUI, "no-tui", false, "Serve data without the terminal display")
	serveCmd.Flags().IntVar(&serveMIDIPort, "midi", -1, "Sonify new runs on this MIDI port")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveMIDIPort >= 0 {
		cfg.Display.MIDIPort = serveMIDIPort
	}

	stopTracing := initTracing()
	defer stopTracing()

	archive, err := Rp.NewBadgerOutput(cfg.Archive.Path, cfg.Archive.BatchSize)
	if err != nil {
		return err
	}
	defer archive.Close()

	if serveNoTUI {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return Rd.StartWebNoTUI(ctx, cfg, nil, archive)
	}

	return Rd.StartViewer(cfg, nil, archive)
}

// initTracing picks the exporter from the environment, quiet without one
func initTracing() func() {
	switch {
	case os.Getenv("HONEYCOMB_API_KEY") != "":
		shutdown, err := Ro.InitOTelHNY()
		if err != nil {
			slog.Error("Could not configure tracing", slog.Any("Error", err))
			return func() {}
		}
		return shutdown

	case os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "":
		tp, err := Ro.InitOTelGRF(version)
		if err != nil {
			slog.Error("Could not configure tracing", slog.Any("Error", err))
			return func() {}
		}
		return func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				slog.Error("Tracer shutdown", slog.Any("Error", err))
			}
		}
	}

	slog.Debug("No tracing endpoint configured")
	return func() {}
}
