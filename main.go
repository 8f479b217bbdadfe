package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	Ri "github.com/maroda/risonanza/instrument"
)

const version = "0.1.0"

var (
	// Global flags
	cfgPath  string
	flagIP   string
	flagPort int
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "risonanza",
	Short: "risonanza - tabletop NMR acquisition and analysis",
	Long: `risonanza drives a marcos based spectrometer controller:
flash and manage the controller itself, record pulse sequences,
archive the runs, and watch spectra live in the terminal.

Configuration comes from risonanza.toml (searched in /opt and the
working directory, or pointed at with --config / RISONANZA_CONFIG).
Connection flags override the file for one invocation.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		slog.SetDefault(slog.New(handler))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to risonanza.toml")
	rootCmd.PersistentFlags().StringVarP(&flagIP, "ip", "i", "", "Controller IP address, overrides the config")
	rootCmd.PersistentFlags().IntVarP(&flagPort, "port", "p", 0, "Controller command port, overrides the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	// Controller management
	rootCmd.AddCommand(flashCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)

	// Bench work
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
}

// loadConfig layers the connection flags over the file
func loadConfig() (*Ri.Config, error) {
	path := cfgPath
	if path == "" {
		if env := Ri.FillEnvVar("RISONANZA_CONFIG"); env != "ENOENT" {
			path = env
		}
	}

	cfg, err := Ri.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if flagIP != "" {
		cfg.Server.IPAddress = flagIP
	}
	if flagPort != 0 {
		cfg.Server.Port = flagPort
	}

	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
