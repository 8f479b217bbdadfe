package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	Ri "github.com/maroda/risonanza/instrument"
)

var fpgaModel string

var flashCmd = &cobra.Command{
	Use:   "flash-fpga",
	Short: "Load the gateware bitstream onto the controller",
	Long: `Fetches the bitstream for the controller model and writes it to
the FPGA device on the board. The marcos server must be stopped first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rm, err := remoteFromConfig()
		if err != nil {
			return err
		}
		if err := rm.FlashFPGA(fpgaModel); err != nil {
			return err
		}
		fmt.Println("bitstream flashed")
		return nil
	},
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Install the marcos server on the controller",
	RunE: func(cmd *cobra.Command, args []string) error {
		rm, err := remoteFromConfig()
		if err != nil {
			return err
		}
		if err := rm.Setup(); err != nil {
			return err
		}
		fmt.Println("marcos server installed")
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the marcos server on the controller",
	RunE: func(cmd *cobra.Command, args []string) error {
		rm, err := remoteFromConfig()
		if err != nil {
			return err
		}
		if err := rm.Start(); err != nil {
			return err
		}
		fmt.Println("marcos server started")
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the marcos server on the controller",
	RunE: func(cmd *cobra.Command, args []string) error {
		rm, err := remoteFromConfig()
		if err != nil {
			return err
		}
		if err := rm.Stop(); err != nil {
			return err
		}
		fmt.Println("marcos server stopped")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the marcos server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		rm, err := remoteFromConfig()
		if err != nil {
			return err
		}
		running, err := rm.IsRunning()
		if err != nil {
			return err
		}
		if !running {
			fmt.Println("marcos server is stopped")
			os.Exit(1)
		}
		fmt.Println("marcos server is running")
		return nil
	},
}

func init() {
	flashCmd.Flags().StringVar(&fpgaModel, "model", "rp-122", "Controller hardware model")
}

func remoteFromConfig() (*Ri.Remote, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return Ri.NewRemote(cfg.ConnectionSettings(), cfg.Server.User, cfg.Server.Password), nil
}
