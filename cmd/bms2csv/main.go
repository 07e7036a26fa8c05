package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bmschain-logger/internal/config"
	"bmschain-logger/internal/logging"
	"bmschain-logger/internal/source"
)

var (
	configFile string
	listPorts  bool
)

var rootCmd = &cobra.Command{
	Use:   "bms2csv",
	Short: "Convert BMSCHAIN GUI serial stream into CSV for Excel",
	Long: `bms2csv splits the BMSCHAIN ASCII telemetry stream on "ENDData",
parses every frame and writes one CSV row per valid frame.

Input sources (exactly one):
  --input        replay a captured serial log file
  --serial-port  capture live from a serial port
  --listen       accept a TCP stream from a serial-to-network bridge`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configFile, cmd.Flags())
		if err != nil {
			return err
		}

		logger := logging.NewLogger(cfg.Log)
		defer logger.Sync()

		if listPorts {
			return printPorts()
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		stats, err := run(ctx, cfg, logger, os.Stderr)
		if err != nil {
			logger.Error("Conversion failed", zap.Error(err),
				zap.Int("frames", stats.Parsed), zap.Int("skipped", stats.Skipped))
			return err
		}

		logger.Info(fmt.Sprintf("Wrote CSV: %s (frames=%d, skipped=%d, faults_per_frame_max=%d)",
			cfg.Output.Path, stats.Parsed, stats.Skipped, stats.MaxFaults))
		return nil
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configFile, "config", "", "optional YAML config file")
	f.BoolVar(&listPorts, "list-ports", false, "list available serial ports and exit")

	f.String("input", "", "path to raw serial log text file")
	f.String("serial-port", "", "serial port name (e.g. COM5, /dev/ttyUSB0)")
	f.String("listen", "", "accept the stream over TCP on HOST:PORT")
	f.String("output", "", "output CSV path")
	f.Int("baudrate", source.DefaultBaudRate, "serial baud rate")
	f.String("duration", "", `capture duration for serial/TCP mode (e.g. "30", "20s", "5m", "4h")`)
	f.Int("max-frames", 0, "stop after this many captured frames (0 = unlimited)")
	f.Bool("strict", false, "abort on the first malformed frame")
	f.Bool("no-progress", false, "disable the capture progress line")
	f.String("input-encoding", "utf-8", "text encoding of --input (any WHATWG label, e.g. shift_jis)")
	f.String("source-c", "", "path to AEK_POW_BMS63CHAIN_app_mng.c for fault column names")
	f.Int("fault-count", 0, "number of fault columns (0 = from source file or observed data)")
	f.String("log-level", "info", "log level (debug, info, warn, error)")
	f.String("log-file", "", "also write JSON logs to this rotating file")
}

func printPorts() error {
	ports, err := source.AvailablePorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
}
