package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bmschain-logger/internal/config"
	"bmschain-logger/internal/logging"
	"bmschain-logger/internal/report"
)

var (
	inputCSV   string
	outputXLSX string
	pngDir     string
	chainID    int
	deviceID   int
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "csv2xlsx",
	Short:         "Generate an Excel workbook with voltage/current plots from a bms2csv CSV",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.NewLogger(config.LogConfig{Level: logLevel})
		defer logger.Sync()

		filter := report.Filter{}
		if cmd.Flags().Changed("chain-id") {
			filter.ChainID = &chainID
		}
		if cmd.Flags().Changed("device-id") {
			filter.DeviceID = &deviceID
		}

		table, err := report.LoadTable(inputCSV, filter)
		if err != nil {
			return err
		}
		if err := report.BuildWorkbook(table, outputXLSX); err != nil {
			return fmt.Errorf("build workbook: %w", err)
		}

		if pngDir != "" {
			paths, err := report.RenderPNG(table, pngDir)
			if err != nil {
				return fmt.Errorf("render png: %w", err)
			}
			logger.Info("Rendered PNG charts", zap.Strings("files", paths))
		}

		logger.Info(fmt.Sprintf("Wrote Excel template: %s (rows=%d, chain_filter=%s, device_filter=%s)",
			outputXLSX, len(table.Samples), filterText(filter.ChainID), filterText(filter.DeviceID)))
		return nil
	},
}

func filterText(v *int) string {
	if v == nil {
		return "None"
	}
	return fmt.Sprint(*v)
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&inputCSV, "input-csv", "", "input CSV generated by bms2csv")
	f.StringVar(&outputXLSX, "output-xlsx", "", "output Excel file (.xlsx)")
	f.IntVar(&chainID, "chain-id", 0, "optional filter for chain_id")
	f.IntVar(&deviceID, "device-id", 0, "optional filter for device_id")
	f.StringVar(&pngDir, "png-dir", "", "also render the charts as PNG files into this directory")
	f.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	_ = rootCmd.MarkFlagRequired("input-csv")
	_ = rootCmd.MarkFlagRequired("output-xlsx")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
}
