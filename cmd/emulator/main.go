package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bmschain-logger/internal/client"
	"bmschain-logger/internal/protocol/bmschain"
)

var (
	serverAddr     string
	outputFile     string
	frameCount     int
	interval       time.Duration
	devices        int
	chainID        int
	faultCount     int
	malformedEvery int
	chunkSize      int
	seed           int64
)

var rootCmd = &cobra.Command{
	Use:   "emulator",
	Short: "Emit synthetic BMSCHAIN frames over TCP or into a log file",
	Long: `emulator generates well-formed BMSCHAIN GUI frames (optionally with
periodic malformed ones) to exercise bms2csv --listen or --input.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (serverAddr == "") == (outputFile == "") {
			return fmt.Errorf("exactly one of --addr or --output is required")
		}

		var w io.Writer
		if serverAddr != "" {
			conn, err := net.Dial("tcp", serverAddr)
			if err != nil {
				return fmt.Errorf("连接服务器失败: %w", err)
			}
			defer conn.Close()
			fmt.Fprintf(os.Stderr, "已连接到服务器 %s\n", serverAddr)
			w = conn
		} else {
			f, err := os.Create(outputFile)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}

		builder := client.NewFrameBuilder(devices, chainID, faultCount, seed)
		builder.MalformedEvery = malformedEvery
		for i := 0; i < frameCount; i++ {
			if err := writeChunked(w, builder.Build(), chunkSize); err != nil {
				return err
			}
			if interval > 0 && i < frameCount-1 {
				time.Sleep(interval)
			}
		}
		fmt.Fprintf(os.Stderr, "已发送 %d 帧\n", frameCount)
		return nil
	},
}

// writeChunked 按 size 字节分段写出, 模拟串口桥的分片
func writeChunked(w io.Writer, data []byte, size int) error {
	if size <= 0 {
		size = len(data)
	}
	for len(data) > 0 {
		n := min(size, len(data))
		if _, err := w.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&serverAddr, "addr", "", "send frames to this TCP address (bms2csv --listen)")
	f.StringVar(&outputFile, "output", "", "write frames to this log file instead")
	f.IntVar(&frameCount, "frames", 10, "number of frames to emit")
	f.DurationVar(&interval, "interval", 0, "delay between frames")
	f.IntVar(&devices, "devices", 2, "devices on the chain (TOTDEV)")
	f.IntVar(&chainID, "chain-id", 0, "chain id")
	f.IntVar(&faultCount, "fault-count", bmschain.DefaultFaultCount, "fault values per frame")
	f.IntVar(&malformedEvery, "malformed-every", 0, "make every Nth frame malformed (0 = never)")
	f.IntVar(&chunkSize, "chunk", 0, "split writes into chunks of this many bytes")
	f.Int64Var(&seed, "seed", 1, "random seed")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
