package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"bmschain-logger/internal/protocol/bmschain"
	"bmschain-logger/internal/usecase"
)

const (
	DefaultBaudRate = 115200
	maxReadErrors   = 50
)

// SerialSource 从串口实时采集帧。
// 读超时返回 0 字节属于正常情况, 直接重试。
type SerialSource struct {
	port    io.ReadCloser
	scanner *bmschain.FrameScanner
	buf     []byte
	pending []string
	logger  *zap.Logger
	closed  bool
}

var _ usecase.FrameSource = (*SerialSource)(nil)

// OpenSerial 打开串口, 设置读超时以便周期性检查 ctx
func OpenSerial(name string, baud int, readTimeout time.Duration, maxFrameBytes int, logger *zap.Logger) (*SerialSource, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", usecase.ErrSourceUnavailable, name, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: set read timeout on %s: %v", usecase.ErrSourceUnavailable, name, err)
	}
	logger.Info("Serial port opened", zap.String("port", name), zap.Int("baud_rate", baud), zap.Duration("read_timeout", readTimeout))
	return NewSerialSource(port, maxFrameBytes, logger), nil
}

// NewSerialSource 包装一个已打开的端口
func NewSerialSource(port io.ReadCloser, maxFrameBytes int, logger *zap.Logger) *SerialSource {
	return &SerialSource{
		port:    port,
		scanner: bmschain.NewFrameScanner(maxFrameBytes),
		buf:     make([]byte, 1024),
		logger:  logger,
	}
}

func (s *SerialSource) Next(ctx context.Context) (string, error) {
	errCount := 0
	for len(s.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := s.port.Read(s.buf)
		if err != nil {
			if err == io.EOF {
				return "", io.EOF
			}
			errCount++
			if errCount > maxReadErrors {
				return "", fmt.Errorf("serial read failed: %w", err)
			}
			s.logger.Debug("Serial read error, retrying", zap.Error(err), zap.Int("attempt", errCount))
			time.Sleep(time.Duration(min(errCount*10, 500)) * time.Millisecond)
			continue
		}
		errCount = 0

		if n == 0 {
			continue
		}

		dropped := s.scanner.Dropped()
		s.pending = append(s.pending, s.scanner.Feed(asciiOnly(s.buf[:n]))...)
		if d := s.scanner.Dropped() - dropped; d > 0 {
			s.logger.Warn("Discarded oversized data without end marker", zap.Int("bytes", d))
		}
	}

	raw := s.pending[0]
	s.pending = s.pending[1:]
	return raw, nil
}

// Close 释放串口, 可重复调用
func (s *SerialSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.port.Close()
}

// asciiOnly 丢弃非 ASCII 字节 (线路噪声)
func asciiOnly(b []byte) []byte {
	out := b[:0:0]
	for _, c := range b {
		if c < 0x80 {
			out = append(out, c)
		}
	}
	return out
}

// AvailablePorts 列出本机串口, 过滤蓝牙等虚拟端口
func AvailablePorts() ([]string, error) {
	all, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, p := range all {
		if !isBluetoothPort(p) {
			ports = append(ports, p)
		}
	}
	return ports, nil
}

func isBluetoothPort(name string) bool {
	low := strings.ToLower(name)
	if strings.Contains(low, "bluetooth-incoming-port") || strings.Contains(low, "modem") {
		return true
	}
	return strings.Contains(low, "bluetooth") && !strings.Contains(low, "usb")
}
