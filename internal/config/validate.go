package config

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SourceKind 输入来源
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceFile
	SourceSerial
	SourceTCP
)

func (k SourceKind) String() string {
	switch k {
	case SourceFile:
		return "file"
	case SourceSerial:
		return "serial"
	case SourceTCP:
		return "tcp"
	default:
		return "none"
	}
}

var (
	ErrNoSource        = errors.New("one of --input, --serial-port or --listen is required")
	ErrMultipleSources = errors.New("--input, --serial-port and --listen are mutually exclusive")
	ErrNoOutput        = errors.New("--output is required")
)

// Source 返回唯一被选择的输入来源
func (c *Config) Source() (SourceKind, error) {
	var kinds []SourceKind
	if c.Input.Path != "" {
		kinds = append(kinds, SourceFile)
	}
	if c.Serial.Port != "" {
		kinds = append(kinds, SourceSerial)
	}
	if c.Listen.Addr != "" {
		kinds = append(kinds, SourceTCP)
	}
	switch len(kinds) {
	case 0:
		return SourceNone, ErrNoSource
	case 1:
		return kinds[0], nil
	default:
		return SourceNone, ErrMultipleSources
	}
}

// Validate 检查 bms2csv 所需的配置项
func (c *Config) Validate() error {
	if _, err := c.Source(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		return ErrNoOutput
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Serial.BaudRate)
	}
	if c.Capture.MaxFrames < 0 {
		return fmt.Errorf("invalid max frames %d", c.Capture.MaxFrames)
	}
	if c.Faults.Count < 0 {
		return fmt.Errorf("invalid fault count %d", c.Faults.Count)
	}
	if _, err := ParseDuration(c.Capture.Duration); err != nil {
		return err
	}
	return nil
}

// CaptureDuration 返回采集时长, 0 表示不限制
func (c *Config) CaptureDuration() time.Duration {
	d, _ := ParseDuration(c.Capture.Duration)
	return d
}

// ReadTimeout 返回串口读超时
func (c *Config) ReadTimeout() time.Duration {
	if c.Serial.ReadTimeoutMs <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(c.Serial.ReadTimeoutMs) * time.Millisecond
}

var durationRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)([smhSMH]?)$`)

// ParseDuration 解析采集时长: 纯数字按秒处理, 也接受 20s / 5m / 4h 以及
// time.ParseDuration 支持的写法 (如 1h30m)。空字符串返回 0。
func ParseDuration(text string) (time.Duration, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	if m := durationRe.FindStringSubmatch(text); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, err
		}
		unit := time.Second
		switch strings.ToLower(m[2]) {
		case "m":
			unit = time.Minute
		case "h":
			unit = time.Hour
		}
		return time.Duration(v * float64(unit)), nil
	}
	d, err := time.ParseDuration(text)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid duration %q: use examples like 20s, 5m, 4h, 30", text)
	}
	return d, nil
}
