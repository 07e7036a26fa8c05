package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"bmschain-logger/internal/protocol/bmschain"
)

// Options 控制一次转换
type Options struct {
	Strict     bool
	MaxFrames  int      // 0 表示不限制
	FaultNames []string // 从 C 源码提取的故障名, 可为空
	FaultCount int      // 显式指定的故障列数, 0 表示自动
	// Buffered 先收集全部帧再写出, 故障列数可按实际最大值确定。
	// 仅适用于有限输入 (文件回放)。
	Buffered bool
}

// Stats 一次转换的统计
type Stats struct {
	Captured     int // 切分出的原始帧
	Parsed       int
	Skipped      int
	MaxFaults    int // 单帧最多故障值个数
	FaultColumns int
	Truncated    int // 故障值被截断的帧数
}

type Converter struct {
	opts       Options
	logger     *zap.Logger
	observer   CaptureObserver
	dispatcher *DataDispatcher
}

func NewConverter(opts Options, logger *zap.Logger) *Converter {
	return &Converter{opts: opts, logger: logger}
}

// WithObserver 设置进度观察者
func (c *Converter) WithObserver(o CaptureObserver) *Converter {
	c.observer = o
	return c
}

// WithDispatcher 设置消息队列分发器, 每个解析成功的帧都会投递一次
func (c *Converter) WithDispatcher(d *DataDispatcher) *Converter {
	c.dispatcher = d
	return c
}

// FaultColumnCount 按 显式值 > 故障名个数 > fallback 的优先级决定故障列数
func (c *Converter) FaultColumnCount(fallback int) int {
	switch {
	case c.opts.FaultCount > 0:
		return c.opts.FaultCount
	case len(c.opts.FaultNames) > 0:
		return len(c.opts.FaultNames)
	default:
		return fallback
	}
}

type indexedFrame struct {
	index int
	frame *bmschain.Frame
}

// Run 从 src 读取帧直到耗尽、达到 MaxFrames 或 ctx 结束 (时长到期/中断均视为正常结束)。
// 严格模式下第一帧解析失败即中止, 已写出的内容被丢弃。
func (c *Converter) Run(ctx context.Context, src FrameSource, newSink SinkFactory) (stats Stats, err error) {
	var (
		sink     FrameSink
		buffered []indexedFrame
	)
	if c.observer != nil {
		defer c.observer.Finish()
	}
	defer func() {
		if err != nil && sink != nil {
			sink.Abort()
		}
	}()

	write := func(index int, f *bmschain.Frame) error {
		truncated, err := sink.WriteFrame(index, f)
		if err != nil {
			return fmt.Errorf("write frame %d: %w", index, err)
		}
		if truncated {
			stats.Truncated++
		}
		return nil
	}

	for {
		if c.opts.MaxFrames > 0 && stats.Captured >= c.opts.MaxFrames {
			c.logger.Info("Reached maximum frame count", zap.Int("max_frames", c.opts.MaxFrames))
			break
		}

		raw, nerr := src.Next(ctx)
		if errors.Is(nerr, io.EOF) {
			break
		}
		if nerr != nil {
			if ctx.Err() != nil && errors.Is(nerr, ctx.Err()) {
				c.logger.Info("Capture stopped", zap.String("reason", ctx.Err().Error()))
				break
			}
			return stats, fmt.Errorf("read frame: %w", nerr)
		}

		stats.Captured++
		if c.observer != nil {
			c.observer.FrameCaptured(stats.Captured)
		}

		frame, perr := bmschain.ParseFrame(raw)
		if perr != nil {
			if c.opts.Strict {
				return stats, fmt.Errorf("frame #%d: %w", stats.Captured, perr)
			}
			stats.Skipped++
			c.logger.Warn("Skipped frame", zap.Int("frame", stats.Captured), zap.Error(perr))
			continue
		}

		stats.Parsed++
		stats.MaxFaults = max(stats.MaxFaults, len(frame.Faults))
		if c.dispatcher != nil {
			c.dispatcher.Dispatch(NewFramePayload(stats.Parsed, frame))
		}

		if c.opts.Buffered {
			buffered = append(buffered, indexedFrame{index: stats.Parsed, frame: frame})
			continue
		}

		if sink == nil {
			stats.FaultColumns = c.FaultColumnCount(bmschain.DefaultFaultCount)
			if sink, err = c.openSink(newSink, stats.FaultColumns); err != nil {
				return stats, err
			}
		}
		if err := write(stats.Parsed, frame); err != nil {
			return stats, err
		}
	}

	if stats.Parsed == 0 {
		if stats.Captured == 0 {
			return stats, fmt.Errorf("%w: no frames found", ErrEmptyResult)
		}
		return stats, fmt.Errorf("%w: %d frames skipped", ErrEmptyResult, stats.Skipped)
	}

	if c.opts.Buffered {
		stats.FaultColumns = c.FaultColumnCount(stats.MaxFaults)
		if sink, err = c.openSink(newSink, stats.FaultColumns); err != nil {
			return stats, err
		}
		for _, bf := range buffered {
			if err := write(bf.index, bf.frame); err != nil {
				return stats, err
			}
		}
	}

	if stats.Truncated > 0 {
		c.logger.Warn("Fault values exceeded fault columns and were truncated",
			zap.Int("frames", stats.Truncated),
			zap.Int("fault_columns", stats.FaultColumns),
			zap.Int("faults_per_frame_max", stats.MaxFaults))
	}

	if err := sink.Commit(); err != nil {
		return stats, fmt.Errorf("commit output: %w", err)
	}
	return stats, nil
}

func (c *Converter) openSink(newSink SinkFactory, count int) (FrameSink, error) {
	sink, err := newSink(bmschain.FaultColumnNames(count, c.opts.FaultNames))
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	return sink, nil
}
