package usecase

import (
	"context"

	"bmschain-logger/internal/protocol/bmschain"
)

// FrameSource 按到达顺序产出原始帧 (不含结束符)。
// 数据耗尽时返回 io.EOF; ctx 结束时返回 ctx.Err()。
type FrameSource interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// FrameSink 接收解析后的帧并写出一行
type FrameSink interface {
	// WriteFrame 写入第 index 帧, 返回故障值是否被截断
	WriteFrame(index int, f *bmschain.Frame) (bool, error)
	Commit() error
	Abort()
}

// SinkFactory 在故障列确定后创建 FrameSink
type SinkFactory func(faultColumns []string) (FrameSink, error)

// CaptureObserver 接收采集进度 (可选)
type CaptureObserver interface {
	FrameCaptured(total int)
	Finish()
}

type DataProducer interface {
	// Produce 发送数据到指定 Topic
	Produce(ctx context.Context, topic string, key string, data interface{}) error
}
