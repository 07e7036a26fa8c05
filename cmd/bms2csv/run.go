package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"bmschain-logger/internal/config"
	"bmschain-logger/internal/infra/csvout"
	"bmschain-logger/internal/infra/kafka"
	"bmschain-logger/internal/infra/mq"
	"bmschain-logger/internal/infra/mqtt"
	"bmschain-logger/internal/infra/rabbitmq"
	"bmschain-logger/internal/progress"
	"bmschain-logger/internal/protocol/bmschain"
	"bmschain-logger/internal/server"
	"bmschain-logger/internal/source"
	"bmschain-logger/internal/usecase"
)

// run 执行一次完整的采集/转换, progressOut 为进度行输出 (通常是 stderr)
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, progressOut io.Writer) (usecase.Stats, error) {
	kind, err := cfg.Source()
	if err != nil {
		return usecase.Stats{}, err
	}

	names := loadFaultNames(cfg, logger)

	// 时长只约束实时采集
	if d := cfg.CaptureDuration(); d > 0 && kind != config.SourceFile {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	src, err := openSource(ctx, kind, cfg, logger)
	if err != nil {
		return usecase.Stats{}, err
	}
	defer src.Close()

	producer := newProducer(cfg.MessageQueue, logger)
	defer producer.Close()

	conv := usecase.NewConverter(usecase.Options{
		Strict:     cfg.Capture.Strict,
		MaxFrames:  cfg.Capture.MaxFrames,
		FaultNames: names,
		FaultCount: cfg.Faults.Count,
		Buffered:   kind == config.SourceFile,
	}, logger)

	if cfg.MessageQueue.Enabled {
		dispatcher := usecase.NewDataDispatcher(producer, cfg.MessageQueue.Topic, 1, logger)
		dispatcher.Start()
		defer dispatcher.Stop()
		conv.WithDispatcher(dispatcher)
	}

	if kind != config.SourceFile {
		term := progress.NewTerminal(progressOut, !cfg.Capture.NoProgress, cfg.CaptureDuration(), cfg.Capture.MaxFrames)
		term.Start()
		conv.WithObserver(term)
	}

	logger.Info("Starting conversion",
		zap.Stringer("source", kind),
		zap.String("output", cfg.Output.Path),
		zap.Bool("strict", cfg.Capture.Strict),
		zap.Int("max_frames", cfg.Capture.MaxFrames),
		zap.Duration("duration", cfg.CaptureDuration()))

	return conv.Run(ctx, src, func(cols []string) (usecase.FrameSink, error) {
		return csvout.Create(cfg.Output.Path, cols, logger)
	})
}

func openSource(ctx context.Context, kind config.SourceKind, cfg *config.Config, logger *zap.Logger) (usecase.FrameSource, error) {
	switch kind {
	case config.SourceFile:
		return source.OpenFile(cfg.Input.Path, cfg.Input.Encoding, cfg.Input.ChunkBytes, logger)
	case config.SourceSerial:
		return source.OpenSerial(cfg.Serial.Port, cfg.Serial.BaudRate, cfg.ReadTimeout(), cfg.Capture.MaxFrameBytes, logger)
	case config.SourceTCP:
		srv := server.NewTCPServer(cfg.Listen.Addr, cfg.Capture.MaxFrameBytes, logger)
		if err := srv.Start(ctx); err != nil {
			return nil, err
		}
		return srv, nil
	default:
		return nil, config.ErrNoSource
	}
}

// loadFaultNames 读取 --source-c 或自动查找的 C 源文件; 失败时退回编号列名
func loadFaultNames(cfg *config.Config, logger *zap.Logger) []string {
	path := cfg.Faults.SourceC
	if path == "" {
		var bases []string
		if exe, err := os.Executable(); err == nil {
			bases = append(bases, filepath.Dir(exe))
		}
		if wd, err := os.Getwd(); err == nil {
			bases = append(bases, wd)
		}
		found := false
		path, found = bmschain.DiscoverSourceFile(bases...)
		if !found {
			logger.Info("Fault name source not found, using numbered fault columns", zap.String("expected", path))
			return nil
		}
	}

	names, err := bmschain.LoadFaultNames(path)
	switch {
	case err != nil:
		logger.Warn("Failed to read fault names", zap.String("path", path), zap.Error(err))
		return nil
	case names == nil:
		logger.Warn("Fault name source not found, using numbered fault columns", zap.String("path", path))
		return nil
	}
	logger.Info("Loaded fault names", zap.String("path", path), zap.Int("count", len(names)))
	return names
}

func newProducer(cfg config.MessageQueueConfig, logger *zap.Logger) mq.Producer {
	if !cfg.Enabled {
		return mq.NewNoOpProducer()
	}
	switch cfg.Type {
	case "kafka":
		return kafka.NewFrameProducer(cfg.Kafka, logger)
	case "mqtt":
		return mqtt.NewFrameProducer(cfg.MQTT, logger)
	case "rabbitmq", "":
		return rabbitmq.NewFrameProducer(cfg.RabbitMQ, logger)
	default:
		logger.Warn(fmt.Sprintf("Unknown message queue type %q, publishing disabled", cfg.Type))
		return mq.NewNoOpProducer()
	}
}
