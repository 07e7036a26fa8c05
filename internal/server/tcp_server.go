package server

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/panjf2000/gnet/v2"

	"go.uber.org/zap"

	"bmschain-logger/internal/protocol/bmschain"
	"bmschain-logger/internal/usecase"
)

// connContext 保存每个连接的切分状态
type connContext struct {
	scanner *bmschain.FrameScanner
	addr    string
}

// TCPServer 接收串口服务器 (ser2net 等) 转发的 BMSCHAIN 数据流。
// 单事件循环运行, 帧按到达顺序经 channel 交给调用方。
type TCPServer struct {
	gnet.BuiltinEventEngine

	addr          string
	maxFrameBytes int
	logger        *zap.Logger

	frames  chan string
	errC    chan error
	started chan struct{}
	done    chan struct{}
	once    sync.Once
	stop    sync.Once
	running bool
}

var _ usecase.FrameSource = (*TCPServer)(nil)

// NewTCPServer listenAddr 形如 "0.0.0.0:4001"
func NewTCPServer(listenAddr string, maxFrameBytes int, logger *zap.Logger) *TCPServer {
	return &TCPServer{
		addr:          fmt.Sprintf("tcp://%s", listenAddr),
		maxFrameBytes: maxFrameBytes,
		logger:        logger,
		frames:        make(chan string, 1024),
		errC:          make(chan error, 1),
		started:       make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (s *TCPServer) OnBoot(eng gnet.Engine) (action gnet.Action) {
	s.logger.Info("TCP listener is booting", zap.String("address", s.addr))
	close(s.started)
	return
}

func (s *TCPServer) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	s.logger.Info("New connection opened", zap.String("remote_addr", c.RemoteAddr().String()))

	c.SetContext(&connContext{
		scanner: bmschain.NewFrameScanner(s.maxFrameBytes),
		addr:    c.RemoteAddr().String(),
	})
	return
}

func (s *TCPServer) OnTraffic(c gnet.Conn) (action gnet.Action) {
	ctx := c.Context().(*connContext)

	// 读取新数据
	buf, _ := c.Next(-1)
	if len(buf) == 0 {
		return
	}
	for _, raw := range s.handleTraffic(ctx, buf) {
		select {
		case s.frames <- raw:
		case <-s.done:
			return gnet.Close
		}
	}
	return
}

// handleTraffic 追加数据到连接的扫描器并返回完整帧
func (s *TCPServer) handleTraffic(ctx *connContext, data []byte) []string {
	dropped := ctx.scanner.Dropped()
	frames := ctx.scanner.Feed(data)
	if d := ctx.scanner.Dropped() - dropped; d > 0 {
		s.logger.Warn("Discarded oversized data without end marker", zap.String("addr", ctx.addr), zap.Int("bytes", d))
	}
	return frames
}

func (s *TCPServer) OnClose(c gnet.Conn, err error) (action gnet.Action) {
	if ctx, ok := c.Context().(*connContext); ok && ctx.scanner.Pending() > 0 {
		s.logger.Debug("Connection closed with incomplete frame", zap.String("remote", ctx.addr), zap.Int("bytes", ctx.scanner.Pending()))
	}
	s.logger.Info("Connection closed", zap.String("remote", c.RemoteAddr().String()), zap.Error(err))
	return
}

func (s *TCPServer) OnShutdown(eng gnet.Engine) {
	s.logger.Info("TCP listener is shutting down")
}

// Start 在后台启动事件循环, 监听成功后返回
func (s *TCPServer) Start(ctx context.Context) error {
	s.once.Do(func() {
		s.running = true
		go func() {
			err := gnet.Run(s, s.addr,
				gnet.WithMulticore(false),
				gnet.WithLogger(s.logger.Sugar()),
				gnet.WithReusePort(true),
			)
			if err != nil {
				s.errC <- err
			}
		}()
	})

	select {
	case <-s.started:
		return nil
	case err := <-s.errC:
		return fmt.Errorf("%w: listen %s: %v", usecase.ErrSourceUnavailable, s.addr, err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next 返回下一帧; 监听器停止后返回 io.EOF
func (s *TCPServer) Next(ctx context.Context) (string, error) {
	select {
	case <-s.done:
		return "", io.EOF
	default:
	}
	if !s.running {
		if err := s.Start(ctx); err != nil {
			return "", err
		}
	}
	select {
	case raw := <-s.frames:
		return raw, nil
	case err := <-s.errC:
		return "", err
	case <-s.done:
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close 停止事件循环
func (s *TCPServer) Close() error {
	var err error
	s.stop.Do(func() {
		close(s.done)
		if s.running {
			s.logger.Info("Stopping TCP listener...")
			err = gnet.Stop(context.Background(), s.addr)
		}
	})
	return err
}
