package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DataDispatcher 将解析后的帧异步投递到消息队列。
// 单个 worker 时发布顺序与 CSV 行顺序一致。
type DataDispatcher struct {
	dataChan    chan FramePayload
	producer    DataProducer
	topic       string
	logger      *zap.Logger
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	stopOnce    sync.Once

	// drainTimeout 限制 Stop 等待队列清空的时间, 到期后取消进行中的发送, 剩余帧计为丢弃
	drainTimeout time.Duration

	mu      sync.Mutex
	sent    int
	failed  int
	dropped int
}

const defaultDrainTimeout = 5 * time.Second

// NewDataDispatcher 创建一个新的数据分发器
func NewDataDispatcher(producer DataProducer, topic string, workerCount int, logger *zap.Logger) *DataDispatcher {
	if workerCount <= 0 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DataDispatcher{
		dataChan:    make(chan FramePayload, 10000), // 带缓冲 Channel，防止阻塞采集
		producer:    producer,
		topic:       topic,
		workerCount: workerCount,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,

		drainTimeout: defaultDrainTimeout,
	}
}

// Start 启动 worker 协程池
func (d *DataDispatcher) Start() {
	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("DataDispatcher started", zap.Int("workers", d.workerCount), zap.String("topic", d.topic))
}

// SetDrainTimeout 设置 Stop 的最长等待时间, <= 0 时保持默认值
func (d *DataDispatcher) SetDrainTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.drainTimeout = timeout
	}
}

// Stop 关闭通道并等待队列中剩余的帧发送完毕, 最多等待 drainTimeout
func (d *DataDispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.dataChan)
		timer := time.AfterFunc(d.drainTimeout, func() {
			d.logger.Warn("DataDispatcher drain timed out, abandoning queued frames", zap.Duration("timeout", d.drainTimeout))
			d.cancel()
		})
		d.wg.Wait()
		timer.Stop()
		d.cancel()
		d.mu.Lock()
		defer d.mu.Unlock()
		d.logger.Info("DataDispatcher stopped",
			zap.Int("sent", d.sent), zap.Int("failed", d.failed), zap.Int("dropped", d.dropped))
	})
}

// Dispatch 将帧投递到缓冲通道 (非阻塞，满则丢弃并计数)
func (d *DataDispatcher) Dispatch(p FramePayload) {
	select {
	case d.dataChan <- p:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		d.logger.Warn("DataDispatcher channel full, dropping frame", zap.Int("frame_index", p.Index))
	}
}

func (d *DataDispatcher) worker(id int) {
	defer d.wg.Done()
	for p := range d.dataChan {
		if d.ctx.Err() != nil {
			d.mu.Lock()
			d.dropped++
			d.mu.Unlock()
			continue
		}
		d.process(p)
	}
}

func (d *DataDispatcher) process(p FramePayload) {
	err := d.producer.Produce(d.ctx, d.topic, p.Key(), p)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.failed++
		d.logger.Error("DataDispatcher failed to send frame", zap.Int("frame_index", p.Index), zap.Error(err))
		return
	}
	d.sent++
}

// Counts 返回已发送、失败、丢弃的帧数
func (d *DataDispatcher) Counts() (sent, failed, dropped int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sent, d.failed, d.dropped
}
