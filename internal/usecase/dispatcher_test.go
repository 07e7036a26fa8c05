package usecase

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// stalledProducer 模拟不可达的 broker: 每次发送阻塞到 ctx 结束
type stalledProducer struct {
	calls chan struct{}
}

func (p *stalledProducer) Produce(ctx context.Context, topic, key string, data interface{}) error {
	select {
	case p.calls <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatcherStopBoundedByDrainTimeout(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prod := &stalledProducer{calls: make(chan struct{}, 1)}
	d := NewDataDispatcher(prod, "bms_frames", 1, zap.New(core))
	d.SetDrainTimeout(50 * time.Millisecond)
	d.Start()

	const queued = 5
	for i := 1; i <= queued; i++ {
		d.Dispatch(NewFramePayload(i, testFrame(0, i)))
	}
	select {
	case <-prod.calls:
	case <-time.After(time.Second):
		t.Fatal("producer never called")
	}

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after drain timeout")
	}

	sent, failed, dropped := d.Counts()
	if sent != 0 || failed != 1 || dropped != queued-1 {
		t.Fatalf("counts sent=%d failed=%d dropped=%d", sent, failed, dropped)
	}
	if logs.FilterMessage("DataDispatcher drain timed out, abandoning queued frames").Len() != 1 {
		t.Fatalf("expected drain timeout warning, got %v", logs.All())
	}
}

func TestDispatcherStopDrainsFastProducer(t *testing.T) {
	prod := &recordingProducer{}
	d := NewDataDispatcher(prod, "bms_frames", 1, zap.NewNop())
	d.Start()
	for i := 1; i <= 3; i++ {
		d.Dispatch(NewFramePayload(i, testFrame(0, i)))
	}
	d.Stop()

	if sent, failed, dropped := d.Counts(); sent != 3 || failed != 0 || dropped != 0 {
		t.Fatalf("counts %d/%d/%d", sent, failed, dropped)
	}
}
