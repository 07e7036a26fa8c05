package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const redrawInterval = 500 * time.Millisecond

// Terminal 采集进度提示 (非日志)。
// - TTY: 单行 \r 覆盖, 每 500ms 及每帧刷新;
// - 非 TTY: 只在结束时打印一行;
// - 写失败后进入禁用态为 no-op。
type Terminal struct {
	w         io.Writer
	enabled   bool
	isTTY     bool
	duration  time.Duration
	maxFrames int

	start     time.Time
	frames    int
	lastLen   int
	lastFlush time.Time
	now       func() time.Time

	stop chan struct{}
	done chan struct{}
	mu   sync.Mutex
}

// NewTerminal duration/maxFrames 为 0 时不显示 remaining/target
func NewTerminal(w io.Writer, enabled bool, duration time.Duration, maxFrames int) *Terminal {
	if w == nil {
		w = os.Stderr
	}
	t := &Terminal{w: w, enabled: enabled, duration: duration, maxFrames: maxFrames, now: time.Now}
	if os.Getenv("CI") == "" {
		if f, ok := w.(*os.File); ok {
			if fi, err := f.Stat(); err == nil {
				t.isTTY = fi.Mode()&os.ModeCharDevice != 0
			}
		}
	}
	return t
}

// Start 记录起始时间并启动周期刷新
func (t *Terminal) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.start = t.now()
	if !t.enabled || !t.isTTY || t.stop != nil {
		return
	}
	t.redraw(true)

	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(redrawInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.mu.Lock()
				t.redraw(false)
				t.mu.Unlock()
			}
		}
	}(t.stop, t.done)
}

func (t *Terminal) FrameCaptured(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames = total
	if t.enabled && t.isTTY {
		t.redraw(true)
	}
}

// Finish 停止刷新并换行
func (t *Terminal) Finish() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop = nil
	t.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	if t.isTTY {
		t.redraw(true)
		t.write("\n")
		t.lastLen = 0
		return
	}
	t.write("[INFO] Captured " + t.line() + "\n")
}

func (t *Terminal) line() string {
	elapsed := t.now().Sub(t.start)
	parts := []string{
		fmt.Sprintf("frames=%d", t.frames),
		fmt.Sprintf("elapsed=%.1fs", elapsed.Seconds()),
	}
	if t.duration > 0 {
		remain := max(t.duration-elapsed, 0)
		parts = append(parts, fmt.Sprintf("remaining=%.1fs", remain.Seconds()))
	}
	if t.maxFrames > 0 {
		parts = append(parts, fmt.Sprintf("target=%d/%d", t.frames, t.maxFrames))
	}
	return strings.Join(parts, ", ")
}

// redraw 调用方持有锁; force=false 时按 500ms 节流
func (t *Terminal) redraw(force bool) {
	now := t.now()
	if !force && now.Sub(t.lastFlush) < redrawInterval {
		return
	}
	t.lastFlush = now

	s := "[INFO] Capturing... " + t.line()
	pad := 0
	if t.lastLen > len(s) {
		pad = t.lastLen - len(s)
	}
	t.write("\r" + s + strings.Repeat(" ", pad))
	t.lastLen = len(s)
}

func (t *Terminal) write(s string) {
	if _, err := io.WriteString(t.w, s); err != nil {
		// 写失败即禁用
		t.enabled = false
	}
}
