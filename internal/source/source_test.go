package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"bmschain-logger/internal/usecase"
)

func drain(t *testing.T, src usecase.FrameSource) []string {
	t.Helper()
	var out []string
	for {
		raw, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		out = append(out, raw)
	}
}

func TestReaderSourceSmallChunks(t *testing.T) {
	in := "A;1;END\r\nData\nB;2;ENDData  \nENDDatatrailing"
	src := NewReaderSource(strings.NewReader(in), 3, zap.NewNop())
	got := drain(t, src)
	if len(got) != 2 || got[0] != "A;1;" || got[1] != "B;2;" {
		t.Fatalf("frames %q", got)
	}
}

func TestOpenFileMissing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "nope.txt"), "utf-8", 0, zap.NewNop())
	if !errors.Is(err, usecase.ErrSourceUnavailable) {
		t.Fatalf("want ErrSourceUnavailable, got %v", err)
	}
}

func TestOpenFileEncoding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	if err := os.WriteFile(path, []byte("X;1;ENDData"), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := OpenFile(path, "shift_jis", 0, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()
	if got := drain(t, src); len(got) != 1 || got[0] != "X;1;" {
		t.Fatalf("frames %q", got)
	}

	if _, err := OpenFile(path, "no-such-charset", 0, zap.NewNop()); err == nil {
		t.Fatalf("expected encoding error")
	}
}

func TestOpenFileDropsUndecodableBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noisy.txt")
	if err := os.WriteFile(path, []byte("TOTDEV;\xff1;CH;0\xfe;ENDData"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, enc := range []string{"utf-8", "shift_jis"} {
		src, err := OpenFile(path, enc, 4, zap.NewNop())
		if err != nil {
			t.Fatalf("%s: open: %v", enc, err)
		}
		got := drain(t, src)
		src.Close()
		if len(got) != 1 || got[0] != "TOTDEV;1;CH;0;" {
			t.Fatalf("%s: frames %q", enc, got)
		}
	}
}

type fakePort struct {
	reads  [][]byte
	closed int
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.reads) == 0 {
		return 0, io.EOF
	}
	r := p.reads[0]
	p.reads = p.reads[1:]
	return copy(b, r), nil
}

func (p *fakePort) Close() error {
	p.closed++
	return nil
}

func TestSerialSourceZeroReadsAndNoise(t *testing.T) {
	port := &fakePort{reads: [][]byte{
		nil,
		[]byte("A;\xff1;EN"),
		{},
		[]byte("DData\r\nB;2;ENDData"),
	}}
	src := NewSerialSource(port, 0, zap.NewNop())
	got := drain(t, src)
	if len(got) != 2 || got[0] != "A;1;" || got[1] != "B;2;" {
		t.Fatalf("frames %q", got)
	}
	_ = src.Close()
	_ = src.Close()
	if port.closed != 1 {
		t.Fatalf("close count = %d", port.closed)
	}
}

func TestSerialSourceCancelled(t *testing.T) {
	src := NewSerialSource(&fakePort{}, 0, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestIsBluetoothPort(t *testing.T) {
	if !isBluetoothPort("/dev/cu.Bluetooth-Incoming-Port") || isBluetoothPort("/dev/ttyUSB0") {
		t.Fatalf("bluetooth filter broken")
	}
}
