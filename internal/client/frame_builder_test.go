package client

import (
	"strings"
	"testing"

	"bmschain-logger/internal/protocol/bmschain"
)

func TestFrameBuilderRoundTrip(t *testing.T) {
	fb := NewFrameBuilder(3, 1, 5, 42)
	for i := 0; i < 6; i++ {
		raw := string(fb.Build())
		if !strings.HasSuffix(raw, bmschain.EndMarker+"\r\n") {
			t.Fatalf("frame %d lacks end marker: %q", i, raw)
		}
		frames := bmschain.NewFrameScanner(0).Feed([]byte(raw))
		if len(frames) != 1 {
			t.Fatalf("frames %q", frames)
		}
		f, err := bmschain.ParseFrame(frames[0])
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if f.DeviceID != i%3 || f.ChainID != 1 || len(f.Faults) != 5 {
			t.Fatalf("frame %d: %+v", i, f)
		}
	}
}

func TestFrameBuilderMalformedEvery(t *testing.T) {
	fb := NewFrameBuilder(2, 0, 0, 1)
	fb.MalformedEvery = 3

	bad := 0
	for i := 0; i < 9; i++ {
		frames := bmschain.NewFrameScanner(0).Feed(fb.Build())
		_, err := bmschain.ParseFrame(frames[0])
		if err != nil {
			if bmschain.KindOf(err) != bmschain.KindLabelMismatch {
				t.Fatalf("unexpected error kind: %v", err)
			}
			bad++
		}
	}
	if bad != 3 {
		t.Fatalf("malformed frames = %d", bad)
	}
}

func TestDropDevice(t *testing.T) {
	got := dropDevice("TOTDEV;2;CHAIN;0;DEV;1;SOC;")
	if got != "TOTDEV;2;CHAIN;0;SOC;" {
		t.Fatalf("got %q", got)
	}
}
