package bmschain

import (
	"reflect"
	"strings"
	"testing"
)

func TestFrameScannerWholeInput(t *testing.T) {
	s := NewFrameScanner(0)
	got := s.Feed([]byte("A;1ENDData  B;2 ENDData\r\n ENDDataC;3"))
	if !reflect.DeepEqual(got, []string{"A;1", "B;2"}) {
		t.Fatalf("frames: %q", got)
	}
	if s.Pending() != len("C;3") {
		t.Fatalf("pending = %d", s.Pending())
	}
}

func TestFrameScannerByteByByte(t *testing.T) {
	f := sampleFrame()
	stream := EncodeFrame(f) + EncodeFrame(f)

	s := NewFrameScanner(0)
	var frames []string
	for i := 0; i < len(stream); i++ {
		frames = append(frames, s.Feed([]byte{stream[i]})...)
	}
	if len(frames) != 2 {
		t.Fatalf("want 2 frames, got %d", len(frames))
	}
	for _, raw := range frames {
		got, err := ParseFrame(raw)
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if !reflect.DeepEqual(got, f) {
			t.Fatalf("frame mismatch")
		}
	}
	if s.Pending() != 0 {
		t.Fatalf("pending = %d", s.Pending())
	}
}

func TestFrameScannerMarkerSplitAcrossLines(t *testing.T) {
	s := NewFrameScanner(0)
	if got := s.Feed([]byte("X;1;EN")); len(got) != 0 {
		t.Fatalf("early frame: %q", got)
	}
	if got := s.Feed([]byte("D\r\nDa")); len(got) != 0 {
		t.Fatalf("early frame: %q", got)
	}
	got := s.Feed([]byte("taY"))
	if !reflect.DeepEqual(got, []string{"X;1;"}) {
		t.Fatalf("frames: %q", got)
	}
}

func TestFrameScannerMaxSize(t *testing.T) {
	s := NewFrameScanner(16)
	s.Feed([]byte(strings.Repeat("x", 20)))
	if s.Pending() != 0 || s.Dropped() != 20 {
		t.Fatalf("pending=%d dropped=%d", s.Pending(), s.Dropped())
	}
	got := s.Feed([]byte("ok;ENDData"))
	if !reflect.DeepEqual(got, []string{"ok;"}) {
		t.Fatalf("frames: %q", got)
	}
}
