package main

import (
	"bytes"
	"testing"
)

type countingWriter struct {
	bytes.Buffer
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return w.Buffer.Write(p)
}

func TestWriteChunked(t *testing.T) {
	var w countingWriter
	if err := writeChunked(&w, []byte("TOTDEV;1;ENDData"), 5); err != nil {
		t.Fatal(err)
	}
	if w.String() != "TOTDEV;1;ENDData" || w.writes != 4 {
		t.Fatalf("got %q in %d writes", w.String(), w.writes)
	}

	w = countingWriter{}
	_ = writeChunked(&w, []byte("abc"), 0)
	if w.writes != 1 {
		t.Fatalf("writes = %d", w.writes)
	}
}
