package bmschain

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
)

func sampleFrame() *Frame {
	f := &Frame{
		TotalDevices:   2,
		ChainID:        1,
		DeviceID:       3,
		CurrentA:       -1.25,
		PackVoltageV:   51.8,
		VrefV:          2.5,
		VUVThresholdV:  2.8,
		VOVThresholdV:  4.2,
		GPUTThresholdV: 0.3,
		GPOTThresholdV: 3.1,
		Faults:         []int{0, 1, 0, 0, 1},
		VTRefV:         2.49,
	}
	for i := 0; i < CellCount; i++ {
		f.SOC[i] = i + 1
		f.Vcell[i] = 3.6 + float64(i)/100
		f.Temp[i] = 25.5 + float64(i)
		f.Bal[i] = i % 2
	}
	return f
}

// rawOf 返回不含结束符的帧文本
func rawOf(f *Frame) string {
	return strings.TrimSuffix(strings.TrimSpace(EncodeFrame(f)), EndMarker)
}

func TestParseFrameRoundTrip(t *testing.T) {
	want := sampleFrame()
	got, err := ParseFrame(rawOf(want))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip mismatch\n got %+v\nwant %+v", got, want)
	}
}

func TestParseFrameSectionOrder(t *testing.T) {
	raw := "TOTDEV;1;CHAIN;0;DEV;1;" +
		"SOC;1;2;3;4;5;6;7;8;9;10;11;12;13;14;" +
		"Vcell:;3.01;3.02;3.03;3.04;3.05;3.06;3.07;3.08;3.09;3.10;3.11;3.12;3.13;3.14;" +
		"TEMP:;20;21;22;23;24;25;26;27;28;29;30;31;32;33;" +
		"BAL:;0;1;0;1;0;1;0;1;0;1;0;1;0;1;" +
		"Curr:;0.5;totV:;43.2;Vref:;2.5;VUV:;2.7;VOV:;4.25;GPUT:;0.1;GPOT:;3.3;" +
		"FAULTS:;7;8;9;VTREF;2.5"
	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for i := 0; i < CellCount; i++ {
		if f.SOC[i] != i+1 {
			t.Fatalf("SOC[%d]=%d", i, f.SOC[i])
		}
		if f.Temp[i] != float64(20+i) {
			t.Fatalf("TEMP[%d]=%v", i, f.Temp[i])
		}
		if f.Bal[i] != i%2 {
			t.Fatalf("BAL[%d]=%d", i, f.Bal[i])
		}
	}
	if f.Vcell[0] != 3.01 || f.Vcell[13] != 3.14 {
		t.Fatalf("vcell order: %v", f.Vcell)
	}
	if !reflect.DeepEqual(f.Faults, []int{7, 8, 9}) {
		t.Fatalf("faults: %v", f.Faults)
	}
	if f.GPOTThresholdV != 3.3 || f.VTRefV != 2.5 || f.CurrentA != 0.5 {
		t.Fatalf("scalars: %+v", f)
	}
}

func TestParseFrameDeterministic(t *testing.T) {
	raw := rawOf(sampleFrame())
	a, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("parse a: %v", err)
	}
	b, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("parse b: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("re-parse differs")
	}
}

func TestParseFrameEmptyFaults(t *testing.T) {
	f := sampleFrame()
	f.Faults = nil
	got, err := ParseFrame(rawOf(f))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Faults == nil || len(got.Faults) != 0 {
		t.Fatalf("want empty non-nil faults, got %#v", got.Faults)
	}
}

func TestParseFrameWhitespaceAndBOM(t *testing.T) {
	raw := "\ufeff" + strings.ReplaceAll(rawOf(sampleFrame()), ";", " ;  ")
	if _, err := ParseFrame(raw); err != nil {
		t.Fatalf("parse: %v", err)
	}
}

func TestParseIntTolerance(t *testing.T) {
	raw := strings.Replace(rawOf(sampleFrame()), "DEV;3;", "DEV;12.0;", 1)
	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.DeviceID != 12 {
		t.Fatalf("device id = %d", f.DeviceID)
	}

	raw = strings.Replace(rawOf(sampleFrame()), "DEV;3;", "DEV;12.5;", 1)
	_, err = ParseFrame(raw)
	var pe *FrameParseError
	if !errors.As(err, &pe) || pe.Kind != KindInvalidNumber {
		t.Fatalf("want invalid number, got %v", err)
	}
	if pe.Label != "DEV" || pe.Token != "12.5" {
		t.Fatalf("unexpected error context: %+v", pe)
	}
	if !strings.Contains(err.Error(), "DEV") || !strings.Contains(err.Error(), "12.5") {
		t.Fatalf("message lacks context: %v", err)
	}
}

func TestParseIntOutOfRange(t *testing.T) {
	for _, tok := range []string{"9223372036854775808.0", "1e19", "-1e19"} {
		_, err := parseInt(tok, "DEV", 1)
		var pe *FrameParseError
		if !errors.As(err, &pe) || pe.Kind != KindInvalidNumber {
			t.Fatalf("%s: want invalid number, got %v", tok, err)
		}
	}

	v, err := parseInt("-9223372036854775808.0", "DEV", 1)
	if err != nil || v != math.MinInt64 {
		t.Fatalf("min int64: v=%d err=%v", v, err)
	}
}

func TestParseFrameErrors(t *testing.T) {
	base := rawOf(sampleFrame())
	cases := []struct {
		name     string
		raw      string
		kind     ErrorKind
		contains []string
	}{
		{
			name:     "label without colon",
			raw:      strings.Replace(base, "Vcell:;", "Vcell;", 1),
			kind:     KindLabelMismatch,
			contains: []string{`"Vcell:"`, `"Vcell"`},
		},
		{
			name:     "missing DEV",
			raw:      strings.Replace(base, "DEV;3;", "", 1),
			kind:     KindLabelMismatch,
			contains: []string{`"DEV"`, `"SOC"`},
		},
		{
			name:     "soc truncated",
			raw:      strings.Replace(base, "SOC;1;2;3;4;5;6;7;8;9;10;11;12;13;14;", "SOC;1;2;3;4;5;6;7;8;9;10;", 1),
			kind:     KindTruncated,
			contains: []string{`"SOC"`, "expected 14", "found 10"},
		},
		{
			name:     "ends before VTREF",
			raw:      base[:strings.Index(base, "VTREF")],
			kind:     KindUnexpectedEnd,
			contains: []string{`"VTREF"`},
		},
		{
			name:     "missing VTREF value",
			raw:      strings.TrimSuffix(base, "2.49;"),
			kind:     KindUnexpectedEnd,
			contains: []string{"VTREF"},
		},
		{
			name:     "empty frame",
			raw:      "  ;; ",
			kind:     KindUnexpectedEnd,
			contains: []string{`"TOTDEV"`},
		},
		{
			name:     "bad vcell",
			raw:      strings.Replace(base, "Vcell:;3.6;", "Vcell:;x3;", 1),
			kind:     KindInvalidNumber,
			contains: []string{"Vcell[1]", `"x3"`},
		},
		{
			name:     "bad fault",
			raw:      strings.Replace(base, "FAULTS:;0;", "FAULTS:;0.5;", 1),
			kind:     KindInvalidNumber,
			contains: []string{"FAULTS[1]"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFrame(tc.raw)
			if err == nil {
				t.Fatalf("expected error")
			}
			if k := KindOf(err); k != tc.kind {
				t.Fatalf("kind = %v, want %v (%v)", k, tc.kind, err)
			}
			for _, s := range tc.contains {
				if !strings.Contains(err.Error(), s) {
					t.Fatalf("error %q does not mention %s", err, s)
				}
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize(" A ; ;B;;  C  ;")
	if !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Fatalf("tokens: %q", got)
	}
}

func TestFormatFloatShortest(t *testing.T) {
	cases := map[float64]string{
		25:       "25",
		0.00001:  "0.00001",
		-3.25:    "-3.25",
		3.700001: "3.700001",
	}
	for v, want := range cases {
		if got := FormatFloat(v); got != want {
			t.Fatalf("FormatFloat(%v) = %q, want %q", v, got, want)
		}
	}
}
