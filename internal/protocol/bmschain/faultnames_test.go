package bmschain

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestFaultColumnNames(t *testing.T) {
	got := FaultColumnNames(3, []string{"OverTemp", "UnderVolt"})
	want := []string{"fault_001_OverTemp", "fault_002_UnderVolt", "fault_003"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q", got)
	}

	got = FaultColumnNames(2, []string{"AEK_POW_BMS63CHAIN_OV_FLT", "x", "unused"})
	if !reflect.DeepEqual(got, []string{"fault_001_OV_FLT", "fault_002_x"}) {
		t.Fatalf("got %q", got)
	}

	if got := FaultColumnNames(0, nil); len(got) != 0 {
		t.Fatalf("got %q", got)
	}
}

const cSource = `
void other(void) {
    x = AEK_POW_BMS63CHAIN_fastDiag[0].NotMe;
}

void AEK_POW_BMS63CHAIN_app_serialStep_GUI(uint8_t dev)
{
    sendMessage("FAULTS:");
    sendValue(AEK_POW_BMS63CHAIN_fastDiag[dev].AEK_POW_BMS63CHAIN_VUV_FLT);
    // sendValue(AEK_POW_BMS63CHAIN_fastDiag[dev].Disabled);
    sendValue(AEK_POW_BMS63CHAIN_fastDiag[dev].OV_FLT); sendValue(AEK_POW_BMS63CHAIN_fastDiag[dev].TEMP_FLT);
    sendMessage("ENDData");
    sendValue(AEK_POW_BMS63CHAIN_fastDiag[dev].After);
}
`

func TestExtractFaultNames(t *testing.T) {
	names, err := ExtractFaultNames(strings.NewReader(cSource))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := []string{"AEK_POW_BMS63CHAIN_VUV_FLT", "OV_FLT", "TEMP_FLT"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("names %q", names)
	}
	cols := FaultColumnNames(4, names)
	if cols[0] != "fault_001_VUV_FLT" || cols[3] != "fault_004" {
		t.Fatalf("cols %q", cols)
	}
}

func TestExtractFaultNamesWholeFileFallback(t *testing.T) {
	src := "a = AEK_POW_BMS63CHAIN_fastDiag[1].A;\n//b = AEK_POW_BMS63CHAIN_fastDiag[1].B;\n"
	names, err := ExtractFaultNames(strings.NewReader(src))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"A"}) {
		t.Fatalf("names %q", names)
	}
}

func TestLoadFaultNamesMissingFile(t *testing.T) {
	names, err := LoadFaultNames(filepath.Join(t.TempDir(), "absent.c"))
	if err != nil || names != nil {
		t.Fatalf("names=%v err=%v", names, err)
	}
}

func TestDiscoverSourceFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, ProjectDirName, "source", SourceFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(cSource), 0o644); err != nil {
		t.Fatal(err)
	}
	got, ok := DiscoverSourceFile(filepath.Join(root, "tools"), root)
	if !ok || got != path {
		t.Fatalf("got %q ok=%v", got, ok)
	}

	if _, ok := DiscoverSourceFile(t.TempDir()); ok {
		t.Fatalf("expected miss")
	}
}
