package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	DataSheet  = "Data"
	ChartSheet = "Charts"

	VoltageChartTitle = "Cell Voltage Trend"
	CurrentChartTitle = "Pack Current Trend"
)

var chartNotes = map[string]string{
	"A45": "Source CSV columns are copied to 'Data'.",
	"A46": "Charts are generated for voltage (all cells) and current.",
}

// DataColumns Data 表的列: 标识, 电流, 排序后的电芯电压
func (t *Table) DataColumns() []string {
	cols := []string{"frame_index", "chain_id", "device_id", "current_a"}
	return append(cols, t.VcellColumns...)
}

// BuildWorkbook 生成含 Data/Charts 两个工作表的 xlsx
func BuildWorkbook(t *Table, dest string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", DataSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(ChartSheet); err != nil {
		return err
	}

	if err := writeData(f, t); err != nil {
		return err
	}
	if err := f.SetPanes(DataSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	lastRow := len(t.Samples) + 1
	if err := f.AddChart(ChartSheet, "A1", voltageChart(t, lastRow)); err != nil {
		return fmt.Errorf("add voltage chart: %w", err)
	}
	if err := f.AddChart(ChartSheet, "A24", currentChart(lastRow)); err != nil {
		return fmt.Errorf("add current chart: %w", err)
	}
	for cell, note := range chartNotes {
		if err := f.SetCellValue(ChartSheet, cell, note); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return f.SaveAs(dest)
}

func writeData(f *excelize.File, t *Table) error {
	header := make([]interface{}, 0, len(t.DataColumns()))
	for _, c := range t.DataColumns() {
		header = append(header, c)
	}
	if err := f.SetSheetRow(DataSheet, "A1", &header); err != nil {
		return err
	}

	for i, s := range t.Samples {
		row := []interface{}{intOrNil(s.FrameIndex), s.ChainID, s.DeviceID, floatOrNil(s.CurrentA)}
		for _, v := range s.Vcells {
			row = append(row, floatOrNil(v))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(DataSheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// columnRange 返回 Data!$X$from:$X$to 形式的引用
func columnRange(col, from, to int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return fmt.Sprintf("%s!$%s$%d:$%s$%d", DataSheet, name, from, name, to)
}

func headerRef(col int) string {
	name, _ := excelize.ColumnNumberToName(col)
	return fmt.Sprintf("%s!$%s$1", DataSheet, name)
}

func lineSeries(col, lastRow int) excelize.ChartSeries {
	return excelize.ChartSeries{
		Name:       headerRef(col),
		Categories: columnRange(1, 2, lastRow),
		Values:     columnRange(col, 2, lastRow),
		Marker:     excelize.ChartMarker{Symbol: "circle", Size: 4},
	}
}

func lineChart(title, yTitle string, height uint, series []excelize.ChartSeries) *excelize.Chart {
	return &excelize.Chart{
		Type:   excelize.Line,
		Series: series,
		Title:  []excelize.RichTextRun{{Text: title}},
		XAxis: excelize.ChartAxis{
			Title: []excelize.RichTextRun{{Text: "Frame Index"}},
		},
		YAxis: excelize.ChartAxis{
			Title: []excelize.RichTextRun{{Text: yTitle}},
		},
		Legend:    excelize.ChartLegend{Position: "right"},
		Dimension: excelize.ChartDimension{Width: 960, Height: height},
	}
}

func voltageChart(t *Table, lastRow int) *excelize.Chart {
	first := len(t.DataColumns()) - len(t.VcellColumns) + 1
	series := make([]excelize.ChartSeries, 0, len(t.VcellColumns))
	for col := first; col < first+len(t.VcellColumns); col++ {
		series = append(series, lineSeries(col, lastRow))
	}
	return lineChart(VoltageChartTitle, "Voltage [V]", 400, series)
}

func currentChart(lastRow int) *excelize.Chart {
	// current_a 固定在第 4 列
	return lineChart(CurrentChartTitle, "Current [A]", 320, []excelize.ChartSeries{lineSeries(4, lastRow)})
}

func intOrNil(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func floatOrNil(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
