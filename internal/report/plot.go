package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	VoltagePNG = "cell_voltage_trend.png"
	CurrentPNG = "pack_current_trend.png"
)

// RenderPNG 在 dir 下输出与工作簿图表对应的两张 PNG, 返回文件路径
func RenderPNG(t *Table, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	vp := newPlot(VoltageChartTitle, "Voltage [V]")
	var lines []interface{}
	for i, col := range t.VcellColumns {
		lines = append(lines, col, t.series(func(s Sample) *float64 { return s.Vcells[i] }))
	}
	if err := plotutil.AddLinePoints(vp, lines...); err != nil {
		return nil, fmt.Errorf("voltage plot: %w", err)
	}

	cp := newPlot(CurrentChartTitle, "Current [A]")
	if err := plotutil.AddLinePoints(cp, "current_a", t.series(func(s Sample) *float64 { return s.CurrentA })); err != nil {
		return nil, fmt.Errorf("current plot: %w", err)
	}

	paths := []string{filepath.Join(dir, VoltagePNG), filepath.Join(dir, CurrentPNG)}
	if err := vp.Save(18*vg.Centimeter, 10*vg.Centimeter, paths[0]); err != nil {
		return nil, err
	}
	if err := cp.Save(18*vg.Centimeter, 8*vg.Centimeter, paths[1]); err != nil {
		return nil, err
	}
	return paths, nil
}

func newPlot(title, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame Index"
	p.X.Label.Padding = vg.Points(5)
	p.Y.Label.Text = yLabel
	p.Y.Label.Padding = vg.Points(5)
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p
}

// series 以 frame_index 为横轴取出一列, 跳过空值
func (t *Table) series(value func(Sample) *float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(t.Samples))
	for i, s := range t.Samples {
		v := value(s)
		if v == nil {
			continue
		}
		x := float64(i + 1)
		if s.FrameIndex != nil {
			x = float64(*s.FrameIndex)
		}
		xys = append(xys, plotter.XY{X: x, Y: *v})
	}
	return xys
}
