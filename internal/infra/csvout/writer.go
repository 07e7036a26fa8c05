package csvout

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"bmschain-logger/internal/protocol/bmschain"
)

// utf-8 BOM, 让 Excel 正确识别编码
var bom = []byte{0xEF, 0xBB, 0xBF}

// Header 返回 CSV 表头: 序号, 标识, 四个 14 列的段, 7 个标量, 故障列, VTREF
func Header(faultColumns []string) []string {
	h := make([]string, 0, 4+4*bmschain.CellCount+7+len(faultColumns)+1)
	h = append(h, "frame_index", "total_devices", "chain_id", "device_id")
	for i := 1; i <= bmschain.CellCount; i++ {
		h = append(h, fmt.Sprintf("soc_cell%d", i))
	}
	for i := 1; i <= bmschain.CellCount; i++ {
		h = append(h, fmt.Sprintf("vcell%d_v", i))
	}
	for i := 1; i <= bmschain.CellCount; i++ {
		h = append(h, fmt.Sprintf("temp_cell%d_raw", i))
	}
	for i := 1; i <= bmschain.CellCount; i++ {
		h = append(h, fmt.Sprintf("bal_cell%d", i))
	}
	h = append(h,
		"current_a",
		"pack_voltage_v",
		"vref_v",
		"vuv_threshold_v",
		"vov_threshold_v",
		"gput_threshold_v",
		"gpot_threshold_v",
	)
	h = append(h, faultColumns...)
	return append(h, "vtref_v")
}

// Row 将一帧映射为与 Header 对齐的一行。
// 故障值多于 faultCount 时截断并返回 truncated=true, 少于时以空单元格补齐。
func Row(index int, f *bmschain.Frame, faultCount int) (row []string, truncated bool) {
	row = make([]string, 0, 4+4*bmschain.CellCount+7+faultCount+1)
	row = append(row,
		strconv.Itoa(index),
		strconv.Itoa(f.TotalDevices),
		strconv.Itoa(f.ChainID),
		strconv.Itoa(f.DeviceID),
	)
	for _, v := range f.SOC {
		row = append(row, strconv.Itoa(v))
	}
	for _, v := range f.Vcell {
		row = append(row, bmschain.FormatFloat(v))
	}
	for _, v := range f.Temp {
		row = append(row, bmschain.FormatFloat(v))
	}
	for _, v := range f.Bal {
		row = append(row, strconv.Itoa(v))
	}
	for _, v := range []float64{
		f.CurrentA,
		f.PackVoltageV,
		f.VrefV,
		f.VUVThresholdV,
		f.VOVThresholdV,
		f.GPUTThresholdV,
		f.GPOTThresholdV,
	} {
		row = append(row, bmschain.FormatFloat(v))
	}

	faults := f.Faults
	if len(faults) > faultCount {
		faults = faults[:faultCount]
		truncated = true
	}
	for _, v := range faults {
		row = append(row, strconv.Itoa(v))
	}
	for i := len(faults); i < faultCount; i++ {
		row = append(row, "")
	}

	row = append(row, bmschain.FormatFloat(f.VTRefV))
	return row, truncated
}

// Writer 以原子方式写出 CSV: 先写同目录临时文件, Commit 时重命名为目标文件。
// Abort 删除临时文件, 目标文件保持不变。
type Writer struct {
	dest       string
	tmp        *os.File
	buf        *bufio.Writer
	csv        *csv.Writer
	faultCount int
	rows       int
	lastFlush  time.Time
	logger     *zap.Logger
}

// flushInterval 长时间采集时定期把缓冲写入临时文件, 进程崩溃后已写入的行仍可从临时文件找回
const flushInterval = time.Second

// Create 在 dest 所在目录创建临时文件并写入 BOM 与表头
func Create(dest string, faultColumns []string, logger *zap.Logger) (*Writer, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*.csv")
	if err != nil {
		return nil, err
	}

	w := &Writer{
		dest:       dest,
		tmp:        tmp,
		buf:        bufio.NewWriterSize(tmp, 64*1024),
		faultCount: len(faultColumns),
		lastFlush:  time.Now(),
		logger:     logger,
	}
	w.csv = csv.NewWriter(w.buf)

	if _, err := w.buf.Write(bom); err != nil {
		w.Abort()
		return nil, err
	}
	if err := w.csv.Write(Header(faultColumns)); err != nil {
		w.Abort()
		return nil, err
	}
	logger.Debug("CSV writer opened", zap.String("dest", dest), zap.String("tmp", tmp.Name()), zap.Int("fault_columns", len(faultColumns)))
	return w, nil
}

// WriteFrame 写入一帧, 返回故障值是否被截断
func (w *Writer) WriteFrame(index int, f *bmschain.Frame) (bool, error) {
	row, truncated := Row(index, f, w.faultCount)
	if err := w.csv.Write(row); err != nil {
		return truncated, err
	}
	w.rows++
	if now := time.Now(); now.Sub(w.lastFlush) >= flushInterval {
		w.lastFlush = now
		if err := w.flush(); err != nil {
			return truncated, err
		}
	}
	return truncated, nil
}

func (w *Writer) flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	return w.buf.Flush()
}

// Commit 刷新缓冲并把临时文件替换为目标文件
func (w *Writer) Commit() error {
	if err := w.flush(); err != nil {
		w.Abort()
		return err
	}
	if err := w.tmp.Sync(); err != nil {
		w.Abort()
		return err
	}
	tmpPath := w.tmp.Name()
	if err := w.tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, w.dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	w.logger.Debug("CSV committed", zap.String("dest", w.dest), zap.Int("rows", w.rows))
	return nil
}

// Abort 丢弃已写入内容
func (w *Writer) Abort() {
	tmpPath := w.tmp.Name()
	_ = w.tmp.Close()
	_ = os.Remove(tmpPath)
	w.logger.Debug("CSV aborted", zap.String("dest", w.dest), zap.Int("rows_discarded", w.rows))
}
