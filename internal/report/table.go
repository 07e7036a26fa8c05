package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// RequiredColumns CSV 必须包含的列
var RequiredColumns = []string{"frame_index", "chain_id", "device_id", "current_a"}

var (
	ErrMissingColumns = errors.New("required columns are missing")
	ErrNoVcellColumns = errors.New("no voltage columns found (expected: vcellN_v)")
	ErrNoRows         = errors.New("no rows matched the input/filter conditions")
)

var vcellRe = regexp.MustCompile(`^vcell(\d+)_v$`)

// Filter 可选的链/设备过滤, nil 表示不过滤
type Filter struct {
	ChainID  *int
	DeviceID *int
}

// Sample 图表用的一行数据, 空单元格为 nil
type Sample struct {
	FrameIndex *int
	ChainID    int
	DeviceID   int
	CurrentA   *float64
	Vcells     []*float64
}

type Table struct {
	Headers      []string
	VcellColumns []string // 按电芯序号排序
	Samples      []Sample
}

// LoadTable 读取 bms2csv 生成的 CSV (容忍 BOM)
func LoadTable(path string, filter Filter) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(f, filter)
}

func ReadTable(r io.Reader, filter Filter) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	headers, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("CSV header is missing")
	}
	if err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	pos := make(map[string]int, len(headers))
	for i, h := range headers {
		pos[h] = i
	}
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := pos[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	t := &Table{Headers: headers, VcellColumns: SortVcellColumns(headers)}
	if len(t.VcellColumns) == 0 {
		return nil, ErrNoVcellColumns
	}

	get := func(rec []string, col string) string {
		if i := pos[col]; i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		// 标识列不是整数的行直接跳过
		chainID, err1 := strconv.Atoi(get(rec, "chain_id"))
		deviceID, err2 := strconv.Atoi(get(rec, "device_id"))
		if err1 != nil || err2 != nil {
			continue
		}
		if filter.ChainID != nil && chainID != *filter.ChainID {
			continue
		}
		if filter.DeviceID != nil && deviceID != *filter.DeviceID {
			continue
		}

		s := Sample{ChainID: chainID, DeviceID: deviceID}
		if s.FrameIndex, err = optionalInt(get(rec, "frame_index")); err != nil {
			return nil, fmt.Errorf("line %d: frame_index: %w", line, err)
		}
		if s.CurrentA, err = optionalFloat(get(rec, "current_a")); err != nil {
			return nil, fmt.Errorf("line %d: current_a: %w", line, err)
		}
		s.Vcells = make([]*float64, len(t.VcellColumns))
		for i, col := range t.VcellColumns {
			if s.Vcells[i], err = optionalFloat(get(rec, col)); err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, col, err)
			}
		}
		t.Samples = append(t.Samples, s)
	}

	if len(t.Samples) == 0 {
		return nil, ErrNoRows
	}
	return t, nil
}

// SortVcellColumns 选出 vcellN_v 列并按 N 排序
func SortVcellColumns(headers []string) []string {
	var cols []string
	for _, h := range headers {
		if strings.HasPrefix(h, "vcell") && strings.HasSuffix(h, "_v") {
			cols = append(cols, h)
		}
	}
	key := func(name string) int {
		if m := vcellRe.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[1])
			return n
		}
		return 9999
	}
	sort.SliceStable(cols, func(i, j int) bool { return key(cols[i]) < key(cols[j]) })
	return cols
}

func optionalInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
