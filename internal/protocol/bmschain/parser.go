package bmschain

import (
	"math"
	"strconv"
	"strings"
)

// Tokenize 将原始帧按分隔符切分, 去除首尾空白并丢弃空 token。
// 发送端可能在分隔符后插入空白, 帧内也可能残留 BOM。
func Tokenize(raw string) []string {
	raw = strings.ReplaceAll(raw, "\ufeff", "")
	parts := strings.Split(raw, Delimiter)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// ParseFrame 解析一帧原始文本 (不含结束符)
func ParseFrame(raw string) (*Frame, error) {
	return ParseTokens(Tokenize(raw))
}

// ParseTokens 按固定语法顺序解析 token 序列。
// 标签区分大小写且必须完全匹配; VTREF 数值之后的 token 被忽略。
func ParseTokens(tokens []string) (*Frame, error) {
	r := &tokenReader{tokens: tokens}
	f := &Frame{}
	var err error

	if f.TotalDevices, err = r.labeledInt(LabelTotalDevices); err != nil {
		return nil, err
	}
	if f.ChainID, err = r.labeledInt(LabelChain); err != nil {
		return nil, err
	}
	if f.DeviceID, err = r.labeledInt(LabelDevice); err != nil {
		return nil, err
	}

	if err = r.expect(LabelSOC); err != nil {
		return nil, err
	}
	if err = r.fixedInts(LabelSOC, f.SOC[:]); err != nil {
		return nil, err
	}
	if err = r.expect(LabelVcell); err != nil {
		return nil, err
	}
	if err = r.fixedFloats(LabelVcell, f.Vcell[:]); err != nil {
		return nil, err
	}
	if err = r.expect(LabelTemp); err != nil {
		return nil, err
	}
	if err = r.fixedFloats(LabelTemp, f.Temp[:]); err != nil {
		return nil, err
	}
	if err = r.expect(LabelBal); err != nil {
		return nil, err
	}
	if err = r.fixedInts(LabelBal, f.Bal[:]); err != nil {
		return nil, err
	}

	scalars := []struct {
		label string
		dst   *float64
	}{
		{LabelCurrent, &f.CurrentA},
		{LabelPackVoltage, &f.PackVoltageV},
		{LabelVref, &f.VrefV},
		{LabelVUV, &f.VUVThresholdV},
		{LabelVOV, &f.VOVThresholdV},
		{LabelGPUT, &f.GPUTThresholdV},
		{LabelGPOT, &f.GPOTThresholdV},
	}
	for _, s := range scalars {
		if *s.dst, err = r.labeledFloat(s.label); err != nil {
			return nil, err
		}
	}

	// 故障段长度不固定, 读取到 VTREF 为止
	if err = r.expect(LabelFaults); err != nil {
		return nil, err
	}
	f.Faults = []int{}
	for r.pos < len(r.tokens) && r.tokens[r.pos] != LabelVTRef {
		v, err := parseInt(r.tokens[r.pos], "FAULTS["+strconv.Itoa(len(f.Faults)+1)+"]", r.pos)
		if err != nil {
			return nil, err
		}
		f.Faults = append(f.Faults, v)
		r.pos++
	}

	if f.VTRefV, err = r.labeledFloat(LabelVTRef); err != nil {
		return nil, err
	}
	return f, nil
}

type tokenReader struct {
	tokens []string
	pos    int
}

func (r *tokenReader) expect(label string) error {
	if r.pos >= len(r.tokens) {
		return &FrameParseError{Kind: KindUnexpectedEnd, Label: label, Index: r.pos}
	}
	if r.tokens[r.pos] != label {
		return &FrameParseError{Kind: KindLabelMismatch, Label: label, Index: r.pos, Token: r.tokens[r.pos]}
	}
	r.pos++
	return nil
}

// value 返回标签后的单个数值 token
func (r *tokenReader) value(label string) (string, int, error) {
	if r.pos >= len(r.tokens) {
		return "", r.pos, &FrameParseError{Kind: KindUnexpectedEnd, Label: fieldName(label), Index: r.pos}
	}
	idx := r.pos
	r.pos++
	return r.tokens[idx], idx, nil
}

func (r *tokenReader) labeledInt(label string) (int, error) {
	if err := r.expect(label); err != nil {
		return 0, err
	}
	tok, idx, err := r.value(label)
	if err != nil {
		return 0, err
	}
	return parseInt(tok, fieldName(label), idx)
}

func (r *tokenReader) labeledFloat(label string) (float64, error) {
	if err := r.expect(label); err != nil {
		return 0, err
	}
	tok, idx, err := r.value(label)
	if err != nil {
		return 0, err
	}
	return parseFloat(tok, fieldName(label), idx)
}

// section 校验固定段是否完整: 剩余 token 不足或提前出现标签都视为截断
func (r *tokenReader) section(label string, want int) error {
	name := fieldName(label)
	got := 0
	for got < want && r.pos+got < len(r.tokens) && !IsLabel(r.tokens[r.pos+got]) {
		got++
	}
	if got < want {
		return &FrameParseError{Kind: KindTruncated, Label: name, Index: r.pos, Want: want, Got: got}
	}
	return nil
}

func (r *tokenReader) fixedInts(label string, dst []int) error {
	if err := r.section(label, len(dst)); err != nil {
		return err
	}
	name := fieldName(label)
	for i := range dst {
		v, err := parseInt(r.tokens[r.pos], name+"["+strconv.Itoa(i+1)+"]", r.pos)
		if err != nil {
			return err
		}
		dst[i] = v
		r.pos++
	}
	return nil
}

func (r *tokenReader) fixedFloats(label string, dst []float64) error {
	if err := r.section(label, len(dst)); err != nil {
		return err
	}
	name := fieldName(label)
	for i := range dst {
		v, err := parseFloat(r.tokens[r.pos], name+"["+strconv.Itoa(i+1)+"]", r.pos)
		if err != nil {
			return err
		}
		dst[i] = v
		r.pos++
	}
	return nil
}

// fieldName "Vcell:" -> "Vcell"
func fieldName(label string) string {
	return strings.TrimSuffix(label, ":")
}

// parseInt 接受整数字面量, 以及小数部分为 0 的浮点字面量 (如 "12.0")
func parseInt(token, field string, idx int) (int, error) {
	if v, err := strconv.Atoi(token); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) ||
		f >= 0x1p63 || f < -0x1p63 {
		return 0, &FrameParseError{Kind: KindInvalidNumber, Label: field, Index: idx, Token: token, Type: "integer"}
	}
	return int(f), nil
}

func parseFloat(token, field string, idx int) (float64, error) {
	f, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, &FrameParseError{Kind: KindInvalidNumber, Label: field, Index: idx, Token: token, Type: "float"}
	}
	return f, nil
}
