package bmschain

import (
	"errors"
	"fmt"
)

// ErrorKind 区分帧解析失败的原因
type ErrorKind int

const (
	// KindLabelMismatch 期望的标签与实际 token 不符
	KindLabelMismatch ErrorKind = iota + 1
	// KindUnexpectedEnd token 在期望标签或数值之前耗尽
	KindUnexpectedEnd
	// KindTruncated 固定长度段的数值不足
	KindTruncated
	// KindInvalidNumber 数值 token 无法按字段类型解析
	KindInvalidNumber
)

func (k ErrorKind) String() string {
	switch k {
	case KindLabelMismatch:
		return "label mismatch"
	case KindUnexpectedEnd:
		return "unexpected end"
	case KindTruncated:
		return "truncated section"
	case KindInvalidNumber:
		return "invalid number"
	default:
		return "unknown"
	}
}

// FrameParseError 描述单帧解析失败的位置与原始 token
type FrameParseError struct {
	Kind  ErrorKind
	Label string // 期望的标签, 或字段名 (如 "SOC[3]")
	Index int    // token 下标
	Token string // 出错的原始 token
	Want  int    // 固定段要求的数值个数 (KindTruncated)
	Got   int    // 固定段实际可用的数值个数 (KindTruncated)
	Type  string // "integer" / "float" (KindInvalidNumber)
}

func (e *FrameParseError) Error() string {
	switch e.Kind {
	case KindLabelMismatch:
		return fmt.Sprintf("expected label %q at token %d, found %q", e.Label, e.Index, e.Token)
	case KindUnexpectedEnd:
		return fmt.Sprintf("expected %q at token %d, but frame ended early", e.Label, e.Index)
	case KindTruncated:
		return fmt.Sprintf("section %q is truncated at token %d: expected %d values, found %d", e.Label, e.Index, e.Want, e.Got)
	case KindInvalidNumber:
		return fmt.Sprintf("%s is not %s at token %d: %q", e.Label, article(e.Type), e.Index, e.Token)
	default:
		return fmt.Sprintf("frame parse error at token %d", e.Index)
	}
}

func article(typ string) string {
	if typ == "integer" {
		return "an integer"
	}
	return "a " + typ
}

// KindOf 返回 err 链中 FrameParseError 的类型, 非解析错误返回 0
func KindOf(err error) ErrorKind {
	var pe *FrameParseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
