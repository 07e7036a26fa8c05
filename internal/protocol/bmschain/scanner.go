package bmschain

import (
	"bytes"
	"strings"
)

var endMarker = []byte(EndMarker)

// FrameScanner 增量切分 ENDData 结束的帧。
// 数据可以任意分块到达; 结束符之后的残余数据保留到下次 Feed。
// 文件回放、串口、TCP 三种来源共用同一实现。
type FrameScanner struct {
	buf     []byte
	cursor  int // buf 中已确认不含结束符的前缀长度
	maxSize int
	dropped int
}

// NewFrameScanner 创建扫描器。
// maxSize 限制未出现结束符时的缓冲大小以防止垃圾数据导致的 OOM, 0 表示不限制。
func NewFrameScanner(maxSize int) *FrameScanner {
	return &FrameScanner{
		buf:     make([]byte, 0, 4096),
		maxSize: maxSize,
	}
}

// Feed 追加一段数据并返回其中所有完整帧 (已去除首尾空白, 空帧被丢弃)。
// CR/LF 在追加前被剔除, 因此跨行的结束符也能被识别。
func (s *FrameScanner) Feed(chunk []byte) []string {
	for _, b := range chunk {
		if b == '\r' || b == '\n' {
			continue
		}
		s.buf = append(s.buf, b)
	}

	var frames []string
	start := 0
	for {
		idx := bytes.Index(s.buf[s.cursor:], endMarker)
		if idx < 0 {
			break
		}
		end := s.cursor + idx
		if raw := strings.TrimSpace(string(s.buf[start:end])); raw != "" {
			frames = append(frames, raw)
		}
		start = end + len(endMarker)
		s.cursor = start
	}

	// 压缩缓冲区, 只保留未完成的部分
	if start > 0 {
		n := copy(s.buf, s.buf[start:])
		s.buf = s.buf[:n]
		s.cursor = 0
	}

	// 下次从可能包含半个结束符的位置继续搜索
	if keep := len(s.buf) - (len(endMarker) - 1); keep > s.cursor {
		s.cursor = keep
	}

	if s.maxSize > 0 && len(s.buf) > s.maxSize {
		s.dropped += len(s.buf)
		s.buf = s.buf[:0]
		s.cursor = 0
	}
	return frames
}

// Pending 返回尚未形成完整帧的缓冲字节数
func (s *FrameScanner) Pending() int {
	return len(s.buf)
}

// Dropped 返回因超过 maxSize 而丢弃的字节总数
func (s *FrameScanner) Dropped() int {
	return s.dropped
}
