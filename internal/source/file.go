package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"bmschain-logger/internal/protocol/bmschain"
	"bmschain-logger/internal/usecase"
)

const DefaultChunkBytes = 64 * 1024

// dropInvalid 删除无法解码的字节 (解码器输出的 U+FFFD 以及非法 UTF-8 序列)
var dropInvalid = runes.Remove(runes.Predicate(func(r rune) bool { return r == utf8.RuneError }))

// FileSource 分块读取串口日志文件并切分出帧
type FileSource struct {
	f       *os.File
	r       io.Reader
	scanner *bmschain.FrameScanner
	chunk   []byte
	pending []string
	eof     bool
	logger  *zap.Logger
}

var _ usecase.FrameSource = (*FileSource)(nil)

// OpenFile 打开日志文件。encoding 为 WHATWG 编码名 (utf-8, shift_jis, gbk ...)。
func OpenFile(path, encoding string, chunkBytes int, logger *zap.Logger) (*FileSource, error) {
	var r io.Reader
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", usecase.ErrSourceUnavailable, err)
	}
	r = transform.NewReader(f, dropInvalid)

	enc := strings.ToLower(strings.TrimSpace(encoding))
	if enc != "" && enc != "utf-8" && enc != "utf8" {
		e, err := htmlindex.Get(enc)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("unsupported input encoding %q: %w", encoding, err)
		}
		r = transform.NewReader(f, transform.Chain(e.NewDecoder(), dropInvalid))
	}

	s := NewReaderSource(r, chunkBytes, logger)
	s.f = f
	logger.Info("Reading frames from file", zap.String("path", path), zap.String("encoding", encoding))
	return s, nil
}

// NewReaderSource 从任意 io.Reader 读取帧
func NewReaderSource(r io.Reader, chunkBytes int, logger *zap.Logger) *FileSource {
	if chunkBytes <= 0 {
		chunkBytes = DefaultChunkBytes
	}
	return &FileSource{
		r:       r,
		scanner: bmschain.NewFrameScanner(0),
		chunk:   make([]byte, chunkBytes),
		logger:  logger,
	}
}

func (s *FileSource) Next(ctx context.Context) (string, error) {
	for len(s.pending) == 0 {
		if s.eof {
			return "", io.EOF
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := s.r.Read(s.chunk)
		if n > 0 {
			s.pending = append(s.pending, s.scanner.Feed(s.chunk[:n])...)
		}
		if err == io.EOF {
			s.eof = true
			if p := s.scanner.Pending(); p > 0 {
				s.logger.Debug("Discarding trailing data without end marker", zap.Int("bytes", p))
			}
			continue
		}
		if err != nil {
			return "", err
		}
	}

	raw := s.pending[0]
	s.pending = s.pending[1:]
	return raw, nil
}

func (s *FileSource) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
