package stream

import (
	"context"
	"io"
	"os"
	"sync"

	"udfix/pkg/contract"
)

// Options: 预留占位。
type Options struct{}

// Stream 将全部产物按调用顺序写入同一 io.Writer（默认 STDOUT）。
// 多个产物串行写出，互不交错。
type Stream struct {
	mu  sync.Mutex
	out io.Writer
}

var _ contract.Writer = (*Stream)(nil)

// NewStdout 创建写入 STDOUT 的 Writer。
func NewStdout(opts *Options) *Stream {
	_ = opts
	return &Stream{out: os.Stdout}
}

// NewDiscard 创建丢弃全部内容的 Writer（dry-run）。
func NewDiscard(opts *Options) *Stream {
	_ = opts
	return &Stream{out: io.Discard}
}

// NewWriter 包装任意 io.Writer。
func NewWriter(w io.Writer) *Stream { return &Stream{out: w} }

// Write 流式拷贝 r 至底层输出；ctx 取消时尽快返回。
func (s *Stream) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	_ = id
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := s.out.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
