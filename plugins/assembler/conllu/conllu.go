package conllu

import (
	"context"
	"io"
	"strings"

	"udfix/pkg/contract"
)

// Options: 预留占位，渲染无需配置。
type Options struct{}

type assembler struct{}

var _ contract.Assembler = (*assembler)(nil)

// New 创建 CoNLL-U 装配器（无状态）。
func New(opts *Options) contract.Assembler {
	_ = opts
	return &assembler{}
}

// Assemble 按 Seq 严格升序渲染句子：注释、行（制表符拼接）、
// 以及 Terminated 时的空行边界。
// 发现 FileID 混入、逆序或重复即返回 ErrSeqInvalid。
func (a *assembler) Assemble(ctx context.Context, fileID contract.FileID, sentences []contract.Sentence) (io.Reader, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if len(sentences) == 0 {
		return strings.NewReader(""), nil
	}
	for i, s := range sentences {
		if s.FileID != fileID || s.Seq < 0 {
			return nil, contract.ErrSeqInvalid
		}
		if i > 0 && !(s.Seq > sentences[i-1].Seq) {
			return nil, contract.ErrSeqInvalid
		}
	}
	rs := make([]io.Reader, 0, len(sentences))
	for _, s := range sentences {
		rs = append(rs, strings.NewReader(Render(s)))
	}
	return io.MultiReader(rs...), nil
}

// Render 将单句渲染为文本。
// 有 Raw 时原样返回；否则逐行以 EOL 结尾，OpenEnd 时末行不加行尾。
func Render(s contract.Sentence) string {
	if s.Raw != "" {
		return s.Raw
	}
	eol := s.EOL
	if eol == "" {
		eol = "\n"
	}
	lines := make([]string, 0, len(s.Comments)+len(s.Tokens)+1)
	lines = append(lines, s.Comments...)
	for _, t := range s.Tokens {
		lines = append(lines, t.String())
	}
	if s.Terminated {
		lines = append(lines, s.Boundary)
	}
	if len(lines) == 0 {
		return ""
	}
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString(eol)
	}
	out := b.String()
	if s.OpenEnd {
		out = strings.TrimSuffix(out, eol)
	}
	return out
}
