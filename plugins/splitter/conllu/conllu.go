package conllu

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"udfix/pkg/contract"
)

// DefaultCommentPrefix: 注释行前缀。
const DefaultCommentPrefix = "#"

// Options 为 CoNLL-U Splitter 的可选配置（最小必要）。
type Options struct {
	// CommentPrefix: 注释行前缀；为空时采用 "#"。
	CommentPrefix string `mapstructure:"comment_prefix"`
	// Forms: 需要标记为候选的融合拼写；为空时采用默认融合表。
	Forms []string `mapstructure:"forms"`
	// BufSize: 读缓冲大小（字节）；<=0 使用 64KiB。
	BufSize int `mapstructure:"buf_size"`
}

// Splitter 实现 CoNLL-U 逐句流式切分。
type Splitter struct {
	prefix      string
	forms       map[string]struct{}
	bufSize     int
	onMalformed func(*contract.MalformedRowError) error
}

var (
	_ contract.Splitter          = (*Splitter)(nil)
	_ contract.MalformedObserver = (*Splitter)(nil)
)

// New 创建 CoNLL-U Splitter。
func New(opts *Options) *Splitter {
	s := &Splitter{prefix: DefaultCommentPrefix, bufSize: 64 << 10}
	var forms []string
	if opts != nil {
		if opts.CommentPrefix != "" {
			s.prefix = opts.CommentPrefix
		}
		if opts.BufSize > 0 {
			s.bufSize = opts.BufSize
		}
		forms = opts.Forms
	}
	if len(forms) == 0 {
		for _, f := range contract.DefaultFusions() {
			forms = append(forms, f.Form)
		}
	}
	s.forms = make(map[string]struct{}, len(forms))
	for _, f := range forms {
		if f != "" {
			s.forms[f] = struct{}{}
		}
	}
	return s
}

// OnMalformed 注册畸形行回调；nil 表示仅记录行号。
func (s *Splitter) OnMalformed(fn func(*contract.MalformedRowError) error) { s.onMalformed = fn }

// Split 逐行扫描并按空行边界回调 Sentence。
// 末尾未以空行结束的句子在 EOF 时同样回调（Terminated=false）。
func (s *Splitter) Split(ctx context.Context, fileID contract.FileID, r io.Reader, yield func(contract.Sentence) error) error {
	br := bufio.NewReaderSize(r, s.bufSize)
	buf := newSentenceBuffer(fileID)
	lineNo := 0
	for {
		if err := ctxErr(ctx); err != nil {
			return err
		}
		line, eol, eof, err := readLine(br)
		if err != nil {
			return err
		}
		if eof {
			break
		}
		lineNo++
		buf.raw(line, eol)

		switch {
		case strings.TrimSpace(line) == "":
			buf.boundary(lineNo, line)
		case strings.HasPrefix(line, s.prefix):
			buf.comment(lineNo, line)
		default:
			tok := contract.ParseToken(lineNo, line)
			if !tok.Valid() {
				if err := s.reportMalformed(fileID, tok); err != nil {
					return err
				}
			}
			_, cand := s.forms[tok.Form()]
			buf.row(tok, cand)
		}

		if buf.state == flushOnBoundary {
			if err := yield(buf.flush(true)); err != nil {
				return err
			}
		}
	}
	if !buf.empty() {
		return yield(buf.flush(false))
	}
	return nil
}

func (s *Splitter) reportMalformed(fileID contract.FileID, tok contract.Token) error {
	if s.onMalformed == nil {
		return nil
	}
	return s.onMalformed(&contract.MalformedRowError{FileID: fileID, Line: tok.Line, Fields: len(tok.Fields)})
}

type bufState int

const (
	accumulating bufState = iota
	flushOnBoundary
)

// sentenceBuffer 累积当前句；遇到边界切换到 flushOnBoundary，flush 后回到 accumulating。
type sentenceBuffer struct {
	state  bufState
	fileID contract.FileID
	seq    int64
	cur    contract.Sentence
	src    strings.Builder
}

func newSentenceBuffer(fileID contract.FileID) *sentenceBuffer {
	b := &sentenceBuffer{fileID: fileID}
	b.reset()
	return b
}

func (b *sentenceBuffer) reset() {
	b.state = accumulating
	b.cur = contract.Sentence{FileID: b.fileID, Seq: b.seq}
	b.src.Reset()
}

// raw 累积源文本；首行决定本句行尾风格。
func (b *sentenceBuffer) raw(line, eol string) {
	if b.src.Len() == 0 && eol != "" {
		b.cur.EOL = eol
	}
	b.src.WriteString(line)
	b.src.WriteString(eol)
	b.cur.OpenEnd = eol == ""
}

func (b *sentenceBuffer) mark(line int) {
	if b.cur.Line == 0 {
		b.cur.Line = line
	}
}

// comment 注释总是先于本句的行输出（句中注释前移）。
func (b *sentenceBuffer) comment(line int, text string) {
	b.mark(line)
	b.cur.Comments = append(b.cur.Comments, text)
}

func (b *sentenceBuffer) row(tok contract.Token, candidate bool) {
	b.mark(tok.Line)
	if !tok.Valid() {
		b.cur.Malformed = append(b.cur.Malformed, tok.Line)
	}
	if candidate {
		b.cur.Candidates = append(b.cur.Candidates, len(b.cur.Tokens))
	}
	b.cur.Tokens = append(b.cur.Tokens, tok)
}

func (b *sentenceBuffer) boundary(line int, text string) {
	b.mark(line)
	b.cur.Boundary = text
	b.state = flushOnBoundary
}

func (b *sentenceBuffer) empty() bool {
	return len(b.cur.Comments) == 0 && len(b.cur.Tokens) == 0
}

func (b *sentenceBuffer) flush(terminated bool) contract.Sentence {
	out := b.cur
	out.Terminated = terminated
	out.Raw = b.src.String()
	b.seq++
	b.reset()
	return out
}

// readLine 读取一行，拆出行尾（"\n"、"\r\n" 或文件末尾的 ""）；
// 返回该行、行尾与是否已无更多输入。
func readLine(br *bufio.Reader) (string, string, bool, error) {
	s, err := br.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", "", false, err
		}
		if s == "" {
			return "", "", true, nil
		}
	}
	eol := ""
	if strings.HasSuffix(s, "\n") {
		eol = "\n"
		s = s[:len(s)-1]
		if strings.HasSuffix(s, "\r") {
			eol = "\r\n"
			s = s[:len(s)-1]
		}
	}
	return s, eol, false, nil
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
