package fusion

import (
	"context"
	"strconv"

	"udfix/pkg/contract"
)

// Options 为融合纠正器的可选配置。
type Options struct {
	// Fusions: 融合拼写表；为空时使用 ea→e+a、eo→e+o。
	Fusions []contract.Fusion `mapstructure:"fusions"`
}

// Corrector 实现 contract.Corrector：检测 + 拆分，纯计算。
type Corrector struct {
	table Table
}

var _ contract.Corrector = (*Corrector)(nil)

// New 创建纠正器；融合表非法时返回错误。
func New(opts *Options) (*Corrector, error) {
	var fs []contract.Fusion
	if opts != nil {
		fs = opts.Fusions
	}
	t, err := NewTable(fs)
	if err != nil {
		return nil, err
	}
	return &Corrector{table: t}, nil
}

// Table 返回生效的融合表。
func (c *Corrector) Table() Table { return c.table }

// Correct 对单句执行纠正，不修改入参。
func (c *Corrector) Correct(ctx context.Context, s contract.Sentence) (contract.Sentence, contract.Outcome, error) {
	select {
	case <-ctx.Done():
		return s, contract.Skipped, ctx.Err()
	default:
	}
	def, ok, err := Detect(s, c.table)
	if err != nil {
		return s, contract.Skipped, err
	}
	if !ok {
		return s, contract.Unchanged, nil
	}
	// 含畸形行时无法可靠重编号
	if len(s.Malformed) > 0 {
		return s, contract.Skipped, &contract.UnsupportedDefectError{
			FileID: s.FileID, Seq: s.Seq, Line: s.Line,
			Indices: []string{strconv.Itoa(def.Index)},
			Reason:  "sentence contains malformed rows",
		}
	}
	toks, err := Split(s.Tokens, def)
	if err != nil {
		return s, contract.Skipped, err
	}
	out := s.Clone()
	out.Tokens = toks
	out.Candidates = nil
	out.Raw = ""
	return out, contract.Corrected, nil
}
