// Package report 输出逐句纠正报告（JSONL），每行一条记录，附文本补丁。
package report

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/sergi/go-diff/diffmatchpatch"

	"udfix/pkg/contract"
	"udfix/plugins/assembler/conllu"
)

// Ext: 报告旁路文件扩展名。
const Ext = ".fixes.jsonl"

// Record 为单句报告。
type Record struct {
	FileID  string `json:"file_id"`
	Seq     int64  `json:"seq"`
	Line    int    `json:"line"`
	Outcome string `json:"outcome"`
	// Tokens: 命中融合拼写的 token ID（原样文本）。
	Tokens []string `json:"tokens,omitempty"`
	Forms  []string `json:"forms,omitempty"`
	Before int      `json:"rows_before"`
	After  int      `json:"rows_after"`
	Code   string   `json:"code,omitempty"`
	Reason string   `json:"reason,omitempty"`
	// Patch: diff-match-patch 文本补丁（原句 → 纠正句）。
	Patch string `json:"patch,omitempty"`
}

// Build 由原句与结果句构造记录；err 非 nil 时记录跳过原因。
func Build(orig, out contract.Sentence, oc contract.Outcome, code string, err error) Record {
	r := Record{
		FileID:  string(orig.FileID),
		Seq:     orig.Seq,
		Line:    orig.Line,
		Outcome: oc.String(),
		Before:  len(orig.Tokens),
		After:   len(out.Tokens),
		Code:    code,
	}
	for _, i := range orig.Candidates {
		if i >= 0 && i < len(orig.Tokens) {
			r.Tokens = append(r.Tokens, orig.Tokens[i].IDText())
			r.Forms = append(r.Forms, orig.Tokens[i].Form())
		}
	}
	if err != nil {
		r.Reason = reason(err)
	}
	if oc == contract.Corrected {
		r.Patch = Patch(conllu.Render(orig), conllu.Render(out))
	}
	return r
}

func reason(err error) string {
	var ud *contract.UnsupportedDefectError
	if errors.As(err, &ud) {
		return ud.Reason
	}
	var mi *contract.MalformedInputError
	if errors.As(err, &mi) {
		return "defect index " + strconv.Itoa(mi.Index) + ": " + mi.Reason
	}
	return err.Error()
}

// Patch 按行比较两段文本并返回补丁文本。
func Patch(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	return dmp.PatchToText(dmp.PatchMake(before, diffs))
}

// Apply 将补丁应用于原文；任一片段失败返回 false。
func Apply(before, patch string) (string, bool) {
	dmp := diffmatchpatch.New()
	ps, err := dmp.PatchFromText(patch)
	if err != nil {
		return "", false
	}
	out, applied := dmp.PatchApply(ps, before)
	for _, ok := range applied {
		if !ok {
			return out, false
		}
	}
	return out, true
}

// Encoder 逐行写出记录（不转义 HTML）。
type Encoder struct {
	enc *json.Encoder
	n   int
}

// NewEncoder 包装 w。
func NewEncoder(w io.Writer) *Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Encoder{enc: enc}
}

// Encode 写出一条记录。
func (e *Encoder) Encode(r Record) error {
	if err := e.enc.Encode(&r); err != nil {
		return err
	}
	e.n++
	return nil
}

// Count 返回已写出的记录数。
func (e *Encoder) Count() int { return e.n }
