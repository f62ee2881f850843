package fusion

import (
	"fmt"
	"strings"

	"udfix/pkg/contract"
)

// Table: 融合拼写 → 拆分规则（按 Form 精确匹配，大小写敏感）。
type Table map[string]contract.Fusion

// NewTable 由配置构建查找表；空输入回落到 DefaultFusions。
// 拒绝空 Form、缺失拆分部件与重复 Form。
func NewTable(fs []contract.Fusion) (Table, error) {
	if len(fs) == 0 {
		fs = contract.DefaultFusions()
	}
	t := make(Table, len(fs))
	for i, f := range fs {
		f = f.WithDefaults()
		if strings.TrimSpace(f.Form) == "" {
			return nil, fmt.Errorf("fusions[%d]: form is required", i)
		}
		if f.Conjunction == "" || f.Determiner == "" {
			return nil, fmt.Errorf("fusions[%d] %q: conjunction and determiner are required", i, f.Form)
		}
		if strings.ContainsAny(f.Form+f.Conjunction+f.Determiner+f.UPOS+f.XPOS+f.DepRel, "\t\r\n") {
			return nil, fmt.Errorf("fusions[%d] %q: fields must not contain tabs or newlines", i, f.Form)
		}
		if _, dup := t[f.Form]; dup {
			return nil, fmt.Errorf("fusions[%d]: duplicate form %q", i, f.Form)
		}
		t[f.Form] = f
	}
	return t, nil
}

// Lookup 返回 form 对应的融合规则。
func (t Table) Lookup(form string) (contract.Fusion, bool) {
	f, ok := t[form]
	return f, ok
}

// Forms 返回全部融合拼写（供 Splitter 标记候选）。
func (t Table) Forms() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	return out
}

// Detect 在句中定位唯一的融合 token。
//   - 无命中且未被标记：ok=false, err=nil；
//   - 命中多于一处，或 Splitter 已标记但扫描未命中：*UnsupportedDefectError。
//
// 仅统计字段完整且 ID 为普通整数的行；多词区间与空节点行不参与。
func Detect(s contract.Sentence, t Table) (contract.Defect, bool, error) {
	var (
		hits []contract.Defect
		ids  []string
	)
	for _, tok := range s.Tokens {
		if !tok.Valid() {
			continue
		}
		f, ok := t.Lookup(tok.Form())
		if !ok {
			continue
		}
		id, ok := tok.ID()
		if !ok {
			continue
		}
		hits = append(hits, contract.Defect{Index: id, Fusion: f})
		ids = append(ids, tok.IDText())
	}
	switch {
	case len(hits) == 1:
		return hits[0], true, nil
	case len(hits) > 1:
		return contract.Defect{}, false, &contract.UnsupportedDefectError{
			FileID: s.FileID, Seq: s.Seq, Line: s.Line, Indices: ids,
			Reason: "multiple fused tokens in one sentence",
		}
	case len(s.Candidates) > 0:
		flagged := make([]string, 0, len(s.Candidates))
		for _, i := range s.Candidates {
			if i >= 0 && i < len(s.Tokens) {
				flagged = append(flagged, s.Tokens[i].IDText())
			}
		}
		return contract.Defect{}, false, &contract.UnsupportedDefectError{
			FileID: s.FileID, Seq: s.Seq, Line: s.Line, Indices: flagged,
			Reason: "flagged fused token not found among word rows",
		}
	default:
		return contract.Defect{}, false, nil
	}
}
