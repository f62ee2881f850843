package fusion

import (
	"fmt"
	"strconv"
	"strings"

	"udfix/pkg/contract"
)

// Split 拆分缺陷 token 并重编号，返回新的 token 序列（长度 +1）。
//
// 设 d = def.Index：
//  1. ID 为 d 的行 form 改为连词部分，其余字段不变；
//  2. 在其后插入合成限定词行 [d+1, 限定词, _, UPOS, XPOS, _, d+2, deprel, _, _]；
//     紧跟其后的空节点 d.k 仍属词 d，合成行插在这些空节点之后；
//  3. 其余 ID > d 的行 ID+1（多词区间、空节点的整数部分同规则）；
//  4. 其余 head > d 的行 head+1；根 0 与 "_" 不动。
//     DEPS 中 h:rel 的 h 同规则位移，无法解析的项原样保留。
//     被改写的行保留原 head 与 DEPS，合成行的 head 已是位移后编号。
//
// 末位缺陷的合成 head 指向原句末之后一位，保持该算术不做修正。
// 入参不被修改；前置条件不满足返回 *contract.MalformedInputError。
func Split(tokens []contract.Token, def contract.Defect) ([]contract.Token, error) {
	d := def.Index
	if d < 1 {
		return nil, &contract.MalformedInputError{Index: d, Reason: "index must be >= 1"}
	}
	at := -1
	for i, t := range tokens {
		if !t.Valid() {
			return nil, &contract.MalformedInputError{Index: d, Reason: fmt.Sprintf("row %d has %d fields", i+1, len(t.Fields))}
		}
		if id, ok := t.ID(); ok && id == d {
			if at >= 0 {
				return nil, &contract.MalformedInputError{Index: d, Reason: "duplicate token id"}
			}
			at = i
		}
	}
	if at < 0 {
		return nil, &contract.MalformedInputError{Index: d, Reason: "no token with this id"}
	}
	if got := tokens[at].Form(); got != def.Fusion.Form || def.Fusion.Form == "" {
		return nil, &contract.MalformedInputError{Index: d, Reason: fmt.Sprintf("form %q is not fused spelling %q", got, def.Fusion.Form)}
	}

	ins := at + 1
	for ins < len(tokens) && emptyNodeOf(tokens[ins].IDText(), d) {
		ins++
	}

	out := make([]contract.Token, 0, len(tokens)+1)
	for i, t := range tokens {
		if i == ins {
			out = append(out, determiner(d, def.Fusion))
		}
		nt := t.Clone()
		id, err := shiftID(t.IDText(), d)
		if err != nil {
			return nil, &contract.MalformedInputError{Index: d, Reason: err.Error()}
		}
		nt.Fields[contract.ColID] = id
		if i == at {
			nt.Fields[contract.ColForm] = def.Fusion.Conjunction
			out = append(out, nt)
			continue
		}
		head, err := shiftHead(t.HeadText(), d)
		if err != nil {
			return nil, &contract.MalformedInputError{Index: d, Reason: fmt.Sprintf("token %s: %v", t.IDText(), err)}
		}
		nt.Fields[contract.ColHead] = head
		nt.Fields[contract.ColDeps] = shiftDeps(t.Fields[contract.ColDeps], d)
		out = append(out, nt)
	}
	if ins == len(tokens) {
		out = append(out, determiner(d, def.Fusion))
	}
	return out, nil
}

// emptyNodeOf 报告 id 是否为词 d 之后的空节点 d.k。
func emptyNodeOf(id string, d int) bool {
	a, _, ok := strings.Cut(id, ".")
	if !ok {
		return false
	}
	n, err := strconv.Atoi(a)
	return err == nil && n == d
}

// determiner 构造插入在位置 d+1 的合成限定词行。
func determiner(d int, f contract.Fusion) contract.Token {
	f = f.WithDefaults()
	p := contract.Placeholder
	return contract.Token{Fields: []string{
		strconv.Itoa(d + 1),
		f.Determiner,
		p,
		f.UPOS,
		f.XPOS,
		p,
		strconv.Itoa(d + 2),
		f.DepRel,
		p,
		p,
	}}
}

// shiftID 位移 ID 列：n、a-b（多词区间）、a.b（空节点，仅整数部分）。
func shiftID(s string, d int) (string, error) {
	if a, b, ok := strings.Cut(s, "-"); ok {
		x, err := shiftInt(a, d)
		if err != nil {
			return "", fmt.Errorf("bad range id %q", s)
		}
		y, err := shiftInt(b, d)
		if err != nil {
			return "", fmt.Errorf("bad range id %q", s)
		}
		return x + "-" + y, nil
	}
	if a, b, ok := strings.Cut(s, "."); ok {
		x, err := shiftInt(a, d)
		if err != nil {
			return "", fmt.Errorf("bad empty node id %q", s)
		}
		if _, err := strconv.Atoi(b); err != nil {
			return "", fmt.Errorf("bad empty node id %q", s)
		}
		return x + "." + b, nil
	}
	x, err := shiftInt(s, d)
	if err != nil {
		return "", fmt.Errorf("bad id %q", s)
	}
	return x, nil
}

func shiftHead(s string, d int) (string, error) {
	if s == contract.Placeholder {
		return s, nil
	}
	x, err := shiftInt(s, d)
	if err != nil {
		return "", fmt.Errorf("bad head %q", s)
	}
	return x, nil
}

// shiftDeps 位移增强依存列 "h:rel|h:rel" 中的 h（整数或空节点 a.b）。
func shiftDeps(s string, d int) string {
	if s == contract.Placeholder || s == "" {
		return s
	}
	parts := strings.Split(s, "|")
	for i, p := range parts {
		h, rel, ok := strings.Cut(p, ":")
		if !ok {
			continue
		}
		nh, err := shiftID(h, d)
		if err != nil || strings.Contains(h, "-") {
			continue
		}
		parts[i] = nh + ":" + rel
	}
	return strings.Join(parts, "|")
}

// shiftInt: n > d 时 +1，否则原样返回（保留原文本）。
func shiftInt(s string, d int) (string, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return "", fmt.Errorf("not a non-negative integer: %q", s)
	}
	if n > d {
		return strconv.Itoa(n + 1), nil
	}
	return s, nil
}
