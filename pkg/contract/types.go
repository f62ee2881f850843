package contract

import (
	"strconv"
	"strings"
)

// FileID: 逻辑文档ID（通常为路径，需规范化，跨平台一致）。
type FileID string

// NumFields: CoNLL-U 行的固定列数。
const NumFields = 10

// 列下标（0 起），顺序与 CoNLL-U 一致。
const (
	ColID = iota
	ColForm
	ColLemma
	ColUPOS
	ColXPOS
	ColFeats
	ColHead
	ColDepRel
	ColDeps
	ColMisc
)

// Placeholder: CoNLL-U 的空值占位。
const Placeholder = "_"

// RootHead: head 列中表示句法根的哨兵值，永不参与位移。
const RootHead = 0

// Token: 单行记录。Fields 为按制表符切分的原样字段；
// 渲染时直接 Join，未改动的行逐字节保持不变。
// 字段数 != NumFields 的行为畸形行，仅透传不参与计算。
type Token struct {
	Line   int // 源文件行号（1 起）；合成行为 0
	Fields []string
}

// ParseToken 按制表符切分一行（不做任何清洗）。
func ParseToken(line int, text string) Token {
	return Token{Line: line, Fields: strings.Split(text, "\t")}
}

// Valid 报告字段数是否恰为 NumFields。
func (t Token) Valid() bool { return len(t.Fields) == NumFields }

// Form 返回表层形式；畸形行且缺列时为空串。
func (t Token) Form() string { return t.field(ColForm) }

// IDText 返回原样 ID 列。
func (t Token) IDText() string { return t.field(ColID) }

// HeadText 返回原样 HEAD 列。
func (t Token) HeadText() string { return t.field(ColHead) }

// ID 解析普通整数 ID；多词区间（3-4）与空节点（3.1）返回 ok=false。
func (t Token) ID() (int, bool) {
	n, err := strconv.Atoi(t.IDText())
	if err != nil {
		return 0, false
	}
	return n, true
}

// Head 解析整数 head；"_" 或非法值返回 ok=false。
func (t Token) Head() (int, bool) {
	n, err := strconv.Atoi(t.HeadText())
	if err != nil {
		return 0, false
	}
	return n, true
}

// String 以制表符拼接字段（不含换行）。
func (t Token) String() string { return strings.Join(t.Fields, "\t") }

// Clone 深拷贝字段切片。
func (t Token) Clone() Token {
	out := Token{Line: t.Line, Fields: make([]string, len(t.Fields))}
	copy(out.Fields, t.Fields)
	return out
}

func (t Token) field(i int) string {
	if i < len(t.Fields) {
		return t.Fields[i]
	}
	return ""
}

// Sentence: 两个空行边界之间的全部内容。
// 约束：
//   - Seq 在同一 FileID 内自 0 严格递增；
//   - Raw 非空时渲染原样输出 Raw，未改动的句逐字节不变；
//   - Raw 为空时按结构渲染：Comments 先于 Tokens，行尾取 EOL；
//   - Terminated 表示该句由空行结束（文件末尾可能缺失）。
type Sentence struct {
	FileID     FileID
	Seq        int64
	Line       int // 句首行号
	Comments   []string
	Tokens     []Token
	Terminated bool
	// Raw: 源文本原样（含行尾与空行边界）；改写句子的一方负责清空。
	Raw string
	// EOL: 首行的行尾（"\n" 或 "\r\n"）；为空按 "\n"。
	EOL string
	// Boundary: 结束本句的空行原文（不含行尾，可能含空白）。
	Boundary string
	// OpenEnd: 末行缺少行尾（仅出现在文件最后一句）。
	OpenEnd bool
	// Malformed: 畸形行的源行号（字段数 != NumFields）。
	Malformed []int
	// Candidates: 表层形式命中已知融合拼写的 Tokens 下标（0 起）。
	Candidates []int
}

// Clone 深拷贝句子，供纠正器产出新句而不改动入参。
func (s Sentence) Clone() Sentence {
	out := s
	out.Comments = append([]string(nil), s.Comments...)
	out.Malformed = append([]int(nil), s.Malformed...)
	out.Candidates = append([]int(nil), s.Candidates...)
	out.Tokens = make([]Token, len(s.Tokens))
	for i, t := range s.Tokens {
		out.Tokens[i] = t.Clone()
	}
	return out
}

// Fusion: 一种融合拼写及其拆分结果。
// 例：Form="ea" → Conjunction="e" + Determiner="a"。
type Fusion struct {
	Form        string `mapstructure:"form" yaml:"form"`
	Conjunction string `mapstructure:"conjunction" yaml:"conjunction"`
	Determiner  string `mapstructure:"determiner" yaml:"determiner"`
	UPOS        string `mapstructure:"upos" yaml:"upos,omitempty"`
	XPOS        string `mapstructure:"xpos" yaml:"xpos,omitempty"`
	DepRel      string `mapstructure:"deprel" yaml:"deprel,omitempty"`
}

// 合成限定词行的默认标注。
const (
	DefaultDetTag    = "DET"
	DefaultDetDepRel = "det"
)

// WithDefaults 补齐空的标注字段。
func (f Fusion) WithDefaults() Fusion {
	if f.UPOS == "" {
		f.UPOS = DefaultDetTag
	}
	if f.XPOS == "" {
		f.XPOS = DefaultDetTag
	}
	if f.DepRel == "" {
		f.DepRel = DefaultDetDepRel
	}
	return f
}

// DefaultFusions 返回葡语语料中已知的两种融合拼写。
func DefaultFusions() []Fusion {
	return []Fusion{
		{Form: "ea", Conjunction: "e", Determiner: "a", UPOS: DefaultDetTag, XPOS: DefaultDetTag, DepRel: DefaultDetDepRel},
		{Form: "eo", Conjunction: "e", Determiner: "o", UPOS: DefaultDetTag, XPOS: DefaultDetTag, DepRel: DefaultDetDepRel},
	}
}

// Defect: 缺陷描述符（句内 1 起的 token 索引 + 命中的融合拼写）。
type Defect struct {
	Index  int
	Fusion Fusion
}

// Outcome: 单句纠正结果分类。
type Outcome int

const (
	// Unchanged: 无缺陷，原样输出。
	Unchanged Outcome = iota
	// Corrected: 已拆分并重编号。
	Corrected
	// Skipped: 存在缺陷但前置条件不满足，原样输出并告警。
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Corrected:
		return "corrected"
	case Skipped:
		return "skipped"
	default:
		return "unchanged"
	}
}
