package contract

import (
	"errors"
	"fmt"
)

// 最小错误分类（哨兵），上层以 errors.Is 判定。
var (
	// ErrMalformedRow: 行字段数不为 NumFields。
	ErrMalformedRow = errors.New("malformed row")
	// ErrUnsupportedDefect: 缺陷前置条件不成立（同句多处融合、标记但未找到）。
	ErrUnsupportedDefect = errors.New("unsupported defect")
	// ErrMalformedInput: 纠正器入参违反前置条件。
	ErrMalformedInput = errors.New("malformed input")
	// ErrSeqInvalid: 句序违规（跨文件混入、逆序、重复）。
	ErrSeqInvalid = errors.New("sequence invalid")
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)

// MalformedRowError 定位到具体文件与行。
type MalformedRowError struct {
	FileID FileID
	Line   int
	Fields int
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("%s:%d: row has %d fields, want %d", e.FileID, e.Line, e.Fields, NumFields)
}

func (e *MalformedRowError) Unwrap() error { return ErrMalformedRow }

// UnsupportedDefectError 描述无法处理的缺陷形态。
type UnsupportedDefectError struct {
	FileID FileID
	Seq    int64
	Line   int
	// Indices: 命中融合拼写的 token ID 列（原样文本）。
	Indices []string
	Reason  string
}

func (e *UnsupportedDefectError) Error() string {
	return fmt.Sprintf("%s:%d: sentence %d: %s (tokens %v)", e.FileID, e.Line, e.Seq, e.Reason, e.Indices)
}

func (e *UnsupportedDefectError) Unwrap() error { return ErrUnsupportedDefect }

// MalformedInputError: 纠正器前置条件违例，纠正被拒绝而非产出不一致结果。
type MalformedInputError struct {
	Index  int
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("defect index %d: %s", e.Index, e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }
