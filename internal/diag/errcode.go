package diag

import (
	"context"
	"errors"
	"io/fs"

	"udfix/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeFormat    Code = "format"
	CodeDefect    Code = "defect"
	CodeInvariant Code = "invariant"
	CodeIO        Code = "io"
	CodeCancel    Code = "cancel"
)

// Classify 将错误归为最小分类。
// 仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	if errors.Is(err, contract.ErrMalformedRow) {
		return CodeFormat
	}
	if errors.Is(err, contract.ErrUnsupportedDefect) || errors.Is(err, contract.ErrMalformedInput) {
		return CodeDefect
	}
	if errors.Is(err, contract.ErrInvariantViolation) ||
		errors.Is(err, contract.ErrSeqInvalid) ||
		errors.Is(err, contract.ErrPathInvalid) {
		return CodeInvariant
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	return CodeUnknown
}

// Record 记录一次失败：error 日志 + 错误计数。
func Record(l *Logger, comp, msg string, err error, fileID, sentence string) Code {
	code := Classify(err)
	if l != nil {
		l.ErrorWithKV(comp, string(code), msg, nil, fileID, sentence, map[string]string{"err": err.Error()})
	}
	IncOp(comp, "error", "error")
	if code != CodeUnknown {
		IncError(comp, string(code))
	}
	return code
}
