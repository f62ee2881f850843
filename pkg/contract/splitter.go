package contract

import (
	"context"
	"io"
)

// Splitter: 将单文件字节流切分为有序 Sentence，逐句回调。
// 约束：
// 1) 不跨文件合并；
// 2) Seq 自 0 严格递增；
// 3) 行内容原样保留（仅去掉行尾 CR/LF）；
// 4) 畸形行经 OnMalformed 上报后原样保留在句中，不中断扫描；
// 5) 无内部并发。
type Splitter interface {
	Split(ctx context.Context, fileID FileID, r io.Reader, yield func(Sentence) error) error
}

// MalformedObserver: 可选扩展。Splitter 每遇到一行畸形行即回调一次；
// 返回非 nil 错误将中止当前文件（严格模式）。
type MalformedObserver interface {
	OnMalformed(fn func(*MalformedRowError) error)
}
