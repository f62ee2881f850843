package contract

import (
	"context"
	"io"
)

// Assembler: 将同一文件的有序 Sentence 渲染为 CoNLL-U 文本。
// 约束：
//  1. 仅装配同一 FileID 的句子；
//  2. 按 Seq 严格升序；
//  3. 不引入跨调用状态；
//  4. 序列违规返回 ErrSeqInvalid。
type Assembler interface {
	Assemble(ctx context.Context, fileID FileID, sentences []Sentence) (io.Reader, error)
}
