package contract

import "context"

// Corrector: 单句纠正（纯计算，不做 I/O）。
// 约束：
//   - 不修改入参句子，返回新句；
//   - 无缺陷返回 Unchanged 与原句；
//   - 前置条件不满足时返回 Skipped、原句与错误；是否中止由编排层的严格度决定；
//   - 结果满足 ID 连续性与 head 可解析性，末位缺陷的限定词 head 例外。
type Corrector interface {
	Correct(ctx context.Context, s Sentence) (Sentence, Outcome, error)
}
