package contract

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidateSentence 校验句内引用结构（纯函数，无 I/O）：
//   - 普通整数 ID 依出现顺序恰为 1..N，无缺口、无重复；
//   - 空节点 a.b 紧随整数 ID a 之后（0.b 位于首词之前）；
//   - 每个整数 head 为 RootHead 或落在 1..N 内。
//
// 多词区间行、畸形行、head 为 "_" 的行不参与校验。
// 违例返回包裹 ErrInvariantViolation 的错误。
func ValidateSentence(s Sentence) error {
	n := 0
	for _, t := range s.Tokens {
		if !t.Valid() {
			continue
		}
		id, ok := t.ID()
		if !ok {
			if a, _, dot := strings.Cut(t.IDText(), "."); dot {
				if w, err := strconv.Atoi(a); err == nil && w != n {
					return fmt.Errorf("%w: line %d: empty node %s after word %d", ErrInvariantViolation, t.Line, t.IDText(), n)
				}
			}
			continue
		}
		n++
		if id != n {
			return fmt.Errorf("%w: line %d: id %d, want %d", ErrInvariantViolation, t.Line, id, n)
		}
	}
	for _, t := range s.Tokens {
		if !t.Valid() {
			continue
		}
		if _, ok := t.ID(); !ok {
			continue
		}
		h, ok := t.Head()
		if !ok {
			continue
		}
		if h != RootHead && (h < 1 || h > n) {
			return fmt.Errorf("%w: token %s: head %d outside 1..%d", ErrInvariantViolation, t.IDText(), h, n)
		}
	}
	return nil
}
