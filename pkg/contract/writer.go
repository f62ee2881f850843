package contract

import (
	"context"
	"io"
)

// ArtifactID: 与 FileID 等价的持久化工件标识（语义别名）。
// Writer 自行决定其到物理位置的映射（例如追加 "-fixed" 后缀）。
type ArtifactID = FileID

// Writer: 将装配结果以流式方式持久化。
// 约束：
//  1. 同一 ArtifactID 单写者；
//  2. 流式写入，按字节透传，不读取/修改内容；
//  3. ctx 取消/超时需尽快返回；
//  4. 错误直接上抛（不做重试/回退）。
type Writer interface {
	Write(ctx context.Context, id ArtifactID, r io.Reader) error
}

// SidecarNamer: 可选扩展。返回主工件旁路文件（如纠正报告）的标识。
type SidecarNamer interface {
	Sidecar(id ArtifactID, ext string) ArtifactID
}
