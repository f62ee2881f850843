package contract

import (
	"path"
	"strings"
)

// NormalizeFileID 规范化路径，统一为跨平台稳定的 FileID。
// 规则：
// - 使用正斜杠分隔符
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
func NormalizeFileID(p string) FileID {
	return FileID(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}

// FixedName 在扩展名前插入后缀：a/b.conllu + "-fixed" → a/b-fixed.conllu。
// 无扩展名时直接追加。
func FixedName(id FileID, suffix string) FileID {
	s := string(id)
	ext := path.Ext(s)
	if ext == "" || path.Base(s) == ext {
		return FileID(s + suffix)
	}
	return FileID(strings.TrimSuffix(s, ext) + suffix + ext)
}
