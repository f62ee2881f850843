//go:build windows

package filesystem

// syncDir 在 Windows 上为空操作（目录不支持 fsync）。
func syncDir(string) error { return nil }
