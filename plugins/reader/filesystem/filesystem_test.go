package filesystem

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"udfix/pkg/contract"
)

func write(t *testing.T, p, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
}

func names(t *testing.T, r *FileSystem, roots ...string) []string {
	t.Helper()
	var out []string
	err := r.Iterate(context.Background(), roots, func(id contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		out = append(out, filepath.Base(string(id)))
		return nil
	})
	require.NoError(t, err)
	return out
}

// TestIterateSingleFile 读取单文件（显式 root 不受扩展名过滤）
func TestIterateSingleFile(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "a.txt")
	write(t, fp, "hello")
	var got []byte
	err := New(nil).Iterate(context.Background(), []string{fp}, func(id contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		got = append(got, b...)
		assert.Equal(t, contract.NormalizeFileID(fp), id)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

// TestWalkDirOrderAndFilters 目录递归：先子目录、字典序、扩展名与产物过滤
func TestWalkDirOrderAndFilters(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "b.conllu"), "")
	write(t, filepath.Join(dir, "a.conllu"), "")
	write(t, filepath.Join(dir, "a-fixed.conllu"), "")
	write(t, filepath.Join(dir, "notes.txt"), "")
	write(t, filepath.Join(dir, "z", "c.CONLLU"), "")
	write(t, filepath.Join(dir, ".git", "d.conllu"), "")

	got := names(t, New(&Options{ExcludeDirNames: []string{".GIT"}}), dir)
	assert.Equal(t, []string{"c.CONLLU", "a.conllu", "b.conllu"}, got)

	// 显式空切片：不限制扩展名，也不排除产物
	got = names(t, New(&Options{Exts: []string{}, ExcludeGlobs: []string{}, ExcludeDirNames: []string{".git"}}), dir)
	assert.Equal(t, []string{"c.CONLLU", "a-fixed.conllu", "a.conllu", "b.conllu", "notes.txt"}, got)

	got = names(t, New(&Options{Exts: []string{"txt"}}), dir)
	assert.Equal(t, []string{"notes.txt"}, got)
}

// TestIterateDashMix 混用 '-' 返回错误
func TestIterateDashMix(t *testing.T) {
	err := New(nil).Iterate(context.Background(), []string{"a", "-"}, func(contract.FileID, io.ReadCloser) error { return nil })
	assert.Error(t, err)
}

func withStdin(t *testing.T, data string) {
	t.Helper()
	old := os.Stdin
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	os.Stdin = pr
	t.Cleanup(func() { os.Stdin = old; _ = pr.Close() })
	go func() {
		_, _ = pw.Write([]byte(data))
		_ = pw.Close()
	}()
}

// TestIterateStdin roots 为空或仅 '-' 时读取 STDIN
func TestIterateStdin(t *testing.T) {
	for _, roots := range [][]string{nil, {"-"}} {
		withStdin(t, "1\tOi\n")
		var data []byte
		err := New(nil).Iterate(context.Background(), roots, func(id contract.FileID, rc io.ReadCloser) error {
			defer rc.Close()
			assert.Equal(t, StdinID, id)
			data, _ = io.ReadAll(rc)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, "1\tOi\n", string(data))
	}
}

// TestIterateCtxCancel 上下文取消
func TestIterateCtxCancel(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "a.conllu")
	write(t, fp, "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(nil).Iterate(ctx, []string{fp}, func(contract.FileID, io.ReadCloser) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

// TestIterateMissing 不存在的 root 返回错误
func TestIterateMissing(t *testing.T) {
	err := New(nil).Iterate(context.Background(), []string{filepath.Join(t.TempDir(), "nope.conllu")}, func(contract.FileID, io.ReadCloser) error { return nil })
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// TestNewBufferedCloserDefault bufSize<=0 时使用默认
func TestNewBufferedCloserDefault(t *testing.T) {
	bc := newBufferedCloser(io.NopCloser(strings.NewReader("")), 0)
	require.NotNil(t, bc.Reader)
	assert.NoError(t, bc.Close())
}
