package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"udfix/pkg/contract"
)

// DefaultSuffix: 纠正产物在扩展名前追加的后缀。
const DefaultSuffix = "-fixed"

// Options: 最小必要选项。
type Options struct {
	// OutputDir: 输出根目录；为空时写在输入文件旁。
	OutputDir string `mapstructure:"output_dir"`
	// Suffix: 产物名后缀（a.conllu → a-fixed.conllu）；为空时采用 "-fixed"。
	Suffix string `mapstructure:"suffix"`
	// Atomic: 是否使用原子替换（同目录临时文件 + rename）。
	// 默认值：true。未提供该字段时采用原子写；显式 false 可关闭。
	Atomic *bool `mapstructure:"atomic"`
	// Flat: 有 OutputDir 时是否仅保留文件名。
	// 默认 true；显式 false 时保留相对层级并校验越界。
	Flat *bool `mapstructure:"flat"`
	// PermFile/PermDir: 可选权限；为 0 表示使用实现默认。
	PermFile os.FileMode `mapstructure:"perm_file"`
	PermDir  os.FileMode `mapstructure:"perm_dir"`
	// BufSize: 写缓冲区大小；<=0 使用实现默认。
	BufSize int `mapstructure:"buf_size"`
}

// FS 将产物写入文件系统。
type FS struct {
	root    string
	suffix  string
	atomic  bool
	flat    bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int

	mu       sync.Mutex
	sidecars map[contract.ArtifactID]struct{}
	// claimed: 本实例已写出的目标路径 → 来源 id；不同 id 落到同一路径即拒绝
	claimed map[string]contract.ArtifactID
}

var (
	_ contract.Writer       = (*FS)(nil)
	_ contract.SidecarNamer = (*FS)(nil)
)

// New 创建文件系统 Writer 实现。
func New(opts *Options) (*FS, error) {
	if opts == nil {
		opts = &Options{}
	}
	bsz := opts.BufSize
	if bsz <= 0 {
		bsz = 64 * 1024
	}
	pf := opts.PermFile
	if pf == 0 {
		pf = 0o644
	}
	pd := opts.PermDir
	if pd == 0 {
		pd = 0o755
	}
	flat := true
	if opts.Flat != nil {
		flat = *opts.Flat
	}
	atomic := true
	if opts.Atomic != nil {
		atomic = *opts.Atomic
	}
	suffix := opts.Suffix
	if suffix == "" {
		suffix = DefaultSuffix
	}
	if strings.ContainsAny(suffix, `/\`) {
		return nil, contract.ErrPathInvalid
	}
	return &FS{
		root:     strings.TrimSpace(opts.OutputDir),
		suffix:   suffix,
		atomic:   atomic,
		flat:     flat,
		permF:    pf,
		permD:    pd,
		bufSize:  bsz,
		sidecars: make(map[contract.ArtifactID]struct{}),
		claimed:  make(map[string]contract.ArtifactID),
	}, nil
}

// Sidecar 返回主工件旁路文件标识：<产物名><ext>，写出时不再追加后缀。
func (w *FS) Sidecar(id contract.ArtifactID, ext string) contract.ArtifactID {
	sid := contract.FixedName(id, w.suffix) + contract.ArtifactID(ext)
	w.mu.Lock()
	w.sidecars[sid] = struct{}{}
	w.mu.Unlock()
	return sid
}

// Target 返回 id 对应的物理路径（不创建任何文件）。
func (w *FS) Target(id contract.ArtifactID) (string, error) { return w.mapPath(id) }

// Write 将 r 的全部字节写入到基于 id 映射的目标路径。
func (w *FS) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	dest, err := w.mapPath(id)
	if err != nil {
		return err
	}
	if err := w.claim(dest, id); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), w.permD); err != nil {
		return err
	}
	if w.atomic {
		return w.writeAtomic(ctx, dest, r)
	}
	return w.writeOverwrite(ctx, dest, r)
}

// claim 登记目标路径。扁平输出下不同目录的同名输入会映射到同一文件，
// 后写者返回 ErrPathInvalid，先写出的产物保持不变。
func (w *FS) claim(dest string, id contract.ArtifactID) error {
	key := filepath.Clean(dest)
	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.claimed[key]; ok && prev != id {
		return fmt.Errorf("%w: %s and %s both map to %s (set flat=false to keep directories)", contract.ErrPathInvalid, prev, id, dest)
	}
	w.claimed[key] = id
	return nil
}

// mapPath: 追加后缀 + Clean + Join + 越界校验。
func (w *FS) mapPath(id contract.ArtifactID) (string, error) {
	name := id
	w.mu.Lock()
	_, side := w.sidecars[id]
	w.mu.Unlock()
	if !side {
		name = contract.FixedName(id, w.suffix)
	}
	rel := filepath.Clean(filepath.FromSlash(string(name)))
	if rel == "." || rel == "" {
		return "", contract.ErrPathInvalid
	}
	// 无输出根：写在输入旁，保留原路径语义
	if w.root == "" {
		return rel, nil
	}
	if w.flat {
		rel = filepath.Base(rel)
		if rel == "." || rel == ".." || rel == string(filepath.Separator) {
			return "", contract.ErrPathInvalid
		}
		return filepath.Join(w.root, rel), nil
	}
	// 非扁平：禁止绝对路径、父级逃逸、Windows 卷名
	if filepath.IsAbs(rel) {
		return "", contract.ErrPathInvalid
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", contract.ErrPathInvalid
	}
	if vol := filepath.VolumeName(rel); vol != "" {
		return "", contract.ErrPathInvalid
	}
	return filepath.Join(w.root, rel), nil
}

func (w *FS) writeOverwrite(ctx context.Context, dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.permF)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriterSize(f, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return err
	}
	return bw.Flush()
}

// writeAtomic 写入同目录临时文件后 rename；任一步失败均删除临时文件，目标保持原状。
func (w *FS) writeAtomic(ctx context.Context, dest string, r io.Reader) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = os.Chmod(tmpPath, w.permF)

	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	bw := bufio.NewWriterSize(tmp, w.bufSize)
	if _, err := io.Copy(bw, readerWithCtx(ctx, r)); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	// 最佳努力：同步父目录
	_ = syncDir(dir)
	return nil
}

// readerWithCtx: 在每次 Read 前检查 ctx 是否已取消。
func readerWithCtx(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
	}
	return cr.r.Read(p)
}
