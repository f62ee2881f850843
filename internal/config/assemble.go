package config

import (
	"fmt"
	"runtime"
	"strings"

	"udfix/internal/pipeline"
	"udfix/pkg/contract"
	"udfix/pkg/registry"
	"udfix/plugins/corrector/fusion"
	fswriter "udfix/plugins/writer/filesystem"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return fmt.Errorf("%w: inputs empty", ErrInvalid)
	}
	// 输入路径不得为空字符串；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("%w: input path cannot be empty", ErrInvalid)
		}
		if strings.TrimSpace(r) == "-" {
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return fmt.Errorf("%w: '-' cannot be mixed with other roots", ErrInvalid)
	}
	if cfg.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be >= 1", ErrInvalid)
	}
	if strings.ContainsAny(cfg.CommentPrefix, "\t\r\n") {
		return fmt.Errorf("%w: comment_prefix must not contain tabs or newlines", ErrInvalid)
	}
	if _, err := fusion.NewTable(cfg.Fusions); err != nil {
		return fmt.Errorf("%w: fusions: %v", ErrInvalid, err)
	}
	if err := cfg.Logging.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	d := Defaults().Components
	if name := effName(cfg.Components.Reader, d.Reader); registry.Reader[name] == nil {
		return fmt.Errorf("%w: reader %q not registered", ErrInvalid, name)
	}
	if name := effName(cfg.Components.Splitter, d.Splitter); registry.Splitter[name] == nil {
		return fmt.Errorf("%w: splitter %q not registered", ErrInvalid, name)
	}
	if name := effName(cfg.Components.Corrector, d.Corrector); registry.Corrector[name] == nil {
		return fmt.Errorf("%w: corrector %q not registered", ErrInvalid, name)
	}
	if name := effName(cfg.Components.Assembler, d.Assembler); registry.Assembler[name] == nil {
		return fmt.Errorf("%w: assembler %q not registered", ErrInvalid, name)
	}
	if name := effName(cfg.Components.Writer, d.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("%w: writer %q not registered", ErrInvalid, name)
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 顶层 fusions/comment_prefix 作为 corrector/splitter 选项的缺省值注入；
// 选项子树中显式给出的同名键优先。splitter 的候选拼写取自纠正器的生效融合表。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	d := Defaults().Components
	wrap := func(kind string, err error) error {
		return fmt.Errorf("%w: %s options: %v", ErrInvalid, kind, err)
	}

	ro := cloneMap(cfg.Options.Reader)
	if _, ok := ro["exclude_globs"]; !ok {
		ro["exclude_globs"] = outputGlobs(cfg)
	}
	r, err := registry.Reader[effName(cfg.Components.Reader, d.Reader)](ro)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrap("reader", err)
	}

	co := cloneMap(cfg.Options.Corrector)
	if _, ok := co["fusions"]; !ok && len(cfg.Fusions) > 0 {
		co["fusions"] = cfg.Fusions
	}
	c, err := registry.Corrector[effName(cfg.Components.Corrector, d.Corrector)](co)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrap("corrector", err)
	}

	so := cloneMap(cfg.Options.Splitter)
	if _, ok := so["comment_prefix"]; !ok && cfg.CommentPrefix != "" {
		so["comment_prefix"] = cfg.CommentPrefix
	}
	if _, ok := so["forms"]; !ok {
		if fc, ok := c.(*fusion.Corrector); ok {
			so["forms"] = fc.Table().Forms()
		}
	}
	s, err := registry.Splitter[effName(cfg.Components.Splitter, d.Splitter)](so)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrap("splitter", err)
	}

	a, err := registry.Assembler[effName(cfg.Components.Assembler, d.Assembler)](cfg.Options.Assembler)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrap("assembler", err)
	}
	w, err := registry.Writer[effName(cfg.Components.Writer, d.Writer)](cfg.Options.Writer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrap("writer", err)
	}

	comp := pipeline.Components{Reader: r, Splitter: s, Corrector: c, Assembler: a, Writer: w}
	set := pipeline.Settings{
		Inputs:      cloneStrings(cfg.Inputs),
		Concurrency: cfg.Concurrency,
		Strict:      cfg.Strict,
		Report:      cfg.Report,
	}
	return comp, set, nil
}

// outputGlobs 返回匹配纠正产物基名的模式（a.conllu → a<suffix>.conllu），
// 目录递归时据此跳过上次运行写在输入旁的产物。
func outputGlobs(cfg Config) []string {
	suffix := fswriter.DefaultSuffix
	if v, ok := cfg.Options.Writer["suffix"].(string); ok && strings.TrimSpace(v) != "" {
		suffix = v
	}
	q := globQuote(suffix)
	return []string{"*" + q + ".*", "*" + q}
}

// globQuote 转义 filepath.Match 的元字符；Windows 下反斜杠是分隔符，不转义。
func globQuote(s string) string {
	if runtime.GOOS == "windows" {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// fusionsOrDefault 返回生效的融合表条目（用于模板与诊断输出）。
func fusionsOrDefault(fs []contract.Fusion) []contract.Fusion {
	if len(fs) == 0 {
		return contract.DefaultFusions()
	}
	return fs
}
