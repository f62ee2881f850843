package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// TemplateName: init 生成的配置文件名。
const TemplateName = DefaultConfigName + ".yaml"

// DefaultTemplateConfig 返回一个"可运行"的默认配置模板：
// - 输入为三个葡语 UD 切分，产物写在输入旁（-fixed 后缀）；
// - 显式列出默认融合表，便于增删；
// - 选项给出安全中性默认值，键齐全。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.Fusions = fusionsOrDefault(nil)
	cfg.Logging.Output = "both"
	// exclude_globs 省略：由 writer 的 suffix 推导
	cfg.Options.Reader = map[string]any{
		"buf_size":          65536,
		"exclude_dir_names": []string{".git", "node_modules", "vendor"},
		"exts":              []string{".conllu"},
	}
	cfg.Options.Writer = map[string]any{
		"output_dir": "",
		"suffix":     "-fixed",
		"atomic":     true,
		"flat":       true,
		"buf_size":   65536,
	}
	return cfg
}

// RenderTemplate 以 YAML 渲染配置。
func RenderTemplate(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# udfix 配置模板（由 udfix init 生成）\n")
	buf.WriteString("# 优先级：CLI > ENV(UDFIX_*) > 本文件 > 默认值\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTemplate 在 dir 下生成 udfix.yaml 与 .env 模板；已存在的文件不覆盖。
// 返回实际写入的文件路径。
func WriteTemplate(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	b, err := RenderTemplate(DefaultTemplateConfig())
	if err != nil {
		return nil, err
	}
	var written []string
	cfgPath := filepath.Join(dir, TemplateName)
	ok, err := writeNew(cfgPath, b)
	if err != nil {
		return written, fmt.Errorf("write %s: %w", cfgPath, err)
	}
	if ok {
		written = append(written, cfgPath)
	}
	envPath := filepath.Join(dir, ".env")
	ok, err = writeNew(envPath, []byte(dotEnvTemplate()))
	if err != nil {
		return written, fmt.Errorf("write %s: %w", envPath, err)
	}
	if ok {
		written = append(written, envPath)
	}
	return written, nil
}

// writeNew 仅在文件不存在时写入；已存在返回 ok=false。
func writeNew(path string, b []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return false, err
	}
	return true, f.Close()
}

func dotEnvTemplate() string {
	var b strings.Builder
	b.WriteString("# udfix .env 模板（由 udfix init 生成）\n")
	b.WriteString("# 已存在的环境变量不会被覆盖；空值表示未设置。\n\n")
	b.WriteString("# 配置来源\n")
	b.WriteString(EnvConfigFile + "=\n\n")
	b.WriteString("# 运行参数覆盖\n")
	for _, k := range []string{"INPUTS", "CONCURRENCY", "STRICT", "REPORT", "METRICS_FILE", "COMMENT_PREFIX"} {
		b.WriteString(EnvPrefix + "_" + k + "=\n")
	}
	b.WriteString("\n# 日志\n")
	for _, k := range []string{"LOGGING_LEVEL", "LOGGING_FORMAT", "LOGGING_OUTPUT", "LOGGING_FILE_FILENAME"} {
		b.WriteString(EnvPrefix + "_" + k + "=\n")
	}
	b.WriteString("\n# 组件选择\n")
	for _, k := range []string{"READER", "SPLITTER", "CORRECTOR", "ASSEMBLER", "WRITER"} {
		b.WriteString(EnvPrefix + "_COMPONENTS_" + k + "=\n")
	}
	return b.String()
}
