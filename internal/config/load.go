package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"udfix/internal/diag"
)

// EnvPrefix: 环境变量前缀（UDFIX_CONCURRENCY、UDFIX_LOGGING_LEVEL ...）。
const EnvPrefix = "UDFIX"

// EnvConfigFile: 指定配置文件路径的环境变量。
const EnvConfigFile = EnvPrefix + "_CONFIG_FILE"

// DefaultConfigName: 工作目录下自动发现的配置文件名（udfix.yaml/.json/.toml）。
const DefaultConfigName = "udfix"

// ErrInvalid: 配置错误（解析、校验、装配），CLI 以退出码 3 报告。
var ErrInvalid = errors.New("config invalid")

// DefaultInputs: 葡语 UD 语料的三个切分。
var DefaultInputs = []string{"pt_br-ud-train.conllu", "pt_br-ud-dev.conllu", "pt_br-ud-test.conllu"}

// Defaults 返回带有安全默认值的 Config 雏形。
func Defaults() Config {
	return Config{
		Inputs:        cloneStrings(DefaultInputs),
		Concurrency:   1,
		CommentPrefix: "#",
		Logging:       diag.DefaultLogConfig(),
		Components: Components{
			Reader:    "fs",
			Splitter:  "conllu",
			Corrector: "fusion",
			Assembler: "conllu",
			Writer:    "fs",
		},
	}
}

// flagKeys: CLI 旗标 → 配置键。
var flagKeys = map[string]string{
	"concurrency":  "concurrency",
	"strict":       "strict",
	"report":       "report",
	"metrics-file": "metrics_file",
	"log-level":    "logging.level",
}

// NewViper 构造带默认值与 ENV 绑定的 viper 实例。
// 优先级：CLI > ENV > 配置文件 > 默认值。
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Defaults()
	// 只为标量键设默认；ENV 仅对已知键生效
	v.SetDefault("inputs", d.Inputs)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("strict", d.Strict)
	v.SetDefault("report", d.Report)
	v.SetDefault("metrics_file", d.MetricsFile)
	v.SetDefault("comment_prefix", d.CommentPrefix)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("logging.file.filename", d.Logging.File.Filename)
	v.SetDefault("logging.file.max_size_mb", d.Logging.File.MaxSizeMB)
	v.SetDefault("logging.file.max_backups", d.Logging.File.MaxBackups)
	v.SetDefault("logging.file.max_age_days", d.Logging.File.MaxAgeDays)
	v.SetDefault("logging.file.compress", d.Logging.File.Compress)
	v.SetDefault("components.reader", d.Components.Reader)
	v.SetDefault("components.splitter", d.Components.Splitter)
	v.SetDefault("components.corrector", d.Components.Corrector)
	v.SetDefault("components.assembler", d.Components.Assembler)
	v.SetDefault("components.writer", d.Components.Writer)
	return v
}

// BindFlags 将已注册的 CLI 旗标绑定到配置键；未注册的旗标跳过。
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load 读取配置文件（可选）并解码为 Config。
// path 为空时依次尝试 UDFIX_CONFIG_FILE 与工作目录下的 udfix.*。
func Load(v *viper.Viper, path string) (Config, error) {
	var cfg Config
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigFile))
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return cfg, fmt.Errorf("%w: read config: %v", ErrInvalid, err)
			}
		}
	}
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) { dc.ErrorUnused = true }); err != nil {
		return cfg, fmt.Errorf("%w: decode: %v", ErrInvalid, err)
	}
	// ENV 只能给出单个字符串 "a,b"，此时按逗号展开；配置文件列表逐项保留
	if raw, ok := v.Get("inputs").(string); ok {
		cfg.Inputs = splitInputs([]string{raw})
	} else {
		cfg.Inputs = trimInputs(cfg.Inputs)
	}
	return cfg, nil
}

// Apply 叠加 CLI 专属覆盖。
// 规则：
//   - --dry-run 选用 discard Writer，--stdout 选用 stdout Writer，二者互斥；
//   - 仅有 "-" 一个根且 Writer 为 fs 时改写到标准输出；
//   - --output-dir/--suffix 仅对 fs Writer 有意义。
func Apply(cfg Config, o Overrides) (Config, error) {
	if len(o.Inputs) > 0 {
		// 位置参数即路径，路径中可含逗号
		cfg.Inputs = trimInputs(o.Inputs)
	}
	if o.DryRun && o.Stdout {
		return cfg, fmt.Errorf("%w: --dry-run and --stdout are mutually exclusive", ErrInvalid)
	}
	writer := effName(cfg.Components.Writer, Defaults().Components.Writer)
	switch {
	case o.DryRun:
		writer = "discard"
	case o.Stdout:
		writer = "stdout"
	case writer == "fs" && len(cfg.Inputs) == 1 && cfg.Inputs[0] == "-":
		writer = "stdout"
	}
	if writer != cfg.Components.Writer && writer != "fs" {
		// fs 选项对流式 Writer 无意义
		cfg.Options.Writer = nil
	}
	cfg.Components.Writer = writer

	if o.OutputDir != nil || o.Suffix != nil {
		if writer != "fs" {
			return cfg, fmt.Errorf("%w: --output-dir/--suffix require the fs writer (got %q)", ErrInvalid, writer)
		}
		wo := cloneMap(cfg.Options.Writer)
		if o.OutputDir != nil {
			wo["output_dir"] = *o.OutputDir
		}
		if o.Suffix != nil {
			wo["suffix"] = *o.Suffix
		}
		cfg.Options.Writer = wo
	}
	return cfg, nil
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}

// splitInputs 展开逗号分隔项（ENV 形式 a,b）并去除空白项。
func splitInputs(in []string) []string {
	var out []string
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if t := strings.TrimSpace(p); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}

// trimInputs 去除首尾空白与空白项，不做拆分。
func trimInputs(in []string) []string {
	var out []string
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func effName(got, def string) string {
	if strings.TrimSpace(got) == "" {
		return def
	}
	return strings.TrimSpace(got)
}
