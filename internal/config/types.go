package config

import (
	"udfix/internal/diag"
	"udfix/pkg/contract"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// 键使用 snake_case；未知键在解析期失败。
type Config struct {
	Inputs      []string `mapstructure:"inputs" yaml:"inputs"`
	Concurrency int      `mapstructure:"concurrency" yaml:"concurrency"`
	// Strict: 首个缺陷错误或畸形行即中止（默认宽松：原样输出并告警）。
	Strict bool `mapstructure:"strict" yaml:"strict"`
	// Report: 为每个产物写出 .fixes.jsonl 报告。
	Report      bool   `mapstructure:"report" yaml:"report"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file"`

	CommentPrefix string            `mapstructure:"comment_prefix" yaml:"comment_prefix"`
	Fusions       []contract.Fusion `mapstructure:"fusions" yaml:"fusions"`

	Logging diag.LogConfig `mapstructure:"logging" yaml:"logging"`

	// 组件名选择（空则使用默认名）。
	Components Components `mapstructure:"components" yaml:"components"`
	// 各组件选项子树，原样传入工厂（工厂层严格解码）。
	Options Options `mapstructure:"options" yaml:"options"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader    string `mapstructure:"reader" yaml:"reader"`
	Splitter  string `mapstructure:"splitter" yaml:"splitter"`
	Corrector string `mapstructure:"corrector" yaml:"corrector"`
	Assembler string `mapstructure:"assembler" yaml:"assembler"`
	Writer    string `mapstructure:"writer" yaml:"writer"`
}

// Options: 各组件的原样选项。
type Options struct {
	Reader    map[string]any `mapstructure:"reader" yaml:"reader,omitempty"`
	Splitter  map[string]any `mapstructure:"splitter" yaml:"splitter,omitempty"`
	Corrector map[string]any `mapstructure:"corrector" yaml:"corrector,omitempty"`
	Assembler map[string]any `mapstructure:"assembler" yaml:"assembler,omitempty"`
	Writer    map[string]any `mapstructure:"writer" yaml:"writer,omitempty"`
}

// Overrides: 仅来自 CLI 的覆盖项（优先级最高）。
type Overrides struct {
	Inputs    []string
	OutputDir *string
	Suffix    *string
	DryRun    bool
	Stdout    bool
}
