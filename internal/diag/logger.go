package diag

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig 日志配置。
type LogConfig struct {
	Level  string   `mapstructure:"level" yaml:"level"`   // debug|info|warn|error
	Format string   `mapstructure:"format" yaml:"format"` // json|console
	Output string   `mapstructure:"output" yaml:"output"` // console|file|both
	File   FileSink `mapstructure:"file" yaml:"file"`
}

// FileSink 文件输出与轮转参数（lumberjack）。
type FileSink struct {
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// DefaultLogConfig: JSON 写入 logs/udfix.log，10MB 轮转。
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "json",
		Output: "file",
		File: FileSink{
			Filename:   filepath.Join("logs", "udfix.log"),
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
	}
}

// Validate 校验日志配置取值。
func (c LogConfig) Validate() error {
	if _, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(c.Level))); err != nil || c.Level == "" {
		return fmt.Errorf("logging.level: invalid %q (debug|info|warn|error)", c.Level)
	}
	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format: invalid %q (json|console)", c.Format)
	}
	switch c.Output {
	case "console":
	case "file", "both":
		if strings.TrimSpace(c.File.Filename) == "" {
			return errors.New("logging.file.filename: required when output includes file")
		}
		if c.File.MaxSizeMB < 0 || c.File.MaxBackups < 0 || c.File.MaxAgeDays < 0 {
			return errors.New("logging.file: sizes and counts must be >= 0")
		}
	default:
		return fmt.Errorf("logging.output: invalid %q (console|file|both)", c.Output)
	}
	return nil
}

// Logger: 组件/阶段事件日志（zap 结构化输出）。
// 字段：comp、stage(start|finish|error|warn)、code、dur_ms、count、file_id、sentence、corr_id。
type Logger struct {
	z      *zap.Logger
	closer io.Closer
}

// NewLogger 按配置构建日志器；console 输出写 stderr（stdout 留给产物）。
func NewLogger(corrID string, cfg LogConfig) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		sinks  []zapcore.WriteSyncer
		closer io.Closer
	)
	if cfg.Output == "console" || cfg.Output == "both" {
		sinks = append(sinks, zapcore.Lock(os.Stderr))
	}
	if cfg.Output == "file" || cfg.Output == "both" {
		if err := os.MkdirAll(filepath.Dir(cfg.File.Filename), 0o755); err != nil {
			return nil, fmt.Errorf("logging: create dir: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File.Filename,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
			LocalTime:  true,
		}
		sinks = append(sinks, zapcore.AddSync(lj))
		closer = lj
	}
	lvl, _ := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	core := zapcore.NewCore(encoder(cfg.Format), zapcore.NewMultiWriteSyncer(sinks...), lvl)
	return &Logger{z: zap.New(core).With(zap.String("corr_id", corrID)), closer: closer}, nil
}

// NewWriterLogger 以 JSON 写入任意 io.Writer（测试与嵌入场景）。
func NewWriterLogger(corrID, level string, w io.Writer) *Logger {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	core := zapcore.NewCore(encoder("json"), zapcore.AddSync(w), lvl)
	return &Logger{z: zap.New(core).With(zap.String("corr_id", corrID))}
}

// NewNop 返回丢弃全部事件的日志器。
func NewNop() *Logger { return &Logger{z: zap.NewNop()} }

func encoder(format string) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	if format == "console" {
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// Close 刷新并关闭文件输出。
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	_ = l.z.Sync()
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Event 为标准事件结构。
type Event struct {
	Comp     string
	Stage    string // start|finish|error|warn
	Code     string
	DurMS    int64
	Count    int64
	FileID   string
	Sentence string
	Msg      string
	KV       map[string]string
}

func (l *Logger) log(lv zapcore.Level, ev Event) {
	if l == nil {
		return
	}
	ce := l.z.Check(lv, ev.Msg)
	if ce == nil {
		return
	}
	fs := make([]zap.Field, 0, 8+len(ev.KV))
	fs = append(fs, zap.String("comp", ev.Comp), zap.String("stage", ev.Stage))
	if ev.Code != "" {
		fs = append(fs, zap.String("code", ev.Code))
	}
	if ev.DurMS > 0 {
		fs = append(fs, zap.Int64("dur_ms", ev.DurMS))
	}
	if ev.Count > 0 {
		fs = append(fs, zap.Int64("count", ev.Count))
	}
	if ev.FileID != "" {
		fs = append(fs, zap.String("file_id", ev.FileID))
	}
	if ev.Sentence != "" {
		fs = append(fs, zap.String("sentence", ev.Sentence))
	}
	for k, v := range ev.KV {
		fs = append(fs, zap.String(k, v))
	}
	ce.Write(fs...)
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "start", Msg: msg})
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith 记录带 file_id/sentence 的 start。
func (l *Logger) StartWith(comp, msg, fileID, sentence string) *Timer {
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "start", FileID: fileID, Sentence: sentence, Msg: msg})
	return &Timer{l: l, comp: comp, fileID: fileID, sentence: sentence, t0: time.Now()}
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.ErrorWithKV(comp, code, msg, durSince, "", "", nil)
}

// ErrorWith 支持 file_id/sentence。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, fileID, sentence string) {
	l.ErrorWithKV(comp, code, msg, durSince, fileID, sentence, nil)
}

// ErrorWithKV 支持附带键值对（例如行号、错误文本）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, fileID, sentence string, kv map[string]string) {
	var dur int64
	if durSince != nil {
		dur = time.Since(*durSince).Milliseconds()
	}
	l.log(zapcore.ErrorLevel, Event{Comp: comp, Stage: "error", Code: code, DurMS: dur, Msg: msg, FileID: fileID, Sentence: sentence, KV: kv})
}

// Warn 记录可继续运行的问题（畸形行、跳过的句子、悬空 head）。
func (l *Logger) Warn(comp, code, msg, fileID, sentence string, kv map[string]string) {
	l.log(zapcore.WarnLevel, Event{Comp: comp, Stage: "warn", Code: code, Msg: msg, FileID: fileID, Sentence: sentence, KV: kv})
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64, kv map[string]string) {
	l.log(zapcore.InfoLevel, Event{Comp: comp, Stage: "finish", DurMS: time.Since(start).Milliseconds(), Count: count, Msg: msg, KV: kv})
}

// DebugStart 输出调试级别的 start 类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, fileID, sentence string, kv map[string]string) {
	l.log(zapcore.DebugLevel, Event{Comp: comp, Stage: "start", FileID: fileID, Sentence: sentence, Msg: msg, KV: kv})
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l        *Logger
	comp     string
	fileID   string
	sentence string
	t0       time.Time
}

// Finish 记录 finish 并上报耗时指标；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	d := time.Since(t.t0).Milliseconds()
	ObserveDuration(t.comp, msg, d)
	t.l.log(zapcore.InfoLevel, Event{Comp: t.comp, Stage: "finish", DurMS: d, Count: count, FileID: t.fileID, Sentence: t.sentence, Msg: msg})
}
