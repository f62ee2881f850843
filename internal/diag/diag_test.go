package diag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"udfix/pkg/contract"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{context.Canceled, CodeCancel},
		{fmt.Errorf("wrap: %w", context.DeadlineExceeded), CodeCancel},
		{&contract.MalformedRowError{Line: 3, Fields: 9}, CodeFormat},
		{&contract.UnsupportedDefectError{Reason: "x"}, CodeDefect},
		{&contract.MalformedInputError{Index: 2}, CodeDefect},
		{contract.ErrSeqInvalid, CodeInvariant},
		{fmt.Errorf("x: %w", contract.ErrPathInvalid), CodeInvariant},
		{&os.PathError{Op: "open", Path: "x", Err: os.ErrNotExist}, CodeIO},
		{fmt.Errorf("plain"), CodeUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.err), "%v", c.err)
	}
}

func decodeLines(t *testing.T, b []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(b), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal(line, &m), string(line))
		out = append(out, m)
	}
	return out
}

func TestLoggerEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("corr-1", "info", &buf)
	tm := l.StartWith("splitter", "split", "a.conllu", "")
	tm.Finish("split", 3)
	l.Warn("pipeline", "format", "malformed row", "a.conllu", "2", map[string]string{"line": "7"})
	start := time.Now().Add(-5 * time.Millisecond)
	l.ErrorWith("writer", "io", "write failed", &start, "a.conllu", "")
	l.DebugStart("corrector", "correct", "a.conllu", "0", nil) // info 级别下被过滤

	evs := decodeLines(t, buf.Bytes())
	require.Len(t, evs, 4)
	assert.Equal(t, "start", evs[0]["stage"])
	assert.Equal(t, "corr-1", evs[0]["corr_id"])
	assert.Equal(t, "finish", evs[1]["stage"])
	assert.EqualValues(t, 3, evs[1]["count"])
	assert.Equal(t, "warn", evs[2]["level"])
	assert.Equal(t, "7", evs[2]["line"])
	assert.Equal(t, "2", evs[2]["sentence"])
	assert.Equal(t, "error", evs[3]["level"])
	assert.Equal(t, "io", evs[3]["code"])
}

func TestLoggerNilSafe(t *testing.T) {
	var l *Logger
	l.Warn("a", "b", "c", "", "", nil)
	assert.NoError(t, l.Close())
	var tn *Timer
	tn.Finish("x", 0)
	(&Timer{}).Finish("x", 0)
	NewNop().Error("comp", "code", "msg", nil)
}

func TestNewLoggerFile(t *testing.T) {
	cfg := DefaultLogConfig()
	cfg.File.Filename = filepath.Join(t.TempDir(), "logs", "udfix.log")
	l, err := NewLogger("corr", cfg)
	require.NoError(t, err)
	l.Start("reader", "iterate").Finish("iterate", 1)
	require.NoError(t, l.Close())
	b, err := os.ReadFile(cfg.File.Filename)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"comp":"reader"`)
}

func TestLogConfigValidate(t *testing.T) {
	ok := DefaultLogConfig()
	require.NoError(t, ok.Validate())
	bad := []func(*LogConfig){
		func(c *LogConfig) { c.Level = "loud" },
		func(c *LogConfig) { c.Level = "" },
		func(c *LogConfig) { c.Format = "xml" },
		func(c *LogConfig) { c.Output = "syslog" },
		func(c *LogConfig) { c.File.Filename = "" },
		func(c *LogConfig) { c.File.MaxSizeMB = -1 },
	}
	for i, mut := range bad {
		c := DefaultLogConfig()
		mut(&c)
		assert.Error(t, c.Validate(), "case %d", i)
	}
	c := DefaultLogConfig()
	c.Output, c.File.Filename = "console", ""
	assert.NoError(t, c.Validate())
}

func TestMetricsCountersAndTextfile(t *testing.T) {
	ResetMetrics()
	IncOp("writer", "finish", "success")
	IncOp("writer", "finish", "success")
	IncError("splitter", "format")
	IncSentence("corrected")
	ObserveDuration("pipeline", "file", 12)
	m := current()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ops.WithLabelValues("writer", "finish", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errs.WithLabelValues("splitter", "format")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sentences.WithLabelValues("corrected")))

	p := filepath.Join(t.TempDir(), "udfix.prom")
	require.NoError(t, WriteTextfile(p))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), `udfix_sentences_total{outcome="corrected"} 1`)
	assert.Contains(t, string(b), "udfix_op_duration_ms_bucket")

	ResetMetrics()
	assert.Equal(t, 0.0, testutil.ToFloat64(current().sentences.WithLabelValues("corrected")))
}

func TestRecord(t *testing.T) {
	ResetMetrics()
	var buf bytes.Buffer
	code := Record(NewWriterLogger("c", "info", &buf), "writer", "write failed", &os.PathError{Op: "open", Path: "x", Err: os.ErrPermission}, "a.conllu", "")
	assert.Equal(t, CodeIO, code)
	assert.Contains(t, buf.String(), `"err":"open x: permission denied"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(current().errs.WithLabelValues("writer", "io")))
}

// 终端（非 TTY）关键节点输出
func TestTerminalNonTTYFlow(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	require.False(t, term.isTTY)
	term.RunStart(4, "lenient")
	term.FileStart("ud/pt_br-ud-dev.conllu")
	term.FileProgress(Counts{Sentences: 3}) // 非 TTY：不输出进度
	term.FileFinish(true, 5100*time.Millisecond, Counts{Sentences: 10, Corrected: 2, Skipped: 1, MalformedRows: 3})
	term.RunFinish(true, 41300*time.Millisecond, Counts{Files: 1, Sentences: 10, Corrected: 2, Skipped: 1, MalformedRows: 3})

	out := sb.String()
	assert.NotContains(t, out, "\r")
	assert.Contains(t, out, "[run] 并发=4 | 模式=lenient")
	assert.Contains(t, out, "[file] pt_br-ud-dev.conllu\n")
	assert.Contains(t, out, "[done] pt_br-ud-dev.conllu | 句子 10 | 纠正 2 | 跳过 1 | 畸形行 3 | 用时 5.1s")
	assert.Contains(t, out, "[ok] 全部完成 | 文件 1 | 句子 10 | 纠正 2 | 跳过 1 | 畸形行 3 | 总用时 41.3s")
}

// 终端（TTY）进度节流与清尾
func TestTerminalTTYProgressThrottleAndClear(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.isTTY = true
	term.RunStart(2, "strict")
	term.FileStart("/a/b/c/longfilename.conllu")

	term.FileProgress(Counts{Sentences: 1})
	first := sb.String()
	require.Contains(t, first, "\r[")
	term.FileProgress(Counts{Sentences: 2})
	assert.Equal(t, first, sb.String(), "100ms 内应被节流")
	time.Sleep(120 * time.Millisecond)
	term.FileProgress(Counts{Sentences: 2})
	third := sb.String()
	assert.Greater(t, len(third), len(first))

	term.FileFinish(false, 2200*time.Millisecond, Counts{})
	final := sb.String()
	idx := strings.LastIndex(final, "[fail]")
	require.Positive(t, idx)
	seg := final[:idx]
	cr := strings.LastIndex(seg, "\r")
	require.GreaterOrEqual(t, cr, 0)
	assert.Contains(t, seg[cr+1:], " ")
}

type flakyWriter struct{ fail bool }

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail {
		w.fail = false
		return 0, fmt.Errorf("boom")
	}
	return len(p), nil
}

// 写失败降级为禁用态
func TestTerminalDisableOnWriteError(t *testing.T) {
	term := NewTerminal(&flakyWriter{fail: true}, true)
	term.RunStart(1, "x")
	assert.False(t, term.enabled)
	term.FileStart("a")
	term.FileProgress(Counts{})
	term.FileFinish(true, 0, Counts{})
	term.RunFinish(true, 0, Counts{})

	tty := NewTerminal(&flakyWriter{fail: true}, true)
	tty.isTTY = true
	tty.FileProgress(Counts{Sentences: 1})
	assert.False(t, tty.enabled)
}

func TestTerminalNilAndGlobal(t *testing.T) {
	var tn *Terminal
	tn.RunStart(1, "x")
	tn.FileStart("a")
	tn.FileProgress(Counts{})
	tn.FileFinish(true, 0, Counts{})
	tn.RunFinish(true, 0, Counts{})

	SetTerminal(nil)
	assert.Nil(t, GetTerminal())
	SetTerminal(NewTerminal(os.Stderr, false))
	assert.NotNil(t, GetTerminal())
	SetTerminal(nil)

	t.Setenv("CI", "true")
	assert.False(t, NewTerminal(os.Stderr, true).isTTY)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "这是一个很长的文件名…", shortenBase("/x/y/这是一个很长的文件名用于截断测试.conllu", 11))
	assert.Equal(t, "", shortenBase("x", 0))
	assert.Equal(t, "a b c", safe("a\nb\rc"))
	assert.Equal(t, "0ms", formatDur(0))
	assert.Equal(t, "1.5s", formatDur(1500*time.Millisecond))
}
