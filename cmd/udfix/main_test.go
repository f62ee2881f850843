package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"udfix/internal/diag"
	"udfix/internal/pipeline"
)

const fused = "# text = Pedro ea casa\n" +
	"1\tPedro\t_\tPROPN\tPROPN\t_\t3\tnsubj\t_\t_\n" +
	"2\tea\t_\tCCONJ\tCCONJ\t_\t3\tcc\t_\t_\n" +
	"3\tcasa\t_\tNOUN\tNOUN\t_\t0\troot\t_\t_\n\n"

const fixed = "# text = Pedro ea casa\n" +
	"1\tPedro\t_\tPROPN\tPROPN\t_\t4\tnsubj\t_\t_\n" +
	"2\te\t_\tCCONJ\tCCONJ\t_\t3\tcc\t_\t_\n" +
	"3\ta\t_\tDET\tDET\t_\t4\tdet\t_\t_\n" +
	"4\tcasa\t_\tNOUN\tNOUN\t_\t0\troot\t_\t_\n\n"

const double = "1\tea\t_\tCCONJ\tCCONJ\t_\t2\tcc\t_\t_\n" +
	"2\teo\t_\tCCONJ\tCCONJ\t_\t0\troot\t_\t_\n\n"

// quietEnv: 日志只写 stderr 且仅 error 级别，避免在包目录下生成日志文件。
func quietEnv(t *testing.T) {
	t.Helper()
	t.Setenv("UDFIX_LOGGING_OUTPUT", "console")
	t.Setenv("UDFIX_LOGGING_LEVEL", "error")
	t.Setenv("UDFIX_CONFIG_FILE", "")
}

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errb bytes.Buffer
	code := run(context.Background(), args, &out, &errb)
	return code, out.String(), errb.String()
}

func TestRunInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "conf")
	code, out, _ := execute(t, "init", dir)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "udfix.yaml")
	_, err := os.Stat(filepath.Join(dir, "udfix.yaml"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, ".env"))
	require.NoError(t, err)

	code, out, _ = execute(t, "init", dir)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "未做改动")
}

func TestRunCorrectsFiles(t *testing.T) {
	quietEnv(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "pt_br-ud-dev.conllu")
	require.NoError(t, os.WriteFile(in, []byte(fused), 0o644))
	outDir := filepath.Join(dir, "out")
	metrics := filepath.Join(dir, "udfix.prom")

	code, _, stderr := execute(t, in, "--output-dir", outDir, "--report", "--status=false", "--metrics-file", metrics)
	require.Equal(t, exitOK, code, stderr)

	b, err := os.ReadFile(filepath.Join(outDir, "pt_br-ud-dev-fixed.conllu"))
	require.NoError(t, err)
	assert.Equal(t, fixed, string(b))

	rep, err := os.ReadFile(filepath.Join(outDir, "pt_br-ud-dev-fixed.conllu.fixes.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(rep), `"outcome":"corrected"`)

	m, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(m), "udfix_sentences_total")
}

func TestRunMetricsArePerRun(t *testing.T) {
	quietEnv(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "a.conllu")
	require.NoError(t, os.WriteFile(in, []byte(fused), 0o644))
	metrics := filepath.Join(dir, "udfix.prom")
	for i := 0; i < 2; i++ {
		code, _, stderr := execute(t, in, "--output-dir", filepath.Join(dir, "out"), "--status=false", "--metrics-file", metrics)
		require.Equal(t, exitOK, code, stderr)
	}
	m, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(m), `udfix_sentences_total{outcome="corrected"} 1`)
}

func TestRunBesideInput(t *testing.T) {
	quietEnv(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "a.conllu")
	require.NoError(t, os.WriteFile(in, []byte(fused), 0o644))
	code, _, stderr := execute(t, in, "--status=false", "--suffix", "-ok")
	require.Equal(t, exitOK, code, stderr)
	b, err := os.ReadFile(filepath.Join(dir, "a-ok.conllu"))
	require.NoError(t, err)
	assert.Equal(t, fixed, string(b))
}

func TestRunDryRun(t *testing.T) {
	quietEnv(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "a.conllu")
	require.NoError(t, os.WriteFile(in, []byte(fused), 0o644))
	code, _, stderr := execute(t, in, "--dry-run", "--status=false")
	require.Equal(t, exitOK, code, stderr)
	_, err := os.Stat(filepath.Join(dir, "a-fixed.conllu"))
	assert.True(t, os.IsNotExist(err), "试运行不得写出产物")
}

func TestRunLenientSkipExitsZero(t *testing.T) {
	quietEnv(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "a.conllu")
	require.NoError(t, os.WriteFile(in, []byte(fused+double), 0o644))
	code, _, stderr := execute(t, in, "--status=false")
	require.Equal(t, exitOK, code, stderr)
	b, err := os.ReadFile(filepath.Join(dir, "a-fixed.conllu"))
	require.NoError(t, err)
	assert.Equal(t, fixed+double, string(b), "无法处理的句子原样输出")
}

func TestRunStrictAborts(t *testing.T) {
	quietEnv(t)
	dir := t.TempDir()
	in := filepath.Join(dir, "a.conllu")
	require.NoError(t, os.WriteFile(in, []byte(fused+double), 0o644))
	code, _, stderr := execute(t, in, "--strict", "--status=false")
	require.Equal(t, exitRuntime, code)
	assert.Contains(t, stderr, "multiple fused tokens")
	_, err := os.Stat(filepath.Join(dir, "a-fixed.conllu"))
	assert.True(t, os.IsNotExist(err), "原子写中止后不留半成品")
}

func TestRunConfigErrors(t *testing.T) {
	quietEnv(t)
	cases := [][]string{
		{"a.conllu", "--concurrency", "0"},
		{"a.conllu", "--dry-run", "--stdout"},
		{"-", "a.conllu"},
		{"a.conllu", "--log-level", "loud"},
		{"a.conllu", "--no-such-flag"},
		{"a.conllu", "--config", "/nonexistent/udfix.yaml"},
	}
	for _, args := range cases {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			code, _, _ := execute(t, args...)
			assert.Equal(t, exitConfig, code)
		})
	}
}

func TestRunPipelineError(t *testing.T) {
	quietEnv(t)
	orig := pipelineRun
	defer func() { pipelineRun = orig }()
	called := false
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (pipeline.Summary, error) {
		called = true
		assert.Equal(t, []string{"x.conllu"}, set.Inputs)
		assert.Equal(t, 5, set.Concurrency)
		return pipeline.Summary{Files: 1}, errors.New("boom")
	}
	code, _, stderr := execute(t, "x.conllu", "--concurrency", "5", "--status=false")
	require.True(t, called)
	assert.Equal(t, exitRuntime, code)
	assert.Contains(t, stderr, "boom")
}

func TestRunCanceledIsQuiet(t *testing.T) {
	quietEnv(t)
	orig := pipelineRun
	defer func() { pipelineRun = orig }()
	pipelineRun = func(ctx context.Context, comp pipeline.Components, set pipeline.Settings, logger *diag.Logger) (pipeline.Summary, error) {
		return pipeline.Summary{}, context.Canceled
	}
	code, _, stderr := execute(t, "x.conllu", "--status=false")
	assert.Equal(t, exitRuntime, code)
	assert.NotContains(t, stderr, "运行失败")
}
