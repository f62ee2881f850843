package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"

	cfgpkg "udfix/internal/config"
	"udfix/internal/diag"
	"udfix/internal/pipeline"
)

// 退出码：0 成功（宽松模式下含跳过/畸形行）；1 运行失败（含严格模式中止）；3 配置错误。
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 3
)

var pipelineRun = pipeline.Run

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// exitError 携带退出码穿过 cobra。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func fail(code int, format string, a ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, a...)}
}

type runFlags struct {
	config      string
	concurrency int
	strict      bool
	report      bool
	outputDir   string
	suffix      string
	dryRun      bool
	stdout      bool
	metricsFile string
	logLevel    string
	status      bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV）
	_ = gotenv.Load(".env")

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if !errors.Is(ee.err, context.Canceled) {
			fprintf(stderr, "%v\n", ee.err)
		}
		return ee.code
	}
	// cobra 层的旗标/参数错误
	fprintf(stderr, "%v\n", err)
	return exitConfig
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var fl runFlags
	root := &cobra.Command{
		Use:   "udfix [roots...]",
		Short: "拆分 CoNLL-U 语料中的融合 token（ea → e + a，eo → e + o）并重编号",
		Long: "udfix 逐句扫描 CoNLL-U 文件，将融合拼写拆为连词与限定词两行，\n" +
			"同步重编号 ID 与 HEAD，产物写为 <name>-fixed.conllu。\n" +
			"roots 可为文件、目录或 \"-\"（STDIN → STDOUT）；缺省处理 pt_br-ud-{train,dev,test}.conllu。",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCorrect(cmd, args, &fl, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	f := root.Flags()
	f.StringVar(&fl.config, "config", "", "配置文件路径（yaml/json/toml）；缺省读取 "+cfgpkg.EnvConfigFile+" 或 ./udfix.yaml")
	f.IntVar(&fl.concurrency, "concurrency", 0, "纠正并发度（覆盖配置）")
	f.BoolVar(&fl.strict, "strict", false, "严格模式：首个缺陷错误或畸形行即中止")
	f.BoolVar(&fl.report, "report", false, "为每个产物写出 .fixes.jsonl 纠正报告")
	f.StringVar(&fl.outputDir, "output-dir", "", "输出目录；缺省写在输入旁")
	f.StringVar(&fl.suffix, "suffix", "", "产物名后缀（默认 -fixed）")
	f.BoolVar(&fl.dryRun, "dry-run", false, "试运行：只统计不写出")
	f.BoolVar(&fl.stdout, "stdout", false, "全部产物写到标准输出")
	f.StringVar(&fl.metricsFile, "metrics-file", "", "运行结束时以 Prometheus 文本格式写出指标")
	f.StringVar(&fl.logLevel, "log-level", "", "日志级别 debug|info|warn|error（覆盖配置）")
	f.BoolVar(&fl.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")

	root.AddCommand(newInitCmd(stdout))
	return root
}

func newInitCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "在指定目录生成 udfix.yaml 与 .env 模板（已存在则跳过，不覆盖）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			written, err := cfgpkg.WriteTemplate(dir)
			if err != nil {
				return fail(exitConfig, "生成默认配置失败: %w", err)
			}
			if len(written) == 0 {
				fprintf(stdout, "模板已存在，未做改动: %s\n", dir)
			}
			for _, p := range written {
				fprintf(stdout, "已生成 %s\n", p)
			}
			return nil
		},
	}
}

func runCorrect(cmd *cobra.Command, args []string, fl *runFlags, stderr io.Writer) error {
	start := time.Now()
	corrID := uuid.NewString()
	// 指标按运行计：同进程多次运行不累计
	diag.ResetMetrics()

	v := cfgpkg.NewViper()
	if err := cfgpkg.BindFlags(v, cmd.Flags()); err != nil {
		return fail(exitConfig, "配置解析失败: %w", err)
	}
	cfg, err := cfgpkg.Load(v, fl.config)
	if err != nil {
		return fail(exitConfig, "配置解析失败: %w", err)
	}
	ov := cfgpkg.Overrides{Inputs: args, DryRun: fl.dryRun, Stdout: fl.stdout}
	if cmd.Flags().Changed("output-dir") {
		ov.OutputDir = &fl.outputDir
	}
	if cmd.Flags().Changed("suffix") {
		ov.Suffix = &fl.suffix
	}
	if cfg, err = cfgpkg.Apply(cfg, ov); err != nil {
		return fail(exitConfig, "配置校验失败: %w", err)
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		return fail(exitConfig, "配置校验失败: %w", err)
	}

	logger, err := diag.NewLogger(corrID, cfg.Logging)
	if err != nil {
		return fail(exitConfig, "日志初始化失败: %w", err)
	}
	defer logger.Close()

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		diag.Record(logger, "config", "assemble failed", err, "", "")
		return fail(exitConfig, "装配失败: %w", err)
	}

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	term := diag.NewTerminal(stderr, fl.status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)
	mode := "lenient"
	if cfg.Strict {
		mode = "strict"
	}
	term.RunStart(cfg.Concurrency, mode)

	logger.DebugStart("config", "effective", "", "", map[string]string{
		"inputs_count": strconv.Itoa(len(cfg.Inputs)),
		"concurrency":  strconv.Itoa(cfg.Concurrency),
		"mode":         mode,
		"report":       strconv.FormatBool(cfg.Report),
		"reader":       cfg.Components.Reader,
		"splitter":     cfg.Components.Splitter,
		"corrector":    cfg.Components.Corrector,
		"assembler":    cfg.Components.Assembler,
		"writer":       cfg.Components.Writer,
	})

	t := logger.Start("pipeline", "run")
	sum, runErr := pipelineRun(cmd.Context(), comp, set, logger)
	kv := map[string]string{
		"files":          strconv.Itoa(sum.Files),
		"sentences":      strconv.Itoa(sum.Sentences),
		"corrected":      strconv.Itoa(sum.Corrected),
		"skipped":        strconv.Itoa(sum.Skipped),
		"malformed_rows": strconv.Itoa(sum.MalformedRows),
	}
	if runErr != nil {
		code := diag.Record(logger, "pipeline", "first error", runErr, "", "")
		kv["code"] = string(code)
		logger.InfoFinish("pipeline", "summary", start, int64(sum.Sentences), kv)
	} else {
		t.Finish("run", int64(sum.Sentences))
		diag.IncOp("pipeline", "finish", "success")
		logger.InfoFinish("pipeline", "summary", start, int64(sum.Sentences), kv)
	}
	term.RunFinish(runErr == nil, time.Since(start), sum.Counts())

	if cfg.MetricsFile != "" {
		if err := diag.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("diag", string(diag.Classify(err)), "metrics file not written", "", "",
				map[string]string{"err": err.Error(), "path": cfg.MetricsFile})
		}
	}
	if runErr != nil {
		return &exitError{code: exitRuntime, err: fmt.Errorf("运行失败: %w", runErr)}
	}
	return nil
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }
