package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"udfix/internal/diag"
	"udfix/internal/report"
	"udfix/pkg/contract"
)

// - 单点并发：仅此层管理并发与背压；原子组件均为同步、无内部并发。
// - 顺序门闩：同一 FileID 的句子按 Seq 严格递增提交；乱序结果暂存，连续冲刷。
// - 首错取消：致命错误记录首错并 cancel；排空后返回该错误。
// - 严格度：宽松模式下缺陷与畸形行仅告警、原样输出；严格模式下中止。

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader    contract.Reader
	Splitter  contract.Splitter
	Corrector contract.Corrector
	Assembler contract.Assembler
	Writer    contract.Writer
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Inputs      []string
	Concurrency int
	// Strict: 首个缺陷错误或畸形行即中止当前文件并返回错误。
	Strict bool
	// Report: 为每个产物写出 <产物名>.fixes.jsonl（需 Writer 支持旁路文件）。
	Report bool
}

// Summary 运行汇总。
type Summary struct {
	Files         int
	Sentences     int
	Corrected     int
	Skipped       int
	MalformedRows int
}

// Counts 转换为终端展示用计数。
func (s Summary) Counts() diag.Counts { return diag.Counts(s) }

func (s *Summary) add(o Summary) {
	s.Sentences += o.Sentences
	s.Corrected += o.Corrected
	s.Skipped += o.Skipped
	s.MalformedRows += o.MalformedRows
}

// Run 执行完整流水线：Reader → Splitter → Corrector（并发）→ 门闩 → Assembler → Writer。
// 无候选的句子绕过纠正器直接进入门闩。
// 返回已处理部分的汇总；出错时汇总仍有效。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (Summary, error) {
	var sum Summary
	if err := sanity(comp, set); err != nil {
		return sum, fmt.Errorf("sanity: %w", err)
	}
	if set.Concurrency < 1 {
		set.Concurrency = 1
	}
	if _, ok := comp.Writer.(contract.SidecarNamer); set.Report && !ok {
		logger.Warn("pipeline", "", "report disabled: writer has no sidecar support", "", "", nil)
	}

	rtimer := logger.Start("reader", "iterate")
	err := comp.Reader.Iterate(ctx, set.Inputs, func(fid contract.FileID, rc io.ReadCloser) error {
		defer rc.Close()
		sum.Files++
		fs, err := runFile(ctx, comp, set, logger, fid, rc)
		sum.add(fs)
		if err != nil {
			return fmt.Errorf("file %s: %w", fid, err)
		}
		return nil
	})
	if err != nil {
		diag.Record(logger, "reader", "iterate failed", err, "", "")
		return sum, fmt.Errorf("reader iterate: %w", err)
	}
	rtimer.Finish("iterate", int64(sum.Files))
	diag.IncOp("reader", "finish", "success")
	return sum, nil
}

type result struct {
	orig contract.Sentence
	out  contract.Sentence
	oc   contract.Outcome
	err  error
}

// runFile 处理单个文件：一个生产者、Concurrency 个纠正 worker、一个按 Seq 提交的消费者。
func runFile(parent context.Context, comp Components, set Settings, logger *diag.Logger, fid contract.FileID, rc io.Reader) (fs Summary, err error) {
	file := string(fid)
	term := diag.GetTerminal()
	term.FileStart(file)
	fileStart := time.Now()
	defer func() { term.FileFinish(err == nil, time.Since(fileStart), fs.Counts()) }()
	ftimer := logger.StartWith("pipeline", "file", file, "")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// 主产物：单次 Writer.Write，经管道流式落盘
	pr, pw := io.Pipe()
	wdone := make(chan error, 1)
	go func() {
		werr := comp.Writer.Write(ctx, contract.ArtifactID(fid), pr)
		_ = pr.CloseWithError(closedOr(werr))
		wdone <- werr
	}()

	// 报告旁路
	var (
		rep   *report.Encoder
		rpw   *io.PipeWriter
		rdone chan error
	)
	if sn, ok := comp.Writer.(contract.SidecarNamer); ok && set.Report {
		rpr, w := io.Pipe()
		rpw, rdone = w, make(chan error, 1)
		sid := sn.Sidecar(contract.ArtifactID(fid), report.Ext)
		go func() {
			werr := comp.Writer.Write(ctx, sid, rpr)
			_ = rpr.CloseWithError(closedOr(werr))
			rdone <- werr
		}()
		rep = report.NewEncoder(rpw)
	}

	mo, observed := comp.Splitter.(contract.MalformedObserver)
	if observed {
		mo.OnMalformed(func(e *contract.MalformedRowError) error {
			logger.Warn("splitter", string(diag.CodeFormat), "malformed row", file, "",
				map[string]string{"line": strconv.Itoa(e.Line), "fields": strconv.Itoa(e.Fields)})
			diag.IncError("splitter", string(diag.CodeFormat))
			if set.Strict {
				return e
			}
			return nil
		})
		defer mo.OnMalformed(nil)
	}

	jobs := make(chan contract.Sentence, set.Concurrency*2)
	results := make(chan result, set.Concurrency*2)
	g, gctx := errgroup.WithContext(ctx)
	send := func(r result) error {
		select {
		case <-gctx.Done():
			return gctx.Err()
		case results <- r:
			return nil
		}
	}

	// 生产者
	g.Go(func() error {
		defer close(jobs)
		stimer := logger.StartWith("splitter", "split", file, "")
		n := 0
		serr := comp.Splitter.Split(gctx, fid, rc, func(s contract.Sentence) error {
			n++
			if len(s.Candidates) == 0 {
				return send(result{orig: s, out: s, oc: contract.Unchanged})
			}
			select {
			case <-gctx.Done():
				return gctx.Err()
			case jobs <- s:
				return nil
			}
		})
		if serr != nil {
			if !isCancel(serr) {
				diag.Record(logger, "splitter", "split failed", serr, file, "")
			}
			return fmt.Errorf("splitter split: %w", serr)
		}
		stimer.Finish("split", int64(n))
		diag.IncOp("splitter", "finish", "success")
		return nil
	})

	// workers
	for i := 0; i < set.Concurrency; i++ {
		g.Go(func() error {
			for s := range jobs {
				label := strconv.FormatInt(s.Seq, 10)
				logger.DebugStart("corrector", "correct", file, label, map[string]string{"line": strconv.Itoa(s.Line)})
				out, oc, cerr := comp.Corrector.Correct(gctx, s)
				if cerr != nil && isCancel(cerr) {
					return cerr
				}
				diag.IncOp("corrector", "finish", oc.String())
				if err := send(result{orig: s, out: out, oc: oc, err: cerr}); err != nil {
					return err
				}
			}
			return nil
		})
	}

	gerrCh := make(chan error, 1)
	go func() {
		gerrCh <- g.Wait()
		close(results)
	}()

	var firstErr error
	fail := func(e error) {
		if firstErr == nil {
			firstErr = e
			cancel()
		}
	}

	commit := func(x result) error {
		label := strconv.FormatInt(x.orig.Seq, 10)
		fs.Sentences++
		fs.MalformedRows += len(x.orig.Malformed)
		if set.Strict && !observed && len(x.orig.Malformed) > 0 {
			return fmt.Errorf("%w: %s:%d", contract.ErrMalformedRow, file, x.orig.Malformed[0])
		}
		code := ""
		switch x.oc {
		case contract.Corrected:
			fs.Corrected++
			// 末位缺陷的合成 head 指向句末之后：告警但照常输出
			if verr := contract.ValidateSentence(x.out); verr != nil {
				logger.Warn("corrector", string(diag.CodeInvariant), "corrected sentence has unresolved head", file, label,
					map[string]string{"err": verr.Error()})
			}
		case contract.Skipped:
			if x.err == nil {
				x.err = contract.ErrUnsupportedDefect
			}
			if set.Strict {
				return fmt.Errorf("sentence %d (line %d): %w", x.orig.Seq, x.orig.Line, x.err)
			}
			fs.Skipped++
			code = string(diag.Classify(x.err))
			logger.Warn("corrector", code, "sentence emitted unmodified", file, label,
				map[string]string{"err": x.err.Error(), "line": strconv.Itoa(x.orig.Line)})
			diag.IncError("corrector", code)
		}
		diag.IncSentence(x.oc.String())
		if rep != nil && x.oc != contract.Unchanged {
			if err := rep.Encode(report.Build(x.orig, x.out, x.oc, code, x.err)); err != nil {
				return fmt.Errorf("report encode: %w", err)
			}
		}
		return nil
	}

	// 提交门闩：按 Seq 连续冲刷；就绪即装配并写入管道
	expect := int64(0)
	buf := make(map[int64]result)
	for r := range results {
		if firstErr != nil {
			continue // 排空
		}
		buf[r.orig.Seq] = r
		var ready []contract.Sentence
		for {
			x, ok := buf[expect]
			if !ok {
				break
			}
			delete(buf, expect)
			expect++
			if cerr := commit(x); cerr != nil {
				fail(cerr)
				break
			}
			ready = append(ready, x.out)
		}
		if firstErr != nil || len(ready) == 0 {
			continue
		}
		rd, aerr := comp.Assembler.Assemble(ctx, fid, ready)
		if aerr != nil {
			diag.Record(logger, "assembler", "assemble failed", aerr, file, "")
			fail(fmt.Errorf("assembler assemble: %w", aerr))
			continue
		}
		diag.IncOp("assembler", "finish", "success")
		if _, cerr := io.Copy(pw, rd); cerr != nil {
			fail(fmt.Errorf("writer stream: %w", cerr))
			continue
		}
		term.FileProgress(fs.Counts())
	}
	if gerr := <-gerrCh; gerr != nil && firstErr == nil {
		firstErr = gerr
	}

	_ = pw.CloseWithError(firstErr)
	if rpw != nil {
		_ = rpw.CloseWithError(firstErr)
	}
	werr := <-wdone
	var rerr error
	if rdone != nil {
		rerr = <-rdone
	}
	if firstErr != nil {
		if !isCancel(firstErr) || parent.Err() == nil {
			diag.Record(logger, "pipeline", "file aborted", firstErr, file, "")
		}
		return fs, firstErr
	}
	if werr = multierr.Append(werr, rerr); werr != nil {
		diag.Record(logger, "writer", "write failed", werr, file, "")
		return fs, fmt.Errorf("writer write: %w", werr)
	}
	diag.IncOp("writer", "finish", "success")
	ftimer.Finish("file", int64(fs.Sentences))
	return fs, nil
}

func sanity(c Components, s Settings) error {
	if c.Reader == nil || c.Splitter == nil || c.Corrector == nil || c.Assembler == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	if len(s.Inputs) == 0 {
		return errors.New("pipeline: empty inputs")
	}
	return nil
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// closedOr: 写端已结束时让管道另一端尽快返回。
func closedOr(err error) error {
	if err != nil {
		return err
	}
	return io.ErrClosedPipe
}
