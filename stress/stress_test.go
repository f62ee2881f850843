package stress

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cfgpkg "udfix/internal/config"
	"udfix/internal/pipeline"
)

// corpus 生成 n 句合成语料：每三句中一句含融合 token、一句含多词区间、一句同句双融合（跳过）。
func corpus(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "# sent_id = g%d\n", i)
		switch i % 3 {
		case 0:
			b.WriteString("1\tCasa\t_\tNOUN\tNOUN\t_\t0\troot\t_\t_\n")
			b.WriteString("2\tea\t_\tCCONJ\tCCONJ\t_\t3\tcc\t_\t_\n")
			b.WriteString("3\trua\t_\tNOUN\tNOUN\t_\t1\tconj\t_\t_\n")
		case 1:
			b.WriteString("1-2\tdo\t_\t_\t_\t_\t_\t_\t_\t_\n")
			b.WriteString("1\tde\t_\tADP\tADP\t_\t3\tcase\t_\t_\n")
			b.WriteString("2\to\t_\tDET\tDET\t_\t3\tdet\t_\t_\n")
			b.WriteString("3\trio\t_\tNOUN\tNOUN\t_\t0\troot\t_\t_\n")
		default:
			b.WriteString("1\tea\t_\tCCONJ\tCCONJ\t_\t2\tcc\t_\t_\n")
			b.WriteString("2\tcasa\t_\tNOUN\tNOUN\t_\t0\troot\t_\t_\n")
			b.WriteString("3\teo\t_\tCCONJ\tCCONJ\t_\t4\tcc\t_\t_\n")
			b.WriteString("4\tcarro\t_\tNOUN\tNOUN\t_\t2\tconj\t_\t_\n")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func baseConfig(input, outDir string) cfgpkg.Config {
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{input}
	cfg.Logging.Level = "error"
	cfg.Logging.Output = "console"
	cfg.Options.Writer = map[string]any{"output_dir": outDir, "atomic": true, "flat": true}
	return cfg
}

// TestStress 在不同并发度下运行流水线，校验产物一致并记录延迟统计。
func TestStress(t *testing.T) {
	if testing.Short() {
		t.Skip("stress")
	}
	const sentences = 30000
	in := filepath.Join(t.TempDir(), "big.conllu")
	require.NoError(t, os.WriteFile(in, []byte(corpus(sentences)), 0o644))

	var reference string
	levels := []int{1, 8, 16, 32, 64}
	for _, conc := range levels {
		t.Run(fmt.Sprintf("concurrency_%d", conc), func(t *testing.T) {
			const runs = 3
			latencies := make([]time.Duration, 0, runs)
			for i := 0; i < runs; i++ {
				outDir := t.TempDir()
				cfg := baseConfig(in, outDir)
				cfg.Concurrency = conc
				comp, set, err := cfgpkg.Assemble(cfg)
				require.NoError(t, err)

				start := time.Now()
				sum, err := pipeline.Run(context.Background(), comp, set, nil)
				dur := time.Since(start)
				require.NoError(t, err, "run %d", i)
				require.Equal(t, sentences, sum.Sentences)
				require.Equal(t, sentences/3, sum.Corrected)
				require.Equal(t, sentences/3, sum.Skipped)
				latencies = append(latencies, dur)

				b, err := os.ReadFile(filepath.Join(outDir, "big-fixed.conllu"))
				require.NoError(t, err)
				if reference == "" {
					reference = string(b)
				} else {
					require.Equal(t, reference, string(b), "并发度不得影响产物")
				}
			}
			sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
			var total time.Duration
			for _, d := range latencies {
				total += d
			}
			avg := total / time.Duration(len(latencies))
			idx := int(math.Ceil(float64(len(latencies))*0.95)) - 1
			if idx < 0 {
				idx = 0
			}
			t.Logf("并发%d 句数%d 平均%v 95%%延迟%v", conc, sentences, avg, latencies[idx])
		})
	}
}
