package diag

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 进程内指标（私有 Registry，不暴露 HTTP 端点）：
// - udfix_op_total{comp,stage,result}
// - udfix_error_total{comp,code}
// - udfix_op_duration_ms{comp,stage}
// - udfix_sentences_total{outcome}
type metrics struct {
	reg       *prometheus.Registry
	ops       *prometheus.CounterVec
	errs      *prometheus.CounterVec
	dur       *prometheus.HistogramVec
	sentences *prometheus.CounterVec
}

var (
	metMu sync.RWMutex
	met   = newMetrics()
)

func newMetrics() *metrics {
	m := &metrics{
		reg: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "udfix_op_total", Help: "Component operations by stage and result.",
		}, []string{"comp", "stage", "result"}),
		errs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "udfix_error_total", Help: "Classified errors by component.",
		}, []string{"comp", "code"}),
		dur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "udfix_op_duration_ms",
			Help:    "Stage duration in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"comp", "stage"}),
		sentences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "udfix_sentences_total", Help: "Sentences by correction outcome.",
		}, []string{"outcome"}),
	}
	m.reg.MustRegister(m.ops, m.errs, m.dur, m.sentences)
	return m
}

func current() *metrics {
	metMu.RLock()
	defer metMu.RUnlock()
	return met
}

// ResetMetrics 丢弃已累计的全部指标；runCorrect 在每次运行开始时调用。
func ResetMetrics() {
	metMu.Lock()
	met = newMetrics()
	metMu.Unlock()
}

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) {
	current().ops.WithLabelValues(comp, stage, result).Inc()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	current().errs.WithLabelValues(comp, code).Inc()
}

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	current().dur.WithLabelValues(comp, stage).Observe(float64(durMS))
}

// IncSentence 按纠正结果累加句数（unchanged|corrected|skipped）。
func IncSentence(outcome string) {
	current().sentences.WithLabelValues(outcome).Inc()
}

// WriteTextfile 以文本暴露格式写出全部指标（textfile collector 约定，原子替换）。
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, current().reg)
}
