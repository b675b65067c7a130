package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rushteam/shoprec/pipeline"
)

// Metrics 是推荐引擎的 Prometheus 指标。
//
// 指标分类：
//   - 训练：次数（按结果）、耗时、最近一次训练时间
//   - 服务：推荐次数（按方法、结果）、过滤命中数、各 Node 耗时
type Metrics struct {
	TrainRuns       *prometheus.CounterVec
	TrainDuration   prometheus.Histogram
	LastTrained     prometheus.Gauge
	Recommendations *prometheus.CounterVec
	Filtered        *prometheus.CounterVec
	NodeDuration    *prometheus.HistogramVec
}

// NewMetrics 在 reg 上注册指标；reg 为 nil 时使用独立的 Registry（不暴露）。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		TrainRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shoprec_train_runs_total",
				Help: "Total number of training runs by result",
			},
			[]string{"result"},
		),
		TrainDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shoprec_train_duration_seconds",
				Help:    "Duration of training runs in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),
		LastTrained: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "shoprec_last_trained_timestamp_seconds",
				Help: "Unix time of the snapshot currently served",
			},
		),
		Recommendations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shoprec_recommendations_total",
				Help: "Total number of recommendation requests by method and result",
			},
			[]string{"method", "result"},
		),
		Filtered: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shoprec_filtered_items_total",
				Help: "Total number of candidates removed by each filter",
			},
			[]string{"filter"},
		),
		NodeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shoprec_node_duration_seconds",
				Help:    "Duration of pipeline nodes in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"node", "kind"},
		),
	}
}

// observeNode 是 pipeline.Hook。
func (m *Metrics) observeNode(node pipeline.Node, took time.Duration, _ int, _ error) {
	m.NodeDuration.WithLabelValues(node.Name(), string(node.Kind())).Observe(took.Seconds())
}

func (m *Metrics) recordTrain(result string, took time.Duration) {
	m.TrainRuns.WithLabelValues(result).Inc()
	if took > 0 {
		m.TrainDuration.Observe(took.Seconds())
	}
}

func (m *Metrics) recordRecommend(method string, err error) {
	result := "ok"
	if err != nil {
		result = resultLabel(err)
	}
	m.Recommendations.WithLabelValues(method, result).Inc()
}
