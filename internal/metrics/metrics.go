package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultApplied = "applied"
	ResultIgnored = "ignored"
)

// Metrics 推送流事件相关指标
type Metrics struct {
	EventsTotal *prometheus.CounterVec
	Connections prometheus.Gauge
	ResetsTotal prometheus.Counter
}

// New 创建指标并注册到 reg，reg 为 nil 时不注册
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamscope_events_total",
				Help: "Total number of stream events routed to the connection store (count)",
			},
			[]string{"type", "result"},
		),
		Connections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "streamscope_connections",
				Help: "Number of tracked stream connections (count)",
			},
		),
		ResetsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "streamscope_resets_total",
				Help: "Total number of whole-store resets (count)",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.EventsTotal, m.Connections, m.ResetsTotal)
	}
	return m
}

// ObserveEvent 记录一次事件路由结果
func (m *Metrics) ObserveEvent(eventType string, applied bool) {
	if m == nil {
		return
	}
	result := ResultIgnored
	if applied {
		result = ResultApplied
	}
	m.EventsTotal.WithLabelValues(eventType, result).Inc()
}

// SetConnections 更新连接数
func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.Connections.Set(float64(n))
}

// ObserveReset 记录一次整体重置
func (m *Metrics) ObserveReset() {
	if m == nil {
		return
	}
	m.ResetsTotal.Inc()
	m.Connections.Set(0)
}
