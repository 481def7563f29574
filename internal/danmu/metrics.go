package danmu

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 弹幕会话指标，nil 接收者上的方法均为空操作
type Metrics struct {
	// 解码出的弹幕事件数（按平台）
	EventsTotal *prometheus.CounterVec
	// 解码错误数（按平台、类型 malformed/corrupt）
	DecodeErrors *prometheus.CounterVec
	// 状态迁移次数（按平台、目标状态）
	Transitions *prometheus.CounterVec
	// 重连次数（按平台）
	Reconnects *prometheus.CounterVec
	// 当前 Active 会话数（按平台）
	ActiveSessions *prometheus.GaugeVec
	// 队列丢弃事件数
	DroppedEvents prometheus.Counter
	// 监督器重启次数（按平台）
	Restarts *prometheus.CounterVec
}

// NewMetrics 创建指标，namespace 为空时使用 danmu
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "danmu"
	}

	return &Metrics{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "解码出的弹幕事件数",
			},
			[]string{"platform"},
		),
		DecodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decode_errors_total",
				Help:      "解码错误数",
			},
			[]string{"platform", "kind"}, // kind: malformed/corrupt
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_transitions_total",
				Help:      "会话状态迁移次数",
			},
			[]string{"platform", "state"},
		),
		Reconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconnects_total",
				Help:      "会话重连次数",
			},
			[]string{"platform"},
		),
		ActiveSessions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "当前处于 Active 的会话数",
			},
			[]string{"platform"},
		),
		DroppedEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dropped_events_total",
				Help:      "队列满时丢弃的事件数",
			},
		),
		Restarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "supervisor_restarts_total",
				Help:      "监督器重启会话次数",
			},
			[]string{"platform"},
		),
	}
}

// Register 注册指标到 Prometheus Registry
func (m *Metrics) Register(registerer prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.EventsTotal,
		m.DecodeErrors,
		m.Transitions,
		m.Reconnects,
		m.ActiveSessions,
		m.DroppedEvents,
		m.Restarts,
	}

	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return err
		}
	}

	return nil
}

func (m *Metrics) recordEvent(p Platform) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(string(p)).Inc()
}

func (m *Metrics) recordDecodeError(p Platform, err error) {
	if m == nil {
		return
	}
	kind := "malformed"
	if IsUnrecoverable(err) {
		kind = "corrupt"
	}
	m.DecodeErrors.WithLabelValues(string(p), kind).Inc()
}

func (m *Metrics) recordTransition(p Platform, from, to State) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(string(p), to.String()).Inc()
	if to == StateActive {
		m.ActiveSessions.WithLabelValues(string(p)).Inc()
	}
	if from == StateActive {
		m.ActiveSessions.WithLabelValues(string(p)).Dec()
	}
	if to == StateReconnecting {
		m.Reconnects.WithLabelValues(string(p)).Inc()
	}
}

func (m *Metrics) recordDrop() {
	if m == nil {
		return
	}
	m.DroppedEvents.Inc()
}

func (m *Metrics) recordRestart(p Platform) {
	if m == nil {
		return
	}
	m.Restarts.WithLabelValues(string(p)).Inc()
}

// OnDrop 作为 Queue 的丢弃回调
func (m *Metrics) OnDrop(Event) {
	m.recordDrop()
}
