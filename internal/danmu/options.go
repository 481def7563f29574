package danmu

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wsx864321/danmu/pkg/log"
)

const tracerName = "github.com/wsx864321/danmu/internal/danmu"

// Tuning 平台相关的运行参数，零值字段取默认值
type Tuning struct {
	// HeartbeatInterval 为 0 时使用 Codec.HeartbeatInterval
	HeartbeatInterval time.Duration
	// LivenessMultiplier 活性超时 = 心跳间隔 * 倍数
	LivenessMultiplier int
	ConnectTimeout     time.Duration
	HandshakeTimeout   time.Duration
	Backoff            Backoff
	// MaxRetries 连续重连次数上限，0 表示不限；进入 Active 后清零
	MaxRetries int
	// FailFastResolve 解析失败直接 Closed，交给调用方决定是否重试
	FailFastResolve bool
}

// DefaultTuning 默认参数
func DefaultTuning() Tuning {
	return Tuning{
		LivenessMultiplier: 3,
		ConnectTimeout:     10 * time.Second,
		HandshakeTimeout:   10 * time.Second,
		Backoff:            DefaultBackoff(),
	}
}

func (t Tuning) withDefaults(codec Codec) Tuning {
	def := DefaultTuning()
	if t.HeartbeatInterval <= 0 {
		t.HeartbeatInterval = codec.HeartbeatInterval()
	}
	if t.LivenessMultiplier <= 0 {
		t.LivenessMultiplier = def.LivenessMultiplier
	}
	if t.ConnectTimeout <= 0 {
		t.ConnectTimeout = def.ConnectTimeout
	}
	if t.HandshakeTimeout <= 0 {
		t.HandshakeTimeout = def.HandshakeTimeout
	}
	if t.Backoff.Initial <= 0 {
		t.Backoff.Initial = def.Backoff.Initial
	}
	if t.Backoff.Max <= 0 {
		t.Backoff.Max = def.Backoff.Max
	}
	if t.Backoff.Multiplier < 1 {
		t.Backoff.Multiplier = def.Backoff.Multiplier
	}
	return t
}

// LivenessTimeout 活性超时
func (t Tuning) LivenessTimeout() time.Duration {
	return t.HeartbeatInterval * time.Duration(t.LivenessMultiplier)
}

// StateObserver 状态迁移回调，在会话协程中同步调用，不得阻塞
type StateObserver func(ch ChannelRef, from, to State)

type sessionOptions struct {
	dialer   Dialer
	logger   *log.Logger
	metrics  *Metrics
	tracer   trace.Tracer
	observer StateObserver
}

type SessionOption func(opts *sessionOptions)

// WithDialer 设置传输层拨号器，默认 websocket
func WithDialer(d Dialer) SessionOption {
	return func(opts *sessionOptions) {
		opts.dialer = d
	}
}

// WithLogger 设置日志
func WithLogger(l *log.Logger) SessionOption {
	return func(opts *sessionOptions) {
		opts.logger = l
	}
}

// WithMetrics 设置指标
func WithMetrics(m *Metrics) SessionOption {
	return func(opts *sessionOptions) {
		opts.metrics = m
	}
}

// WithTracer 设置 tracer，默认取全局 TracerProvider
func WithTracer(t trace.Tracer) SessionOption {
	return func(opts *sessionOptions) {
		opts.tracer = t
	}
}

// WithStateObserver 设置状态迁移回调，多次设置时按设置顺序依次调用
func WithStateObserver(fn StateObserver) SessionOption {
	return func(opts *sessionOptions) {
		prev := opts.observer
		if prev == nil {
			opts.observer = fn
			return
		}
		opts.observer = func(ch ChannelRef, from, to State) {
			prev(ch, from, to)
			fn(ch, from, to)
		}
	}
}

func newSessionOptions(opts ...SessionOption) sessionOptions {
	o := sessionOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dialer == nil {
		o.dialer = NewWSDialer()
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	return o
}

// RestartPolicy 监督器自动重启策略
type RestartPolicy struct {
	// MaxRestarts 同一频道连续重启上限，重启后的会话进入 Active 即重新计数；0 表示不自动重启
	MaxRestarts int
	// Delay 重启退避
	Delay Backoff
	// Rate 全局每秒允许的重启次数，Burst 为令牌桶容量
	Rate  float64
	Burst int64
}

// DefaultRestartPolicy 默认策略
func DefaultRestartPolicy() RestartPolicy {
	return RestartPolicy{
		MaxRestarts: 5,
		Delay: Backoff{
			Initial:    5 * time.Second,
			Max:        5 * time.Minute,
			Multiplier: 2,
			Jitter:     0.2,
		},
		Rate:  1,
		Burst: 5,
	}
}

type supervisorOptions struct {
	policy      RestartPolicy
	sessionOpts []SessionOption
	observer    StateObserver
	metrics     *Metrics
	logger      *log.Logger
}

type SupervisorOption func(opts *supervisorOptions)

// WithRestartPolicy 设置自动重启策略
func WithRestartPolicy(p RestartPolicy) SupervisorOption {
	return func(opts *supervisorOptions) {
		opts.policy = p
	}
}

// WithSessionOptions 透传给每个会话的选项
func WithSessionOptions(sessionOpts ...SessionOption) SupervisorOption {
	return func(opts *supervisorOptions) {
		opts.sessionOpts = append(opts.sessionOpts, sessionOpts...)
	}
}

// WithSupervisorObserver 订阅所有会话的状态迁移
func WithSupervisorObserver(fn StateObserver) SupervisorOption {
	return func(opts *supervisorOptions) {
		opts.observer = fn
	}
}

// WithSupervisorMetrics 设置指标，同时透传给会话
func WithSupervisorMetrics(m *Metrics) SupervisorOption {
	return func(opts *supervisorOptions) {
		opts.metrics = m
	}
}

// WithSupervisorLogger 设置日志
func WithSupervisorLogger(l *log.Logger) SupervisorOption {
	return func(opts *supervisorOptions) {
		opts.logger = l
	}
}
