package danmu

import (
	"context"
	"sync"
	"time"

	"github.com/juju/ratelimit"

	"github.com/wsx864321/danmu/pkg/log"
	"github.com/wsx864321/danmu/pkg/xerr"
)

// ChannelStatus 频道运行状态快照
type ChannelStatus struct {
	Channel      ChannelRef `json:"channel"`
	State        State      `json:"state"`
	Restarts     int        `json:"restarts"`
	Restarting   bool       `json:"restarting"`
	Attempt      string     `json:"attempt,omitempty"`
	LastReceived time.Time  `json:"last_received"`
	Err          string     `json:"err,omitempty"`
}

// Supervisor 每个频道至多一个会话，意外关闭的会话按策略自动重启
type Supervisor struct {
	drivers map[Platform]Driver
	opts    supervisorOptions
	pool    *sessionPool
	bucket  *ratelimit.Bucket
	logger  *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewSupervisor 创建监督器，drivers 按平台提供编解码器与解析器
func NewSupervisor(drivers map[Platform]Driver, opts ...SupervisorOption) *Supervisor {
	o := supervisorOptions{
		policy: DefaultRestartPolicy(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	if o.metrics != nil {
		o.sessionOpts = append(o.sessionOpts, WithMetrics(o.metrics))
	}
	if o.observer != nil {
		o.sessionOpts = append(o.sessionOpts, WithStateObserver(o.observer))
	}

	rate := o.policy.Rate
	if rate <= 0 {
		rate = 1
	}
	burst := o.policy.Burst
	if burst <= 0 {
		burst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	cp := make(map[Platform]Driver, len(drivers))
	for p, d := range drivers {
		cp[p] = d
	}
	return &Supervisor{
		drivers: cp,
		opts:    o,
		pool:    newSessionPool(),
		bucket:  ratelimit.NewBucketWithRate(rate, burst),
		logger:  o.logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start 开始监控频道；已在运行时为空操作
func (sv *Supervisor) Start(ch ChannelRef, sink Sink) error {
	driver, ok := sv.drivers[ch.Platform]
	if !ok {
		return xerr.ErrUnknownPlatform.Wrapf(nil, string(ch.Platform))
	}
	if sink == nil {
		return xerr.ErrInvalidParams.Wrapf(nil, "nil sink")
	}

	sv.pool.mu.Lock()
	defer sv.pool.mu.Unlock()

	if sv.closed {
		return xerr.ErrSessionStopped
	}
	if e, ok := sv.pool.get(ch); ok && (e.restarting || !e.session.State().Terminal()) {
		return nil
	}

	e := &poolEntry{sink: sink}
	if err := sv.spawn(ch, driver, e); err != nil {
		return err
	}
	sv.pool.add(ch, e)
	sv.logger.Info(sv.ctx, "channel started", log.String("channel", ch.String()))
	return nil
}

// spawn 创建并启动会话，需持有 pool.mu
func (sv *Supervisor) spawn(ch ChannelRef, driver Driver, e *poolEntry) error {
	var s *Session
	opts := make([]SessionOption, 0, len(sv.opts.sessionOpts)+1)
	opts = append(opts, sv.opts.sessionOpts...)
	opts = append(opts, WithStateObserver(func(ch ChannelRef, _, to State) {
		if to == StateActive {
			sv.recovered(ch, s)
		}
	}))
	s = NewSession(ch, driver, e.sink, opts...)
	if err := s.Start(sv.ctx); err != nil {
		return err
	}
	e.session = s
	e.restarting = false

	sv.wg.Add(1)
	go sv.watch(ch, driver, s)
	return nil
}

// recovered 会话进入 Active，连续失败计数清零
func (sv *Supervisor) recovered(ch ChannelRef, s *Session) {
	sv.pool.mu.Lock()
	defer sv.pool.mu.Unlock()

	if e, ok := sv.pool.owns(ch, s); ok {
		e.failures = 0
		e.lastErr = nil
	}
}

// watch 等待会话结束，意外关闭时按策略重启
func (sv *Supervisor) watch(ch ChannelRef, driver Driver, s *Session) {
	defer sv.wg.Done()

	<-s.Done()
	cause := s.Err()

	sv.pool.mu.Lock()
	e, ok := sv.pool.owns(ch, s)
	if !ok || sv.closed {
		sv.pool.mu.Unlock()
		return
	}
	if cause == nil {
		sv.pool.remove(ch)
		sv.pool.mu.Unlock()
		return
	}

	e.lastErr = cause
	e.failures++
	policy := sv.opts.policy
	if policy.MaxRestarts <= 0 || e.failures > policy.MaxRestarts {
		// 留在表中供 Status/List 观察，直到显式 Start/Stop
		sv.pool.mu.Unlock()
		sv.logger.Error(sv.ctx, "channel offline",
			log.String("channel", ch.String()),
			log.Int("restarts", e.restarts),
			log.Int("failures", e.failures),
			log.String("error", cause.Error()))
		return
	}
	e.restarting = true
	delay := policy.Delay.Delay(e.failures)
	sv.pool.mu.Unlock()

	sv.logger.Warn(sv.ctx, "channel closed unexpectedly, restarting",
		log.String("channel", ch.String()),
		log.Duration("delay", delay),
		log.String("error", cause.Error()))

	if !sv.sleep(delay) {
		return
	}
	// 全局令牌桶，防止大量频道同时重启
	if wait := sv.bucket.Take(1); wait > 0 && !sv.sleep(wait) {
		return
	}

	sv.pool.mu.Lock()
	defer sv.pool.mu.Unlock()

	e, ok = sv.pool.owns(ch, s)
	if !ok || sv.closed {
		return
	}
	e.restarts++
	if err := sv.spawn(ch, driver, e); err != nil {
		e.restarting = false
		e.lastErr = err
		return
	}
	sv.opts.metrics.recordRestart(ch.Platform)
}

func (sv *Supervisor) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-sv.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Stop 停止监控频道，返回时会话已进入 Closed
func (sv *Supervisor) Stop(ch ChannelRef) error {
	sv.pool.mu.Lock()
	e, ok := sv.pool.remove(ch)
	sv.pool.mu.Unlock()
	if !ok {
		return xerr.ErrNotFound.Wrapf(nil, ch.String())
	}

	e.session.Stop()
	sv.logger.Info(sv.ctx, "channel stopped", log.String("channel", ch.String()))
	return nil
}

// Status 频道当前状态
func (sv *Supervisor) Status(ch ChannelRef) (State, bool) {
	sv.pool.mu.Lock()
	defer sv.pool.mu.Unlock()

	e, ok := sv.pool.get(ch)
	if !ok {
		return StateIdle, false
	}
	return e.session.State(), true
}

// List 所有频道的状态，按频道排序
func (sv *Supervisor) List() []ChannelStatus {
	sv.pool.mu.Lock()
	defer sv.pool.mu.Unlock()

	chs := sv.pool.getAll()
	list := make([]ChannelStatus, 0, len(chs))
	for _, ch := range chs {
		e, _ := sv.pool.get(ch)
		st := ChannelStatus{
			Channel:      ch,
			State:        e.session.State(),
			Restarts:     e.restarts,
			Restarting:   e.restarting,
			Attempt:      e.session.Attempt(),
			LastReceived: e.session.LastReceived(),
		}
		if e.lastErr != nil {
			st.Err = e.lastErr.Error()
		}
		list = append(list, st)
	}
	return list
}

// Len 登记的频道数
func (sv *Supervisor) Len() int {
	sv.pool.mu.Lock()
	defer sv.pool.mu.Unlock()
	return sv.pool.count()
}

// Close 停止所有会话并等待后台协程退出，可重复调用
func (sv *Supervisor) Close() {
	sv.pool.mu.Lock()
	if sv.closed {
		sv.pool.mu.Unlock()
		return
	}
	sv.closed = true
	entries := sv.pool.drain()
	sv.pool.mu.Unlock()

	sv.cancel()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.Stop()
		}(e.session)
	}
	wg.Wait()
	sv.wg.Wait()
	sv.logger.Info(context.Background(), "supervisor closed", log.Int("channels", len(entries)))
}
