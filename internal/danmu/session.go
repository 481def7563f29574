package danmu

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wsx864321/danmu/pkg/log"
	"github.com/wsx864321/danmu/pkg/xerr"
)

// maxPending 流式分帧时未消费字节的上限，超过视为失步
const maxPending = 8 << 20

// Session 单个直播间的弹幕会话。
//
// 所有状态只由 run 协程修改；外部通过 Start/Stop 发起请求，
// 通过 State/Done/Err 观察结果。Closed 后实例不可复用。
type Session struct {
	ch     ChannelRef
	codec  Codec
	res    Resolver
	tuning Tuning
	sink   Sink
	opts   sessionOptions
	logger *log.Logger

	state    atomic.Int32
	lastRecv atomic.Int64
	attempt  atomic.Pointer[string]

	mu            sync.Mutex
	started       bool
	stopRequested bool
	cancel        context.CancelFunc

	done      chan struct{}
	closeOnce sync.Once
	err       error

	// 以下字段只在 run 协程中访问
	rc         RoomContext
	retries    int
	conn       Conn
	hb         *Scheduler
	pending    []byte
	quitReader chan struct{}
	readerDone chan struct{}
}

type inbound struct {
	data []byte
	err  error
}

// NewSession 创建会话，处于 Idle 状态
func NewSession(ch ChannelRef, driver Driver, sink Sink, opts ...SessionOption) *Session {
	o := newSessionOptions(opts...)
	s := &Session{
		ch:     ch,
		codec:  driver.Codec,
		res:    driver.Resolver,
		tuning: driver.Tuning.withDefaults(driver.Codec),
		sink:   sink,
		opts:   o,
		logger: o.logger.With(log.String("platform", string(ch.Platform)), log.String("channel", ch.URL)),
		done:   make(chan struct{}),
	}
	s.state.Store(int32(StateIdle))
	return s
}

// Channel 会话对应的直播间
func (s *Session) Channel() ChannelRef {
	return s.ch
}

// State 当前状态，可并发调用
func (s *Session) State() State {
	return State(s.state.Load())
}

// LastReceived 最近一次收到数据的时间
func (s *Session) LastReceived() time.Time {
	n := s.lastRecv.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Attempt 当前连接尝试的 id，未开始时为空
func (s *Session) Attempt() string {
	if p := s.attempt.Load(); p != nil {
		return *p
	}
	return ""
}

// Done 进入 Closed 后关闭
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err 会话非主动结束的原因；主动 Stop 或未结束时返回 nil
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Start 启动会话，ctx 取消等同于 Stop
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopRequested {
		return xerr.ErrSessionStopped
	}
	if s.started {
		return xerr.ErrSessionRunning
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(runCtx)
	return nil
}

// Stop 请求关闭并等待进入 Closed，可重复调用
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopRequested = true
	started := s.started
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	if !started {
		s.closeOnce.Do(func() {
			s.transition(StateClosing)
			s.transition(StateClosed)
			close(s.done)
		})
	}
	<-s.done
}

func (s *Session) run(ctx context.Context) {
	var cause error
	defer func() {
		s.transition(StateClosed)
		s.closeOnce.Do(func() {
			s.err = cause
			close(s.done)
		})
	}()

	for {
		err := s.connect(ctx)
		if ctx.Err() != nil {
			s.transition(StateClosing)
			s.teardown()
			return
		}

		if isResolveError(err) && s.tuning.FailFastResolve {
			s.teardown()
			s.logger.Warn(ctx, "resolve failed, session closed", log.String("error", err.Error()))
			cause = err
			return
		}

		s.transition(StateReconnecting)
		s.teardown()
		s.retries++
		if s.tuning.MaxRetries > 0 && s.retries > s.tuning.MaxRetries {
			s.logger.Error(ctx, "retry budget exhausted", log.Int("retries", s.retries-1), log.String("error", err.Error()))
			cause = xerr.ErrRetryExhausted.Wrap(err)
			return
		}

		delay := s.tuning.Backoff.Delay(s.retries)
		s.logger.Warn(ctx, "session reconnecting",
			log.Int("retries", s.retries),
			log.Duration("delay", delay),
			log.String("error", err.Error()))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.transition(StateClosing)
			return
		case <-timer.C:
		}
	}
}

// connect 完成一次 Resolving → Connecting → Handshaking → Active 并驱动收包，
// 直到出错或 ctx 取消。资源由 teardown 统一释放。
func (s *Session) connect(ctx context.Context) error {
	attemptID := uuid.NewString()
	s.attempt.Store(&attemptID)

	ctx, span := s.opts.tracer.Start(ctx, "danmu.session.attempt", trace.WithAttributes(
		attribute.String("danmu.platform", string(s.ch.Platform)),
		attribute.String("danmu.channel", s.ch.URL),
		attribute.String("danmu.attempt", attemptID),
		attribute.Int("danmu.retries", s.retries),
	))
	defer span.End()

	logger := s.logger.With(log.String("attempt", attemptID))
	err := s.drive(ctx, logger, span)
	if err != nil && ctx.Err() == nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Session) drive(ctx context.Context, logger *log.Logger, span trace.Span) error {
	s.transition(StateResolving)
	rc, err := s.resolve(ctx)
	if err != nil {
		return err
	}
	s.rc = rc
	span.AddEvent("resolved", trace.WithAttributes(attribute.String("danmu.room_id", rc.RoomID())))
	logger.Debug(ctx, "room resolved", log.String("room_id", rc.RoomID()))

	s.transition(StateConnecting)
	if err := s.dial(ctx); err != nil {
		return err
	}

	frames := make(chan inbound, 1)
	s.quitReader = make(chan struct{})
	s.readerDone = make(chan struct{})
	go s.readLoop(ctx, s.conn, frames, s.quitReader, s.readerDone)

	s.transition(StateHandshaking)
	payload, err := s.codec.Handshake(s.rc)
	if err != nil {
		return err
	}
	if err := s.conn.Send(ctx, payload); err != nil {
		return err
	}
	logger.Debug(ctx, "handshake sent", log.Int("bytes", len(payload)))

	acker, needAck := s.codec.(HandshakeAcker)
	framer, _ := s.codec.(Framer)

	var ackTimeout <-chan time.Time
	if needAck {
		timer := time.NewTimer(s.tuning.HandshakeTimeout)
		defer timer.Stop()
		ackTimeout = timer.C
	} else {
		s.activate(ctx, logger)
	}

	var hbDone <-chan struct{}
	for {
		if s.hb != nil {
			hbDone = s.hb.Done()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ackTimeout:
			return xerr.ErrHandshakeTimeout.Wrapf(nil, s.tuning.HandshakeTimeout.String())
		case <-hbDone:
			return s.hb.Err()
		case in := <-frames:
			if in.err != nil {
				return in.err
			}
			s.lastRecv.Store(time.Now().UnixNano())
			if s.hb != nil {
				s.hb.Touch()
			}

			chunks, carveErr := s.carve(framer, in.data)
			for _, frame := range chunks {
				if s.hb == nil {
					// 确认前的帧不解码
					if acker.HandshakeAck(frame) {
						ackTimeout = nil
						s.activate(ctx, logger)
					}
					continue
				}
				if err := s.handle(ctx, logger, frame); err != nil {
					return err
				}
			}
			if carveErr != nil {
				s.opts.metrics.recordDecodeError(s.ch.Platform, carveErr)
				logger.Warn(ctx, "stream desynchronized", log.String("error", carveErr.Error()))
				return carveErr
			}
		}
	}
}

func (s *Session) resolve(ctx context.Context) (RoomContext, error) {
	rc, err := s.res.Resolve(ctx, s.ch)
	if err != nil {
		if isResolveError(err) {
			return RoomContext{}, err
		}
		return RoomContext{}, xerr.ErrResolveFailed.Wrap(err)
	}
	if rc.IsZero() {
		return RoomContext{}, xerr.ErrRoomUnresolved.Wrapf(nil, "empty room context")
	}
	return rc, nil
}

func (s *Session) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, s.tuning.ConnectTimeout)
	defer cancel()

	var header http.Header
	if hp, ok := s.codec.(HeaderProvider); ok {
		header = hp.DialHeader()
	}
	conn, err := s.opts.dialer.Dial(dialCtx, s.codec.Endpoint(), header)
	if err != nil {
		if !errors.Is(err, xerr.ErrTransportFailed) {
			err = xerr.ErrTransportFailed.Wrapf(err, "dial")
		}
		return err
	}
	s.conn = conn
	return nil
}

func (s *Session) activate(ctx context.Context, logger *log.Logger) {
	s.transition(StateActive)
	s.retries = 0
	s.pending = s.pending[:0]

	s.hb = NewScheduler(s.conn, s.tuning.HeartbeatInterval, s.tuning.LivenessTimeout(), s.codec.Heartbeat)
	s.hb.Start(ctx)
	logger.Info(ctx, "session active",
		log.Duration("heartbeat", s.tuning.HeartbeatInterval),
		log.Duration("liveness", s.tuning.LivenessTimeout()))
}

// carve 按 Framer 从字节流中切帧；未实现 Framer 的平台一条传输消息即一帧
func (s *Session) carve(framer Framer, data []byte) ([][]byte, error) {
	if framer == nil {
		return [][]byte{data}, nil
	}

	s.pending = append(s.pending, data...)
	var frames [][]byte
	for len(s.pending) > 0 {
		frame, rest, err := framer.NextFrame(s.pending)
		if err != nil {
			s.pending = nil
			return frames, err
		}
		if frame == nil {
			break
		}
		frames = append(frames, frame)
		s.pending = rest
	}
	if len(s.pending) > maxPending {
		size := len(s.pending)
		s.pending = nil
		return frames, Corrupt(nil, fmt.Sprintf("pending %d bytes", size))
	}
	return frames, nil
}

// handle 解码一帧并投递；只有不可恢复的错误才会返回
func (s *Session) handle(ctx context.Context, logger *log.Logger, frame []byte) error {
	ev, err := s.decode(frame)
	if err != nil {
		s.opts.metrics.recordDecodeError(s.ch.Platform, err)
		if IsUnrecoverable(err) {
			logger.Warn(ctx, "unrecoverable frame", log.String("error", err.Error()))
			return err
		}
		logger.Debug(ctx, "drop malformed frame", log.String("error", err.Error()), log.Int("bytes", len(frame)))
		return nil
	}
	if ev == nil {
		if namer, ok := s.codec.(FrameNamer); ok && logger.Enabled(log.DebugLevel) {
			logger.Debug(ctx, "skip frame", log.String("frame", namer.FrameName(frame)), log.Int("bytes", len(frame)))
		}
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	ev.Channel = s.ch
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	s.opts.metrics.recordEvent(s.ch.Platform)
	s.sink.Emit(*ev)
	return nil
}

func (s *Session) decode(frame []byte) (ev *Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			ev, err = nil, Malformed(nil, fmt.Sprintf("decode panic: %v", r))
		}
	}()
	return s.codec.Decode(frame)
}

func (s *Session) readLoop(ctx context.Context, conn Conn, out chan<- inbound, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		data, err := conn.Receive(ctx)
		select {
		case out <- inbound{data: data, err: err}:
		case <-quit:
			return
		}
		if err != nil {
			return
		}
	}
}

// teardown 停心跳、关连接、等读协程退出并丢弃房间上下文
func (s *Session) teardown() {
	if s.hb != nil {
		s.hb.Stop()
		s.hb = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	if s.quitReader != nil {
		close(s.quitReader)
		<-s.readerDone
		s.quitReader, s.readerDone = nil, nil
	}
	s.rc = RoomContext{}
	s.pending = nil
}

func (s *Session) transition(to State) {
	from := State(s.state.Swap(int32(to)))
	if from == to {
		return
	}
	s.logger.Debug(context.Background(), "state transition", log.String("from", from.String()), log.String("to", to.String()))
	s.opts.metrics.recordTransition(s.ch.Platform, from, to)
	if s.opts.observer != nil {
		s.opts.observer(s.ch, from, to)
	}
}

func isResolveError(err error) bool {
	return errors.Is(err, xerr.ErrResolveFailed) || errors.Is(err, xerr.ErrRoomUnresolved)
}
