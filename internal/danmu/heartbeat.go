package danmu

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wsx864321/danmu/pkg/xerr"
)

// Scheduler 心跳调度器，只在会话 Active 期间运行。
//
// 每个 tick 先检查距上次收到数据的时间，超过 timeout 即判定连接静默失活；
// 否则向连接写入一次心跳。两种失败都会关闭 Done，由会话负责拆除连接。
type Scheduler struct {
	conn     Conn
	interval time.Duration
	timeout  time.Duration
	payload  func() []byte

	lastRecv atomic.Int64
	lastSent atomic.Int64

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler 创建心跳调度器，timeout 为活性超时
func NewScheduler(conn Conn, interval, timeout time.Duration, payload func() []byte) *Scheduler {
	return &Scheduler{
		conn:     conn,
		interval: interval,
		timeout:  timeout,
		payload:  payload,
		done:     make(chan struct{}),
	}
}

// Start 启动心跳循环，只能调用一次
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.Touch()

	s.wg.Add(1)
	go s.loop()
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			if idle := now.Sub(s.LastReceived()); idle > s.timeout {
				s.fail(xerr.ErrLivenessTimeout.Wrapf(nil, "idle "+idle.Truncate(time.Millisecond).String()))
				return
			}
			if err := s.conn.Send(s.ctx, s.payload()); err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.fail(err)
				return
			}
			s.lastSent.Store(time.Now().UnixNano())
		}
	}
}

func (s *Scheduler) fail(err error) {
	s.err = err
	close(s.done)
}

// Touch 记录一次收包，由会话在每条入站消息后调用
func (s *Scheduler) Touch() {
	s.lastRecv.Store(time.Now().UnixNano())
}

// LastReceived 最近一次收包时间
func (s *Scheduler) LastReceived() time.Time {
	return time.Unix(0, s.lastRecv.Load())
}

// LastSent 最近一次成功发送心跳的时间，未发送过为零值
func (s *Scheduler) LastSent() time.Time {
	n := s.lastSent.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Done 活性超时或心跳写失败时关闭
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Err Done 关闭后返回失败原因
func (s *Scheduler) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Stop 停止并等待循环退出，可重复调用
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
	s.wg.Wait()
}
