package sink

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/wsx864321/danmu/internal/danmu"
	"github.com/wsx864321/danmu/pkg/log"
)

// Writer 下游写入方，可以阻塞，由 Pump 在独立协程中调用
type Writer interface {
	Write(ctx context.Context, ev danmu.Event) error
}

// WriterFunc 函数适配器
type WriterFunc func(ctx context.Context, ev danmu.Event) error

func (f WriterFunc) Write(ctx context.Context, ev danmu.Event) error {
	return f(ctx, ev)
}

const defaultFlushTimeout = 5 * time.Second

// Pump 把有界队列里的事件搬运给下游，会话侧只看到非阻塞的 Queue.Emit
type Pump struct {
	queue        *danmu.Queue
	writers      []Writer
	flushTimeout time.Duration
	failed       atomic.Uint64
	written      atomic.Uint64
}

// NewPump 创建搬运器
func NewPump(queue *danmu.Queue, writers ...Writer) *Pump {
	return &Pump{
		queue:        queue,
		writers:      writers,
		flushTimeout: defaultFlushTimeout,
	}
}

// Run 阻塞直到 ctx 结束；结束后在 flushTimeout 内尽量写完队列中剩余事件
func (p *Pump) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.flush(context.WithoutCancel(ctx))
			return nil
		case ev := <-p.queue.C():
			p.write(ctx, ev)
		}
	}
}

func (p *Pump) flush(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.flushTimeout)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			if n := p.queue.Len(); n > 0 {
				log.Warn(ctx, "pump flush timeout", log.Int("remaining", n))
			}
			return
		case ev := <-p.queue.C():
			p.write(ctx, ev)
		default:
			return
		}
	}
}

func (p *Pump) write(ctx context.Context, ev danmu.Event) {
	ok := true
	for _, w := range p.writers {
		if err := w.Write(ctx, ev); err != nil {
			ok = false
			log.Warn(ctx, "sink write failed",
				log.String("channel", ev.Channel.String()),
				log.String("error", err.Error()),
			)
		}
	}
	if ok {
		p.written.Add(1)
	} else {
		p.failed.Add(1)
	}
}

// Written 全部下游写入成功的事件数
func (p *Pump) Written() uint64 {
	return p.written.Load()
}

// Failed 至少一个下游写入失败的事件数
func (p *Pump) Failed() uint64 {
	return p.failed.Load()
}
