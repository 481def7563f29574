package danmu

import (
	"sync"
	"sync/atomic"
)

// Sink 事件消费方。Emit 在会话协程中同步调用，实现不得阻塞。
type Sink interface {
	Emit(ev Event)
}

// SinkFunc 函数适配器
type SinkFunc func(ev Event)

func (f SinkFunc) Emit(ev Event) {
	f(ev)
}

// Queue 有界事件队列，满时丢弃最旧事件，保证会话永不因消费方阻塞
type Queue struct {
	ch      chan Event
	mu      sync.Mutex
	dropped atomic.Uint64
	onDrop  func(ev Event)
}

// NewQueue 创建容量为 size 的队列
func NewQueue(size int, onDrop func(ev Event)) *Queue {
	if size <= 0 {
		size = 1024
	}
	return &Queue{
		ch:     make(chan Event, size),
		onDrop: onDrop,
	}
}

// Emit 非阻塞入队，多个会话可并发调用
func (q *Queue) Emit(ev Event) {
	// 多生产者时“腾位置+入队”需要原子，否则可能互相挤掉刚入队的事件
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		select {
		case q.ch <- ev:
			return
		default:
		}
		select {
		case old := <-q.ch:
			q.dropped.Add(1)
			if q.onDrop != nil {
				q.onDrop(old)
			}
		default:
		}
	}
}

// C 消费端通道
func (q *Queue) C() <-chan Event {
	return q.ch
}

// Dropped 累计丢弃数
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Len 当前积压
func (q *Queue) Len() int {
	return len(q.ch)
}
