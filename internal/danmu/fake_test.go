package danmu

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const platformFake Platform = "fake"

var errConnClosed = errors.New("fake conn closed")

type fakeConn struct {
	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	sent [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.mu.Lock()
	c.sent = append(c.sent, append([]byte(nil), data...))
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case b := <-c.in:
		return b, nil
	case <-c.closed:
		return nil, errConnClosed
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

func (c *fakeConn) push(frames ...string) {
	for _, f := range frames {
		c.in <- []byte(f)
	}
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) sentCount(payload string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.sent {
		if string(b) == payload {
			n++
		}
	}
	return n
}

type fakeDialer struct {
	err    error
	calls  atomic.Int32
	dialed chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	d.calls.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	d.dialed <- c
	return c, nil
}

// fakeCodec 文本协议：chat:<内容> 为弹幕，bad 可恢复，corrupt 失步
type fakeCodec struct {
	interval time.Duration
}

func (c fakeCodec) Platform() Platform { return platformFake }

func (c fakeCodec) Endpoint() string { return "ws://fake.invalid/ws" }

func (c fakeCodec) HeartbeatInterval() time.Duration {
	if c.interval > 0 {
		return c.interval
	}
	return time.Hour
}

func (c fakeCodec) Handshake(rc RoomContext) ([]byte, error) {
	return []byte("hello:" + rc.RoomID()), nil
}

func (c fakeCodec) Heartbeat() []byte { return []byte("ping") }

func (c fakeCodec) Decode(frame []byte) (*Event, error) {
	s := string(frame)
	switch {
	case s == "bad":
		return nil, Malformed(nil, "bad frame")
	case s == "corrupt":
		return nil, Corrupt(nil, "corrupt frame")
	case s == "panic":
		panic("boom")
	case strings.HasPrefix(s, "chat:"):
		return &Event{Sender: "tester", Content: strings.TrimPrefix(s, "chat:"), Color: 0xffffff}, nil
	default:
		return nil, nil
	}
}

type ackCodec struct {
	fakeCodec
}

func (c ackCodec) HandshakeAck(frame []byte) bool {
	return string(frame) == "ack"
}

// lineCodec 以换行分帧
type lineCodec struct {
	fakeCodec
}

func (c lineCodec) NextFrame(buf []byte) ([]byte, []byte, error) {
	if bytes.HasPrefix(buf, []byte("!")) {
		return nil, nil, Corrupt(nil, "bad length")
	}
	i := bytes.IndexByte(buf, '\n')
	if i < 0 {
		return nil, buf, nil
	}
	return buf[:i], buf[i+1:], nil
}

func staticResolver(roomID string) Resolver {
	return ResolverFunc(func(ctx context.Context, ch ChannelRef) (RoomContext, error) {
		return NewRoomContext(roomID, map[string]int64{"room": 1}), nil
	})
}

type eventSink struct {
	ch chan Event
}

func newEventSink() *eventSink {
	return &eventSink{ch: make(chan Event, 128)}
}

func (s *eventSink) Emit(ev Event) {
	s.ch <- ev
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) observe(_ ChannelRef, _, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, to)
}

func (r *stateRecorder) count(st State) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.states {
		if s == st {
			n++
		}
	}
	return n
}

func (r *stateRecorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func fastTuning() Tuning {
	return Tuning{
		ConnectTimeout:   time.Second,
		HandshakeTimeout: time.Second,
		Backoff: Backoff{
			Initial:    time.Millisecond,
			Max:        5 * time.Millisecond,
			Multiplier: 2,
		},
	}
}

func testChannel() ChannelRef {
	return ChannelRef{Platform: platformFake, URL: "https://fake.invalid/1"}
}
