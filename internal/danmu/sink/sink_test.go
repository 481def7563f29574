package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsx864321/danmu/internal/danmu"
	"github.com/wsx864321/danmu/pkg/log"
	"github.com/wsx864321/danmu/pkg/xjson"
)

type fakeStream struct {
	mu   sync.Mutex
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.args = append(f.args, a)
	return redis.NewStringResult("1-0", f.err)
}

type recordWriter struct {
	mu     sync.Mutex
	events []danmu.Event
}

func (w *recordWriter) Write(ctx context.Context, ev danmu.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, ev)
	return nil
}

func (w *recordWriter) contents() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.events))
	for _, ev := range w.events {
		out = append(out, ev.Content)
	}
	return out
}

func testEvent(content string) danmu.Event {
	return danmu.Event{
		Channel:    danmu.ChannelRef{Platform: danmu.PlatformDouyu, URL: "https://www.douyu.com/9999"},
		Sender:     "alice",
		Content:    content,
		Color:      0xffffff,
		Timestamp:  1700000000,
		ReceivedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestRedisStreamWrite(t *testing.T) {
	client := &fakeStream{}
	s := NewRedisStream(client, "danmu:events", 100)

	require.NoError(t, s.Write(context.Background(), testEvent("hello")))
	require.Len(t, client.args, 1)

	args := client.args[0]
	assert.Equal(t, "danmu:events", args.Stream)
	assert.Equal(t, int64(100), args.MaxLen)
	assert.True(t, args.Approx)

	values := args.Values.(map[string]any)
	assert.Equal(t, "douyu", values["platform"])
	assert.Equal(t, "https://www.douyu.com/9999", values["channel"])

	var ev danmu.Event
	require.NoError(t, xjson.UnmarshalString(values["data"].(string), &ev))
	want := testEvent("hello")
	assert.Equal(t, want.Channel, ev.Channel)
	assert.Equal(t, want.Content, ev.Content)
	assert.Equal(t, want.Color, ev.Color)
	assert.True(t, want.ReceivedAt.Equal(ev.ReceivedAt))
}

func TestRedisStreamNoTrim(t *testing.T) {
	client := &fakeStream{}
	s := NewRedisStream(client, "danmu:events", 0)

	require.NoError(t, s.Write(context.Background(), testEvent("hello")))
	assert.Zero(t, client.args[0].MaxLen)
	assert.False(t, client.args[0].Approx)
}

func TestRedisStreamError(t *testing.T) {
	client := &fakeStream{err: errors.New("connection refused")}
	s := NewRedisStream(client, "danmu:events", 0)

	err := s.Write(context.Background(), testEvent("hello"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLogWriter(t *testing.T) {
	dir := t.TempDir()
	l := log.NewLogger(log.WithLogDir(dir), log.WithHistoryLogFileName("sink.log"))

	require.NoError(t, NewLogWriter(l).Write(context.Background(), testEvent("666")))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "sink.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"content":"666"`)
	assert.Contains(t, string(data), `"sender":"alice"`)
}

func TestPumpDeliversInOrder(t *testing.T) {
	q := danmu.NewQueue(16, nil)
	w := &recordWriter{}
	p := NewPump(q, w)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for _, c := range []string{"a", "b", "c"} {
		q.Emit(testEvent(c))
	}
	assert.Eventually(t, func() bool { return len(w.contents()) == 3 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"a", "b", "c"}, w.contents())
	assert.Equal(t, uint64(3), p.Written())
}

func TestPumpFlushesOnStop(t *testing.T) {
	q := danmu.NewQueue(16, nil)
	for _, c := range []string{"a", "b"} {
		q.Emit(testEvent(c))
	}
	w := &recordWriter{}
	p := NewPump(q, w)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))

	// ctx 已取消时 select 可能先取走事件也可能直接 flush，两种路径都要写完
	assert.Equal(t, []string{"a", "b"}, w.contents())
	assert.Zero(t, q.Len())
}

func TestPumpCountsFailures(t *testing.T) {
	q := danmu.NewQueue(4, nil)
	ok := &recordWriter{}
	bad := WriterFunc(func(ctx context.Context, ev danmu.Event) error {
		return errors.New("down")
	})
	p := NewPump(q, ok, bad)

	q.Emit(testEvent("x"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))

	assert.Equal(t, []string{"x"}, ok.contents())
	assert.Equal(t, uint64(1), p.Failed())
	assert.Zero(t, p.Written())
}
