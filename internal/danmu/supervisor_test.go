package danmu

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsx864321/danmu/pkg/xerr"
)

func testDrivers(resolver Resolver, tuning Tuning) map[Platform]Driver {
	return map[Platform]Driver{
		platformFake: {Codec: fakeCodec{}, Resolver: resolver, Tuning: tuning},
	}
}

func TestSupervisorConcurrentStartIsIdempotent(t *testing.T) {
	dialer := newFakeDialer()
	sv := NewSupervisor(testDrivers(staticResolver("1"), fastTuning()), WithSessionOptions(WithDialer(dialer)))
	defer sv.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sv.Start(testChannel(), newEventSink()))
		}()
	}
	wg.Wait()

	_ = dialedConn(t, dialer)
	require.Eventually(t, func() bool {
		st, ok := sv.Status(testChannel())
		return ok && st == StateActive
	}, waitFor, time.Millisecond)
	assert.Equal(t, 1, sv.Len())
	assert.EqualValues(t, 1, dialer.calls.Load())
}

func TestSupervisorStopAndList(t *testing.T) {
	dialer := newFakeDialer()
	sv := NewSupervisor(testDrivers(staticResolver("1"), fastTuning()), WithSessionOptions(WithDialer(dialer)))
	defer sv.Close()

	other := ChannelRef{Platform: platformFake, URL: "https://fake.invalid/2"}
	require.NoError(t, sv.Start(testChannel(), newEventSink()))
	require.NoError(t, sv.Start(other, newEventSink()))
	first := dialedConn(t, dialer)
	second := dialedConn(t, dialer)

	list := sv.List()
	require.Len(t, list, 2)
	assert.Equal(t, testChannel(), list[0].Channel)
	assert.Equal(t, other, list[1].Channel)

	require.NoError(t, sv.Stop(testChannel()))
	_, ok := sv.Status(testChannel())
	assert.False(t, ok)
	assert.True(t, first.isClosed() || second.isClosed())
	assert.True(t, errors.Is(sv.Stop(testChannel()), xerr.ErrNotFound))
	assert.Equal(t, 1, sv.Len())
}

func TestSupervisorUnknownPlatform(t *testing.T) {
	sv := NewSupervisor(testDrivers(staticResolver("1"), fastTuning()))
	defer sv.Close()

	err := sv.Start(ChannelRef{Platform: "bilibili", URL: "1"}, newEventSink())
	assert.True(t, errors.Is(err, xerr.ErrUnknownPlatform))
}

func TestSupervisorRestartsFailedSession(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	resolver := ResolverFunc(func(ctx context.Context, ch ChannelRef) (RoomContext, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return RoomContext{}, xerr.ErrRoomUnresolved
		}
		return NewRoomContext("1", map[string]int64{"room": 1}), nil
	})
	tuning := fastTuning()
	tuning.FailFastResolve = true

	dialer := newFakeDialer()
	policy := DefaultRestartPolicy()
	policy.Delay = Backoff{Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 1}
	policy.Rate = 1000
	sv := NewSupervisor(testDrivers(resolver, tuning),
		WithRestartPolicy(policy), WithSessionOptions(WithDialer(dialer)))
	defer sv.Close()

	require.NoError(t, sv.Start(testChannel(), newEventSink()))
	_ = dialedConn(t, dialer)

	require.Eventually(t, func() bool {
		list := sv.List()
		return len(list) == 1 && list[0].State == StateActive && list[0].Restarts == 1
	}, waitFor, time.Millisecond)
}

// failingResolver 按调用序号决定成败，fail 中的序号返回 ErrRoomUnresolved
func failingResolver(fail ...int) Resolver {
	var mu sync.Mutex
	calls := 0
	return ResolverFunc(func(ctx context.Context, ch ChannelRef) (RoomContext, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		for _, n := range fail {
			if n == calls || n < 0 {
				return RoomContext{}, xerr.ErrRoomUnresolved
			}
		}
		return NewRoomContext("1", map[string]int64{"room": 1}), nil
	})
}

func fastRestartPolicy(maxRestarts int) RestartPolicy {
	policy := DefaultRestartPolicy()
	policy.MaxRestarts = maxRestarts
	policy.Delay = Backoff{Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 1}
	policy.Rate = 1000
	return policy
}

func TestSupervisorRestartBudgetResetsAfterRecovery(t *testing.T) {
	tuning := fastTuning()
	tuning.FailFastResolve = true

	dialer := newFakeDialer()
	sv := NewSupervisor(testDrivers(failingResolver(1, 3), tuning),
		WithRestartPolicy(fastRestartPolicy(1)), WithSessionOptions(WithDialer(dialer)))
	defer sv.Close()

	require.NoError(t, sv.Start(testChannel(), newEventSink()))
	first := dialedConn(t, dialer)
	require.Eventually(t, func() bool {
		list := sv.List()
		return len(list) == 1 && list[0].State == StateActive && list[0].Restarts == 1
	}, waitFor, time.Millisecond)
	firstAttempt := sv.List()[0].Attempt
	assert.NotEmpty(t, firstAttempt)

	// 恢复一段时间后再次掉线，下一次解析失败仍应重启而不是离线
	time.Sleep(50 * time.Millisecond)
	first.Close()

	_ = dialedConn(t, dialer)
	require.Eventually(t, func() bool {
		list := sv.List()
		return len(list) == 1 && list[0].State == StateActive && list[0].Restarts == 2 && list[0].Err == ""
	}, waitFor, time.Millisecond)
	assert.NotEqual(t, firstAttempt, sv.List()[0].Attempt)
}

func TestSupervisorGivesUpOnConsecutiveFailures(t *testing.T) {
	tuning := fastTuning()
	tuning.FailFastResolve = true

	dialer := newFakeDialer()
	sv := NewSupervisor(testDrivers(failingResolver(-1), tuning),
		WithRestartPolicy(fastRestartPolicy(2)), WithSessionOptions(WithDialer(dialer)))
	defer sv.Close()

	require.NoError(t, sv.Start(testChannel(), newEventSink()))
	require.Eventually(t, func() bool {
		list := sv.List()
		return len(list) == 1 && list[0].State == StateClosed && !list[0].Restarting && list[0].Restarts == 2
	}, waitFor, time.Millisecond)

	// 离线后不再重启
	time.Sleep(20 * time.Millisecond)
	st := sv.List()[0]
	assert.Equal(t, 2, st.Restarts)
	assert.Contains(t, st.Err, "room context incomplete")
	assert.Zero(t, dialer.calls.Load())
}

func TestSupervisorReportsOfflineWhenRestartsDisabled(t *testing.T) {
	resolver := ResolverFunc(func(ctx context.Context, ch ChannelRef) (RoomContext, error) {
		return RoomContext{}, xerr.ErrRoomUnresolved
	})
	tuning := fastTuning()
	tuning.FailFastResolve = true
	policy := DefaultRestartPolicy()
	policy.MaxRestarts = 0

	sv := NewSupervisor(testDrivers(resolver, tuning), WithRestartPolicy(policy))
	defer sv.Close()

	require.NoError(t, sv.Start(testChannel(), newEventSink()))
	require.Eventually(t, func() bool {
		list := sv.List()
		return len(list) == 1 && list[0].State == StateClosed && list[0].Err != ""
	}, waitFor, time.Millisecond)

	// 已离线的频道可以重新 Start
	require.NoError(t, sv.Start(testChannel(), newEventSink()))
	assert.Equal(t, 1, sv.Len())
}

func TestSupervisorClose(t *testing.T) {
	dialer := newFakeDialer()
	sv := NewSupervisor(testDrivers(staticResolver("1"), fastTuning()), WithSessionOptions(WithDialer(dialer)))
	require.NoError(t, sv.Start(testChannel(), newEventSink()))
	conn := dialedConn(t, dialer)

	sv.Close()
	sv.Close()
	assert.True(t, conn.isClosed())
	assert.Zero(t, sv.Len())
	assert.True(t, errors.Is(sv.Start(testChannel(), newEventSink()), xerr.ErrSessionStopped))
}
