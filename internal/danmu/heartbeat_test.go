package danmu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsx864321/danmu/pkg/xerr"
)

func TestSchedulerSendsHeartbeats(t *testing.T) {
	conn := newFakeConn()
	s := NewScheduler(conn, 10*time.Millisecond, time.Hour, func() []byte { return []byte("ping") })
	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return conn.sentCount("ping") >= 3 }, waitFor, time.Millisecond)
	assert.False(t, s.LastSent().IsZero())
	assert.NoError(t, s.Err())
}

func TestSchedulerLivenessTimeout(t *testing.T) {
	conn := newFakeConn()
	s := NewScheduler(conn, 10*time.Millisecond, 30*time.Millisecond, func() []byte { return []byte("ping") })
	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-s.Done():
	case <-time.After(waitFor):
		t.Fatal("liveness timeout not detected")
	}
	assert.True(t, errors.Is(s.Err(), xerr.ErrLivenessTimeout))
}

func TestSchedulerTouchKeepsAlive(t *testing.T) {
	conn := newFakeConn()
	s := NewScheduler(conn, 5*time.Millisecond, 30*time.Millisecond, func() []byte { return []byte("ping") })
	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		s.Touch()
		time.Sleep(2 * time.Millisecond)
	}
	select {
	case <-s.Done():
		t.Fatalf("unexpected failure: %v", s.Err())
	default:
	}
}

func TestSchedulerSendFailure(t *testing.T) {
	conn := newFakeConn()
	_ = conn.Close()
	s := NewScheduler(conn, 5*time.Millisecond, time.Hour, func() []byte { return []byte("ping") })
	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-s.Done():
	case <-time.After(waitFor):
		t.Fatal("send failure not reported")
	}
	assert.ErrorIs(t, s.Err(), errConnClosed)
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := NewScheduler(newFakeConn(), time.Millisecond, time.Hour, func() []byte { return nil })
	s.Start(context.Background())
	s.Stop()
	s.Stop()
	assert.NoError(t, s.Err())
}
