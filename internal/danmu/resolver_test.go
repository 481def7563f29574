package danmu

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsx864321/danmu/pkg/xerr"
)

func TestFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "https://www.example.com", r.Header.Get("Referer"))
		_, _ = w.Write([]byte(`var room = {"yyid":"123","lChannelId":456}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(WithHTTPTimeout(time.Second))
	body, err := FetchPage(context.Background(), client, srv.URL+"/room", map[string]string{"Referer": "https://www.example.com"})
	require.NoError(t, err)
	assert.EqualValues(t, 123, ExtractInt64(regexp.MustCompile(`yyid":"?(\d+)"?`), body))
	assert.EqualValues(t, 456, ExtractInt64(regexp.MustCompile(`lChannelId":"?(\d+)"?`), body))
	assert.Zero(t, ExtractInt64(regexp.MustCompile(`lSubChannelId":"?(\d+)"?`), body))

	_, err = FetchPage(context.Background(), client, srv.URL+"/missing", nil)
	assert.True(t, errors.Is(err, xerr.ErrResolveFailed))
}

func TestHTTPClientBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient(WithBreaker(2, time.Minute))
	for i := 0; i < 4; i++ {
		_, err := FetchPage(context.Background(), client, srv.URL, nil)
		assert.Error(t, err)
	}
	assert.EqualValues(t, 2, hits.Load())
}

func TestRoomContextValidate(t *testing.T) {
	rc := NewRoomContext("lol", map[string]int64{"yyid": 1, "tid": 2, "sid": 0})
	err := rc.Validate("yyid", "tid", "sid")
	assert.True(t, errors.Is(err, xerr.ErrRoomUnresolved))
	assert.Contains(t, err.Error(), "sid")

	rc = NewRoomContext("lol", map[string]int64{"yyid": 1, "tid": 2, "sid": 3})
	assert.NoError(t, rc.Validate("yyid", "tid", "sid"))
	assert.Equal(t, []string{"sid", "tid", "yyid"}, rc.Names())
	assert.EqualValues(t, 3, rc.ID("sid"))
	assert.True(t, RoomContext{}.IsZero())
}

func TestNewChannelRef(t *testing.T) {
	ch, err := NewChannelRef(" Huya ", " https://www.huya.com/lpl ")
	require.NoError(t, err)
	assert.Equal(t, PlatformHuya, ch.Platform)
	assert.Equal(t, "huya:https://www.huya.com/lpl", ch.String())

	_, err = NewChannelRef("douyu", "")
	assert.True(t, errors.Is(err, xerr.ErrInvalidChannel))
}
