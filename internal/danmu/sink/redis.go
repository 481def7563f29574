package sink

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wsx864321/danmu/internal/danmu"
	"github.com/wsx864321/danmu/pkg/xjson"
)

// StreamClient XADD 所需的最小能力，*redis.Client 满足
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisOptions Redis 连接参数
type RedisOptions struct {
	Endpoint string
	Password string
	DB       int
	PoolSize int
}

// NewRedisClient 创建 Redis 客户端
func NewRedisClient(opts RedisOptions) *redis.Client {
	// todo 当前都是非集群模式，后续可支持集群模式
	if opts.Endpoint == "" {
		panic("redis.endpoint is required")
	}
	return redis.NewClient(&redis.Options{
		Addr:     opts.Endpoint,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})
}

// RedisStream 每条弹幕一个 stream entry
type RedisStream struct {
	client StreamClient
	stream string
	maxLen int64
}

// NewRedisStream maxLen 为 0 时不裁剪
func NewRedisStream(client StreamClient, stream string, maxLen int64) *RedisStream {
	return &RedisStream{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

func (s *RedisStream) Write(ctx context.Context, ev danmu.Event) error {
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"platform": string(ev.Channel.Platform),
			"channel":  ev.Channel.URL,
			"data":     xjson.MarshalString(ev),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s failed: %w", s.stream, err)
	}
	return nil
}
