package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/wsx864321/danmu/internal/danmu"
)

// Init 初始化配置
func Init(path string) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}
}

// GetLogDebug 获取日志 Debug 模式配置
func GetLogDebug() bool {
	return viper.GetBool("log.debug")
}

// GetLogDir 获取日志目录
func GetLogDir() string {
	dir := viper.GetString("log.dir")
	if dir == "" {
		return "/home/www/logs/applogs"
	}
	return dir
}

// GetLogFilename 获取日志文件名
func GetLogFilename() string {
	filename := viper.GetString("log.filename")
	if filename == "" {
		return "danmu.log"
	}
	return filename
}

// GetMetricsEnable 是否开启 prometheus agent
func GetMetricsEnable() bool {
	return viper.GetBool("metrics.enable")
}

// GetMetricsHost 获取 prometheus agent 监听地址
func GetMetricsHost() string {
	return viper.GetString("metrics.host")
}

// GetMetricsPort 获取 prometheus agent 端口
func GetMetricsPort() int {
	port := viper.GetInt("metrics.port")
	if port <= 0 {
		return 9101
	}
	return port
}

// GetTraceEnable 是否开启trace
func GetTraceEnable() bool {
	return viper.GetBool("trace.enable")
}

// GetTraceEndpoint 获取 jaeger collector 地址
func GetTraceEndpoint() string {
	return viper.GetString("trace.endpoint")
}

// GetTraceSampler 获取trace采样率
func GetTraceSampler() float64 {
	sampler := viper.GetFloat64("trace.sampler")
	if sampler <= 0 || sampler > 1 {
		return 1
	}
	return sampler
}

// GetTraceServiceName 获取服务名
func GetTraceServiceName() string {
	name := viper.GetString("trace.service_name")
	if name == "" {
		return "danmu"
	}
	return name
}

// GetRestartPolicy 获取监督器自动重启策略
func GetRestartPolicy() danmu.RestartPolicy {
	policy := danmu.DefaultRestartPolicy()
	if viper.IsSet("supervisor.max_restarts") {
		policy.MaxRestarts = viper.GetInt("supervisor.max_restarts")
	}
	if d := viper.GetDuration("supervisor.restart_delay"); d > 0 {
		policy.Delay.Initial = d
	}
	if d := viper.GetDuration("supervisor.restart_delay_max"); d > 0 {
		policy.Delay.Max = d
	}
	if rate := viper.GetFloat64("supervisor.restart_rate"); rate > 0 {
		policy.Rate = rate
	}
	if limit := viper.GetInt64("supervisor.restart_limit"); limit > 0 {
		policy.Burst = limit
	}
	if policy.Delay.Max < policy.Delay.Initial {
		policy.Delay.Max = policy.Delay.Initial
	}
	return policy
}

// GetSinkType 获取事件下游类型：log / redis
func GetSinkType() string {
	typ := viper.GetString("sink.type")
	if typ == "" {
		return "log"
	}
	return typ
}

// GetQueueSize 获取事件队列容量
func GetQueueSize() int {
	size := viper.GetInt("sink.queue_size")
	if size <= 0 {
		return 4096
	}
	return size
}

// GetRedisEndpoint 获取 Redis 地址
func GetRedisEndpoint() string {
	return viper.GetString("redis.endpoint")
}

// GetRedisPassword 获取 Redis 密码
func GetRedisPassword() string {
	return viper.GetString("redis.password")
}

// GetRedisDB 获取 Redis DB
func GetRedisDB() int {
	return viper.GetInt("redis.db")
}

// GetRedisPoolSize 获取 Redis 连接池大小
func GetRedisPoolSize() int {
	size := viper.GetInt("redis.pool_size")
	if size <= 0 {
		return 10
	}
	return size
}

// GetRedisStream 获取事件写入的 stream key
func GetRedisStream() string {
	stream := viper.GetString("redis.stream")
	if stream == "" {
		return "danmu:events"
	}
	return stream
}

// GetRedisMaxLen 获取 stream 近似最大长度，0 表示不裁剪
func GetRedisMaxLen() int64 {
	n := viper.GetInt64("redis.max_len")
	if n < 0 {
		return 0
	}
	return n
}

// GetHTTPTimeout 获取房间页请求超时
func GetHTTPTimeout() time.Duration {
	d := viper.GetDuration("http.timeout")
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

// GetHTTPBreakerFailures 获取熔断连续失败阈值
func GetHTTPBreakerFailures() uint32 {
	n := viper.GetUint32("http.breaker_failures")
	if n == 0 {
		return 5
	}
	return n
}

// GetHTTPBreakerTimeout 获取熔断打开后的冷却时间
func GetHTTPBreakerTimeout() time.Duration {
	d := viper.GetDuration("http.breaker_timeout")
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetPlatformTuning 获取平台运行参数，未配置的字段保持零值，由会话补默认值
func GetPlatformTuning(platform danmu.Platform) danmu.Tuning {
	prefix := "platforms." + string(platform) + "."
	t := danmu.DefaultTuning()
	if d := viper.GetDuration(prefix + "heartbeat_interval"); d > 0 {
		t.HeartbeatInterval = d
	}
	if n := viper.GetInt(prefix + "liveness_multiplier"); n > 0 {
		t.LivenessMultiplier = n
	}
	if d := viper.GetDuration(prefix + "connect_timeout"); d > 0 {
		t.ConnectTimeout = d
	}
	if d := viper.GetDuration(prefix + "handshake_timeout"); d > 0 {
		t.HandshakeTimeout = d
	}
	if d := viper.GetDuration(prefix + "backoff_initial"); d > 0 {
		t.Backoff.Initial = d
	}
	if d := viper.GetDuration(prefix + "backoff_max"); d > 0 {
		t.Backoff.Max = d
	}
	if m := viper.GetFloat64(prefix + "backoff_multiplier"); m >= 1 {
		t.Backoff.Multiplier = m
	}
	if viper.IsSet(prefix + "backoff_jitter") {
		t.Backoff.Jitter = viper.GetFloat64(prefix + "backoff_jitter")
	}
	if n := viper.GetInt(prefix + "max_retries"); n > 0 {
		t.MaxRetries = n
	}
	// 默认解析失败也自动重试
	if viper.IsSet(prefix + "auto_retry_resolve") {
		t.FailFastResolve = !viper.GetBool(prefix + "auto_retry_resolve")
	}
	return t
}

// GetChannels 获取启动时订阅的直播间列表
func GetChannels() ([]danmu.ChannelRef, error) {
	var raw []danmu.ChannelRef
	if err := viper.UnmarshalKey("channels", &raw); err != nil {
		return nil, err
	}
	channels := make([]danmu.ChannelRef, 0, len(raw))
	for _, c := range raw {
		ch, err := danmu.NewChannelRef(c.Platform, c.URL)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, nil
}
