package server

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/wsx864321/danmu/internal/danmu"
	"github.com/wsx864321/danmu/internal/danmu/pkg/config"
	"github.com/wsx864321/danmu/internal/danmu/platform/douyu"
	"github.com/wsx864321/danmu/internal/danmu/platform/huya"
	"github.com/wsx864321/danmu/internal/danmu/sink"
	"github.com/wsx864321/danmu/pkg/log"
	"github.com/wsx864321/danmu/pkg/prome"
	"github.com/wsx864321/danmu/pkg/trace"
	"github.com/wsx864321/danmu/pkg/xerr"
)

const shutdownTimeout = 10 * time.Second

// Run 启动弹幕采集服务，阻塞直到收到退出信号
func Run(configPath string) {
	// 初始化配置
	config.Init(configPath)

	// 初始化日志
	log.InitLogger(
		log.WithDebug(config.GetLogDebug()),
		log.WithLogDir(config.GetLogDir()),
		log.WithHistoryLogFileName(config.GetLogFilename()),
	)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx); err != nil {
		log.Error(ctx, "danmu server exited", log.String("error", err.Error()))
		panic(err)
	}
	log.Info(context.Background(), "danmu server stopped")
}

func run(ctx context.Context) error {
	metrics := danmu.NewMetrics("")
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(registry); err != nil {
		return err
	}

	if config.GetMetricsEnable() {
		agent := prome.NewAgent(config.GetMetricsHost(), config.GetMetricsPort(), registry)
		if err := agent.Start(); err != nil {
			return err
		}
		defer shutdown(agent.Stop)
	}

	if config.GetTraceEnable() {
		err := trace.StartAgent(trace.Options{
			Endpoint:    config.GetTraceEndpoint(),
			ServiceName: config.GetTraceServiceName(),
			Sampler:     config.GetTraceSampler(),
		})
		if err != nil {
			return err
		}
		defer shutdown(trace.StopAgent)
	}

	writers, err := newWriters()
	if err != nil {
		return err
	}
	queue := danmu.NewQueue(config.GetQueueSize(), metrics.OnDrop)
	pump := sink.NewPump(queue, writers...)

	client := danmu.NewHTTPClient(
		danmu.WithHTTPTimeout(config.GetHTTPTimeout()),
		danmu.WithBreaker(config.GetHTTPBreakerFailures(), config.GetHTTPBreakerTimeout()),
	)
	supervisor := danmu.NewSupervisor(newDrivers(client, config.GetPlatformTuning),
		danmu.WithRestartPolicy(config.GetRestartPolicy()),
		danmu.WithSupervisorMetrics(metrics),
		danmu.WithSupervisorObserver(logTransition),
	)

	channels, err := config.GetChannels()
	if err != nil {
		return err
	}
	for _, ch := range channels {
		if err := supervisor.Start(ch, queue); err != nil {
			log.Error(ctx, "start channel failed", log.String("channel", ch.String()), log.String("error", err.Error()))
			continue
		}
		log.Info(ctx, "channel started", log.String("channel", ch.String()))
	}

	// 先停会话再停 pump，保证停止前已入队的事件都能被写出
	pumpCtx, stopPump := context.WithCancel(context.Background())
	g := errgroup.Group{}
	g.Go(func() error {
		return pump.Run(pumpCtx)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info(context.Background(), "danmu server shutting down", log.Int("channels", supervisor.Len()))
		supervisor.Close()
		stopPump()
		return nil
	})

	log.Info(ctx, "danmu server started",
		log.Int("channels", len(channels)),
		log.String("sink", config.GetSinkType()),
	)
	err = g.Wait()
	log.Info(context.Background(), "pump stopped",
		log.Uint64("written", pump.Written()),
		log.Uint64("failed", pump.Failed()),
		log.Uint64("dropped", queue.Dropped()),
	)
	return err
}

// newDrivers 注册所有支持的平台
func newDrivers(client danmu.HTTPClient, tuning func(danmu.Platform) danmu.Tuning) map[danmu.Platform]danmu.Driver {
	return map[danmu.Platform]danmu.Driver{
		danmu.PlatformHuya: {
			Codec:    huya.NewCodec(),
			Resolver: huya.NewResolver(client),
			Tuning:   tuning(danmu.PlatformHuya),
		},
		danmu.PlatformDouyu: {
			Codec:    douyu.NewCodec(),
			Resolver: douyu.NewResolver(client),
			Tuning:   tuning(danmu.PlatformDouyu),
		},
	}
}

func newWriters() ([]sink.Writer, error) {
	switch typ := config.GetSinkType(); typ {
	case "log":
		return []sink.Writer{sink.NewLogWriter(log.Default())}, nil
	case "redis":
		client := sink.NewRedisClient(sink.RedisOptions{
			Endpoint: config.GetRedisEndpoint(),
			Password: config.GetRedisPassword(),
			DB:       config.GetRedisDB(),
			PoolSize: config.GetRedisPoolSize(),
		})
		return []sink.Writer{sink.NewRedisStream(client, config.GetRedisStream(), config.GetRedisMaxLen())}, nil
	default:
		return nil, xerr.ErrInvalidParams.Wrapf(nil, "unknown sink type: "+typ)
	}
}

func logTransition(ch danmu.ChannelRef, from, to danmu.State) {
	switch to {
	case danmu.StateActive, danmu.StateReconnecting, danmu.StateClosed:
		log.Info(context.Background(), "channel state changed",
			log.String("channel", ch.String()),
			log.String("from", from.String()),
			log.String("to", to.String()),
		)
	}
}

func shutdown(fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn(ctx, "shutdown failed", log.String("error", err.Error()))
	}
}
