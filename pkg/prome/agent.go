package prome

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wsx864321/danmu/pkg/log"
)

// Agent prometheus 拉取端点
type Agent struct {
	addr     string
	gatherer prometheus.Gatherer
	server   *http.Server
	listener net.Listener
	once     sync.Once
}

// NewAgent gatherer 为 nil 时使用默认注册表
func NewAgent(host string, port int, gatherer prometheus.Gatherer) *Agent {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Agent{
		addr:     fmt.Sprintf("%s:%d", host, port),
		gatherer: gatherer,
	}
}

// Start 开启prometheus，监听失败直接返回，serve 在后台运行
func (a *Agent) Start() error {
	var err error
	a.once.Do(func() {
		a.listener, err = net.Listen("tcp", a.addr)
		if err != nil {
			return
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
		a.server = &http.Server{Handler: mux}

		log.Info(context.Background(), "Starting prometheus agent", log.String("addr", a.listener.Addr().String()))
		go func() {
			if err := a.server.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(context.Background(), "prometheus agent serve failed", log.String("error", err.Error()))
			}
		}()
	})
	return err
}

// Addr 实际监听地址，端口为 0 时由系统分配
func (a *Agent) Addr() string {
	if a.listener == nil {
		return a.addr
	}
	return a.listener.Addr().String()
}

// Stop 关闭 agent
func (a *Agent) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}
