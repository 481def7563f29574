package sink

import (
	"context"

	"github.com/wsx864321/danmu/internal/danmu"
	"github.com/wsx864321/danmu/pkg/log"
)

// LogWriter 把弹幕写进日志，没有外部存储时使用
type LogWriter struct {
	logger *log.Logger
}

func NewLogWriter(logger *log.Logger) *LogWriter {
	if logger == nil {
		logger = log.Default()
	}
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(ctx context.Context, ev danmu.Event) error {
	w.logger.Info(ctx, "danmu",
		log.String("platform", string(ev.Channel.Platform)),
		log.String("channel", ev.Channel.URL),
		log.String("sender", ev.Sender),
		log.String("content", ev.Content),
		log.Int("color", ev.Color),
		log.Int("font_size", ev.FontSize),
		log.Float64("timestamp", ev.Timestamp),
		log.Time("received_at", ev.ReceivedAt),
	)
	return nil
}
