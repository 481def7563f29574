package log

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	Options

	logger *zap.Logger
}

func NewLogger(opts ...Option) *Logger {
	opt := defaultOptions
	for _, o := range opts {
		o.apply(&opt)
	}
	log := &Logger{
		Options: opt,
	}
	log.logger = zap.New(log.newCore(), zap.WithCaller(true), zap.AddCallerSkip(log.callerSkip))

	return log
}

// newCore debug 模式输出彩色控制台；console 输出 stderr JSON；否则写滚动文件
func (l *Logger) newCore() zapcore.Core {
	if l.debug {
		return zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig()), zapcore.AddSync(os.Stdout), zapcore.DebugLevel)
	}

	var ws zapcore.WriteSyncer
	if l.console {
		ws = zapcore.AddSync(os.Stderr)
	} else {
		ws = l.getFileLogWriter()
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(l.encoderConfig()), ws, l.level)
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:       "T",
		LevelKey:      "L",
		NameKey:       "N",
		CallerKey:     "C",
		MessageKey:    "M",
		StacktraceKey: "S",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel: func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(levelColor(l))
		},
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}
}

func (l *Logger) encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

func (l *Logger) getFileLogWriter() (writeSyncer zapcore.WriteSyncer) {
	lumberJackLogger := &lumberjack.Logger{
		Filename:   filepath.Join(l.logDir, l.filename),
		MaxSize:    l.maxSize,
		MaxBackups: l.maxBackups,
		MaxAge:     l.maxAge,
		Compress:   l.compress,
	}

	return zapcore.AddSync(lumberJackLogger)
}

// With 派生一个附带固定字段的日志器，例如某个直播间会话的 platform/channel
func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{
		Options: l.Options,
		logger:  l.logger.With(fields...),
	}
}

// Debug debug日志
func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.Log(ctx, DebugLevel, msg, fields...)
}

// Info info日志
func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.Log(ctx, InfoLevel, msg, fields...)
}

// Warn warn日志
func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.Log(ctx, WarnLevel, msg, fields...)
}

// Error error日志
func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.Log(ctx, ErrorLevel, msg, fields...)
}

// Log 记录日志，ctx 中有 span 时附带 trace_id/span_id
func (l *Logger) Log(ctx context.Context, level Level, msg string, fields ...Field) {
	if !l.Enabled(level) {
		return
	}
	if sf := spanFields(ctx); sf != nil {
		fields = append(sf, fields...)
	}
	l.logger.Log(level, msg, fields...)
}

// Enabled 该级别是否会输出，构造字段代价较高时先判断
func (l *Logger) Enabled(level Level) bool {
	return l.logger.Core().Enabled(level)
}

// Sync 刷新底层缓冲
func (l *Logger) Sync() error {
	return l.logger.Sync()
}

// levelColor 返回带颜色的日志级别字符串
func levelColor(l zapcore.Level) string {
	switch l {
	case zapcore.DebugLevel:
		return "\033[36mDEBUG\033[0m" // 青色
	case zapcore.InfoLevel:
		return "\033[32mINFO\033[0m" // 绿色
	case zapcore.WarnLevel:
		return "\033[33mWARN\033[0m" // 黄色
	case zapcore.ErrorLevel:
		return "\033[31mERROR\033[0m" // 红色
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return "\033[35mFATAL\033[0m" // 紫色
	default:
		return l.String()
	}
}
