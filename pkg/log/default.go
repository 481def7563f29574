package log

import (
	"context"
	"sync/atomic"
)

var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(NewLogger(WithConsole(true)))
}

// InitLogger 按配置重建默认日志器，服务启动时调用一次
func InitLogger(opts ...Option) {
	defaultLogger.Store(NewLogger(opts...))
}

// Default 返回当前默认日志器
func Default() *Logger {
	return defaultLogger.Load()
}

// With 基于默认日志器派生一个携带固定字段的日志器
func With(fields ...Field) *Logger {
	return Default().With(fields...)
}

func Debug(ctx context.Context, msg string, fields ...Field) {
	Default().Debug(ctx, msg, fields...)
}

func Info(ctx context.Context, msg string, fields ...Field) {
	Default().Info(ctx, msg, fields...)
}

func Warn(ctx context.Context, msg string, fields ...Field) {
	Default().Warn(ctx, msg, fields...)
}

func Error(ctx context.Context, msg string, fields ...Field) {
	Default().Error(ctx, msg, fields...)
}

// Sync 刷新缓冲区，进程退出前调用
func Sync() error {
	return Default().Sync()
}
