package logger

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// New 根据运行环境构建日志器, dev 使用可读的控制台格式, 其他环境输出 JSON
func New(env string) *zap.SugaredLogger {
	var (
		l   *zap.Logger
		err error
	)
	opts := []zap.Option{
		zap.AddStacktrace(zap.ErrorLevel),
	}

	if strings.ToLower(env) == "dev" {
		l, err = zap.NewDevelopment(opts...)
	} else {
		opts = append(opts, zap.Fields(zap.String("env", env)))
		l, err = zap.NewProduction(opts...)
	}
	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}

	return l.Sugar()
}

// Nop 用于测试和未注入日志器的组件
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// OrNop 返回 l, 为 nil 时返回空日志器
func OrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return Nop()
	}
	return l
}

type contextKey struct{}

func WithContext(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext 取出上下文中的日志器, 没有时退回全局日志器
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if l, ok := ctx.Value(contextKey{}).(*zap.SugaredLogger); ok && l != nil {
		return l
	}
	return zap.S()
}
