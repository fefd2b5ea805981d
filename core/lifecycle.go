package core

import (
	"context"

	"github.com/gocrud/ioc/logging"
)

// LifecycleEvents 管理应用程序的生命周期钩子
type LifecycleEvents struct {
	onStart []func(context.Context) error
	onStop  []func(context.Context) error
}

// NewLifecycle 创建新的生命周期管理器
func NewLifecycle() *LifecycleEvents {
	return &LifecycleEvents{
		onStart: make([]func(context.Context) error, 0),
		onStop:  make([]func(context.Context) error, 0),
	}
}

// OnStart 注册启动钩子
func (l *LifecycleEvents) OnStart(fn func(context.Context) error) {
	l.onStart = append(l.onStart, fn)
}

// OnStop 注册停止钩子
func (l *LifecycleEvents) OnStop(fn func(context.Context) error) {
	l.onStop = append(l.onStop, fn)
}

// Start 按注册顺序执行启动钩子，任一失败立即中止
func (l *LifecycleEvents) Start(ctx context.Context) error {
	for _, fn := range l.onStart {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop 倒序执行停止钩子
// 单个钩子失败只记录日志，不中断其余钩子
func (l *LifecycleEvents) Stop(ctx context.Context, logger logging.Logger) {
	for i := len(l.onStop) - 1; i >= 0; i-- {
		if err := l.onStop[i](ctx); err != nil {
			logger.Error("Lifecycle stop hook failed",
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
}
