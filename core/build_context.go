package core

import (
	"fmt"
	"sync"

	"github.com/gocrud/ioc/beans"
	"github.com/gocrud/ioc/config"
	appcontext "github.com/gocrud/ioc/context"
	"github.com/gocrud/ioc/hosting"
	"github.com/gocrud/ioc/logging"
)

// Configurator 配置器函数类型
// 配置器用于扩展应用程序，可以注册 Bean 定义、添加托管服务等
type Configurator func(*BuildContext)

// BuildContext 构建上下文
// 提供给配置器的上下文环境，包含容器、配置、日志等核心组件
type BuildContext struct {
	// context 应用上下文（包裹 Bean 容器）
	context *appcontext.ApplicationContext

	// configuration 配置对象
	configuration config.Configuration

	// logger 日志记录器
	logger logging.Logger

	// environment 环境信息
	environment Environment

	// lifecycle 生命周期钩子
	lifecycle *LifecycleEvents

	// hostedServices 通过 AddHostedService 直接添加的托管服务实例
	hostedServices []hosting.HostedService

	// cleanups 清理函数列表，应用停止时按注册顺序的逆序执行
	cleanups     map[string]func()
	cleanupOrder []string

	mu sync.RWMutex
}

// Context 获取应用上下文
func (c *BuildContext) Context() *appcontext.ApplicationContext {
	return c.context
}

// Factory 获取 Bean 容器
// 用于直接注册 Bean 定义或查询已注册的定义
func (c *BuildContext) Factory() *beans.BeanFactory {
	return c.context.Factory()
}

// GetLogger 获取日志记录器
func (c *BuildContext) GetLogger() logging.Logger {
	return c.logger
}

// GetConfiguration 获取配置对象
func (c *BuildContext) GetConfiguration() config.Configuration {
	return c.configuration
}

// GetEnvironment 获取环境信息
func (c *BuildContext) GetEnvironment() Environment {
	return c.environment
}

// Lifecycle 获取生命周期钩子
func (c *BuildContext) Lifecycle() *LifecycleEvents {
	return c.lifecycle
}

// RegisterBean 注册一个 Bean 定义
// 配置阶段的注册失败属于编程错误，直接以 Fatal 结束
func (c *BuildContext) RegisterBean(name string, def *beans.BeanDefinition) {
	if err := c.context.RegisterBeanDefinition(name, def); err != nil {
		c.logger.Fatal("Failed to register bean definition",
			logging.Field{Key: "name", Value: name},
			logging.Field{Key: "error", Value: err.Error()})
	}
}

// RegisterSingleton 注册一个现成的单例实例
func (c *BuildContext) RegisterSingleton(name string, instance any) {
	if err := c.context.RegisterSingleton(name, instance); err != nil {
		c.logger.Fatal("Failed to register singleton",
			logging.Field{Key: "name", Value: name},
			logging.Field{Key: "error", Value: err.Error()})
	}
}

// AddHostedService 添加托管服务实例
// 服务随应用启动，应用关闭时按相反顺序停止
func (c *BuildContext) AddHostedService(service hosting.HostedService) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hostedServices = append(c.hostedServices, service)
}

// SetCleanup 设置资源清理函数
// 同名注册会覆盖旧函数，执行顺序以首次注册为准
func (c *BuildContext) SetCleanup(key string, cleanup func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.cleanups[key]; !exists {
		c.cleanupOrder = append(c.cleanupOrder, key)
	}
	c.cleanups[key] = cleanup
}

// runCleanups 按注册顺序的逆序执行清理函数
func (c *BuildContext) runCleanups(logger logging.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.cleanupOrder) - 1; i >= 0; i-- {
		key := c.cleanupOrder[i]
		logger.Debug("Running cleanup", logging.Field{Key: "key", Value: key})
		c.cleanups[key]()
	}
	c.cleanups = make(map[string]func())
	c.cleanupOrder = nil
}

// ConfigureOptions 配置选项模式
// T: 配置类型
// section: 配置节名称（例如 "app", "database"）
//
// 将配置节绑定到 T 并以两种形式注册为单例:
//   - "options.<section>"          静态 Option[T]
//   - "options.<section>.monitor"  实时 OptionMonitor[T]
//
// 使用示例: core.ConfigureOptions[AppSetting](ctx, "app")
func ConfigureOptions[T any](ctx *BuildContext, section string) config.Option[T] {
	cache := config.NewOptionsCache[T](ctx.configuration, section)

	opt := config.NewOption(cache.Get())
	ctx.RegisterSingleton(fmt.Sprintf("options.%s", section), opt)
	ctx.RegisterSingleton(fmt.Sprintf("options.%s.monitor", section), config.NewOptionMonitor(cache))

	ctx.logger.Debug("Configured options",
		logging.Field{Key: "section", Value: section})
	return opt
}
