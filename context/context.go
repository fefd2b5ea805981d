package context

import (
	"fmt"
	"sync"

	"github.com/gocrud/ioc/beans"
	"github.com/gocrud/ioc/logging"
)

// ApplicationContext 在 BeanFactory 之上补齐应用级生命周期：
// 工厂级与实例级两条后置处理器管线、事件广播、刷新与关闭。
//
// 用法：注册定义与处理器 → Refresh（管线 + 冻结 + 急切实例化 +
// ContextRefreshedEvent）→ 使用 → Close（ContextClosedEvent + 逆序销毁）。
type ApplicationContext struct {
	factory *beans.BeanFactory
	logger  logging.Logger

	factoryPostProcessors []beans.BeanFactoryPostProcessor
	multicaster           *eventMulticaster

	mu        sync.Mutex
	refreshed bool
	closed    bool
}

// ContextOption 上下文构造选项。
type ContextOption func(*contextConfig)

type contextConfig struct {
	logger  logging.Logger
	parent  *ApplicationContext
	factory []beans.FactoryOption
}

// WithContextLogger 设置上下文及其工厂的日志记录器。
func WithContextLogger(logger logging.Logger) ContextOption {
	return func(c *contextConfig) { c.logger = logger }
}

// WithParentContext 设置父上下文，本地缺席的名称向父容器委托。
func WithParentContext(parent *ApplicationContext) ContextOption {
	return func(c *contextConfig) { c.parent = parent }
}

// WithFactoryOptions 透传额外的工厂构造选项。
func WithFactoryOptions(opts ...beans.FactoryOption) ContextOption {
	return func(c *contextConfig) { c.factory = append(c.factory, opts...) }
}

// NewApplicationContext 创建未刷新的上下文。
func NewApplicationContext(opts ...ContextOption) *ApplicationContext {
	cfg := &contextConfig{logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(cfg)
	}

	factoryOpts := append([]beans.FactoryOption{beans.WithLogger(cfg.logger)}, cfg.factory...)
	if cfg.parent != nil {
		factoryOpts = append(factoryOpts, beans.WithParent(cfg.parent.Factory()))
	}

	logger := cfg.logger.WithCategory("context")
	return &ApplicationContext{
		factory:     beans.NewBeanFactory(factoryOpts...),
		logger:      logger,
		multicaster: newEventMulticaster(logger),
	}
}

// Factory 底层 bean 工厂。刷新前用它注册定义。
func (c *ApplicationContext) Factory() *beans.BeanFactory { return c.factory }

// Logger 上下文日志记录器。
func (c *ApplicationContext) Logger() logging.Logger { return c.logger }

// AddBeanFactoryPostProcessor 程序注册的工厂级处理器，刷新时先于
// bean 形态的处理器执行。
func (c *ApplicationContext) AddBeanFactoryPostProcessor(pp beans.BeanFactoryPostProcessor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factoryPostProcessors = append(c.factoryPostProcessors, pp)
}

// RegisterBeanDefinition 透传到工厂。
func (c *ApplicationContext) RegisterBeanDefinition(name string, def *beans.BeanDefinition) error {
	return c.factory.RegisterBeanDefinition(name, def)
}

// RegisterSingleton 透传到工厂。
func (c *ApplicationContext) RegisterSingleton(name string, instance any) error {
	return c.factory.RegisterSingleton(name, instance)
}

// GetBean 透传到工厂。
func (c *ApplicationContext) GetBean(name string) (any, error) {
	return c.factory.GetBean(name)
}

// Get 泛型便捷入口。
func Get[T any](c *ApplicationContext, name string) (T, error) {
	return beans.Get[T](c.factory, name)
}

// GetByType 按类型解析唯一候选。
func GetByType[T any](c *ApplicationContext) (T, error) {
	return beans.GetByType[T](c.factory)
}

// Refresh 启动容器：两条处理器管线、配置冻结、急切实例化、刷新事件。
// 只能刷新一次；任何一步失败都会把已创建的单例销毁掉再返回错误。
func (c *ApplicationContext) Refresh() error {
	c.mu.Lock()
	if c.refreshed {
		c.mu.Unlock()
		return fmt.Errorf("context: already refreshed")
	}
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("context: already closed")
	}
	direct := append([]beans.BeanFactoryPostProcessor(nil), c.factoryPostProcessors...)
	c.mu.Unlock()

	c.logger.Info("refreshing application context")

	if err := c.doRefresh(direct); err != nil {
		c.logger.Error("context refresh failed, destroying created singletons",
			logging.Field{Key: "error", Value: err})
		c.factory.DestroySingletons()
		return err
	}

	c.mu.Lock()
	c.refreshed = true
	c.mu.Unlock()

	c.PublishEvent(ContextRefreshedEvent{BaseEvent: NewBaseEvent(c), Context: c})
	c.logger.Info("application context refreshed",
		logging.Field{Key: "beanDefinitions", Value: c.factory.BeanDefinitionCount()})
	return nil
}

func (c *ApplicationContext) doRefresh(direct []beans.BeanFactoryPostProcessor) error {
	if err := invokeBeanFactoryPostProcessors(c.factory, direct, c.logger); err != nil {
		return fmt.Errorf("context: bean factory post-processing failed: %w", err)
	}
	if err := registerBeanPostProcessors(c, c.factory); err != nil {
		return fmt.Errorf("context: bean post-processor registration failed: %w", err)
	}

	c.factory.FreezeConfiguration()

	if err := c.factory.PreInstantiateSingletons(); err != nil {
		return fmt.Errorf("context: singleton pre-instantiation failed: %w", err)
	}
	return nil
}

// IsActive 已刷新且未关闭。
func (c *ApplicationContext) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshed && !c.closed
}

// PublishEvent 向全部监听器广播事件。
func (c *ApplicationContext) PublishEvent(event ApplicationEvent) {
	c.multicaster.Multicast(event)
}

// AddApplicationListener 手工挂一个监听器。
func (c *ApplicationContext) AddApplicationListener(l ApplicationListener) {
	c.multicaster.AddListener(l)
}

func (c *ApplicationContext) addApplicationListener(l ApplicationListener) {
	c.multicaster.AddListener(l)
}

// Close 关闭容器：先广播关闭事件（单例此刻还活着），再逆依赖序销毁。
// 幂等，重复关闭是空操作。
func (c *ApplicationContext) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.logger.Info("closing application context")
	c.PublishEvent(ContextClosedEvent{BaseEvent: NewBaseEvent(c), Context: c})
	c.factory.DestroySingletons()
}
