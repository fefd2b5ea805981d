package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/gocrud/ioc/beans"
	"github.com/gocrud/ioc/config"
	appcontext "github.com/gocrud/ioc/context"
	"github.com/gocrud/ioc/hosting"
	"github.com/gocrud/ioc/logging"
)

// Application 应用程序接口
type Application interface {
	Run() error
	RunAsync(ctx context.Context) error
	Stop(ctx context.Context) error
	Context() *appcontext.ApplicationContext
	Configuration() config.Configuration
	Logger() logging.Logger
	Environment() Environment
	GetService(ptr any)
}

// ApplicationBuilder 应用程序构建器
type ApplicationBuilder struct {
	environment     string
	configBuilder   *config.ConfigurationBuilder
	loggingBuilder  *logging.LoggingBuilder
	configurators   []Configurator
	factoryOptions  []beans.FactoryOption
	shutdownTimeout time.Duration
	mu              sync.RWMutex
}

// NewApplicationBuilder 创建应用程序构建器
func NewApplicationBuilder() *ApplicationBuilder {
	return &ApplicationBuilder{
		environment:     "development",
		configBuilder:   config.NewConfigurationBuilder(),
		loggingBuilder:  logging.NewLoggingBuilder(),
		configurators:   make([]Configurator, 0),
		shutdownTimeout: 30 * time.Second,
	}
}

// UseEnvironment 设置环境
func (b *ApplicationBuilder) UseEnvironment(env string) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.environment = env
	return b
}

// ConfigureConfiguration 配置配置系统
func (b *ApplicationBuilder) ConfigureConfiguration(configure func(*config.ConfigurationBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.configBuilder)
	}
	return b
}

// ConfigureLogging 配置日志系统
func (b *ApplicationBuilder) ConfigureLogging(configure func(*logging.LoggingBuilder)) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.loggingBuilder)
	}
	return b
}

// ConfigureContainer 追加 Bean 容器的构建选项
// 例如注入自定义类型转换器或禁用循环引用支持
func (b *ApplicationBuilder) ConfigureContainer(opts ...beans.FactoryOption) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.factoryOptions = append(b.factoryOptions, opts...)
	return b
}

// Configure 添加配置器（支持链式调用和可变参数）
// 接受任何 func(*BuildContext) 类型的函数
func (b *ApplicationBuilder) Configure(configurators ...interface{}) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range configurators {
		// 尝试转换为 Configurator
		switch fn := c.(type) {
		case Configurator:
			b.configurators = append(b.configurators, fn)
		case func(*BuildContext):
			b.configurators = append(b.configurators, fn)
		default:
			panic(fmt.Sprintf("configurator must be func(*BuildContext), got %T", c))
		}
	}

	return b
}

// AddExtension 添加应用程序扩展
func (b *ApplicationBuilder) AddExtension(ext Extension) *ApplicationBuilder {
	validateExtension(ext)

	b.mu.Lock()
	defer b.mu.Unlock()

	if ac, ok := ext.(AppConfigurator); ok {
		b.configurators = append(b.configurators, ac.ConfigureBuilder)
	}

	return b
}

// AddOptions 注册配置选项（语法糖，简化配置选项注册）
// 使用示例: core.AddOptions[AppSetting](builder, "app")
func AddOptions[T any](b *ApplicationBuilder, section string) *ApplicationBuilder {
	return b.Configure(func(ctx *BuildContext) {
		ConfigureOptions[T](ctx, section)
	})
}

// AddTask 添加一个简单的后台任务
func (b *ApplicationBuilder) AddTask(task func(ctx context.Context) error) *ApplicationBuilder {
	b.Configure(func(ctx *BuildContext) {
		ctx.AddHostedService(hosting.ServiceFunc(task))
	})
	return b
}

// UseShutdownTimeout 设置关闭超时
func (b *ApplicationBuilder) UseShutdownTimeout(timeout time.Duration) *ApplicationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdownTimeout = timeout
	return b
}

// Build 构建应用程序
//
// 构建流程:
//  1. 构建配置与日志
//  2. 创建 Bean 容器，配置值中的 ${key} 占位符通过配置求值
//  3. 注册核心单例（configuration、logger 等）
//  4. 执行所有配置器
//
// 注意: 容器此时尚未刷新，Bean 实例化发生在 RunAsync / Run 中。
func (b *ApplicationBuilder) Build() Application {
	b.mu.Lock()
	defer b.mu.Unlock()

	// 构建配置
	configuration, err := b.configBuilder.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build configuration: %v", err))
	}

	// 构建日志工厂
	loggerFactory := b.loggingBuilder.Build()
	logger := loggerFactory.CreateLogger("Application")

	logger.Info("Building application",
		logging.Field{Key: "environment", Value: b.environment})

	// 创建应用上下文
	factoryOptions := append([]beans.FactoryOption{
		beans.WithLogger(loggerFactory.CreateLogger("Beans")),
		beans.WithExpressionResolver(config.NewPlaceholderResolver(configuration)),
	}, b.factoryOptions...)

	applicationContext := appcontext.NewApplicationContext(
		appcontext.WithContextLogger(loggerFactory.CreateLogger("Context")),
		appcontext.WithFactoryOptions(factoryOptions...),
	)

	environment := NewEnvironment(b.environment)

	// 注册核心单例
	mustRegister := func(name string, instance any) {
		if err := applicationContext.RegisterSingleton(name, instance); err != nil {
			logger.Fatal("Failed to register core singleton",
				logging.Field{Key: "name", Value: name},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
	mustRegister("configuration", configuration)
	mustRegister("loggerFactory", loggerFactory)
	mustRegister("logger", logger)
	mustRegister("environment", environment)

	// 创建 BuildContext
	buildContext := &BuildContext{
		context:        applicationContext,
		configuration:  configuration,
		logger:         logger,
		environment:    environment,
		lifecycle:      NewLifecycle(),
		hostedServices: make([]hosting.HostedService, 0),
		cleanups:       make(map[string]func()),
	}

	// 执行所有配置器
	for _, configurator := range b.configurators {
		configurator(buildContext)
	}

	return &application{
		context:         applicationContext,
		buildContext:    buildContext,
		configuration:   configuration,
		logger:          logger,
		environment:     environment,
		shutdownTimeout: b.shutdownTimeout,
		stopCh:          make(chan struct{}),
	}
}

// application 应用程序实现
type application struct {
	context         *appcontext.ApplicationContext
	buildContext    *BuildContext
	configuration   config.Configuration
	logger          logging.Logger
	environment     Environment
	serviceManager  *hosting.HostedServiceManager
	shutdownTimeout time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
	running         bool
	runCtx          context.Context
	runCancel       context.CancelFunc
	mu              sync.RWMutex
}

// Run 运行应用程序（阻塞）
func (a *application) Run() error {
	return a.RunAsync(context.Background())
}

// RunAsync 异步运行应用程序
func (a *application) RunAsync(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return errors.New("application is already running")
	}
	a.running = true

	// 创建可取消的 context 用于运行服务
	a.runCtx, a.runCancel = context.WithCancel(ctx)
	a.mu.Unlock()

	a.logger.Info("Starting application",
		logging.Field{Key: "environment", Value: a.environment.Name()})

	// 刷新容器：执行后置处理器、冻结定义并实例化所有非懒加载单例
	if err := a.context.Refresh(); err != nil {
		a.logger.Error("Failed to refresh application context",
			logging.Field{Key: "error", Value: err.Error()})
		a.setStopped()
		return err
	}

	// 执行启动钩子
	if err := a.buildContext.lifecycle.Start(a.runCtx); err != nil {
		a.logger.Error("Lifecycle start hook failed",
			logging.Field{Key: "error", Value: err.Error()})
		a.context.Close()
		a.setStopped()
		return err
	}

	// 创建托管服务管理器
	a.serviceManager = hosting.NewHostedServiceManager(a.logger)
	a.registerHostedServices()

	// 启动托管服务，使用可取消的 context
	errCh := a.serviceManager.StartAll(a.runCtx)

	a.logger.Info("Application started successfully")

	// 等待停止信号或错误
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error

	select {
	case sig := <-sigCh:
		a.logger.Info("Received shutdown signal",
			logging.Field{Key: "signal", Value: sig.String()})
	case <-a.stopCh:
		a.logger.Info("Application stop requested")
	case <-ctx.Done():
		a.logger.Info("Context cancelled")
	case err := <-errCh:
		// 接收到服务启动失败的错误
		a.logger.Error("Hosted service failed, stopping application",
			logging.Field{Key: "error", Value: err.Error()})
		runErr = err
	}

	// 优雅关闭
	a.logger.Info("Shutting down application",
		logging.Field{Key: "timeout", Value: a.shutdownTimeout.String()})

	// 取消运行 context，通知所有服务停止
	a.runCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	// 停止托管服务
	if err := a.serviceManager.StopAll(shutdownCtx); err != nil {
		a.logger.Error("Failed to stop hosted services",
			logging.Field{Key: "error", Value: err.Error()})
	}

	// 等待所有服务完成
	a.serviceManager.Wait()

	// 执行停止钩子
	a.buildContext.lifecycle.Stop(shutdownCtx, a.logger)

	// 执行清理函数
	a.buildContext.runCleanups(a.logger)

	// 关闭容器，按依赖关系的逆序销毁单例
	a.context.Close()

	a.logger.Info("Application stopped")

	a.setStopped()
	return runErr
}

// registerHostedServices 汇总托管服务并登记进管理器
// 托管服务有两种注册方式:
//  1. 通过 BuildContext.AddHostedService（或 ApplicationBuilder.AddTask）直接添加实例
//  2. 注册为容器中的 Bean，刷新后按类型发现，服务以 bean 名称登记
func (a *application) registerHostedServices() {
	for _, service := range a.buildContext.hostedServices {
		a.serviceManager.Add("", service)
	}

	factory := a.context.Factory()
	for _, name := range factory.GetBeanNamesForType(hosting.ServiceType, false, true) {
		instance, err := factory.GetBean(name)
		if err != nil {
			a.logger.Error("Failed to retrieve hosted service bean",
				logging.Field{Key: "name", Value: name},
				logging.Field{Key: "error", Value: err.Error()})
			continue
		}
		service, ok := instance.(hosting.HostedService)
		if !ok {
			continue
		}

		a.logger.Debug("Discovered hosted service bean",
			logging.Field{Key: "name", Value: name})
		a.serviceManager.Add(name, service)
	}
}

func (a *application) setStopped() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// Stop 停止应用程序
func (a *application) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() { close(a.stopCh) })
	return nil
}

// Context 获取应用上下文
func (a *application) Context() *appcontext.ApplicationContext {
	return a.context
}

// Configuration 获取配置
func (a *application) Configuration() config.Configuration {
	return a.configuration
}

// Logger 获取日志记录器
func (a *application) Logger() logging.Logger {
	return a.logger
}

// Environment 获取环境
func (a *application) Environment() Environment {
	return a.environment
}

// GetService 获取服务实例（通过指针参数）
//
// 使用示例：
//
//	var myService *MyService
//	app.GetService(&myService)
func (a *application) GetService(ptr any) {
	// 检查参数是否为指针
	ptrValue := reflect.ValueOf(ptr)
	if ptrValue.Kind() != reflect.Pointer {
		panic(fmt.Sprintf("app: GetService argument must be a pointer, got %T", ptr))
	}

	elemValue := ptrValue.Elem()
	if !elemValue.CanSet() {
		panic("app: GetService argument must be settable")
	}

	targetType := elemValue.Type()

	// 从容器按类型解析
	instance, _, err := a.context.Factory().ResolveNamedBean(targetType)
	if err != nil {
		panic(fmt.Sprintf("app: failed to get service %s: %v", targetType.String(), err))
	}

	elemValue.Set(reflect.ValueOf(instance))
}

// Environment 环境接口
type Environment interface {
	Name() string
	IsDevelopment() bool
	IsProduction() bool
	IsStaging() bool
}

// environment 环境实现
type environment struct {
	name string
}

// NewEnvironment 创建环境
func NewEnvironment(name string) Environment {
	return &environment{name: name}
}

func (e *environment) Name() string {
	return e.name
}

func (e *environment) IsDevelopment() bool {
	return e.name == "development"
}

func (e *environment) IsProduction() bool {
	return e.name == "production"
}

func (e *environment) IsStaging() bool {
	return e.name == "staging"
}
