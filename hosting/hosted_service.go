package hosting

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/gocrud/ioc/logging"
)

// HostedService 托管服务接口（类似于 .NET Core IHostedService）
// 框架会自动在 goroutine 中调用 Start，用户无需自己启动 goroutine
type HostedService interface {
	// Start 启动服务。该方法应阻塞执行，直到 context 被取消或发生错误。
	// 框架会在独立的 goroutine 中调用此方法。
	Start(ctx context.Context) error

	// Stop 执行优雅关闭逻辑。
	// 注意：当 Start 的 context 被取消时，服务应自动停止。
	// Stop 方法用于执行额外的清理工作（可选）。
	Stop(ctx context.Context) error
}

// ServiceType 托管服务接口的反射类型。容器刷新后按这个类型发现
// 注册为 bean 的托管服务。
var ServiceType = reflect.TypeOf((*HostedService)(nil)).Elem()

// ServiceFunc 把一个阻塞函数适配成托管服务，Stop 为空操作。
type ServiceFunc func(ctx context.Context) error

// Start 实现 HostedService.Start
func (f ServiceFunc) Start(ctx context.Context) error { return f(ctx) }

// Stop 实现 HostedService.Stop
func (ServiceFunc) Stop(context.Context) error { return nil }

// namedService 登记进管理器的一条服务。名称来自容器里的 bean 名称，
// 直接添加的实例由管理器自动编号。
type namedService struct {
	name    string
	service HostedService
}

// HostedServiceManager 托管服务管理器，按登记顺序启动、逆序停止
type HostedServiceManager struct {
	mu       sync.RWMutex
	services []namedService
	seq      int
	logger   logging.Logger
	wg       sync.WaitGroup
}

// NewHostedServiceManager 创建托管服务管理器
func NewHostedServiceManager(logger logging.Logger) *HostedServiceManager {
	return &HostedServiceManager{logger: logger}
}

// Add 以名称登记一个托管服务。空名称按登记序号自动命名。
func (m *HostedServiceManager) Add(name string, service HostedService) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if name == "" {
		name = fmt.Sprintf("service-%d", m.seq)
	}
	m.services = append(m.services, namedService{name: name, service: service})
}

// Names 登记顺序的服务名称
func (m *HostedServiceManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.services))
	for i, entry := range m.services {
		names[i] = entry.name
	}
	return names
}

// Count 已登记的服务数量
func (m *HostedServiceManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.services)
}

// StartAll 启动所有托管服务
// 每个服务在独立的 goroutine 中启动；服务返回的真实错误带着服务名
// 送入返回的通道，context 取消不算错误
func (m *HostedServiceManager) StartAll(ctx context.Context) <-chan error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errCh := make(chan error, len(m.services))

	m.logger.Info("Starting hosted services",
		logging.Field{Key: "count", Value: len(m.services)})

	for _, entry := range m.services {
		m.wg.Add(1)
		go func(name string, svc HostedService) {
			defer m.wg.Done()

			m.logger.Debug("Starting hosted service",
				logging.Field{Key: "service", Value: name})

			err := svc.Start(ctx)
			switch {
			case err == nil:
				m.logger.Info("Hosted service completed",
					logging.Field{Key: "service", Value: name})
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				m.logger.Debug("Hosted service stopped (context done)",
					logging.Field{Key: "service", Value: name})
			default:
				m.logger.Error("Hosted service failed",
					logging.Field{Key: "service", Value: name},
					logging.Field{Key: "error", Value: err.Error()})
				// 通道缓冲等于服务数量，发送不会阻塞
				errCh <- fmt.Errorf("hosted service %q: %w", name, err)
			}
		}(entry.name, entry.service)
	}

	return errCh
}

// StopAll 逆序并发停止所有托管服务，停止失败的服务聚合成一个错误返回
func (m *HostedServiceManager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.logger.Info("Stopping hosted services",
		logging.Field{Key: "count", Value: len(m.services)})

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var errs []error

	for i := len(m.services) - 1; i >= 0; i-- {
		entry := m.services[i]
		wg.Add(1)
		go func(name string, svc HostedService) {
			defer wg.Done()

			if err := svc.Stop(ctx); err != nil {
				m.logger.Error("Failed to stop hosted service",
					logging.Field{Key: "service", Value: name},
					logging.Field{Key: "error", Value: err.Error()})
				errMu.Lock()
				errs = append(errs, fmt.Errorf("stop hosted service %q: %w", name, err))
				errMu.Unlock()
				return
			}
			m.logger.Debug("Hosted service stopped",
				logging.Field{Key: "service", Value: name})
		}(entry.name, entry.service)
	}

	wg.Wait()
	return errors.Join(errs...)
}

// Wait 等待所有服务的 Start 返回
func (m *HostedServiceManager) Wait() {
	m.wg.Wait()
}

// BackgroundService 后台服务基座：提供停止信号与完成握手，嵌入它的
// 服务只需实现自己的工作循环
type BackgroundService struct {
	name   string
	logger logging.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBackgroundService 创建后台服务
func NewBackgroundService(name string, logger logging.Logger) *BackgroundService {
	return &BackgroundService{
		name:   name,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Name 服务名称
func (s *BackgroundService) Name() string { return s.name }

// Start 阻塞直到停止信号或 context 取消
func (s *BackgroundService) Start(ctx context.Context) error {
	s.logger.Info("Background service starting",
		logging.Field{Key: "service", Value: s.name})

	select {
	case <-s.stopCh:
	case <-ctx.Done():
	}

	s.Done()
	return nil
}

// Stop 发出停止信号并等待服务完成或超时
func (s *BackgroundService) Stop(ctx context.Context) error {
	select {
	case <-s.stopCh:
		// 已经停过
	default:
		close(s.stopCh)
	}

	select {
	case <-s.doneCh:
		s.logger.Info("Background service stopped",
			logging.Field{Key: "service", Value: s.name})
		return nil
	case <-ctx.Done():
		s.logger.Warn("Background service stop timed out",
			logging.Field{Key: "service", Value: s.name})
		return ctx.Err()
	}
}

// ShouldStop 检查是否已收到停止信号
func (s *BackgroundService) ShouldStop() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// StopChan 停止通道，用于在 select 中监听
func (s *BackgroundService) StopChan() <-chan struct{} {
	return s.stopCh
}

// Done 标记服务完成，幂等
func (s *BackgroundService) Done() {
	select {
	case <-s.doneCh:
	default:
		close(s.doneCh)
	}
}

// TimedHostedService 定时托管服务：启动后立即执行一次任务，之后按
// 固定间隔重复，任务失败只记日志不中断循环
type TimedHostedService struct {
	*BackgroundService
	interval time.Duration
	task     func(ctx context.Context) error
}

// NewTimedHostedService 创建定时托管服务
func NewTimedHostedService(name string, interval time.Duration, task func(ctx context.Context) error, logger logging.Logger) *TimedHostedService {
	return &TimedHostedService{
		BackgroundService: NewBackgroundService(name, logger),
		interval:          interval,
		task:              task,
	}
}

// Start 启动定时服务
func (s *TimedHostedService) Start(ctx context.Context) error {
	s.logger.Info("Timed service starting",
		logging.Field{Key: "service", Value: s.name},
		logging.Field{Key: "interval", Value: s.interval.String()})
	return s.run(ctx)
}

func (s *TimedHostedService) run(ctx context.Context) error {
	defer s.Done()

	s.runTask(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runTask(ctx)
		case <-s.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *TimedHostedService) runTask(ctx context.Context) {
	if err := s.task(ctx); err != nil {
		s.logger.Error("Timed service task failed",
			logging.Field{Key: "service", Value: s.name},
			logging.Field{Key: "error", Value: err.Error()})
	}
}
