package hosting

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocrud/ioc/logging"
)

// blockingService 阻塞直到 context 取消
type blockingService struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (s *blockingService) Start(ctx context.Context) error {
	s.started.Store(true)
	<-ctx.Done()
	return nil
}

func (s *blockingService) Stop(ctx context.Context) error {
	s.stopped.Store(true)
	return nil
}

// failingService 启动即失败
type failingService struct {
	err error
}

func (s *failingService) Start(ctx context.Context) error { return s.err }
func (s *failingService) Stop(ctx context.Context) error  { return nil }

func TestManagerStartStop(t *testing.T) {
	manager := NewHostedServiceManager(logging.NewNopLogger())
	a := &blockingService{}
	b := &blockingService{}
	manager.Add("alpha", a)
	manager.Add("", b) // 空名称自动编号

	names := manager.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "service-2" {
		t.Fatalf("Unexpected service names: %v", names)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := manager.StartAll(ctx)

	// 等待服务进入运行状态
	deadline := time.After(2 * time.Second)
	for !a.started.Load() || !b.started.Load() {
		select {
		case <-deadline:
			t.Fatal("Services did not start in time")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	manager.Wait()

	if err := manager.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if !a.stopped.Load() || !b.stopped.Load() {
		t.Error("All services should have been stopped")
	}

	select {
	case err := <-errCh:
		t.Errorf("Unexpected error from services: %v", err)
	default:
	}
}

func TestManagerReportsStartupError(t *testing.T) {
	manager := NewHostedServiceManager(logging.NewNopLogger())
	boom := errors.New("boom")
	manager.Add("broken", &failingService{err: boom})

	errCh := manager.StartAll(context.Background())
	manager.Wait()

	select {
	case err := <-errCh:
		if !errors.Is(err, boom) {
			t.Errorf("Expected boom, got %v", err)
		}
		if !strings.Contains(err.Error(), "broken") {
			t.Errorf("Error should carry the service name, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected startup error on channel")
	}
}

func TestServiceFuncAdapter(t *testing.T) {
	var ran atomic.Bool
	svc := ServiceFunc(func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !ran.Load() {
		t.Error("Task was not executed")
	}
	if err := svc.Stop(context.Background()); err != nil {
		t.Errorf("Stop must be a no-op, got %v", err)
	}
}

func TestTimedHostedService(t *testing.T) {
	var runs atomic.Int32
	svc := NewTimedHostedService("ticker", 10*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, logging.NewNopLogger())

	done := make(chan error, 1)
	go func() { done <- svc.Start(context.Background()) }()

	// 等待至少执行一次
	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("Task never executed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Service did not exit after Stop")
	}
}
