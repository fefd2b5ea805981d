package etcd_test

import (
	"testing"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/gocrud/ioc/beans"
	"github.com/gocrud/ioc/configure/etcd"
	"github.com/gocrud/ioc/core"
)

// MockEtcdService 模拟依赖 etcd 客户端的服务
type MockEtcdService struct {
	Registry *clientv3.Client `di:"etcd.registry"`
	Config   *clientv3.Client `di:"etcd.config,?"`
}

func TestEtcdConfiguration(t *testing.T) {
	builder := core.NewApplicationBuilder()

	builder.Configure(etcd.Configure(func(b *etcd.Builder) {
		b.AddClient("registry", func(o *etcd.EtcdClientOptions) {
			o.Endpoints = []string{"localhost:2379"}
		})
		b.AddClient("default", nil)
	}))

	builder.Configure(func(ctx *core.BuildContext) {
		ctx.RegisterBean("mockEtcdService", &beans.BeanDefinition{
			FactoryFn:      func() *MockEtcdService { return &MockEtcdService{} },
			AutowireByType: true,
		})
	})

	app := builder.Build()
	if err := app.Context().Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	defer app.Context().Close()

	var svc *MockEtcdService
	app.GetService(&svc)

	if svc.Registry == nil {
		t.Error("Registry client should not be nil")
	}
	if svc.Config != nil {
		t.Error("Config client should be nil (optional and not configured)")
	}

	// 默认别名
	def, err := app.Context().GetBean("etcd")
	if err != nil {
		t.Errorf("Failed to resolve default alias 'etcd': %v", err)
	}
	if def == nil {
		t.Error("Default client is nil")
	}
}

func TestEtcdBuilder_Errors(t *testing.T) {
	builder := etcd.NewBuilder(nil)

	// 无效配置
	builder.AddClient("invalid", func(o *etcd.EtcdClientOptions) {
		o.Endpoints = nil
	})

	// 重复名称
	builder.AddClient("dup", nil)
	builder.AddClient("dup", nil)

	if len(builder.Errors()) != 2 {
		t.Fatalf("Expected 2 configuration errors, got %d", len(builder.Errors()))
	}
}
