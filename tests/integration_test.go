package tests

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gocrud/ioc/beans"
	"github.com/gocrud/ioc/config"
	"github.com/gocrud/ioc/configure"
	"github.com/gocrud/ioc/configure/database"
	"github.com/gocrud/ioc/core"
)

type Article struct {
	gorm.Model
	Title string
}

// ArticleRepository 按类型注入数据库连接
type ArticleRepository struct {
	DB *gorm.DB `di:""`
}

func (r *ArticleRepository) Save(title string) error {
	return r.DB.Create(&Article{Title: title}).Error
}

// GreetingService 演示属性占位符注入与按名注入
type GreetingService struct {
	Repo   *ArticleRepository `di:"articleRepository"`
	Banner string
}

func TestApplicationIntegration(t *testing.T) {
	builder := core.NewApplicationBuilder()

	// 内存配置源，含占位符引用的键
	builder.ConfigureConfiguration(func(cb *config.ConfigurationBuilder) {
		cb.AddInMemory(map[string]any{
			"app": map[string]any{
				"name": "integration",
			},
			"db": map[string]any{
				"dsn": "file:itest?mode=memory&cache=shared",
			},
		})
	})

	// 数据库
	builder.Configure(configure.Database(func(b *database.Builder) {
		dsn := b.ConfigContext().GetConfiguration().Get("db.dsn")
		b.Add("default", sqlite.Open(dsn), func(o *database.DatabaseOptions) {
			o.AutoMigrate = []any{&Article{}}
		})
	}))

	// 业务 bean
	builder.Configure(func(ctx *core.BuildContext) {
		ctx.RegisterBean("articleRepository", &beans.BeanDefinition{
			FactoryFn:      func() *ArticleRepository { return &ArticleRepository{} },
			AutowireByType: true,
		})

		def := &beans.BeanDefinition{
			FactoryFn:      func() *GreetingService { return &GreetingService{} },
			AutowireByType: true,
		}
		// 占位符在属性注入阶段由配置解析
		def.AddProperty("Banner", beans.TypedString{Value: "${app.name} ready"})
		ctx.RegisterBean("greetingService", def)
	})

	// 生命周期钩子与后台任务
	var startOrder []string
	started := make(chan struct{})
	var taskRuns atomic.Int32

	builder.Configure(func(ctx *core.BuildContext) {
		ctx.Lifecycle().OnStart(func(context.Context) error {
			startOrder = append(startOrder, "start")
			close(started)
			return nil
		})
		ctx.Lifecycle().OnStop(func(context.Context) error {
			startOrder = append(startOrder, "stop")
			return nil
		})
	})

	builder.AddTask(func(ctx context.Context) error {
		taskRuns.Add(1)
		<-ctx.Done()
		return nil
	})

	app := builder.Build()

	done := make(chan error, 1)
	go func() { done <- app.RunAsync(context.Background()) }()

	select {
	case <-started:
	case err := <-done:
		t.Fatalf("Application exited before start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for startup")
	}

	// 解析并验证注入结果
	var svc *GreetingService
	app.GetService(&svc)

	if svc.Repo == nil {
		t.Fatal("Repository should be injected by name")
	}
	if svc.Repo.DB == nil {
		t.Fatal("Database should be injected by type")
	}
	if svc.Banner != "integration ready" {
		t.Errorf("Expected resolved banner, got %q", svc.Banner)
	}

	if err := svc.Repo.Save("hello"); err != nil {
		t.Fatalf("Failed to write through injected connection: %v", err)
	}

	// 默认数据库别名指向同一连接
	db, err := app.Context().GetBean("database")
	if err != nil {
		t.Fatalf("Failed to resolve default database: %v", err)
	}
	if db != svc.Repo.DB {
		t.Error("Alias should resolve to the injected singleton")
	}

	// 停止应用并等待退出
	app.Stop(context.Background())
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunAsync returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for shutdown")
	}

	if taskRuns.Load() != 1 {
		t.Errorf("Expected background task to run once, ran %d times", taskRuns.Load())
	}
	if len(startOrder) != 2 || startOrder[0] != "start" || startOrder[1] != "stop" {
		t.Errorf("Unexpected lifecycle order: %v", startOrder)
	}
}

func TestApplicationStartupFailure(t *testing.T) {
	builder := core.NewApplicationBuilder()

	boom := errors.New("boom")
	builder.Configure(func(ctx *core.BuildContext) {
		ctx.Lifecycle().OnStart(func(context.Context) error { return boom })
	})

	app := builder.Build()
	if err := app.RunAsync(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Expected start hook error, got %v", err)
	}
}
