package database_test

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gocrud/ioc/beans"
	"github.com/gocrud/ioc/config"
	"github.com/gocrud/ioc/configure/database"
	"github.com/gocrud/ioc/core"
)

type User struct {
	gorm.Model
	Name string
}

type MockDBService struct {
	Master *gorm.DB `di:"database.master"`
	Slave  *gorm.DB `di:"database.slave,?"`
}

// DBConfig 模拟用户定义的配置结构
type DBConfig struct {
	DSN          string `json:"dsn"`
	MaxOpenConns int    `json:"max_open_conns"`
}

func TestDatabaseConfiguration(t *testing.T) {
	builder := core.NewApplicationBuilder()

	// 1. 配置内存配置源
	builder.ConfigureConfiguration(func(cb *config.ConfigurationBuilder) {
		cb.AddInMemory(map[string]any{
			"db": map[string]any{
				"master": map[string]any{
					"dsn":            "file::memory:?cache=shared",
					"max_open_conns": 5,
				},
			},
		})
	})

	// 2. 配置 Database (演示 config.Load 的使用)
	builder.Configure(database.Configure(func(b *database.Builder) {
		dbConf, err := config.Load[DBConfig](b.ConfigContext().GetConfiguration(), "db.master")
		if err != nil {
			b.Add("config_error", nil, nil) // 触发 builder 错误
			return
		}

		b.Add("master", sqlite.Open(dbConf.DSN), func(o *database.DatabaseOptions) {
			o.MaxOpenConns = dbConf.MaxOpenConns
			o.AutoMigrate = []any{&User{}}
		})
	}))

	// 注册模拟服务
	builder.Configure(func(ctx *core.BuildContext) {
		ctx.RegisterBean("mockDBService", &beans.BeanDefinition{
			FactoryFn:      func() *MockDBService { return &MockDBService{} },
			AutowireByType: true,
		})
	})

	app := builder.Build()
	if err := app.Context().Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	defer app.Context().Close()

	var svc *MockDBService
	app.GetService(&svc)

	if svc.Master == nil {
		t.Fatal("Master DB should not be nil")
	}
	if svc.Slave != nil {
		t.Error("Slave DB should be nil (optional and not configured)")
	}

	// 验证连接池配置生效
	sqlDB, _ := svc.Master.DB()
	stats := sqlDB.Stats()
	if stats.MaxOpenConnections != 5 {
		t.Errorf("Expected MaxOpenConns 5, got %d", stats.MaxOpenConnections)
	}

	// 验证迁移与读写
	if err := svc.Master.Create(&User{Name: "test"}).Error; err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}

	// 工厂 bean 对外暴露产物，按名称解析应返回同一连接
	db, err := app.Context().GetBean("database.master")
	if err != nil {
		t.Fatalf("Failed to resolve 'database.master': %v", err)
	}
	if db != svc.Master {
		t.Error("Named resolution should return the same *gorm.DB")
	}
}

func TestDatabaseDefaultAlias(t *testing.T) {
	builder := core.NewApplicationBuilder()

	builder.Configure(database.Configure(func(b *database.Builder) {
		b.Add("default", sqlite.Open("file::memory:"), nil)
	}))

	app := builder.Build()
	if err := app.Context().Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	defer app.Context().Close()

	byAlias, err := app.Context().GetBean("database")
	if err != nil {
		t.Fatalf("Failed to resolve alias 'database': %v", err)
	}
	byName, err := app.Context().GetBean("database.default")
	if err != nil {
		t.Fatalf("Failed to resolve 'database.default': %v", err)
	}
	if byAlias != byName {
		t.Error("Alias should resolve to the same singleton")
	}
}

func TestDatabaseBuilder_Errors(t *testing.T) {
	builder := database.NewBuilder(nil)

	// 缺少 dialector
	builder.Add("invalid", nil, nil)

	// 重复名称
	builder.Add("dup", sqlite.Open("a"), nil)
	builder.Add("dup", sqlite.Open("b"), nil)

	if len(builder.Errors()) != 2 {
		t.Fatalf("Expected 2 configuration errors, got %d", len(builder.Errors()))
	}
}
