package database

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/gocrud/ioc/beans"
	"github.com/gocrud/ioc/logging"
)

// DatabaseOptions 数据库配置选项
type DatabaseOptions struct {
	Name         string
	Dialector    gorm.Dialector
	GormConfig   *gorm.Config
	MaxIdleConns int
	MaxOpenConns int
	MaxLifetime  time.Duration
	AutoMigrate  []any // 需要自动迁移的模型
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string, dialector gorm.Dialector) *DatabaseOptions {
	return &DatabaseOptions{
		Name:         name,
		Dialector:    dialector,
		GormConfig:   &gorm.Config{},
		MaxIdleConns: 10,
		MaxOpenConns: 100,
		MaxLifetime:  time.Hour,
		AutoMigrate:  make([]any, 0),
	}
}

// Validate 验证配置
func (o *DatabaseOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if o.Dialector == nil {
		return fmt.Errorf("database dialector is required")
	}
	return nil
}

var gormDBType = reflect.TypeOf((*gorm.DB)(nil))

// connectionFactory 实现 beans.FactoryBean
// 容器对外暴露的是 *gorm.DB 产物，连接在第一次被请求时才建立。
type connectionFactory struct {
	opts   DatabaseOptions
	logger logging.Logger
	mu     sync.Mutex
	db     *gorm.DB
}

var _ beans.FactoryBean = (*connectionFactory)(nil)

// GetObject 打开数据库连接并应用连接池与迁移配置
func (f *connectionFactory) GetObject() (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.db != nil {
		return f.db, nil
	}

	db, err := gorm.Open(f.opts.Dialector, f.opts.GormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open database '%s': %w", f.opts.Name, err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB for '%s': %w", f.opts.Name, err)
	}
	sqlDB.SetMaxIdleConns(f.opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(f.opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(f.opts.MaxLifetime)

	// 执行自动迁移
	if len(f.opts.AutoMigrate) > 0 {
		if err := db.AutoMigrate(f.opts.AutoMigrate...); err != nil {
			return nil, fmt.Errorf("auto migrate failed for '%s': %w", f.opts.Name, err)
		}
		f.logger.Info("Database migration completed",
			logging.Field{Key: "name", Value: f.opts.Name},
			logging.Field{Key: "models", Value: len(f.opts.AutoMigrate)})
	}

	f.logger.Info("Database connection established",
		logging.Field{Key: "name", Value: f.opts.Name})

	f.db = db
	return db, nil
}

// ObjectType 产物类型，无需建立连接即可回答按类型查询
func (f *connectionFactory) ObjectType() reflect.Type {
	return gormDBType
}

// IsSingleton 连接按单例缓存
func (f *connectionFactory) IsSingleton() bool {
	return true
}

// close 关闭底层连接，未建立过连接时为空操作
func (f *connectionFactory) close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.db == nil {
		return nil
	}
	sqlDB, err := f.db.DB()
	if err != nil {
		return err
	}
	f.db = nil
	return sqlDB.Close()
}
