package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/gocrud/ioc/core"
)

// Builder 数据库配置构建器
type Builder struct {
	core.BaseBuilder
	configs map[string]DatabaseOptions
	order   []string
	errors  []error
}

// NewBuilder 创建数据库构建器
func NewBuilder(ctx *core.BuildContext) *Builder {
	return &Builder{
		BaseBuilder: core.NewBaseBuilder(ctx),
		configs:     make(map[string]DatabaseOptions),
		errors:      make([]error, 0),
	}
}

// Add 添加一个数据库配置
func (b *Builder) Add(name string, dialector gorm.Dialector, configure func(*DatabaseOptions)) *Builder {
	// 检查名称冲突
	if _, exists := b.configs[name]; exists {
		b.errors = append(b.errors, fmt.Errorf("database '%s' already configured", name))
		return b
	}

	// 创建默认配置
	opts := NewDefaultOptions(name, dialector)

	// 应用用户配置
	if configure != nil {
		configure(opts)
	}

	// 验证配置
	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid database configuration for '%s': %w", name, err))
		return b
	}

	b.configs[name] = *opts
	b.order = append(b.order, name)

	return b
}

// Errors 返回收集到的配置错误
func (b *Builder) Errors() []error {
	return b.errors
}
