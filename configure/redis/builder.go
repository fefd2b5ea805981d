package redis

import (
	"fmt"
)

// Builder Redis 客户端配置构建器
type Builder struct {
	configs []RedisClientOptions
	errors  []error
}

// NewBuilder 创建 Redis 构建器
func NewBuilder() *Builder {
	return &Builder{
		configs: make([]RedisClientOptions, 0),
	}
}

// AddClient 添加一个 Redis 客户端配置
func (b *Builder) AddClient(name string, configure func(*RedisClientOptions)) *Builder {
	// 检查名称冲突
	for _, existing := range b.configs {
		if existing.Name == name {
			b.errors = append(b.errors, fmt.Errorf("redis client '%s' already configured", name))
			return b
		}
	}

	// 创建默认配置
	opts := NewDefaultOptions(name)

	// 应用用户配置
	if configure != nil {
		configure(opts)
	}

	// 验证配置
	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid redis configuration for '%s': %w", name, err))
		return b
	}

	// 保存配置
	b.configs = append(b.configs, *opts)

	return b
}

// Errors 返回收集到的配置错误
func (b *Builder) Errors() []error {
	return b.errors
}
