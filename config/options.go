package config

import (
	"fmt"
	"sync"
)

// Option 静态配置选项（应用生命周期内不变）
// 在应用启动时绑定一次，之后不再更新
type Option[T any] interface {
	Value() T
}

// OptionMonitor 监听配置选项
// 总是返回缓存中的最新绑定值；配置对象重建后经 OptionsCache.Rebind 刷新
type OptionMonitor[T any] interface {
	Value() T
}

// OptionsCache 配置节到 T 的绑定缓存
// 配置对象是不可变快照，换用新构建的配置时调用 Rebind 重新绑定，
// 持有 OptionMonitor 的读取方随之看到新值
type OptionsCache[T any] struct {
	section string
	mu      sync.RWMutex
	current T
}

// NewOptionsCache 创建配置缓存并完成首次绑定
// 配置节缺失时保持 T 的零值
func NewOptionsCache[T any](cfg Configuration, section string) *OptionsCache[T] {
	cache := &OptionsCache[T]{section: section}
	_ = cache.Rebind(cfg)
	return cache
}

// Rebind 从（新的）配置对象重新绑定配置节
func (c *OptionsCache[T]) Rebind(cfg Configuration) error {
	var value T
	if err := cfg.Bind(c.section, &value); err != nil {
		return fmt.Errorf("bind config section %q: %w", c.section, err)
	}

	c.mu.Lock()
	c.current = value
	c.mu.Unlock()
	return nil
}

// Section 绑定的配置节名称
func (c *OptionsCache[T]) Section() string { return c.section }

// Get 当前绑定值
func (c *OptionsCache[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// option 实现 Option[T] 接口
type option[T any] struct {
	value T
}

func (o *option[T]) Value() T {
	return o.value
}

// NewOption 创建静态配置选项
func NewOption[T any](value T) Option[T] {
	return &option[T]{value: value}
}

// optionMonitor 实现 OptionMonitor[T] 接口
type optionMonitor[T any] struct {
	cache *OptionsCache[T]
}

func (o *optionMonitor[T]) Value() T {
	return o.cache.Get()
}

// NewOptionMonitor 创建监听配置选项
func NewOptionMonitor[T any](cache *OptionsCache[T]) OptionMonitor[T] {
	return &optionMonitor[T]{cache: cache}
}
