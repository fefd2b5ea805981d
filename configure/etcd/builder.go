package etcd

import (
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/gocrud/ioc/core"
)

// EtcdClientOptions Etcd 客户端配置选项
type EtcdClientOptions struct {
	Name        string
	Endpoints   []string
	Username    string
	Password    string
	DialTimeout time.Duration
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *EtcdClientOptions {
	return &EtcdClientOptions{
		Name:        name,
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
	}
}

// Validate 验证配置
func (o *EtcdClientOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("etcd client name is required")
	}
	if len(o.Endpoints) == 0 {
		return fmt.Errorf("etcd endpoints are required")
	}
	if o.DialTimeout <= 0 {
		return fmt.Errorf("etcd dial timeout must be positive")
	}
	return nil
}

// openClient 创建 etcd 客户端
func openClient(opts EtcdClientOptions) (*clientv3.Client, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   opts.Endpoints,
		Username:    opts.Username,
		Password:    opts.Password,
		DialTimeout: opts.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client '%s': %w", opts.Name, err)
	}
	return client, nil
}

// Builder Etcd 客户端配置构建器
type Builder struct {
	core.BaseBuilder
	configs map[string]EtcdClientOptions
	order   []string
	errors  []error
}

// NewBuilder 创建 Etcd 构建器
func NewBuilder(ctx *core.BuildContext) *Builder {
	return &Builder{
		BaseBuilder: core.NewBaseBuilder(ctx),
		configs:     make(map[string]EtcdClientOptions),
		errors:      make([]error, 0),
	}
}

// AddClient 添加一个 etcd 客户端配置
func (b *Builder) AddClient(name string, configure func(*EtcdClientOptions)) *Builder {
	// 检查名称冲突
	if _, exists := b.configs[name]; exists {
		b.errors = append(b.errors, fmt.Errorf("etcd client '%s' already configured", name))
		return b
	}

	// 创建默认配置
	opts := NewDefaultOptions(name)

	// 应用用户配置
	if configure != nil {
		configure(opts)
	}

	// 验证配置
	if err := opts.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("invalid etcd configuration for '%s': %w", name, err))
		return b
	}

	// 保存配置
	b.configs[name] = *opts
	b.order = append(b.order, name)

	return b
}

// Errors 返回收集到的配置错误
func (b *Builder) Errors() []error {
	return b.errors
}
