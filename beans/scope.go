package beans

import "sync"

// Scope 自定义作用域 SPI。singleton/prototype 内建，其余作用域名称
// 由注册的 Scope 实现接管实例的存取与移除。
type Scope interface {
	// Get 返回作用域内名称对应的实例，缺席时通过 factory 创建。
	Get(name string, factory func() (any, error)) (any, error)
	// Remove 移除并返回实例，没有则返回 nil。
	Remove(name string) any
}

// SimpleScope 一个最小的映射型作用域实现，主要用于测试与演示。
type SimpleScope struct {
	mu        sync.Mutex
	instances map[string]any
}

func NewSimpleScope() *SimpleScope {
	return &SimpleScope{instances: make(map[string]any)}
}

func (s *SimpleScope) Get(name string, factory func() (any, error)) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.instances[name]; ok {
		return v, nil
	}
	v, err := factory()
	if err != nil {
		return nil, err
	}
	s.instances[name] = v
	return v, nil
}

func (s *SimpleScope) Remove(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.instances[name]
	delete(s.instances, name)
	return v
}
