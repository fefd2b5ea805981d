package beans_test

import (
	"reflect"
	"sync"
	"testing"

	"github.com/gocrud/ioc/beans"
)

type Connection struct {
	ID int
}

type connectionFactory struct {
	singleton bool
	calls     int
	mu        sync.Mutex
}

func (c *connectionFactory) GetObject() (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return &Connection{ID: c.calls}, nil
}

func (c *connectionFactory) ObjectType() reflect.Type {
	return reflect.TypeOf(&Connection{})
}

func (c *connectionFactory) IsSingleton() bool { return c.singleton }

func TestFactoryBeanProduct(t *testing.T) {
	f := beans.NewBeanFactory()
	factory := &connectionFactory{singleton: true}
	f.RegisterSingleton("conn", factory)

	v1, err := f.GetBean("conn")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if _, ok := v1.(*Connection); !ok {
		t.Fatalf("Expected product *Connection, got %T", v1)
	}

	// 单例工厂：产物缓存，GetObject 只调一次
	v2, _ := f.GetBean("conn")
	if v1 != v2 {
		t.Error("Expected cached product for singleton factory")
	}
	if factory.calls != 1 {
		t.Errorf("Expected exactly one GetObject call, got %d", factory.calls)
	}
}

func TestFactoryBeanDereference(t *testing.T) {
	f := beans.NewBeanFactory()
	factory := &connectionFactory{singleton: true}
	f.RegisterSingleton("conn", factory)

	v, err := f.GetBean("&conn")
	if err != nil {
		t.Fatalf("GetBean with & prefix failed: %v", err)
	}
	if v != factory {
		t.Error("Expected the factory itself for & prefix")
	}

	// 普通 bean 上用 & 前缀是错误
	f.RegisterSingleton("plain", &Connection{})
	if _, err := f.GetBean("&plain"); err == nil {
		t.Error("Expected error dereferencing a non-factory bean")
	}
}

func TestFactoryBeanNonSingleton(t *testing.T) {
	f := beans.NewBeanFactory()
	factory := &connectionFactory{singleton: false}
	f.RegisterSingleton("conn", factory)

	v1, _ := f.GetBean("conn")
	v2, _ := f.GetBean("conn")
	if v1 == v2 {
		t.Error("Non-singleton factory must produce a fresh object per call")
	}
	if factory.calls != 2 {
		t.Errorf("Expected two GetObject calls, got %d", factory.calls)
	}
}

func TestFactoryBeanConcurrentSingleProduction(t *testing.T) {
	f := beans.NewBeanFactory()
	factory := &connectionFactory{singleton: true}
	f.RegisterSingleton("conn", factory)

	const goroutines = 16
	results := make([]any, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := f.GetBean("conn")
			if err != nil {
				t.Errorf("GetBean failed: %v", err)
				return
			}
			results[idx] = v
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatal("Concurrent callers must observe the same cached product")
		}
	}
	if factory.calls != 1 {
		t.Errorf("Expected exactly one GetObject call under contention, got %d", factory.calls)
	}
}

type nilProductFactory struct{}

func (nilProductFactory) GetObject() (any, error)  { return nil, nil }
func (nilProductFactory) ObjectType() reflect.Type { return reflect.TypeOf(&Connection{}) }
func (nilProductFactory) IsSingleton() bool        { return true }

func TestFactoryBeanNilProduct(t *testing.T) {
	f := beans.NewBeanFactory()
	f.RegisterSingleton("empty", nilProductFactory{})

	v, err := f.GetBean("empty")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if v != nil {
		t.Errorf("Nil product must surface as nil, got %T", v)
	}
}

func TestFactoryBeanFromDefinition(t *testing.T) {
	f := beans.NewBeanFactory()

	def := beans.DefinitionFor[*connectionFactory]()
	def.FactoryFn = func() *connectionFactory { return &connectionFactory{singleton: true} }
	f.RegisterBeanDefinition("conn", def)

	// 类型查询给出产物类型，而不是工厂类型
	names := f.GetBeanNamesForType(reflect.TypeOf(&Connection{}), true, true)
	if len(names) != 1 || names[0] != "conn" {
		t.Fatalf("Expected product type match, got %v", names)
	}

	v, err := f.GetBean("conn")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if _, ok := v.(*Connection); !ok {
		t.Fatalf("Expected product, got %T", v)
	}
}
