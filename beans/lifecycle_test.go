package beans_test

import (
	"reflect"
	"testing"

	"github.com/gocrud/ioc/beans"
)

type tracked struct {
	log *[]string
}

func (s *tracked) AfterPropertiesSet() error {
	*s.log = append(*s.log, "afterPropertiesSet")
	return nil
}

func (s *tracked) Destroy() error {
	*s.log = append(*s.log, "destroy")
	return nil
}

type recordingProcessor struct {
	log *[]string
}

func (p *recordingProcessor) PostProcessBeforeInitialization(bean any, beanName string) (any, error) {
	*p.log = append(*p.log, "before:"+beanName)
	return bean, nil
}

func (p *recordingProcessor) PostProcessAfterInitialization(bean any, beanName string) (any, error) {
	*p.log = append(*p.log, "after:"+beanName)
	return bean, nil
}

func TestInitializationOrder(t *testing.T) {
	f := beans.NewBeanFactory()
	var log []string
	f.AddBeanPostProcessor(&recordingProcessor{log: &log})

	def := beans.DefinitionFor[*tracked]()
	def.FactoryFn = func() *tracked { return &tracked{log: &log} }
	def.InitFunc = func(any) error { log = append(log, "initFunc"); return nil }
	def.DestroyFunc = func(any) error { log = append(log, "destroyFunc"); return nil }
	f.RegisterBeanDefinition("svc", def)

	if _, err := f.GetBean("svc"); err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	f.DestroySingletons()

	want := []string{"before:svc", "afterPropertiesSet", "initFunc", "after:svc", "destroy", "destroyFunc"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("Lifecycle order wrong:\n want %v\n got  %v", want, log)
	}
}

type wrapper struct {
	inner any
}

type wrappingProcessor struct {
	target string
}

func (p *wrappingProcessor) PostProcessBeforeInitialization(bean any, beanName string) (any, error) {
	return bean, nil
}

func (p *wrappingProcessor) PostProcessAfterInitialization(bean any, beanName string) (any, error) {
	if beanName == p.target {
		return &wrapper{inner: bean}, nil
	}
	return bean, nil
}

func TestPostProcessorReplacesInstance(t *testing.T) {
	f := beans.NewBeanFactory()
	f.AddBeanPostProcessor(&wrappingProcessor{target: "db"})
	f.RegisterBeanDefinition("db", beans.DefinitionFor[*Database]())

	v, err := f.GetBean("db")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	w, ok := v.(*wrapper)
	if !ok {
		t.Fatalf("Expected wrapped instance, got %T", v)
	}
	if _, ok := w.inner.(*Database); !ok {
		t.Error("Wrapper must hold the original bean")
	}

	// 缓存的是替换后的实例
	v2, _ := f.GetBean("db")
	if v != v2 {
		t.Error("Replacement must be the cached singleton")
	}
}

// 环里被注入出去的是原始引用，之后又被替换：不一致，必须失败。
func TestWrappedBeanInCycleFails(t *testing.T) {
	f := beans.NewBeanFactory()
	f.AddBeanPostProcessor(&wrappingProcessor{target: "alpha"})

	aDef := beans.DefinitionFor[*Alpha]()
	aDef.AutowireByType = true
	f.RegisterBeanDefinition("alpha", aDef)

	bDef := beans.DefinitionFor[*Beta]()
	bDef.AutowireByType = true
	f.RegisterBeanDefinition("beta", bDef)

	if _, err := f.GetBean("alpha"); err == nil {
		t.Fatal("Expected failure: raw reference escaped before wrapping")
	}
}

type shortCircuitProcessor struct {
	instance any
}

func (p *shortCircuitProcessor) PostProcessBeforeInitialization(bean any, beanName string) (any, error) {
	return bean, nil
}

func (p *shortCircuitProcessor) PostProcessAfterInitialization(bean any, beanName string) (any, error) {
	return bean, nil
}

func (p *shortCircuitProcessor) PostProcessBeforeInstantiation(beanType reflect.Type, beanName string) (any, error) {
	if beanName == "db" {
		return p.instance, nil
	}
	return nil, nil
}

func (p *shortCircuitProcessor) PostProcessAfterInstantiation(bean any, beanName string) (bool, error) {
	return true, nil
}

func TestInstantiationShortCircuit(t *testing.T) {
	f := beans.NewBeanFactory()
	ready := &Database{DSN: "pre-built"}
	f.AddBeanPostProcessor(&shortCircuitProcessor{instance: ready})

	factoryCalled := false
	def := beans.DefinitionFor[*Database]()
	def.FactoryFn = func() *Database { factoryCalled = true; return &Database{} }
	f.RegisterBeanDefinition("db", def)

	v, err := f.GetBean("db")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if v != ready {
		t.Error("Short-circuit instance must win")
	}
	if factoryCalled {
		t.Error("Default instantiation must be skipped")
	}
}

type vetoProcessor struct{}

func (vetoProcessor) PostProcessBeforeInitialization(bean any, beanName string) (any, error) {
	return bean, nil
}

func (vetoProcessor) PostProcessAfterInitialization(bean any, beanName string) (any, error) {
	return bean, nil
}

func (vetoProcessor) PostProcessBeforeInstantiation(beanType reflect.Type, beanName string) (any, error) {
	return nil, nil
}

func (vetoProcessor) PostProcessAfterInstantiation(bean any, beanName string) (bool, error) {
	return false, nil // 拒绝属性填充
}

func TestAfterInstantiationVeto(t *testing.T) {
	f := beans.NewBeanFactory()
	f.AddBeanPostProcessor(vetoProcessor{})

	def := beans.DefinitionFor[*Database]()
	def.AddProperty("DSN", beans.Str("should-not-apply"))
	f.RegisterBeanDefinition("db", def)

	db, err := beans.Get[*Database](f, "db")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if db.DSN != "" {
		t.Errorf("Population must be skipped after veto, got %q", db.DSN)
	}
}

type metadataProcessor struct {
	seen   []string
	resets []string
}

func (p *metadataProcessor) PostProcessBeforeInitialization(bean any, beanName string) (any, error) {
	return bean, nil
}

func (p *metadataProcessor) PostProcessAfterInitialization(bean any, beanName string) (any, error) {
	return bean, nil
}

func (p *metadataProcessor) PostProcessMergedBeanDefinition(mbd *beans.RootBeanDefinition, beanType reflect.Type, beanName string) {
	p.seen = append(p.seen, beanName)
}

func (p *metadataProcessor) ResetBeanDefinition(beanName string) {
	p.resets = append(p.resets, beanName)
}

func TestMergedDefinitionProcessor(t *testing.T) {
	f := beans.NewBeanFactory()
	mp := &metadataProcessor{}
	f.AddBeanPostProcessor(mp)

	f.RegisterBeanDefinition("db", beans.DefinitionFor[*Database]())
	f.GetBean("db")
	f.GetBean("db")

	// 每个定义只回调一次
	if len(mp.seen) != 1 || mp.seen[0] != "db" {
		t.Errorf("Expected single merged-definition callback, got %v", mp.seen)
	}

	// 替换定义触发 Reset 通知
	f.RegisterBeanDefinition("db", beans.DefinitionFor[*Database]())
	if len(mp.resets) == 0 || mp.resets[0] != "db" {
		t.Errorf("Expected reset notification, got %v", mp.resets)
	}
}

type orderedItem struct {
	name  string
	order int
}

func (o orderedItem) Order() int { return o.order }

func TestSortByOrder(t *testing.T) {
	items := []any{
		orderedItem{name: "late", order: 100},
		"unordered",
		orderedItem{name: "early", order: -5},
	}
	beans.SortByOrder(items, nil)

	if items[0].(orderedItem).name != "early" {
		t.Errorf("Expected early first, got %v", items[0])
	}
	if items[1].(orderedItem).name != "late" {
		t.Errorf("Expected late second, got %v", items[1])
	}
	if items[2] != "unordered" {
		t.Errorf("Unordered must sink to the end, got %v", items[2])
	}
}

type smartSingleton struct {
	called *bool
}

func (s *smartSingleton) AfterSingletonsInstantiated() { *s.called = true }

func TestSmartInitializingSingleton(t *testing.T) {
	f := beans.NewBeanFactory()
	called := false

	def := beans.DefinitionFor[*smartSingleton]()
	def.FactoryFn = func() *smartSingleton { return &smartSingleton{called: &called} }
	f.RegisterBeanDefinition("smart", def)

	if err := f.PreInstantiateSingletons(); err != nil {
		t.Fatalf("PreInstantiateSingletons failed: %v", err)
	}
	if !called {
		t.Error("AfterSingletonsInstantiated was not invoked")
	}
}
