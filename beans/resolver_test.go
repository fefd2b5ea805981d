package beans_test

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gocrud/ioc/beans"
)

type Endpoint struct {
	Host    string
	Port    int
	Timeout time.Duration
	Backup  *Endpoint
	Tags    []any
	Meta    map[any]any
	Props   map[string]string
	RefName string
	Nothing *Endpoint
}

func TestResolveTypedString(t *testing.T) {
	f := beans.NewBeanFactory()

	def := beans.DefinitionFor[*Endpoint]()
	def.AddProperty("Host", beans.Str("localhost"))
	def.AddProperty("Port", beans.TypedString{Value: "6379", TargetType: reflect.TypeOf(0)})
	def.AddProperty("Timeout", beans.TypedString{Value: "5s", TargetType: reflect.TypeOf(time.Duration(0))})
	f.RegisterBeanDefinition("endpoint", def)

	ep, err := beans.Get[*Endpoint](f, "endpoint")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if ep.Host != "localhost" || ep.Port != 6379 || ep.Timeout != 5*time.Second {
		t.Errorf("Unexpected resolution: %+v", ep)
	}
}

func TestResolveTypedStringConversionFailure(t *testing.T) {
	f := beans.NewBeanFactory()

	def := beans.DefinitionFor[*Endpoint]()
	def.AddProperty("Port", beans.TypedString{Value: "not-a-number", TargetType: reflect.TypeOf(0)})
	f.RegisterBeanDefinition("endpoint", def)

	_, err := f.GetBean("endpoint")
	if err == nil {
		t.Fatal("Expected conversion failure")
	}
	if !strings.Contains(err.Error(), "endpoint") {
		t.Errorf("Error must name the failing bean: %v", err)
	}
}

func TestResolveReference(t *testing.T) {
	f := beans.NewBeanFactory()

	backup := beans.DefinitionFor[*Endpoint]()
	backup.AddProperty("Host", beans.Str("backup"))
	f.RegisterBeanDefinition("backup", backup)

	def := beans.DefinitionFor[*Endpoint]()
	def.AddProperty("Backup", beans.Ref("backup"))
	f.RegisterBeanDefinition("primary", def)

	ep, err := beans.Get[*Endpoint](f, "primary")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if ep.Backup == nil || ep.Backup.Host != "backup" {
		t.Fatalf("Reference was not resolved: %+v", ep.Backup)
	}

	// 引用登记了依赖边，销毁时 primary 先于 backup
	deps := f.DependentBeans("backup")
	if len(deps) != 1 || deps[0] != "primary" {
		t.Errorf("Expected [primary], got %v", deps)
	}
}

func TestResolveReferenceByType(t *testing.T) {
	f := beans.NewBeanFactory()

	f.RegisterBeanDefinition("db", beans.DefinitionFor[*Database]())

	def := beans.DefinitionFor[*Repository]()
	def.AddProperty("DB", beans.RefType[*Database]())
	f.RegisterBeanDefinition("repo", def)

	repo, err := beans.Get[*Repository](f, "repo")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if repo.DB == nil {
		t.Error("Typed reference was not resolved")
	}
}

func TestResolveBeanNameReference(t *testing.T) {
	f := beans.NewBeanFactory()
	f.RegisterBeanDefinition("db", beans.DefinitionFor[*Database]())

	def := beans.DefinitionFor[*Endpoint]()
	def.AddProperty("RefName", beans.RuntimeBeanNameReference{BeanName: "db"})
	f.RegisterBeanDefinition("endpoint", def)

	ep, err := beans.Get[*Endpoint](f, "endpoint")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if ep.RefName != "db" {
		t.Errorf("Expected bean name string, got %q", ep.RefName)
	}

	// 名称必须指向存在的 bean
	bad := beans.DefinitionFor[*Endpoint]()
	bad.AddProperty("RefName", beans.RuntimeBeanNameReference{BeanName: "ghost"})
	f.RegisterBeanDefinition("bad", bad)
	if _, err := f.GetBean("bad"); err == nil {
		t.Error("Expected invalid name reference to fail")
	}
}

func TestResolveCollections(t *testing.T) {
	f := beans.NewBeanFactory()
	f.RegisterBeanDefinition("db", beans.DefinitionFor[*Database]())

	def := beans.DefinitionFor[*Endpoint]()
	def.AddProperty("Tags", beans.ManagedList{beans.Str("a"), beans.Val(2), beans.Ref("db")})
	def.AddProperty("Meta", beans.ManagedMap{
		{Key: beans.Str("region"), Val: beans.Str("cn-north")},
		{Key: beans.Str("replica"), Val: beans.Val(3)},
	})
	def.AddProperty("Props", beans.ManagedProperties{
		{Key: beans.Str("user"), Val: beans.Str("admin")},
	})
	f.RegisterBeanDefinition("endpoint", def)

	ep, err := beans.Get[*Endpoint](f, "endpoint")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if len(ep.Tags) != 3 {
		t.Fatalf("Expected 3 list elements, got %v", ep.Tags)
	}
	if ep.Tags[0] != "a" || ep.Tags[1] != 2 {
		t.Errorf("List elements out of order: %v", ep.Tags)
	}
	if _, ok := ep.Tags[2].(*Database); !ok {
		t.Errorf("List element reference not resolved: %T", ep.Tags[2])
	}
	if ep.Meta["region"] != "cn-north" || ep.Meta["replica"] != 3 {
		t.Errorf("Map entries wrong: %v", ep.Meta)
	}
	if ep.Props["user"] != "admin" {
		t.Errorf("Properties wrong: %v", ep.Props)
	}
}

// 映射条目按声明顺序解析，条目值里的内部 bean 创建顺序随之固定。
func TestResolveManagedMapEntryOrder(t *testing.T) {
	f := beans.NewBeanFactory()

	var created []string
	innerDef := func(host string) *beans.BeanDefinition {
		def := beans.DefinitionFor[*Endpoint]()
		def.AddProperty("Host", beans.Str(host))
		def.InitFunc = func(bean any) error {
			created = append(created, bean.(*Endpoint).Host)
			return nil
		}
		return def
	}

	def := beans.DefinitionFor[*Endpoint]()
	def.AddProperty("Meta", beans.ManagedMap{
		{Key: beans.Str("first"), Val: beans.BeanDefinitionHolder{Definition: innerDef("h1")}},
		{Key: beans.Str("second"), Val: beans.BeanDefinitionHolder{Definition: innerDef("h2")}},
		{Key: beans.Str("third"), Val: beans.BeanDefinitionHolder{Definition: innerDef("h3")}},
	})
	f.RegisterBeanDefinition("endpoint", def)

	ep, err := beans.Get[*Endpoint](f, "endpoint")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if !reflect.DeepEqual(created, []string{"h1", "h2", "h3"}) {
		t.Errorf("Inner beans must be created in declaration order, got %v", created)
	}
	if len(ep.Meta) != 3 {
		t.Fatalf("Expected 3 map entries, got %v", ep.Meta)
	}
	if ep.Meta["second"].(*Endpoint).Host != "h2" {
		t.Errorf("Map entry misresolved: %+v", ep.Meta["second"])
	}
}

func TestResolveNullValue(t *testing.T) {
	f := beans.NewBeanFactory()

	def := beans.DefinitionFor[*Endpoint]()
	def.AddProperty("Nothing", beans.NullValue{})
	f.RegisterBeanDefinition("endpoint", def)

	ep, err := beans.Get[*Endpoint](f, "endpoint")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if ep.Nothing != nil {
		t.Error("Null value must leave the field nil")
	}
}

func TestResolveInnerBean(t *testing.T) {
	f := beans.NewBeanFactory()

	inner := beans.DefinitionFor[*Endpoint]()
	inner.AddProperty("Host", beans.Str("inner-host"))

	def := beans.DefinitionFor[*Endpoint]()
	def.AddProperty("Backup", beans.BeanDefinitionHolder{Definition: inner})
	f.RegisterBeanDefinition("outer", def)

	ep, err := beans.Get[*Endpoint](f, "outer")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if ep.Backup == nil || ep.Backup.Host != "inner-host" {
		t.Fatalf("Inner bean not resolved: %+v", ep.Backup)
	}

	// 内部 bean 是外部 bean 的私有对象，不进注册表
	for _, name := range f.BeanDefinitionNames() {
		if strings.Contains(name, "inner") {
			t.Errorf("Inner bean leaked into the registry: %q", name)
		}
	}
}

func TestResolveInnerBeanDestroyedWithOuter(t *testing.T) {
	f := beans.NewBeanFactory()
	var destroyed []string

	inner := beans.DefinitionFor[*Endpoint]()
	inner.DestroyFunc = func(any) error { destroyed = append(destroyed, "inner"); return nil }

	def := beans.DefinitionFor[*Endpoint]()
	def.AddProperty("Backup", beans.BeanDefinitionHolder{BeanName: "companion", Definition: inner})
	def.DestroyFunc = func(any) error { destroyed = append(destroyed, "outer"); return nil }
	f.RegisterBeanDefinition("outer", def)

	if _, err := f.GetBean("outer"); err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	f.DestroySingletons()

	if len(destroyed) != 2 || destroyed[0] != "outer" || destroyed[1] != "inner" {
		t.Errorf("Expected [outer inner], got %v", destroyed)
	}
}

func TestResolvePrototypeReferencePerInstance(t *testing.T) {
	f := beans.NewBeanFactory()

	protoDef := beans.DefinitionFor[*Endpoint]()
	protoDef.Scope = beans.ScopePrototype
	f.RegisterBeanDefinition("proto", protoDef)

	def := beans.DefinitionFor[*Endpoint]()
	def.Scope = beans.ScopePrototype
	def.AddProperty("Backup", beans.Ref("proto"))
	f.RegisterBeanDefinition("holder", def)

	h1, _ := beans.Get[*Endpoint](f, "holder")
	h2, _ := beans.Get[*Endpoint](f, "holder")
	if h1.Backup == h2.Backup {
		t.Error("Prototype reference must resolve to a fresh instance per holder")
	}
}
