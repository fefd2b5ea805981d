package beans_test

import (
	"testing"

	"github.com/gocrud/ioc/beans"
)

func TestMergedDefinitionInheritsFromParent(t *testing.T) {
	f := beans.NewBeanFactory()

	// 纯模板：没有类型，只为被继承而存在
	template := &beans.BeanDefinition{}
	template.AddProperty("Host", beans.Str("template-host"))
	template.AddProperty("Port", beans.Val(6379))
	template.LazyInit = true
	f.RegisterBeanDefinition("base", template)

	child := beans.DefinitionFor[*Endpoint]()
	child.Parent = "base"
	child.AddProperty("Host", beans.Str("child-host"))
	f.RegisterBeanDefinition("child", child)

	mbd, err := f.GetMergedBeanDefinition("child")
	if err != nil {
		t.Fatalf("GetMergedBeanDefinition failed: %v", err)
	}
	if !mbd.LazyInit {
		t.Error("Child must inherit LazyInit from the template")
	}
	if mbd.Scope != beans.ScopeSingleton {
		t.Errorf("Empty scope must normalize to singleton, got %q", mbd.Scope)
	}

	// 子属性按名覆盖，父独有的保留
	ep, err := beans.Get[*Endpoint](f, "child")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if ep.Host != "child-host" {
		t.Errorf("Child property must win, got %q", ep.Host)
	}
	if ep.Port != 6379 {
		t.Errorf("Parent-only property must survive, got %d", ep.Port)
	}
}

func TestMergedDefinitionExplicitFlagOverride(t *testing.T) {
	f := beans.NewBeanFactory()

	template := &beans.BeanDefinition{}
	template.LazyInit = true
	template.Primary = true
	f.RegisterBeanDefinition("base", template)

	child := beans.DefinitionFor[*Endpoint]()
	child.Parent = "base"
	child.SetLazyInit(false)
	f.RegisterBeanDefinition("child", child)

	mbd, err := f.GetMergedBeanDefinition("child")
	if err != nil {
		t.Fatalf("GetMergedBeanDefinition failed: %v", err)
	}
	if mbd.LazyInit {
		t.Error("SetLazyInit(false) on the child must override the template")
	}
	if !mbd.Primary {
		t.Error("Flags the child leaves untouched must inherit from the template")
	}
}

func TestMergedDefinitionGrandparentChain(t *testing.T) {
	f := beans.NewBeanFactory()

	grand := &beans.BeanDefinition{}
	grand.AddProperty("Host", beans.Str("grand"))
	f.RegisterBeanDefinition("grand", grand)

	mid := &beans.BeanDefinition{Parent: "grand"}
	mid.AddProperty("Port", beans.Val(1))
	f.RegisterBeanDefinition("mid", mid)

	leaf := beans.DefinitionFor[*Endpoint]()
	leaf.Parent = "mid"
	f.RegisterBeanDefinition("leaf", leaf)

	ep, err := beans.Get[*Endpoint](f, "leaf")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if ep.Host != "grand" || ep.Port != 1 {
		t.Errorf("Grandparent chain not flattened: %+v", ep)
	}
}

func TestMergedDefinitionParentCycle(t *testing.T) {
	f := beans.NewBeanFactory()

	a := &beans.BeanDefinition{Parent: "b"}
	b := &beans.BeanDefinition{Parent: "a"}
	f.RegisterBeanDefinition("a", a)
	f.RegisterBeanDefinition("b", b)

	if _, err := f.GetMergedBeanDefinition("a"); err == nil {
		t.Fatal("Expected parent chain cycle to fail")
	}
}

func TestMergedDefinitionStaleAfterParentReplace(t *testing.T) {
	f := beans.NewBeanFactory()

	template := &beans.BeanDefinition{}
	template.AddProperty("Host", beans.Str("v1"))
	f.RegisterBeanDefinition("base", template)

	child := beans.DefinitionFor[*Endpoint]()
	child.Parent = "base"
	child.Scope = beans.ScopePrototype // 原型才能观察到重新合并
	f.RegisterBeanDefinition("child", child)

	ep1, _ := beans.Get[*Endpoint](f, "child")
	if ep1.Host != "v1" {
		t.Fatalf("Unexpected host %q", ep1.Host)
	}

	// 替换父模板后，子的合并视图必须重算
	template2 := &beans.BeanDefinition{}
	template2.AddProperty("Host", beans.Str("v2"))
	f.RegisterBeanDefinition("base", template2)

	ep2, err := beans.Get[*Endpoint](f, "child")
	if err != nil {
		t.Fatalf("GetBean after parent replacement failed: %v", err)
	}
	if ep2.Host != "v2" {
		t.Errorf("Merged view was not re-merged, got %q", ep2.Host)
	}
}

func TestMissingParentDefinition(t *testing.T) {
	f := beans.NewBeanFactory()

	child := beans.DefinitionFor[*Endpoint]()
	child.Parent = "ghost"
	f.RegisterBeanDefinition("child", child)

	if _, err := f.GetMergedBeanDefinition("child"); err == nil {
		t.Fatal("Expected missing parent to fail")
	}
}

func TestParentDefinitionAcrossFactories(t *testing.T) {
	parent := beans.NewBeanFactory()
	template := &beans.BeanDefinition{}
	template.AddProperty("Host", beans.Str("from-parent-factory"))
	parent.RegisterBeanDefinition("base", template)

	child := beans.NewBeanFactory(beans.WithParent(parent))
	leaf := beans.DefinitionFor[*Endpoint]()
	leaf.Parent = "base"
	child.RegisterBeanDefinition("leaf", leaf)

	ep, err := beans.Get[*Endpoint](child, "leaf")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if ep.Host != "from-parent-factory" {
		t.Errorf("Parent-factory template not applied: %q", ep.Host)
	}
}
