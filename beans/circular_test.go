package beans_test

import (
	"errors"
	"testing"

	"github.com/gocrud/ioc/beans"
)

type Alpha struct {
	B *Beta `di:""`
}

type Beta struct {
	A *Alpha `di:""`
}

// setter 级的环：双方先实例化后注入，靠早期引用闭合。
func TestSetterCircularReference(t *testing.T) {
	f := beans.NewBeanFactory()

	aDef := beans.DefinitionFor[*Alpha]()
	aDef.AutowireByType = true
	f.RegisterBeanDefinition("alpha", aDef)

	bDef := beans.DefinitionFor[*Beta]()
	bDef.AutowireByType = true
	f.RegisterBeanDefinition("beta", bDef)

	a, err := beans.Get[*Alpha](f, "alpha")
	if err != nil {
		t.Fatalf("GetBean alpha failed: %v", err)
	}
	b, err := beans.Get[*Beta](f, "beta")
	if err != nil {
		t.Fatalf("GetBean beta failed: %v", err)
	}

	if a.B != b {
		t.Error("alpha holds a different beta than the cached singleton")
	}
	if b.A != a {
		t.Error("beta received an early reference that differs from the final alpha")
	}
	if f.IsCurrentlyInCreation("alpha") || f.IsCurrentlyInCreation("beta") {
		t.Error("In-creation markers must be cleared after creation")
	}
}

// 构造级的环无解：实例还不存在，没有早期引用可给。
func TestConstructorCircularReferenceFails(t *testing.T) {
	f := beans.NewBeanFactory()

	aDef := beans.DefinitionFor[*Alpha]()
	aDef.FactoryFn = func(b *Beta) *Alpha { return &Alpha{B: b} }
	f.RegisterBeanDefinition("alpha", aDef)

	bDef := beans.DefinitionFor[*Beta]()
	bDef.FactoryFn = func(a *Alpha) *Beta { return &Beta{A: a} }
	f.RegisterBeanDefinition("beta", bDef)

	_, err := f.GetBean("alpha")
	if err == nil {
		t.Fatal("Expected constructor cycle to fail")
	}
	var inCreation *beans.BeanCurrentlyInCreationError
	if !errors.As(err, &inCreation) {
		t.Fatalf("Expected BeanCurrentlyInCreationError in chain, got %v", err)
	}

	// 失败后没有残留状态，非环内的 bean 照常可用
	if f.IsCurrentlyInCreation("alpha") || f.IsCurrentlyInCreation("beta") {
		t.Error("In-creation markers leaked after failure")
	}
	f.RegisterBeanDefinition("db", beans.DefinitionFor[*Database]())
	if _, err := f.GetBean("db"); err != nil {
		t.Errorf("Factory must stay usable after a failed cycle: %v", err)
	}
}

// 外层错误携带环里最接近的 bean 名称，供上游识别自指注入。
func TestCreationErrorCarriesCycleBeanName(t *testing.T) {
	f := beans.NewBeanFactory()

	aDef := beans.DefinitionFor[*Alpha]()
	aDef.FactoryFn = func(b *Beta) *Alpha { return &Alpha{B: b} }
	f.RegisterBeanDefinition("alpha", aDef)

	bDef := beans.DefinitionFor[*Beta]()
	bDef.FactoryFn = func(a *Alpha) *Beta { return &Beta{A: a} }
	f.RegisterBeanDefinition("beta", bDef)

	_, err := f.GetBean("alpha")
	var creation *beans.BeanCreationError
	if !errors.As(err, &creation) {
		t.Fatalf("Expected BeanCreationError, got %v", err)
	}
	if creation.CycleBeanName() == "" {
		t.Error("Expected structured cycle bean name on the creation error")
	}
}

// 原型没有缓存可早期暴露，环一律失败。
func TestPrototypeCircularReferenceFails(t *testing.T) {
	f := beans.NewBeanFactory()

	aDef := beans.DefinitionFor[*Alpha]()
	aDef.Scope = beans.ScopePrototype
	aDef.AutowireByType = true
	f.RegisterBeanDefinition("alpha", aDef)

	bDef := beans.DefinitionFor[*Beta]()
	bDef.Scope = beans.ScopePrototype
	bDef.AutowireByType = true
	f.RegisterBeanDefinition("beta", bDef)

	_, err := f.GetBean("alpha")
	if err == nil {
		t.Fatal("Expected prototype cycle to fail")
	}
	var inCreation *beans.BeanCurrentlyInCreationError
	if !errors.As(err, &inCreation) {
		t.Fatalf("Expected BeanCurrentlyInCreationError in chain, got %v", err)
	}
}

// 关闭循环引用支持后，setter 级的环同样失败。
func TestCircularReferenceDisallowed(t *testing.T) {
	f := beans.NewBeanFactory(beans.WithoutCircularReferences())

	aDef := beans.DefinitionFor[*Alpha]()
	aDef.AutowireByType = true
	f.RegisterBeanDefinition("alpha", aDef)

	bDef := beans.DefinitionFor[*Beta]()
	bDef.AutowireByType = true
	f.RegisterBeanDefinition("beta", bDef)

	if _, err := f.GetBean("alpha"); err == nil {
		t.Fatal("Expected cycle to fail without early references")
	}
}

type selfRef struct {
	Self *selfRef `di:""`
}

// 自引用同样走早期引用。
func TestSelfReference(t *testing.T) {
	f := beans.NewBeanFactory()

	def := beans.DefinitionFor[*selfRef]()
	def.AutowireByType = true
	f.RegisterBeanDefinition("self", def)

	s, err := beans.Get[*selfRef](f, "self")
	if err != nil {
		t.Fatalf("GetBean failed: %v", err)
	}
	if s.Self != s {
		t.Error("Self reference must resolve to the bean itself")
	}
}
