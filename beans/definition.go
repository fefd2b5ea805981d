package beans

import (
	"fmt"
	"reflect"
)

// bean 的作用域。除内建的 singleton/prototype 外，其他取值会被交给
// 注册的自定义 Scope 处理。
const (
	// ScopeDefault 空作用域等价于 singleton。
	ScopeDefault = ""
	// ScopeSingleton 容器生命周期内每个名称只有一个实例。
	ScopeSingleton = "singleton"
	// ScopePrototype 每次请求创建新实例。
	ScopePrototype = "prototype"
)

// bean 在容器中的角色，用于区分应用 bean 和框架自身的支撑 bean。
const (
	RoleApplication    = 0
	RoleSupport        = 1
	RoleInfrastructure = 2
)

// PropertyValue 一个待注入的属性：目标字段名加声明值。
type PropertyValue struct {
	Name  string
	Value Value
}

// BeanDefinition 描述如何构建一个 bean 的模板。定义之间只允许按名称
// 互相引用，绝不直接持有对方的对象，避免生命周期耦合。
//
// 在注册表冻结之前定义是可变的；冻结后注册与删除都会被拒绝。
type BeanDefinition struct {
	// Type bean 的具体类型。为 nil 时从父定义继承。
	Type reflect.Type

	// Parent 父定义名称，合并时父链自底向上展平。
	Parent string

	// Scope 见 ScopeSingleton 等常量。
	Scope string

	// FactoryFn 工厂函数。设置后通过调用它实例化，参数由
	// ConstructorArgs 提供，不足的部分按类型自动解析。
	FactoryFn any

	// FactoryBeanName 配合 FactoryMethodName 使用：在另一个 bean 上
	// 调用指定方法来实例化。
	FactoryBeanName   string
	FactoryMethodName string

	// ConstructorArgs 工厂函数/工厂方法的声明参数，按位置排列。
	ConstructorArgs []Value

	// Properties 实例化之后注入的字段值。
	Properties []PropertyValue

	// DependsOn 显式前置依赖：这些 bean 必须先完成创建。
	DependsOn []string

	// LazyInit 为 true 时不参与启动期的急切实例化。
	LazyInit bool

	// Primary 按类型解析出现多个候选时优先选择。
	Primary bool

	// Role 见 RoleApplication 等常量。
	Role int

	// Synthetic 框架内部合成的定义，跳过工厂产物的后置处理。
	Synthetic bool

	// AutowireByType 为 true 时，填充阶段会对带 `di` 标签的
	// 结构体字段自动注入：di:"name" 按名称，di:"" 按类型，
	// 追加 ",optional" 允许缺席。
	AutowireByType bool

	// InitFunc 属性填充完成后的初始化回调。
	InitFunc func(bean any) error

	// DestroyFunc 销毁回调，容器关闭时按依赖逆序调用。
	DestroyFunc func(bean any) error

	// ResourceDescription 定义来源的描述，只用于错误信息。
	ResourceDescription string

	// 显式覆盖标记，用于区分"子定义写了零值"和"子定义没写"。
	// 直接给字段赋零值不会覆盖父定义；要把父定义显式压回零值，
	// 用对应的 Set 方法。
	lazyInitSet       bool
	primarySet        bool
	roleSet           bool
	syntheticSet      bool
	autowireByTypeSet bool
}

// NewBeanDefinition 为给定类型创建单例定义。
func NewBeanDefinition(typ reflect.Type) *BeanDefinition {
	return &BeanDefinition{Type: typ, Scope: ScopeSingleton}
}

// DefinitionFor 为类型 T 创建单例定义。
func DefinitionFor[T any]() *BeanDefinition {
	return NewBeanDefinition(reflect.TypeOf((*T)(nil)).Elem())
}

// Clone 返回定义的深拷贝。合并视图基于拷贝构建，后续对原始定义的
// 修改不会影响已经缓存的视图。
func (d *BeanDefinition) Clone() *BeanDefinition {
	c := *d
	if d.ConstructorArgs != nil {
		c.ConstructorArgs = append([]Value(nil), d.ConstructorArgs...)
	}
	if d.Properties != nil {
		c.Properties = append([]PropertyValue(nil), d.Properties...)
	}
	if d.DependsOn != nil {
		c.DependsOn = append([]string(nil), d.DependsOn...)
	}
	return &c
}

// Validate 注册前的基础校验。没有类型也没有工厂的定义是合法的
// 模板，仅供子定义继承，自身不可实例化。
func (d *BeanDefinition) Validate() error {
	if d.FactoryFn != nil {
		t := reflect.TypeOf(d.FactoryFn)
		if t == nil || t.Kind() != reflect.Func {
			return fmt.Errorf("factory must be a function, got %T", d.FactoryFn)
		}
		if t.NumOut() == 0 {
			return fmt.Errorf("factory function must return at least one value")
		}
	}
	if d.FactoryMethodName != "" && d.FactoryBeanName == "" {
		return fmt.Errorf("factory method %q declared without a factory bean name", d.FactoryMethodName)
	}
	return nil
}

// IsSingleton 作用域是否为单例（含默认空值）。
func (d *BeanDefinition) IsSingleton() bool {
	return d.Scope == ScopeSingleton || d.Scope == ScopeDefault
}

// IsPrototype 作用域是否为原型。
func (d *BeanDefinition) IsPrototype() bool {
	return d.Scope == ScopePrototype
}

// SetLazyInit 显式设置 LazyInit。与直接赋值不同，false 也会在合并时
// 覆盖父定义。
func (d *BeanDefinition) SetLazyInit(v bool) *BeanDefinition {
	d.LazyInit = v
	d.lazyInitSet = true
	return d
}

// SetPrimary 显式设置 Primary。
func (d *BeanDefinition) SetPrimary(v bool) *BeanDefinition {
	d.Primary = v
	d.primarySet = true
	return d
}

// SetRole 显式设置 Role。
func (d *BeanDefinition) SetRole(v int) *BeanDefinition {
	d.Role = v
	d.roleSet = true
	return d
}

// SetSynthetic 显式设置 Synthetic。
func (d *BeanDefinition) SetSynthetic(v bool) *BeanDefinition {
	d.Synthetic = v
	d.syntheticSet = true
	return d
}

// SetAutowireByType 显式设置 AutowireByType。
func (d *BeanDefinition) SetAutowireByType(v bool) *BeanDefinition {
	d.AutowireByType = v
	d.autowireByTypeSet = true
	return d
}

// AddProperty 追加一个属性值，返回定义自身便于链式声明。
func (d *BeanDefinition) AddProperty(name string, v Value) *BeanDefinition {
	d.Properties = append(d.Properties, PropertyValue{Name: name, Value: v})
	return d
}

// AddConstructorArg 追加一个工厂参数。
func (d *BeanDefinition) AddConstructorArg(v Value) *BeanDefinition {
	d.ConstructorArgs = append(d.ConstructorArgs, v)
	return d
}
