package beans

import "reflect"

// Value 是定义中可声明的值的封闭集合。解析器对它做穷举匹配，
// 运行期不会出现集合之外的种类。
type Value interface {
	value()
}

// RuntimeBeanReference 按名称（或类型）引用工厂中的另一个 bean。
// ToParent 为 true 时强制到父工厂解析。
type RuntimeBeanReference struct {
	BeanName string
	BeanType reflect.Type // 非 nil 时按类型解析，可由 Primary 消歧
	ToParent bool
}

// RuntimeBeanNameReference 引用另一个 bean 的名称本身，解析结果是字符串。
type RuntimeBeanNameReference struct {
	BeanName string
}

// BeanDefinitionHolder 内嵌（内部）bean 定义。BeanName 为空时由解析器
// 生成匿名名称。内部 bean 始终被视为外部 bean 私有的匿名对象。
type BeanDefinitionHolder struct {
	BeanName   string
	Definition *BeanDefinition
}

// TypedString 带目标类型的字符串字面量。先做表达式求值，再转换到
// TargetType（为 nil 时原样返回求值结果）。
type TypedString struct {
	Value      string
	TargetType reflect.Type
}

// ManagedList 有序集合，元素逐个递归解析，顺序保留。
type ManagedList []Value

// ManagedSet 集合语义的有序集合。解析结果仍是切片，但按 Go 的习惯
// 由调用方保证元素不重复。
type ManagedSet []Value

// MapEntry ManagedMap 的一项。
type MapEntry struct {
	Key Value
	Val Value
}

// ManagedMap 键值都需要解析的映射。
// 条目按声明顺序逐个解析，解析阶段的副作用（内部 Bean 创建、依赖登记）因此有序；
// 解析产物是 Go map，本身不保留条目顺序。
type ManagedMap []MapEntry

// ManagedArray 数组注入。ElementType 为 nil 时退化为 any。
type ManagedArray struct {
	ElementType reflect.Type
	Elements    []Value
}

// PropertyPair ManagedProperties 的一项，键值都参与表达式求值。
type PropertyPair struct {
	Key Value
	Val Value
}

// ManagedProperties 属性包。任何键或值解析为空都是创建失败。
type ManagedProperties []PropertyPair

// NullValue 显式声明的空占位。
type NullValue struct{}

// DirectValue 已经解析好的普通值。如果是字符串会再过一次表达式求值，
// 否则原样传递。
type DirectValue struct {
	V any
}

func (RuntimeBeanReference) value()     {}
func (RuntimeBeanNameReference) value() {}
func (BeanDefinitionHolder) value()     {}
func (TypedString) value()              {}
func (ManagedList) value()              {}
func (ManagedSet) value()               {}
func (ManagedMap) value()               {}
func (ManagedArray) value()             {}
func (ManagedProperties) value()        {}
func (NullValue) value()                {}
func (DirectValue) value()              {}

// Ref 构造按名称的引用。
func Ref(name string) RuntimeBeanReference {
	return RuntimeBeanReference{BeanName: name}
}

// RefType 构造按类型的引用。
func RefType[T any]() RuntimeBeanReference {
	return RuntimeBeanReference{BeanType: reflect.TypeOf((*T)(nil)).Elem()}
}

// Str 构造无目标类型的字符串字面量。
func Str(s string) TypedString {
	return TypedString{Value: s}
}

// Val 包装一个已解析的值。
func Val(v any) DirectValue {
	return DirectValue{V: v}
}

// NullBean 空 bean 的代理对象：容器内部用它占住"值为空"的单例槽位，
// 对外暴露时统一转换回 nil。
type NullBean struct{}

var nullBean = &NullBean{}
