package beans

import (
	"errors"
	"fmt"
	"strings"
)

// BeanDefinitionStoreError 表示定义本身不合法（错误的父引用、无法解析的
// 类型、循环的父链等）。该类错误在注册或合并阶段立即抛出，永远不会重试。
type BeanDefinitionStoreError struct {
	BeanName string
	Msg      string
	Err      error
}

func (e *BeanDefinitionStoreError) Error() string {
	var sb strings.Builder
	sb.WriteString("beans: invalid bean definition")
	if e.BeanName != "" {
		sb.WriteString(" '" + e.BeanName + "'")
	}
	sb.WriteString(": " + e.Msg)
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *BeanDefinitionStoreError) Unwrap() error { return e.Err }

// NoSuchBeanDefinitionError 请求的名称没有对应的定义。
type NoSuchBeanDefinitionError struct {
	BeanName string
	Type     string // 按类型查找失败时的类型描述
}

func (e *NoSuchBeanDefinitionError) Error() string {
	if e.BeanName != "" {
		return fmt.Sprintf("beans: no bean named '%s' available", e.BeanName)
	}
	return fmt.Sprintf("beans: no bean of type %s available", e.Type)
}

// BeanCurrentlyInCreationError 是一个可预期的信号，而不是普通的创建失败：
// 它表示请求的名称正处于创建过程中（通常意味着一个调用方需要特殊处理的
// 循环）。工厂对象缓存依赖该信号决定返回未后置处理的对象而不是中止。
type BeanCurrentlyInCreationError struct {
	BeanName string
	Msg      string
}

func (e *BeanCurrentlyInCreationError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = "requested bean is currently in creation: is there an unresolvable circular reference?"
	}
	return fmt.Sprintf("beans: error creating bean '%s': %s", e.BeanName, msg)
}

// BeanCreationError 包装实例化、填充或后置处理期间的任何失败，
// 并附带 bean 名称与上下文描述（例如 "while setting property 'b'"）。
//
// 如果失败链中嵌套着一个 BeanCurrentlyInCreationError，涉及的名称会在
// 包装时被提取到 cycleBeanName 中，调用方通过 CycleBeanName 直接查询，
// 不需要自己去剥错误链。
type BeanCreationError struct {
	BeanName            string
	ResourceDescription string
	Msg                 string
	Err                 error

	cycleBeanName string
}

func (e *BeanCreationError) Error() string {
	var sb strings.Builder
	sb.WriteString("beans: error creating bean '" + e.BeanName + "'")
	if e.ResourceDescription != "" {
		sb.WriteString(" defined in " + e.ResourceDescription)
	}
	if e.Msg != "" {
		sb.WriteString(": " + e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *BeanCreationError) Unwrap() error { return e.Err }

// CycleBeanName 返回导致本次失败的、处于创建中的 bean 名称。
// 没有循环参与时返回空字符串。
func (e *BeanCreationError) CycleBeanName() string { return e.cycleBeanName }

// newBeanCreationError 构造创建失败并提取嵌套的循环信息。
func newBeanCreationError(resourceDescription, beanName, msg string, err error) *BeanCreationError {
	ce := &BeanCreationError{
		BeanName:            beanName,
		ResourceDescription: resourceDescription,
		Msg:                 msg,
		Err:                 err,
	}
	var inCreation *BeanCurrentlyInCreationError
	if errors.As(err, &inCreation) {
		ce.cycleBeanName = inCreation.BeanName
	} else {
		var nested *BeanCreationError
		if errors.As(err, &nested) {
			ce.cycleBeanName = nested.cycleBeanName
		}
	}
	return ce
}

// TypeMismatchError 解析出的值无法转换为目标类型。
type TypeMismatchError struct {
	Value      any
	TargetType string
	Err        error
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("beans: cannot convert value of type %T to required type %s", e.Value, e.TargetType)
}

func (e *TypeMismatchError) Unwrap() error { return e.Err }
