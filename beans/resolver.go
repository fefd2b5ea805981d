package beans

import (
	"fmt"
	"reflect"
)

// generatedNameSeparator 生成名称的分隔符（内部 bean 去重后缀等）。
const generatedNameSeparator = "#"

// valueResolver 把一个 bean 定义里声明的值递归解析成具体的运行时对象，
// 顺手把依赖边登记进注册表。每次创建针对一个 bean 构造一个实例。
type valueResolver struct {
	factory    *BeanFactory
	beanName   string
	definition *BeanDefinition
}

func newValueResolver(f *BeanFactory, beanName string, definition *BeanDefinition) *valueResolver {
	return &valueResolver{factory: f, beanName: beanName, definition: definition}
}

// resolve 对封闭的值集合做穷举匹配。argName 只用于错误上下文
// （例如 "property 'b'" 或 "constructor argument 2"）。
func (r *valueResolver) resolve(cc *creationContext, argName string, v Value) (any, error) {
	switch val := v.(type) {
	case RuntimeBeanReference:
		return r.resolveReference(cc, argName, val)

	case RuntimeBeanNameReference:
		evaluated, err := r.evaluateString(val.BeanName)
		if err != nil {
			return nil, err
		}
		refName := fmt.Sprintf("%v", evaluated)
		if !r.factory.containsBean(cc, refName) {
			return nil, &BeanDefinitionStoreError{
				BeanName: r.beanName,
				Msg:      fmt.Sprintf("invalid bean name %q in bean reference for %s", refName, argName),
			}
		}
		return refName, nil

	case BeanDefinitionHolder:
		innerName := val.BeanName
		if innerName == "" {
			// 匿名内部 bean：身份指针保证起始名称稳定且互不相同
			innerName = fmt.Sprintf("(inner bean)%s%x", generatedNameSeparator,
				reflect.ValueOf(val.Definition).Pointer())
		}
		return r.resolveInnerBean(cc, argName, innerName, val.Definition)

	case TypedString:
		evaluated, err := r.evaluateString(val.Value)
		if err != nil {
			return nil, err
		}
		if val.TargetType == nil {
			return evaluated, nil
		}
		converted, err := r.factory.typeConverter.ConvertIfNecessary(evaluated, val.TargetType)
		if err != nil {
			return nil, newBeanCreationError(r.definition.ResourceDescription, r.beanName,
				"error converting typed string value for "+argName, err)
		}
		return converted, nil

	case ManagedList:
		return r.resolveSequence(cc, argName, val)

	case ManagedSet:
		return r.resolveSequence(cc, argName, val)

	case ManagedArray:
		elemType := val.ElementType
		if elemType == nil {
			elemType = reflect.TypeOf((*any)(nil)).Elem()
		}
		out := reflect.MakeSlice(reflect.SliceOf(elemType), len(val.Elements), len(val.Elements))
		for i, elem := range val.Elements {
			resolved, err := r.resolve(cc, keyedArgName(argName, i), elem)
			if err != nil {
				return nil, err
			}
			converted, err := r.factory.typeConverter.ConvertIfNecessary(resolved, elemType)
			if err != nil {
				return nil, newBeanCreationError(r.definition.ResourceDescription, r.beanName,
					"error resolving array element for "+argName, err)
			}
			if converted != nil {
				out.Index(i).Set(reflect.ValueOf(converted))
			}
		}
		return out.Interface(), nil

	case ManagedMap:
		resolved := make(map[any]any, len(val))
		// 条目按声明顺序解析，解析过程的副作用（创建、依赖登记）保持有序
		for _, entry := range val {
			key, err := r.resolve(cc, argName, entry.Key)
			if err != nil {
				return nil, err
			}
			value, err := r.resolve(cc, keyedArgName(argName, key), entry.Val)
			if err != nil {
				return nil, err
			}
			resolved[key] = value
		}
		return resolved, nil

	case ManagedProperties:
		copied := make(map[string]string, len(val))
		for _, pair := range val {
			key, err := r.evaluatePropertiesSide(pair.Key)
			if err != nil {
				return nil, err
			}
			value, err := r.evaluatePropertiesSide(pair.Val)
			if err != nil {
				return nil, err
			}
			if key == nil || value == nil {
				return nil, newBeanCreationError(r.definition.ResourceDescription, r.beanName,
					fmt.Sprintf("error converting properties key/value pair for %s: resolved to nil", argName), nil)
			}
			copied[fmt.Sprintf("%v", key)] = fmt.Sprintf("%v", value)
		}
		return copied, nil

	case NullValue:
		return nil, nil

	case DirectValue:
		return r.evaluateAny(val.V)

	default:
		// Value 是封闭集合，走到这里说明有人绕过了类型系统
		return nil, fmt.Errorf("beans: unknown value kind %T for %s", v, argName)
	}
}

// resolveReference 解析对工厂中另一个 bean 的引用。
func (r *valueResolver) resolveReference(cc *creationContext, argName string, ref RuntimeBeanReference) (any, error) {
	var bean any
	var resolvedName string
	var err error

	if ref.ToParent {
		parent := r.factory.Parent()
		if parent == nil {
			return nil, newBeanCreationError(r.definition.ResourceDescription, r.beanName,
				fmt.Sprintf("cannot resolve reference to bean %q in parent factory: no parent factory available", ref.BeanName), nil)
		}
		if ref.BeanType != nil {
			bean, _, err = parent.ResolveNamedBean(ref.BeanType)
		} else {
			var evaluated any
			evaluated, err = r.evaluateString(ref.BeanName)
			if err == nil {
				bean, err = parent.GetBean(fmt.Sprintf("%v", evaluated))
			}
		}
	} else {
		if ref.BeanType != nil {
			bean, resolvedName, err = r.factory.resolveNamedBean(cc, ref.BeanType)
		} else {
			var evaluated any
			evaluated, err = r.evaluateString(ref.BeanName)
			if err == nil {
				resolvedName = fmt.Sprintf("%v", evaluated)
				bean, err = r.factory.doGetBean(cc, resolvedName)
			}
		}
		if err == nil && resolvedName != "" {
			r.factory.reg.RegisterDependentBean(resolvedName, r.beanName)
		}
	}

	if err != nil {
		return nil, newBeanCreationError(r.definition.ResourceDescription, r.beanName,
			fmt.Sprintf("cannot resolve reference to bean %q while setting %s", ref.BeanName, argName), err)
	}
	if _, isNull := bean.(*NullBean); isNull {
		return nil, nil
	}
	return bean, nil
}

// resolveInnerBean 解析内嵌定义：合并、起名、登记包含关系、先建前置
// 依赖，再创建自身；工厂间接 bean 额外过一次卫星缓存。
func (r *valueResolver) resolveInnerBean(cc *creationContext, argName, innerBeanName string, innerBd *BeanDefinition) (any, error) {
	mbd, err := r.factory.mergeBeanDefinition(innerBeanName, innerBd, r.definition)
	if err != nil {
		return nil, r.wrapInnerBeanError(argName, innerBeanName, nil, err)
	}

	// 单例内部 bean 的名称必须全局唯一，冲突时追加递增计数
	actualInnerBeanName := innerBeanName
	if mbd.IsSingleton() {
		actualInnerBeanName = r.adaptInnerBeanName(cc, innerBeanName)
	}
	r.factory.reg.RegisterContainedBean(actualInnerBeanName, r.beanName)

	// 内部 bean 声明的前置依赖要先就位
	for _, dep := range mbd.DependsOn {
		r.factory.reg.RegisterDependentBean(dep, actualInnerBeanName)
		if _, err := r.factory.doGetBean(cc, dep); err != nil {
			return nil, r.wrapInnerBeanError(argName, innerBeanName, mbd, err)
		}
	}

	innerBean, err := r.factory.createBean(cc, actualInnerBeanName, mbd)
	if err != nil {
		return nil, r.wrapInnerBeanError(argName, innerBeanName, mbd, err)
	}

	if fb, ok := innerBean.(FactoryBean); ok {
		innerBean, err = r.factory.getObjectFromFactoryBean(cc, fb, actualInnerBeanName, !mbd.Synthetic)
		if err != nil {
			return nil, r.wrapInnerBeanError(argName, innerBeanName, mbd, err)
		}
	}
	if _, isNull := innerBean.(*NullBean); isNull {
		return nil, nil
	}
	return innerBean, nil
}

func (r *valueResolver) wrapInnerBeanError(argName, innerBeanName string, mbd *RootBeanDefinition, err error) error {
	typeInfo := ""
	if mbd != nil && mbd.Type != nil {
		typeInfo = fmt.Sprintf(" of type [%s]", mbd.Type)
	}
	return newBeanCreationError(r.definition.ResourceDescription, r.beanName,
		fmt.Sprintf("cannot create inner bean %q%s while setting %s", innerBeanName, typeInfo, argName), err)
}

// adaptInnerBeanName 名称被占用时追加 "#1"、"#2"…直到唯一。
// 去重由解析器负责，调用方不用关心。
func (r *valueResolver) adaptInnerBeanName(cc *creationContext, innerBeanName string) string {
	actual := innerBeanName
	counter := 0
	prefix := innerBeanName + generatedNameSeparator
	for r.factory.isBeanNameInUse(cc, actual) {
		counter++
		actual = fmt.Sprintf("%s%d", prefix, counter)
	}
	return actual
}

// resolveSequence 有序集合逐元素递归解析，顺序保留。
func (r *valueResolver) resolveSequence(cc *creationContext, argName string, elems []Value) ([]any, error) {
	resolved := make([]any, 0, len(elems))
	for i, elem := range elems {
		v, err := r.resolve(cc, keyedArgName(argName, i), elem)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, v)
	}
	return resolved, nil
}

// evaluatePropertiesSide 属性包的键/值：TypedString 求值，其余原样。
func (r *valueResolver) evaluatePropertiesSide(v Value) (any, error) {
	if ts, ok := v.(TypedString); ok {
		return r.evaluateString(ts.Value)
	}
	if dv, ok := v.(DirectValue); ok {
		return dv.V, nil
	}
	return nil, nil
}

// evaluateString 把字符串交给表达式求值协作方。
func (r *valueResolver) evaluateString(s string) (any, error) {
	return r.factory.exprResolver.Evaluate(s)
}

// evaluateAny 文本值过表达式求值，其他值原样放行。
func (r *valueResolver) evaluateAny(v any) (any, error) {
	switch tv := v.(type) {
	case string:
		return r.evaluateString(tv)
	case []string:
		out := make([]any, len(tv))
		for i, s := range tv {
			evaluated, err := r.evaluateString(s)
			if err != nil {
				return nil, err
			}
			out[i] = evaluated
		}
		return out, nil
	default:
		return v, nil
	}
}

func keyedArgName(argName string, key any) string {
	return fmt.Sprintf("%s with key [%v]", argName, key)
}
