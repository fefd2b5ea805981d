package beans

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gocrud/ioc/logging"
)

// createBean 单个 bean 的创建入口：先给实例化前短路处理器一次机会，
// 没人接手时走默认创建流程。所有失败都带上定义来源与 bean 名称。
func (f *BeanFactory) createBean(cc *creationContext, beanName string, mbd *RootBeanDefinition) (any, error) {
	f.logger.Debug("creating bean", logging.Field{Key: "bean", Value: beanName})

	if !mbd.Synthetic && f.hasInstantiationAwareProcessors() {
		short, err := f.resolveBeforeInstantiation(cc, beanName, mbd)
		if err != nil {
			return nil, newBeanCreationError(mbd.ResourceDescription, beanName,
				"before-instantiation post-processing failed", err)
		}
		if short != nil {
			return short, nil
		}
	}

	instance, err := f.doCreateBean(cc, beanName, mbd)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("finished creating bean", logging.Field{Key: "bean", Value: beanName})
	return instance, nil
}

func (f *BeanFactory) hasInstantiationAwareProcessors() bool {
	f.procMu.RLock()
	defer f.procMu.RUnlock()
	return f.hasInstantiationAware
}

// resolveBeforeInstantiation 实例化前短路：任何处理器返回非 nil 对象，
// 就用它顶替默认创建，且立刻补跑初始化后回调。结果（是否短路过）缓存
// 在合并视图上，避免每次创建都空跑一遍。
func (f *BeanFactory) resolveBeforeInstantiation(cc *creationContext, beanName string, mbd *RootBeanDefinition) (any, error) {
	mbd.mu.Lock()
	if mbd.beforeInstantiationResolved != nil && !*mbd.beforeInstantiationResolved {
		mbd.mu.Unlock()
		return nil, nil
	}
	mbd.mu.Unlock()

	targetType := f.predictBeanType(cc, beanName, mbd)
	var bean any
	if targetType != nil {
		for _, pp := range f.BeanPostProcessors() {
			iapp, ok := pp.(InstantiationAwareBeanPostProcessor)
			if !ok {
				continue
			}
			result, err := iapp.PostProcessBeforeInstantiation(targetType, beanName)
			if err != nil {
				return nil, err
			}
			if result != nil {
				bean = result
				break
			}
		}
		if bean != nil {
			processed, err := f.applyBeanPostProcessorsAfterInitialization(bean, beanName)
			if err != nil {
				return nil, err
			}
			bean = processed
		}
	}

	resolved := bean != nil
	mbd.mu.Lock()
	mbd.beforeInstantiationResolved = &resolved
	mbd.mu.Unlock()
	return bean, nil
}

// doCreateBean 默认创建流程：实例化 → 合并定义回调 → 早期暴露 →
// 属性填充 → 初始化 → 早期引用一致性校验 → 销毁登记。
func (f *BeanFactory) doCreateBean(cc *creationContext, beanName string, mbd *RootBeanDefinition) (any, error) {
	instance, err := f.createBeanInstance(cc, beanName, mbd)
	if err != nil {
		return nil, newBeanCreationError(mbd.ResourceDescription, beanName, "instantiation failed", err)
	}

	beanType := reflect.TypeOf(instance)
	mbd.setResolvedTargetType(beanType)

	// 合并定义后置处理器只对每个定义跑一次
	if !mbd.Synthetic {
		mbd.mu.Lock()
		alreadyApplied := mbd.postProcessed
		mbd.postProcessed = true
		mbd.mu.Unlock()
		if !alreadyApplied {
			for _, pp := range f.BeanPostProcessors() {
				if mdpp, ok := pp.(MergedBeanDefinitionPostProcessor); ok {
					mdpp.PostProcessMergedBeanDefinition(mbd, beanType, beanName)
				}
			}
		}
	}

	// 单例创建中即提前暴露原始引用，供 setter 级的环回取
	earlyExposure := mbd.IsSingleton() && f.allowCircularReferences &&
		cc.locked && f.reg.isCurrentlyInCreationLocked(beanName)
	if earlyExposure {
		raw := instance
		f.reg.addSingletonFactoryLocked(beanName, func(*creationContext) (any, error) {
			return raw, nil
		})
	}

	exposed := instance
	if err := f.populateBean(cc, beanName, mbd, instance); err != nil {
		return nil, err
	}
	exposed, err = f.initializeBean(beanName, exposed, mbd)
	if err != nil {
		return nil, err
	}

	if earlyExposure {
		// 有人拿走了早期引用，而初始化又换掉了实例：
		// 原始版本已经注入出去，最终版本不一致，必须失败
		if earlyRef, ok := f.reg.getSingletonLocked(beanName, false); ok {
			if exposed == instance {
				exposed = earlyRef
			} else if dependents := f.reg.DependentBeans(beanName); len(dependents) > 0 {
				return nil, newBeanCreationError(mbd.ResourceDescription, beanName,
					fmt.Sprintf("bean has been injected into other beans %v in its raw version as part of a circular reference, "+
						"but has eventually been wrapped; beans that received the raw version may not use the final one", dependents), nil)
			}
		}
	}

	f.registerDisposableBeanIfNecessary(cc, beanName, exposed, mbd)
	return exposed, nil
}

// createBeanInstance 造出裸实例：工厂函数 > 具名工厂方法 > 反射构造。
func (f *BeanFactory) createBeanInstance(cc *creationContext, beanName string, mbd *RootBeanDefinition) (any, error) {
	if mbd.FactoryFn != nil {
		return f.instantiateUsingFactoryFn(cc, beanName, mbd)
	}
	if mbd.FactoryBeanName != "" && mbd.FactoryMethodName != "" {
		return f.instantiateUsingFactoryMethod(cc, beanName, mbd)
	}

	t := mbd.TargetType()
	if t == nil {
		return nil, fmt.Errorf("definition declares neither a type nor a factory")
	}
	switch t.Kind() {
	case reflect.Ptr:
		if t.Elem().Kind() != reflect.Struct {
			return nil, fmt.Errorf("cannot instantiate non-struct pointer type %s", t)
		}
		return reflect.New(t.Elem()).Interface(), nil
	case reflect.Struct:
		// 属性填充需要可寻址，结构体类型统一以指针形态实例化
		return reflect.New(t).Interface(), nil
	case reflect.Interface:
		return nil, fmt.Errorf("interface type %s requires a factory function or method", t)
	default:
		return reflect.New(t).Elem().Interface(), nil
	}
}

// instantiateUsingFactoryFn 调用定义携带的工厂函数。声明的构造参数按
// 位置喂给形参，其余形参按类型从容器解析。
func (f *BeanFactory) instantiateUsingFactoryFn(cc *creationContext, beanName string, mbd *RootBeanDefinition) (any, error) {
	fnVal := reflect.ValueOf(mbd.FactoryFn)
	if fnVal.Kind() != reflect.Func {
		return nil, fmt.Errorf("factory is not a function: %T", mbd.FactoryFn)
	}
	args, err := f.resolveCallArgs(cc, beanName, mbd, fnVal.Type())
	if err != nil {
		return nil, err
	}
	return callFactory(fnVal, args)
}

// instantiateUsingFactoryMethod 在另一个 bean 上调用具名方法。解析出的
// 方法句柄缓存在合并视图上。
func (f *BeanFactory) instantiateUsingFactoryMethod(cc *creationContext, beanName string, mbd *RootBeanDefinition) (any, error) {
	factoryInstance, err := f.doGetBean(cc, mbd.FactoryBeanName)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve factory bean %q: %w", mbd.FactoryBeanName, err)
	}
	f.reg.RegisterDependentBean(mbd.FactoryBeanName, beanName)

	factoryVal := reflect.ValueOf(factoryInstance)
	mbd.mu.Lock()
	cached := mbd.resolvedFactoryMethod
	mbd.mu.Unlock()
	var methodVal reflect.Value
	if cached != nil {
		methodVal = factoryVal.Method(cached.Index)
	} else {
		m, ok := factoryVal.Type().MethodByName(mbd.FactoryMethodName)
		if !ok {
			return nil, fmt.Errorf("no method %q on factory bean %q (type %s)",
				mbd.FactoryMethodName, mbd.FactoryBeanName, factoryVal.Type())
		}
		mbd.mu.Lock()
		mbd.resolvedFactoryMethod = &m
		mbd.mu.Unlock()
		methodVal = factoryVal.Method(m.Index)
	}

	args, err := f.resolveCallArgs(cc, beanName, mbd, methodVal.Type())
	if err != nil {
		return nil, err
	}
	return callFactory(methodVal, args)
}

// resolveCallArgs 为函数/方法准备实参：声明的构造参数按位置解析并转换，
// 剩余形参按类型向容器要。
func (f *BeanFactory) resolveCallArgs(cc *creationContext, beanName string, mbd *RootBeanDefinition, fnType reflect.Type) ([]reflect.Value, error) {
	vr := newValueResolver(f, beanName, &mbd.BeanDefinition)
	args := make([]reflect.Value, fnType.NumIn())
	for i := 0; i < fnType.NumIn(); i++ {
		paramType := fnType.In(i)
		var resolved any
		var err error
		if i < len(mbd.ConstructorArgs) {
			resolved, err = vr.resolve(cc, fmt.Sprintf("constructor argument %d", i), mbd.ConstructorArgs[i])
			if err != nil {
				return nil, err
			}
			resolved, err = f.typeConverter.ConvertIfNecessary(resolved, paramType)
			if err != nil {
				return nil, fmt.Errorf("constructor argument %d: %w", i, err)
			}
		} else {
			resolved, _, err = f.resolveDependencyByType(cc, paramType, beanName)
			if err != nil {
				return nil, fmt.Errorf("constructor argument %d (type %s): %w", i, paramType, err)
			}
		}
		if resolved == nil {
			args[i] = reflect.Zero(paramType)
		} else {
			args[i] = reflect.ValueOf(resolved)
		}
	}
	return args, nil
}

// callFactory 支持 (T) 与 (T, error) 两种返回形态。
func callFactory(fn reflect.Value, args []reflect.Value) (any, error) {
	results := fn.Call(args)
	switch len(results) {
	case 1:
		return results[0].Interface(), nil
	case 2:
		if errVal := results[1]; !errVal.IsNil() {
			return nil, errVal.Interface().(error)
		}
		return results[0].Interface(), nil
	default:
		return nil, fmt.Errorf("factory must return (T) or (T, error), got %d values", len(results))
	}
}

// resolveDependencyByType 按类型解析依赖并登记依赖边。
func (f *BeanFactory) resolveDependencyByType(cc *creationContext, typ reflect.Type, requestingBean string) (any, string, error) {
	// 容器自身可以直接注入
	if typ == reflect.TypeOf((*BeanFactory)(nil)) {
		return f, "", nil
	}
	candidates := f.getBeanNamesForType(cc, typ, true, true)
	if len(candidates) == 0 && f.parent != nil {
		v, name, err := f.parent.ResolveNamedBean(typ)
		if err != nil {
			return nil, "", err
		}
		return v, name, nil
	}
	name, err := f.determineCandidate(candidates, typ)
	if err != nil {
		return nil, "", err
	}
	v, err := f.doGetBean(cc, name)
	if err != nil {
		return nil, "", err
	}
	if name != requestingBean {
		f.reg.RegisterDependentBean(name, requestingBean)
	}
	if _, isNull := v.(*NullBean); isNull {
		return nil, name, nil
	}
	return v, name, nil
}

// populateBean 属性填充：先给实例化感知处理器一次否决机会，然后是
// di 标签的自动注入，最后应用定义上显式声明的属性值。
func (f *BeanFactory) populateBean(cc *creationContext, beanName string, mbd *RootBeanDefinition, instance any) error {
	if !mbd.Synthetic && f.hasInstantiationAwareProcessors() {
		for _, pp := range f.BeanPostProcessors() {
			iapp, ok := pp.(InstantiationAwareBeanPostProcessor)
			if !ok {
				continue
			}
			proceed, err := iapp.PostProcessAfterInstantiation(instance, beanName)
			if err != nil {
				return newBeanCreationError(mbd.ResourceDescription, beanName,
					"after-instantiation post-processing failed", err)
			}
			if !proceed {
				return nil
			}
		}
	}

	if mbd.AutowireByType {
		if err := f.autowireTaggedFields(cc, beanName, mbd, instance); err != nil {
			return err
		}
	}

	if len(mbd.Properties) == 0 {
		return nil
	}
	vr := newValueResolver(f, beanName, &mbd.BeanDefinition)
	for _, pv := range mbd.Properties {
		resolved, err := vr.resolve(cc, fmt.Sprintf("property %q", pv.Name), pv.Value)
		if err != nil {
			return newBeanCreationError(mbd.ResourceDescription, beanName,
				fmt.Sprintf("cannot resolve property %q", pv.Name), err)
		}
		if err := f.setProperty(instance, pv.Name, resolved); err != nil {
			return newBeanCreationError(mbd.ResourceDescription, beanName,
				fmt.Sprintf("cannot apply property %q", pv.Name), err)
		}
	}
	return nil
}

// autowireTaggedFields 扫描 di 标签字段：di:"name" 按名称解析，
// di:"" 按字段类型解析，",optional" 的缺席不报错。
func (f *BeanFactory) autowireTaggedFields(cc *creationContext, beanName string, mbd *RootBeanDefinition, instance any) error {
	val := reflect.ValueOf(instance)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return nil
	}
	elem := val.Elem()
	elemType := elem.Type()

	for i := 0; i < elemType.NumField(); i++ {
		field := elemType.Field(i)
		tagValue, hasTag := field.Tag.Lookup("di")
		if !hasTag {
			continue
		}
		parts := strings.Split(tagValue, ",")
		refName := strings.TrimSpace(parts[0])
		optional := refName == "?" || refName == "optional"
		if optional {
			refName = ""
		}
		for _, part := range parts[1:] {
			part = strings.TrimSpace(part)
			if part == "optional" || part == "?" {
				optional = true
			}
		}

		var resolved any
		var err error
		if refName != "" {
			resolved, err = f.doGetBean(cc, refName)
			if err == nil {
				f.reg.RegisterDependentBean(f.canonicalName(refName), beanName)
			}
		} else {
			resolved, _, err = f.resolveDependencyByType(cc, field.Type, beanName)
		}
		if err != nil {
			var missing *NoSuchBeanDefinitionError
			if optional && errors.As(err, &missing) {
				continue
			}
			return newBeanCreationError(mbd.ResourceDescription, beanName,
				fmt.Sprintf("cannot autowire field %q", field.Name), err)
		}
		if _, isNull := resolved.(*NullBean); isNull {
			continue
		}

		fieldVal := elem.Field(i)
		if !fieldVal.CanSet() {
			return newBeanCreationError(mbd.ResourceDescription, beanName,
				fmt.Sprintf("cannot autowire unexported field %q", field.Name), nil)
		}
		converted, err := f.typeConverter.ConvertIfNecessary(resolved, field.Type)
		if err != nil {
			return newBeanCreationError(mbd.ResourceDescription, beanName,
				fmt.Sprintf("cannot autowire field %q", field.Name), err)
		}
		fieldVal.Set(reflect.ValueOf(converted))
	}
	return nil
}

// setProperty 设置具名字段，空 bean 占位写成零值。
func (f *BeanFactory) setProperty(instance any, name string, value any) error {
	val := reflect.ValueOf(instance)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target %T is not a struct pointer", instance)
	}
	fieldVal := val.Elem().FieldByName(name)
	if !fieldVal.IsValid() {
		return fmt.Errorf("no field %q on %s", name, val.Elem().Type())
	}
	if !fieldVal.CanSet() {
		return fmt.Errorf("field %q on %s is not settable", name, val.Elem().Type())
	}
	if _, isNull := value.(*NullBean); isNull || value == nil {
		fieldVal.Set(reflect.Zero(fieldVal.Type()))
		return nil
	}
	converted, err := f.typeConverter.ConvertIfNecessary(value, fieldVal.Type())
	if err != nil {
		return err
	}
	fieldVal.Set(reflect.ValueOf(converted))
	return nil
}

// initializeBean 初始化阶段：前置回调 → AfterPropertiesSet 与 InitFunc
// → 后置回调。任何回调返回的替换实例向后传递。
func (f *BeanFactory) initializeBean(beanName string, instance any, mbd *RootBeanDefinition) (any, error) {
	bean := instance
	var err error

	if mbd == nil || !mbd.Synthetic {
		bean, err = f.applyBeanPostProcessorsBeforeInitialization(bean, beanName)
		if err != nil {
			return nil, newBeanCreationError(resourceOf(mbd), beanName, "before-initialization failed", err)
		}
	}

	if ib, ok := bean.(InitializingBean); ok {
		if err := ib.AfterPropertiesSet(); err != nil {
			return nil, newBeanCreationError(resourceOf(mbd), beanName, "AfterPropertiesSet failed", err)
		}
	}
	if mbd != nil && mbd.InitFunc != nil {
		if err := mbd.InitFunc(bean); err != nil {
			return nil, newBeanCreationError(resourceOf(mbd), beanName, "init callback failed", err)
		}
	}

	if mbd == nil || !mbd.Synthetic {
		bean, err = f.applyBeanPostProcessorsAfterInitialization(bean, beanName)
		if err != nil {
			return nil, newBeanCreationError(resourceOf(mbd), beanName, "after-initialization failed", err)
		}
	}
	return bean, nil
}

func resourceOf(mbd *RootBeanDefinition) string {
	if mbd == nil {
		return ""
	}
	return mbd.ResourceDescription
}

// applyBeanPostProcessorsBeforeInitialization 依序跑前置回调。
// 返回 nil 实例视为保持上一个结果。
func (f *BeanFactory) applyBeanPostProcessorsBeforeInitialization(bean any, beanName string) (any, error) {
	result := bean
	for _, pp := range f.BeanPostProcessors() {
		current, err := pp.PostProcessBeforeInitialization(result, beanName)
		if err != nil {
			return nil, err
		}
		if current != nil {
			result = current
		}
	}
	return result, nil
}

// applyBeanPostProcessorsAfterInitialization 依序跑后置回调，
// FactoryBean 产物同样经过这里。
func (f *BeanFactory) applyBeanPostProcessorsAfterInitialization(bean any, beanName string) (any, error) {
	result := bean
	for _, pp := range f.BeanPostProcessors() {
		current, err := pp.PostProcessAfterInitialization(result, beanName)
		if err != nil {
			return nil, err
		}
		if current != nil {
			result = current
		}
	}
	return result, nil
}

// registerDisposableBeanIfNecessary 有销毁语义的单例登记到注册表，
// 自定义作用域的生命周期归作用域自己管，原型则完全不托管。
func (f *BeanFactory) registerDisposableBeanIfNecessary(cc *creationContext, beanName string, bean any, mbd *RootBeanDefinition) {
	if mbd.IsPrototype() {
		return
	}
	_, isDisposable := bean.(DisposableBean)
	if !isDisposable && mbd.DestroyFunc == nil {
		return
	}
	adapter := &disposableAdapter{bean: bean, destroyFunc: mbd.DestroyFunc}
	if mbd.IsSingleton() {
		if cc.locked {
			f.reg.registerDisposableBeanLocked(beanName, adapter)
		} else {
			f.reg.registerDisposableBean(beanName, adapter)
		}
		return
	}
	// 自定义作用域：销毁随作用域的 Remove 走，这里不登记
}

