package beans

import (
	"fmt"
	"reflect"
)

// FactoryBeanPrefix 名称前缀：取 FactoryBean 本身而不是它的产物。
const FactoryBeanPrefix = "&"

// FactoryBean 工厂间接 bean：注册的是工厂，对外暴露的是工厂的产物。
// 产物的缓存由容器的卫星缓存负责，工厂自己不需要做记忆化。
type FactoryBean interface {
	// GetObject 返回工厂的产物。
	GetObject() (any, error)
	// ObjectType 产物类型，尚不可知时返回 nil。
	ObjectType() reflect.Type
	// IsSingleton 产物是否按单例缓存。
	IsSingleton() bool
}

// FactoryBeanNotInitializedError 工厂在自身初始化完成前被要求产出对象。
// 容器会把它翻译成创建中信号而不是普通失败。
type FactoryBeanNotInitializedError struct {
	Msg string
}

func (e *FactoryBeanNotInitializedError) Error() string {
	if e.Msg == "" {
		return "beans: FactoryBean is not fully initialized yet"
	}
	return "beans: " + e.Msg
}

// GetObjectFromFactoryBean 从 FactoryBean 获得应暴露的对象，单例产物
// 走卫星缓存。供外部协作方（如代理生成）直接调用。
func (f *BeanFactory) GetObjectFromFactoryBean(factory FactoryBean, name string, shouldPostProcess bool) (any, error) {
	return f.getObjectFromFactoryBean(newCreationContext(), factory, name, shouldPostProcess)
}

// getObjectFromFactoryBean 核心逻辑。产物缓存与主单例层共用一把互斥锁：
// 两者绝不并发变更，跨调用链读到的早期引用因此是一致的。
func (f *BeanFactory) getObjectFromFactoryBean(cc *creationContext, factory FactoryBean, name string, shouldPostProcess bool) (any, error) {
	if factory.IsSingleton() && f.containsSingleton(cc, name) {
		if !cc.locked {
			f.reg.mu.Lock()
			cc.locked = true
			defer func() {
				cc.locked = false
				f.reg.mu.Unlock()
			}()
		}

		if object, ok := f.reg.factoryObjects[name]; ok {
			return object, nil
		}

		object, err := f.doGetObjectFromFactoryBean(factory, name)
		if err != nil {
			return nil, err
		}
		// GetObject 执行期间可能经由循环引用处理已经写入缓存，以先写入的为准
		if alreadyThere, ok := f.reg.factoryObjects[name]; ok {
			return alreadyThere, nil
		}

		if shouldPostProcess {
			if f.reg.isCurrentlyInCreationLocked(name) {
				// 名称在创建中：容忍重入，返回未后置处理的对象且不缓存
				return object, nil
			}
			if err := f.reg.beforeSingletonCreationLocked(name); err != nil {
				return nil, err
			}
			processed, ppErr := f.applyBeanPostProcessorsAfterInitialization(object, name)
			f.reg.afterSingletonCreationLocked(name)
			if ppErr != nil {
				return nil, newBeanCreationError("", name,
					"post-processing of FactoryBean's singleton object failed", ppErr)
			}
			object = processed
		}
		if _, ok := f.reg.singletonObjects[name]; ok {
			f.reg.factoryObjects[name] = object
		}
		return object, nil
	}

	// 非单例工厂（或主层没有该名称）：每次调用都产出，不缓存
	object, err := f.doGetObjectFromFactoryBean(factory, name)
	if err != nil {
		return nil, err
	}
	if shouldPostProcess {
		processed, ppErr := f.applyBeanPostProcessorsAfterInitialization(object, name)
		if ppErr != nil {
			return nil, newBeanCreationError("", name,
				"post-processing of FactoryBean's object failed", ppErr)
		}
		object = processed
	}
	return object, nil
}

// doGetObjectFromFactoryBean 调用访问器并归一化结果。
func (f *BeanFactory) doGetObjectFromFactoryBean(factory FactoryBean, name string) (any, error) {
	object, err := safeGetObject(factory)
	if err != nil {
		if _, notReady := err.(*FactoryBeanNotInitializedError); notReady {
			return nil, &BeanCurrentlyInCreationError{BeanName: name, Msg: err.Error()}
		}
		return nil, newBeanCreationError("", name, "FactoryBean threw exception on object creation", err)
	}

	// 未初始化完的工厂常常返回空：创建中返回空本身就是创建中信号
	if object == nil {
		if f.reg.isCurrentlyInCreationLocked(name) {
			return nil, &BeanCurrentlyInCreationError{
				BeanName: name,
				Msg:      "FactoryBean which is currently in creation returned nil from GetObject",
			}
		}
		object = nullBean
	}
	return object, nil
}

// safeGetObject 把访问器内部的 panic 收敛成错误。
func safeGetObject(factory FactoryBean) (object any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			object = nil
			err = fmt.Errorf("panic in FactoryBean.GetObject: %v", rec)
		}
	}()
	return factory.GetObject()
}

// CachedObjectForFactoryBean 缓存中的产物，最小同步的快速检查。
func (f *BeanFactory) CachedObjectForFactoryBean(name string) (any, bool) {
	f.reg.mu.Lock()
	defer f.reg.mu.Unlock()
	v, ok := f.reg.factoryObjects[name]
	return v, ok
}

// asFactoryBean 实例必须是 FactoryBean 时的断言。
func asFactoryBean(name string, instance any) (FactoryBean, error) {
	fb, ok := instance.(FactoryBean)
	if !ok {
		return nil, newBeanCreationError("", name,
			fmt.Sprintf("bean instance of type %T is not a FactoryBean", instance), nil)
	}
	return fb, nil
}
