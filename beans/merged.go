package beans

import (
	"reflect"
	"sync"
)

// RootBeanDefinition 合并后的运行时定义视图：父链已经展平，并额外缓存
// 运行期的发现结果（解析出的目标类型、工厂方法、是否为 FactoryBean）。
//
// 视图只在声明它的定义及其所有祖先保持不变的前提下有效；任何一环被
// 替换都会把 stale 置位，下一次请求触发重新合并。
type RootBeanDefinition struct {
	BeanDefinition

	// stale 为 true 时缓存失效，需要重新合并。
	mu    sync.Mutex
	stale bool

	// resolvedTargetType 缓存的目标类型（可能来自工厂函数返回值）。
	resolvedTargetType reflect.Type

	// isFactoryBean 缓存的 FactoryBean 判定，nil 表示还没判定过。
	isFactoryBean *bool

	// resolvedFactoryMethod 缓存的工厂方法句柄。
	resolvedFactoryMethod *reflect.Method

	// postProcessed 合并定义后置处理器是否已应用过。
	postProcessed bool

	// beforeInstantiationResolved 实例化前短路处理器是否已经给过答案。
	beforeInstantiationResolved *bool
}

func (r *RootBeanDefinition) markStale() {
	r.mu.Lock()
	r.stale = true
	r.mu.Unlock()
}

func (r *RootBeanDefinition) isStale() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stale
}

// TargetType 已解析的目标类型，未解析时返回 nil。
func (r *RootBeanDefinition) TargetType() reflect.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolvedTargetType != nil {
		return r.resolvedTargetType
	}
	return r.Type
}

func (r *RootBeanDefinition) setResolvedTargetType(t reflect.Type) {
	r.mu.Lock()
	r.resolvedTargetType = t
	r.mu.Unlock()
}

var factoryBeanType = reflect.TypeOf((*FactoryBean)(nil)).Elem()

// IsFactoryBean 判定目标类型是否实现 FactoryBean，结果缓存在视图上。
func (r *RootBeanDefinition) IsFactoryBean() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isFactoryBean != nil {
		return *r.isFactoryBean
	}
	t := r.resolvedTargetType
	if t == nil {
		t = r.Type
	}
	result := t != nil && t.Implements(factoryBeanType)
	r.isFactoryBean = &result
	return result
}

// mergeBeanDefinition 把 bd 与（可能多级的）父链展平成一个根视图。
// containing 是内部 bean 的外围定义，用于继承作用域语义：单例外围下的
// 非原型内部 bean 跟随外围的作用域。
func (f *BeanFactory) mergeBeanDefinition(name string, bd *BeanDefinition, containing *BeanDefinition) (*RootBeanDefinition, error) {
	flat, err := f.flattenDefinition(name, bd, map[string]struct{}{name: {}})
	if err != nil {
		return nil, err
	}

	// 空作用域归一化为单例
	if flat.Scope == ScopeDefault {
		flat.Scope = ScopeSingleton
	}

	// 非单例外围中的内部 bean 不能自行声明单例
	if containing != nil && !containing.IsSingleton() && flat.IsSingleton() {
		flat.Scope = containing.Scope
	}

	return &RootBeanDefinition{BeanDefinition: *flat}, nil
}

// flattenDefinition 递归展平父链：先取父的展平结果作底，再把子定义的
// 显式设置覆盖上去。visiting 用于发现父链上的环。
func (f *BeanFactory) flattenDefinition(name string, bd *BeanDefinition, visiting map[string]struct{}) (*BeanDefinition, error) {
	if bd.Parent == "" {
		return bd.Clone(), nil
	}

	if _, ok := visiting[bd.Parent]; ok {
		return nil, &BeanDefinitionStoreError{
			BeanName: name,
			Msg:      "cyclic parent chain via '" + bd.Parent + "'",
		}
	}
	visiting[bd.Parent] = struct{}{}

	parentDef, ok := f.getBeanDefinitionLocked(bd.Parent)
	if !ok {
		if f.parent != nil {
			var err error
			parentDef, err = f.parent.getBeanDefinitionAnywhere(bd.Parent)
			if err != nil {
				return nil, &BeanDefinitionStoreError{
					BeanName: name,
					Msg:      "could not resolve parent definition '" + bd.Parent + "'",
					Err:      err,
				}
			}
		} else {
			return nil, &BeanDefinitionStoreError{
				BeanName: name,
				Msg:      "could not resolve parent definition '" + bd.Parent + "'",
			}
		}
	}

	base, err := f.flattenDefinition(bd.Parent, parentDef, visiting)
	if err != nil {
		return nil, err
	}

	overlayDefinition(base, bd)
	return base, nil
}

// overlayDefinition 把 child 的显式设置覆盖到 base 上。子定义的
// 类型/作用域/工厂声明优先于父定义；属性与参数按追加合并，同名属性
// 子定义覆盖父定义。标志位字段只在子定义非零或带显式覆盖标记时才
// 覆盖，子定义沉默即继承父定义（LazyInit:true 的模板因此可被继承）。
func overlayDefinition(base, child *BeanDefinition) {
	if child.Type != nil {
		base.Type = child.Type
	}
	if child.Scope != ScopeDefault {
		base.Scope = child.Scope
	}
	if child.FactoryFn != nil {
		base.FactoryFn = child.FactoryFn
	}
	if child.FactoryBeanName != "" {
		base.FactoryBeanName = child.FactoryBeanName
	}
	if child.FactoryMethodName != "" {
		base.FactoryMethodName = child.FactoryMethodName
	}
	if len(child.ConstructorArgs) > 0 {
		base.ConstructorArgs = append([]Value(nil), child.ConstructorArgs...)
	}
	for _, pv := range child.Properties {
		replaced := false
		for i := range base.Properties {
			if base.Properties[i].Name == pv.Name {
				base.Properties[i] = pv
				replaced = true
				break
			}
		}
		if !replaced {
			base.Properties = append(base.Properties, pv)
		}
	}
	if len(child.DependsOn) > 0 {
		base.DependsOn = append([]string(nil), child.DependsOn...)
	}
	if child.lazyInitSet || child.LazyInit {
		base.LazyInit = child.LazyInit
		base.lazyInitSet = true
	}
	if child.primarySet || child.Primary {
		base.Primary = child.Primary
		base.primarySet = true
	}
	if child.roleSet || child.Role != RoleApplication {
		base.Role = child.Role
		base.roleSet = true
	}
	if child.syntheticSet || child.Synthetic {
		base.Synthetic = child.Synthetic
		base.syntheticSet = true
	}
	if child.autowireByTypeSet || child.AutowireByType {
		base.AutowireByType = child.AutowireByType
		base.autowireByTypeSet = true
	}
	if child.InitFunc != nil {
		base.InitFunc = child.InitFunc
	}
	if child.DestroyFunc != nil {
		base.DestroyFunc = child.DestroyFunc
	}
	if child.ResourceDescription != "" {
		base.ResourceDescription = child.ResourceDescription
	}
	base.Parent = ""
}
