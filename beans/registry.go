package beans

import (
	"fmt"
	"sync"

	"github.com/gocrud/ioc/logging"
)

// ObjectFactory 创建回调。创建过程中的一切递归解析都带着同一个
// creationContext 走内部通道，不会重复抢占单例互斥锁。
type ObjectFactory func(cc *creationContext) (any, error)

// creationContext 贯穿一次顶层解析调用链的显式状态。
//
// 运行时没有可重入锁：互斥锁在调用链首次进入单例创建时获取一次，
// locked 标记向下传递，嵌套的创建直接走已持锁路径。原型的在创建标记
// 也挂在这里（等价于按调用链隔离），只用于环检测。
type creationContext struct {
	locked               bool
	prototypesInCreation map[string]struct{}
}

func newCreationContext() *creationContext {
	return &creationContext{}
}

func (cc *creationContext) prototypeInCreation(name string) bool {
	_, ok := cc.prototypesInCreation[name]
	return ok
}

func (cc *creationContext) beforePrototypeCreation(name string) {
	if cc.prototypesInCreation == nil {
		cc.prototypesInCreation = make(map[string]struct{})
	}
	cc.prototypesInCreation[name] = struct{}{}
}

func (cc *creationContext) afterPrototypeCreation(name string) {
	delete(cc.prototypesInCreation, name)
}

// singletonRegistry 三层单例槽位加创建中标记集：
//
//	singletonObjects        (a) 完全初始化，终态，所有读者可见
//	earlySingletonObjects   (b) 已实例化但尚未填充完的早期引用
//	singletonFactories      (b) 的惰性形式，首次被读取时提升为早期引用
//	singletonsInCreation    创建中名称集，构造器级循环在这里当场失败
//
// 一个名称同一时刻至多出现在 (a)/(b) 其中一层。mu 是"单例互斥锁"，
// 同时守护工厂对象缓存（见 factory_bean.go）：两者绝不并发变更。
type singletonRegistry struct {
	mu sync.Mutex

	singletonObjects      map[string]any
	earlySingletonObjects map[string]any
	singletonFactories    map[string]ObjectFactory
	registeredSingletons  []string

	singletonsInCreation      map[string]struct{}
	inCreationCheckExclusions map[string]struct{}
	inDestruction             bool

	// factoryObjects FactoryBean 产物的卫星缓存，与主槽位同锁同生命周期。
	factoryObjects map[string]any

	// 依赖图：dependentBeans[n] = 依赖 n 的 bean 们；
	// dependenciesForBean[n] = n 依赖的 bean 们；containedBeans[n] = n 拥有的内部 bean。
	depMu               sync.Mutex
	dependentBeans      map[string]map[string]struct{}
	dependenciesForBean map[string]map[string]struct{}
	containedBeans      map[string]map[string]struct{}

	disposableBeans map[string]DisposableBean
	disposableNames []string

	logger logging.Logger
}

func newSingletonRegistry(logger logging.Logger) *singletonRegistry {
	return &singletonRegistry{
		singletonObjects:          make(map[string]any),
		earlySingletonObjects:     make(map[string]any),
		singletonFactories:        make(map[string]ObjectFactory),
		singletonsInCreation:      make(map[string]struct{}),
		inCreationCheckExclusions: make(map[string]struct{}),
		factoryObjects:            make(map[string]any),
		dependentBeans:            make(map[string]map[string]struct{}),
		dependenciesForBean:       make(map[string]map[string]struct{}),
		containedBeans:            make(map[string]map[string]struct{}),
		disposableBeans:           make(map[string]DisposableBean),
		logger:                    logger,
	}
}

// RegisterSingleton 直接登记一个现成实例，绕过创建回调。
func (r *singletonRegistry) RegisterSingleton(name string, instance any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.singletonObjects[name]; ok {
		return fmt.Errorf("beans: could not register singleton %q: name already bound", name)
	}
	r.addSingletonLocked(name, instance)
	return nil
}

// GetSingleton 返回完全构建的实例；没有则返回早期引用；都没有返回
// (nil, false)。本身绝不触发创建。
func (r *singletonRegistry) GetSingleton(name string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getSingletonLocked(name, true)
}

// ContainsSingleton 名称是否已有(a)层实例。
func (r *singletonRegistry) ContainsSingleton(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.containsSingletonLocked(name)
}

func (r *singletonRegistry) containsSingletonLocked(name string) bool {
	_, ok := r.singletonObjects[name]
	return ok
}

// SingletonNames 按注册顺序返回(a)层名称。
func (r *singletonRegistry) SingletonNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.singletonNamesLocked()
}

func (r *singletonRegistry) singletonNamesLocked() []string {
	return append([]string(nil), r.registeredSingletons...)
}

// SingletonCount 已注册单例数量。
func (r *singletonRegistry) SingletonCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.registeredSingletons)
}

// getSingletonLocked 持锁读取。allowEarlyReference 为 true 时允许把
// 工厂槽提升为早期引用，这是循环引用能拿到同一实例的关键。
func (r *singletonRegistry) getSingletonLocked(name string, allowEarlyReference bool) (any, bool) {
	if v, ok := r.singletonObjects[name]; ok {
		return v, true
	}
	if _, creating := r.singletonsInCreation[name]; !creating {
		return nil, false
	}
	if v, ok := r.earlySingletonObjects[name]; ok {
		return v, true
	}
	if !allowEarlyReference {
		return nil, false
	}
	if factory, ok := r.singletonFactories[name]; ok {
		v, err := factory(nil)
		if err != nil {
			// 早期引用工厂只做暴露，不做创建，不应失败
			r.logger.Warn("early reference factory failed",
				logging.Field{Key: "bean", Value: name},
				logging.Field{Key: "error", Value: err.Error()})
			return nil, false
		}
		r.earlySingletonObjects[name] = v
		delete(r.singletonFactories, name)
		return v, true
	}
	return nil, false
}

// getSingletonOrCreate (a)层缺席时走创建：抢锁后二次检查，标记创建中，
// 执行回调，成功则晋升到(a)层并清理(b)层，失败则摘掉标记原样上抛。
func (r *singletonRegistry) getSingletonOrCreate(name string, cc *creationContext, factory ObjectFactory) (any, error) {
	if !cc.locked {
		r.mu.Lock()
		cc.locked = true
		defer func() {
			cc.locked = false
			r.mu.Unlock()
		}()
	}

	// 双重检查：拿到锁之前别的调用链可能已经完成创建
	if v, ok := r.singletonObjects[name]; ok {
		return v, nil
	}
	if r.inDestruction {
		return nil, &BeanCreationError{
			BeanName: name,
			Msg:      "singleton creation not allowed while singletons of this factory are in destruction",
		}
	}

	if err := r.beforeSingletonCreationLocked(name); err != nil {
		return nil, err
	}

	v, err := factory(cc)

	if err != nil {
		// 并发短路：回调期间该名称可能已被隐式注册
		if existing, ok := r.singletonObjects[name]; ok {
			r.afterSingletonCreationLocked(name)
			return existing, nil
		}
		r.afterSingletonCreationLocked(name)
		return nil, err
	}

	r.afterSingletonCreationLocked(name)
	r.addSingletonLocked(name, v)
	return v, nil
}

// addSingletonLocked 晋升到(a)层，同时从(b)层与工厂槽撤下。
func (r *singletonRegistry) addSingletonLocked(name string, instance any) {
	r.singletonObjects[name] = instance
	delete(r.earlySingletonObjects, name)
	delete(r.singletonFactories, name)
	r.registeredSingletons = append(r.registeredSingletons, name)
}

// addSingletonFactoryLocked 登记早期引用工厂。实例已存在于(a)层时忽略。
func (r *singletonRegistry) addSingletonFactoryLocked(name string, factory ObjectFactory) {
	if _, ok := r.singletonObjects[name]; ok {
		return
	}
	r.singletonFactories[name] = factory
	delete(r.earlySingletonObjects, name)
}

// beforeSingletonCreationLocked 显式的创建前括号。名称已在创建中且不在
// 豁免名单里时立即失败——这正是构造器级循环的诊断点。
func (r *singletonRegistry) beforeSingletonCreationLocked(name string) error {
	if _, excluded := r.inCreationCheckExclusions[name]; excluded {
		return nil
	}
	if _, creating := r.singletonsInCreation[name]; creating {
		return &BeanCurrentlyInCreationError{BeanName: name}
	}
	r.singletonsInCreation[name] = struct{}{}
	return nil
}

// afterSingletonCreationLocked 创建后括号，摘除创建中标记。
func (r *singletonRegistry) afterSingletonCreationLocked(name string) {
	if _, excluded := r.inCreationCheckExclusions[name]; excluded {
		return
	}
	delete(r.singletonsInCreation, name)
}

// IsCurrentlyInCreation 名称是否正处于创建中。
func (r *singletonRegistry) IsCurrentlyInCreation(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.singletonsInCreation[name]
	return ok
}

func (r *singletonRegistry) isCurrentlyInCreationLocked(name string) bool {
	_, ok := r.singletonsInCreation[name]
	return ok
}

// SetCurrentlyInCreation 把名称加入/移出创建检查豁免名单，用于已知
// 可容忍的重入场景（例如 FactoryBean 产物的后置处理）。
func (r *singletonRegistry) SetCurrentlyInCreation(name string, inCreation bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !inCreation {
		r.inCreationCheckExclusions[name] = struct{}{}
	} else {
		delete(r.inCreationCheckExclusions, name)
	}
}

// RemoveSingleton 从全部槽位撤下名称，并级联清空工厂对象缓存。
func (r *singletonRegistry) RemoveSingleton(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeSingletonLocked(name)
}

func (r *singletonRegistry) removeSingletonLocked(name string) {
	delete(r.singletonObjects, name)
	delete(r.earlySingletonObjects, name)
	delete(r.singletonFactories, name)
	delete(r.factoryObjects, name)
	for i, n := range r.registeredSingletons {
		if n == name {
			r.registeredSingletons = append(r.registeredSingletons[:i], r.registeredSingletons[i+1:]...)
			break
		}
	}
}

// clearSingletonCacheLocked 清空全部槽位，工厂对象缓存随主层一起失效。
func (r *singletonRegistry) clearSingletonCacheLocked() {
	r.singletonObjects = make(map[string]any)
	r.earlySingletonObjects = make(map[string]any)
	r.singletonFactories = make(map[string]ObjectFactory)
	r.factoryObjects = make(map[string]any)
	r.registeredSingletons = nil
	r.inDestruction = false
}

// RegisterDependentBean 记录依赖边：dependentName 依赖 name。
// 用于销毁排序和环诊断。
func (r *singletonRegistry) RegisterDependentBean(name, dependentName string) {
	r.depMu.Lock()
	defer r.depMu.Unlock()
	set, ok := r.dependentBeans[name]
	if !ok {
		set = make(map[string]struct{})
		r.dependentBeans[name] = set
	}
	set[dependentName] = struct{}{}

	deps, ok := r.dependenciesForBean[dependentName]
	if !ok {
		deps = make(map[string]struct{})
		r.dependenciesForBean[dependentName] = deps
	}
	deps[name] = struct{}{}
}

// RegisterContainedBean 记录包含关系：containedName 是 containingName
// 作用域内的内部 bean，销毁时随外围一起。
func (r *singletonRegistry) RegisterContainedBean(containedName, containingName string) {
	r.depMu.Lock()
	set, ok := r.containedBeans[containingName]
	if !ok {
		set = make(map[string]struct{})
		r.containedBeans[containingName] = set
	}
	set[containedName] = struct{}{}
	r.depMu.Unlock()

	// 包含关系同时也是销毁顺序上的依赖关系
	r.RegisterDependentBean(containedName, containingName)
}

// IsDependent dependentName 是否（传递地）依赖 name。
func (r *singletonRegistry) IsDependent(name, dependentName string) bool {
	r.depMu.Lock()
	defer r.depMu.Unlock()
	return r.isDependentLocked(name, dependentName, nil)
}

func (r *singletonRegistry) isDependentLocked(name, dependentName string, seen map[string]struct{}) bool {
	if _, ok := seen[name]; ok {
		return false
	}
	dependents, ok := r.dependentBeans[name]
	if !ok {
		return false
	}
	if _, ok := dependents[dependentName]; ok {
		return true
	}
	if seen == nil {
		seen = make(map[string]struct{})
	}
	seen[name] = struct{}{}
	for transitive := range dependents {
		if r.isDependentLocked(transitive, dependentName, seen) {
			return true
		}
	}
	return false
}

// DependentBeans 依赖 name 的 bean 名称。
func (r *singletonRegistry) DependentBeans(name string) []string {
	r.depMu.Lock()
	defer r.depMu.Unlock()
	return setToSlice(r.dependentBeans[name])
}

// DependenciesForBean name 所依赖的 bean 名称。
func (r *singletonRegistry) DependenciesForBean(name string) []string {
	r.depMu.Lock()
	defer r.depMu.Unlock()
	return setToSlice(r.dependenciesForBean[name])
}

func setToSlice(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	return out
}

// registerDisposableBean 登记销毁回调，按登记顺序的逆序执行。
func (r *singletonRegistry) registerDisposableBean(name string, d DisposableBean) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registerDisposableBeanLocked(name, d)
}

func (r *singletonRegistry) registerDisposableBeanLocked(name string, d DisposableBean) {
	if _, ok := r.disposableBeans[name]; !ok {
		r.disposableNames = append(r.disposableNames, name)
	}
	r.disposableBeans[name] = d
}

// DestroySingletons 容器收尾：逆序销毁全部可销毁 bean，随后清空所有
// 槽位与依赖图。启动失败后的清理也是走这里，不会自动触发。
func (r *singletonRegistry) DestroySingletons() {
	r.mu.Lock()
	r.inDestruction = true
	names := append([]string(nil), r.disposableNames...)
	r.mu.Unlock()

	for i := len(names) - 1; i >= 0; i-- {
		r.DestroySingleton(names[i])
	}

	r.depMu.Lock()
	r.containedBeans = make(map[string]map[string]struct{})
	r.dependentBeans = make(map[string]map[string]struct{})
	r.dependenciesForBean = make(map[string]map[string]struct{})
	r.depMu.Unlock()

	r.mu.Lock()
	r.clearSingletonCacheLocked()
	r.mu.Unlock()
}

// DestroySingleton 销毁单个 bean：先撤槽位，再按"依赖者优先"的顺序
// 递归销毁，最后处理它拥有的内部 bean。
func (r *singletonRegistry) DestroySingleton(name string) {
	r.RemoveSingleton(name)

	r.mu.Lock()
	d := r.disposableBeans[name]
	delete(r.disposableBeans, name)
	for i, n := range r.disposableNames {
		if n == name {
			r.disposableNames = append(r.disposableNames[:i], r.disposableNames[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.destroyBean(name, d)
}

func (r *singletonRegistry) destroyBean(name string, d DisposableBean) {
	// 依赖本 bean 的先销毁
	r.depMu.Lock()
	dependents := setToSlice(r.dependentBeans[name])
	delete(r.dependentBeans, name)
	r.depMu.Unlock()

	for _, dep := range dependents {
		r.DestroySingleton(dep)
	}

	if d != nil {
		if err := d.Destroy(); err != nil {
			r.logger.Warn("destroy callback threw an error",
				logging.Field{Key: "bean", Value: name},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}

	// 它拥有的内部 bean 随之销毁
	r.depMu.Lock()
	contained := setToSlice(r.containedBeans[name])
	delete(r.containedBeans, name)
	r.depMu.Unlock()

	for _, c := range contained {
		r.DestroySingleton(c)
	}

	// 从其余 bean 的依赖者集合里摘掉自己
	r.depMu.Lock()
	for _, dependents := range r.dependentBeans {
		delete(dependents, name)
	}
	delete(r.dependenciesForBean, name)
	r.depMu.Unlock()
}
