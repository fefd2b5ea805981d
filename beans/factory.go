package beans

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gocrud/ioc/logging"
)

// BeanFactory 按名称管理 bean 定义与实例的容器：定义注册与合并、
// 单例注册表、值解析、FactoryBean 产物缓存都汇聚在这里。
//
// 容器是显式构造、显式传递的对象：构造为空 → 注册定义与处理器 →
// （可选）冻结 → 急切实例化 → 销毁，没有任何隐式的进程级状态。
type BeanFactory struct {
	reg *singletonRegistry

	defMu           sync.RWMutex
	definitions     map[string]*BeanDefinition
	definitionNames []string
	aliases         map[string]string
	merged          map[string]*RootBeanDefinition
	frozen          bool

	parent *BeanFactory
	scopes map[string]Scope

	procMu                sync.RWMutex
	processors            []BeanPostProcessor
	hasInstantiationAware bool

	exprResolver            ExpressionResolver
	typeConverter           TypeConverter
	dependencyComparator    func(a, b any) int
	allowCircularReferences bool

	logger logging.Logger
}

// FactoryOption 工厂构造选项。
type FactoryOption func(*BeanFactory)

// WithParent 设置父工厂，本地缺席的名称会向上委托。
func WithParent(parent *BeanFactory) FactoryOption {
	return func(f *BeanFactory) { f.parent = parent }
}

// WithLogger 设置日志记录器。
func WithLogger(logger logging.Logger) FactoryOption {
	return func(f *BeanFactory) { f.logger = logger }
}

// WithExpressionResolver 设置表达式求值协作方。
func WithExpressionResolver(r ExpressionResolver) FactoryOption {
	return func(f *BeanFactory) { f.exprResolver = r }
}

// WithTypeConverter 设置类型转换协作方。
func WithTypeConverter(c TypeConverter) FactoryOption {
	return func(f *BeanFactory) { f.typeConverter = c }
}

// WithDependencyComparator 覆盖后置处理器排序的比较器。
func WithDependencyComparator(cmp func(a, b any) int) FactoryOption {
	return func(f *BeanFactory) { f.dependencyComparator = cmp }
}

// WithoutCircularReferences 禁止 setter 级循环引用（默认允许）。
func WithoutCircularReferences() FactoryOption {
	return func(f *BeanFactory) { f.allowCircularReferences = false }
}

// NewBeanFactory 创建空容器。
func NewBeanFactory(opts ...FactoryOption) *BeanFactory {
	f := &BeanFactory{
		definitions:             make(map[string]*BeanDefinition),
		aliases:                 make(map[string]string),
		merged:                  make(map[string]*RootBeanDefinition),
		scopes:                  make(map[string]Scope),
		exprResolver:            noopExpressionResolver{},
		typeConverter:           simpleTypeConverter{},
		allowCircularReferences: true,
		logger:                  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.reg = newSingletonRegistry(f.logger.WithCategory("beans.registry"))
	return f
}

// Parent 父工厂，可能为 nil。
func (f *BeanFactory) Parent() *BeanFactory { return f.parent }

// Logger 容器日志记录器。
func (f *BeanFactory) Logger() logging.Logger { return f.logger }

// -------- 定义注册表 --------

// RegisterBeanDefinition 注册或替换名称对应的定义。冻结后拒绝；替换会
// 使旧定义的合并视图及所有派生缓存失效。
func (f *BeanFactory) RegisterBeanDefinition(name string, def *BeanDefinition) error {
	if name == "" {
		return &BeanDefinitionStoreError{Msg: "bean name must not be empty"}
	}
	if def == nil {
		return &BeanDefinitionStoreError{BeanName: name, Msg: "definition must not be nil"}
	}
	if err := def.Validate(); err != nil {
		return &BeanDefinitionStoreError{BeanName: name, Msg: "validation failed", Err: err}
	}

	f.defMu.Lock()
	if f.frozen {
		f.defMu.Unlock()
		return &BeanDefinitionStoreError{BeanName: name, Msg: "factory configuration is frozen"}
	}
	_, existing := f.definitions[name]
	f.definitions[name] = def
	if !existing {
		f.definitionNames = append(f.definitionNames, name)
	}
	f.defMu.Unlock()

	if existing {
		f.resetBeanDefinition(name)
	}
	return nil
}

// RemoveBeanDefinition 移除定义并作废全部派生状态。
func (f *BeanFactory) RemoveBeanDefinition(name string) error {
	f.defMu.Lock()
	if f.frozen {
		f.defMu.Unlock()
		return &BeanDefinitionStoreError{BeanName: name, Msg: "factory configuration is frozen"}
	}
	if _, ok := f.definitions[name]; !ok {
		f.defMu.Unlock()
		return &NoSuchBeanDefinitionError{BeanName: name}
	}
	delete(f.definitions, name)
	for i, n := range f.definitionNames {
		if n == name {
			f.definitionNames = append(f.definitionNames[:i], f.definitionNames[i+1:]...)
			break
		}
	}
	f.defMu.Unlock()

	f.resetBeanDefinition(name)
	return nil
}

// resetBeanDefinition 定义被替换/移除后的级联清理：合并视图标脏并丢弃，
// 对应单例撤下，合并定义后置处理器收到通知，父链引用它的子定义递归重置。
func (f *BeanFactory) resetBeanDefinition(name string) {
	f.defMu.Lock()
	if mbd, ok := f.merged[name]; ok {
		mbd.markStale()
		delete(f.merged, name)
	}
	f.defMu.Unlock()

	f.reg.DestroySingleton(name)

	f.procMu.RLock()
	processors := append([]BeanPostProcessor(nil), f.processors...)
	f.procMu.RUnlock()
	for _, pp := range processors {
		if mdpp, ok := pp.(MergedBeanDefinitionPostProcessor); ok {
			mdpp.ResetBeanDefinition(name)
		}
	}

	// 合并链包含本名称的子定义同样失效
	f.defMu.RLock()
	var children []string
	for childName, def := range f.definitions {
		if def.Parent == name {
			children = append(children, childName)
		}
	}
	f.defMu.RUnlock()
	for _, child := range children {
		f.resetBeanDefinition(child)
	}
}

// RegisterAlias 注册别名。别名与已有名称冲突时报错。
func (f *BeanFactory) RegisterAlias(name, alias string) error {
	if alias == name {
		return nil
	}
	f.defMu.Lock()
	defer f.defMu.Unlock()
	if _, ok := f.definitions[alias]; ok {
		return &BeanDefinitionStoreError{BeanName: alias, Msg: "cannot register alias: name already bound to a definition"}
	}
	if registered, ok := f.aliases[alias]; ok && registered != name {
		return &BeanDefinitionStoreError{BeanName: alias,
			Msg: fmt.Sprintf("cannot register alias for %q: already bound to %q", name, registered)}
	}
	f.aliases[alias] = name
	return nil
}

// IsAlias 名称是否是别名。
func (f *BeanFactory) IsAlias(name string) bool {
	f.defMu.RLock()
	defer f.defMu.RUnlock()
	_, ok := f.aliases[name]
	return ok
}

// canonicalName 解开别名链得到正名。
func (f *BeanFactory) canonicalName(name string) string {
	f.defMu.RLock()
	defer f.defMu.RUnlock()
	for {
		target, ok := f.aliases[name]
		if !ok {
			return name
		}
		name = target
	}
}

// transformedBeanName 去掉 FactoryBean 取引前缀并解别名。
func (f *BeanFactory) transformedBeanName(name string) string {
	return f.canonicalName(strings.TrimLeft(name, FactoryBeanPrefix))
}

func isFactoryDereference(name string) bool {
	return strings.HasPrefix(name, FactoryBeanPrefix)
}

// ContainsBeanDefinition 本地是否注册了该名称的定义。
func (f *BeanFactory) ContainsBeanDefinition(name string) bool {
	f.defMu.RLock()
	defer f.defMu.RUnlock()
	_, ok := f.definitions[name]
	return ok
}

// GetBeanDefinition 取原始（未合并）定义。
func (f *BeanFactory) GetBeanDefinition(name string) (*BeanDefinition, error) {
	f.defMu.RLock()
	defer f.defMu.RUnlock()
	def, ok := f.definitions[name]
	if !ok {
		return nil, &NoSuchBeanDefinitionError{BeanName: name}
	}
	return def, nil
}

func (f *BeanFactory) getBeanDefinitionLocked(name string) (*BeanDefinition, bool) {
	f.defMu.RLock()
	defer f.defMu.RUnlock()
	def, ok := f.definitions[name]
	return def, ok
}

// getBeanDefinitionAnywhere 沿父链查找原始定义。
func (f *BeanFactory) getBeanDefinitionAnywhere(name string) (*BeanDefinition, error) {
	if def, ok := f.getBeanDefinitionLocked(name); ok {
		return def, nil
	}
	if f.parent != nil {
		return f.parent.getBeanDefinitionAnywhere(name)
	}
	return nil, &NoSuchBeanDefinitionError{BeanName: name}
}

// BeanDefinitionNames 注册顺序的定义名称。
func (f *BeanFactory) BeanDefinitionNames() []string {
	f.defMu.RLock()
	defer f.defMu.RUnlock()
	return append([]string(nil), f.definitionNames...)
}

// BeanDefinitionCount 定义数量。
func (f *BeanFactory) BeanDefinitionCount() int {
	f.defMu.RLock()
	defer f.defMu.RUnlock()
	return len(f.definitions)
}

// ContainsBean 名称是否可解析：本地定义或单例，否则问父工厂。
func (f *BeanFactory) ContainsBean(name string) bool {
	return f.containsBean(newCreationContext(), name)
}

func (f *BeanFactory) containsBean(cc *creationContext, name string) bool {
	beanName := f.transformedBeanName(name)
	if f.ContainsBeanDefinition(beanName) || f.containsSingleton(cc, beanName) {
		return true
	}
	if f.parent != nil {
		// 父工厂持有自己的互斥锁，不受本调用链锁状态影响
		return f.parent.ContainsBean(name)
	}
	return false
}

// isBeanNameInUse 内部 bean 去重用：别名、本地绑定或已有依赖记录都算占用。
func (f *BeanFactory) isBeanNameInUse(cc *creationContext, name string) bool {
	if f.IsAlias(name) {
		return true
	}
	if f.ContainsBeanDefinition(name) || f.containsSingleton(cc, name) {
		return true
	}
	return len(f.reg.DependentBeans(name)) > 0
}

// FreezeConfiguration 冻结注册表：此后注册/移除被拒绝，缓存的合并视图
// 被视为永久有效。
func (f *BeanFactory) FreezeConfiguration() {
	f.defMu.Lock()
	f.frozen = true
	f.defMu.Unlock()
}

// IsConfigurationFrozen 是否已冻结。
func (f *BeanFactory) IsConfigurationFrozen() bool {
	f.defMu.RLock()
	defer f.defMu.RUnlock()
	return f.frozen
}

// ClearMetadataCache 丢弃全部缓存的合并视图（冻结后为空操作）。
func (f *BeanFactory) ClearMetadataCache() {
	f.defMu.Lock()
	defer f.defMu.Unlock()
	if f.frozen {
		return
	}
	for _, mbd := range f.merged {
		mbd.markStale()
	}
	f.merged = make(map[string]*RootBeanDefinition)
}

// RegisterScope 注册自定义作用域。singleton/prototype 不可覆盖。
func (f *BeanFactory) RegisterScope(name string, scope Scope) error {
	if name == ScopeSingleton || name == ScopePrototype {
		return fmt.Errorf("beans: cannot replace existing scope %q", name)
	}
	f.defMu.Lock()
	f.scopes[name] = scope
	f.defMu.Unlock()
	return nil
}

// -------- 合并视图 --------

// GetMergedBeanDefinition 名称对应的展平运行时视图，带缓存。
// 视图在声明定义或任一祖先变化前有效；stale 置位后强制重新合并。
func (f *BeanFactory) GetMergedBeanDefinition(name string) (*RootBeanDefinition, error) {
	beanName := f.transformedBeanName(name)
	if !f.ContainsBeanDefinition(beanName) && f.parent != nil {
		return f.parent.GetMergedBeanDefinition(beanName)
	}
	return f.getMergedLocalBeanDefinition(beanName)
}

func (f *BeanFactory) getMergedLocalBeanDefinition(beanName string) (*RootBeanDefinition, error) {
	f.defMu.RLock()
	cached, ok := f.merged[beanName]
	f.defMu.RUnlock()
	if ok && !cached.isStale() {
		return cached, nil
	}

	def, ok := f.getBeanDefinitionLocked(beanName)
	if !ok {
		return nil, &NoSuchBeanDefinitionError{BeanName: beanName}
	}
	mbd, err := f.mergeBeanDefinition(beanName, def, nil)
	if err != nil {
		return nil, err
	}

	f.defMu.Lock()
	// 并发合并时保留先写入的缓存
	if existing, ok := f.merged[beanName]; ok && !existing.isStale() {
		f.defMu.Unlock()
		return existing, nil
	}
	f.merged[beanName] = mbd
	f.defMu.Unlock()
	return mbd, nil
}

// -------- 注册表读取（随调用链锁状态分派） --------
//
// 创建回调在持有单例互斥锁的状态下运行（见 getSingletonOrCreate）。
// 创建期间可达的每一条注册表读路径都必须经由这组按 cc.locked 分派的
// 读取器，直接调用加锁的公开方法会在同一调用链上二次抢锁。

func (f *BeanFactory) getSingleton(cc *creationContext, name string) (any, bool) {
	if cc.locked {
		return f.reg.getSingletonLocked(name, true)
	}
	return f.reg.GetSingleton(name)
}

func (f *BeanFactory) containsSingleton(cc *creationContext, name string) bool {
	if cc.locked {
		return f.reg.containsSingletonLocked(name)
	}
	return f.reg.ContainsSingleton(name)
}

func (f *BeanFactory) singletonNames(cc *creationContext) []string {
	if cc.locked {
		return f.reg.singletonNamesLocked()
	}
	return f.reg.SingletonNames()
}

// -------- 解析入口 --------

// GetBean 按名称解析 bean。"&name" 取 FactoryBean 本身。
// 空 bean 占位统一转换回 nil。
func (f *BeanFactory) GetBean(name string) (any, error) {
	v, err := f.doGetBean(newCreationContext(), name)
	if err != nil {
		return nil, err
	}
	if _, isNull := v.(*NullBean); isNull {
		return nil, nil
	}
	return v, nil
}

// Get 泛型便捷入口：按名称解析并断言为 T。
func Get[T any](f *BeanFactory, name string) (T, error) {
	var zero T
	v, err := f.GetBean(name)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, &TypeMismatchError{Value: v, TargetType: reflect.TypeOf((*T)(nil)).Elem().String()}
	}
	return typed, nil
}

// GetByType 按类型 T 解析唯一（或 Primary）候选。
func GetByType[T any](f *BeanFactory) (T, error) {
	var zero T
	v, _, err := f.ResolveNamedBean(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, &TypeMismatchError{Value: v, TargetType: reflect.TypeOf((*T)(nil)).Elem().String()}
	}
	return typed, nil
}

// doGetBean 解析主流程。cc 携带调用链的锁状态与原型创建标记。
func (f *BeanFactory) doGetBean(cc *creationContext, name string) (any, error) {
	beanName := f.transformedBeanName(name)

	// 急切检查单例缓存：完全体或早期引用都直接用
	if shared, found := f.getSingleton(cc, beanName); found {
		return f.getObjectForBeanInstance(cc, shared, name, beanName, nil)
	}

	// 原型环：同一调用链内重入即为不可解的环
	if cc.prototypeInCreation(beanName) {
		return nil, &BeanCurrentlyInCreationError{BeanName: beanName}
	}

	// 本地没有定义时向父工厂委托
	if !f.ContainsBeanDefinition(beanName) && f.parent != nil {
		return f.parent.GetBean(name)
	}

	mbd, err := f.getMergedLocalBeanDefinition(beanName)
	if err != nil {
		return nil, err
	}

	// 显式前置依赖先行创建；depends-on 不允许成环
	for _, dep := range mbd.DependsOn {
		if f.reg.IsDependent(beanName, dep) {
			return nil, newBeanCreationError(mbd.ResourceDescription, beanName,
				fmt.Sprintf("circular depends-on relationship between %q and %q", beanName, dep), nil)
		}
		f.reg.RegisterDependentBean(dep, beanName)
		if _, err := f.doGetBean(cc, dep); err != nil {
			return nil, newBeanCreationError(mbd.ResourceDescription, beanName,
				fmt.Sprintf("%q depends on missing bean %q", beanName, dep), err)
		}
	}

	var instance any
	switch {
	case mbd.IsSingleton():
		instance, err = f.reg.getSingletonOrCreate(beanName, cc, func(cc *creationContext) (any, error) {
			return f.createBean(cc, beanName, mbd)
		})

	case mbd.IsPrototype():
		cc.beforePrototypeCreation(beanName)
		instance, err = f.createBean(cc, beanName, mbd)
		cc.afterPrototypeCreation(beanName)

	default:
		f.defMu.RLock()
		scope, ok := f.scopes[mbd.Scope]
		f.defMu.RUnlock()
		if !ok {
			return nil, newBeanCreationError(mbd.ResourceDescription, beanName,
				fmt.Sprintf("no scope registered for scope name %q", mbd.Scope), nil)
		}
		instance, err = scope.Get(beanName, func() (any, error) {
			cc.beforePrototypeCreation(beanName)
			defer cc.afterPrototypeCreation(beanName)
			return f.createBean(cc, beanName, mbd)
		})
	}
	if err != nil {
		return nil, err
	}

	return f.getObjectForBeanInstance(cc, instance, name, beanName, mbd)
}

// getObjectForBeanInstance FactoryBean 间接层：按请求形态决定交出工厂
// 本身还是其产物。
func (f *BeanFactory) getObjectForBeanInstance(cc *creationContext, instance any, requestedName, beanName string, mbd *RootBeanDefinition) (any, error) {
	if isFactoryDereference(requestedName) {
		if _, isNull := instance.(*NullBean); isNull {
			return instance, nil
		}
		fb, err := asFactoryBean(beanName, instance)
		if err != nil {
			return nil, err
		}
		return fb, nil
	}

	fb, isFactory := instance.(FactoryBean)
	if !isFactory {
		return instance, nil
	}

	shouldPostProcess := mbd == nil || !mbd.Synthetic
	return f.getObjectFromFactoryBean(cc, fb, beanName, shouldPostProcess)
}

// -------- 类型查询 --------

// GetType 预测名称对应 bean 的类型。FactoryBean 默认给出产物类型，
// "&" 前缀给出工厂类型。
func (f *BeanFactory) GetType(name string) reflect.Type {
	return f.getType(newCreationContext(), name)
}

func (f *BeanFactory) getType(cc *creationContext, name string) reflect.Type {
	beanName := f.transformedBeanName(name)

	if v, ok := f.getSingleton(cc, beanName); ok {
		if fb, isFactory := v.(FactoryBean); isFactory && !isFactoryDereference(name) {
			return fb.ObjectType()
		}
		return reflect.TypeOf(v)
	}

	mbd, err := f.getMergedLocalBeanDefinition(beanName)
	if err != nil {
		if f.parent != nil {
			return f.parent.GetType(name)
		}
		return nil
	}
	predicted := f.predictBeanType(cc, beanName, mbd)
	if predicted != nil && predicted.Implements(factoryBeanType) && !isFactoryDereference(name) {
		return f.getTypeForFactoryBean(cc, beanName, mbd)
	}
	return predicted
}

// predictBeanType 不实例化地预测定义的目标类型。
func (f *BeanFactory) predictBeanType(cc *creationContext, beanName string, mbd *RootBeanDefinition) reflect.Type {
	if t := mbd.TargetType(); t != nil {
		return t
	}
	if mbd.FactoryFn != nil {
		fnType := reflect.TypeOf(mbd.FactoryFn)
		if fnType.Kind() == reflect.Func && fnType.NumOut() > 0 {
			t := fnType.Out(0)
			mbd.setResolvedTargetType(t)
			return t
		}
	}
	if mbd.FactoryBeanName != "" && mbd.FactoryMethodName != "" {
		factoryType := f.getType(cc, mbd.FactoryBeanName)
		if factoryType != nil {
			if m, ok := factoryType.MethodByName(mbd.FactoryMethodName); ok && m.Type.NumOut() > 0 {
				t := m.Type.Out(0)
				mbd.setResolvedTargetType(t)
				return t
			}
		}
	}
	return nil
}

// getTypeForFactoryBean FactoryBean 的产物类型：已有实例就问实例，
// 否则实例化工厂本身（"&" 形态）再问。
func (f *BeanFactory) getTypeForFactoryBean(cc *creationContext, beanName string, mbd *RootBeanDefinition) reflect.Type {
	if v, ok := f.getSingleton(cc, beanName); ok {
		if fb, isFactory := v.(FactoryBean); isFactory {
			return fb.ObjectType()
		}
	}
	instance, err := f.doGetBean(cc, FactoryBeanPrefix+beanName)
	if err != nil {
		return nil
	}
	if fb, ok := instance.(FactoryBean); ok {
		return fb.ObjectType()
	}
	return nil
}

// GetBeanNamesForType 按注册顺序返回类型匹配的名称。
// includeNonSingletons 为 false 时只看单例；allowEagerInit 为 false 时
// 不为取得 FactoryBean 产物类型而实例化工厂。
func (f *BeanFactory) GetBeanNamesForType(typ reflect.Type, includeNonSingletons, allowEagerInit bool) []string {
	return f.getBeanNamesForType(newCreationContext(), typ, includeNonSingletons, allowEagerInit)
}

func (f *BeanFactory) getBeanNamesForType(cc *creationContext, typ reflect.Type, includeNonSingletons, allowEagerInit bool) []string {
	var names []string
	for _, name := range f.BeanDefinitionNames() {
		mbd, err := f.getMergedLocalBeanDefinition(name)
		if err != nil {
			continue
		}
		// 纯模板定义（只为被继承而存在）不参与类型匹配
		if mbd.Type == nil && mbd.FactoryFn == nil && mbd.FactoryBeanName == "" {
			continue
		}
		if !includeNonSingletons && !mbd.IsSingleton() {
			continue
		}
		predicted := f.predictBeanType(cc, name, mbd)
		if predicted == nil {
			continue
		}
		if predicted.Implements(factoryBeanType) && !typeMatches(predicted, typ) {
			// 请求的不是工厂本身，而是产物类型
			if !allowEagerInit && !f.containsSingleton(cc, name) {
				continue
			}
			if product := f.getTypeForFactoryBean(cc, name, mbd); product != nil && typeMatches(product, typ) {
				names = append(names, name)
			}
			continue
		}
		if typeMatches(predicted, typ) {
			names = append(names, name)
		}
	}

	// 手工登记的单例没有定义，但同样参与类型匹配
	for _, name := range f.singletonNames(cc) {
		if f.ContainsBeanDefinition(name) {
			continue
		}
		if v, ok := f.getSingleton(cc, name); ok && v != nil {
			if typeMatches(reflect.TypeOf(v), typ) {
				names = append(names, name)
			}
		}
	}
	return names
}

// IsTypeMatch 名称解析出的对象是否可赋值给 typ。
func (f *BeanFactory) IsTypeMatch(name string, typ reflect.Type) bool {
	t := f.GetType(name)
	return t != nil && typeMatches(t, typ)
}

// typeMatches candidate 是否可当作 requested 使用。
func typeMatches(candidate, requested reflect.Type) bool {
	if candidate == nil || requested == nil {
		return false
	}
	if candidate == requested {
		return true
	}
	if requested.Kind() == reflect.Interface {
		return candidate.Implements(requested)
	}
	return candidate.AssignableTo(requested)
}

// ResolveNamedBean 按类型解析唯一候选，返回实例与名称。
func (f *BeanFactory) ResolveNamedBean(typ reflect.Type) (any, string, error) {
	return f.resolveNamedBean(newCreationContext(), typ)
}

func (f *BeanFactory) resolveNamedBean(cc *creationContext, typ reflect.Type) (any, string, error) {
	candidates := f.getBeanNamesForType(cc, typ, true, true)
	name, err := f.determineCandidate(candidates, typ)
	if err != nil {
		return nil, "", err
	}
	v, err := f.doGetBean(cc, name)
	if err != nil {
		return nil, "", err
	}
	return v, name, nil
}

// determineCandidate 多候选时由 Primary 标记消歧。
func (f *BeanFactory) determineCandidate(candidates []string, typ reflect.Type) (string, error) {
	switch len(candidates) {
	case 0:
		return "", &NoSuchBeanDefinitionError{Type: typ.String()}
	case 1:
		return candidates[0], nil
	}
	var primary string
	for _, name := range candidates {
		mbd, err := f.getMergedLocalBeanDefinition(name)
		if err != nil || !mbd.Primary {
			continue
		}
		if primary != "" {
			return "", &BeanDefinitionStoreError{
				Msg: fmt.Sprintf("more than one 'primary' bean found among candidates %v for type %s", candidates, typ),
			}
		}
		primary = name
	}
	if primary != "" {
		return primary, nil
	}
	return "", &BeanDefinitionStoreError{
		Msg: fmt.Sprintf("no unique bean of type %s: found %d candidates %v", typ, len(candidates), candidates),
	}
}

// -------- 后置处理器登记 --------

// AddBeanPostProcessor 追加实例级拦截器。重复添加同一实例时先移除再
// 追加，保证新位置生效。
func (f *BeanFactory) AddBeanPostProcessor(pp BeanPostProcessor) {
	f.procMu.Lock()
	defer f.procMu.Unlock()
	for i, existing := range f.processors {
		if existing == pp {
			f.processors = append(f.processors[:i], f.processors[i+1:]...)
			break
		}
	}
	f.processors = append(f.processors, pp)
	if _, ok := pp.(InstantiationAwareBeanPostProcessor); ok {
		f.hasInstantiationAware = true
	}
}

// BeanPostProcessorCount 已登记的拦截器数量。
func (f *BeanFactory) BeanPostProcessorCount() int {
	f.procMu.RLock()
	defer f.procMu.RUnlock()
	return len(f.processors)
}

// BeanPostProcessors 登记顺序的拦截器快照。
func (f *BeanFactory) BeanPostProcessors() []BeanPostProcessor {
	f.procMu.RLock()
	defer f.procMu.RUnlock()
	return append([]BeanPostProcessor(nil), f.processors...)
}

// DependencyComparator 生效中的排序比较器（可能为 nil）。
func (f *BeanFactory) DependencyComparator() func(a, b any) int {
	return f.dependencyComparator
}

// -------- 注册表透传 --------

// RegisterSingleton 登记现成实例。
func (f *BeanFactory) RegisterSingleton(name string, instance any) error {
	return f.reg.RegisterSingleton(name, instance)
}

// GetSingleton 只读取不创建。
func (f *BeanFactory) GetSingleton(name string) (any, bool) {
	return f.reg.GetSingleton(name)
}

// ContainsSingleton (a)层是否有该名称。
func (f *BeanFactory) ContainsSingleton(name string) bool {
	return f.reg.ContainsSingleton(name)
}

// RegisterDependentBean 记录依赖边。
func (f *BeanFactory) RegisterDependentBean(name, dependentName string) {
	f.reg.RegisterDependentBean(name, dependentName)
}

// DependentBeans 依赖 name 的 bean 名称。
func (f *BeanFactory) DependentBeans(name string) []string {
	return f.reg.DependentBeans(name)
}

// DependenciesForBean name 依赖的 bean 名称。
func (f *BeanFactory) DependenciesForBean(name string) []string {
	return f.reg.DependenciesForBean(name)
}

// IsCurrentlyInCreation 名称是否在创建中。
func (f *BeanFactory) IsCurrentlyInCreation(name string) bool {
	return f.reg.IsCurrentlyInCreation(name)
}

// DestroySingletons 全量销毁。启动失败后的清理入口。
func (f *BeanFactory) DestroySingletons() {
	f.reg.DestroySingletons()
}

// -------- 急切实例化 --------

// SmartInitializingSingleton 所有普通单例就位之后的一次性回调。
type SmartInitializingSingleton interface {
	AfterSingletonsInstantiated()
}

// PreInstantiateSingletons 急切实例化全部非惰性单例。FactoryBean 先
// 实例化工厂本身。全部就位后触发 SmartInitializingSingleton 回调。
func (f *BeanFactory) PreInstantiateSingletons() error {
	names := f.BeanDefinitionNames()

	for _, name := range names {
		mbd, err := f.getMergedLocalBeanDefinition(name)
		if err != nil {
			return err
		}
		if mbd.Type == nil && mbd.FactoryFn == nil && mbd.FactoryBeanName == "" {
			continue // 纯模板定义
		}
		if mbd.LazyInit || !mbd.IsSingleton() {
			continue
		}
		predicted := f.predictBeanType(newCreationContext(), name, mbd)
		if mbd.IsFactoryBean() || (predicted != nil && predicted.Implements(factoryBeanType)) {
			if _, err := f.GetBean(FactoryBeanPrefix + name); err != nil {
				return err
			}
			continue
		}
		if _, err := f.GetBean(name); err != nil {
			return err
		}
	}

	for _, name := range names {
		if v, ok := f.reg.GetSingleton(name); ok {
			if smart, isSmart := v.(SmartInitializingSingleton); isSmart {
				smart.AfterSingletonsInstantiated()
			}
		}
	}
	return nil
}
