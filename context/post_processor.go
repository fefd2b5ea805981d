package context

import (
	"errors"
	"reflect"
	"sync"

	"github.com/gocrud/ioc/beans"
	"github.com/gocrud/ioc/logging"
)

var (
	registryProcessorType = reflect.TypeOf((*beans.BeanDefinitionRegistryPostProcessor)(nil)).Elem()
	factoryProcessorType  = reflect.TypeOf((*beans.BeanFactoryPostProcessor)(nil)).Elem()
	beanProcessorType     = reflect.TypeOf((*beans.BeanPostProcessor)(nil)).Elem()
	priorityOrderedType   = reflect.TypeOf((*beans.PriorityOrdered)(nil)).Elem()
	orderedType           = reflect.TypeOf((*beans.Ordered)(nil)).Elem()
	listenerType          = reflect.TypeOf((*ApplicationListener)(nil)).Elem()
)

// invokeBeanFactoryPostProcessors 工厂级管线。顺序是硬性协议：
//
//  1. 程序注册的注册表处理器按注册顺序先跑；
//  2. 作为 bean 的注册表处理器按 PriorityOrdered、Ordered、其余分组
//     依次实例化并调用——每一组都可能注册出新的处理器定义，所以最后
//     一组反复扫描直到不再发现新名字；
//  3. 全部注册表处理器（含程序注册的）再统一跑 PostProcessBeanFactory；
//  4. 普通工厂处理器同样按三组跑，已经当过注册表处理器的名字跳过。
//
// 处理器改过定义元数据，收尾清一次合并缓存。
func invokeBeanFactoryPostProcessors(f *beans.BeanFactory, direct []beans.BeanFactoryPostProcessor, logger logging.Logger) error {
	processed := make(map[string]struct{})
	var registryProcessors []beans.BeanDefinitionRegistryPostProcessor
	var regularProcessors []beans.BeanFactoryPostProcessor

	for _, pp := range direct {
		if rpp, ok := pp.(beans.BeanDefinitionRegistryPostProcessor); ok {
			if err := rpp.PostProcessBeanDefinitionRegistry(f); err != nil {
				return err
			}
			registryProcessors = append(registryProcessors, rpp)
		} else {
			regularProcessors = append(regularProcessors, pp)
		}
	}

	collect := func(filter func(name string) bool) ([]beans.BeanDefinitionRegistryPostProcessor, error) {
		var batch []beans.BeanDefinitionRegistryPostProcessor
		for _, name := range f.GetBeanNamesForType(registryProcessorType, true, false) {
			if _, done := processed[name]; done || !filter(name) {
				continue
			}
			v, err := f.GetBean(name)
			if err != nil {
				return nil, err
			}
			processed[name] = struct{}{}
			batch = append(batch, v.(beans.BeanDefinitionRegistryPostProcessor))
		}
		beans.SortByOrder(batch, f.DependencyComparator())
		return batch, nil
	}
	invokeRegistry := func(batch []beans.BeanDefinitionRegistryPostProcessor) error {
		for _, pp := range batch {
			if err := pp.PostProcessBeanDefinitionRegistry(f); err != nil {
				return err
			}
		}
		registryProcessors = append(registryProcessors, batch...)
		return nil
	}

	// PriorityOrdered 一组
	batch, err := collect(func(name string) bool { return f.IsTypeMatch(name, priorityOrderedType) })
	if err != nil {
		return err
	}
	if err := invokeRegistry(batch); err != nil {
		return err
	}

	// Ordered 一组
	batch, err = collect(func(name string) bool { return f.IsTypeMatch(name, orderedType) })
	if err != nil {
		return err
	}
	if err := invokeRegistry(batch); err != nil {
		return err
	}

	// 其余的反复扫描到不动点：注册表处理器可以注册新的注册表处理器
	for {
		batch, err = collect(func(string) bool { return true })
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}
		if err := invokeRegistry(batch); err != nil {
			return err
		}
	}

	// 注册表处理器的工厂回调，然后才是程序注册的普通处理器
	for _, pp := range registryProcessors {
		if err := pp.PostProcessBeanFactory(f); err != nil {
			return err
		}
	}
	for _, pp := range regularProcessors {
		if err := pp.PostProcessBeanFactory(f); err != nil {
			return err
		}
	}

	// 作为 bean 的普通工厂处理器，三组次序同上
	var priority, ordered []beans.BeanFactoryPostProcessor
	var regularNames []string
	for _, name := range f.GetBeanNamesForType(factoryProcessorType, true, false) {
		if _, done := processed[name]; done {
			continue
		}
		switch {
		case f.IsTypeMatch(name, priorityOrderedType):
			v, err := f.GetBean(name)
			if err != nil {
				return err
			}
			priority = append(priority, v.(beans.BeanFactoryPostProcessor))
		case f.IsTypeMatch(name, orderedType):
			v, err := f.GetBean(name)
			if err != nil {
				return err
			}
			ordered = append(ordered, v.(beans.BeanFactoryPostProcessor))
		default:
			regularNames = append(regularNames, name)
		}
		processed[name] = struct{}{}
	}
	beans.SortByOrder(priority, f.DependencyComparator())
	beans.SortByOrder(ordered, f.DependencyComparator())
	for _, group := range [][]beans.BeanFactoryPostProcessor{priority, ordered} {
		for _, pp := range group {
			if err := pp.PostProcessBeanFactory(f); err != nil {
				return err
			}
		}
	}
	for _, name := range regularNames {
		v, err := f.GetBean(name)
		if err != nil {
			return err
		}
		if err := v.(beans.BeanFactoryPostProcessor).PostProcessBeanFactory(f); err != nil {
			return err
		}
	}

	// 处理器可能改过定义的元数据
	f.ClearMetadataCache()
	logger.Debug("bean factory post-processing complete",
		logging.Field{Key: "registryProcessors", Value: len(registryProcessors)})
	return nil
}

// registerBeanPostProcessors 实例级管线。检查器最先挂上（它要看见
// 后续所有 bean 的创建），然后按 PriorityOrdered、Ordered、其余分组
// 注册，合并定义处理器重挂到队尾，监听器探测器永远最后。
func registerBeanPostProcessors(c *ApplicationContext, f *beans.BeanFactory) error {
	names := f.GetBeanNamesForType(beanProcessorType, true, false)
	expected := f.BeanPostProcessorCount() + 1 + len(names)
	f.AddBeanPostProcessor(&postProcessorChecker{factory: f, expected: expected, logger: c.logger})

	var priority, ordered, regular []beans.BeanPostProcessor
	var internal []beans.BeanPostProcessor
	var orderedNames, regularNames []string

	instantiate := func(name string) (beans.BeanPostProcessor, error) {
		v, err := f.GetBean(name)
		if err != nil {
			// 处理器自己卷进了创建环：留给触发环的那条路径去完成，
			// 这里跳过而不是让整个刷新失败
			var creation *beans.BeanCreationError
			if errors.As(err, &creation) {
				if cycle := creation.CycleBeanName(); cycle != "" && f.IsCurrentlyInCreation(cycle) {
					c.logger.Debug("skipping bean post-processor currently in creation",
						logging.Field{Key: "processor", Value: name},
						logging.Field{Key: "cycle", Value: cycle})
					return nil, nil
				}
			}
			return nil, err
		}
		pp, ok := v.(beans.BeanPostProcessor)
		if !ok {
			return nil, nil
		}
		return pp, nil
	}

	for _, name := range names {
		switch {
		case f.IsTypeMatch(name, priorityOrderedType):
			pp, err := instantiate(name)
			if err != nil {
				return err
			}
			if pp != nil {
				priority = append(priority, pp)
			}
		case f.IsTypeMatch(name, orderedType):
			orderedNames = append(orderedNames, name)
		default:
			regularNames = append(regularNames, name)
		}
	}

	register := func(group []beans.BeanPostProcessor) {
		for _, pp := range group {
			f.AddBeanPostProcessor(pp)
			if _, isInternal := pp.(beans.MergedBeanDefinitionPostProcessor); isInternal {
				internal = append(internal, pp)
			}
		}
	}

	beans.SortByOrder(priority, f.DependencyComparator())
	register(priority)

	for _, name := range orderedNames {
		pp, err := instantiate(name)
		if err != nil {
			return err
		}
		if pp != nil {
			ordered = append(ordered, pp)
		}
	}
	beans.SortByOrder(ordered, f.DependencyComparator())
	register(ordered)

	for _, name := range regularNames {
		pp, err := instantiate(name)
		if err != nil {
			return err
		}
		if pp != nil {
			regular = append(regular, pp)
		}
	}
	register(regular)

	// 合并定义处理器重挂队尾，保证它们看到的是最终的处理器序列
	beans.SortByOrder(internal, f.DependencyComparator())
	for _, pp := range internal {
		f.AddBeanPostProcessor(pp)
	}

	f.AddBeanPostProcessor(newApplicationListenerDetector(c))
	return nil
}

// postProcessorChecker 发现"太早创建"的 bean：在全部处理器就位之前
// 被实例化的普通 bean 享受不到后加入的处理器，记一条提示。
type postProcessorChecker struct {
	factory  *beans.BeanFactory
	expected int
	logger   logging.Logger
}

func (c *postProcessorChecker) PostProcessBeforeInitialization(bean any, beanName string) (any, error) {
	return bean, nil
}

func (c *postProcessorChecker) PostProcessAfterInitialization(bean any, beanName string) (any, error) {
	if _, isProcessor := bean.(beans.BeanPostProcessor); isProcessor {
		return bean, nil
	}
	if c.isInfrastructure(beanName) {
		return bean, nil
	}
	if c.factory.BeanPostProcessorCount() < c.expected {
		c.logger.Info("bean is not eligible for getting processed by all bean post-processors",
			logging.Field{Key: "bean", Value: beanName})
	}
	return bean, nil
}

func (c *postProcessorChecker) isInfrastructure(beanName string) bool {
	if !c.factory.ContainsBeanDefinition(beanName) {
		return false
	}
	mbd, err := c.factory.GetMergedBeanDefinition(beanName)
	if err != nil {
		return false
	}
	return mbd.Role == beans.RoleInfrastructure
}

// applicationListenerDetector 收尾的探测器：单例监听器挂进广播器，
// 非单例的监听器没法被容器追踪，给出警告。
type applicationListenerDetector struct {
	context *ApplicationContext

	mu         sync.Mutex
	singletons map[string]bool
}

func newApplicationListenerDetector(c *ApplicationContext) *applicationListenerDetector {
	return &applicationListenerDetector{context: c, singletons: make(map[string]bool)}
}

func (d *applicationListenerDetector) PostProcessMergedBeanDefinition(mbd *beans.RootBeanDefinition, beanType reflect.Type, beanName string) {
	if beanType != nil && beanType.Implements(listenerType) {
		d.mu.Lock()
		d.singletons[beanName] = mbd.IsSingleton()
		d.mu.Unlock()
	}
}

func (d *applicationListenerDetector) ResetBeanDefinition(beanName string) {
	d.mu.Lock()
	delete(d.singletons, beanName)
	d.mu.Unlock()
}

func (d *applicationListenerDetector) PostProcessBeforeInitialization(bean any, beanName string) (any, error) {
	return bean, nil
}

func (d *applicationListenerDetector) PostProcessAfterInitialization(bean any, beanName string) (any, error) {
	listener, ok := bean.(ApplicationListener)
	if !ok {
		return bean, nil
	}
	d.mu.Lock()
	singleton, seen := d.singletons[beanName]
	d.mu.Unlock()

	if !seen || singleton {
		// 手工登记的单例没有定义，seen 为 false 也挂上
		d.context.addApplicationListener(listener)
	} else {
		d.context.logger.Warn("non-singleton application listener cannot be tracked by the context",
			logging.Field{Key: "bean", Value: beanName})
	}
	return bean, nil
}
