package beans

import (
	"reflect"
	"sort"
)

// Ordered 可显式声明顺序的扩展点，值越小优先级越高。
type Ordered interface {
	Order() int
}

// PriorityOrdered 标记接口：同为 Ordered，但整组优先于普通 Ordered。
type PriorityOrdered interface {
	Ordered
	priorityOrdered()
}

// PriorityOrder 嵌入后即获得 PriorityOrdered 语义。
type PriorityOrder int

func (p PriorityOrder) Order() int      { return int(p) }
func (p PriorityOrder) priorityOrdered() {}

// OrderOf 取对象声明的顺序值，未声明的排在最后。
func OrderOf(v any) int {
	if o, ok := v.(Ordered); ok {
		return o.Order()
	}
	return int(^uint(0) >> 1) // 最低优先级
}

// SortByOrder 稳定排序；comparator 为 nil 时按 OrderOf 的自然顺序。
// 工厂可以配置依赖比较器覆盖默认顺序，同组内的并列由它裁决。
func SortByOrder[T any](items []T, comparator func(a, b any) int) {
	if len(items) <= 1 {
		return
	}
	if comparator == nil {
		comparator = func(a, b any) int { return OrderOf(a) - OrderOf(b) }
	}
	sort.SliceStable(items, func(i, j int) bool {
		return comparator(items[i], items[j]) < 0
	})
}

// BeanFactoryPostProcessor 在所有定义注册完、任何单例实例化之前，
// 对工厂做一次性的修改（典型用途：占位符替换、定义元数据调整）。
type BeanFactoryPostProcessor interface {
	PostProcessBeanFactory(factory *BeanFactory) error
}

// BeanDefinitionRegistryPostProcessor 更早一步：还可以向注册表增删定义。
// 编排器先跑完全部注册表回调，再统一跑工厂回调。
type BeanDefinitionRegistryPostProcessor interface {
	BeanFactoryPostProcessor
	PostProcessBeanDefinitionRegistry(registry *BeanFactory) error
}

// BeanPostProcessor 实例级生命周期拦截器。两个回调都可以替换实例
// （返回不同对象即替换），返回 nil 实例视为保持原样。
type BeanPostProcessor interface {
	PostProcessBeforeInitialization(bean any, beanName string) (any, error)
	PostProcessAfterInitialization(bean any, beanName string) (any, error)
}

// InstantiationAwareBeanPostProcessor 参与实例化本身：
// BeforeInstantiation 返回非 nil 对象时短路默认创建流程；
// AfterInstantiation 返回 false 时跳过属性填充。
type InstantiationAwareBeanPostProcessor interface {
	BeanPostProcessor
	PostProcessBeforeInstantiation(beanType reflect.Type, beanName string) (any, error)
	PostProcessAfterInstantiation(bean any, beanName string) (bool, error)
}

// MergedBeanDefinitionPostProcessor 在实例化前回看合并后的定义，
// 可以缓存自己的元数据。定义被替换或移除时收到 Reset 通知。
type MergedBeanDefinitionPostProcessor interface {
	BeanPostProcessor
	PostProcessMergedBeanDefinition(mbd *RootBeanDefinition, beanType reflect.Type, beanName string)
	ResetBeanDefinition(beanName string)
}

// InitializingBean 属性填充完成后的初始化钩子。
type InitializingBean interface {
	AfterPropertiesSet() error
}

// DisposableBean 销毁钩子，容器关闭时按依赖逆序调用。
type DisposableBean interface {
	Destroy() error
}

// disposableAdapter 把定义声明的 DestroyFunc 与 DisposableBean 接口
// 统一成注册表可调度的形态。
type disposableAdapter struct {
	bean        any
	destroyFunc func(any) error
}

func (d *disposableAdapter) Destroy() error {
	if db, ok := d.bean.(DisposableBean); ok {
		if err := db.Destroy(); err != nil {
			return err
		}
	}
	if d.destroyFunc != nil {
		return d.destroyFunc(d.bean)
	}
	return nil
}
