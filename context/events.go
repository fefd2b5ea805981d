package context

import (
	"sync"
	"time"

	"github.com/gocrud/ioc/logging"
)

// ApplicationEvent 容器广播的事件。
type ApplicationEvent interface {
	Source() any
	Timestamp() time.Time
}

// BaseEvent 事件的公共载体，具体事件内嵌它。
type BaseEvent struct {
	source any
	at     time.Time
}

// NewBaseEvent 以 source 为事件源构造载体。
func NewBaseEvent(source any) BaseEvent {
	return BaseEvent{source: source, at: time.Now()}
}

func (e BaseEvent) Source() any          { return e.source }
func (e BaseEvent) Timestamp() time.Time { return e.at }

// ContextRefreshedEvent 容器完成刷新后广播。
type ContextRefreshedEvent struct {
	BaseEvent
	Context *ApplicationContext
}

// ContextClosedEvent 容器关闭前广播，此时单例还未销毁。
type ContextClosedEvent struct {
	BaseEvent
	Context *ApplicationContext
}

// ApplicationListener 事件监听器。注册为单例 bean 的监听器会被
// 容器自动发现。
type ApplicationListener interface {
	OnApplicationEvent(event ApplicationEvent)
}

// eventMulticaster 把事件同步分发给全部监听器，按注册顺序。
type eventMulticaster struct {
	mu        sync.RWMutex
	listeners []ApplicationListener
	logger    logging.Logger
}

func newEventMulticaster(logger logging.Logger) *eventMulticaster {
	return &eventMulticaster{logger: logger}
}

func (m *eventMulticaster) AddListener(l ApplicationListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.listeners {
		if existing == l {
			return
		}
	}
	m.listeners = append(m.listeners, l)
}

func (m *eventMulticaster) RemoveListener(l ApplicationListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.listeners {
		if existing == l {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

// Multicast 同步分发。监听器的 panic 被吞掉并记日志，一个坏监听器
// 不能拖垮整个广播。
func (m *eventMulticaster) Multicast(event ApplicationEvent) {
	m.mu.RLock()
	listeners := append([]ApplicationListener(nil), m.listeners...)
	m.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("application listener panicked",
						logging.Field{Key: "event", Value: event},
						logging.Field{Key: "panic", Value: r})
				}
			}()
			l.OnApplicationEvent(event)
		}()
	}
}
