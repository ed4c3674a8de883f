package monitor

import (
	"sync"

	"reqwatch/pkg/domain"
)

// Event 事件主题
type Event string

const (
	// EventRequestCaptured 捕获到新记录，载荷为该记录
	EventRequestCaptured Event = "requestCaptured"
	// EventDataCleared 日志被清空，无载荷
	EventDataCleared Event = "dataCleared"
)

// Handler 事件处理函数。dataCleared 事件的载荷为 nil
type Handler func(rec *domain.CaptureRecord)

// HandlerID 订阅标识，用于退订
type HandlerID int64

// subscription 一条订阅
type subscription struct {
	id HandlerID
	fn Handler
}

// bus 监视器私有的进程内发布订阅通道
type bus struct {
	mu       sync.Mutex
	next     HandlerID
	handlers map[Event][]subscription
}

// newBus 创建事件通道
func newBus() *bus {
	return &bus{handlers: make(map[Event][]subscription)}
}

// on 注册事件处理函数，返回订阅标识
func (b *bus) on(ev Event, fn Handler) HandlerID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.handlers[ev] = append(b.handlers[ev], subscription{id: b.next, fn: fn})
	return b.next
}

// off 按订阅标识退订
func (b *bus) off(ev Event, id HandlerID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[ev]
	for i, s := range subs {
		if s.id == id {
			b.handlers[ev] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// emit 同步按注册顺序调用处理函数，单个处理函数的异常不阻断其余
func (b *bus) emit(ev Event, rec *domain.CaptureRecord) {
	b.mu.Lock()
	subs := make([]subscription, len(b.handlers[ev]))
	copy(subs, b.handlers[ev])
	b.mu.Unlock()

	for _, s := range subs {
		func() {
			defer func() { recover() }()
			s.fn(rec)
		}()
	}
}
