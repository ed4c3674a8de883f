// Package tracker 管理在途航程的生命周期
package tracker

import (
	"sync"
	"time"

	"reqwatch/internal/intercept"
	"reqwatch/internal/logger"
)

// entry 在途航程条目
type entry struct {
	flight    *intercept.Flight
	startTime time.Time
}

// Tracker 在途航程追踪器。请求发出后入池，完成信号到达时取出，
// 超时未完成的孤儿航程由后台协程定期清理
type Tracker struct {
	pool    sync.Map
	timeout time.Duration
	log     logger.Logger
	done    chan struct{}
	once    sync.Once
}

// New 创建航程追踪器
func New(timeout time.Duration, l logger.Logger) *Tracker {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if l == nil {
		l = logger.NewNop()
	}
	t := &Tracker{
		timeout: timeout,
		log:     l,
		done:    make(chan struct{}),
	}
	go t.cleanupLoop()
	return t
}

// Set 存入在途航程
func (t *Tracker) Set(id string, f *intercept.Flight) {
	t.pool.Store(id, &entry{flight: f, startTime: time.Now()})
}

// Take 取出并移除在途航程
func (t *Tracker) Take(id string) (*intercept.Flight, bool) {
	val, ok := t.pool.LoadAndDelete(id)
	if !ok {
		return nil, false
	}
	return val.(*entry).flight, true
}

// Peek 仅查看在途航程而不移除
func (t *Tracker) Peek(id string) (*intercept.Flight, bool) {
	val, ok := t.pool.Load(id)
	if !ok {
		return nil, false
	}
	return val.(*entry).flight, true
}

// Delete 手动删除在途航程
func (t *Tracker) Delete(id string) {
	t.pool.Delete(id)
}

// Stop 停止追踪器，释放后台协程
func (t *Tracker) Stop() {
	t.once.Do(func() { close(t.done) })
}

// cleanupLoop 定期清理超时未完成的孤儿航程
func (t *Tracker) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			now := time.Now()
			t.pool.Range(func(key, value any) bool {
				e := value.(*entry)
				if now.Sub(e.startTime) > t.timeout {
					t.pool.Delete(key)
					t.log.Debug("清理超时航程", "id", key, "startTime", e.startTime)
				}
				return true
			})
		}
	}
}
