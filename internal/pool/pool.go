// Package pool 提供完成事件处理用的有界并发工作池
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"reqwatch/internal/logger"
)

// Pool 并发工作池。响应体拉取与记录提交在池内执行，
// 队列满时丢弃任务而不是阻塞事件泵
type Pool struct {
	workers     int
	queue       chan func()
	queueCap    int
	log         logger.Logger
	totalSubmit int64
	totalDrop   int64
	mu          sync.Mutex
	stopMonitor chan struct{}
	stopped     bool
}

// New 创建工作池实例。size 为并发协程数，queueCap 为缓冲队列容量（0 则默认 size * 8）
func New(size int, queueCap int) *Pool {
	if size <= 0 {
		return &Pool{}
	}
	if queueCap <= 0 {
		queueCap = size * 8
	}
	return &Pool{
		workers:  size,
		queue:    make(chan func(), queueCap),
		queueCap: queueCap,
	}
}

// SetLogger 设置日志记录器
func (p *Pool) SetLogger(l logger.Logger) {
	p.log = l
}

// Start 启动工作池协程群并开启状态监控
func (p *Pool) Start(ctx context.Context) {
	if p.queue == nil {
		return
	}
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx)
	}
	p.mu.Lock()
	stop := make(chan struct{})
	p.stopMonitor = stop
	p.stopped = false
	p.mu.Unlock()
	go p.monitor(ctx, stop)
}

// Stop 停止监控协程，可重复调用
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopMonitor != nil && !p.stopped {
		close(p.stopMonitor)
		p.stopped = true
	}
}

// monitor 定期输出工作池状态监控日志
func (p *Pool) monitor(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			qLen, qCap, submit, drop := p.Stats()
			if p.log != nil && submit > 0 {
				usage := float64(qLen) / float64(qCap) * 100
				dropRate := float64(drop) / float64(submit) * 100
				p.log.Info("工作池状态监控", "queueLen", qLen, "queueCap", qCap, "usage", fmt.Sprintf("%.1f%%", usage), "totalSubmit", submit, "totalDrop", drop, "dropRate", fmt.Sprintf("%.2f%%", dropRate))
			}
		}
	}
}

// worker 工作协程，从队列中取任务并执行
func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-p.queue:
			if fn != nil {
				fn()
			}
		}
	}
}

// Submit 提交任务到工作池。
// 池未启用并发限制时直接启动新协程执行，队列已满时丢弃并返回 false
func (p *Pool) Submit(fn func()) bool {
	if p.queue == nil {
		go fn()
		return true
	}
	p.mu.Lock()
	p.totalSubmit++
	p.mu.Unlock()
	select {
	case p.queue <- fn:
		return true
	default:
		p.mu.Lock()
		p.totalDrop++
		drop := p.totalDrop
		submit := p.totalSubmit
		p.mu.Unlock()
		if p.log != nil {
			p.log.Warn("工作池队列已满，任务被丢弃", "queueCap", p.queueCap, "totalSubmit", submit, "totalDrop", drop)
		}
		return false
	}
}

// Stats 返回工作池统计信息
func (p *Pool) Stats() (queueLen, queueCap, totalSubmit, totalDrop int64) {
	if p.queue == nil {
		return 0, 0, 0, 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(len(p.queue)), int64(p.queueCap), p.totalSubmit, p.totalDrop
}

// IsEnabled 检查工作池是否已启用并发限制
func (p *Pool) IsEnabled() bool {
	return p.queue != nil
}
