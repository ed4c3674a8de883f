package pool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"reqwatch/internal/pool"
)

// TestPool_Basic 验证任务能正常执行
func TestPool_Basic(t *testing.T) {
	p := pool.New(2, 50)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	var count int32
	wg := sync.WaitGroup{}
	numTasks := 20

	for i := 0; i < numTasks; i++ {
		wg.Add(1)
		ok := p.Submit(func() {
			atomic.AddInt32(&count, 1)
			wg.Done()
		})
		if !ok {
			t.Errorf("任务 %d 提交失败", i)
			wg.Done()
		}
	}

	wg.Wait()
	if atomic.LoadInt32(&count) != int32(numTasks) {
		t.Errorf("期望执行 %d 个任务, 实际执行 %d", numTasks, count)
	}
}

// TestPool_QueueFullDrops 验证队列满时任务被丢弃而不阻塞
func TestPool_QueueFullDrops(t *testing.T) {
	p := pool.New(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	block := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)
	p.Submit(func() {
		started.Done()
		<-block
	})
	started.Wait()

	// 填满队列
	p.Submit(func() { <-block })

	dropped := false
	for i := 0; i < 5; i++ {
		if !p.Submit(func() {}) {
			dropped = true
			break
		}
	}
	close(block)

	if !dropped {
		t.Error("队列满时应出现任务丢弃")
	}
	_, _, submit, drop := p.Stats()
	if submit == 0 || drop == 0 {
		t.Errorf("统计错误: submit=%d drop=%d", submit, drop)
	}
}

// TestPool_Unbounded 验证未启用限制的池直接起协程执行
func TestPool_Unbounded(t *testing.T) {
	p := pool.New(0, 0)
	if p.IsEnabled() {
		t.Error("size=0 的池不应启用并发限制")
	}

	done := make(chan struct{})
	if !p.Submit(func() { close(done) }) {
		t.Fatal("未启用限制的池提交不应失败")
	}
	<-done
}
