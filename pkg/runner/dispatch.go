package runner

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Dispatcher 有界并发分发器，同时在跑的工作不超过 forks 个
type Dispatcher struct {
	sem *semaphore.Weighted
}

// NewDispatcher 创建分发器，forks 小于 1 时按 1 处理
func NewDispatcher(forks int) *Dispatcher {
	if forks < 1 {
		forks = 1
	}
	return &Dispatcher{sem: semaphore.NewWeighted(int64(forks))}
}

// Run 对 n 个槽位并发执行 fn，fn 按槽位序号把结果写回调用方自己的切片，
// 所以结果顺序和槽位顺序一致，与执行先后无关。
// ctx 取消后不再启动新工作，已启动的工作由 fn 自行响应取消。
func (d *Dispatcher) Run(ctx context.Context, n int, fn func(ctx context.Context, idx int)) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer d.sem.Release(1)
			fn(ctx, idx)
		}(i)
	}
	wg.Wait()
}
