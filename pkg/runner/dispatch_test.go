package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcher_OrderStable(t *testing.T) {
	d := NewDispatcher(3)

	// 完成顺序故意打乱，结果仍按槽位落位
	results := make([]int, 8)
	d.Run(context.Background(), 8, func(ctx context.Context, idx int) {
		time.Sleep(time.Duration(8-idx) * time.Millisecond)
		results[idx] = idx * 10
	})

	for i, got := range results {
		if got != i*10 {
			t.Errorf("results[%d] = %d, want %d", i, got, i*10)
		}
	}
}

func TestDispatcher_BoundsConcurrency(t *testing.T) {
	const forks = 2
	d := NewDispatcher(forks)

	var cur, peak int32
	var mu sync.Mutex

	d.Run(context.Background(), 10, func(ctx context.Context, idx int) {
		n := atomic.AddInt32(&cur, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&cur, -1)
	})

	if peak > forks {
		t.Errorf("peak concurrency = %d, want <= %d", peak, forks)
	}
}

func TestDispatcher_SingleFork(t *testing.T) {
	d := NewDispatcher(0)

	var order []int
	d.Run(context.Background(), 4, func(ctx context.Context, idx int) {
		order = append(order, idx)
	})

	// forks=1 时严格串行，不需要加锁也能安全追加
	if len(order) != 4 {
		t.Fatalf("ran %d slots, want 4", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Errorf("order[%d] = %d, want %d", i, got, i)
		}
	}
}

func TestDispatcher_Cancel(t *testing.T) {
	d := NewDispatcher(1)
	ctx, cancel := context.WithCancel(context.Background())

	var ran int32
	d.Run(ctx, 5, func(ctx context.Context, idx int) {
		atomic.AddInt32(&ran, 1)
		cancel()
	})

	// 取消后不再启动新槽位
	if got := atomic.LoadInt32(&ran); got >= 5 {
		t.Errorf("ran %d slots after cancel, want fewer", got)
	}
}
