package ensemble

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParallelism(t *testing.T) {
	limit := (runtime.NumCPU() - 1) / 2
	if limit < 1 {
		limit = 1
	}

	assert.Equal(t, 1, Parallelism(0))
	assert.Equal(t, 1, Parallelism(1))
	assert.Equal(t, limit, Parallelism(1000))
	assert.LessOrEqual(t, Parallelism(3), 3)
}

func TestRunBatch_Limit(t *testing.T) {
	var running, peak int32
	tasks := make([]task, 12)
	for i := range tasks {
		tasks[i] = func(context.Context) error {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil
		}
	}

	assert.NoError(t, runBatch(context.Background(), 2, tasks))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunBatch_FailFast(t *testing.T) {
	errBoom := errors.New("boom")
	var ran int32

	tasks := []task{
		func(context.Context) error { return errBoom },
	}
	for i := 0; i < 20; i++ {
		tasks = append(tasks, func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
				return nil
			}
		})
	}

	start := time.Now()
	err := runBatch(context.Background(), 1, tasks)

	assert.True(t, errors.Is(err, errBoom))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))
}
