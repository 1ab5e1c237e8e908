package ensemble

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Parallelism 워커 수: min(모델 계열 수, (CPU-1)/2), 최소 1
func Parallelism(families int) int {
	n := (runtime.NumCPU() - 1) / 2
	if families < n {
		n = families
	}
	if n < 1 {
		n = 1
	}
	return n
}

type task func(ctx context.Context) error

// runBatch 배치마다 새 워커 그룹을 만들고 반환 전에 모두 join
// 첫 에러가 그룹 컨텍스트를 취소하고 그대로 반환됨 (부분 결과 없음)
func runBatch(ctx context.Context, limit int, tasks []task) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, t := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return t(gctx)
		})
	}
	return g.Wait()
}
