package schedule

import (
	"context"
	"log/slog"

	"github.com/sourcegraph/conc"
)

// Task 随进程运行的组件，ctx 结束后 Run 返回
type Task interface {
	Run(ctx context.Context) error
	Name() string
}

// RunAll 每个任务一个 goroutine，阻塞到全部返回。单个任务出错只记录日志，不影响其他任务
func RunAll(ctx context.Context, tasks ...Task) {
	var wg conc.WaitGroup
	for _, task := range tasks {
		if task == nil {
			continue
		}
		task := task
		wg.Go(func() {
			slog.Info("task started", "task", task.Name())
			if err := task.Run(ctx); err != nil {
				slog.Error("task exited with error", "task", task.Name(), "error", err)
				return
			}
			slog.Info("task finished", "task", task.Name())
		})
	}
	wg.Wait()
}
