package splitter

import (
	"context"
	"sync"
)

// chapterTask is one queued extraction. Index is fixed when the task is built
// so numbering never depends on completion order.
type chapterTask struct {
	Index    int
	Title    string
	Start    string
	End      string
	FileName string
	Path     string
}

// poolSize returns min(limit, numCPU, tasks), never below one.
func poolSize(limit, numCPU, tasks int) int {
	size := limit
	if numCPU > 0 && numCPU < size {
		size = numCPU
	}
	if tasks > 0 && tasks < size {
		size = tasks
	}
	if size < 1 {
		size = 1
	}
	return size
}

// runPool starts workers goroutines over tasks and streams one result per
// task in completion order. The returned channel closes after every task has
// reported, whether it succeeded, failed, or observed cancellation.
func runPool(ctx context.Context, workers int, tasks []chapterTask, run func(context.Context, chapterTask) ChapterResult) <-chan ChapterResult {
	jobs := make(chan chapterTask, len(tasks))
	for _, task := range tasks {
		jobs <- task
	}
	close(jobs)

	results := make(chan ChapterResult, len(tasks))
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				results <- run(ctx, task)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}
