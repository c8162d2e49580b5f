// Package async runs independent tasks on a bounded number of workers.
package async

import (
	"context"
	"sync"
)

type Task[T any] struct {
	Name    string
	Execute func() (T, error)
}

type Result[T any] struct {
	Name string
	Data T
	Err  error
}

type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	return &Pool{workerCount: max(1, workerCount)}
}

// Execute runs tasks and returns their results keyed by task name. When ctx
// is cancelled, tasks not yet started are skipped and absent from the map.
func Execute[T any](ctx context.Context, p *Pool, tasks []Task[T]) map[string]Result[T] {
	queue := make(chan Task[T])
	results := make(chan Result[T])

	var wg sync.WaitGroup
	for range min(p.workerCount, len(tasks)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				data, err := task.Execute()
				results <- Result[T]{Name: task.Name, Data: data, Err: err}
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, task := range tasks {
			select {
			case queue <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make(map[string]Result[T], len(tasks))
	for result := range results {
		collected[result.Name] = result
	}
	return collected
}
