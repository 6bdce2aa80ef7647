package utils

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const taskChanSize = 100

type WorkerFunction = func(t *tomb.Tomb, task any) error

// WorkerPool fans incoming tasks out to a fixed set of tomb-managed workers.
type WorkerPool struct {
	n     int
	tasks chan any
}

func NewWorkerPool(size int) *WorkerPool {
	return &WorkerPool{
		n:     size,
		tasks: make(chan any, taskChanSize),
	}
}

// Run spawns the workers on the given tomb. Workers exit when the tomb dies.
func (pool *WorkerPool) Run(t *tomb.Tomb, work WorkerFunction) {
	for i := 0; i < pool.n; i++ {
		id := i
		t.Go(func() error {
			return pool.worker(t, id, work)
		})
	}
}

// AddTask hands a task to the pool. Blocks once the task buffer is full.
func (pool *WorkerPool) AddTask(task any) {
	pool.tasks <- task
}

func (pool *WorkerPool) worker(t *tomb.Tomb, id int, work WorkerFunction) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-pool.tasks:
			if err := work(t, task); err != nil {
				// A failed task should not take the whole pool down.
				log.Error().Err(err).Int("worker", id).Msg("task failed")
			}
		}
	}
}
