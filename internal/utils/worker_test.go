package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tomb "gopkg.in/tomb.v2"
)

func TestWorkerPool_DispatchesTasks(t *testing.T) {
	var tb tomb.Tomb
	pool := NewWorkerPool(3)

	results := make(chan int, 10)
	pool.Run(&tb, func(_ *tomb.Tomb, task any) error {
		results <- task.(int)
		return nil
	})

	for i := 0; i < 5; i++ {
		pool.AddTask(i)
	}

	seen := make(map[int]bool)
	for i := 0; i < 5; i++ {
		select {
		case v := <-results:
			seen[v] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for task results")
		}
	}
	assert.Len(t, seen, 5)

	tb.Kill(nil)
	assert.NoError(t, tb.Wait())
}

func TestWorkerPool_SurvivesFailingTask(t *testing.T) {
	var tb tomb.Tomb
	pool := NewWorkerPool(1)

	results := make(chan int, 2)
	pool.Run(&tb, func(_ *tomb.Tomb, task any) error {
		v := task.(int)
		if v < 0 {
			return assert.AnError
		}
		results <- v
		return nil
	})

	pool.AddTask(-1)
	pool.AddTask(42)

	select {
	case v := <-results:
		assert.Equal(t, 42, v, "pool keeps working after a task error")
	case <-time.After(time.Second):
		t.Fatal("worker died on task error")
	}

	tb.Kill(nil)
	assert.NoError(t, tb.Wait())
}
