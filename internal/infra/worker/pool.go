package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

type Task func(ctx context.Context) error

var ErrPoolClosed = errors.New("worker pool closed")

// KeyedPool runs tasks on a fixed set of workers. Tasks submitted with the
// same key always land on the same worker, so they run one after another in
// submission order; different keys run concurrently.
type KeyedPool struct {
	queues []chan Task
	wg     sync.WaitGroup
	log    *zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewKeyedPool(workers, queueSize int, logger *zerolog.Logger) *KeyedPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	l := logger.With().Str("component", "KeyedPool").Logger()
	p := &KeyedPool{queues: make([]chan Task, workers), log: &l}
	for i := range p.queues {
		p.queues[i] = make(chan Task, queueSize)
	}
	return p
}

// Start launches the workers. Each drains its queue until Stop closes it.
func (p *KeyedPool) Start(ctx context.Context) {
	for i, q := range p.queues {
		p.wg.Add(1)
		go func(id int, q <-chan Task) {
			defer p.wg.Done()
			for task := range q {
				if err := task(ctx); err != nil {
					p.log.Error().Err(err).Int("worker", id).Msg("task failed")
				}
			}
		}(i, q)
	}
}

// Submit queues task for key, waiting while that worker's queue is full.
func (p *KeyedPool) Submit(ctx context.Context, key int64, task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queues[p.slot(key)] <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *KeyedPool) slot(key int64) int {
	n := int64(len(p.queues))
	s := key % n
	if s < 0 {
		s += n
	}
	return int(s)
}

// Stop refuses new tasks, lets queued ones finish and waits for the workers.
func (p *KeyedPool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, q := range p.queues {
			close(q)
		}
	}
	p.mu.Unlock()
	p.wg.Wait()
}
