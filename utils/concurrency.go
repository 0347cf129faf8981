package utils

import (
	"context"
	"sync"
)

// WorkerPool bounds the number of concurrently running jobs. Per-source
// pacing is not its concern; adapters carry their own rate limiters.
type WorkerPool struct {
	semaphore chan struct{}
	wg        sync.WaitGroup
}

// NewWorkerPool creates a WorkerPool with the given concurrency bound.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		semaphore: make(chan struct{}, maxWorkers),
	}
}

// Submit enqueues a job for execution in the pool. Jobs still waiting for a
// slot when ctx is cancelled run anyway and are expected to observe the
// cancellation themselves; Submit only blocks until a slot is free.
func (wp *WorkerPool) Submit(ctx context.Context, job func()) {
	wp.wg.Add(1)

	select {
	case wp.semaphore <- struct{}{}:
	case <-ctx.Done():
		// Run without waiting for a slot so the job can record the
		// cancellation; the pool is draining at this point.
		go func() {
			defer wp.wg.Done()
			job()
		}()
		return
	}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()
		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// StringSet is a thread-safe set of strings, used for duplicate tracking
// within a run.
type StringSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewStringSet creates an empty StringSet.
func NewStringSet() *StringSet {
	return &StringSet{seen: make(map[string]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *StringSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains returns true if the key has already been added.
func (s *StringSet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[key]
	return exists
}

// Size returns the number of unique keys tracked.
func (s *StringSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
