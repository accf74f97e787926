package main

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// LoadToken identifies one dispatched load of a path
type LoadToken struct {
	Path       string
	Generation uint64
}

// DecodeFunc reads and decodes one image. It must be safe to call from
// several goroutines at once.
type DecodeFunc func(src ImagePath) (*DecodedImage, error)

// DecodeResult is the completion message a worker sends for each job it ran
type DecodeResult struct {
	Token LoadToken
	Image *DecodedImage
	Err   error
}

type decodeJob struct {
	token    LoadToken
	src      ImagePath
	priority int
	seq      uint64
	index    int // position in the heap
}

// jobQueue is a min-heap on (priority, seq)
type jobQueue []*decodeJob

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	job := x.(*decodeJob)
	job.index = len(*q)
	*q = append(*q, job)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	job.index = -1
	*q = old[:n-1]
	return job
}

// PoolStats provides statistics about the worker pool
type PoolStats struct {
	Workers   int
	Queued    int
	Running   int
	Completed uint64
	Dropped   uint64
}

// WorkerPool runs decode jobs on a fixed set of goroutines. Jobs are taken
// from a shared priority queue; lower priority values run first. Completion
// order across workers is not defined.
type WorkerPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   jobQueue
	queued  map[LoadToken]*decodeJob
	seq     uint64
	running int
	closed  bool // no more jobs are handed out
	closing bool // Close has been called
	stats   PoolStats

	workers int
	decode  DecodeFunc
	results chan DecodeResult

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewWorkerPool starts workers goroutines (runtime.NumCPU() when workers <= 0).
// It fails only when no decode backend is given.
func NewWorkerPool(ctx context.Context, workers int, decode DecodeFunc) (*WorkerPool, error) {
	if decode == nil {
		return nil, errors.New("worker pool: no decode backend")
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(ctx)

	p := &WorkerPool{
		queued:  make(map[LoadToken]*decodeJob),
		workers: workers,
		decode:  decode,
		results: make(chan DecodeResult, workers),
		ctx:     gctx,
		cancel:  cancel,
		group:   group,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < workers; i++ {
		group.Go(func() error {
			p.worker()
			return nil
		})
	}

	// Wake idle workers once the pool's context ends
	group.Go(func() error {
		<-gctx.Done()
		p.mu.Lock()
		p.closed = true
		p.cond.Broadcast()
		p.mu.Unlock()
		return nil
	})

	debugLog("Worker pool started with %d workers", workers)
	return p, nil
}

// Results delivers one DecodeResult per job that was handed to a worker.
// The channel is closed by Close.
func (p *WorkerPool) Results() <-chan DecodeResult {
	return p.results
}

// Workers returns the number of worker goroutines
func (p *WorkerPool) Workers() int {
	return p.workers
}

// Submit enqueues a decode job for src and returns its token. Submitting a
// token that is still queued only updates its priority.
func (p *WorkerPool) Submit(src ImagePath, priority int, generation uint64) LoadToken {
	token := LoadToken{Path: src.Path, Generation: generation}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		debugLog("Worker pool closed, not submitting %s", src.Path)
		return token
	}

	if job, ok := p.queued[token]; ok {
		job.priority = priority
		heap.Fix(&p.queue, job.index)
		return token
	}

	p.seq++
	job := &decodeJob{
		token:    token,
		src:      src,
		priority: priority,
		seq:      p.seq,
	}
	heap.Push(&p.queue, job)
	p.queued[token] = job
	p.cond.Signal()
	return token
}

// Cancel drops a job that has not started yet and reports whether it did.
// A job that is already running finishes and still delivers its result.
func (p *WorkerPool) Cancel(token LoadToken) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	job, ok := p.queued[token]
	if !ok {
		return false
	}
	heap.Remove(&p.queue, job.index)
	delete(p.queued, token)
	p.stats.Dropped++
	return true
}

// Reprioritize changes the priority of a queued job
func (p *WorkerPool) Reprioritize(token LoadToken, priority int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	job, ok := p.queued[token]
	if !ok {
		return false
	}
	if job.priority != priority {
		job.priority = priority
		heap.Fix(&p.queue, job.index)
	}
	return true
}

// GetStats returns current pool statistics
func (p *WorkerPool) GetStats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.stats
	stats.Workers = p.workers
	stats.Queued = len(p.queue)
	stats.Running = p.running
	return stats
}

// Close discards queued jobs, waits for running decodes to finish and closes
// the results channel. Close is safe to call multiple times.
func (p *WorkerPool) Close() error {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return nil
	}
	p.closing = true
	p.closed = true
	p.stats.Dropped += uint64(len(p.queue))
	p.queue = nil
	p.queued = make(map[LoadToken]*decodeJob)
	p.cond.Broadcast()
	p.mu.Unlock()

	p.cancel()
	err := p.group.Wait()
	close(p.results)
	return err
}

func (p *WorkerPool) next() (*decodeJob, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.closed {
		return nil, false
	}

	job := heap.Pop(&p.queue).(*decodeJob)
	delete(p.queued, job.token)
	p.running++
	return job, true
}

func (p *WorkerPool) worker() {
	for {
		job, ok := p.next()
		if !ok {
			return
		}

		res := p.run(job)

		p.mu.Lock()
		p.running--
		p.stats.Completed++
		p.mu.Unlock()

		select {
		case p.results <- res:
		case <-p.ctx.Done():
			return
		}
	}
}

// run executes one job. Any failure, including a decoder panic, becomes an
// IoError or DecodeError on the result.
func (p *WorkerPool) run(job *decodeJob) (res DecodeResult) {
	res.Token = job.token

	if p.ctx.Err() != nil {
		res.Err = errCancelled
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Error: Decoder panic on %s: %v", job.src.Path, r)
			res.Image = nil
			res.Err = &DecodeError{Path: job.src.Path, Reason: fmt.Sprintf("decoder panic: %v", r)}
		}
	}()

	img, err := p.decode(job.src)
	switch {
	case err != nil:
		var ioErr *IoError
		var decErr *DecodeError
		if !errors.As(err, &ioErr) && !errors.As(err, &decErr) {
			err = &DecodeError{Path: job.src.Path, Reason: err.Error()}
		}
		res.Err = err
	case img == nil:
		res.Err = &DecodeError{Path: job.src.Path, Reason: "decoder returned no image"}
	default:
		res.Image = img
	}
	return res
}
