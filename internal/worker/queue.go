// Package worker runs background jobs one at a time from an in-memory FIFO
// queue. One worker goroutine keeps total pipeline concurrency at one, which
// also serializes LLM usage against provider rate limits.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// JobState is the lifecycle of one queued job.
type JobState string

const (
	StateQueued    JobState = "queued"
	StateRunning   JobState = "running"
	StatePaused    JobState = "paused"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// Handler executes one job. Returning ErrPaused settles the job as paused
// instead of completed.
type Handler func(ctx context.Context, job *Job) error

// ErrPaused signals a deliberate mid-run stop (pipeline stopAfterStage).
var ErrPaused = errPaused{}

type errPaused struct{}

func (errPaused) Error() string { return "job paused" }

// Job is one queued unit of work.
type Job struct {
	ID        string
	ProjectID string
	Payload   any

	mu    sync.Mutex
	state JobState
	err   error
	done  chan struct{}
}

func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Done is closed once the job settles (completed, paused, or failed). The
// close happens strictly after the handler returned, so every progress
// callback the handler emitted is ordered before the settle.
func (j *Job) Done() <-chan struct{} { return j.done }

func (j *Job) setState(s JobState, err error) {
	j.mu.Lock()
	j.state = s
	j.err = err
	j.mu.Unlock()
}

// Queue is a FIFO of background jobs served by a single worker goroutine.
type Queue struct {
	handler Handler
	jobs    chan *Job

	mu     sync.Mutex
	byID   map[string]*Job
	nextID int

	stopOnce sync.Once
	stopped  chan struct{}
}

func NewQueue(capacity int, handler Handler) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	q := &Queue{
		handler: handler,
		jobs:    make(chan *Job, capacity),
		byID:    make(map[string]*Job),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue adds a job; it fails only when the queue is full or stopped. The
// stopped check and the send happen under the mutex Stop also takes, so a
// job admitted here is always visible to the drain in run.
func (q *Queue) Enqueue(projectID string, payload any) (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	select {
	case <-q.stopped:
		return nil, fmt.Errorf("worker: queue is stopped")
	default:
	}

	q.nextID++
	job := &Job{
		ID:        fmt.Sprintf("job-%d", q.nextID),
		ProjectID: projectID,
		Payload:   payload,
		state:     StateQueued,
		done:      make(chan struct{}),
	}

	select {
	case q.jobs <- job:
		q.byID[job.ID] = job
		return job, nil
	default:
		return nil, fmt.Errorf("worker: queue is full")
	}
}

// Get looks a job up by id.
func (q *Queue) Get(id string) (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.byID[id]
	return job, ok
}

// Stop prevents further enqueues and dequeues after the current job
// finishes; jobs still queued are settled as failed.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		close(q.stopped)
		q.mu.Unlock()
	})
}

func (q *Queue) run() {
	for {
		// Checked first so a stop always wins over a queued job.
		select {
		case <-q.stopped:
			q.drain()
			return
		default:
		}
		select {
		case <-q.stopped:
			q.drain()
			return
		case job := <-q.jobs:
			q.process(job)
		}
	}
}

// drain settles every job still queued at stop time so its Done channel
// closes.
func (q *Queue) drain() {
	for {
		select {
		case job := <-q.jobs:
			job.setState(StateFailed, fmt.Errorf("worker: queue stopped before job ran"))
			close(job.done)
		default:
			return
		}
	}
}

func (q *Queue) process(job *Job) {
	job.setState(StateRunning, nil)
	err := q.safeHandle(job)
	switch {
	case err == nil:
		job.setState(StateCompleted, nil)
	case err == ErrPaused:
		job.setState(StatePaused, nil)
	default:
		log.Printf("worker: job %s failed: %v", job.ID, err)
		job.setState(StateFailed, err)
	}
	close(job.done)
}

// safeHandle keeps a panicking handler from killing the worker goroutine.
func (q *Queue) safeHandle(job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: handler panic: %v", r)
		}
	}()
	return q.handler(context.Background(), job)
}
