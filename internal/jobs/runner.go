// Package jobs runs categorization files on a bounded in-process worker
// queue and reports progress through per-job event channels.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"vouchercat/internal/models"
	"vouchercat/internal/services"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("job runner is stopped")
)

// eventBuffer is the capacity of each job's event channel. The last slot is
// reserved for the terminal event.
const eventBuffer = 64

// Processor runs one file under the given run id.
type Processor interface {
	ProcessFileAs(ctx context.Context, runID, inputPath string, obs services.Observer) (*models.RunResult, error)
}

type EventKind string

const (
	EventStarted  EventKind = "started"
	EventProgress EventKind = "progress"
	EventWaiting  EventKind = "waiting"
	EventDone     EventKind = "done"
	EventFailed   EventKind = "failed"
)

// Event is one notification about a job. Progress events may be dropped
// when the consumer falls behind; Done or Failed is always delivered last,
// after which the channel is closed.
type Event struct {
	JobID     string
	Kind      EventKind
	Processed int
	Total     int
	Waiting   bool
	Result    *models.RunResult
	Err       error
}

// Snapshot is the observable state of a job.
type Snapshot struct {
	ID         string            `json:"id"`
	InputPath  string            `json:"input_path"`
	Status     string            `json:"status"`
	Processed  int               `json:"processed"`
	Total      int               `json:"total"`
	Waiting    bool              `json:"waiting"`
	Result     *models.RunResult `json:"result,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	StartedAt  time.Time         `json:"started_at,omitempty"`
	FinishedAt time.Time         `json:"finished_at,omitempty"`
}

type job struct {
	mu     sync.Mutex
	state  Snapshot
	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
}

// emit sends ev without blocking. Non-terminal events never take the last slot.
func (j *job) emit(ev Event, terminal bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !terminal && len(j.events) >= cap(j.events)-1 {
		return
	}
	j.events <- ev
	if terminal {
		close(j.events)
	}
}

func (j *job) update(fn func(s *Snapshot)) {
	j.mu.Lock()
	fn(&j.state)
	j.mu.Unlock()
}

// Runner executes submitted jobs on a fixed number of workers.
type Runner struct {
	proc    Processor
	workers int
	queue   chan *job

	mu      sync.RWMutex
	jobs    map[string]*job
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(proc Processor, workers, queueSize int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		proc:    proc,
		workers: workers,
		queue:   make(chan *job, queueSize),
		jobs:    make(map[string]*job),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers. Jobs submitted before Start wait in the queue.
func (r *Runner) Start() {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for {
				select {
				case <-r.ctx.Done():
					return
				case j := <-r.queue:
					r.run(j)
				}
			}
		}()
	}
	log.Debugf("Job runner started with %d workers", r.workers)
}

// Stop cancels running jobs and waits for the workers to exit. Queued jobs
// that never started are marked failed.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()

	for {
		select {
		case j := <-r.queue:
			r.finish(j, nil, ErrStopped)
		default:
			return
		}
	}
}

// Submit queues inputPath and returns the job id, which is also the run id
// recorded in history, and the job's event channel.
func (r *Runner) Submit(inputPath string) (string, <-chan Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return "", nil, ErrStopped
	}

	ctx, cancel := context.WithCancel(r.ctx)
	j := &job{
		state: Snapshot{
			ID:        uuid.NewString(),
			InputPath: inputPath,
			Status:    models.JobStatusEnqueued,
			CreatedAt: time.Now().UTC(),
		},
		events: make(chan Event, eventBuffer),
		ctx:    ctx,
		cancel: cancel,
	}

	select {
	case r.queue <- j:
	default:
		cancel()
		return "", nil, ErrQueueFull
	}
	r.jobs[j.state.ID] = j
	log.WithField("job_id", j.state.ID).Infof("Queued %s", inputPath)
	return j.state.ID, j.events, nil
}

// Get returns a copy of the job's current state.
func (r *Runner) Get(id string) (Snapshot, bool) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state, true
}

// Cancel stops a queued or running job. It reports whether the job exists.
func (r *Runner) Cancel(id string) bool {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if ok {
		j.cancel()
	}
	return ok
}

func (r *Runner) run(j *job) {
	if err := j.ctx.Err(); err != nil {
		r.finish(j, nil, err)
		return
	}
	j.update(func(s *Snapshot) {
		s.Status = models.JobStatusRunning
		s.StartedAt = time.Now().UTC()
	})
	j.emit(Event{JobID: j.state.ID, Kind: EventStarted}, false)

	var waitMu sync.Mutex
	obs := services.Observer{
		OnProgress: func(processed, total int) {
			j.update(func(s *Snapshot) {
				s.Processed = processed
				s.Total = total
			})
			j.emit(Event{JobID: j.state.ID, Kind: EventProgress, Processed: processed, Total: total}, false)
		},
		OnWaiting: func(waiting bool) {
			waitMu.Lock()
			defer waitMu.Unlock()
			changed := false
			j.update(func(s *Snapshot) {
				changed = s.Waiting != waiting
				s.Waiting = waiting
			})
			if changed {
				j.emit(Event{JobID: j.state.ID, Kind: EventWaiting, Waiting: waiting}, false)
			}
		},
	}

	res, err := r.proc.ProcessFileAs(j.ctx, j.state.ID, j.state.InputPath, obs)
	r.finish(j, res, err)
}

func (r *Runner) finish(j *job, res *models.RunResult, err error) {
	defer j.cancel()
	ev := Event{JobID: j.state.ID, Result: res, Err: err}
	j.update(func(s *Snapshot) {
		s.FinishedAt = time.Now().UTC()
		s.Waiting = false
		if err != nil {
			s.Status = models.JobStatusFailed
			s.Error = err.Error()
			return
		}
		s.Status = models.JobStatusCompleted
		s.Result = res
		s.Processed = res.Summary.Total
		s.Total = res.Summary.Total
	})
	if err != nil {
		ev.Kind = EventFailed
		log.WithField("job_id", j.state.ID).WithError(err).Warn("Job failed")
	} else {
		ev.Kind = EventDone
		ev.Processed, ev.Total = res.Summary.Total, res.Summary.Total
	}
	j.emit(ev, true)
}
