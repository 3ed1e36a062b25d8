package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docsearch/internal/config"
	"github.com/dgallion1/docsearch/internal/parser"
)

var (
	// ErrReindexInProgress is returned when a reindex is already running.
	ErrReindexInProgress = errors.New("reindex already in progress")

	// ErrStopped is returned for work submitted after Stop.
	ErrStopped = errors.New("pipeline stopped")
)

// Orchestrator manages background ingest and reindex jobs.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	indexer Indexer
	log     *slog.Logger
	cfg     config.Config
	backoff func(int) time.Duration

	mu         sync.Mutex
	ctx        context.Context
	reindexing *Job
	stopped    bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, indexer Indexer, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		indexer: indexer,
		log:     log,
		cfg:     cfg,
		backoff: Backoff,
		ctx:     context.Background(),
	}
}

func (o *Orchestrator) newWorker() *Worker {
	return NewWorker(o.indexer, o.log, parser.Options{PDFFallbackPdftotext: o.cfg.PDFFallbackPdftotext}, o.cfg.UploadDir, o.backoff)
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.ctx = workerCtx
	o.cancel = cancel
	o.mu.Unlock()

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := o.newWorker()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline. A running reindex finishes its
// detached rebuild before Stop returns.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	cancel := o.cancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.wg.Wait()
}

// Submit queues a new ingest job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return ErrStopped
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// StartReindex launches a background reindex. At most one runs at a time;
// while one is running the existing job is returned with
// ErrReindexInProgress.
func (o *Orchestrator) StartReindex() (*Job, error) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return nil, ErrStopped
	}
	if o.reindexing != nil {
		running := o.reindexing
		o.mu.Unlock()
		return running, ErrReindexInProgress
	}
	job := NewReindexJob()
	o.reindexing = job
	ctx := o.ctx
	o.wg.Add(1)
	o.mu.Unlock()

	o.jobs.Put(job)
	o.log.Info("reindex started", "job_id", job.ID)

	go func() {
		defer o.wg.Done()
		defer func() {
			o.mu.Lock()
			o.reindexing = nil
			o.mu.Unlock()
		}()
		o.newWorker().Process(ctx, job)
	}()
	return job, nil
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
