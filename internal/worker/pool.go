package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/helpdesk-insight/ticket-ingest/internal/queue"
)

// Handler processes one job. Returning an error hands the job back to the
// queue's retry policy.
type Handler func(ctx context.Context, job queue.Job) error

// JobQueue is the consumer side of the queue.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Ack(ctx context.Context, job *queue.Job) error
	Fail(ctx context.Context, job *queue.Job, cause error) (bool, error)
}

// PoolConfig sizes the pool.
type PoolConfig struct {
	Workers     int
	JobTimeout  time.Duration
	PollTimeout time.Duration
	ErrorPause  time.Duration
}

// FailureHook observes failed attempts.
type FailureHook func(ctx context.Context, job queue.Job, dead bool, cause error)

// Pool runs a fixed number of consumers against a queue.
type Pool struct {
	queue     JobQueue
	cfg       PoolConfig
	logger    *zap.Logger
	mu        sync.RWMutex
	handlers  map[string]Handler
	onFailure FailureHook
}

// NewPool creates a pool. Register handlers before calling Run.
func NewPool(q JobQueue, cfg PoolConfig, logger *zap.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollTimeout < time.Second {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.ErrorPause <= 0 {
		cfg.ErrorPause = time.Second
	}
	return &Pool{
		queue:    q,
		cfg:      cfg,
		logger:   logger.Named("worker"),
		handlers: make(map[string]Handler),
	}
}

// Handle registers the handler for a job name.
func (p *Pool) Handle(name string, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[name] = h
}

// OnFailure sets a hook called after every failed attempt.
func (p *Pool) OnFailure(hook FailureHook) {
	p.onFailure = hook
}

// Run blocks until ctx is cancelled and all consumers have returned.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.consume(ctx, id)
		}(i)
	}
	p.logger.Info("worker pool started", zap.Int("workers", p.cfg.Workers))
	wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) consume(ctx context.Context, id int) {
	log := p.logger.With(zap.Int("worker", id))
	for ctx.Err() == nil {
		job, err := p.queue.Dequeue(ctx, p.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("dequeue failed", zap.Error(err))
			p.pause(ctx)
			continue
		}
		if job == nil {
			continue
		}
		p.process(ctx, log, job)
	}
}

func (p *Pool) pause(ctx context.Context) {
	timer := time.NewTimer(p.cfg.ErrorPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (p *Pool) process(ctx context.Context, log *zap.Logger, job *queue.Job) {
	log = log.With(zap.String("job_id", job.ID), zap.String("job", job.Name))
	started := time.Now()

	err := p.execute(ctx, job)

	// The job outcome must be recorded even when shutdown cancelled ctx.
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err == nil {
		if ackErr := p.queue.Ack(settleCtx, job); ackErr != nil {
			log.Error("ack failed", zap.Error(ackErr))
		}
		log.Info("job completed", zap.Duration("duration", time.Since(started)))
		return
	}

	dead, failErr := p.queue.Fail(settleCtx, job, err)
	if failErr != nil {
		log.Error("recording job failure failed", zap.Error(failErr), zap.NamedError("cause", err))
		return
	}
	log.Warn("job failed",
		zap.Error(err),
		zap.Int("attempts", job.Attempts),
		zap.Bool("dead", dead),
	)
	if p.onFailure != nil {
		p.onFailure(settleCtx, *job, dead, err)
	}
}

func (p *Pool) execute(ctx context.Context, job *queue.Job) (err error) {
	p.mu.RLock()
	handler, ok := p.handlers[job.Name]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler for job %q", job.Name)
	}

	jobCtx := ctx
	if p.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, p.cfg.JobTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return handler(jobCtx, *job)
}
