// Package queue is a small durable job queue on top of Redis lists.
//
// Jobs wait in a list, move atomically to an active list while a worker holds
// them, and either disappear on Ack or are rescheduled through a delayed sorted
// set on Fail. Jobs that exhaust their attempts land in a failed list for
// operators to inspect.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrDuplicateJob is returned when a job with the same id is still waiting,
// running or scheduled for a retry. Reservations expire after DedupTTL.
var ErrDuplicateJob = errors.New("duplicate job id")

// Job is a unit of work.
type Job struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`

	raw string
}

// Decode unmarshals the payload into v.
func (j Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode payload of job %s: %w", j.ID, err)
	}
	return nil
}

// Options tunes the queue.
type Options struct {
	Name        string
	MaxAttempts int
	BaseDelay   time.Duration
	DedupTTL    time.Duration
}

// Stats are the current list sizes.
type Stats struct {
	Waiting int64 `json:"waiting"`
	Active  int64 `json:"active"`
	Delayed int64 `json:"delayed"`
	Failed  int64 `json:"failed"`
}

// Queue is safe for concurrent use by multiple producers and consumers.
type Queue struct {
	rdb    redis.Cmdable
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// New builds a queue. Zero options fall back to sane defaults.
func New(rdb redis.Cmdable, opts Options, logger *zap.Logger) *Queue {
	if opts.Name == "" {
		opts.Name = "tickets"
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 5 * time.Second
	}
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = 24 * time.Hour
	}
	return &Queue{rdb: rdb, opts: opts, logger: logger.Named("queue"), now: time.Now}
}

func (q *Queue) key(suffix string) string {
	return "queue:" + q.opts.Name + ":" + suffix
}

// Enqueue adds a job. An empty id gets a random one. An id whose job has not
// been acked or buried yet yields ErrDuplicateJob and nothing is enqueued.
func (q *Queue) Enqueue(ctx context.Context, name, id string, payload any) (Job, error) {
	if id == "" {
		id = uuid.NewString()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("encode job payload: %w", err)
	}

	created, err := q.rdb.SetNX(ctx, q.key("id:"+id), 1, q.opts.DedupTTL).Result()
	if err != nil {
		return Job{}, fmt.Errorf("reserve job id: %w", err)
	}
	if !created {
		return Job{}, fmt.Errorf("%w: %s", ErrDuplicateJob, id)
	}

	job := Job{ID: id, Name: name, Payload: body, EnqueuedAt: q.now().UTC()}
	data, err := json.Marshal(job)
	if err != nil {
		return Job{}, fmt.Errorf("encode job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key("wait"), data).Err(); err != nil {
		_ = q.rdb.Del(ctx, q.key("id:"+id)).Err()
		return Job{}, fmt.Errorf("push job: %w", err)
	}
	job.raw = string(data)
	return job, nil
}

// Dequeue blocks up to timeout for the next job. It returns nil, nil when the
// timeout elapses without work. Timeouts below one second are rounded up.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	if err := q.promoteDue(ctx); err != nil {
		return nil, err
	}
	if timeout < time.Second {
		timeout = time.Second
	}

	raw, err := q.rdb.BRPopLPush(ctx, q.key("wait"), q.key("active"), timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop job: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Poison entry: park it in the failed list untouched.
		_ = q.rdb.LRem(ctx, q.key("active"), 1, raw).Err()
		_ = q.rdb.LPush(ctx, q.key("failed"), raw).Err()
		return nil, fmt.Errorf("decode job: %w", err)
	}
	job.raw = raw
	return &job, nil
}

// promoteDue moves retries whose delay has elapsed back to the wait list.
func (q *Queue) promoteDue(ctx context.Context) error {
	upTo := strconv.FormatInt(q.now().UnixMilli(), 10)
	due, err := q.rdb.ZRangeByScore(ctx, q.key("delayed"), &redis.ZRangeBy{Min: "-inf", Max: upTo}).Result()
	if err != nil {
		return fmt.Errorf("scan delayed jobs: %w", err)
	}
	for _, raw := range due {
		removed, err := q.rdb.ZRem(ctx, q.key("delayed"), raw).Result()
		if err != nil {
			return fmt.Errorf("claim delayed job: %w", err)
		}
		if removed == 0 {
			// another consumer promoted it
			continue
		}
		if err := q.rdb.LPush(ctx, q.key("wait"), raw).Err(); err != nil {
			return fmt.Errorf("promote delayed job: %w", err)
		}
	}
	return nil
}

// Recover moves jobs left in the active list by a previous process back to
// the wait list. Call it before any consumer starts.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.rdb.RPopLPush(ctx, q.key("active"), q.key("wait")).Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("recover active jobs: %w", err)
		}
		moved++
	}
}

// Ack removes a finished job from the active list and releases its id.
func (q *Queue) Ack(ctx context.Context, job *Job) error {
	if err := q.rdb.LRem(ctx, q.key("active"), 1, job.raw).Err(); err != nil {
		return fmt.Errorf("ack job %s: %w", job.ID, err)
	}
	return q.release(ctx, job)
}

func (q *Queue) release(ctx context.Context, job *Job) error {
	if err := q.rdb.Del(ctx, q.key("id:"+job.ID)).Err(); err != nil {
		return fmt.Errorf("release job id %s: %w", job.ID, err)
	}
	return nil
}

// Fail records a failed attempt. The job is retried after an exponential delay
// until MaxAttempts is reached, then moved to the failed list; dead reports the
// latter.
func (q *Queue) Fail(ctx context.Context, job *Job, cause error) (dead bool, err error) {
	if err := q.rdb.LRem(ctx, q.key("active"), 1, job.raw).Err(); err != nil {
		return false, fmt.Errorf("release job %s: %w", job.ID, err)
	}

	job.Attempts++
	if cause != nil {
		job.LastError = cause.Error()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return false, fmt.Errorf("encode job: %w", err)
	}
	job.raw = string(data)

	if job.Attempts >= q.opts.MaxAttempts {
		if err := q.rdb.LPush(ctx, q.key("failed"), data).Err(); err != nil {
			return true, fmt.Errorf("bury job %s: %w", job.ID, err)
		}
		return true, q.release(ctx, job)
	}

	delay := q.retryDelay(job.Attempts)
	due := q.now().Add(delay).UnixMilli()
	if err := q.rdb.ZAdd(ctx, q.key("delayed"), redis.Z{Score: float64(due), Member: data}).Err(); err != nil {
		return false, fmt.Errorf("reschedule job %s: %w", job.ID, err)
	}
	q.logger.Debug("job rescheduled",
		zap.String("job_id", job.ID),
		zap.Int("attempts", job.Attempts),
		zap.Duration("delay", delay),
	)
	return false, nil
}

func (q *Queue) retryDelay(attempts int) time.Duration {
	return time.Duration(float64(q.opts.BaseDelay) * math.Pow(2, float64(attempts-1)))
}

// Failed returns up to limit dead jobs, newest first.
func (q *Queue) Failed(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	raws, err := q.rdb.LRange(ctx, q.key("failed"), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list failed jobs: %w", err)
	}
	jobs := make([]Job, 0, len(raws))
	for _, raw := range raws {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			job = Job{Name: "undecodable", LastError: err.Error()}
		}
		job.raw = raw
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Stats reports the size of every list.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var (
		s    Stats
		errs []error
		err  error
	)
	s.Waiting, err = q.rdb.LLen(ctx, q.key("wait")).Result()
	errs = append(errs, err)
	s.Active, err = q.rdb.LLen(ctx, q.key("active")).Result()
	errs = append(errs, err)
	s.Delayed, err = q.rdb.ZCard(ctx, q.key("delayed")).Result()
	errs = append(errs, err)
	s.Failed, err = q.rdb.LLen(ctx, q.key("failed")).Result()
	errs = append(errs, err)
	if err := errors.Join(errs...); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return s, nil
}
