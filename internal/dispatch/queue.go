package dispatch

import (
	"errors"
	"sync"
	"time"

	"survey_compliance_bot/internal/domain/telegram"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	ErrQueueStopped = errors.New("dispatch queue is stopped")
	ErrQueueFull    = errors.New("dispatch queue is full")
)

// Config tunes the queue worker pool.
type Config struct {
	Workers    int           // number of delivery workers
	Capacity   int           // buffered queue size
	RatePerSec int           // outgoing call ceiling, 0 disables the limiter
	BulkDelay  time.Duration // pause between messages of one bulk batch
}

// Queue is the notification dispatcher: a buffered job queue drained by a
// worker pool. Each job runs on exactly one worker per attempt; retries are
// rescheduled with a timer and re-enter the queue, so a waiting job never
// holds a worker slot.
type Queue struct {
	cfg     Config
	client  telegram.Client
	log     *logrus.Entry
	limiter *rate.Limiter

	jobs     chan *delivery
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// mu guards stopped and admission into bulkWG, so a bulk orchestrator can
	// never be added while Stop is already waiting.
	mu      sync.Mutex
	stopped bool
	bulkWG  sync.WaitGroup

	// schedule defaults to time.AfterFunc; tests replace it to avoid real delays.
	schedule func(time.Duration, func())
}

// delivery is the queue-side bookkeeping for one job. attempt counts every
// try (rate-limited ones included); backoff counts only network retries and
// drives the exponential delay.
type delivery struct {
	job     Job
	attempt int
	backoff int
	result  chan Outcome
}

func (d *delivery) resolve(out Outcome) {
	select {
	case d.result <- out:
	default:
	}
}

// New builds a stopped queue; call Start to launch the workers.
func New(cfg Config, client telegram.Client, log *logrus.Entry) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 256
	}
	if cfg.BulkDelay <= 0 {
		cfg.BulkDelay = time.Second
	}
	q := &Queue{
		cfg:    cfg,
		client: client,
		log:    log,
		jobs:   make(chan *delivery, cfg.Capacity),
		stop:   make(chan struct{}),
		schedule: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	if cfg.RatePerSec > 0 {
		q.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	}
	return q
}

// Start launches the worker pool.
func (q *Queue) Start() {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.log.WithField("workers", q.cfg.Workers).Info("Dispatch queue started")
}

// Stop shuts the queue down and waits for in-flight deliveries to finish.
// Jobs still buffered or waiting on a retry timer are abandoned.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		q.mu.Unlock()
		close(q.stop)
	})
	q.wg.Wait()
	q.bulkWG.Wait()
	q.log.Info("Dispatch queue stopped")
}

// Enqueue submits a job and returns immediately. The handle carries
// StatusError when the queue cannot accept the job; the caller is never
// blocked on delivery and never sees a delivery failure synchronously.
func (q *Queue) Enqueue(job Job) Handle {
	d, err := q.submit(job)
	if err != nil {
		q.log.WithError(err).WithField("chat_id", job.ChatID).Error("Failed to enqueue job")
		return Handle{JobID: job.ID, ChatID: job.ChatID, Status: StatusError, Err: err}
	}
	q.log.WithFields(logrus.Fields{
		"job_id":  d.job.ID,
		"kind":    d.job.Kind,
		"chat_id": d.job.ChatID,
	}).Info("Job queued")
	return Handle{JobID: d.job.ID, ChatID: d.job.ChatID, Status: StatusQueued}
}

// EnqueueWait submits a job and returns a channel that receives the terminal
// outcome. Used by the bulk orchestrator and by callers that audit delivery.
func (q *Queue) EnqueueWait(job Job) (<-chan Outcome, error) {
	d, err := q.submit(job)
	if err != nil {
		return nil, err
	}
	return d.result, nil
}

func (q *Queue) submit(job Job) (*delivery, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = defaultAttempts(job.Kind)
	}
	d := &delivery{job: job, result: make(chan Outcome, 1)}
	if err := q.push(d); err != nil {
		return nil, err
	}
	return d, nil
}

func (q *Queue) push(d *delivery) error {
	select {
	case <-q.stop:
		return ErrQueueStopped
	default:
	}
	select {
	case q.jobs <- d:
		return nil
	default:
		return ErrQueueFull
	}
}
