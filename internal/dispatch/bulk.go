package dispatch

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DeliverBulk dispatches jobs strictly sequentially: each job is submitted to
// the queue and its terminal outcome awaited before the next one is sent,
// with a fixed pause in between to respect the per-chat throughput ceiling.
// A failed message does not abort the batch; every job gets an outcome.
func (q *Queue) DeliverBulk(jobs []Job) []Outcome {
	outcomes := make([]Outcome, 0, len(jobs))
	for i, job := range jobs {
		if job.ID == "" {
			job.ID = uuid.NewString()
		}
		ch, err := q.EnqueueWait(job)
		if err != nil {
			outcomes = append(outcomes, Outcome{JobID: job.ID, Err: err})
		} else {
			outcomes = append(outcomes, q.await(job, ch))
		}
		if i < len(jobs)-1 {
			q.pause(q.cfg.BulkDelay)
		}
	}
	return outcomes
}

// EnqueueBulk runs DeliverBulk on a dedicated orchestrator goroutine, so the
// sequential waiting never occupies a delivery worker, and returns a handle
// immediately.
func (q *Queue) EnqueueBulk(jobs []Job) Handle {
	batchID := uuid.NewString()
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return Handle{JobID: batchID, Status: StatusError, Err: ErrQueueStopped}
	}
	q.bulkWG.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.bulkWG.Done()
		start := time.Now()
		outcomes := q.DeliverBulk(jobs)
		failed := 0
		for _, out := range outcomes {
			if !out.OK {
				failed++
			}
		}
		fields := logrus.Fields{
			"batch_id": batchID,
			"total":    len(outcomes),
			"failed":   failed,
			"duration": time.Since(start),
		}
		if failed > 0 {
			q.log.WithFields(fields).Warn("Bulk dispatch finished with failures")
		} else {
			q.log.WithFields(fields).Info("Bulk dispatch finished")
		}
	}()

	return Handle{JobID: batchID, Status: StatusQueued}
}

func (q *Queue) await(job Job, ch <-chan Outcome) Outcome {
	select {
	case out := <-ch:
		return out
	case <-q.stop:
		// Prefer an outcome that raced with shutdown.
		select {
		case out := <-ch:
			return out
		default:
			return Outcome{JobID: job.ID, Err: ErrQueueStopped}
		}
	}
}

func (q *Queue) pause(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-q.stop:
	case <-t.C:
	}
}
