package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"survey_compliance_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

const maxBackoff = 300 * time.Second

func (q *Queue) worker(idx int) {
	defer q.wg.Done()
	for {
		// fast-exit so stop wins over queued work
		select {
		case <-q.stop:
			return
		default:
		}
		select {
		case <-q.stop:
			return
		case d := <-q.jobs:
			q.execute(d)
		}
	}
}

// execute performs one attempt of a job and resolves the retry decision:
// success and permanent API errors terminate the job, a rate-limit signal
// reschedules after the server-mandated wait, and a connectivity error
// reschedules with exponential backoff. The attempt counter never exceeds
// the job's maximum.
func (q *Queue) execute(d *delivery) {
	d.attempt++
	log := q.log.WithFields(logrus.Fields{
		"job_id":  d.job.ID,
		"kind":    d.job.Kind,
		"chat_id": d.job.ChatID,
		"attempt": d.attempt,
	})

	msgID, err := q.perform(d.job)
	if err == nil {
		log.Info("Job delivered")
		d.resolve(Outcome{JobID: d.job.ID, OK: true, MessageID: msgID})
		return
	}

	var rateLimit *telegram.RateLimitError
	var connErr *telegram.ConnectivityError
	switch {
	case errors.As(err, &rateLimit):
		if d.attempt >= d.job.MaxAttempts {
			log.WithError(err).Error("Rate limited and max attempts exhausted")
			d.resolve(Outcome{JobID: d.job.ID, Err: err})
			return
		}
		// The mandated wait replaces the backoff delay; the backoff counter
		// is left untouched.
		log.WithField("retry_after", rateLimit.RetryAfter).Warn("Rate limit hit, rescheduling")
		q.requeueAfter(d, rateLimit.RetryAfter)

	case errors.As(err, &connErr):
		if d.attempt >= d.job.MaxAttempts {
			log.WithError(err).Error("Max attempts exhausted on network error")
			d.resolve(Outcome{
				JobID: d.job.ID,
				Err:   fmt.Errorf("network error after %d attempts: %w", d.attempt, err),
			})
			return
		}
		delay := backoffDelay(d.backoff)
		d.backoff++
		log.WithError(err).WithField("delay", delay).Warn("Network error, retrying with backoff")
		q.requeueAfter(d, delay)

	default:
		log.WithError(err).Error("Permanent delivery failure")
		d.resolve(Outcome{JobID: d.job.ID, Err: err})
	}
}

// perform runs the external call(s) for a single attempt.
func (q *Queue) perform(job Job) (int, error) {
	ctx := context.Background()
	if q.limiter != nil {
		if err := q.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	switch job.Kind {
	case KindSend:
		return q.client.Send(ctx, sendParams(job))
	case KindSendAndPin:
		msgID, err := q.client.Send(ctx, sendParams(job))
		if err != nil {
			return 0, err
		}
		// A pin failure fails the whole attempt even though the message is
		// already out; a retry can therefore post a duplicate.
		if err := q.client.Pin(ctx, job.ChatID, msgID, job.SilentPin); err != nil {
			return msgID, err
		}
		return msgID, nil
	case KindBan:
		return 0, q.client.Ban(ctx, job.ChatID, job.UserID)
	default:
		return 0, fmt.Errorf("unknown job kind: %q", job.Kind)
	}
}

func sendParams(job Job) telegram.SendParams {
	return telegram.SendParams{
		ChatID:            job.ChatID,
		ThreadID:          job.ThreadID,
		Text:              job.Text,
		ParseMode:         job.ParseMode,
		ReplyTo:           job.ReplyTo,
		DisableWebPreview: job.DisableWebPreview,
	}
}

// backoffDelay returns min(300, 2^n * 10) seconds for the n-th network retry.
func backoffDelay(n int) time.Duration {
	if n > 4 {
		return maxBackoff
	}
	d := time.Duration(10*(1<<uint(n))) * time.Second
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

// requeueAfter puts the delivery back on the queue once the delay elapses.
// The timer does not occupy a worker.
func (q *Queue) requeueAfter(d *delivery, delay time.Duration) {
	q.schedule(delay, func() {
		if err := q.push(d); err != nil {
			d.resolve(Outcome{JobID: d.job.ID, Err: fmt.Errorf("requeue failed: %w", err)})
		}
	})
}
