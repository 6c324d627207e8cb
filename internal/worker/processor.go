// Package worker consumes queued ticket updates.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/suPer8Hu/helpdesk-triage/internal/notify"
)

type Decision int

const (
	// Ack removes the message; it was delivered, retried elsewhere or
	// needs nothing.
	Ack Decision = iota
	// Reject dead-letters the message.
	Reject
)

func (d Decision) String() string {
	if d == Reject {
		return "reject"
	}
	return "ack"
}

type Updater interface {
	Handle(ctx context.Context, u notify.Update) (notify.Outcome, error)
}

type Retrier interface {
	PublishRetry(ctx context.Context, body []byte, delay time.Duration) error
}

type Processor struct {
	updates    Updater
	retry      Retrier
	maxRetries int
	delay      time.Duration
	log        *slog.Logger
}

func NewProcessor(updates Updater, retry Retrier, maxRetries int, delay time.Duration, log *slog.Logger) *Processor {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if log == nil {
		log = slog.Default()
	}
	return &Processor{updates: updates, retry: retry, maxRetries: maxRetries, delay: delay, log: log}
}

// Process handles one delivery body and says what to do with it.
func (p *Processor) Process(ctx context.Context, body []byte) Decision {
	job, err := notify.DecodeJob(body)
	if err != nil {
		p.log.Error("bad job message", "error", err)
		return Reject
	}

	start := time.Now()
	out, err := p.updates.Handle(ctx, job.Update)
	if err == nil {
		p.log.Info("ticket update processed",
			"job_id", job.ID,
			"ticket_id", job.Update.TicketID,
			"outcome", out,
			"attempt", job.Attempt,
			"cost", time.Since(start),
		)
		return Ack
	}

	if job.Attempt >= p.maxRetries || p.retry == nil {
		p.log.Error("ticket update failed, dead-lettering",
			"job_id", job.ID, "ticket_id", job.Update.TicketID, "attempt", job.Attempt, "error", err)
		return Reject
	}

	job.Attempt++
	next, encErr := job.Encode()
	if encErr != nil {
		p.log.Error("re-encode job failed", "job_id", job.ID, "error", encErr)
		return Reject
	}
	if perr := p.retry.PublishRetry(ctx, next, p.delay); perr != nil {
		p.log.Error("schedule retry failed, dead-lettering", "job_id", job.ID, "error", perr)
		return Reject
	}
	p.log.Warn("ticket update failed, retry scheduled",
		"job_id", job.ID, "ticket_id", job.Update.TicketID, "attempt", job.Attempt, "delay", p.delay, "error", err)
	return Ack
}
