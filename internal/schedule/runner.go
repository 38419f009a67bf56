package schedule

import (
	"context"
	"fmt"
	"time"

	"study-sms-server/internal/db"
	"study-sms-server/internal/models"
	"study-sms-server/pkg/logger"

	"go.uber.org/zap"
)

// Sender dispatches one message to one participant and persists the outcome.
// Implemented by the message service; a dispatch failure is recorded on the
// returned Message, not returned as an error.
type Sender interface {
	Send(ctx context.Context, p *models.Participant, content, bucket string, contentID *int64) (*models.Message, error)
}

// Runner iterates the schedulable participants once per invocation, filters
// them through the window predicate, and sends each eligible participant one
// selected template. One participant's failure never halts the batch.
type Runner struct {
	participants db.ParticipantRepository
	selector     *Selector
	sender       Sender
	clock        func() time.Time
}

// NewRunner creates a Runner
func NewRunner(participants db.ParticipantRepository, selector *Selector, sender Sender) *Runner {
	return &Runner{
		participants: participants,
		selector:     selector,
		sender:       sender,
		clock:        time.Now,
	}
}

// WithClock replaces the time source, for tests
func (r *Runner) WithClock(clock func() time.Time) *Runner {
	r.clock = clock
	return r
}

// RunOnce processes the current batch and returns the number of participants
// whose dispatch was accepted by the provider. It errors only on total
// infrastructure failure before the batch starts.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	// One consistent instant for the whole batch
	now := r.clock().UTC()

	participants, err := r.participants.ListSchedulable()
	if err != nil {
		return 0, fmt.Errorf("failed to load participants: %w", err)
	}

	eligible := 0
	sent := 0

	for _, p := range participants {
		if !EligibleAt(p, now) {
			continue
		}
		eligible++

		if err := ctx.Err(); err != nil {
			logger.Warn("Scheduled run interrupted", zap.Error(err))
			break
		}

		mc, err := r.selector.Pick(p.ID, p.StudyGroup, now)
		if err != nil {
			logger.Error("Template selection failed",
				zap.String("pid", p.PID),
				zap.Error(err),
			)
			continue
		}
		if mc == nil {
			logger.Warn("No suitable template for participant",
				zap.String("pid", p.PID),
				zap.String("bucket", p.StudyGroup),
			)
			continue
		}

		msg, err := r.sender.Send(ctx, p, mc.Content, mc.Bucket, &mc.ID)
		if err != nil {
			logger.Error("Send failed for participant",
				zap.String("pid", p.PID),
				zap.Error(err),
			)
			continue
		}

		if msg.Status == models.StatusSent {
			sent++
		} else {
			logger.Warn("Dispatch not accepted",
				zap.String("pid", p.PID),
				zap.String("status", msg.Status),
			)
		}
	}

	logger.Info("Scheduled run completed",
		zap.Int("eligible", eligible),
		zap.Int("sent", sent),
	)

	return sent, nil
}
