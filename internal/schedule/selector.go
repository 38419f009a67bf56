package schedule

import (
	"fmt"
	"math/rand"
	"time"

	"study-sms-server/internal/db"
	"study-sms-server/internal/models"
	"study-sms-server/pkg/logger"

	"go.uber.org/zap"
)

// repetitionLookback is how long a template stays excluded for a participant
// after being sent to them
const repetitionLookback = 7 * 24 * time.Hour

// Selector picks the next message template for a participant. Selection is
// random but biased toward content the participant has not seen: templates
// sent within the last week are excluded (unless that empties the pool —
// repetition is preferred over silence), and never-sent templates win over
// repeats.
type Selector struct {
	contents db.ContentRepository
	messages db.MessageRepository
	rng      *rand.Rand
}

// NewSelector creates a Selector. A nil rng gets a time-seeded source;
// tests inject a fixed seed for reproducible picks.
func NewSelector(contents db.ContentRepository, messages db.MessageRepository, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{
		contents: contents,
		messages: messages,
		rng:      rng,
	}
}

// Pick selects a template for the participant from their bucket's active
// pool. A (nil, nil) return means there is legitimately nothing to send.
func (s *Selector) Pick(participantID int64, bucket string, now time.Time) (*models.MessageContent, error) {
	if participantID <= 0 {
		return nil, fmt.Errorf("participant ID must be positive")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket cannot be empty")
	}

	pool, err := s.contents.ListActiveByBucket(bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates for bucket %s: %w", bucket, err)
	}
	if len(pool) == 0 {
		logger.Warn("No active templates for bucket",
			zap.String("bucket", bucket),
			zap.Int64("participant_id", participantID),
		)
		return nil, nil
	}

	weekAgo := now.Add(-repetitionLookback).Unix()
	recentIDs, err := s.messages.ContentIDsSentSince(participantID, weekAgo)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent sends: %w", err)
	}

	everIDs, err := s.messages.ContentIDsEverSent(participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load send history: %w", err)
	}

	recent := toSet(recentIDs)
	ever := toSet(everIDs)

	// Exclude templates sent within the lookback window
	eligible := make([]*models.MessageContent, 0, len(pool))
	for _, mc := range pool {
		if !recent[mc.ID] {
			eligible = append(eligible, mc)
		}
	}

	if len(eligible) == 0 {
		// Everything was sent this week; repeat rather than stay silent
		logger.Warn("All templates sent within the last week, falling back to full pool",
			zap.Int64("participant_id", participantID),
			zap.String("bucket", bucket),
		)
		eligible = pool
	}

	// Prefer templates this participant has never received
	var novel []*models.MessageContent
	for _, mc := range eligible {
		if !ever[mc.ID] {
			novel = append(novel, mc)
		}
	}

	if len(novel) > 0 {
		picked := novel[s.rng.Intn(len(novel))]
		logger.Debug("Selected new template",
			zap.Int64("participant_id", participantID),
			zap.Int64("content_id", picked.ID),
		)
		return picked, nil
	}

	picked := eligible[s.rng.Intn(len(eligible))]
	logger.Debug("Selected repeat template",
		zap.Int64("participant_id", participantID),
		zap.Int64("content_id", picked.ID),
	)
	return picked, nil
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
