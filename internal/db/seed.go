package db

import (
	"fmt"
	"time"

	"study-sms-server/internal/models"

	"github.com/google/uuid"
)

// SeedDatabase populates an empty database with sample participants and
// message templates for development. Existing rows are left alone.
func (d *Database) SeedDatabase() error {
	if d == nil || d.db == nil {
		return fmt.Errorf("database is not open")
	}

	var participantCount int
	if err := d.db.QueryRow("SELECT COUNT(id) FROM participants").Scan(&participantCount); err != nil {
		return fmt.Errorf("failed to count participants: %w", err)
	}

	participants := NewParticipantRepository(d.db)
	contents := NewContentRepository(d.db)

	if participantCount == 0 {
		today := time.Now().UTC().Format("2006-01-02")
		weekAgo := time.Now().UTC().AddDate(0, 0, -7).Format("2006-01-02")

		samples := []*models.Participant{
			{
				PID:            "VET001",
				FriendlyName:   strPtr("John"),
				PhoneNumber:    "+15551234567",
				StudyGroup:     "Intervention",
				StartDate:      &today,
				SMSWindowStart: strPtr("09:00"),
				SMSWindowEnd:   strPtr("17:00"),
				TimezoneOffset: -240,
				Active:         true,
			},
			{
				PID:            "VET002",
				FriendlyName:   strPtr("Jane"),
				PhoneNumber:    "+15552345678",
				StudyGroup:     "Control",
				StartDate:      &weekAgo,
				SMSWindowStart: strPtr("08:00"),
				SMSWindowEnd:   strPtr("20:00"),
				TimezoneOffset: -300,
				Active:         true,
			},
			{
				// Inactive sample; never scheduled
				PID:            "VET003",
				FriendlyName:   strPtr("Sarah"),
				PhoneNumber:    "+15554567890",
				StudyGroup:     "Control",
				StartDate:      &weekAgo,
				SMSWindowStart: strPtr("07:00"),
				SMSWindowEnd:   strPtr("19:00"),
				TimezoneOffset: -360,
				Active:         false,
			},
			{
				// No schedule configured yet
				PID:         "PILOT-" + uuid.New().String()[:8],
				PhoneNumber: "+15553456789",
				StudyGroup:  "Intervention",
				Active:      true,
			},
		}

		for _, p := range samples {
			if err := participants.Create(p); err != nil {
				return fmt.Errorf("failed to seed participant %s: %w", p.PID, err)
			}
		}
	}

	var contentCount int
	if err := d.db.QueryRow("SELECT COUNT(id) FROM message_contents").Scan(&contentCount); err != nil {
		return fmt.Errorf("failed to count message contents: %w", err)
	}

	if contentCount == 0 {
		samples := []*models.MessageContent{
			{Content: "Hi %F, remember to track your steps today! Every step counts.", Bucket: "Intervention", Active: true},
			{Content: "Great job reaching your activity goal yesterday, %F! Keep it up!", Bucket: "Intervention", Active: true},
			{Content: "Try to take a short walk during your lunch break today - even 10 minutes helps!", Bucket: "Intervention", Active: true},
			{Content: "Your weekly activity summary is now available.", Bucket: "Control", Active: true},
			{Content: "Hi %F, thanks for being part of the study.", Bucket: "Control", Active: true},
		}

		for _, mc := range samples {
			if err := contents.Create(mc); err != nil {
				return fmt.Errorf("failed to seed message content: %w", err)
			}
		}
	}

	return nil
}

func strPtr(s string) *string {
	return &s
}
