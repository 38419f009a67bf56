package db

import (
	"database/sql"
	"testing"
	"time"

	"study-sms-server/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := createTables(db); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}

	return db
}

// createTestParticipant inserts a minimal active participant and returns it
func createTestParticipant(t *testing.T, repo ParticipantRepository, pid string) *models.Participant {
	t.Helper()

	start := "2024-01-01"
	ws := "09:00"
	we := "17:00"
	name := "Test"

	p := &models.Participant{
		PID:            pid,
		FriendlyName:   &name,
		PhoneNumber:    "+15550001111",
		StudyGroup:     "Intervention",
		StartDate:      &start,
		SMSWindowStart: &ws,
		SMSWindowEnd:   &we,
		Active:         true,
	}
	if err := repo.Create(p); err != nil {
		t.Fatalf("failed to create test participant: %v", err)
	}
	return p
}

// createTestMessage inserts a send record for a participant and returns it
func createTestMessage(t *testing.T, repo MessageRepository, participantID int64, contentID *int64, status string, sentAt time.Time) *models.Message {
	t.Helper()

	m := &models.Message{
		ParticipantID: participantID,
		ContentID:     contentID,
		Content:       "test body",
		Bucket:        "Intervention",
		Status:        status,
		SentAt:        sentAt.Unix(),
	}
	if err := repo.Create(m); err != nil {
		t.Fatalf("failed to create test message: %v", err)
	}
	return m
}
