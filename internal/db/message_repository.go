package db

import (
	"database/sql"
	"fmt"

	"study-sms-server/internal/models"
)

// MessageFilter narrows message history queries
type MessageFilter struct {
	ParticipantID *int64
	Status        string
	SentAfter     *int64
	SentBefore    *int64
	Limit         int
	Offset        int
}

// MessageRepository defines the interface for send-record data access
type MessageRepository interface {
	Create(m *models.Message) error
	GetByID(id int64) (*models.Message, error)
	// Update writes the mutable reconciliation fields (status, delivered_at,
	// twilio_sid, error). sent_at is fixed at creation.
	Update(m *models.Message) error
	List(filter MessageFilter) ([]*models.Message, error)
	// ContentIDsSentSince returns the template IDs sent to one participant at
	// or after the given instant
	ContentIDsSentSince(participantID, since int64) ([]int64, error)
	// ContentIDsEverSent returns every template ID ever sent to one participant
	ContentIDsEverSent(participantID int64) ([]int64, error)
	CountByStatus(filter MessageFilter) (map[string]int, error)
	CountDistinctParticipants(filter MessageFilter) (int, error)
}

type messageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *sql.DB) MessageRepository {
	return &messageRepository{db: db}
}

const messageColumns = `id, participant_id, content_id, content, bucket, status, sent_at, delivered_at, twilio_sid, error`

func scanMessage(row interface{ Scan(...interface{}) error }) (*models.Message, error) {
	m := &models.Message{}
	err := row.Scan(
		&m.ID,
		&m.ParticipantID,
		&m.ContentID,
		&m.Content,
		&m.Bucket,
		&m.Status,
		&m.SentAt,
		&m.DeliveredAt,
		&m.TwilioSID,
		&m.Error,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Create persists a new send record and fills in the generated ID
func (r *messageRepository) Create(m *models.Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if m.ParticipantID <= 0 {
		return fmt.Errorf("message participant ID must be positive")
	}
	if m.Content == "" {
		return fmt.Errorf("message content cannot be empty")
	}
	if m.Status == "" {
		return fmt.Errorf("message status cannot be empty")
	}
	if m.SentAt == 0 {
		return fmt.Errorf("message sent timestamp is required")
	}

	result, err := r.db.Exec(`
		INSERT INTO messages (participant_id, content_id, content, bucket, status, sent_at, delivered_at, twilio_sid, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ParticipantID,
		m.ContentID,
		m.Content,
		m.Bucket,
		m.Status,
		m.SentAt,
		m.DeliveredAt,
		m.TwilioSID,
		m.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read message ID: %w", err)
	}
	m.ID = id

	return nil
}

// GetByID retrieves a message by ID
func (r *messageRepository) GetByID(id int64) (*models.Message, error) {
	if id <= 0 {
		return nil, fmt.Errorf("message ID must be positive")
	}

	row := r.db.QueryRow("SELECT "+messageColumns+" FROM messages WHERE id = ?", id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

// Update writes the reconciliation fields for an existing message
func (r *messageRepository) Update(m *models.Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if m.ID <= 0 {
		return fmt.Errorf("message ID must be positive")
	}

	result, err := r.db.Exec(
		"UPDATE messages SET status = ?, delivered_at = ?, twilio_sid = ?, error = ? WHERE id = ?",
		m.Status, m.DeliveredAt, m.TwilioSID, m.Error, m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("message %d not found", m.ID)
	}

	return nil
}

func (f MessageFilter) whereClause() (string, []interface{}) {
	query := " WHERE 1=1"
	args := []interface{}{}

	if f.ParticipantID != nil {
		query += " AND participant_id = ?"
		args = append(args, *f.ParticipantID)
	}
	if f.Status != "" {
		query += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.SentAfter != nil {
		query += " AND sent_at >= ?"
		args = append(args, *f.SentAfter)
	}
	if f.SentBefore != nil {
		query += " AND sent_at <= ?"
		args = append(args, *f.SentBefore)
	}

	return query, args
}

// List retrieves message history matching the filter, newest first
func (r *messageRepository) List(filter MessageFilter) ([]*models.Message, error) {
	where, args := filter.whereClause()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := "SELECT " + messageColumns + " FROM messages" + where + " ORDER BY sent_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// ContentIDsSentSince returns template IDs sent to the participant since the
// given Unix timestamp
func (r *messageRepository) ContentIDsSentSince(participantID, since int64) ([]int64, error) {
	if participantID <= 0 {
		return nil, fmt.Errorf("participant ID must be positive")
	}

	rows, err := r.db.Query(
		"SELECT content_id FROM messages WHERE participant_id = ? AND sent_at >= ? AND content_id IS NOT NULL",
		participantID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent content IDs: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

// ContentIDsEverSent returns every template ID ever sent to the participant
func (r *messageRepository) ContentIDsEverSent(participantID int64) ([]int64, error) {
	if participantID <= 0 {
		return nil, fmt.Errorf("participant ID must be positive")
	}

	rows, err := r.db.Query(
		"SELECT content_id FROM messages WHERE participant_id = ? AND content_id IS NOT NULL",
		participantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sent content IDs: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

func collectIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// CountByStatus returns message counts grouped by status
func (r *messageRepository) CountByStatus(filter MessageFilter) (map[string]int, error) {
	where, args := filter.whereClause()

	rows, err := r.db.Query("SELECT status, COUNT(id) FROM messages"+where+" GROUP BY status", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages by status: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

// CountDistinctParticipants returns how many distinct participants have messages
func (r *messageRepository) CountDistinctParticipants(filter MessageFilter) (int, error) {
	where, args := filter.whereClause()

	var count int
	err := r.db.QueryRow("SELECT COUNT(DISTINCT participant_id) FROM messages"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct participants: %w", err)
	}
	return count, nil
}
