package db

import (
	"database/sql"
	"fmt"
	"time"

	"study-sms-server/internal/models"
)

// ParticipantFilter narrows List results
type ParticipantFilter struct {
	Active     *bool
	StudyGroup string
	Limit      int
	Offset     int
}

// ParticipantRepository defines the interface for participant data access
type ParticipantRepository interface {
	Create(p *models.Participant) error
	GetByID(id int64) (*models.Participant, error)
	GetByPID(pid string) (*models.Participant, error)
	Update(p *models.Participant) error
	Delete(id int64) error
	List(filter ParticipantFilter) ([]*models.Participant, error)
	// ListSchedulable returns active participants that carry a start date and
	// both window times; everyone else is structurally ineligible for runs
	ListSchedulable() ([]*models.Participant, error)
	SetFitbitConnected(id int64, connected bool) error
	WindowTimes() (map[string]int, map[string]int, error)
}

type participantRepository struct {
	db *sql.DB
}

// NewParticipantRepository creates a new ParticipantRepository
func NewParticipantRepository(db *sql.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

const participantColumns = `id, pid, friendly_name, phone_number, study_group, start_date,
	sms_window_start, sms_window_end, timezone_offset, active, fitbit_connected, created_at, updated_at`

func scanParticipant(row interface{ Scan(...interface{}) error }) (*models.Participant, error) {
	p := &models.Participant{}
	err := row.Scan(
		&p.ID,
		&p.PID,
		&p.FriendlyName,
		&p.PhoneNumber,
		&p.StudyGroup,
		&p.StartDate,
		&p.SMSWindowStart,
		&p.SMSWindowEnd,
		&p.TimezoneOffset,
		&p.Active,
		&p.FitbitConnected,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create creates a new participant row and fills in the generated ID
func (r *participantRepository) Create(p *models.Participant) error {
	if p == nil {
		return fmt.Errorf("participant cannot be nil")
	}
	if p.PID == "" {
		return fmt.Errorf("participant PID cannot be empty")
	}

	now := time.Now().Unix()
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	query := `
		INSERT INTO participants (pid, friendly_name, phone_number, study_group, start_date,
			sms_window_start, sms_window_end, timezone_offset, active, fitbit_connected, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		p.PID,
		p.FriendlyName,
		p.PhoneNumber,
		p.StudyGroup,
		p.StartDate,
		p.SMSWindowStart,
		p.SMSWindowEnd,
		p.TimezoneOffset,
		p.Active,
		p.FitbitConnected,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create participant: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read participant ID: %w", err)
	}
	p.ID = id

	return nil
}

// GetByID retrieves a participant by internal ID
func (r *participantRepository) GetByID(id int64) (*models.Participant, error) {
	if id <= 0 {
		return nil, fmt.Errorf("participant ID must be positive")
	}

	row := r.db.QueryRow("SELECT "+participantColumns+" FROM participants WHERE id = ?", id)
	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant by ID: %w", err)
	}
	return p, nil
}

// GetByPID retrieves a participant by external participant ID
func (r *participantRepository) GetByPID(pid string) (*models.Participant, error) {
	if pid == "" {
		return nil, fmt.Errorf("PID cannot be empty")
	}

	row := r.db.QueryRow("SELECT "+participantColumns+" FROM participants WHERE pid = ?", pid)
	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant by PID: %w", err)
	}
	return p, nil
}

// Update writes all mutable participant fields
func (r *participantRepository) Update(p *models.Participant) error {
	if p == nil {
		return fmt.Errorf("participant cannot be nil")
	}
	if p.ID <= 0 {
		return fmt.Errorf("participant ID must be positive")
	}

	p.UpdatedAt = time.Now().Unix()

	query := `
		UPDATE participants
		SET friendly_name = ?, phone_number = ?, study_group = ?, start_date = ?,
			sms_window_start = ?, sms_window_end = ?, timezone_offset = ?, active = ?,
			fitbit_connected = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		p.FriendlyName,
		p.PhoneNumber,
		p.StudyGroup,
		p.StartDate,
		p.SMSWindowStart,
		p.SMSWindowEnd,
		p.TimezoneOffset,
		p.Active,
		p.FitbitConnected,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update participant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("participant %d not found", p.ID)
	}

	return nil
}

// Delete removes a participant; messages and fitbit tokens cascade
func (r *participantRepository) Delete(id int64) error {
	if id <= 0 {
		return fmt.Errorf("participant ID must be positive")
	}

	_, err := r.db.Exec("DELETE FROM participants WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	return nil
}

// List retrieves participants matching the filter, newest enrollment first
func (r *participantRepository) List(filter ParticipantFilter) ([]*models.Participant, error) {
	query := "SELECT " + participantColumns + " FROM participants WHERE 1=1"
	args := []interface{}{}

	if filter.Active != nil {
		query += " AND active = ?"
		args = append(args, *filter.Active)
	}
	if filter.StudyGroup != "" {
		query += " AND study_group = ?"
		args = append(args, filter.StudyGroup)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query += " ORDER BY id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return participants, nil
}

// ListSchedulable retrieves all participants a scheduled run should consider
func (r *participantRepository) ListSchedulable() ([]*models.Participant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM participants
		WHERE active = 1
			AND start_date IS NOT NULL
			AND sms_window_start IS NOT NULL
			AND sms_window_end IS NOT NULL
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedulable participants: %w", err)
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return participants, nil
}

// SetFitbitConnected flips the fitbit connection flag
func (r *participantRepository) SetFitbitConnected(id int64, connected bool) error {
	if id <= 0 {
		return fmt.Errorf("participant ID must be positive")
	}

	_, err := r.db.Exec(
		"UPDATE participants SET fitbit_connected = ?, updated_at = ? WHERE id = ?",
		connected, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to set fitbit connection: %w", err)
	}
	return nil
}

// WindowTimes returns counts of distinct configured window start and end times
func (r *participantRepository) WindowTimes() (map[string]int, map[string]int, error) {
	starts := map[string]int{}
	ends := map[string]int{}

	rows, err := r.db.Query(`
		SELECT sms_window_start, COUNT(id) FROM participants
		WHERE sms_window_start IS NOT NULL GROUP BY sms_window_start
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query window start times: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t string
		var count int
		if err := rows.Scan(&t, &count); err != nil {
			return nil, nil, err
		}
		starts[t] = count
	}
	if err = rows.Err(); err != nil {
		return nil, nil, err
	}

	endRows, err := r.db.Query(`
		SELECT sms_window_end, COUNT(id) FROM participants
		WHERE sms_window_end IS NOT NULL GROUP BY sms_window_end
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query window end times: %w", err)
	}
	defer endRows.Close()

	for endRows.Next() {
		var t string
		var count int
		if err := endRows.Scan(&t, &count); err != nil {
			return nil, nil, err
		}
		ends[t] = count
	}
	if err = endRows.Err(); err != nil {
		return nil, nil, err
	}

	return starts, ends, nil
}
