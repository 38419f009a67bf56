package db

import (
	"database/sql"
	"fmt"
	"time"

	"study-sms-server/internal/models"
)

// ContentFilter narrows template List results
type ContentFilter struct {
	Bucket string
	Active *bool
	Limit  int
	Offset int
}

// ContentRepository defines the interface for message template data access
type ContentRepository interface {
	Create(mc *models.MessageContent) error
	GetByID(id int64) (*models.MessageContent, error)
	Update(mc *models.MessageContent) error
	Delete(id int64) error
	List(filter ContentFilter) ([]*models.MessageContent, error)
	ListActiveByBucket(bucket string) ([]*models.MessageContent, error)
}

type contentRepository struct {
	db *sql.DB
}

// NewContentRepository creates a new ContentRepository
func NewContentRepository(db *sql.DB) ContentRepository {
	return &contentRepository{db: db}
}

// Create creates a new template row and fills in the generated ID
func (r *contentRepository) Create(mc *models.MessageContent) error {
	if mc == nil {
		return fmt.Errorf("message content cannot be nil")
	}
	if mc.Content == "" {
		return fmt.Errorf("content cannot be empty")
	}
	if mc.Bucket == "" {
		return fmt.Errorf("bucket cannot be empty")
	}

	now := time.Now().Unix()
	mc.CreatedAt = now
	mc.UpdatedAt = now

	result, err := r.db.Exec(
		"INSERT INTO message_contents (content, bucket, active, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		mc.Content, mc.Bucket, mc.Active, mc.CreatedAt, mc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message content: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read message content ID: %w", err)
	}
	mc.ID = id

	return nil
}

// GetByID retrieves a template by ID
func (r *contentRepository) GetByID(id int64) (*models.MessageContent, error) {
	if id <= 0 {
		return nil, fmt.Errorf("message content ID must be positive")
	}

	mc := &models.MessageContent{}
	err := r.db.QueryRow(
		"SELECT id, content, bucket, active, created_at, updated_at FROM message_contents WHERE id = ?", id,
	).Scan(&mc.ID, &mc.Content, &mc.Bucket, &mc.Active, &mc.CreatedAt, &mc.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message content: %w", err)
	}

	return mc, nil
}

// Update writes all mutable template fields
func (r *contentRepository) Update(mc *models.MessageContent) error {
	if mc == nil {
		return fmt.Errorf("message content cannot be nil")
	}
	if mc.ID <= 0 {
		return fmt.Errorf("message content ID must be positive")
	}

	mc.UpdatedAt = time.Now().Unix()

	result, err := r.db.Exec(
		"UPDATE message_contents SET content = ?, bucket = ?, active = ?, updated_at = ? WHERE id = ?",
		mc.Content, mc.Bucket, mc.Active, mc.UpdatedAt, mc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update message content: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("message content %d not found", mc.ID)
	}

	return nil
}

// Delete removes a template. Message history keeps its frozen copies.
func (r *contentRepository) Delete(id int64) error {
	if id <= 0 {
		return fmt.Errorf("message content ID must be positive")
	}

	_, err := r.db.Exec("DELETE FROM message_contents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete message content: %w", err)
	}
	return nil
}

// List retrieves templates matching the filter
func (r *contentRepository) List(filter ContentFilter) ([]*models.MessageContent, error) {
	query := "SELECT id, content, bucket, active, created_at, updated_at FROM message_contents WHERE 1=1"
	args := []interface{}{}

	if filter.Bucket != "" {
		query += " AND bucket = ?"
		args = append(args, filter.Bucket)
	}
	if filter.Active != nil {
		query += " AND active = ?"
		args = append(args, *filter.Active)
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
		return nil, fmt.Errorf("failed to list message contents: %w", err)
	}
	defer rows.Close()

	var contents []*models.MessageContent
	for rows.Next() {
		mc := &models.MessageContent{}
		if err := rows.Scan(&mc.ID, &mc.Content, &mc.Bucket, &mc.Active, &mc.CreatedAt, &mc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message content: %w", err)
		}
		contents = append(contents, mc)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return contents, nil
}

// ListActiveByBucket retrieves the active template pool for one bucket
func (r *contentRepository) ListActiveByBucket(bucket string) ([]*models.MessageContent, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket cannot be empty")
	}

	active := true
	return r.List(ContentFilter{Bucket: bucket, Active: &active, Limit: 1000})
}
