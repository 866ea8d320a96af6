package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aibymlMelissa/aibyml-business/internal/application/port"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"github.com/aibymlMelissa/aibyml-business/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const requestColumns = `
	id, title, description, status, priority, category,
	customer_name, customer_email, customer_phone,
	classification_confidence, classification_notes,
	ai_classification_engine, ai_handling_engine,
	assigned_to, department,
	created_at, updated_at, registered_at, classified_at, fulfilled_at, closed_at`

// RequestRepository implements port.RequestRepository
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new service request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) *RequestRepository {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new service request
func (r *RequestRepository) Create(ctx context.Context, req *entity.ServiceRequest) error {
	query := `
		INSERT INTO service_requests (
			id, title, description, status, priority, category,
			customer_name, customer_email, customer_phone,
			assigned_to, department, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		req.ID,
		req.Title,
		req.Description,
		req.Status,
		req.Priority,
		nullCategory(req.Category),
		req.CustomerName,
		req.CustomerEmail,
		req.CustomerPhone,
		req.AssignedTo,
		req.Department,
		req.CreatedAt.UTC(),
		req.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create service request", zap.String("request_id", req.ID), zap.Error(err))
		return fmt.Errorf("%w: failed to create service request: %w", entity.ErrStore, err)
	}

	return nil
}

// GetByID retrieves a service request by ID, returning nil when absent
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entity.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests WHERE id = ?`

	req, err := scanRequest(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get service request", zap.String("request_id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to get service request: %w", entity.ErrStore, err)
	}

	return req, nil
}

// List returns requests matching filter, newest first
func (r *RequestRepository) List(ctx context.Context, filter entity.RequestFilter) ([]*entity.ServiceRequest, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.AssignedTo != "" {
		conditions = append(conditions, "assigned_to = ?")
		args = append(args, filter.AssignedTo)
	}
	if filter.UpdatedBefore != nil {
		conditions = append(conditions, "updated_at < ?")
		args = append(args, filter.UpdatedBefore.UTC())
	}

	query := `SELECT ` + requestColumns + ` FROM service_requests`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list service requests", zap.Error(err))
		return nil, fmt.Errorf("%w: failed to list service requests: %w", entity.ErrStore, err)
	}
	defer rows.Close()

	requests := make([]*entity.ServiceRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan service request: %w", entity.ErrStore, err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrStore, err)
	}

	return requests, nil
}

// Update applies a field patch. Status is never touched here.
func (r *RequestRepository) Update(ctx context.Context, id string, patch entity.UpdateServiceRequestInput, at time.Time) (*entity.ServiceRequest, error) {
	var (
		sets []string
		args []interface{}
	)
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *patch.Priority)
	}
	if patch.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *patch.Category)
	}
	if patch.AssignedTo != nil {
		sets = append(sets, "assigned_to = ?")
		args = append(args, *patch.AssignedTo)
	}
	if patch.Department != nil {
		sets = append(sets, "department = ?")
		args = append(args, *patch.Department)
	}
	if len(sets) == 0 {
		return nil, entity.ErrNoFields
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, at.UTC(), id)

	query := `UPDATE service_requests SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update service request", zap.String("request_id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to update service request: %w", entity.ErrStore, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

// ApplyClassification stores the AI classification outcome
func (r *RequestRepository) ApplyClassification(ctx context.Context, id string, patch entity.ClassificationPatch, at time.Time) error {
	query := `
		UPDATE service_requests
		SET category = ?, priority = ?, department = ?,
			classification_confidence = ?, classification_notes = ?,
			ai_classification_engine = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		patch.Category,
		patch.Priority,
		patch.Department,
		patch.Confidence,
		patch.Notes,
		patch.EngineName,
		at.UTC(),
		id,
	)
	if err != nil {
		r.logger.Error("Failed to apply classification", zap.String("request_id", id), zap.Error(err))
		return fmt.Errorf("%w: failed to apply classification: %w", entity.ErrStore, err)
	}

	return requireAffected(result, id)
}

// SetHandlingEngine records the engine that produced the handling recommendation
func (r *RequestRepository) SetHandlingEngine(ctx context.Context, id string, engineName string, at time.Time) error {
	query := `UPDATE service_requests SET ai_handling_engine = ?, updated_at = ? WHERE id = ?`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, engineName, at.UTC(), id)
	if err != nil {
		r.logger.Error("Failed to set handling engine", zap.String("request_id", id), zap.Error(err))
		return fmt.Errorf("%w: failed to set handling engine: %w", entity.ErrStore, err)
	}

	return requireAffected(result, id)
}

// UpdateStatus sets the status and stamps the milestone column once
func (r *RequestRepository) UpdateStatus(ctx context.Context, id string, status entity.Status, at time.Time) error {
	at = at.UTC()
	query := `UPDATE service_requests SET status = ?, updated_at = ?`
	args := []interface{}{status, at}

	if col := entity.MilestoneColumn(status); col != "" {
		query += fmt.Sprintf(", %s = COALESCE(%s, ?)", col, col)
		args = append(args, at)
	}
	query += ` WHERE id = ?`
	args = append(args, id)

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update request status",
			zap.String("request_id", id),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("%w: failed to update status: %w", entity.ErrStore, err)
	}

	return requireAffected(result, id)
}

// getExecutor returns the transaction from ctx or the pool
func (r *RequestRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*entity.ServiceRequest, error) {
	var (
		req                                               entity.ServiceRequest
		category                                          sql.NullString
		confidence                                        sql.NullFloat64
		registeredAt, classifiedAt, fulfilledAt, closedAt sql.NullTime
	)

	err := row.Scan(
		&req.ID,
		&req.Title,
		&req.Description,
		&req.Status,
		&req.Priority,
		&category,
		&req.CustomerName,
		&req.CustomerEmail,
		&req.CustomerPhone,
		&confidence,
		&req.ClassificationNotes,
		&req.AIClassificationEngine,
		&req.AIHandlingEngine,
		&req.AssignedTo,
		&req.Department,
		&req.CreatedAt,
		&req.UpdatedAt,
		&registeredAt,
		&classifiedAt,
		&fulfilledAt,
		&closedAt,
	)
	if err != nil {
		return nil, err
	}

	if category.Valid {
		c := entity.Category(category.String)
		req.Category = &c
	}
	req.ClassificationConfidence = floatPtr(confidence)
	req.RegisteredAt = timePtr(registeredAt)
	req.ClassifiedAt = timePtr(classifiedAt)
	req.FulfilledAt = timePtr(fulfilledAt)
	req.ClosedAt = timePtr(closedAt)

	return &req, nil
}

func nullCategory(c *entity.Category) interface{} {
	if c == nil {
		return nil
	}
	return string(*c)
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func requireAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", entity.ErrStore, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", entity.ErrNotFound, id)
	}
	return nil
}

// Verify interface compliance
var _ port.RequestRepository = (*RequestRepository)(nil)
