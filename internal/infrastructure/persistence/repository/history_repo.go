package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aibymlMelissa/aibyml-business/internal/application/port"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"github.com/aibymlMelissa/aibyml-business/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.WorkflowHistory) error {
	query := `
		INSERT INTO workflow_history (
			request_id, from_status, to_status, changed_by,
			change_reason, ai_confidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if history.CreatedAt.IsZero() {
		history.CreatedAt = time.Now().UTC()
	}

	var from interface{}
	if history.FromStatus != nil {
		from = string(*history.FromStatus)
	}
	var confidence interface{}
	if history.AIConfidence != nil {
		confidence = *history.AIConfidence
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		history.RequestID,
		from,
		history.ToStatus,
		history.ChangedBy,
		history.ChangeReason,
		confidence,
		history.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.String("request_id", history.RequestID), zap.Error(err))
		return fmt.Errorf("%w: failed to create history: %w", entity.ErrStore, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// GetByRequestID retrieves all history records for a request, oldest first
func (r *HistoryRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.WorkflowHistory, error) {
	query := `
		SELECT id, request_id, from_status, to_status, changed_by,
			change_reason, ai_confidence, created_at
		FROM workflow_history
		WHERE request_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get history by request ID", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to get history: %w", entity.ErrStore, err)
	}
	defer rows.Close()

	records := make([]*entity.WorkflowHistory, 0)
	for rows.Next() {
		var (
			record     entity.WorkflowHistory
			from       sql.NullString
			confidence sql.NullFloat64
		)
		err := rows.Scan(
			&record.ID,
			&record.RequestID,
			&from,
			&record.ToStatus,
			&record.ChangedBy,
			&record.ChangeReason,
			&confidence,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan history record: %w", entity.ErrStore, err)
		}
		if from.Valid {
			s := entity.Status(from.String)
			record.FromStatus = &s
		}
		record.AIConfidence = floatPtr(confidence)
		records = append(records, &record)
	}

	return records, rows.Err()
}

func (r *HistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
