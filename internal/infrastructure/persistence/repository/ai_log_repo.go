package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aibymlMelissa/aibyml-business/internal/application/port"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"github.com/aibymlMelissa/aibyml-business/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// AILogRepository implements port.AILogRepository
type AILogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAILogRepository creates a new AI processing log repository
func NewAILogRepository(db *sql.DB, logger *zap.Logger) *AILogRepository {
	return &AILogRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an AI processing log entry
func (r *AILogRepository) Create(ctx context.Context, log *entity.AIProcessingLog) error {
	query := `
		INSERT INTO ai_processing_logs (
			request_id, engine_name, engine_type, input_data, output_data,
			confidence_score, processing_time_ms, success, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	var confidence interface{}
	if log.ConfidenceScore != nil {
		confidence = *log.ConfidenceScore
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		log.RequestID,
		log.EngineName,
		log.EngineType,
		rawOrNull(log.InputData),
		rawOrNull(log.OutputData),
		confidence,
		log.ProcessingTimeMs,
		log.Success,
		log.ErrorMessage,
		log.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create AI processing log",
			zap.String("request_id", log.RequestID),
			zap.String("engine", log.EngineName),
			zap.Error(err))
		return fmt.Errorf("%w: failed to create ai processing log: %w", entity.ErrStore, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	log.ID = id
	return nil
}

// GetByRequestID returns the processing history of a request, oldest first
func (r *AILogRepository) GetByRequestID(ctx context.Context, requestID string) ([]*entity.AIProcessingLog, error) {
	query := `
		SELECT id, request_id, engine_name, engine_type, input_data, output_data,
			confidence_score, processing_time_ms, success, error_message, created_at
		FROM ai_processing_logs
		WHERE request_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get AI processing logs", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("%w: failed to get ai processing logs: %w", entity.ErrStore, err)
	}
	defer rows.Close()

	logs := make([]*entity.AIProcessingLog, 0)
	for rows.Next() {
		var (
			entry      entity.AIProcessingLog
			input, out string
			confidence sql.NullFloat64
		)
		err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.EngineName,
			&entry.EngineType,
			&input,
			&out,
			&confidence,
			&entry.ProcessingTimeMs,
			&entry.Success,
			&entry.ErrorMessage,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan ai processing log: %w", entity.ErrStore, err)
		}
		entry.InputData = json.RawMessage(input)
		entry.OutputData = json.RawMessage(out)
		entry.ConfidenceScore = floatPtr(confidence)
		logs = append(logs, &entry)
	}

	return logs, rows.Err()
}

func (r *AILogRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

func rawOrNull(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

// Verify interface compliance
var _ port.AILogRepository = (*AILogRepository)(nil)
