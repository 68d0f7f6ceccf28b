package repository

import (
	"database/sql"
	"fmt"

	"github.com/garyjia/smt-log-parser/internal/models"
	"go.uber.org/zap"
)

// DiagnosticRepository handles persisted parser diagnostics
type DiagnosticRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDiagnosticRepository creates a new diagnostic repository
func NewDiagnosticRepository(db *sql.DB, logger *zap.Logger) *DiagnosticRepository {
	return &DiagnosticRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a diagnostic record
func (r *DiagnosticRepository) Create(record *models.DiagnosticRecord) error {
	query := `
		INSERT INTO trace_diagnostics (run_id, line_no, opcode, line, message)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		record.RunID,
		record.LineNo,
		record.Opcode,
		record.Line,
		record.Message,
	)
	if err != nil {
		r.logger.Error("Failed to create diagnostic",
			zap.Int64("run_id", record.RunID),
			zap.Int("line_no", record.LineNo),
			zap.Error(err))
		return fmt.Errorf("failed to create diagnostic: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// GetByRunID retrieves the diagnostics of a run in line order
func (r *DiagnosticRepository) GetByRunID(runID int64) ([]*models.DiagnosticRecord, error) {
	query := `
		SELECT id, run_id, line_no, opcode, line, message, created_at
		FROM trace_diagnostics
		WHERE run_id = ?
		ORDER BY line_no ASC, id ASC
	`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		r.logger.Error("Failed to get diagnostics by run ID", zap.Int64("run_id", runID), zap.Error(err))
		return nil, fmt.Errorf("failed to get diagnostics: %w", err)
	}
	defer rows.Close()

	var records []*models.DiagnosticRecord
	for rows.Next() {
		var record models.DiagnosticRecord
		err := rows.Scan(
			&record.ID,
			&record.RunID,
			&record.LineNo,
			&record.Opcode,
			&record.Line,
			&record.Message,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic record: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}
