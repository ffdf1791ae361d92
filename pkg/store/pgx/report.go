package pgx

import (
	"context"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/meetpulse/backend/internal/util"
	"github.com/meetpulse/backend/pkg/logger"
	"github.com/meetpulse/backend/pkg/store"
)

// ErrReportNotFound is returned when no report row exists for the given id.
var ErrReportNotFound = errors.New("report not found")

const reportColumns = `public_id, self_name, self_email, status, collaborator_count, file_key, error_message, created_at, completed_at`

func scanReport(row pgxv5.Row) (*store.ReportRecord, error) {
	var rec store.ReportRecord
	err := row.Scan(
		&rec.ID,
		&rec.SelfName,
		&rec.SelfEmail,
		&rec.Status,
		&rec.CollaboratorCount,
		&rec.FileKey,
		&rec.ErrorMessage,
		&rec.CreatedAt,
		&rec.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// SaveReport inserts a new report row. The caller supplies the public id and
// initial status; timestamps are set by the database.
func (s *ReportDBStorage) SaveReport(ctx context.Context, rec *store.ReportRecord) error {
	logger.Debug("[Store][SaveReport] Inserting report", "report", rec.ID, "status", rec.Status)

	_, err := s.conn.Exec(ctx, `
		INSERT INTO reports (public_id, self_name, self_email, status, collaborator_count, file_key, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID,
		util.SanitizePostgresText(rec.SelfName),
		util.SanitizePostgresText(rec.SelfEmail),
		rec.Status,
		rec.CollaboratorCount,
		rec.FileKey,
		util.SanitizePostgresText(rec.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report %s: %w", rec.ID, err)
	}
	return nil
}

func (s *ReportDBStorage) GetReport(ctx context.Context, id string) (*store.ReportRecord, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE public_id = $1`,
		id,
	)
	return scanReport(row)
}

// ListReports returns report rows ordered newest first. A limit of 0 or less
// falls back to 50.
func (s *ReportDBStorage) ListReports(ctx context.Context, limit, offset int) ([]store.ReportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.conn.Query(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		ORDER BY created_at DESC, public_id DESC
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	records := make([]store.ReportRecord, 0, limit)
	for rows.Next() {
		rec, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *ReportDBStorage) MarkReportProcessing(ctx context.Context, id string) error {
	return s.updateStatus(ctx, id, `
		UPDATE reports
		SET status = $2
		WHERE public_id = $1`,
		id, store.StatusProcessing,
	)
}

func (s *ReportDBStorage) MarkReportCompleted(ctx context.Context, id string, collaboratorCount int, fileKey string) error {
	return s.updateStatus(ctx, id, `
		UPDATE reports
		SET status = $2, collaborator_count = $3, file_key = $4, error_message = '', completed_at = now()
		WHERE public_id = $1`,
		id, store.StatusCompleted, collaboratorCount, fileKey,
	)
}

func (s *ReportDBStorage) MarkReportFailed(ctx context.Context, id string, errorMessage string) error {
	return s.updateStatus(ctx, id, `
		UPDATE reports
		SET status = $2, error_message = $3, completed_at = now()
		WHERE public_id = $1`,
		id, store.StatusFailed, util.SanitizePostgresText(errorMessage),
	)
}

func (s *ReportDBStorage) updateStatus(ctx context.Context, id string, sql string, args ...any) error {
	tag, err := s.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update report %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReportNotFound
	}
	return nil
}

func (s *ReportDBStorage) DeleteReport(ctx context.Context, id string) error {
	logger.Debug("[Store][DeleteReport] Deleting report", "report", id)

	tag, err := s.conn.Exec(ctx, `DELETE FROM reports WHERE public_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReportNotFound
	}
	return nil
}
