package pgx

import (
	"context"
	"fmt"
	"time"

	"github.com/meetpulse/backend/internal/util"
	"github.com/meetpulse/backend/pkg/logger"
	"github.com/meetpulse/backend/pkg/store"
)

// SaveReportCollaborators bulk-inserts the flattened collaborator rows for one
// report inside a single transaction. Existing rows for the report are
// replaced, so re-running a job does not duplicate them.
func (s *ReportDBStorage) SaveReportCollaborators(ctx context.Context, reportID string, rows []store.CollaboratorRecord) error {
	logger.Debug("[Store][SaveReportCollaborators] Bulk inserting collaborators", "report", reportID, "rows", len(rows))

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM report_collaborators WHERE report_id = $1`, reportID); err != nil {
		return fmt.Errorf("failed to clear collaborators for report %s: %w", reportID, err)
	}

	err = store.ChunkRange(len(rows), 500, func(start, end int) error {
		count := end - start
		ranks := make([]int32, 0, count)
		personIDs := make([]string, 0, count)
		names := make([]string, 0, count)
		emails := make([]string, 0, count)
		scores := make([]float64, 0, count)
		dormancies := make([]string, 0, count)
		days := make([]int32, 0, count)
		lastContacts := make([]time.Time, 0, count)
		for _, row := range rows[start:end] {
			ranks = append(ranks, int32(row.Rank))
			personIDs = append(personIDs, row.PersonID)
			names = append(names, util.SanitizePostgresText(row.Name))
			emails = append(emails, util.SanitizePostgresText(row.Email))
			scores = append(scores, row.Score)
			dormancies = append(dormancies, row.Dormancy)
			days = append(days, int32(row.DaysSinceLastContact))
			lastContacts = append(lastContacts, row.LastContact)
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO report_collaborators (report_id, rank, person_id, name, email, score, dormancy, days_since_last_contact, last_contact)
			SELECT $1, unnest($2::int[]), unnest($3::text[]), unnest($4::text[]), unnest($5::text[]), unnest($6::float8[]), unnest($7::text[]), unnest($8::int[]), unnest($9::timestamptz[])`,
			reportID, ranks, personIDs, names, emails, scores, dormancies, days, lastContacts,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert collaborators for report %s: %w", reportID, err)
	}

	return tx.Commit(ctx)
}

func (s *ReportDBStorage) ListReportCollaborators(ctx context.Context, reportID string) ([]store.CollaboratorRecord, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT report_id, rank, person_id, name, email, score, dormancy, days_since_last_contact, last_contact
		FROM report_collaborators
		WHERE report_id = $1
		ORDER BY rank`,
		reportID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list collaborators for report %s: %w", reportID, err)
	}
	defer rows.Close()

	records := make([]store.CollaboratorRecord, 0)
	for rows.Next() {
		var rec store.CollaboratorRecord
		err := rows.Scan(
			&rec.ReportID,
			&rec.Rank,
			&rec.PersonID,
			&rec.Name,
			&rec.Email,
			&rec.Score,
			&rec.Dormancy,
			&rec.DaysSinceLastContact,
			&rec.LastContact,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
