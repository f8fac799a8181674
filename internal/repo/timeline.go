package repo

import (
	"context"
	"database/sql"

	"hireline/internal/domain"
)

const timelineColumns = `id,application_id,candidate_id,from_status,to_status,changed_date,duration_days,COALESCE(notes,''),COALESCE(changed_by,'')`

func scanTimelineEntry(s scanner) (domain.TimelineEntry, error) {
	var (
		e        domain.TimelineEntry
		from     sql.NullString
		to       string
		duration sql.NullInt64
	)
	err := s.Scan(&e.ID, &e.ApplicationID, &e.CandidateID, &from, &to, &e.ChangedDate, &duration, &e.Notes, &e.ChangedBy)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	e.ToStatus = domain.PipelineStatus(to)
	if from.Valid {
		fs := domain.PipelineStatus(from.String)
		e.FromStatus = &fs
	}
	if duration.Valid {
		d := int(duration.Int64)
		e.DurationDays = &d
	}
	return e, nil
}

// LastTimelineEntry returns the most recent entry, newest changed_date first
// with ties broken by insertion order.
func (r Repo) LastTimelineEntry(ctx context.Context, tx *sql.Tx, applicationID string) (domain.TimelineEntry, error) {
	return scanTimelineEntry(r.on(tx).queryRow(ctx, `SELECT `+timelineColumns+` FROM candidate_timeline
WHERE application_id=? ORDER BY changed_date DESC, id DESC LIMIT 1`, applicationID))
}

// InsertTimelineEntry appends an entry and returns its id. Entries are never updated.
func (r Repo) InsertTimelineEntry(ctx context.Context, tx *sql.Tx, e domain.TimelineEntry) (int64, error) {
	var from any
	if e.FromStatus != nil {
		from = string(*e.FromStatus)
	}
	var id int64
	err := r.on(tx).queryRow(ctx, `INSERT INTO candidate_timeline(application_id,candidate_id,from_status,to_status,changed_date,duration_days,notes,changed_by)
VALUES (?,?,?,?,?,?,?,?) RETURNING id`,
		e.ApplicationID, e.CandidateID, from, string(e.ToStatus), e.ChangedDate, nullableIntPtr(e.DurationDays),
		nullable(e.Notes), nullable(e.ChangedBy)).Scan(&id)
	return id, err
}

// ListTimeline returns an application's entries in chronological order.
func (r Repo) ListTimeline(ctx context.Context, applicationID string) ([]domain.TimelineEntry, error) {
	rows, err := r.on(nil).query(ctx, `SELECT `+timelineColumns+` FROM candidate_timeline WHERE application_id=? ORDER BY changed_date ASC, id ASC`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TimelineEntry
	for rows.Next() {
		e, err := scanTimelineEntry(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
