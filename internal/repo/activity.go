package repo

import (
	"context"
	"strings"

	"hireline/internal/domain"
)

func (r Repo) InsertActivity(ctx context.Context, a domain.Activity) error {
	_, err := r.on(nil).exec(ctx, `INSERT INTO activity_log(ts,activity_type,entity_type,entity_id,performed_by_name,details_json) VALUES (?,?,?,?,?,?)`,
		a.TS, a.ActivityType, a.EntityType, a.EntityID, a.PerformedByName, a.Details)
	return err
}

type ActivityFilter struct {
	EntityType string
	EntityID   string
	Type       string
	Limit      int
}

// ListActivity returns newest entries first.
func (r Repo) ListActivity(ctx context.Context, f ActivityFilter) ([]domain.Activity, error) {
	var (
		clauses []string
		args    []any
	)
	if f.EntityType != "" {
		clauses = append(clauses, "entity_type=?")
		args = append(args, f.EntityType)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Type != "" {
		clauses = append(clauses, "activity_type=?")
		args = append(args, f.Type)
	}
	q := `SELECT id,ts,activity_type,entity_type,entity_id,performed_by_name,details_json FROM activity_log`
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.on(nil).query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.TS, &a.ActivityType, &a.EntityType, &a.EntityID, &a.PerformedByName, &a.Details); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
