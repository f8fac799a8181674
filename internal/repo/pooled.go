package repo

import (
	"context"
	"database/sql"
	"strings"

	"hireline/internal/domain"
)

const pooledColumns = `p.id,p.candidate_id,p.original_application_id,p.original_job_order_id,p.pooled_from_status,COALESCE(p.pool_reason,''),COALESCE(p.notes,''),
p.pooled_by,p.pooled_at,p.disposition,p.disposition_changed_at,p.new_application_id,p.new_job_order_id,p.created_at,p.updated_at`

const pooledJoinedSelect = `SELECT ` + pooledColumns + `,COALESCE(c.full_name,''),COALESCE(j.title,'')
FROM pooled_candidates p
LEFT JOIN candidates c ON c.id=p.candidate_id
LEFT JOIN job_orders j ON j.id=p.original_job_order_id`

func scanPooled(s scanner, joined bool) (domain.PooledCandidate, error) {
	var (
		p           domain.PooledCandidate
		from        string
		disposition string
		changedAt   sql.NullString
		newApp      sql.NullString
		newJO       sql.NullString
	)
	dest := []any{&p.ID, &p.CandidateID, &p.OriginalApplicationID, &p.OriginalJobOrderID, &from, &p.PoolReason, &p.Notes,
		&p.PooledBy, &p.PooledAt, &disposition, &changedAt, &newApp, &newJO, &p.CreatedAt, &p.UpdatedAt}
	if joined {
		dest = append(dest, &p.CandidateName, &p.OriginalJobTitle)
	}
	err := s.Scan(dest...)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.PooledFromStatus = domain.PipelineStatus(from)
	p.Disposition = domain.Disposition(disposition)
	p.DispositionChangedAt = stringPtr(changedAt)
	p.NewApplicationID = stringPtr(newApp)
	p.NewJobOrderID = stringPtr(newJO)
	return p, nil
}

// InsertPooledCandidate writes a pool record. With ignoreConflict set an
// existing record for the same original application is kept and inserted
// reports false.
func (r Repo) InsertPooledCandidate(ctx context.Context, tx *sql.Tx, p domain.PooledCandidate, ignoreConflict bool) (bool, error) {
	q := `INSERT INTO pooled_candidates(id,candidate_id,original_application_id,original_job_order_id,pooled_from_status,pool_reason,notes,pooled_by,pooled_at,disposition,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`
	if ignoreConflict {
		q += ` ON CONFLICT(original_application_id) DO NOTHING`
	}
	disposition := p.Disposition
	if disposition == "" {
		disposition = domain.DispositionAvailable
	}
	res, err := r.on(tx).exec(ctx, q,
		p.ID, p.CandidateID, p.OriginalApplicationID, p.OriginalJobOrderID, string(p.PooledFromStatus), nullable(p.PoolReason),
		nullable(p.Notes), p.PooledBy, p.PooledAt, string(disposition), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetPooledCandidate reads a pool record. A locked read skips the joined
// display columns since outer joins cannot be row-locked.
func (r Repo) GetPooledCandidate(ctx context.Context, tx *sql.Tx, id string, lock bool) (domain.PooledCandidate, error) {
	if lock && tx != nil {
		return scanPooled(r.on(tx).queryRow(ctx, `SELECT `+pooledColumns+` FROM pooled_candidates p WHERE p.id=?`+r.Dialect.ForUpdate(), id), false)
	}
	return scanPooled(r.on(tx).queryRow(ctx, pooledJoinedSelect+` WHERE p.id=?`, id), true)
}

func (r Repo) GetPooledByApplication(ctx context.Context, tx *sql.Tx, applicationID string) (domain.PooledCandidate, error) {
	return scanPooled(r.on(tx).queryRow(ctx, pooledJoinedSelect+` WHERE p.original_application_id=?`, applicationID), true)
}

type PoolFilter struct {
	Disposition domain.Disposition
	JobOrderID  string
	CandidateID string
	Limit       int
}

func (r Repo) ListPooledCandidates(ctx context.Context, f PoolFilter) ([]domain.PooledCandidate, error) {
	var (
		clauses []string
		args    []any
	)
	if f.Disposition != "" {
		clauses = append(clauses, "p.disposition=?")
		args = append(args, string(f.Disposition))
	}
	if f.JobOrderID != "" {
		clauses = append(clauses, "p.original_job_order_id=?")
		args = append(args, f.JobOrderID)
	}
	if f.CandidateID != "" {
		clauses = append(clauses, "p.candidate_id=?")
		args = append(args, f.CandidateID)
	}
	q := pooledJoinedSelect
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " ORDER BY p.pooled_at DESC, p.id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.on(nil).query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PooledCandidate
	for rows.Next() {
		p, err := scanPooled(rows, true)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpdatePooledDisposition sets the disposition and, when notes is non-nil, the notes.
func (r Repo) UpdatePooledDisposition(ctx context.Context, tx *sql.Tx, id string, d domain.Disposition, notes *string, now string) error {
	fields := []string{"disposition=?", "disposition_changed_at=?", "updated_at=?"}
	args := []any{string(d), now, now}
	if notes != nil {
		fields = append(fields, "notes=?")
		args = append(args, nullable(*notes))
	}
	args = append(args, id)
	res, err := r.on(tx).exec(ctx, `UPDATE pooled_candidates SET `+strings.Join(fields, ",")+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdatePooledNotes(ctx context.Context, tx *sql.Tx, id, notes, now string) error {
	res, err := r.on(tx).exec(ctx, `UPDATE pooled_candidates SET notes=?, updated_at=? WHERE id=?`, nullable(notes), now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) MarkPooledActivated(ctx context.Context, tx *sql.Tx, id, newApplicationID, newJobOrderID, now string) error {
	res, err := r.on(tx).exec(ctx, `UPDATE pooled_candidates SET disposition=?, disposition_changed_at=?, new_application_id=?, new_job_order_id=?, updated_at=?
WHERE id=? AND disposition=?`,
		string(domain.DispositionActivated), now, newApplicationID, newJobOrderID, now, id, string(domain.DispositionAvailable))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PooledDispositions maps each existing id among ids to its disposition.
func (r Repo) PooledDispositions(ctx context.Context, tx *sql.Tx, ids []string) (map[string]domain.Disposition, error) {
	out := map[string]domain.Disposition{}
	if len(ids) == 0 {
		return out, nil
	}
	clause, args := r.inClause("id", ids)
	rows, err := r.on(tx).query(ctx, `SELECT id,disposition FROM pooled_candidates WHERE `+clause+r.Dialect.ForUpdate(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, d string
		if err := rows.Scan(&id, &d); err != nil {
			return nil, err
		}
		out[id] = domain.Disposition(d)
	}
	return out, rows.Err()
}

// BulkUpdatePooledDisposition updates every listed record that is not yet
// activated in one statement and returns the affected row count.
func (r Repo) BulkUpdatePooledDisposition(ctx context.Context, tx *sql.Tx, ids []string, d domain.Disposition, notes *string, now string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	fields := []string{"disposition=?", "disposition_changed_at=?", "updated_at=?"}
	args := []any{string(d), now, now}
	if notes != nil {
		fields = append(fields, "notes=?")
		args = append(args, nullable(*notes))
	}
	clause, inArgs := r.inClause("id", ids)
	args = append(args, inArgs...)
	args = append(args, string(domain.DispositionActivated))
	res, err := r.on(tx).exec(ctx, `UPDATE pooled_candidates SET `+strings.Join(fields, ",")+` WHERE `+clause+` AND disposition<>?`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountPooledByDisposition feeds the pool summary.
func (r Repo) CountPooledByDisposition(ctx context.Context) (map[domain.Disposition]int, error) {
	rows, err := r.on(nil).query(ctx, `SELECT disposition, COUNT(*) FROM pooled_candidates GROUP BY disposition`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[domain.Disposition]int{}
	for rows.Next() {
		var d string
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, err
		}
		out[domain.Disposition(d)] = n
	}
	return out, rows.Err()
}
