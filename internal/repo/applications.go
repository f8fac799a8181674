package repo

import (
	"context"
	"database/sql"
	"strings"

	"hireline/internal/domain"
)

const applicationColumns = `id,candidate_id,job_order_id,pipeline_status,match_score,COALESCE(employment_type,''),COALESCE(remarks,''),applied_date,status_changed_date,created_at,updated_at`

func scanApplication(s scanner) (domain.Application, error) {
	var (
		a       domain.Application
		status  string
		score   sql.NullFloat64
		applied sql.NullString
		changed sql.NullString
	)
	err := s.Scan(&a.ID, &a.CandidateID, &a.JobOrderID, &status, &score, &a.EmploymentType, &a.Remarks,
		&applied, &changed, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	a.PipelineStatus = domain.PipelineStatus(status)
	if score.Valid {
		v := score.Float64
		a.MatchScore = &v
	}
	a.AppliedDate = stringPtr(applied)
	a.StatusChangedDate = stringPtr(changed)
	return a, nil
}

func (r Repo) InsertApplication(ctx context.Context, tx *sql.Tx, a domain.Application) error {
	_, err := r.on(tx).exec(ctx, `INSERT INTO candidate_job_applications(id,candidate_id,job_order_id,pipeline_status,match_score,employment_type,remarks,applied_date,status_changed_date,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.CandidateID, a.JobOrderID, string(a.PipelineStatus), nullableFloatPtr(a.MatchScore), nullable(a.EmploymentType),
		nullable(a.Remarks), nullableStringPtr(a.AppliedDate), nullableStringPtr(a.StatusChangedDate), a.CreatedAt, a.UpdatedAt)
	return err
}

// GetApplication reads one application. With lock set inside a transaction
// the row stays locked until commit or rollback.
func (r Repo) GetApplication(ctx context.Context, tx *sql.Tx, id string, lock bool) (domain.Application, error) {
	q := `SELECT ` + applicationColumns + ` FROM candidate_job_applications WHERE id=?`
	if lock && tx != nil {
		q += r.Dialect.ForUpdate()
	}
	return scanApplication(r.on(tx).queryRow(ctx, q, id))
}

type ApplicationFilter struct {
	JobOrderID  string
	CandidateID string
	Status      domain.PipelineStatus
}

func (r Repo) ListApplications(ctx context.Context, f ApplicationFilter) ([]domain.Application, error) {
	var (
		clauses []string
		args    []any
	)
	if f.JobOrderID != "" {
		clauses = append(clauses, "job_order_id=?")
		args = append(args, f.JobOrderID)
	}
	if f.CandidateID != "" {
		clauses = append(clauses, "candidate_id=?")
		args = append(args, f.CandidateID)
	}
	if f.Status != "" {
		clauses = append(clauses, "pipeline_status=?")
		args = append(args, string(f.Status))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.on(nil).query(ctx, `SELECT `+applicationColumns+` FROM candidate_job_applications `+where+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// PoolableApplicationIDs lists the applications of a job order still moving
// through the funnel.
func (r Repo) PoolableApplicationIDs(ctx context.Context, jobOrderID string) ([]string, error) {
	rows, err := r.on(nil).query(ctx, `SELECT id,pipeline_status FROM candidate_job_applications WHERE job_order_id=? ORDER BY created_at ASC, id ASC`, jobOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, err
		}
		if domain.PipelineStatus(status).IsActive() {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

func (r Repo) UpdateApplicationStatus(ctx context.Context, tx *sql.Tx, id string, status domain.PipelineStatus, now string) error {
	res, err := r.on(tx).exec(ctx, `UPDATE candidate_job_applications SET pipeline_status=?, status_changed_date=?, updated_at=? WHERE id=?`,
		string(status), now, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertApplication writes the (candidate, job order) pair, reusing an
// existing row for that pair. It returns the id of the stored row.
func (r Repo) UpsertApplication(ctx context.Context, tx *sql.Tx, a domain.Application) (string, error) {
	var id string
	err := r.on(tx).queryRow(ctx, `INSERT INTO candidate_job_applications(id,candidate_id,job_order_id,pipeline_status,match_score,employment_type,remarks,applied_date,status_changed_date,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(candidate_id, job_order_id) DO UPDATE SET
  pipeline_status=excluded.pipeline_status,
  match_score=excluded.match_score,
  employment_type=excluded.employment_type,
  remarks=excluded.remarks,
  status_changed_date=excluded.status_changed_date,
  updated_at=excluded.updated_at
RETURNING id`,
		a.ID, a.CandidateID, a.JobOrderID, string(a.PipelineStatus), nullableFloatPtr(a.MatchScore), nullable(a.EmploymentType),
		nullable(a.Remarks), nullableStringPtr(a.AppliedDate), nullableStringPtr(a.StatusChangedDate), a.CreatedAt, a.UpdatedAt).Scan(&id)
	return id, err
}

// ActiveApplicationFor returns the candidate's non-pooled application
// against a job order, or ErrNotFound.
func (r Repo) ActiveApplicationFor(ctx context.Context, tx *sql.Tx, candidateID, jobOrderID string) (domain.Application, error) {
	return scanApplication(r.on(tx).queryRow(ctx, `SELECT `+applicationColumns+` FROM candidate_job_applications
WHERE candidate_id=? AND job_order_id=? AND pipeline_status<>? ORDER BY created_at DESC LIMIT 1`,
		candidateID, jobOrderID, string(domain.StatusPooled)))
}

// FindApplication returns the application for a (candidate, job order) pair in any status.
func (r Repo) FindApplication(ctx context.Context, tx *sql.Tx, candidateID, jobOrderID string) (domain.Application, error) {
	return scanApplication(r.on(tx).queryRow(ctx, `SELECT `+applicationColumns+` FROM candidate_job_applications
WHERE candidate_id=? AND job_order_id=? ORDER BY created_at DESC LIMIT 1`, candidateID, jobOrderID))
}
