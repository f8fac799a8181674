package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"hireline/internal/db"
	"hireline/internal/domain"
)

type Repo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

var ErrNotFound = errors.New("not found")

type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// on returns tx when set, else the pool. Every query is rebound for the dialect.
func (r Repo) on(tx *sql.Tx) dialectRunner {
	if tx != nil {
		return dialectRunner{run: tx, dialect: r.Dialect}
	}
	return dialectRunner{run: r.DB, dialect: r.Dialect}
}

type dialectRunner struct {
	run     runner
	dialect db.Dialect
}

func (d dialectRunner) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.run.ExecContext(ctx, d.dialect.Rebind(query), args...)
}

func (d dialectRunner) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.run.QueryContext(ctx, d.dialect.Rebind(query), args...)
}

func (d dialectRunner) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.run.QueryRowContext(ctx, d.dialect.Rebind(query), args...)
}

type scanner interface {
	Scan(dest ...any) error
}

// inClause renders "column IN (...)" for a string list. Postgres binds the
// list as one array parameter.
func (r Repo) inClause(column string, values []string) (string, []any) {
	if r.Dialect == db.Postgres {
		return column + " = ANY(?)", []any{pq.Array(values)}
	}
	marks := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		marks[i] = "?"
		args[i] = v
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(marks, ",")), args
}

const jobOrderColumns = `id,jo_number,title,COALESCE(description,''),COALESCE(department,''),COALESCE(level,''),quantity,hired_count,status,created_at,updated_at`

func scanJobOrder(s scanner) (domain.JobOrder, error) {
	var jo domain.JobOrder
	var status string
	err := s.Scan(&jo.ID, &jo.Number, &jo.Title, &jo.Description, &jo.Department, &jo.Level,
		&jo.Quantity, &jo.HiredCount, &status, &jo.CreatedAt, &jo.UpdatedAt)
	if err == sql.ErrNoRows {
		return jo, ErrNotFound
	}
	jo.Status = domain.JobOrderStatus(status)
	return jo, err
}

func (r Repo) InsertJobOrder(ctx context.Context, tx *sql.Tx, jo domain.JobOrder) error {
	_, err := r.on(tx).exec(ctx, `INSERT INTO job_orders(id,jo_number,title,description,department,level,quantity,hired_count,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		jo.ID, jo.Number, jo.Title, nullable(jo.Description), nullable(jo.Department), nullable(jo.Level),
		jo.Quantity, jo.HiredCount, string(jo.Status), jo.CreatedAt, jo.UpdatedAt)
	return err
}

func (r Repo) GetJobOrder(ctx context.Context, tx *sql.Tx, id string) (domain.JobOrder, error) {
	return scanJobOrder(r.on(tx).queryRow(ctx, `SELECT `+jobOrderColumns+` FROM job_orders WHERE id=?`, id))
}

func (r Repo) ListJobOrders(ctx context.Context, status string) ([]domain.JobOrder, error) {
	var (
		clauses []string
		args    []any
	)
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.on(nil).query(ctx, `SELECT `+jobOrderColumns+` FROM job_orders `+where+` ORDER BY created_at DESC, jo_number DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.JobOrder
	for rows.Next() {
		jo, err := scanJobOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, jo)
	}
	return res, rows.Err()
}

// NextJobOrderNumber returns the next sequential JO-NNNN number.
func (r Repo) NextJobOrderNumber(ctx context.Context, tx *sql.Tx) (string, error) {
	var n int
	if err := r.on(tx).queryRow(ctx, `SELECT COUNT(*) FROM job_orders`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("JO-%04d", n+1), nil
}

func (r Repo) UpdateJobOrderStatus(ctx context.Context, tx *sql.Tx, id string, status domain.JobOrderStatus, now string) error {
	res, err := r.on(tx).exec(ctx, `UPDATE job_orders SET status=?, updated_at=? WHERE id=?`, string(status), now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementHiredCount is the only writer of hired_count.
func (r Repo) IncrementHiredCount(ctx context.Context, tx *sql.Tx, id, now string) error {
	res, err := r.on(tx).exec(ctx, `UPDATE job_orders SET hired_count=hired_count+1, updated_at=? WHERE id=?`, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertCandidate(ctx context.Context, tx *sql.Tx, c domain.Candidate) error {
	_, err := r.on(tx).exec(ctx, `INSERT INTO candidates(id,full_name,email,phone,source,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		c.ID, c.FullName, nullable(c.Email), nullable(c.Phone), nullable(c.Source), c.CreatedAt, c.UpdatedAt)
	return err
}

func (r Repo) GetCandidate(ctx context.Context, tx *sql.Tx, id string) (domain.Candidate, error) {
	var c domain.Candidate
	err := r.on(tx).queryRow(ctx, `SELECT id,full_name,COALESCE(email,''),COALESCE(phone,''),COALESCE(source,''),created_at,updated_at FROM candidates WHERE id=?`, id).
		Scan(&c.ID, &c.FullName, &c.Email, &c.Phone, &c.Source, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func nullableFloatPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
