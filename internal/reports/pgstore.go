package reports

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PGStore keeps reports in the reports table.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const reportColumns = `id, user_id, title, description, photo_url, latitude, longitude, address,
	category, status, admin_notes, assigned_admin, status_updated_at, additional_comments,
	created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*Report, error) {
	var r Report
	var assigned sql.NullString
	if err := row.Scan(&r.ID, &r.UserID, &r.Title, &r.Description, &r.PhotoURL,
		&r.Location.Latitude, &r.Location.Longitude, &r.Location.Address,
		&r.Category, &r.Status, &r.AdminNotes, &assigned, &r.StatusUpdatedAt,
		&r.AdditionalComments, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if assigned.Valid {
		r.AssignedAdmin = &assigned.String
	}
	return &r, nil
}

func (s *PGStore) Create(ctx context.Context, r *Report) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = StatusSubmitted
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	if r.StatusUpdatedAt.IsZero() {
		r.StatusUpdatedAt = now
	}
	const q = `
		INSERT INTO reports
		(id, user_id, title, description, photo_url, latitude, longitude, address,
		 category, status, admin_notes, assigned_admin, status_updated_at, additional_comments,
		 created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`
	_, err := s.db.ExecContext(ctx, q,
		r.ID,
		r.UserID,
		r.Title,
		r.Description,
		r.PhotoURL,
		r.Location.Latitude,
		r.Location.Longitude,
		r.Location.Address,
		r.Category,
		r.Status,
		r.AdminNotes,
		r.AssignedAdmin,
		r.StatusUpdatedAt,
		r.AdditionalComments,
		r.CreatedAt,
		r.UpdatedAt,
	)
	return err
}

func (s *PGStore) Get(ctx context.Context, id string) (*Report, error) {
	const q = `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	return scanReport(s.db.QueryRowContext(ctx, q, id))
}

func (s *PGStore) List(ctx context.Context, f ListFilter) ([]Report, int64, error) {
	f = f.normalized()
	clauses := []string{"1=1"}
	args := []interface{}{}
	idx := 1
	if f.UserID != "" {
		clauses = append(clauses, "user_id = $"+itoa(idx))
		args = append(args, f.UserID)
		idx++
	}
	if f.Status != "" {
		clauses = append(clauses, "status = $"+itoa(idx))
		args = append(args, string(f.Status))
		idx++
	}
	if f.Category != "" {
		clauses = append(clauses, "category = $"+itoa(idx))
		args = append(args, string(f.Category))
		idx++
	}
	where := " FROM reports WHERE " + strings.Join(clauses, " AND ")

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*)"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dir := " ASC"
	if f.Desc {
		dir = " DESC"
	}
	query := "SELECT " + reportColumns + where +
		" ORDER BY " + sortFields[f.SortBy].column + dir + ", id" + dir +
		" LIMIT " + itoa(f.Limit) + " OFFSET " + itoa(f.Skip())
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	res := []Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return res, total, nil
}

func (s *PGStore) SetStatus(ctx context.Context, id string, ch StatusChange) (*Report, error) {
	const q = `
		UPDATE reports
		SET status = $2, admin_notes = COALESCE($3::text, admin_notes), assigned_admin = $4,
		    status_updated_at = $5, updated_at = $5
		WHERE id = $1
		RETURNING ` + reportColumns
	return scanReport(s.db.QueryRowContext(ctx, q, id, ch.Status, ch.AdminNotes, ch.AdminID, ch.At))
}

func (s *PGStore) Assign(ctx context.Context, id, adminID string, at time.Time) (*Report, error) {
	const q = `
		UPDATE reports
		SET assigned_admin = $2,
		    status = CASE WHEN status = $4 THEN $5 ELSE status END,
		    status_updated_at = $3, updated_at = $3
		WHERE id = $1
		RETURNING ` + reportColumns
	return scanReport(s.db.QueryRowContext(ctx, q, id, adminID, at, StatusSubmitted, StatusInProgress))
}

func (s *PGStore) Touch(ctx context.Context, id string, at time.Time) (*Report, error) {
	const q = `
		UPDATE reports SET status_updated_at = $2, updated_at = $2
		WHERE id = $1
		RETURNING ` + reportColumns
	return scanReport(s.db.QueryRowContext(ctx, q, id, at))
}

func (s *PGStore) Delete(ctx context.Context, id string) (*Report, error) {
	const q = `DELETE FROM reports WHERE id = $1 RETURNING ` + reportColumns
	return scanReport(s.db.QueryRowContext(ctx, q, id))
}

func (s *PGStore) Each(ctx context.Context, fn func(*Report) error) error {
	const q = `SELECT ` + reportColumns + ` FROM reports ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *PGStore) Stats(ctx context.Context, since time.Time, recent int) (*Stats, error) {
	st := &Stats{}
	var err error

	st.ByStatus, err = s.buckets(ctx, `SELECT status, COUNT(*) FROM reports GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, err
	}
	st.tally()

	st.ByCategory, err = s.buckets(ctx, `SELECT category, COUNT(*) AS n FROM reports GROUP BY category ORDER BY n DESC, category`)
	if err != nil {
		return nil, err
	}

	st.OverTime, err = s.buckets(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*)
		FROM reports WHERE created_at >= $1
		GROUP BY day ORDER BY day`, since)
	if err != nil {
		return nil, err
	}

	const q = `
		SELECT id, title, status, category, created_at, user_id
		FROM reports ORDER BY created_at DESC, id DESC LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, q, recent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	st.Recent = []RecentReport{}
	for rows.Next() {
		var rr RecentReport
		if err := rows.Scan(&rr.ID, &rr.Title, &rr.Status, &rr.Category, &rr.CreatedAt, &rr.UserID); err != nil {
			return nil, err
		}
		st.Recent = append(st.Recent, rr)
	}
	return st, rows.Err()
}

func (s *PGStore) buckets(ctx context.Context, q string, args ...interface{}) ([]Bucket, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Bucket{}
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.ID, &b.Count); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
