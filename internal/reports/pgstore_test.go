package reports

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reportCols = []string{
	"id", "user_id", "title", "description", "photo_url", "latitude", "longitude", "address",
	"category", "status", "admin_notes", "assigned_admin", "status_updated_at", "additional_comments",
	"created_at", "updated_at",
}

func reportRow(rows *sqlmock.Rows, id, owner string, status Status, assigned interface{}, at time.Time) *sqlmock.Rows {
	return rows.AddRow(id, owner, "Leaking pipe", "Water everywhere", "/uploads/p.png", 18.5, 73.8, "Kothrud",
		"Water Supply", string(status), "", assigned, at, "", at, at)
}

func TestPGStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectExec("INSERT INTO reports").
		WithArgs(sqlmock.AnyArg(), "u1", "Leaking pipe", "Water everywhere", "/uploads/p.png",
			18.5, 73.8, "Kothrud", sqlmock.AnyArg(), sqlmock.AnyArg(), "", nil,
			sqlmock.AnyArg(), "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := &Report{
		UserID:      "u1",
		Title:       "Leaking pipe",
		Description: "Water everywhere",
		PhotoURL:    "/uploads/p.png",
		Location:    Location{Latitude: 18.5, Longitude: 73.8, Address: "Kothrud"},
		Category:    CategoryWaterSupply,
	}
	require.NoError(t, store.Create(context.Background(), r))
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, StatusSubmitted, r.Status)
	assert.False(t, r.CreatedAt.IsZero())
	assert.Equal(t, r.CreatedAt, r.StatusUpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPGStore(db)
	now := time.Now().UTC()

	t.Run("Found", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM reports WHERE id = $1")).
			WithArgs("r1").
			WillReturnRows(reportRow(sqlmock.NewRows(reportCols), "r1", "u1", StatusInProgress, "a1", now))

		r, err := store.Get(context.Background(), "r1")
		require.NoError(t, err)
		assert.Equal(t, StatusInProgress, r.Status)
		assert.Equal(t, CategoryWaterSupply, r.Category)
		require.NotNil(t, r.AssignedAdmin)
		assert.Equal(t, "a1", *r.AssignedAdmin)
	})

	t.Run("Unassigned", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM reports WHERE id = $1")).
			WithArgs("r2").
			WillReturnRows(reportRow(sqlmock.NewRows(reportCols), "r2", "u1", StatusSubmitted, nil, now))

		r, err := store.Get(context.Background(), "r2")
		require.NoError(t, err)
		assert.Nil(t, r.AssignedAdmin)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("FROM reports WHERE id = $1")).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := store.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPGStore(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reports WHERE 1=1 AND user_id = $1 AND status = $2")).
		WithArgs("u1", "Submitted").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY title ASC, id ASC LIMIT 5 OFFSET 5")).
		WithArgs("u1", "Submitted").
		WillReturnRows(reportRow(sqlmock.NewRows(reportCols), "r6", "u1", StatusSubmitted, nil, now))

	rs, total, err := store.List(context.Background(), ListFilter{
		UserID: "u1",
		Status: StatusSubmitted,
		SortBy: "title",
		Page:   2,
		Limit:  5,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	require.Len(t, rs, 1)
	assert.Equal(t, "r6", rs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_ListRejectsUnknownSort(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reports WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(reportCols))

	rs, total, err := store.List(context.Background(), ListFilter{SortBy: "1; DROP TABLE reports", Desc: true})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, rs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_SetStatusKeepsNotes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPGStore(db)
	at := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("admin_notes = COALESCE($3::text, admin_notes)")).
		WithArgs("r1", sqlmock.AnyArg(), nil, "a1", at).
		WillReturnRows(reportRow(sqlmock.NewRows(reportCols), "r1", "u1", StatusResolved, "a1", at))

	r, err := store.SetStatus(context.Background(), "r1", StatusChange{Status: StatusResolved, AdminID: "a1", At: at})
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, r.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_AssignAndDeleteMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPGStore(db)
	at := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("CASE WHEN status = $4 THEN $5 ELSE status END")).
		WithArgs("r1", "a2", at, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(reportRow(sqlmock.NewRows(reportCols), "r1", "u1", StatusInProgress, "a2", at))
	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM reports WHERE id = $1 RETURNING")).
		WithArgs("gone").
		WillReturnError(sql.ErrNoRows)

	r, err := store.Assign(context.Background(), "r1", "a2", at)
	require.NoError(t, err)
	assert.Equal(t, "a2", *r.AssignedAdmin)

	_, err = store.Delete(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPGStore_Stats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPGStore(db)
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("In Progress", 2).AddRow("Resolved", 3).AddRow("Submitted", 5))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY category")).
		WillReturnRows(sqlmock.NewRows([]string{"category", "n"}).AddRow("Potholes", 6).AddRow("Parks", 4))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE created_at >= $1")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"day", "count"}).AddRow("2024-05-02", 4))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC LIMIT $1")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status", "category", "created_at", "user_id"}).
			AddRow("r9", "Dark street", "Submitted", "Streetlights", now, "u1"))

	st, err := store.Stats(context.Background(), since, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 10, st.TotalReports)
	assert.EqualValues(t, 5, st.SubmittedReports)
	assert.EqualValues(t, 2, st.InProgressReports)
	assert.EqualValues(t, 3, st.ResolvedReports)
	assert.Equal(t, "Potholes", st.ByCategory[0].ID)
	assert.Equal(t, []Bucket{{ID: "2024-05-02", Count: 4}}, st.OverTime)
	require.Len(t, st.Recent, 1)
	assert.Equal(t, CategoryStreetlights, st.Recent[0].Category)
	require.NoError(t, mock.ExpectationsWereMet())
}
