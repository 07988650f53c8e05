package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-plan-extractor/internal/pipeline"
	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

func newRepoWithMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db), mock
}

func sampleRun() *pipeline.Document {
	swing := 90.0
	return &pipeline.Document{
		RunID:       "run-1",
		Source:      "A-101.pdf",
		GeneratedAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Coverage:    pipeline.Coverage{PagesTotal: 2, PagesProcessed: 2},
		Rooms: []plan.Room{{
			ID: "B-2-04", Number: "204", Name: "CLASSE", Floor: "2", Block: "B",
			BBox: plan.BBox{X0: 1, Y0: 2, X1: 3, Y1: 4}, BBoxMethod: plan.BBoxWallRays,
			Confidence: 0.8, Page: 1, SourcePages: []int{1, 2},
		}},
		Doors: []plan.Door{{
			ID: "D-1", Type: plan.DoorSwing, SwingAngle: &swing, Radius: 36, Leaves: 1, Confidence: 0.7, Page: 1,
		}},
		Dimensions: []plan.Dimension{{RawText: "10'-6\"", TotalInches: 126, Confidence: 0.9, Page: 2}},
	}
}

func TestEnsureSchema(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(schemaLockID).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS extraction_runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	doc := sampleRun()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO extraction_runs").
		WithArgs("run-1", "A-101.pdf", doc.GeneratedAt, 2, 2, 0, sqlmock.AnyArg(), []byte("[]"), []byte("[]")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO rooms").
		WithArgs("run-1", 0, "B-2-04", "204", "CLASSE", "", "B", "2", "",
			[]byte(`{"x0":1,"y0":2,"x1":3,"y1":4}`), "wall_rays", nil, 0.8, 1, []byte("[1,2]")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO doors").
		WithArgs("run-1", 0, "D-1", "", "swing", 90.0, 36.0, 1, "", sqlmock.AnyArg(), 0.7, 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO dimensions").
		WithArgs("run-1", 0, "10'-6\"", 126.0, false, sqlmock.AnyArg(), 0.9, 2).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveRun(context.Background(), doc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunRollsBackOnFailure(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO extraction_runs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO rooms").WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := repo.SaveRun(context.Background(), sampleRun())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert room B-2-04")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunRequiresID(t *testing.T) {
	repo, _ := newRepoWithMock(t)
	assert.Error(t, repo.SaveRun(context.Background(), &pipeline.Document{}))
	assert.Error(t, repo.SaveRun(context.Background(), nil))
}

func TestLoadRooms(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery("SELECT 1 FROM extraction_runs").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	cols := []string{"room_id", "number", "name", "raw_name", "block", "floor", "room_type", "bbox", "bbox_method",
		"dimensions", "confidence", "page", "source_pages"}
	mock.ExpectQuery("SELECT room_id, number, name").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("B-2-04", "204", "CLASSE", "CLASSE", "B", "2", "classroom",
				[]byte(`{"x0":1,"y0":2,"x1":3,"y1":4}`), "enclosing_path",
				[]byte(`{"width":120,"depth":144,"area":120}`), 0.8, 1, []byte(`[1,2]`)).
			AddRow("B-2-05", "205", "", "", "B", "2", "",
				[]byte(`{"x0":0,"y0":0,"x1":1,"y1":1}`), "margin_fallback", nil, 0.5, 2, []byte(`[2]`)))

	rooms, err := repo.LoadRooms(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, rooms, 2)

	assert.Equal(t, "B-2-04", rooms[0].ID)
	assert.Equal(t, plan.BBox{X0: 1, Y0: 2, X1: 3, Y1: 4}, rooms[0].BBox)
	assert.Equal(t, plan.BBoxEnclosingPath, rooms[0].BBoxMethod)
	require.NotNil(t, rooms[0].Dimensions)
	assert.Equal(t, 144.0, rooms[0].Dimensions.Depth)
	assert.Equal(t, []int{1, 2}, rooms[0].SourcePages)

	assert.Nil(t, rooms[1].Dimensions)
	assert.Equal(t, plan.BBoxMarginFallback, rooms[1].BBoxMethod)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRoomsUnknownRun(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery("SELECT 1 FROM extraction_runs").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.LoadRooms(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
