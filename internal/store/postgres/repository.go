// Package postgres persists extraction runs and their entities.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/a3tai/mcp-plan-extractor/internal/pipeline"
	"github.com/a3tai/mcp-plan-extractor/internal/plan"
)

// ErrRunNotFound is returned when a run id is unknown
var ErrRunNotFound = errors.New("extraction run not found")

const schemaLockID = int64(2026101901)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS extraction_runs (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	pages_total INTEGER NOT NULL,
	pages_processed INTEGER NOT NULL,
	pages_failed INTEGER NOT NULL,
	coverage JSONB NOT NULL DEFAULT '{}'::jsonb,
	diagnostics JSONB NOT NULL DEFAULT '[]'::jsonb,
	alerts JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE TABLE IF NOT EXISTS rooms (
	run_id TEXT NOT NULL REFERENCES extraction_runs(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	room_id TEXT NOT NULL,
	number TEXT NOT NULL,
	name TEXT NOT NULL,
	raw_name TEXT NOT NULL,
	block TEXT NOT NULL,
	floor TEXT NOT NULL,
	room_type TEXT NOT NULL,
	bbox JSONB NOT NULL,
	bbox_method TEXT NOT NULL,
	dimensions JSONB,
	confidence DOUBLE PRECISION NOT NULL,
	page INTEGER NOT NULL,
	source_pages JSONB NOT NULL DEFAULT '[]'::jsonb,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS doors (
	run_id TEXT NOT NULL REFERENCES extraction_runs(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	door_id TEXT NOT NULL,
	number TEXT NOT NULL,
	door_type TEXT NOT NULL,
	swing_angle DOUBLE PRECISION,
	radius DOUBLE PRECISION NOT NULL,
	leaves INTEGER NOT NULL,
	room_id TEXT NOT NULL,
	bbox JSONB NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	page INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS dimensions (
	run_id TEXT NOT NULL REFERENCES extraction_runs(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	raw_text TEXT NOT NULL,
	total_inches DOUBLE PRECISION NOT NULL,
	is_approximate BOOLEAN NOT NULL,
	bbox JSONB NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	page INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_rooms_room_id ON rooms(room_id);
CREATE INDEX IF NOT EXISTS idx_extraction_runs_generated_at ON extraction_runs(generated_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// SaveRun stores a document and all of its entities in one transaction
func (r *Repository) SaveRun(ctx context.Context, doc *pipeline.Document) error {
	if doc == nil || doc.RunID == "" {
		return fmt.Errorf("run id is required")
	}

	coverage, err := json.Marshal(doc.Coverage)
	if err != nil {
		return fmt.Errorf("marshal coverage: %w", err)
	}
	diags, err := json.Marshal(nonNil(doc.Diagnostics))
	if err != nil {
		return fmt.Errorf("marshal diagnostics: %w", err)
	}
	alerts, err := json.Marshal(nonNil(doc.Alerts))
	if err != nil {
		return fmt.Errorf("marshal alerts: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO extraction_runs (
	id, source, generated_at, pages_total, pages_processed, pages_failed, coverage, diagnostics, alerts
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		doc.RunID, doc.Source, doc.GeneratedAt, doc.Coverage.PagesTotal, doc.Coverage.PagesProcessed,
		doc.Coverage.PagesFailed, coverage, diags, alerts,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, room := range doc.Rooms {
		if err := insertRoom(ctx, tx, doc.RunID, i, room); err != nil {
			return err
		}
	}
	for i, door := range doc.Doors {
		if err := insertDoor(ctx, tx, doc.RunID, i, door); err != nil {
			return err
		}
	}
	for i, dim := range doc.Dimensions {
		if err := insertDimension(ctx, tx, doc.RunID, i, dim); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run tx: %w", err)
	}
	return nil
}

func insertRoom(ctx context.Context, tx *sql.Tx, runID string, seq int, room plan.Room) error {
	bbox, err := json.Marshal(room.BBox)
	if err != nil {
		return fmt.Errorf("marshal room bbox: %w", err)
	}
	var dims any
	if room.Dimensions != nil {
		b, err := json.Marshal(room.Dimensions)
		if err != nil {
			return fmt.Errorf("marshal room dimensions: %w", err)
		}
		dims = b
	}
	pages, err := json.Marshal(nonNil(room.SourcePages))
	if err != nil {
		return fmt.Errorf("marshal source pages: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO rooms (
	run_id, seq, room_id, number, name, raw_name, block, floor, room_type, bbox, bbox_method, dimensions, confidence, page, source_pages
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
		runID, seq, room.ID, room.Number, room.Name, room.RawName, room.Block, room.Floor, room.Type, bbox,
		string(room.BBoxMethod), dims, room.Confidence, room.Page, pages,
	)
	if err != nil {
		return fmt.Errorf("insert room %s: %w", room.ID, err)
	}
	return nil
}

func insertDoor(ctx context.Context, tx *sql.Tx, runID string, seq int, door plan.Door) error {
	bbox, err := json.Marshal(door.BBox)
	if err != nil {
		return fmt.Errorf("marshal door bbox: %w", err)
	}
	var swing any
	if door.SwingAngle != nil {
		swing = *door.SwingAngle
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO doors (
	run_id, seq, door_id, number, door_type, swing_angle, radius, leaves, room_id, bbox, confidence, page
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		runID, seq, door.ID, door.Number, string(door.Type), swing, door.Radius, door.Leaves, door.RoomID, bbox,
		door.Confidence, door.Page,
	)
	if err != nil {
		return fmt.Errorf("insert door %s: %w", door.ID, err)
	}
	return nil
}

func insertDimension(ctx context.Context, tx *sql.Tx, runID string, seq int, dim plan.Dimension) error {
	bbox, err := json.Marshal(dim.BBox)
	if err != nil {
		return fmt.Errorf("marshal dimension bbox: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO dimensions (
	run_id, seq, raw_text, total_inches, is_approximate, bbox, confidence, page
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`,
		runID, seq, dim.RawText, dim.TotalInches, dim.IsApproximate, bbox, dim.Confidence, dim.Page,
	)
	if err != nil {
		return fmt.Errorf("insert dimension %q: %w", dim.RawText, err)
	}
	return nil
}

// LoadRooms reads back the rooms of a run in their original order
func (r *Repository) LoadRooms(ctx context.Context, runID string) ([]plan.Room, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM extraction_runs WHERE id = $1`, runID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("lookup run: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT room_id, number, name, raw_name, block, floor, room_type, bbox, bbox_method, dimensions, confidence, page, source_pages
FROM rooms
WHERE run_id = $1
ORDER BY seq
`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]plan.Room, 0)
	for rows.Next() {
		var room plan.Room
		var bboxRaw, dimsRaw, pagesRaw []byte
		var method string
		if err := rows.Scan(
			&room.ID, &room.Number, &room.Name, &room.RawName, &room.Block, &room.Floor, &room.Type,
			&bboxRaw, &method, &dimsRaw, &room.Confidence, &room.Page, &pagesRaw,
		); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		if err := json.Unmarshal(bboxRaw, &room.BBox); err != nil {
			return nil, fmt.Errorf("unmarshal room bbox: %w", err)
		}
		if len(dimsRaw) > 0 {
			room.Dimensions = &plan.RoomDimensions{}
			if err := json.Unmarshal(dimsRaw, room.Dimensions); err != nil {
				return nil, fmt.Errorf("unmarshal room dimensions: %w", err)
			}
		}
		if err := json.Unmarshal(pagesRaw, &room.SourcePages); err != nil {
			return nil, fmt.Errorf("unmarshal source pages: %w", err)
		}
		room.BBoxMethod = plan.BBoxMethod(method)
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return rooms, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
