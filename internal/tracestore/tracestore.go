// Package tracestore persists recorded touch trajectories in SQLite so they
// can be replayed through the matching engine.
package tracestore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"glidetype/internal/geometry"
	"glidetype/internal/touchstate"
)

// Schema for the glidetype trace store.
const schema = `
CREATE TABLE IF NOT EXISTS traces (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    name         TEXT NOT NULL,
    layout_name  TEXT NOT NULL,
    pointer_id   INTEGER NOT NULL,
    gesture      INTEGER NOT NULL,
    created_ns   INTEGER NOT NULL,
    word         TEXT,
    score        REAL
);

CREATE INDEX IF NOT EXISTS idx_traces_name ON traces(name, created_ns);

CREATE TABLE IF NOT EXISTS trace_points (
    trace_id  INTEGER NOT NULL REFERENCES traces(id) ON DELETE CASCADE,
    ordinal   INTEGER NOT NULL,
    code      INTEGER NOT NULL,
    x         INTEGER NOT NULL,
    y         INTEGER NOT NULL,
    time_ms   INTEGER NOT NULL,
    PRIMARY KEY (trace_id, ordinal)
);
`

// Trace is a stored trajectory with its replay result, if any.
type Trace struct {
	ID         int64
	Name       string
	LayoutName string
	PointerID  int
	Gesture    bool
	CreatedNs  int64

	// Word and Score hold the engine's most probable string for gesture
	// traces. Word is empty when the trace has not been replayed.
	Word  string
	Score float64

	Points []Point
}

// Point is one raw touch sample of a trace.
type Point struct {
	Ordinal int
	Code    rune
	X       int
	Y       int
	TimeMs  int
}

// Summary is a trace listing row without its points.
type Summary struct {
	ID         int64
	Name       string
	LayoutName string
	Gesture    bool
	CreatedNs  int64
	PointCount int
}

// Store represents the SQLite trace store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at the given path and applies
// the schema. Busy timeout is in milliseconds; maxConns of 0 keeps the
// driver default.
func Open(path string, busyTimeoutMs, maxConns int) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d", path, busyTimeoutMs)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save inserts a trace and its points and returns the trace ID.
func (s *Store) Save(t *Trace) (int64, error) {
	if t.CreatedNs == 0 {
		t.CreatedNs = time.Now().UnixNano()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO traces (name, layout_name, pointer_id, gesture, created_ns, word, score)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Name, t.LayoutName, t.PointerID, t.Gesture, t.CreatedNs, t.Word, t.Score,
	)
	if err != nil {
		return 0, fmt.Errorf("insert trace: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO trace_points (trace_id, ordinal, code, x, y, time_ms)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range t.Points {
		if _, err := stmt.Exec(id, p.Ordinal, int32(p.Code), p.X, p.Y, p.TimeMs); err != nil {
			return 0, fmt.Errorf("insert trace point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	t.ID = id
	return id, nil
}

// Get retrieves a trace and its points by ID. Returns nil when the trace
// does not exist.
func (s *Store) Get(id int64) (*Trace, error) {
	var t Trace
	var word sql.NullString
	var score sql.NullFloat64

	err := s.db.QueryRow(`
		SELECT id, name, layout_name, pointer_id, gesture, created_ns, word, score
		FROM traces WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &t.LayoutName, &t.PointerID, &t.Gesture, &t.CreatedNs, &word, &score)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get trace: %w", err)
	}
	t.Word = word.String
	t.Score = score.Float64

	rows, err := s.db.Query(`
		SELECT ordinal, code, x, y, time_ms
		FROM trace_points
		WHERE trace_id = ?
		ORDER BY ordinal ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query trace points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Point
		var code int32
		if err := rows.Scan(&p.Ordinal, &code, &p.X, &p.Y, &p.TimeMs); err != nil {
			return nil, fmt.Errorf("scan trace point: %w", err)
		}
		p.Code = rune(code)
		t.Points = append(t.Points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace points: %w", err)
	}

	return &t, nil
}

// List returns trace summaries ordered by creation time, newest first.
func (s *Store) List() ([]Summary, error) {
	rows, err := s.db.Query(`
		SELECT t.id, t.name, t.layout_name, t.gesture, t.created_ns, COUNT(p.trace_id)
		FROM traces t
		LEFT JOIN trace_points p ON p.trace_id = t.id
		GROUP BY t.id
		ORDER BY t.created_ns DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.Name, &sm.LayoutName, &sm.Gesture, &sm.CreatedNs, &sm.PointCount); err != nil {
			return nil, fmt.Errorf("scan trace summary: %w", err)
		}
		summaries = append(summaries, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate traces: %w", err)
	}

	return summaries, nil
}

// SetResult records the replay outcome for a trace.
func (s *Store) SetResult(id int64, word string, score float64) error {
	result, err := s.db.Exec(`UPDATE traces SET word = ?, score = ? WHERE id = ?`, word, score, id)
	if err != nil {
		return fmt.Errorf("set trace result: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("trace not found: %d", id)
	}
	return nil
}

// Delete removes a trace and its points.
func (s *Store) Delete(id int64) error {
	result, err := s.db.Exec(`DELETE FROM traces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete trace: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("trace not found: %d", id)
	}
	return nil
}

// Trajectory converts the stored points to the engine's input form.
func (t *Trace) Trajectory() *touchstate.Trajectory {
	traj := &touchstate.Trajectory{
		Codes:      make([]rune, len(t.Points)),
		Xs:         make([]int, len(t.Points)),
		Ys:         make([]int, len(t.Points)),
		Times:      make([]int, len(t.Points)),
		PointerIDs: make([]int, len(t.Points)),
	}
	for i, p := range t.Points {
		traj.Codes[i] = p.Code
		traj.Xs[i] = p.X
		traj.Ys[i] = p.Y
		traj.Times[i] = p.TimeMs
		traj.PointerIDs[i] = t.PointerID
	}
	return traj
}

// FromTrajectory builds a storable trace from engine input. Unknown code
// points are stored as geometry.NotACode.
func FromTrajectory(name, layoutName string, pointerID int, gesture bool, traj *touchstate.Trajectory) *Trace {
	t := &Trace{
		Name:       name,
		LayoutName: layoutName,
		PointerID:  pointerID,
		Gesture:    gesture,
	}
	for i := 0; i < traj.Size(); i++ {
		p := Point{Ordinal: i, Code: geometry.NotACode}
		if traj.Codes != nil && i < len(traj.Codes) {
			p.Code = traj.Codes[i]
		}
		if traj.Xs != nil {
			p.X = traj.Xs[i]
			p.Y = traj.Ys[i]
		}
		if traj.Times != nil && i < len(traj.Times) {
			p.TimeMs = traj.Times[i]
		}
		t.Points = append(t.Points, p)
	}
	return t
}
