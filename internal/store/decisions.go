// Package store persists decision cycles: a sqlite log of every run plus
// flat JSON record files for things worth eyeballing.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"rook/internal/logging"
)

// DecisionRecord is one full cycle: what was seen, what was inferred, what
// was planned, and what happened.
type DecisionRecord struct {
	ID        int64     `json:"id"`
	Scenario  string    `json:"scenario,omitempty"`
	Date      string    `json:"date"`
	Board     any       `json:"board"`
	Insights  any       `json:"insights"`
	Plan      any       `json:"plan"`
	Results   any       `json:"results"`
	CreatedAt time.Time `json:"created_at"`
}

// DecisionStore is the sqlite-backed cycle log.
type DecisionStore struct {
	db     *sql.DB
	dbPath string
}

// OpenDecisions creates or opens the decision database at path.
func OpenDecisions(path string) (*DecisionStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &DecisionStore{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *DecisionStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *DecisionStore) Path() string {
	return s.dbPath
}

func (s *DecisionStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scenario TEXT,
		date TEXT NOT NULL,
		board_json TEXT NOT NULL,
		insights_json TEXT NOT NULL,
		plan_json TEXT NOT NULL,
		results_json TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_scenario ON decisions(scenario);
	CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save appends a decision record and returns its assigned ID.
func (s *DecisionStore) Save(rec DecisionRecord) (int64, error) {
	board, err := json.Marshal(rec.Board)
	if err != nil {
		return 0, fmt.Errorf("marshal board: %w", err)
	}
	insights, err := json.Marshal(rec.Insights)
	if err != nil {
		return 0, fmt.Errorf("marshal insights: %w", err)
	}
	planJSON, err := json.Marshal(rec.Plan)
	if err != nil {
		return 0, fmt.Errorf("marshal plan: %w", err)
	}
	results, err := json.Marshal(rec.Results)
	if err != nil {
		return 0, fmt.Errorf("marshal results: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.Exec(
		`INSERT INTO decisions (scenario, date, board_json, insights_json, plan_json, results_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Scenario, rec.Date, string(board), string(insights), string(planJSON), string(results), createdAt,
	)
	if err != nil {
		logging.StoreError("save decision failed: %v", err)
		return 0, fmt.Errorf("insert decision: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	logging.Store("saved decision %d (scenario=%s)", id, rec.Scenario)
	return id, nil
}

// Recent returns up to limit records, newest first.
func (s *DecisionStore) Recent(limit int) ([]DecisionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, scenario, date, board_json, insights_json, plan_json, results_json, created_at
		 FROM decisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		rec, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns one record by ID.
func (s *DecisionStore) Get(id int64) (DecisionRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, scenario, date, board_json, insights_json, plan_json, results_json, created_at
		 FROM decisions WHERE id = ?`, id)
	return scanDecision(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (DecisionRecord, error) {
	var rec DecisionRecord
	var board, insights, planJSON, results string
	if err := row.Scan(&rec.ID, &rec.Scenario, &rec.Date, &board, &insights, &planJSON, &results, &rec.CreatedAt); err != nil {
		return DecisionRecord{}, fmt.Errorf("scan decision: %w", err)
	}
	// Stored blobs are produced by Save, but tolerate hand-edited rows.
	_ = json.Unmarshal([]byte(board), &rec.Board)
	_ = json.Unmarshal([]byte(insights), &rec.Insights)
	_ = json.Unmarshal([]byte(planJSON), &rec.Plan)
	_ = json.Unmarshal([]byte(results), &rec.Results)
	return rec, nil
}
