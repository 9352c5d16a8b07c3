package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; scenarios run sequentially.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			scenario_id TEXT,
			category TEXT,
			model TEXT,
			status TEXT,
			created_at DATETIME,
			updated_at DATETIME,
			metadata TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			run_id TEXT,
			scenario_id TEXT,
			name TEXT,
			path TEXT,
			digest TEXT,
			created_at DATETIME,
			FOREIGN KEY(run_id) REFERENCES runs(id)
		);`,
		`CREATE INDEX IF NOT EXISTS snapshots_scenario ON snapshots(scenario_id);`,
		`CREATE TABLE IF NOT EXISTS configuration (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Configuration Implementation

func (s *SQLiteStore) SetConfig(key, value string) error {
	query := `INSERT INTO configuration (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	_, err := s.db.Exec(query, key, value)
	return err
}

// GetConfig returns the stored value, or an empty string if key was never set.
func (s *SQLiteStore) GetConfig(key string) (string, error) {
	query := `SELECT value FROM configuration WHERE key = ?`
	row := s.db.QueryRow(query, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// Run Implementation

func (s *SQLiteStore) CreateRun(run *Run) error {
	metaJSON, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `INSERT INTO runs (id, scenario_id, category, model, status, created_at, updated_at, metadata) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query, run.ID, run.ScenarioID, run.Category, run.Model, run.Status, run.CreatedAt, run.UpdatedAt, string(metaJSON))
	return err
}

func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	query := `SELECT id, scenario_id, category, model, status, created_at, updated_at, metadata FROM runs WHERE id = ?`
	row := s.db.QueryRow(query, id)

	var run Run
	var metaJSON string
	if err := row.Scan(&run.ID, &run.ScenarioID, &run.Category, &run.Model, &run.Status, &run.CreatedAt, &run.UpdatedAt, &metaJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(metaJSON), &run.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return &run, nil
}

func (s *SQLiteStore) UpdateRun(run *Run) error {
	metaJSON, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	run.UpdatedAt = time.Now()
	query := `UPDATE runs SET updated_at = ?, status = ?, metadata = ? WHERE id = ?`
	res, err := s.db.Exec(query, run.UpdatedAt, run.Status, string(metaJSON), run.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// Snapshot Implementation

func (s *SQLiteStore) RecordSnapshot(rec *SnapshotRecord) error {
	var runID any
	if rec.RunID != "" {
		runID = rec.RunID
	}
	query := `INSERT INTO snapshots (id, run_id, scenario_id, name, path, digest, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(query, rec.ID, runID, rec.ScenarioID, rec.Name, rec.Path, rec.Digest, rec.CreatedAt)
	return err
}

// ListSnapshots returns the snapshots written by a scenario, oldest first.
func (s *SQLiteStore) ListSnapshots(scenarioID string) ([]*SnapshotRecord, error) {
	query := `SELECT id, COALESCE(run_id, ''), scenario_id, name, path, digest, created_at FROM snapshots WHERE scenario_id = ? ORDER BY created_at, rowid`
	rows, err := s.db.Query(query, scenarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*SnapshotRecord
	for rows.Next() {
		var r SnapshotRecord
		if err := rows.Scan(&r.ID, &r.RunID, &r.ScenarioID, &r.Name, &r.Path, &r.Digest, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}
