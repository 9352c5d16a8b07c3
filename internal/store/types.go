package store

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Run status values.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run records one execution of a scenario.
type Run struct {
	ID         string
	ScenarioID string
	Category   string
	Model      string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Metadata   map[string]string
}

// SnapshotRecord describes a memory snapshot file written during a run.
type SnapshotRecord struct {
	ID         string
	RunID      string
	ScenarioID string
	Name       string // identifier the file is stored under, without extension
	Path       string
	Digest     string // sha256 of the file content
	CreatedAt  time.Time
}

// Storage defines the interface for run metadata persistence
type Storage interface {
	// Run Management
	CreateRun(run *Run) error
	GetRun(id string) (*Run, error)
	UpdateRun(run *Run) error

	// Snapshot Management
	RecordSnapshot(rec *SnapshotRecord) error
	ListSnapshots(scenarioID string) ([]*SnapshotRecord, error)

	// Configuration Management
	SetConfig(key, value string) error
	GetConfig(key string) (string, error)

	Close() error
}
