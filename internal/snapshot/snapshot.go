// Package snapshot persists memory stores between scenarios.
//
// Files live under <result_dir>/<model_dir>/memory_snapshot/<identifier>.json.
// Every flush writes a point-in-time file named after the scenario id and a
// <category>_final file that the next scenario of the family loads from.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/recall/internal/entry"
	"github.com/felixgeelhaar/recall/internal/memory"
	"github.com/felixgeelhaar/recall/internal/observe"
	"github.com/felixgeelhaar/recall/internal/store"
)

// DirName is the directory holding snapshots inside a model's result directory.
const DirName = "memory_snapshot"

const ext = ".json"

var ErrSnapshotNotFound = errors.New("memory snapshot not found")

// Recorder receives a record for every snapshot file written.
type Recorder interface {
	RecordSnapshot(rec *store.SnapshotRecord) error
}

// Manager loads and flushes snapshots below a result directory. Callers must
// run scenarios of one category sequentially; Manager does no locking.
type Manager struct {
	resultDir string
	observe   *observe.Observer
	recorder  Recorder
}

type Option func(*Manager)

func WithObserver(o *observe.Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observe = o
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		m.recorder = r
	}
}

func NewManager(resultDir string, opts ...Option) *Manager {
	m := &Manager{
		resultDir: resultDir,
		observe:   observe.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ModelDir turns a model name into a single path element.
func ModelDir(model string) string {
	return strings.ReplaceAll(model, "/", "_")
}

// FinalName is the identifier of the latest state written by a category.
func FinalName(category string) string {
	return category + "_final"
}

// ChainSource is the identifier a non-initial scenario loads: the final state
// of its family's prerequisite chain.
func ChainSource(e entry.Entry) string {
	return FinalName(e.BaseCategory() + "_prereq")
}

// Dir returns the snapshot directory for model.
func (m *Manager) Dir(model string) string {
	return filepath.Join(m.resultDir, ModelDir(model), DirName)
}

// Path returns the file holding the snapshot called identifier.
func (m *Manager) Path(model, identifier string) string {
	return filepath.Join(m.Dir(model), identifier+ext)
}

// LoadRequest describes how a scenario's store is hydrated. FirstInChain is
// decided by the caller; LongContext is accepted for parity with the other
// tool suites and has no effect.
type LoadRequest struct {
	Model        string
	Entry        entry.Entry
	FirstInChain bool
	LongContext  bool
}

// Load prepares st for the scenario in req.
//
// The first scenario of a prerequisite chain starts from nothing: earlier
// snapshots of its category family and the category's aggregate result files
// are removed. Every other scenario must find the chain's final snapshot; a
// missing file is a fixture error and is returned wrapping ErrSnapshotNotFound.
func (m *Manager) Load(ctx context.Context, st *memory.Store, req LoadRequest) (err error) {
	_, span := m.observe.StartSpan(ctx, "snapshot.load", req.Entry.ID)
	defer func() { m.observe.EndSpan(span, err) }()

	if err := ctx.Err(); err != nil {
		return err
	}

	if req.FirstInChain {
		if err := m.reset(req.Model, req.Entry); err != nil {
			return err
		}
		st.Clear(memory.ShortTerm)
		st.Clear(memory.LongTerm)
		m.observe.Log().Info().Str("scenario", req.Entry.ID).Str("category", req.Entry.Category).Msg("first in chain, snapshots reset")
		return nil
	}

	name := ChainSource(req.Entry)
	state, err := m.Read(req.Model, name)
	if err != nil {
		return fmt.Errorf("scenario %s: %w", req.Entry.ID, err)
	}
	if err := st.Restore(state); err != nil {
		return fmt.Errorf("restore snapshot %s: %w", name, err)
	}

	m.observe.Log().Info().
		Str("scenario", req.Entry.ID).
		Str("snapshot", name).
		Int("short_term", st.Len(memory.ShortTerm)).
		Int("long_term", st.Len(memory.LongTerm)).
		Msg("snapshot loaded")
	return nil
}

// FlushRequest names where a scenario's state is written. RunID is copied
// into the snapshot records.
type FlushRequest struct {
	Model string
	Entry entry.Entry
	RunID string
}

// Flush writes st under the scenario id and under the category's final name.
// Both writes must succeed. It returns the paths written.
func (m *Manager) Flush(ctx context.Context, st *memory.Store, req FlushRequest) (paths []string, err error) {
	_, span := m.observe.StartSpan(ctx, "snapshot.flush", req.Entry.ID)
	defer func() { m.observe.EndSpan(span, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(st.Snapshot(), "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(m.Dir(req.Model), 0750); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	for _, name := range []string{req.Entry.ID, FinalName(req.Entry.Category)} {
		path := m.Path(req.Model, name)
		if err := os.WriteFile(path, data, 0600); err != nil {
			return paths, fmt.Errorf("write snapshot %s: %w", name, err)
		}
		paths = append(paths, path)
		m.record(req, name, path, digest)
	}

	m.observe.Log().Info().Str("scenario", req.Entry.ID).Str("digest", digest[:12]).Msg("snapshot flushed")
	return paths, nil
}

func (m *Manager) record(req FlushRequest, name, path, digest string) {
	if m.recorder == nil {
		return
	}
	rec := &store.SnapshotRecord{
		ID:         uuid.NewString(),
		RunID:      req.RunID,
		ScenarioID: req.Entry.ID,
		Name:       name,
		Path:       path,
		Digest:     digest,
		CreatedAt:  time.Now(),
	}
	if err := m.recorder.RecordSnapshot(rec); err != nil {
		m.observe.Log().Warn().Err(err).Str("snapshot", name).Msg("failed to record snapshot")
	}
}

// Read decodes the snapshot called identifier.
func (m *Manager) Read(model, identifier string) (memory.State, error) {
	path := m.Path(model, identifier)
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return memory.State{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, path)
		}
		return memory.State{}, fmt.Errorf("read snapshot: %w", err)
	}

	var state memory.State
	if err := json.Unmarshal(data, &state); err != nil {
		return memory.State{}, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return state, nil
}

// List returns the identifiers of model's snapshots matching a doublestar
// pattern (without the .json extension), sorted. An empty pattern lists all.
func (m *Manager) List(model, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	dir := m.Dir(model)
	if !isDir(dir) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern+ext)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, strings.TrimSuffix(match, ext))
	}
	sort.Strings(ids)
	return ids, nil
}

// reset removes every snapshot of e's category family and the aggregate
// result files of e's category, then recreates the snapshot directory.
func (m *Manager) reset(model string, e entry.Entry) error {
	base := e.BaseCategory()
	dir := m.Dir(model)
	err := removeMatching(dir, "*"+ext, func(name string) bool {
		family, ok := familyOf(strings.TrimSuffix(name, ext))
		return ok && family == base
	})
	if err != nil {
		return fmt.Errorf("remove stale snapshots: %w", err)
	}

	modelDir := filepath.Join(m.resultDir, ModelDir(model))
	err = removeMatching(modelDir, "**/*"+resultSuffix, func(name string) bool {
		return isResultFile(path.Base(name), e.Category)
	})
	if err != nil {
		return fmt.Errorf("remove stale result files: %w", err)
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	return nil
}

const resultSuffix = "_result.json"

// familyOf returns the category family a snapshot identifier belongs to.
// Identifiers are either final pointers (<category>_final) or entry ids.
func familyOf(identifier string) (string, bool) {
	if category, ok := strings.CutSuffix(identifier, "_final"); ok {
		return entry.Entry{Category: category}.BaseCategory(), true
	}
	e, err := entry.Parse(identifier)
	if err != nil {
		return "", false
	}
	return e.BaseCategory(), true
}

// isResultFile reports whether name is the aggregate result file of category,
// either bare or behind a prefix ending in an underscore.
func isResultFile(name, category string) bool {
	return name == category+resultSuffix || strings.HasSuffix(name, "_"+category+resultSuffix)
}

func removeMatching(root, pattern string, match func(name string) bool) error {
	if !isDir(root) {
		return nil
	}
	matches, err := doublestar.Glob(os.DirFS(root), pattern)
	if err != nil {
		return err
	}
	for _, name := range matches {
		if !match(name) {
			continue
		}
		if err := os.Remove(filepath.Join(root, filepath.FromSlash(name))); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
