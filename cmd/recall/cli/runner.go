package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/felixgeelhaar/recall/internal/entry"
	"github.com/felixgeelhaar/recall/internal/observe"
	"github.com/felixgeelhaar/recall/internal/runtime"
	"github.com/felixgeelhaar/recall/internal/scenario"
	"github.com/felixgeelhaar/recall/internal/snapshot"
	"github.com/felixgeelhaar/recall/internal/store"
	"github.com/felixgeelhaar/recall/internal/ui"
)

// Runner executes scenario files one after another.
type Runner struct {
	Observer      *observe.Observer
	Store         store.Storage
	ResultsDir    string
	Model         string
	FlushEachTurn bool
	JSON          bool
	Out           io.Writer

	// UI receives live progress. Nil shows none.
	UI ui.UI
}

type loaded struct {
	path     string
	scenario *scenario.Scenario
	entry    entry.Entry
}

// summary is the per-scenario line printed after a run.
type summary struct {
	Scenario   string   `json:"scenario"`
	RunID      string   `json:"run_id"`
	Model      string   `json:"model"`
	Turns      int      `json:"turns"`
	ToolCalls  int      `json:"tool_calls"`
	Errors     int      `json:"errors"`
	Violations []string `json:"violations,omitempty"`
	Snapshot   string   `json:"snapshot"`
}

// Run validates every file up front, then executes them in chain order and
// stops at the first failure: later scenarios of a family depend on the
// state earlier ones leave behind.
func (r *Runner) Run(ctx context.Context, paths []string) error {
	items := make([]loaded, 0, len(paths))
	for _, path := range paths {
		sc, err := scenario.Load(path)
		if err != nil {
			return err
		}
		res := scenario.Validate(*sc)
		for _, w := range res.Warnings {
			r.Observer.Log().Warn().Str("path", path).Msg(w)
		}
		if !res.Valid {
			return fmt.Errorf("invalid scenario %s: %s", path, strings.Join(res.Errors, ", "))
		}
		for _, name := range runtime.UnknownTools(sc) {
			r.Observer.Log().Warn().Str("path", path).Str("tool", name).Msg("scripted call to unknown tool")
		}
		e, err := entry.Parse(sc.ID)
		if err != nil {
			return err
		}
		items = append(items, loaded{path: path, scenario: sc, entry: e})
	}
	sortChainOrder(items)

	rt := runtime.NewRunner(runtime.Config{
		Snapshots:     snapshot.NewManager(r.ResultsDir, snapshot.WithObserver(r.Observer), snapshot.WithRecorder(r.Store)),
		Store:         r.Store,
		Observer:      r.Observer,
		Model:         r.Model,
		FlushEachTurn: r.FlushEachTurn,
	})
	if r.UI != nil {
		ui.Follow(rt.Events(), r.UI)
	}

	for _, it := range items {
		rep, err := rt.Execute(ctx, it.scenario)
		if err != nil {
			return fmt.Errorf("%s: %w", it.path, err)
		}
		if err := r.report(rep); err != nil {
			return err
		}
	}
	return nil
}

// sortChainOrder groups scenarios by category family and runs each family's
// prerequisite chain before the scenarios that depend on it.
func sortChainOrder(items []loaded) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].entry, items[j].entry
		if a.BaseCategory() != b.BaseCategory() {
			return a.BaseCategory() < b.BaseCategory()
		}
		if a.Prereq() != b.Prereq() {
			return a.Prereq()
		}
		return a.Index < b.Index
	})
}

func (r *Runner) report(rep *runtime.Report) error {
	s := summary{
		Scenario:   rep.ScenarioID,
		RunID:      rep.RunID,
		Model:      rep.Model,
		Turns:      rep.Turns,
		ToolCalls:  rep.ToolCalls,
		Violations: rep.Violations,
	}
	for _, res := range rep.Results {
		if res.Err != "" {
			s.Errors++
		}
	}
	if len(rep.Snapshots) > 0 {
		s.Snapshot = rep.Snapshots[0]
	}

	if r.JSON {
		return json.NewEncoder(r.Out).Encode(s)
	}
	_, err := fmt.Fprintf(r.Out, "%s: %d turns, %d tool calls, %d errors -> %s\n",
		s.Scenario, s.Turns, s.ToolCalls, s.Errors, s.Snapshot)
	return err
}
