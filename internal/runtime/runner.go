package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/recall/internal/entry"
	"github.com/felixgeelhaar/recall/internal/guard"
	"github.com/felixgeelhaar/recall/internal/memory"
	"github.com/felixgeelhaar/recall/internal/observe"
	"github.com/felixgeelhaar/recall/internal/provider"
	"github.com/felixgeelhaar/recall/internal/scenario"
	"github.com/felixgeelhaar/recall/internal/snapshot"
	"github.com/felixgeelhaar/recall/internal/store"
)

// ErrNoModel is returned when neither the scenario nor the runner names a model.
var ErrNoModel = errors.New("no model configured")

// Config wires a Runner. Only Snapshots is required.
type Config struct {
	Snapshots *snapshot.Manager
	Guard     *guard.Guard
	Observer  *observe.Observer
	Events    *EventBus

	// Store receives run records. Nil disables run bookkeeping.
	Store store.Storage

	// Model is used for scenarios that do not name one.
	Model string

	// FlushEachTurn writes the store after every turn, not just at the end.
	FlushEachTurn bool
}

// Runner drives scenarios against a fresh memory store each time.
type Runner struct {
	snapshots     *snapshot.Manager
	store         store.Storage
	guard         *guard.Guard
	observe       *observe.Observer
	events        *EventBus
	model         string
	flushEachTurn bool
}

func NewRunner(cfg Config) *Runner {
	r := &Runner{
		snapshots:     cfg.Snapshots,
		store:         cfg.Store,
		guard:         cfg.Guard,
		observe:       cfg.Observer,
		events:        cfg.Events,
		model:         cfg.Model,
		flushEachTurn: cfg.FlushEachTurn,
	}
	if r.guard == nil {
		r.guard = guard.New(guard.DefaultPolicy)
	}
	if r.observe == nil {
		r.observe = observe.Discard()
	}
	if r.events == nil {
		r.events = NewEventBus()
	}
	return r
}

// Events returns the bus the runner publishes to.
func (r *Runner) Events() *EventBus {
	return r.events
}

// ToolResult is the outcome of one tool call.
type ToolResult struct {
	Turn   int
	Step   int
	Call   provider.ToolCall
	Output string
	Err    string
}

// Report summarizes a scenario execution.
type Report struct {
	ScenarioID string
	RunID      string
	Model      string
	Turns      int
	ToolCalls  int
	Results    []ToolResult
	Violations []string
	Snapshots  []string
	Final      memory.State
}

// Execute replays the scenario's scripted tool calls.
func (r *Runner) Execute(ctx context.Context, sc *scenario.Scenario) (*Report, error) {
	script, err := sc.ToolCalls()
	if err != nil {
		return nil, err
	}
	return r.ExecuteWith(ctx, sc, provider.NewScriptedProvider(script))
}

// ExecuteWith runs the scenario's questions against p.
func (r *Runner) ExecuteWith(ctx context.Context, sc *scenario.Scenario, p provider.Provider) (rep *Report, err error) {
	ctx, span := r.observe.StartSpan(ctx, "scenario.execute", sc.ID)
	defer func() { r.observe.EndSpan(span, err) }()

	e, err := entry.Parse(sc.ID)
	if err != nil {
		return nil, err
	}
	model := sc.Model
	if model == "" {
		model = r.model
	}
	if model == "" {
		return nil, fmt.Errorf("scenario %s: %w", sc.ID, ErrNoModel)
	}

	rep = &Report{ScenarioID: sc.ID, Model: model}
	run := r.startRun(e, model, p.Name())
	if run != nil {
		rep.RunID = run.ID
	}
	defer func() { r.finishRun(run, sc.ID, err) }()

	r.observe.Log().Info().Str("scenario", sc.ID).Str("model", model).Int("turns", len(sc.Turns)).Str("provider", p.Name()).Msg("starting scenario")
	r.events.PublishWithData(EventScenarioStart, sc.ID, map[string]interface{}{"model": model, "run_id": rep.RunID})

	st := memory.New()
	load := snapshot.LoadRequest{Model: model, Entry: e, FirstInChain: e.FirstInChain(), LongContext: sc.LongContext}
	if err := r.snapshots.Load(ctx, st, load); err != nil {
		return rep, fmt.Errorf("load memory: %w", err)
	}
	r.events.PublishWithData(EventSnapshotLoaded, sc.ID, map[string]interface{}{
		"first_in_chain": load.FirstInChain,
		"short_term":     st.Len(memory.ShortTerm),
		"long_term":      st.Len(memory.LongTerm),
	})

	tools := NewToolRegistry()
	if err := RegisterMemoryTools(tools, st); err != nil {
		return rep, err
	}

	var history []provider.Message
	for t, turn := range sc.Turns {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		r.events.PublishWithData(EventTurnStart, sc.ID, map[string]interface{}{"turn": t})
		history = append(history, provider.Message{Role: "user", Content: turn.Question})

		if err := r.runTurn(ctx, p, tools, t, &history, rep); err != nil {
			return rep, fmt.Errorf("turn %d: %w", t, err)
		}
		rep.Turns++
		r.events.PublishWithData(EventTurnEnd, sc.ID, map[string]interface{}{"turn": t})

		if r.flushEachTurn {
			if err := r.flush(ctx, st, model, e, rep); err != nil {
				return rep, err
			}
		}
	}

	if err := r.flush(ctx, st, model, e, rep); err != nil {
		return rep, err
	}
	rep.Final = st.Snapshot()

	r.observe.Log().Info().Str("scenario", sc.ID).Int("tool_calls", rep.ToolCalls).Int("violations", len(rep.Violations)).Msg("scenario complete")
	return rep, nil
}

// runTurn calls the provider until it answers without tool calls or the step
// budget runs out.
func (r *Runner) runTurn(ctx context.Context, p provider.Provider, tools *ToolRegistry, turn int, history *[]provider.Message, rep *Report) error {
	for step := 1; ; step++ {
		if v := r.guard.CheckSteps(step); v != nil {
			if err := r.violation(rep, v, turn); err != nil {
				return err
			}
			return nil
		}

		resp, err := p.Chat(ctx, *history)
		if err != nil {
			return fmt.Errorf("provider %s: %w", p.Name(), err)
		}
		*history = append(*history, provider.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		if len(resp.ToolCalls) == 0 {
			return nil
		}

		for _, call := range resp.ToolCalls {
			if err := ctx.Err(); err != nil {
				return err
			}
			content := r.callTool(ctx, tools, call, turn, step, rep)
			*history = append(*history, provider.Message{
				Role:       "tool",
				Content:    content,
				ToolCallID: call.ID,
			})
		}
	}
}

// callTool executes one call and returns the text handed back to the model.
// Failures are reported to the model, not to the caller.
func (r *Runner) callTool(ctx context.Context, tools *ToolRegistry, call provider.ToolCall, turn, step int, rep *Report) string {
	scenarioID := rep.ScenarioID
	r.events.PublishWithData(EventToolCallStart, scenarioID, map[string]interface{}{"tool": call.Name, "turn": turn, "step": step})
	rep.ToolCalls++

	res := ToolResult{Turn: turn, Step: step, Call: call}
	var err error
	if v := r.guard.CheckTool(call.Name); v != nil {
		_ = r.violation(rep, v, turn)
		err = v
	} else {
		res.Output, err = tools.Execute(ctx, call)
	}
	if err != nil {
		res.Err = err.Error()
		res.Output = "Error executing tool: " + err.Error()
		r.observe.Log().Warn().Str("scenario", scenarioID).Str("tool", call.Name).Err(err).Msg("tool call failed")
	}
	rep.Results = append(rep.Results, res)

	r.events.PublishWithData(EventToolCallEnd, scenarioID, map[string]interface{}{"tool": call.Name, "output": res.Output, "error": res.Err})
	return res.Output
}

func (r *Runner) violation(rep *Report, v *guard.Violation, turn int) error {
	rep.Violations = append(rep.Violations, v.Error())
	r.observe.Log().Warn().Str("scenario", rep.ScenarioID).Int("turn", turn).Str("rule", v.Rule).Msg(v.Message)
	r.events.PublishWithData(EventGuardViolation, rep.ScenarioID, map[string]interface{}{"rule": v.Rule, "message": v.Message, "turn": turn})
	if v.Fatal {
		return fmt.Errorf("guard violation: %w", v)
	}
	return nil
}

func (r *Runner) flush(ctx context.Context, st *memory.Store, model string, e entry.Entry, rep *Report) error {
	paths, err := r.snapshots.Flush(ctx, st, snapshot.FlushRequest{Model: model, Entry: e, RunID: rep.RunID})
	if err != nil {
		return fmt.Errorf("flush memory: %w", err)
	}
	rep.Snapshots = paths
	r.events.PublishWithData(EventSnapshotFlushed, rep.ScenarioID, map[string]interface{}{"paths": paths})
	return nil
}

func (r *Runner) startRun(e entry.Entry, model, providerName string) *store.Run {
	if r.store == nil {
		return nil
	}
	now := time.Now()
	run := &store.Run{
		ID:         uuid.NewString(),
		ScenarioID: e.ID,
		Category:   e.Category,
		Model:      model,
		Status:     store.StatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
		Metadata:   map[string]string{"provider": providerName},
	}
	if err := r.store.CreateRun(run); err != nil {
		r.observe.Log().Warn().Err(err).Str("scenario", e.ID).Msg("failed to record run")
		return nil
	}
	return run
}

func (r *Runner) finishRun(run *store.Run, scenarioID string, err error) {
	if err != nil {
		r.observe.Log().Error().Str("scenario", scenarioID).Err(err).Msg("scenario failed")
		r.events.PublishWithData(EventScenarioError, scenarioID, map[string]interface{}{"error": err.Error()})
	} else {
		r.events.PublishSimple(EventScenarioComplete, scenarioID)
	}

	if run == nil {
		return
	}
	run.Status = store.StatusCompleted
	if err != nil {
		run.Status = store.StatusFailed
		run.Metadata["error"] = err.Error()
	}
	run.UpdatedAt = time.Now()
	if uerr := r.store.UpdateRun(run); uerr != nil {
		r.observe.Log().Warn().Err(uerr).Str("run", run.ID).Msg("failed to update run")
	}
}
