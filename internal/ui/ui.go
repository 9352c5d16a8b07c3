// Package ui renders scenario progress for people watching a run.
package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/felixgeelhaar/recall/internal/runtime"
)

type UI interface {
	UpdateStatus(status string)
	UpdateTurn(turn int)
	Log(msg string)
	// ScenarioDone is called once per scenario; err is nil on success.
	ScenarioDone(id string, err error)
}

type SilentUI struct{}

func (s SilentUI) UpdateStatus(status string) {}
func (s SilentUI) UpdateTurn(turn int)        {}
func (s SilentUI) Log(msg string)             {}
func (s SilentUI) ScenarioDone(string, error) {}

// TextUI writes one line per update.
type TextUI struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTextUI(out io.Writer) *TextUI {
	return &TextUI{out: out}
}

func (t *TextUI) UpdateStatus(status string) {
	t.printf("%s\n", status)
}

func (t *TextUI) UpdateTurn(turn int) {
	t.printf("  turn %d\n", turn)
}

func (t *TextUI) Log(msg string) {
	t.printf("    %s\n", msg)
}

func (t *TextUI) ScenarioDone(id string, err error) {
	if err != nil {
		t.printf("%s failed: %v\n", id, err)
		return
	}
	t.printf("%s complete\n", id)
}

func (t *TextUI) printf(format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, args...)
}

// Follow routes runner events on bus to u.
func Follow(bus *runtime.EventBus, u UI) {
	bus.SubscribeAll(func(e runtime.Event) {
		switch e.Type {
		case runtime.EventScenarioStart:
			u.UpdateStatus(fmt.Sprintf("%s (%v)", e.ScenarioID, e.Data["model"]))
		case runtime.EventTurnStart:
			if turn, ok := e.Data["turn"].(int); ok {
				u.UpdateTurn(turn)
			}
		case runtime.EventToolCallEnd:
			u.Log(fmt.Sprintf("%v -> %v", e.Data["tool"], e.Data["output"]))
		case runtime.EventGuardViolation:
			u.Log(fmt.Sprintf("guard: %v", e.Data["message"]))
		case runtime.EventScenarioError:
			u.ScenarioDone(e.ScenarioID, fmt.Errorf("%v", e.Data["error"]))
		case runtime.EventScenarioComplete:
			u.ScenarioDone(e.ScenarioID, nil)
		}
	})
}
