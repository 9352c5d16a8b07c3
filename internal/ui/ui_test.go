package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/recall/internal/runtime"
)

// MockUI implements UI interface for testing
type MockUI struct {
	StatusUpdates []string
	TurnUpdates   []int
	LogMessages   []string
	Done          []string
}

func (m *MockUI) UpdateStatus(status string) {
	m.StatusUpdates = append(m.StatusUpdates, status)
}

func (m *MockUI) UpdateTurn(turn int) {
	m.TurnUpdates = append(m.TurnUpdates, turn)
}

func (m *MockUI) Log(msg string) {
	m.LogMessages = append(m.LogMessages, msg)
}

func (m *MockUI) ScenarioDone(id string, err error) {
	if err != nil {
		id += ": " + err.Error()
	}
	m.Done = append(m.Done, id)
}

func TestUI_Implementations(t *testing.T) {
	uis := []UI{SilentUI{}, &MockUI{}, NewTextUI(&bytes.Buffer{})}
	for _, u := range uis {
		u.UpdateStatus("test")
		u.UpdateTurn(1)
		u.Log("test")
		u.ScenarioDone("memory_kv_0", nil)
	}
}

func TestTextUI(t *testing.T) {
	buf := &bytes.Buffer{}
	u := NewTextUI(buf)

	u.UpdateStatus("memory_kv_0 (gpt-4o)")
	u.UpdateTurn(0)
	u.Log(`short_term_memory_add -> {"status":"Key added."}`)
	u.ScenarioDone("memory_kv_0", nil)

	assert.Equal(t, "memory_kv_0 (gpt-4o)\n  turn 0\n    short_term_memory_add -> {\"status\":\"Key added.\"}\nmemory_kv_0 complete\n", buf.String())
}

func TestFollow(t *testing.T) {
	bus := runtime.NewEventBus()
	m := &MockUI{}
	Follow(bus, m)

	bus.PublishWithData(runtime.EventScenarioStart, "memory_kv_0", map[string]interface{}{"model": "gpt-4o"})
	bus.PublishWithData(runtime.EventTurnStart, "memory_kv_0", map[string]interface{}{"turn": 0})
	bus.PublishWithData(runtime.EventToolCallEnd, "memory_kv_0", map[string]interface{}{"tool": "short_term_memory_list_keys", "output": `{"keys":[]}`})
	bus.PublishWithData(runtime.EventGuardViolation, "memory_kv_0", map[string]interface{}{"message": "step limit of 20 exceeded"})
	bus.PublishSimple(runtime.EventSnapshotFlushed, "memory_kv_0")
	bus.PublishSimple(runtime.EventScenarioComplete, "memory_kv_0")
	bus.PublishWithData(runtime.EventScenarioError, "memory_kv_1", map[string]interface{}{"error": "memory snapshot not found"})

	assert.Equal(t, []string{"memory_kv_0 (gpt-4o)"}, m.StatusUpdates)
	assert.Equal(t, []string{"memory_kv_0", "memory_kv_1: memory snapshot not found"}, m.Done)
	assert.Equal(t, []int{0}, m.TurnUpdates)
	assert.Equal(t, []string{`short_term_memory_list_keys -> {"keys":[]}`, "guard: step limit of 20 exceeded"}, m.LogMessages)
}
