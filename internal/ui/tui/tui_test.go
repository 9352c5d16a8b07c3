package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	msgs []tea.Msg
}

func (r *recorder) Send(msg tea.Msg) { r.msgs = append(r.msgs, msg) }

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func TestTUI_SendsMessages(t *testing.T) {
	rec := &recorder{}
	u := &TUI{program: rec}

	u.UpdateStatus("memory_kv_0 (gpt-4o)")
	u.UpdateTurn(2)
	u.Log("short_term_memory_list_keys -> {}")
	u.ScenarioDone("memory_kv_0", nil)

	assert.Equal(t, []tea.Msg{
		StatusMsg("memory_kv_0 (gpt-4o)"),
		TurnMsg(2),
		LogMsg("short_term_memory_list_keys -> {}"),
		DoneMsg{ID: "memory_kv_0"},
	}, rec.msgs)
}

func TestModel_Progress(t *testing.T) {
	m := update(t, NewModel(2),
		tea.WindowSizeMsg{Width: 80, Height: 24},
		StatusMsg("memory_kv_prereq_0 (gpt-4o)"),
		TurnMsg(1),
		LogMsg("short_term_memory_add -> ok"),
		DoneMsg{ID: "memory_kv_prereq_0"},
	)

	assert.True(t, m.Ready)
	assert.Equal(t, 1, m.Turn)
	assert.Equal(t, 1, m.Done)
	assert.InDelta(t, 0.5, m.Ratio(), 1e-9)
	assert.Equal(t, "memory_kv_prereq_0 complete", m.Status)
	assert.Equal(t, []string{"memory_kv_prereq_0 (gpt-4o)", "short_term_memory_add -> ok"}, m.Log)
	assert.Equal(t, 24-chrome, m.Viewport.Height)

	view := m.View()
	assert.Contains(t, view, "Recall memory scenarios")
	assert.Contains(t, view, "Scenario 1/2")
	assert.Contains(t, view, "short_term_memory_add -> ok")
}

func TestModel_NewScenarioResetsTurn(t *testing.T) {
	m := update(t, NewModel(2), TurnMsg(3), StatusMsg("memory_kv_1 (gpt-4o)"))
	assert.Equal(t, 0, m.Turn)
}

func TestModel_Failure(t *testing.T) {
	m := update(t, NewModel(1), DoneMsg{ID: "memory_kv_1", Err: errors.New("memory snapshot not found")})

	assert.True(t, m.Failed)
	assert.Equal(t, "memory_kv_1 failed: memory snapshot not found", m.Status)
	require.Len(t, m.Log, 1)
	assert.Contains(t, m.Log[0], "memory snapshot not found")
}

func TestModel_LogBeforeResize(t *testing.T) {
	m := update(t, NewModel(1), LogMsg("early"), tea.WindowSizeMsg{Width: 40, Height: 12})
	assert.Contains(t, m.View(), "early")
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(1)
	assert.Equal(t, "\n  Initializing...", m.View())

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, next.(Model).Quitting)

	next, cmd = m.Update(FinishedMsg{})
	require.NotNil(t, cmd)
	assert.True(t, next.(Model).Finished)
	assert.False(t, next.(Model).Quitting)
}

func TestModel_RatioClamps(t *testing.T) {
	assert.Zero(t, NewModel(0).Ratio())
	m := NewModel(1)
	m.Done = 3
	assert.Equal(t, 1.0, m.Ratio())
}
