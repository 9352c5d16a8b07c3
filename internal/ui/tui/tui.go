// Package tui is the interactive terminal view of a scenario run.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type sender interface {
	Send(msg tea.Msg)
}

// TUI forwards runner progress to a running bubbletea program. It satisfies
// ui.UI and is safe to call from the runner's goroutine.
type TUI struct {
	program sender
}

func NewTUI(p *tea.Program) *TUI {
	return &TUI{program: p}
}

func (t *TUI) UpdateStatus(status string) {
	t.program.Send(StatusMsg(status))
}

func (t *TUI) UpdateTurn(turn int) {
	t.program.Send(TurnMsg(turn))
}

func (t *TUI) Log(msg string) {
	t.program.Send(LogMsg(msg))
}

func (t *TUI) ScenarioDone(id string, err error) {
	t.program.Send(DoneMsg{ID: id, Err: err})
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000"))
)

// chrome is the number of rows View uses around the log viewport.
const chrome = 6

type Model struct {
	Status   string
	Turn     int
	Done     int
	Total    int
	Failed   bool
	Log      []string
	Progress progress.Model
	Viewport viewport.Model
	Quitting bool
	Finished bool
	Ready    bool
	Width    int
	Height   int
}

type (
	LogMsg    string
	StatusMsg string
	TurnMsg   int

	// DoneMsg marks one scenario as finished.
	DoneMsg struct {
		ID  string
		Err error
	}

	// FinishedMsg is sent once the whole run has returned.
	FinishedMsg struct{}
)

// NewModel returns a model expecting total scenarios.
func NewModel(total int) Model {
	return Model{
		Status:   "Loading scenarios...",
		Total:    total,
		Progress: progress.New(progress.WithDefaultGradient()),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			m.Quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4
		if !m.Ready {
			m.Viewport = viewport.New(msg.Width, max(msg.Height-chrome, 1))
			m.Viewport.SetContent(strings.Join(m.Log, "\n"))
			m.Ready = true
		} else {
			m.Viewport.Width = msg.Width
			m.Viewport.Height = max(msg.Height-chrome, 1)
		}

	case LogMsg:
		m.appendLog(string(msg))

	case StatusMsg:
		m.Status = string(msg)
		m.Turn = 0
		m.appendLog(string(msg))

	case TurnMsg:
		m.Turn = int(msg)

	case DoneMsg:
		m.Done++
		if msg.Err != nil {
			m.Failed = true
			m.Status = fmt.Sprintf("%s failed: %v", msg.ID, msg.Err)
			m.appendLog(errorStyle.Render(m.Status))
		} else {
			m.Status = msg.ID + " complete"
		}

	case FinishedMsg:
		m.Finished = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

func (m *Model) appendLog(line string) {
	m.Log = append(m.Log, line)
	m.Viewport.SetContent(strings.Join(m.Log, "\n"))
	m.Viewport.GotoBottom()
}

// Ratio is the share of scenarios that have finished.
func (m Model) Ratio() float64 {
	if m.Total <= 0 {
		return 0
	}
	return min(float64(m.Done)/float64(m.Total), 1)
}

func (m Model) View() string {
	if !m.Ready {
		return "\n  Initializing..."
	}

	header := titleStyle.Render(" Recall memory scenarios ")
	style := infoStyle
	if m.Failed {
		style = errorStyle
	}
	status := style.Render(fmt.Sprintf(" %s ", m.Status))
	counts := fmt.Sprintf(" Scenario %d/%d  Turn %d ", m.Done, m.Total, m.Turn)

	view := fmt.Sprintf("%s%s\n%s\n\n%s\n\n%s",
		header, status, counts,
		m.Viewport.View(),
		m.Progress.ViewAs(m.Ratio()))

	if m.Quitting {
		return view + "\n  Quitting...\n"
	}
	return view
}
