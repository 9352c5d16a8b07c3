package cli

import (
	"context"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/felixgeelhaar/recall/internal/ui/tui"
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// runInteractive drives r under a bubbletea program. Quitting the program
// cancels the run at the next turn or tool call.
func runInteractive(ctx context.Context, r *Runner, paths []string, out io.Writer, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts = append([]tea.ProgramOption{tea.WithOutput(out), tea.WithAltScreen()}, opts...)
	p := tea.NewProgram(tui.NewModel(len(paths)), opts...)
	r.UI = tui.NewTUI(p)

	done := make(chan error, 1)
	go func() {
		err := r.Run(ctx, paths)
		p.Send(tui.FinishedMsg{})
		done <- err
	}()

	_, perr := p.Run()
	cancel()
	if err := <-done; err != nil {
		return err
	}
	return perr
}
