package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vvka-141/roachtx/internal/bank"
)

const progressInterval = 250 * time.Millisecond

// Runner is the part of bank.Workload the progress view drives.
type Runner interface {
	Run(ctx context.Context) (bank.Stats, error)
	Progress() bank.Progress
}

type tickMsg time.Time

type runDoneMsg struct{}

type progressModel struct {
	spinner  spinner.Model
	keys     KeyMap
	progress func() bank.Progress
	cancel   context.CancelFunc
	current  bank.Progress
	done     bool
	stopping bool
}

func newProgressModel(progress func() bank.Progress, cancel context.CancelFunc) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return progressModel{
		spinner:  s,
		keys:     DefaultKeyMap(),
		progress: progress,
		cancel:   cancel,
	}
}

func tick() tea.Cmd {
	return tea.Tick(progressInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Stop) && !m.stopping {
			m.stopping = true
			m.cancel()
		}
		return m, nil
	case tickMsg:
		m.current = m.progress()
		return m, tick()
	case runDoneMsg:
		m.current = m.progress()
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	p := m.current
	line := fmt.Sprintf("%d transfers  %d retries  %d insufficient  %d ambiguous  %s",
		p.Transfers, p.Retries, p.Insufficient, p.Ambiguous, p.Elapsed.Round(time.Second))
	if m.done {
		return line + "\n"
	}
	status := "moving money"
	if m.stopping {
		status = "stopping"
	}
	return fmt.Sprintf("%s %s  %s\n%s\n", m.spinner.View(), status, line,
		HelpStyle.Render(m.keys.Stop.Help().Key+" "+m.keys.Stop.Help().Desc))
}

// RunWithProgress runs r, drawing live counters on stderr when the
// terminal is interactive. Pressing q stops the run early; its Stats are
// still returned.
func RunWithProgress(ctx context.Context, r Runner) (bank.Stats, error) {
	if !IsInteractive() {
		return r.Run(ctx)
	}
	return runWithProgram(ctx, r, os.Stdin, os.Stderr)
}

func runWithProgram(ctx context.Context, r Runner, in io.Reader, out io.Writer) (bank.Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(r.Progress, cancel), tea.WithInput(in), tea.WithOutput(out))

	var (
		stats  bank.Stats
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		stats, runErr = r.Run(ctx)
		p.Send(runDoneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
	}
	<-done
	return stats, runErr
}
