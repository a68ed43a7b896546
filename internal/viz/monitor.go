package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/dynid/internal/fit"
)

const monitorHistory = 400

type progressMsg fit.Progress

type doneMsg struct{ err error }

// Monitor follows a fit running in another goroutine. Progress arrives on
// updates; the fit's final error, nil included, arrives on done.
type Monitor struct {
	title   string
	total   int
	updates <-chan fit.Progress
	done    <-chan error

	last     fit.Progress
	seen     bool
	history  []float64
	started  time.Time
	finished bool
	stopped  bool
	err      error
	width    int
}

func NewMonitor(title string, total int, updates <-chan fit.Progress, done <-chan error) Monitor {
	return Monitor{
		title:   title,
		total:   total,
		updates: updates,
		done:    done,
		history: make([]float64, 0, monitorHistory),
		started: time.Now(),
		width:   ChartWidth,
	}
}

func waitProgress(ch <-chan fit.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return progressMsg(p)
	}
}

func waitDone(ch <-chan error) tea.Cmd {
	return func() tea.Msg { return doneMsg{err: <-ch} }
}

func (m Monitor) Init() tea.Cmd {
	return tea.Batch(waitProgress(m.updates), waitDone(m.done))
}

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.stopped = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = max(20, min(msg.Width-20, ChartWidth))
	case progressMsg:
		m.record(fit.Progress(msg))
		return m, waitProgress(m.updates)
	case doneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m *Monitor) record(p fit.Progress) {
	m.last = p
	m.seen = true
	if len(m.history) == monitorHistory {
		copy(m.history, m.history[1:])
		m.history = m.history[:monitorHistory-1]
	}
	m.history = append(m.history, p.Average)
}

// Stopped reports whether the user quit before the fit finished.
func (m Monitor) Stopped() bool { return m.stopped && !m.finished }

// Err is the error the fit finished with.
func (m Monitor) Err() error { return m.err }

func (m Monitor) View() string {
	var b strings.Builder

	status := StatusRunning.Render("running")
	switch {
	case m.finished && m.err != nil:
		status = StatusFailed.Render("failed")
	case m.finished:
		status = StatusStopped.Render("finished")
	case m.stopped:
		status = StatusStopped.Render("stopping")
	}
	b.WriteString(Title.Render(m.title) + "  " + status + "\n\n")

	iter := 0
	if m.seen {
		iter = m.last.Iter + 1
	}
	b.WriteString(ProgressBar(iter, m.total, 40))
	b.WriteString(fmt.Sprintf("  %d/%d  %s\n\n", iter, m.total, time.Since(m.started).Truncate(time.Second)))

	if m.seen {
		b.WriteString(Metric("loss", fmt.Sprintf("%.4e", m.last.Loss)) + "\n")
		b.WriteString(Metric("average", fmt.Sprintf("%.4e", m.last.Average)) + "\n")
		b.WriteString(Metric("fit term", fmt.Sprintf("%.4e", m.last.Fit)) + "\n")
		if m.last.Consistency != 0 {
			b.WriteString(Metric("consistency", fmt.Sprintf("%.4e", m.last.Consistency)) + "\n")
		}
	}

	if data := LogLoss(m.history); len(data) > 1 {
		chart := asciigraph.Plot(data,
			asciigraph.Height(8),
			asciigraph.Width(m.width),
			asciigraph.Caption("log10 average loss"),
		)
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Render(chart) + "\n")
	}

	if m.err != nil {
		b.WriteString("\n" + StatusFailed.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n" + KeyHint.Render("q: stop"))
	return Panel.Render(b.String())
}

// Watch runs fn in the background under a Monitor and returns what fn
// returned. Quitting the monitor cancels fn's context and waits for it.
func Watch[T any](ctx context.Context, title string, total int, fn func(context.Context, fit.Reporter) (T, error), opts ...tea.ProgramOption) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		v   T
		err error
	}
	updates := make(chan fit.Progress, 64)
	done := make(chan error, 1)
	result := make(chan outcome, 1)

	go func() {
		v, err := fn(ctx, fit.ChannelReporter(updates))
		result <- outcome{v, err}
		done <- err
	}()

	_, runErr := tea.NewProgram(NewMonitor(title, total, updates, done), opts...).Run()
	cancel()
	out := <-result
	if runErr != nil {
		return out.v, runErr
	}
	return out.v, out.err
}
