package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type progressMsg snapshot

type finishedMsg struct {
	err      error
	retained []string
}

type interactiveModel struct {
	cfg      demoConfig
	bar      progress.Model
	last     snapshot
	drawn    string
	retained []string
	err      error
	finished bool
	cancel   context.CancelFunc
}

func newInteractiveModel(cfg demoConfig, cancel context.CancelFunc) *interactiveModel {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 50
	return &interactiveModel{
		cfg:    cfg,
		bar:    bar,
		cancel: cancel,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-4, 10), 80)

	case progressMsg:
		m.last = snapshot(msg)

	case drawnMsg:
		m.drawn = string(msg)

	case finishedMsg:
		m.finished = true
		m.err = msg.err
		m.retained = msg.retained
	}
	return m, nil
}

type drawnMsg string

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Moving Heap"))
	b.WriteString(" ")
	b.WriteString(fmt.Sprintf("%s arena, %d roots", formatSize(m.cfg.ArenaSize), m.cfg.Roots))
	b.WriteString("\n\n")

	var pct float64
	if m.last.total > 0 {
		pct = float64(m.last.done) / float64(m.last.total)
	}
	b.WriteString(labelStyle.Render(fmt.Sprintf("%-8s", m.last.phase)))
	b.WriteString(m.bar.ViewAs(pct))
	b.WriteString("\n\n")

	st := m.last.stats
	rows := []struct {
		label string
		value string
	}{
		{"collections", fmt.Sprint(st.Collections)},
		{"steps", fmt.Sprintf("%d (%d retried)", st.Steps, st.FixupRetries)},
		{"copied", fmt.Sprintf("%s in %d objects", formatSize(st.BytesCopied), st.ObjectsForwarded)},
		{"segments", fmt.Sprintf("%d free of %d, %d freed, %d retained", st.FreeSegments, st.Segments, st.SegmentsFreed, st.SegmentsRetained)},
		{"heap", formatSize(st.HeapBytes)},
		{"commits", fmt.Sprintf("%d (%d races)", st.Commits, st.CommitRaces)},
	}
	for _, r := range rows {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-12s", r.label)))
		b.WriteString(valueStyle.Render(r.value))
		b.WriteString("\n")
	}

	if m.drawn != "" {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("drawn"))
		b.WriteString("\n")
		b.WriteString(m.drawn)
		b.WriteString("\n")
	}

	if m.finished {
		b.WriteString("\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n")
		} else {
			b.WriteString(labelStyle.Render("retained"))
			b.WriteString("\n")
			for i, v := range m.retained {
				if i > 0 {
					b.WriteString(" ")
				}
				if v == "empty" {
					b.WriteString(emptyStyle.Render(v))
				} else {
					b.WriteString(valueStyle.Render(v))
				}
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("q quit"))
	} else {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("q abort"))
	}

	return b.String()
}

func runInteractive(ctx context.Context, cfg demoConfig) error {
	// Log output would corrupt the alternate screen.
	log := zap.NewNop()
	installLogger(log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := newScenario(ctx, cfg, log)
	if err != nil {
		return err
	}

	p := tea.NewProgram(newInteractiveModel(cfg, cancel), tea.WithAltScreen())
	done := make(chan error, 1)
	go func() {
		err := s.run(ctx, func(pr snapshot) {
			if pr.phase == phaseInitial {
				p.Send(drawnMsg(s.drawnLine()))
			}
			p.Send(progressMsg(pr))
		})
		var retained []string
		if err == nil {
			retained = s.retained()
		}
		p.Send(finishedMsg{err: err, retained: retained})
		done <- err
	}()

	_, tuiErr := p.Run()
	cancel()
	runErr := <-done
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return multierr.Combine(tuiErr, runErr, s.close(context.Background()))
}
