package practice

import (
	"context"
	"fmt"
	"sync"

	"etude/cmd/etude/ui"
	"etude/internal/client"
	"etude/internal/config"
	"etude/internal/notation"
	"etude/internal/practice"
	"etude/internal/viewer"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// New assembles the full practice interface against the server named in
// cfg: HTTP client, navigator, render pool, sequencer, and recorder.
func New(cfg *config.Config) Model {
	api := client.NewWithConfig(client.Config{
		BaseURL:    cfg.Client.BaseURL,
		Timeout:    cfg.GetClientTimeout(),
		MaxRetries: cfg.Client.MaxRetries,
	})
	return newModel(api)
}

// newModel wires the model around one backend connection. Tests substitute
// a fake backend here.
func newModel(api backendAPI) Model {
	styles := ui.DefaultStyles()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Songs"
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)

	vp := viewport.New(80, 20)

	// Markdown renderer for the help overlay. A nil renderer is fine; help
	// then falls back to plain text.
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		renderer = nil
	}

	pool := viewer.NewPool(notation.DefaultFactory, notation.PracticeConfig())
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	m := Model{
		songList:  l,
		spinner:   sp,
		viewport:  vp,
		stopwatch: stopwatch.New(),
		styles:    styles,
		renderer:  renderer,

		viewMode:  songPickerView,
		isBooting: true,

		api:       api,
		navigator: practice.NewNavigator(api),
		pool:      pool,
		sequencer: viewer.NewSequencer(pool, api),

		statusChan: make(chan string, 10),

		shutdownOnce:   &sync.Once{},
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
	m.recorder = practice.NewRecorder(api, func(ev practice.Event) {
		m.ReportStatus(fmt.Sprintf("Recorded %s for %s", ev.Rating, ev.FragmentID))
	})
	return m
}

// Init starts the spinner, the status listener, and the initial library
// load.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForStatus(),
		m.loadSongs(),
	)
}

// Shutdown stops background work and releases the render pool. Safe to
// call multiple times; only the first call acts. Must run before tea.Quit.
func (m *Model) Shutdown() {
	m.shutdownOnce.Do(func() {
		// Canceling the root context unblocks the status listener and any
		// in-flight fetch. The status channel itself stays open so a late
		// reporter never hits a closed channel.
		if m.shutdownCancel != nil {
			m.shutdownCancel()
		}
		if m.pool != nil {
			m.pool.Close()
		}
	})
}

// performShutdown is a value-receiver wrapper for Shutdown that can be
// called from Update. Safe because Shutdown is guarded by the shared
// sync.Once.
func (m Model) performShutdown() {
	modelPtr := &m
	modelPtr.Shutdown()
}

// waitForStatus listens for one status update, then re-arms from Update.
func (m Model) waitForStatus() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-m.statusChan:
			return statusMsg(s)
		case <-m.shutdownCtx.Done():
			return nil
		}
	}
}

// ReportStatus sends a non-blocking status update.
func (m Model) ReportStatus(msg string) {
	if m.statusChan == nil {
		return
	}
	select {
	case m.statusChan <- msg:
	default:
		// Channel full, drop the update rather than block.
	}
}

// Run starts the interactive practice session and blocks until quit.
func Run(cfg *config.Config) error {
	model := New(cfg)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
