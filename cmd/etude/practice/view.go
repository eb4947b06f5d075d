package practice

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"etude/internal/viewer"
)

const helpText = `# etude

Spaced repetition for sheet music. Pick a song, play the measure on
screen, then rate how it went. Weak spots come back sooner.

## Ratings

| Key    | Rating | Comes back in |
|--------|--------|---------------|
| 1 or e | easy   | 7 days        |
| 2 or m | medium | 3 days        |
| 3 or h | hard   | 1 day         |
| 4 or s | snooze | 1 hour        |

## Keys

- n: next recommendation without rating
- b: back to the song picker
- H: practice history
- ?: this help
- q: quit
`

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.isBooting {
		return m.renderBootScreen()
	}

	switch m.viewMode {
	case songPickerView:
		return lipgloss.JoinVertical(
			lipgloss.Left,
			m.renderHeader(),
			m.styles.App.Render(m.songList.View()),
			m.renderFooter(),
		)
	case helpView:
		return m.renderHelp()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderFooter(),
	)
}

// syncViewport re-renders the active screen's scrollable content.
func (m *Model) syncViewport() {
	switch m.viewMode {
	case practicingView:
		m.viewport.SetContent(m.renderSheet())
	case historyView:
		m.viewport.SetContent(m.renderSessions())
	}
}

// renderSheet draws the stats banner plus one framed box per slot. A
// failed slot shows its reason inline in the failure frame; sibling slots
// are unaffected.
func (m Model) renderSheet() string {
	var sb strings.Builder

	if m.hasRec {
		sb.WriteString(m.renderStats())
		sb.WriteString("\n\n")
	}

	if len(m.slots) == 0 {
		switch {
		case m.isLoading:
			sb.WriteString(m.styles.Muted.Render("Fetching next measure..."))
		case m.hasRec:
			sb.WriteString(m.styles.Muted.Render("Nothing to display."))
		default:
			sb.WriteString(m.styles.Muted.Render("All caught up! Press b to pick another song."))
		}
		return sb.String()
	}

	width := m.viewport.Width - 4
	if width < 20 {
		width = 20
	}

	for i, slot := range m.slots {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.renderSlot(slot, width))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderSlot draws one slot according to its status.
func (m Model) renderSlot(slot *viewer.Slot, width int) string {
	status, err := slot.Status()
	label := m.styles.Muted.Render(slot.Fragment().String())

	switch status {
	case viewer.StatusRendered:
		return lipgloss.JoinVertical(lipgloss.Left,
			label,
			m.styles.Sheet.Width(width).Render(slot.Content()),
		)
	case viewer.StatusFailed:
		reason := "render failed"
		if err != nil {
			reason = err.Error()
		}
		return lipgloss.JoinVertical(lipgloss.Left,
			label,
			m.styles.SheetFailed.Width(width).Render(m.styles.Error.Render(reason)),
		)
	default:
		body := fmt.Sprintf("%s Loading %s...", m.spinner.View(), slot.Fragment())
		return lipgloss.JoinVertical(lipgloss.Left,
			label,
			m.styles.Sheet.Width(width).Render(body),
		)
	}
}

// renderStats shows the active recommendation's practice statistics.
func (m Model) renderStats() string {
	st := m.rec.Stats
	parts := []string{
		m.styles.CategoryLabel(string(st.Category)),
		fmt.Sprintf("practiced %d times", st.PracticeCount),
	}
	if st.BestRating > 0 {
		parts = append(parts, fmt.Sprintf("best %d/3", st.BestRating))
	}
	if st.LastPracticedAt != nil {
		parts = append(parts, "last "+st.LastPracticedAt.Local().Format("Jan 2 15:04"))
	}
	if st.DueAt != nil {
		parts = append(parts, "due "+st.DueAt.Local().Format("Jan 2 15:04"))
	}
	return m.styles.StatusLine.Render(strings.Join(parts, " | "))
}

// renderSessions draws the practice history, newest first.
func (m Model) renderSessions() string {
	if len(m.sessions) == 0 {
		return m.styles.Muted.Render("No practice history yet.")
	}

	var sb strings.Builder
	sb.WriteString(m.styles.Subtitle.Render("Recent practice"))
	sb.WriteString("\n\n")
	for _, s := range m.sessions {
		title := s.SongTitle
		if title == "" {
			title = fmt.Sprintf("song %d", s.SongID)
		}
		line := fmt.Sprintf("%s  %s  %s  %s",
			s.PracticedAt.Local().Format("Jan 02 15:04"),
			m.styles.RatingBadge(s.Rating),
			m.styles.Bold.Render(title),
			m.styles.Muted.Render(s.FragmentID),
		)
		if s.DurationSeconds > 0 {
			line += m.styles.Muted.Render(fmt.Sprintf("  %ds", s.DurationSeconds))
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render(" etude ")

	var badge string
	switch {
	case m.viewMode == historyView:
		badge = m.styles.Badge.Render("history")
	case m.song.ID != 0 && m.viewMode == practicingView:
		badge = m.styles.Badge.Render(m.song.Title)
	}

	var status string
	if m.isLoading {
		msg := m.statusMessage
		if msg == "" {
			msg = "Working..."
		}
		status = lipgloss.JoinHorizontal(lipgloss.Center,
			m.spinner.View(), " ", m.styles.Muted.Render(msg))
	} else {
		status = m.styles.Success.Render("Ready")
	}

	headerLine := lipgloss.JoinHorizontal(lipgloss.Center, title, " ", badge, "  ", status)
	return lipgloss.JoinVertical(lipgloss.Left, headerLine, m.styles.RenderDivider(m.width))
}

func (m Model) renderFooter() string {
	var lines []string

	if m.err != nil {
		lines = append(lines, m.styles.Error.Render(m.err.Error()))
	}
	if !m.isLoading && m.statusMessage != "" {
		lines = append(lines, m.styles.StatusLine.Render(m.statusMessage))
	}

	var hints string
	switch m.viewMode {
	case practicingView:
		hints = "1/e easy | 2/m medium | 3/h hard | 4/s snooze | n next | b songs | H history | ? help | q quit"
	case historyView:
		hints = "b back | ? help | q quit"
	default:
		hints = "enter practice | / filter | H history | ? help | q quit"
	}

	clock := ""
	if m.viewMode == practicingView && m.stopwatch.Running() {
		clock = m.styles.KeyHint.Render(m.stopwatch.View()) + "  "
	}

	lines = append(lines,
		m.styles.RenderDivider(m.width),
		clock+m.styles.Muted.Render(hints+" | "+time.Now().Format("15:04")),
	)
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderBootScreen() string {
	content := lipgloss.JoinVertical(
		lipgloss.Center,
		m.styles.Title.Render("etude"),
		"\n",
		m.spinner.View(),
		"\n",
		m.styles.Muted.Render("Loading song library..."),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

// renderHelp draws the help overlay, markdown-rendered when possible.
func (m Model) renderHelp() string {
	width := m.width - 4
	if width > 72 {
		width = 72
	}
	if width < 20 {
		width = 20
	}
	frame := m.styles.Sheet.Width(width).Render(m.safeRenderMarkdown(helpText))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, frame)
}

// safeRenderMarkdown renders markdown through glamour, falling back to the
// raw text if the renderer is missing, errors, or panics.
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}
