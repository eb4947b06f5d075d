package practice

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"etude/internal/practice"
	"etude/internal/store"
	"etude/internal/viewer"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		listCmd tea.Cmd
		vpCmd   tea.Cmd
		spCmd   tea.Cmd
		swCmd   tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Ctrl+C always quits, from any screen.
		if msg.Type == tea.KeyCtrlC {
			m.performShutdown()
			return m, tea.Quit
		}

		switch m.viewMode {
		case songPickerView:
			return m.updateSongPickerKeys(msg)
		case practicingView:
			return m.updatePracticeKeys(msg)
		case historyView:
			return m.updateHistoryKeys(msg)
		case helpView:
			// Any key dismisses the overlay.
			m.viewMode = m.helpReturn
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		footerHeight := 4
		contentWidth := msg.Width - 2
		if contentWidth < 1 {
			contentWidth = 1
		}
		contentHeight := msg.Height - headerHeight - footerHeight
		if contentHeight < 1 {
			contentHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(contentWidth, contentHeight)
			m.ready = true
		} else {
			m.viewport.Width = contentWidth
			m.viewport.Height = contentHeight
		}
		m.songList.SetSize(contentWidth, contentHeight)
		m.syncViewport()
		return m, nil

	case songsLoadedMsg:
		m.isBooting = false
		items := make([]list.Item, 0, len(msg))
		for _, s := range msg {
			items = append(items, songItem{song: s})
		}
		m.statusMessage = fmt.Sprintf("%d songs in the library", len(msg))
		return m, m.songList.SetItems(items)

	case sessionsLoadedMsg:
		m.isLoading = false
		m.sessions = msg
		m.syncViewport()
		return m, nil

	case recommendationMsg:
		// A fetch that lands after the practice screen closed must not
		// resurrect slots in the pool.
		if m.viewMode != practicingView {
			return m, nil
		}
		m.isLoading = false
		m.err = nil
		m.rec = msg.rec
		m.hasRec = msg.hasRec

		if !msg.hasRec || msg.id.IsZero() {
			m.pool.SetFragments()
			m.slots = nil
			if msg.hasRec {
				m.statusMessage = "Recommendation has no displayable fragment."
			} else {
				m.statusMessage = "All caught up! Nothing due for this song."
			}
			m.syncViewport()
			return m, tea.Batch(m.stopwatch.Stop(), m.stopwatch.Reset())
		}

		m.slots = m.pool.SetFragments(msg.id)
		m.isLoading = true
		m.statusMessage = fmt.Sprintf("Loading %s...", msg.id)
		m.syncViewport()

		cmds := []tea.Cmd{m.spinner.Tick, m.stopwatch.Reset(), m.stopwatch.Start()}
		for _, slot := range m.slots {
			cmds = append(cmds, m.loadSlot(slot))
		}
		return m, tea.Batch(cmds...)

	case recommendFailedMsg:
		// The previous sheet stays up; only the status area changes.
		m.isLoading = false
		m.err = msg.err
		m.statusMessage = "Could not fetch the next measure. Press n to retry."
		return m, nil

	case slotLoadedMsg:
		if !m.pool.Current(msg.generation) {
			// A newer fragment set replaced this one while it loaded.
			return m, nil
		}
		m.isLoading = m.anySlotPending()
		m.syncViewport()
		return m, nil

	case ratingRecordedMsg:
		if m.viewMode != practicingView {
			return m, nil
		}
		m.isLoading = true
		m.statusMessage = fmt.Sprintf("Recorded %s. Fetching next measure...", msg.ev.Rating)
		return m, tea.Batch(m.spinner.Tick, m.advance())

	case ratingDroppedMsg:
		m.isLoading = false
		if errors.Is(msg.err, practice.ErrSubmitPending) {
			m.statusMessage = "Still recording the previous rating..."
			return m, nil
		}
		m.err = msg.err
		m.statusMessage = "Rating was not recorded. Try again."
		return m, nil

	case errorMsg:
		m.isBooting = false
		m.isLoading = false
		m.err = msg
		return m, nil

	case statusMsg:
		m.statusMessage = string(msg)
		return m, m.waitForStatus() // listen for the next update

	case spinner.TickMsg:
		if m.isLoading || m.isBooting {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}
		return m, nil

	case stopwatch.TickMsg, stopwatch.StartStopMsg, stopwatch.ResetMsg:
		m.stopwatch, swCmd = m.stopwatch.Update(msg)
		return m, swCmd
	}

	if m.viewMode == songPickerView {
		m.songList, listCmd = m.songList.Update(msg)
		return m, listCmd
	}
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, vpCmd
}

// updateSongPickerKeys routes keys on the song picker screen.
func (m Model) updateSongPickerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// While the picker filter is typing, every key belongs to the list.
	if m.songList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.songList, cmd = m.songList.Update(msg)
		return m, cmd
	}

	switch msg.Type {
	case tea.KeyEnter:
		item, ok := m.songList.SelectedItem().(songItem)
		if !ok {
			return m, nil
		}
		return m.startPracticing(item.song)
	case tea.KeyEsc:
		m.performShutdown()
		return m, tea.Quit
	}

	switch msg.String() {
	case "q":
		m.performShutdown()
		return m, tea.Quit
	case "H":
		return m.openHistory()
	case "?":
		return m.openHelp()
	}

	var cmd tea.Cmd
	m.songList, cmd = m.songList.Update(msg)
	return m, cmd
}

// updatePracticeKeys routes keys on the practice screen.
func (m Model) updatePracticeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		return m.backToSongs()
	}

	switch msg.String() {
	case "q":
		m.performShutdown()
		return m, tea.Quit
	case "b":
		return m.backToSongs()
	case "H":
		return m.openHistory()
	case "?":
		return m.openHelp()
	case "n":
		return m.skipFragment()
	case "1", "e":
		return m.rate(practice.RatingEasy)
	case "2", "m":
		return m.rate(practice.RatingMedium)
	case "3", "h":
		return m.rate(practice.RatingHard)
	case "4", "s":
		return m.rate(practice.RatingSnooze)
	}

	// Anything else scrolls the sheet.
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// updateHistoryKeys routes keys on the history screen.
func (m Model) updateHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		m.viewMode = m.historyReturn
		m.syncViewport()
		return m, nil
	}

	switch msg.String() {
	case "q":
		m.performShutdown()
		return m, tea.Quit
	case "b", "H":
		m.viewMode = m.historyReturn
		m.syncViewport()
		return m, nil
	case "?":
		return m.openHelp()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// startPracticing switches to the practice screen and fetches the first
// recommendation for song.
func (m Model) startPracticing(song store.Song) (tea.Model, tea.Cmd) {
	m.song = song
	m.viewMode = practicingView
	m.isLoading = true
	m.hasRec = false
	m.slots = nil
	m.err = nil
	m.statusMessage = fmt.Sprintf("Fetching next measure for %s...", song.Title)
	m.syncViewport()
	return m, tea.Batch(m.spinner.Tick, m.selectSong(int(song.ID)))
}

// backToSongs tears down the practice screen. The pool clears first so a
// late slot result cannot draw into the dead view.
func (m Model) backToSongs() (tea.Model, tea.Cmd) {
	m.pool.SetFragments()
	m.slots = nil
	m.hasRec = false
	m.isLoading = false
	m.err = nil
	m.statusMessage = ""
	m.viewMode = songPickerView
	return m, tea.Batch(m.stopwatch.Stop(), m.stopwatch.Reset())
}

// openHistory switches to the history screen and refreshes it.
func (m Model) openHistory() (tea.Model, tea.Cmd) {
	m.historyReturn = m.viewMode
	m.viewMode = historyView
	m.isLoading = true
	m.syncViewport()
	return m, tea.Batch(m.spinner.Tick, m.loadSessions())
}

// openHelp shows the help overlay on top of the current screen.
func (m Model) openHelp() (tea.Model, tea.Cmd) {
	m.helpReturn = m.viewMode
	m.viewMode = helpView
	return m, nil
}

// rate submits the active fragment's rating. With no fragment on display
// the key is a no-op; with a submission already in flight the extra press
// is dropped with a notice instead of a second event.
func (m Model) rate(r practice.Rating) (tea.Model, tea.Cmd) {
	id := m.navigator.ActiveFragment()
	if id.IsZero() {
		return m, nil
	}
	if m.recorder.Pending() {
		m.statusMessage = "Still recording the previous rating..."
		return m, nil
	}

	ev := practice.Event{
		SongID:          m.navigator.SongID(),
		FragmentID:      id.String(),
		Rating:          r,
		DurationSeconds: int(m.stopwatch.Elapsed().Seconds()),
	}
	m.isLoading = true
	m.statusMessage = fmt.Sprintf("Recording %s...", r)
	return m, tea.Batch(m.spinner.Tick, m.stopwatch.Stop(), m.submitRating(ev))
}

// skipFragment moves on to the next recommendation without recording a
// rating.
func (m Model) skipFragment() (tea.Model, tea.Cmd) {
	if m.navigator.SongID() == 0 {
		return m, nil
	}
	m.isLoading = true
	m.statusMessage = "Fetching next measure..."
	return m, tea.Batch(m.spinner.Tick, m.stopwatch.Stop(), m.advance())
}

// anySlotPending reports whether any current slot is still idle or
// loading.
func (m Model) anySlotPending() bool {
	for _, slot := range m.slots {
		st, _ := slot.Status()
		if st == viewer.StatusIdle || st == viewer.StatusLoading {
			return true
		}
	}
	return false
}
