package practice

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"etude/internal/practice"
	"etude/internal/viewer"
)

// loadSongs fetches the song library for the picker.
func (m Model) loadSongs() tea.Cmd {
	return func() tea.Msg {
		songs, err := m.api.ListSongs(m.shutdownCtx)
		if err != nil {
			return errorMsg(fmt.Errorf("load songs: %w", err))
		}
		return songsLoadedMsg(songs)
	}
}

// loadSessions fetches recent practice history.
func (m Model) loadSessions() tea.Cmd {
	return func() tea.Msg {
		sessions, err := m.api.ListSessions(m.shutdownCtx, historyLimit)
		if err != nil {
			return errorMsg(fmt.Errorf("load sessions: %w", err))
		}
		return sessionsLoadedMsg(sessions)
	}
}

// selectSong points the navigator at songID and fetches its first
// recommendation.
func (m Model) selectSong(songID int) tea.Cmd {
	return func() tea.Msg {
		if err := m.navigator.SelectSong(m.shutdownCtx, songID); err != nil {
			return recommendFailedMsg{err: err}
		}
		return m.recommendationResult()
	}
}

// advance asks the recommender for the next fragment of the current song.
func (m Model) advance() tea.Cmd {
	return func() tea.Msg {
		if err := m.navigator.Advance(m.shutdownCtx); err != nil {
			return recommendFailedMsg{err: err}
		}
		return m.recommendationResult()
	}
}

// recommendationResult snapshots the navigator outcome into a message.
func (m Model) recommendationResult() tea.Msg {
	rec, ok := m.navigator.Current()
	return recommendationMsg{rec: rec, id: m.navigator.ActiveFragment(), hasRec: ok}
}

// loadSlot drives one slot through the load pipeline. Success and failure
// both land on the slot itself; the reply only says which generation
// finished so Update can drop results from a replaced fragment set.
func (m Model) loadSlot(slot *viewer.Slot) tea.Cmd {
	return func() tea.Msg {
		_ = m.sequencer.Load(m.shutdownCtx, slot)
		return slotLoadedMsg{generation: slot.Generation()}
	}
}

// submitRating posts one practice event and reports the outcome.
func (m Model) submitRating(ev practice.Event) tea.Cmd {
	return func() tea.Msg {
		if err := m.recorder.Submit(m.shutdownCtx, ev); err != nil {
			return ratingDroppedMsg{err: err}
		}
		return ratingRecordedMsg{ev: ev}
	}
}
