package practice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"etude/internal/practice"
	"etude/internal/store"
	"etude/internal/viewer"
)

const measureThreeXML = `<?xml version="1.0" encoding="UTF-8"?>
<score-partwise version="4.0">
  <part-list>
    <score-part id="P1"><part-name>Piano</part-name></score-part>
  </part-list>
  <part id="P1">
    <measure number="3">
      <note><pitch><step>C</step><octave>4</octave></pitch><duration>4</duration></note>
    </measure>
  </part>
</score-partwise>`

// fakeBackend implements backendAPI in memory.
type fakeBackend struct {
	mu          sync.Mutex
	songs       []store.Song
	sessions    []store.Session
	rec         *practice.Recommendation
	recErr      error
	data        map[string]string
	submitErr   error
	submitCalls int

	// When set, SubmitPractice signals submitStarted then blocks on
	// submitGate. Lets tests hold a submission in flight.
	submitStarted chan struct{}
	submitGate    chan struct{}
}

func (f *fakeBackend) ListSongs(ctx context.Context) ([]store.Song, error) {
	return f.songs, nil
}

func (f *fakeBackend) ListSessions(ctx context.Context, limit int) ([]store.Session, error) {
	if limit < len(f.sessions) {
		return f.sessions[:limit], nil
	}
	return f.sessions, nil
}

func (f *fakeBackend) NextMeasure(ctx context.Context, songID int) (*practice.Recommendation, error) {
	if f.recErr != nil {
		return nil, f.recErr
	}
	return f.rec, nil
}

func (f *fakeBackend) SubmitPractice(ctx context.Context, ev practice.Event) error {
	f.mu.Lock()
	f.submitCalls++
	f.mu.Unlock()
	if f.submitStarted != nil {
		f.submitStarted <- struct{}{}
	}
	if f.submitGate != nil {
		<-f.submitGate
	}
	return f.submitErr
}

func (f *fakeBackend) FetchData(ctx context.Context, path string) ([]byte, string, error) {
	body, ok := f.data[path]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", viewer.ErrNotFound, path)
	}
	return []byte(body), "application/vnd.recordare.musicxml+xml", nil
}

func (f *fakeBackend) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitCalls
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// newTestModel builds a sized, booted model around f.
func newTestModel(t *testing.T, f *fakeBackend) Model {
	t.Helper()
	m := newModel(f)
	newM, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	model, ok := newM.(Model)
	if !ok {
		t.Fatal("Model type assertion failed")
	}
	model.isBooting = false
	return model
}

// startedPractice walks the model through song selection and the
// recommendation fetch, leaving slots created but not yet loaded.
func startedPractice(t *testing.T, f *fakeBackend) Model {
	t.Helper()
	m := newTestModel(t, f)

	newM, _ := m.Update(songsLoadedMsg(f.songs))
	m = newM.(Model)

	newM, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = newM.(Model)
	if cmd == nil {
		t.Fatal("song selection should dispatch the recommendation fetch")
	}
	if m.viewMode != practicingView {
		t.Fatalf("viewMode = %d, want practicingView", m.viewMode)
	}

	// Run the fetch against the fake synchronously.
	newM, _ = m.Update(m.selectSong(int(f.songs[0].ID))())
	return newM.(Model)
}

// loadAllSlots runs every pending slot load synchronously.
func loadAllSlots(t *testing.T, m Model) Model {
	t.Helper()
	for _, slot := range m.slots {
		newM, _ := m.Update(m.loadSlot(slot)())
		m = newM.(Model)
	}
	return m
}

func TestHarness_Stability(t *testing.T) {
	f := &fakeBackend{songs: []store.Song{{ID: 7, Title: "Waltz in A Minor", TotalMeasures: 24}}}
	m := newModel(f)

	if !m.isBooting {
		t.Error("model should be booting initially")
	}
	if m.View() == "" {
		t.Error("View before sizing should still render something")
	}

	t.Run("WindowResize", func(t *testing.T) {
		newM, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 50})
		mm, ok := newM.(Model)
		if !ok {
			t.Fatal("Model type assertion failed")
		}
		if mm.width != 100 || mm.height != 50 {
			t.Errorf("resize failed: got %dx%d, want 100x50", mm.width, mm.height)
		}
		_ = mm.View()
	})

	t.Run("SongsLoaded", func(t *testing.T) {
		newM, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 50})
		mm := newM.(Model)
		newM, _ = mm.Update(songsLoadedMsg(f.songs))
		mm = newM.(Model)

		if mm.isBooting {
			t.Error("model should leave booting state once songs arrive")
		}
		if len(mm.songList.Items()) != 1 {
			t.Errorf("song list has %d items, want 1", len(mm.songList.Items()))
		}
		if !strings.Contains(mm.View(), "Waltz in A Minor") {
			t.Error("picker should show the song title")
		}
	})
}

func TestHarness_Shutdown(t *testing.T) {
	f := &fakeBackend{}
	model := newModel(f)

	t.Run("GracefulShutdown", func(t *testing.T) {
		done := make(chan struct{})
		go func() {
			model.Shutdown()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Shutdown timed out")
		}
	})

	t.Run("IdempotentShutdown", func(t *testing.T) {
		// Must not panic on a second call.
		model.Shutdown()
	})

	t.Run("PoolClosedAfterShutdown", func(t *testing.T) {
		if got := model.pool.SetFragments(); got != nil {
			t.Error("closed pool should ignore SetFragments")
		}
	})
}

func TestRatingKeyWithoutFragmentIsNoop(t *testing.T) {
	f := &fakeBackend{}
	m := newTestModel(t, f)
	m.viewMode = practicingView

	for _, key := range []rune{'1', 'e', '2', 'm', '3', 'h', '4', 's'} {
		newM, cmd := m.Update(keyRune(key))
		m = newM.(Model)
		if cmd != nil {
			t.Errorf("key %q with no active fragment should not dispatch work", key)
		}
	}
	if got := f.submitCount(); got != 0 {
		t.Errorf("submissions = %d, want 0", got)
	}
}

func TestSecondRatingKeypressDoesNotDoubleSubmit(t *testing.T) {
	f := &fakeBackend{
		songs:         []store.Song{{ID: 7, Title: "Waltz in A Minor"}},
		rec:           &practice.Recommendation{FragmentID: "waltz|measure3"},
		data:          map[string]string{"waltz/measure_3.musicxml": measureThreeXML},
		submitStarted: make(chan struct{}, 1),
		submitGate:    make(chan struct{}),
	}
	m := startedPractice(t, f)

	// First rating: run the submission command in the background and hold
	// it open at the fake.
	newM, cmd := m.Update(keyRune('1'))
	m = newM.(Model)
	if cmd == nil {
		t.Fatal("first rating keypress should dispatch a submission")
	}
	ev := practice.Event{
		SongID:     7,
		FragmentID: "waltz|measure3",
		Rating:     practice.RatingEasy,
	}
	result := make(chan tea.Msg, 1)
	go func() { result <- m.submitRating(ev)() }()

	select {
	case <-f.submitStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("submission never reached the backend")
	}

	// Second rating while the first is still in flight: dropped with a
	// notice, no second event.
	newM, cmd = m.Update(keyRune('2'))
	m = newM.(Model)
	if cmd != nil {
		t.Error("second rating keypress while pending should not dispatch another submission")
	}
	if !strings.Contains(m.statusMessage, "previous rating") {
		t.Errorf("statusMessage = %q, want pending notice", m.statusMessage)
	}

	close(f.submitGate)
	select {
	case msg := <-result:
		if _, ok := msg.(ratingRecordedMsg); !ok {
			t.Errorf("first submission result = %T, want ratingRecordedMsg", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first submission never completed")
	}

	if got := f.submitCount(); got != 1 {
		t.Errorf("submissions = %d, want exactly 1", got)
	}
}

func TestPracticeFlowRendersSheet(t *testing.T) {
	f := &fakeBackend{
		songs: []store.Song{{ID: 7, Title: "Waltz in A Minor"}},
		rec: &practice.Recommendation{
			FragmentID: "waltz|measure3",
			Stats:      practice.Stats{Category: practice.CategoryUnlearned},
		},
		data: map[string]string{"waltz/measure_3.musicxml": measureThreeXML},
	}
	m := startedPractice(t, f)

	if len(m.slots) != 1 {
		t.Fatalf("slots = %d, want 1", len(m.slots))
	}
	if !m.isLoading {
		t.Error("model should be loading while the slot renders")
	}

	m = loadAllSlots(t, m)

	if m.isLoading {
		t.Error("loading flag should clear once every slot settles")
	}
	view := m.View()
	if !strings.Contains(view, "m3: C4") {
		t.Errorf("rendered view missing sheet content:\n%s", view)
	}
	if !strings.Contains(view, "unlearned") {
		t.Error("rendered view should show the stats category")
	}
}

func TestSlotFailureRendersInline(t *testing.T) {
	f := &fakeBackend{
		songs: []store.Song{{ID: 7, Title: "Waltz in A Minor"}},
		rec:   &practice.Recommendation{FragmentID: "waltz|measure9"},
		data:  map[string]string{}, // fetch will report not found
	}
	m := startedPractice(t, f)
	m = loadAllSlots(t, m)

	if len(m.slots) != 1 {
		t.Fatalf("slots = %d, want 1", len(m.slots))
	}
	st, err := m.slots[0].Status()
	if st != viewer.StatusFailed || err == nil {
		t.Fatalf("slot status = %v err = %v, want failed with reason", st, err)
	}
	if !strings.Contains(m.View(), "not found") {
		t.Error("failed slot should render its reason inline")
	}
}

func TestRecommendFailureKeepsPriorSheet(t *testing.T) {
	f := &fakeBackend{
		songs: []store.Song{{ID: 7, Title: "Waltz in A Minor"}},
		rec:   &practice.Recommendation{FragmentID: "waltz|measure3"},
		data:  map[string]string{"waltz/measure_3.musicxml": measureThreeXML},
	}
	m := startedPractice(t, f)
	m = loadAllSlots(t, m)

	gen := m.pool.Generation()
	newM, _ := m.Update(recommendFailedMsg{err: fmt.Errorf("server unreachable")})
	m = newM.(Model)

	if m.pool.Generation() != gen {
		t.Error("failed fetch must not touch the displayed slots")
	}
	view := m.View()
	if !strings.Contains(view, "m3: C4") {
		t.Error("previous sheet should stay on screen after a failed fetch")
	}
	if !strings.Contains(view, "Press n to retry") {
		t.Error("status area should carry the failure notice")
	}
}

func TestStaleSlotResultIgnored(t *testing.T) {
	f := &fakeBackend{
		songs: []store.Song{{ID: 7, Title: "Waltz in A Minor"}},
		rec:   &practice.Recommendation{FragmentID: "waltz|measure3"},
		data:  map[string]string{"waltz/measure_3.musicxml": measureThreeXML},
	}
	m := startedPractice(t, f)
	staleGen := m.pool.Generation()

	// The fragment set changes before the first load reports back.
	f.rec = &practice.Recommendation{FragmentID: "waltz|measure4"}
	newM, _ := m.Update(m.advance()())
	m = newM.(Model)
	if m.pool.Generation() == staleGen {
		t.Fatal("advance should create a new generation")
	}

	newM, _ = m.Update(slotLoadedMsg{generation: staleGen})
	m = newM.(Model)
	if !m.isLoading {
		t.Error("stale slot result must not clear the loading state of the new set")
	}
}

func TestRecommendationAfterLeavingPracticeIsDropped(t *testing.T) {
	f := &fakeBackend{
		songs: []store.Song{{ID: 7, Title: "Waltz in A Minor"}},
		rec:   &practice.Recommendation{FragmentID: "waltz|measure3"},
		data:  map[string]string{"waltz/measure_3.musicxml": measureThreeXML},
	}
	m := startedPractice(t, f)

	newM, _ := m.Update(keyRune('b'))
	m = newM.(Model)
	if m.viewMode != songPickerView {
		t.Fatal("b should return to the song picker")
	}
	gen := m.pool.Generation()

	newM, _ = m.Update(m.advance()())
	m = newM.(Model)
	if m.pool.Generation() != gen {
		t.Error("a late recommendation must not resurrect slots after teardown")
	}
	if len(m.slots) != 0 {
		t.Errorf("slots = %d, want 0 after teardown", len(m.slots))
	}
}

func TestNothingDueShowsCompletion(t *testing.T) {
	f := &fakeBackend{
		songs: []store.Song{{ID: 7, Title: "Waltz in A Minor"}},
		rec:   nil, // recommender has nothing due
	}
	m := startedPractice(t, f)

	if len(m.slots) != 0 {
		t.Errorf("slots = %d, want 0", len(m.slots))
	}
	if !strings.Contains(m.View(), "All caught up") {
		t.Error("view should announce there is nothing due")
	}
}

func TestHelpOverlay(t *testing.T) {
	f := &fakeBackend{}
	m := newTestModel(t, f)
	m.renderer = nil // force the plain-text fallback

	newM, _ := m.Update(keyRune('?'))
	m = newM.(Model)
	if m.viewMode != helpView {
		t.Fatalf("viewMode = %d, want helpView", m.viewMode)
	}
	if !strings.Contains(m.View(), "Ratings") {
		t.Error("help overlay should render the ratings table")
	}

	newM, _ = m.Update(keyRune('x'))
	m = newM.(Model)
	if m.viewMode != songPickerView {
		t.Error("any key should dismiss the help overlay")
	}
}

func TestHistoryScreen(t *testing.T) {
	practicedAt := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	f := &fakeBackend{
		sessions: []store.Session{{
			ID:          "s1",
			SongID:      7,
			SongTitle:   "Waltz in A Minor",
			FragmentID:  "waltz|measure3",
			PracticedAt: practicedAt,
			Rating:      "hard",
		}},
	}
	m := newTestModel(t, f)

	newM, cmd := m.Update(keyRune('H'))
	m = newM.(Model)
	if m.viewMode != historyView {
		t.Fatalf("viewMode = %d, want historyView", m.viewMode)
	}
	if cmd == nil {
		t.Fatal("opening history should dispatch the sessions fetch")
	}

	newM, _ = m.Update(m.loadSessions()())
	m = newM.(Model)
	view := m.View()
	if !strings.Contains(view, "Waltz in A Minor") || !strings.Contains(view, "hard") {
		t.Errorf("history view missing session row:\n%s", view)
	}

	newM, _ = m.Update(keyRune('b'))
	m = newM.(Model)
	if m.viewMode != songPickerView {
		t.Error("b should leave the history screen")
	}
}
