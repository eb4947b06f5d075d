// Package practice provides the interactive terminal practice session.
// The functionality is split across multiple files:
//   - model_types.go: view modes, the Model, and tea message types
//   - model.go: construction, Init, lifecycle, status streaming
//   - update.go: the Update loop
//   - view.go: rendering functions
//   - commands.go: async work as tea commands
package practice

import (
	"context"
	"fmt"
	"sync"

	"etude/cmd/etude/ui"
	"etude/internal/fragment"
	"etude/internal/practice"
	"etude/internal/store"
	"etude/internal/viewer"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
)

// historyLimit caps how many sessions the history screen requests.
const historyLimit = 25

// viewMode determines which screen is active.
type viewMode int

const (
	songPickerView viewMode = iota
	practicingView
	historyView
	helpView
)

// songItem is a list item for the song picker.
type songItem struct {
	song store.Song
}

func (i songItem) Title() string { return i.song.Title }

func (i songItem) Description() string {
	desc := fmt.Sprintf("%d measures", i.song.TotalMeasures)
	if i.song.Composer != "" {
		desc = i.song.Composer + ", " + desc
	}
	return desc
}

func (i songItem) FilterValue() string { return i.song.Title + " " + i.song.Composer }

// apiClient is the slice of the HTTP client the picker and history screens
// use directly. The practice loop itself goes through the navigator, the
// sequencer, and the recorder.
type apiClient interface {
	ListSongs(ctx context.Context) ([]store.Song, error)
	ListSessions(ctx context.Context, limit int) ([]store.Session, error)
}

// backendAPI is everything the interface needs from one server connection.
type backendAPI interface {
	apiClient
	viewer.Fetcher
	practice.Submitter
	practice.RecommendationSource
}

// Model is the main model for the interactive practice session.
type Model struct {
	// UI components
	songList  list.Model
	spinner   spinner.Model
	viewport  viewport.Model
	stopwatch stopwatch.Model
	styles    ui.Styles
	renderer  *glamour.TermRenderer

	viewMode      viewMode
	helpReturn    viewMode // screen the help overlay goes back to
	historyReturn viewMode // screen the history view goes back to

	// Practice state
	song     store.Song
	rec      practice.Recommendation
	hasRec   bool
	slots    []*viewer.Slot
	sessions []store.Session

	isBooting     bool
	isLoading     bool
	err           error
	statusMessage string
	width         int
	height        int
	ready         bool

	// Backend
	api       apiClient
	navigator *practice.Navigator
	pool      *viewer.Pool
	sequencer *viewer.Sequencer
	recorder  *practice.Recorder

	// Status tracking
	statusChan chan string

	// Shutdown coordination
	shutdownOnce   *sync.Once         // pointer so Model copies share the once
	shutdownCtx    context.Context    // root context for background fetches
	shutdownCancel context.CancelFunc // cancels shutdownCtx on quit
}

// Messages for tea updates
type (
	// songsLoadedMsg delivers the library listing for the song picker.
	songsLoadedMsg []store.Song

	// sessionsLoadedMsg delivers recent practice history, newest first.
	sessionsLoadedMsg []store.Session

	// recommendationMsg reports a completed next-measure fetch. hasRec
	// false means the song has nothing due right now.
	recommendationMsg struct {
		rec    practice.Recommendation
		id     fragment.ID
		hasRec bool
	}

	// recommendFailedMsg reports a failed fetch; the previous sheet stays.
	recommendFailedMsg struct{ err error }

	// slotLoadedMsg reports one slot load finishing, success or failure.
	// generation gates stale results out of the view.
	slotLoadedMsg struct{ generation uint64 }

	// ratingRecordedMsg reports a successful practice submission.
	ratingRecordedMsg struct{ ev practice.Event }

	// ratingDroppedMsg reports a submission the recorder rejected or lost.
	ratingDroppedMsg struct{ err error }

	// errorMsg carries a screen-level failure into the status area.
	errorMsg error

	// statusMsg streams a one-line status update from background work.
	statusMsg string
)
