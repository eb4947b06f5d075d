package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"etude/internal/practice"
	"etude/internal/store"
)

// testEnv builds a store, a data directory and a router for handler tests.
func testEnv(t *testing.T) (*store.Store, chi.Router, string) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	dataDir := t.TempDir()
	return st, NewRouter(st, dataDir), dataDir
}

// seedSong inserts one song with a narrow and a wide measure group.
func seedSong(t *testing.T, st *store.Store) int64 {
	t.Helper()
	songID, err := st.UpsertSong(store.Song{
		Title:         "Fallin",
		SourceFile:    "alicia-keys-fallin/alicia-keys-fallin.musicxml",
		TotalMeasures: 5,
	})
	require.NoError(t, err)
	require.NoError(t, st.ReplaceMeasureGroups(songID, []store.MeasureGroup{
		{ID: "alicia-keys-fallin|measure1-2", StartMeasure: 1, EndMeasure: 2},
		{ID: "alicia-keys-fallin|measure5", StartMeasure: 5, EndMeasure: 5},
	}))
	return songID
}

func do(t *testing.T, r chi.Router, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListSongs(t *testing.T) {
	st, r, _ := testEnv(t)

	rec := do(t, r, http.MethodGet, "/api/songs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	seedSong(t, st)

	rec = do(t, r, http.MethodGet, "/api/songs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var songs []store.Song
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &songs))
	require.Len(t, songs, 1)
	assert.Equal(t, "Fallin", songs[0].Title)
	assert.Equal(t, 5, songs[0].TotalMeasures)
}

func TestCreateSong(t *testing.T) {
	_, r, _ := testEnv(t)

	t.Run("valid", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/api/songs", map[string]any{
			"title": "Minuet", "composer": "Bach",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		var resp struct {
			ID int64 `json:"id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotZero(t, resp.ID)
	})

	t.Run("missing title", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/api/songs", map[string]any{"composer": "Bach"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("two songs without source files stay distinct", func(t *testing.T) {
		rec1 := do(t, r, http.MethodPost, "/api/songs", map[string]any{"title": "One"})
		rec2 := do(t, r, http.MethodPost, "/api/songs", map[string]any{"title": "Two"})
		require.Equal(t, http.StatusCreated, rec1.Code)
		require.Equal(t, http.StatusCreated, rec2.Code)

		rec := do(t, r, http.MethodGet, "/api/songs", nil)
		var songs []store.Song
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &songs))
		titles := make(map[string]bool)
		for _, s := range songs {
			titles[s.Title] = true
		}
		assert.True(t, titles["One"] && titles["Two"])
	})
}

func TestListMeasureGroups(t *testing.T) {
	st, r, _ := testEnv(t)
	songID := seedSong(t, st)
	otherID, err := st.UpsertSong(store.Song{Title: "Waltz", SourceFile: "waltz/waltz.musicxml"})
	require.NoError(t, err)
	require.NoError(t, st.ReplaceMeasureGroups(otherID, []store.MeasureGroup{
		{ID: "waltz|measure1", StartMeasure: 1, EndMeasure: 1},
	}))

	t.Run("filtered by song", func(t *testing.T) {
		rec := do(t, r, http.MethodGet, "/api/measure-groups?songId=1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var groups []store.MeasureGroup
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
		require.Len(t, groups, 2)
		for _, g := range groups {
			assert.Equal(t, songID, g.SongID)
			assert.Equal(t, "Fallin", g.SongTitle)
		}
	})

	t.Run("all groups", func(t *testing.T) {
		rec := do(t, r, http.MethodGet, "/api/measure-groups", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var groups []store.MeasureGroup
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
		assert.Len(t, groups, 3)
	})

	t.Run("bad songId", func(t *testing.T) {
		rec := do(t, r, http.MethodGet, "/api/measure-groups?songId=abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestNextMeasureFlow(t *testing.T) {
	st, r, _ := testEnv(t)
	songID := seedSong(t, st)

	// Nothing practiced yet: the earliest group wins and is unlearned.
	rec := do(t, r, http.MethodGet, "/api/songs/1/next-measure", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var first practice.Recommendation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, "alicia-keys-fallin|measure1-2", first.FragmentID)
	assert.Equal(t, practice.CategoryUnlearned, first.Stats.Category)
	assert.Zero(t, first.Stats.PracticeCount)
	assert.Nil(t, first.Stats.DueAt)

	// Practice it: the recommendation moves to the unpracticed group.
	post := do(t, r, http.MethodPost, "/api/practice", map[string]any{
		"songId": songID, "fragmentId": first.FragmentID, "rating": "easy",
	})
	require.Equal(t, http.StatusCreated, post.Code)

	rec = do(t, r, http.MethodGet, "/api/songs/1/next-measure", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var second practice.Recommendation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, "alicia-keys-fallin|measure5", second.FragmentID)

	// The practiced group's stats reflect the session.
	rc := NewRecommender(st)
	stats, err := rc.StatsFor(first.FragmentID)
	require.NoError(t, err)
	assert.Equal(t, practice.CategoryProficient, stats.Category)
	assert.Equal(t, 3, stats.BestRating)
	assert.Equal(t, 1, stats.PracticeCount)
	require.NotNil(t, stats.DueAt)
	require.NotNil(t, stats.LastPracticedAt)
	assert.Equal(t, 7*24*time.Hour, stats.DueAt.Sub(*stats.LastPracticedAt))
}

func TestNextMeasureEdgeCases(t *testing.T) {
	st, r, _ := testEnv(t)
	_, err := st.UpsertSong(store.Song{Title: "Empty", SourceFile: "empty/empty.musicxml"})
	require.NoError(t, err)

	t.Run("song without groups", func(t *testing.T) {
		rec := do(t, r, http.MethodGet, "/api/songs/1/next-measure", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown song", func(t *testing.T) {
		rec := do(t, r, http.MethodGet, "/api/songs/99/next-measure", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := do(t, r, http.MethodGet, "/api/songs/abc/next-measure", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSubmitPractice(t *testing.T) {
	st, r, _ := testEnv(t)
	songID := seedSong(t, st)

	t.Run("records a session", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/api/practice", map[string]any{
			"songId":          songID,
			"fragmentId":      "alicia-keys-fallin|measure1-2",
			"rating":          "hard",
			"durationSeconds": 42,
			"notes":           "slow it down",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		sessions, err := st.ListSessions(0)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		assert.Equal(t, "hard", sessions[0].Rating)
		assert.Equal(t, 42, sessions[0].DurationSeconds)
		assert.Equal(t, "Fallin", sessions[0].SongTitle)
		assert.Equal(t, 1, sessions[0].StartMeasure)
		assert.Equal(t, 2, sessions[0].EndMeasure)
	})

	t.Run("difficulty is an accepted alias", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/api/practice", map[string]any{
			"songId":     songID,
			"fragmentId": "alicia-keys-fallin|measure5",
			"difficulty": "medium",
		})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("invalid rating", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/api/practice", map[string]any{
			"songId": songID, "fragmentId": "alicia-keys-fallin|measure5", "rating": "impossible",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown fragment", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/api/practice", map[string]any{
			"songId": songID, "fragmentId": "alicia-keys-fallin|measure99", "rating": "easy",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSubmitPracticeFilenameFallback(t *testing.T) {
	st, r, _ := testEnv(t)
	seedSong(t, st)

	t.Run("filename with measure suffix", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/api/practice", map[string]any{
			"filename": "alicia-keys-fallin_measure_5.musicxml",
			"rating":   "easy",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		sessions, err := st.ListSessions(1)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		assert.Equal(t, "alicia-keys-fallin|measure5", sessions[0].FragmentID)
	})

	t.Run("filename plus explicit measure", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/api/practice", map[string]any{
			"filename": "alicia-keys-fallin.musicxml",
			"measure":  2,
			"rating":   "medium",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		sessions, err := st.ListSessions(1)
		require.NoError(t, err)
		assert.Equal(t, "alicia-keys-fallin|measure1-2", sessions[0].FragmentID)
	})

	t.Run("unresolvable", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/api/practice", map[string]any{
			"filename": "no-such-song_measure_1.musicxml", "rating": "easy",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no target at all", func(t *testing.T) {
		rec := do(t, r, http.MethodPost, "/api/practice", map[string]any{"rating": "easy"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSessionsLifecycle(t *testing.T) {
	st, r, _ := testEnv(t)
	songID := seedSong(t, st)

	for _, rating := range []string{"hard", "medium", "easy"} {
		_, err := st.InsertSession(store.Session{
			SongID:     songID,
			FragmentID: "alicia-keys-fallin|measure1-2",
			Rating:     rating,
		})
		require.NoError(t, err)
	}

	rec := do(t, r, http.MethodGet, "/api/practice-sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []store.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 3)

	del := do(t, r, http.MethodDelete, "/api/practice-sessions", nil)
	require.Equal(t, http.StatusOK, del.Code)
	var resp struct {
		Deleted int `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(del.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Deleted)

	rec = do(t, r, http.MethodGet, "/api/practice-sessions", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestDataEndpoint(t *testing.T) {
	_, r, dataDir := testEnv(t)

	fragment := []byte(`<score-partwise version="4.0"/>`)
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "fallin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "fallin", "measure_1.musicxml"), fragment, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "fallin", "fallin.mxl"), []byte("PK\x03\x04"), 0644))

	// A file the handler must never serve.
	secret := filepath.Join(filepath.Dir(dataDir), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("top secret"), 0644))

	t.Run("serves musicxml with media type", func(t *testing.T) {
		rec := do(t, r, http.MethodGet, "/data/fallin/measure_1.musicxml", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, mediaTypeMusicXML, rec.Header().Get("Content-Type"))
		assert.Equal(t, fragment, rec.Body.Bytes())
	})

	t.Run("serves mxl with compressed media type", func(t *testing.T) {
		rec := do(t, r, http.MethodGet, "/data/fallin/fallin.mxl", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, mediaTypeCompressed, rec.Header().Get("Content-Type"))
	})

	t.Run("missing file", func(t *testing.T) {
		rec := do(t, r, http.MethodGet, "/data/fallin/measure_9.musicxml", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("traversal is not found, not forbidden", func(t *testing.T) {
		for _, target := range []string{
			"/data/../secret.txt",
			"/data/%2e%2e/secret.txt",
			"/data/fallin/../../secret.txt",
		} {
			rec := do(t, r, http.MethodGet, target, nil)
			assert.Equal(t, http.StatusNotFound, rec.Code, "target %s", target)
			assert.NotContains(t, rec.Body.String(), "top secret")
		}
	})
}
