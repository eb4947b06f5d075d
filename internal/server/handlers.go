package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"etude/internal/logging"
	"etude/internal/practice"
	"etude/internal/store"
)

// Handler holds the API route handlers.
type Handler struct {
	st  *store.Store
	rec *Recommender
}

// NewHandler creates a Handler over the given store.
func NewHandler(st *store.Store) *Handler {
	return &Handler{st: st, rec: NewRecommender(st)}
}

// ListSongs handles GET /api/songs.
func (h *Handler) ListSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := h.st.ListSongs()
	if err != nil {
		logging.ServerError("list songs failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if songs == nil {
		songs = []store.Song{}
	}
	writeJSON(w, http.StatusOK, songs)
}

// CreateSong handles POST /api/songs.
func (h *Handler) CreateSong(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req struct {
		Title         string `json:"title"`
		Composer      string `json:"composer"`
		SourceFile    string `json:"sourceFile"`
		TotalMeasures int    `json:"totalMeasures"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}
	id, err := h.st.UpsertSong(store.Song{
		Title:         req.Title,
		Composer:      req.Composer,
		SourceFile:    req.SourceFile,
		TotalMeasures: req.TotalMeasures,
	})
	if err != nil {
		logging.ServerError("create song failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// ListMeasureGroups handles GET /api/measure-groups?songId=.
func (h *Handler) ListMeasureGroups(w http.ResponseWriter, r *http.Request) {
	var songID int64
	if raw := r.URL.Query().Get("songId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid songId"))
			return
		}
		songID = id
	}
	groups, err := h.st.ListMeasureGroups(songID)
	if err != nil {
		logging.ServerError("list measure groups failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if groups == nil {
		groups = []store.MeasureGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

// NextMeasure handles GET /api/songs/{id}/next-measure.
func (h *Handler) NextMeasure(w http.ResponseWriter, r *http.Request) {
	songID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid song id"))
		return
	}
	rec, err := h.rec.Next(songID)
	if err != nil {
		logging.ServerError("next measure failed for song %d: %v", songID, err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, errorBody("no measure groups"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// SubmitPractice handles POST /api/practice. The body normally carries
// songId + fragmentId; older clients may send only a rendered filename and
// a measure number, which are resolved best-effort.
func (h *Handler) SubmitPractice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req struct {
		SongID          int64  `json:"songId"`
		FragmentID      string `json:"fragmentId"`
		MeasureGroupID  string `json:"measureGroupId"`
		Rating          string `json:"rating"`
		Difficulty      string `json:"difficulty"`
		DurationSeconds int    `json:"durationSeconds"`
		Notes           string `json:"notes"`
		Filename        string `json:"filename"`
		Measure         int    `json:"measure"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	ratingStr := req.Rating
	if ratingStr == "" {
		ratingStr = req.Difficulty
	}
	rating, err := practice.ParseRating(ratingStr)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid rating"))
		return
	}

	fragmentID := req.FragmentID
	if fragmentID == "" {
		fragmentID = req.MeasureGroupID
	}

	songID := req.SongID
	group, err := h.resolveTarget(songID, fragmentID, req.Filename, req.Measure)
	if err != nil {
		logging.ServerDebug("practice target unresolvable: %v", err)
		writeJSON(w, http.StatusBadRequest, errorBody("could not resolve practice target"))
		return
	}

	id, err := h.st.InsertSession(store.Session{
		SongID:          group.SongID,
		FragmentID:      group.ID,
		Rating:          string(rating),
		DurationSeconds: req.DurationSeconds,
		Notes:           req.Notes,
	})
	if err != nil {
		logging.ServerError("insert session failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// resolveTarget turns whatever identification the client sent into a known
// measure group.
func (h *Handler) resolveTarget(songID int64, fragmentID, filename string, measure int) (store.MeasureGroup, error) {
	if fragmentID != "" {
		return h.st.GetMeasureGroup(fragmentID)
	}

	if songID == 0 && filename != "" {
		stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
		if i := strings.Index(stem, "_measure_"); i >= 0 {
			if measure == 0 {
				if n, err := strconv.Atoi(stem[i+len("_measure_"):]); err == nil {
					measure = n
				}
			}
			stem = stem[:i]
		}
		song, err := h.st.FindSongBySourceStem(stem)
		if err != nil {
			return store.MeasureGroup{}, err
		}
		songID = song.ID
	}
	if songID == 0 || measure == 0 {
		return store.MeasureGroup{}, errors.New("no fragment identifier and no resolvable filename")
	}
	return h.st.FindGroupContaining(songID, measure)
}

// ListSessions handles GET /api/practice-sessions?limit=.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sessions, err := h.st.ListSessions(limit)
	if err != nil {
		logging.ServerError("list sessions failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// ClearSessions handles DELETE /api/practice-sessions.
func (h *Handler) ClearSessions(w http.ResponseWriter, r *http.Request) {
	n, err := h.st.ClearSessions()
	if err != nil {
		logging.ServerError("clear sessions failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}
