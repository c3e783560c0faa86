package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/abelbrown/consonant/internal/card"
	"github.com/abelbrown/consonant/internal/config"
	"github.com/abelbrown/consonant/internal/fetch"
	"github.com/abelbrown/consonant/internal/logging"
	"github.com/abelbrown/consonant/internal/pipeline"
	"github.com/abelbrown/consonant/internal/store"
	"github.com/abelbrown/consonant/internal/urlstate"
)

const defaultHistoryLimit = 20

// CardsResponse is one rendered collection view.
type CardsResponse struct {
	Collection    string      `json:"collection"`
	Cards         []card.Card `json:"cards"`
	Total         int         `json:"total"`
	TotalPages    int         `json:"totalPages"`
	Page          int         `json:"page"`
	ShowPaginator bool        `json:"showPaginator"`
	// NextTransitionMs tells the client when to ask again. Zero means never.
	NextTransitionMs int64  `json:"nextTransitionMs,omitempty"`
	State            string `json:"state"`
	Degraded         bool   `json:"degraded,omitempty"`
}

// BookmarkResponse reports a bookmark after a change.
type BookmarkResponse struct {
	CardID     string `json:"cardId"`
	Bookmarked bool   `json:"bookmarked"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCollectionList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"collections": s.collectionIDs(),
	})
}

func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	coll, ok := s.requireCollection(w, r)
	if !ok {
		return
	}
	key := coll.Key()
	q := r.URL.Query()

	st, err := urlstate.Decode(q, coll.DefaultState())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st.Now = s.clock.Now()
	if t, ok := urlstate.ServerTime(q); ok {
		st.Now = t
	}

	bookmarks, err := s.store.Bookmarks(key)
	if err != nil {
		logging.Warn("api: bookmarks unavailable", "collection", key, "error", err)
	}
	st.BookmarkedIDs = bookmarks

	raw, loadErr := s.load(r.Context(), coll)

	res, err := pipeline.Run(card.UpdateBookmarkData(raw, bookmarks), coll.PipelineConfig(), st)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CardsResponse{
		Collection:       key,
		Cards:            res.Cards,
		Total:            res.Total,
		TotalPages:       res.TotalPages,
		Page:             res.Page,
		ShowPaginator:    res.ShowPaginator,
		NextTransitionMs: res.NextTransition.Milliseconds(),
		State:            urlstate.Encode(st).Encode(),
		Degraded:         loadErr != nil,
	})
}

// load fetches the full feed. A failed load yields no cards and is
// recorded, never surfaced as a server error.
func (s *Server) load(ctx context.Context, coll *config.Collection) ([]card.Card, error) {
	key := coll.Key()
	req := coll.FetchRequest()
	req.PartialLoadCount = 0

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var feed card.Feed
	err := s.source.Load(ctx, req, func(u fetch.Update) { feed = u.Feed })

	rec := store.FetchRecord{
		Collection: key,
		Endpoint:   req.Endpoint,
		CardCount:  len(feed.Cards),
	}
	if err != nil {
		rec.Err = err.Error()
		logging.Error("api: load failed", "collection", key, "error", err)
		s.beacon.Log("Failed to load cards", req.Endpoint, err, "consonant,api")
	}
	if recErr := s.store.RecordFetch(rec); recErr != nil {
		logging.Warn("api: record fetch failed", "collection", key, "error", recErr)
	}
	if err != nil {
		return []card.Card{}, err
	}
	return feed.Cards, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	coll, ok := s.requireCollection(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	records, err := s.store.RecentFetches(coll.Key(), limit)
	if err != nil {
		logging.Error("api: fetch history", "error", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"fetches": records})
}

func (s *Server) handleBookmarkList(w http.ResponseWriter, r *http.Request) {
	coll, ok := s.requireCollection(w, r)
	if !ok {
		return
	}
	ids, err := s.store.Bookmarks(coll.Key())
	if err != nil {
		logging.Error("api: list bookmarks", "error", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bookmarks": ids})
}

func (s *Server) handleBookmarkAdd(w http.ResponseWriter, r *http.Request) {
	s.changeBookmark(w, r, func(coll, id string) (bool, error) {
		return true, s.store.AddBookmark(coll, id)
	})
}

func (s *Server) handleBookmarkRemove(w http.ResponseWriter, r *http.Request) {
	s.changeBookmark(w, r, func(coll, id string) (bool, error) {
		return false, s.store.RemoveBookmark(coll, id)
	})
}

func (s *Server) handleBookmarkToggle(w http.ResponseWriter, r *http.Request) {
	s.changeBookmark(w, r, s.store.ToggleBookmark)
}

func (s *Server) changeBookmark(w http.ResponseWriter, r *http.Request, change func(coll, id string) (bool, error)) {
	coll, ok := s.requireCollection(w, r)
	if !ok {
		return
	}
	cardID := strings.TrimSpace(chi.URLParam(r, "cardID"))
	if cardID == "" {
		writeError(w, http.StatusBadRequest, "missing card id")
		return
	}

	on, err := change(coll.Key(), cardID)
	if err != nil {
		logging.Error("api: bookmark change failed",
			"request_id", middleware.GetReqID(r.Context()),
			"card", cardID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	writeJSON(w, http.StatusOK, BookmarkResponse{CardID: cardID, Bookmarked: on})
}

func (s *Server) requireCollection(w http.ResponseWriter, r *http.Request) (*config.Collection, bool) {
	id := chi.URLParam(r, "collectionID")
	coll, ok := s.collection(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collection: "+id)
		return nil, false
	}
	return coll, true
}
