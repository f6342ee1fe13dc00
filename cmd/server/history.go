package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pdf-assistant/internal/app"
	"pdf-assistant/internal/httputil"
	"pdf-assistant/internal/store"
)

func listHistoryHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httputil.Fail(deps.Log, w, "history disabled", nil, http.StatusNotFound)
			return
		}
		limit := store.DefaultListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > store.MaxListLimit {
				httputil.Fail(deps.Log, w, "limit must be between 1 and 100", err, http.StatusBadRequest)
				return
			}
			limit = n
		}
		items, err := deps.Store.ListInteractions(r.Context(), limit)
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to list history", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"interactions": items})
	}
}

func getHistoryHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			httputil.Fail(deps.Log, w, "history disabled", nil, http.StatusNotFound)
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.Fail(deps.Log, w, "invalid interaction id", err, http.StatusBadRequest)
			return
		}
		it, err := deps.Store.GetInteraction(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			httputil.Fail(deps.Log, w, store.ErrNotFound.Error(), err, http.StatusNotFound)
			return
		}
		if err != nil {
			httputil.Fail(deps.Log, w, "failed to get interaction", err, http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, it)
	}
}
