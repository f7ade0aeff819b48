package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/timelapse/internal/apperr"
	"github.com/starford/timelapse/internal/sceneservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *sceneservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *sceneservice.Service) *Handler {
	return &Handler{svc: svc}
}

func yearParam(r *http.Request) (int, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	return year, err == nil
}

// writeError maps service errors onto status codes.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrMalformedIdentifier), errors.Is(err, apperr.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListRuns handles GET /api/runs.
//
//	@Summary		List pipeline runs, newest first
//	@Tags			runs
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum number of runs"
//	@Success		200		{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"total": len(runs),
	})
}

// ListScenes handles GET /api/years/{year}/scenes.
//
//	@Summary		List the recorded scenes of a year
//	@Tags			scenes
//	@Produce		json
//	@Param			year	path		int	true	"Year"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/years/{year}/scenes [get]
func (h *Handler) ListScenes(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("year must be an integer"))
		return
	}
	scenes, err := h.svc.ListScenes(r.Context(), year)
	if err != nil {
		writeError(w, "list scenes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":   year,
		"scenes": scenes,
		"total":  len(scenes),
	})
}

// GetScene handles GET /api/scenes/{id}.
//
//	@Summary		Get a scene's status and files
//	@Tags			scenes
//	@Produce		json
//	@Param			id	path		string	true	"Scene identifier"
//	@Success		200	{object}	sceneservice.SceneDetail
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/scenes/{id} [get]
func (h *Handler) GetScene(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetScene(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get scene", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// SatelliteForYear handles GET /api/satellites/{year}.
//
//	@Summary		Describe the satellite generation used for a year
//	@Tags			satellites
//	@Produce		json
//	@Param			year	path		int	true	"Year"
//	@Success		200		{object}	sceneservice.SatelliteInfo
//	@Failure		400		{object}	errResponse
//	@Router			/satellites/{year} [get]
func (h *Handler) SatelliteForYear(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("year must be an integer"))
		return
	}
	info, err := h.svc.SatelliteForYear(r.Context(), year)
	if err != nil {
		writeError(w, "satellite for year", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
