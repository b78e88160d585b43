// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/wikimedia/similarusers/internal/config"
	"github.com/wikimedia/similarusers/internal/logging"
	"github.com/wikimedia/similarusers/internal/metrics"
	"github.com/wikimedia/similarusers/internal/similarity"
	"github.com/wikimedia/similarusers/internal/snapshot"
)

// Handler serves the public API: similarity queries, health and the
// operational dataset-refresh trigger.
type Handler struct {
	service *similarity.Service
	snap    *snapshot.Store
	simCfg  *config.SimilarityConfig
	dbCfg   *config.DatabaseConfig
	started time.Time
}

// NewHandler wires the handler to the engine and the snapshot store.
func NewHandler(service *similarity.Service, snap *snapshot.Store, simCfg *config.SimilarityConfig, dbCfg *config.DatabaseConfig) *Handler {
	return &Handler{
		service: service,
		snap:    snap,
		simCfg:  simCfg,
		dbCfg:   dbCfg,
		started: time.Now().UTC(),
	}
}

// SimilarUsers handles GET /similarusers.
//
// Query parameters: usertext (required), k (optional positive integer,
// capped), followup (optional boolean).
func (h *Handler) SimilarUsers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userText := r.URL.Query().Get("usertext")
	if userText == "" {
		metrics.RecordQuery("invalid", 0, time.Since(start))
		respondError(w, http.StatusBadRequest, "missing_usertext",
			`missing usertext -- e.g. "Isaac (WMF)" for https://en.wikipedia.org/wiki/User:Isaac_(WMF)`)
		return
	}

	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			metrics.RecordQuery("invalid", 0, time.Since(start))
			respondError(w, http.StatusBadRequest, "invalid_k",
				"k must be a positive integer")
			return
		}
		k = parsed
	}

	followup := false
	if raw := r.URL.Query().Get("followup"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			metrics.RecordQuery("invalid", 0, time.Since(start))
			respondError(w, http.StatusBadRequest, "invalid_followup",
				"followup must be a boolean")
			return
		}
		followup = parsed
	}

	result, err := h.service.Query(r.Context(), userText, k, followup)
	if err != nil {
		h.writeQueryError(w, r, err, time.Since(start))
		return
	}

	metrics.RecordQuery("ok", len(result.Results), time.Since(start))
	respondJSON(w, http.StatusOK, result, time.Since(start))
}

func (h *Handler) writeQueryError(w http.ResponseWriter, r *http.Request, err error, elapsed time.Duration) {
	switch {
	case errors.Is(err, similarity.ErrInvalidArgument):
		metrics.RecordQuery("invalid", 0, elapsed)
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, similarity.ErrNotFound):
		metrics.RecordQuery("not_found", 0, elapsed)
		respondError(w, http.StatusNotFound, "user_not_found",
			"user has no edits in the supported data")
	case errors.Is(err, similarity.ErrBotUser):
		metrics.RecordQuery("bot", 0, elapsed)
		respondError(w, http.StatusForbidden, "bot_user",
			"bot accounts are not supported")
	case errors.Is(err, similarity.ErrReloadInProgress):
		metrics.RecordQuery("reloading", 0, elapsed)
		respondError(w, http.StatusServiceUnavailable, "reload_in_progress",
			"dataset reload in progress, retry shortly")
	default:
		metrics.RecordQuery("error", 0, elapsed)
		logging.Ctx(r.Context()).Error().Err(err).Msg("Query failed")
		respondError(w, http.StatusBadGateway, "upstream_error",
			"could not reach the edit data source")
	}
}

// healthStatus is the /healthz payload.
type healthStatus struct {
	Status    string    `json:"status"`
	DatasetID int64     `json:"dataset_id"`
	Cutoff    time.Time `json:"cutoff"`
	Users     int       `json:"users"`
	Uptime    string    `json:"uptime"`
}

// Health handles GET /healthz. Reports degraded when the snapshot database
// is unreachable; the in-memory engine keeps serving either way.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	store := h.service.Store()
	status := healthStatus{
		Status:    "ok",
		DatasetID: store.DatasetID(),
		Cutoff:    store.GlobalCutoff(),
		Users:     store.Metadata.Len(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	}
	code := http.StatusOK
	if err := h.snap.Ping(r.Context()); err != nil {
		status.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, status, 0)
}

// refreshResult is the /database/refresh payload.
type refreshResult struct {
	DatasetID int64     `json:"dataset_id"`
	Cutoff    time.Time `json:"cutoff"`
	Users     int       `json:"users"`
}

// DatabaseRefresh handles POST /database/refresh: ingest the configured
// resource directory as a new generation and swap the in-memory datasets.
func (h *Handler) DatabaseRefresh(w http.ResponseWriter, r *http.Request) {
	if h.dbCfg.ResourceDir == "" {
		respondError(w, http.StatusConflict, "no_resource_dir",
			"database.resource_dir is not configured")
		return
	}

	start := time.Now()
	store := h.service.Store()
	id, err := h.snap.Reload(r.Context(), store, h.dbCfg.ResourceDir, h.simCfg.CoeditLimit)
	if err != nil {
		if errors.Is(err, similarity.ErrReloadInProgress) {
			respondError(w, http.StatusConflict, "reload_in_progress",
				"a dataset reload is already running")
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("Dataset reload failed")
		respondError(w, http.StatusInternalServerError, "reload_failed", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, refreshResult{
		DatasetID: id,
		Cutoff:    store.GlobalCutoff(),
		Users:     store.Metadata.Len(),
	}, time.Since(start))
}
