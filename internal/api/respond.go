// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/wikimedia/similarusers/internal/logging"
	"github.com/wikimedia/similarusers/internal/models"
)

// respondJSON writes the standard success envelope.
func respondJSON(w http.ResponseWriter, status int, data interface{}, queryTime time.Duration) {
	resp := models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: queryTime.Milliseconds(),
		},
	}
	writeJSON(w, status, resp)
}

// respondError writes the standard error envelope.
func respondError(w http.ResponseWriter, status int, code, message string) {
	resp := models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}
