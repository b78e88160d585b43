// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/wikimedia/similarusers/internal/models"
)

func TestBreakerOpensOnSustainedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Retries = 0
	b := NewBreakerClient(NewMediaWikiClient(cfg))

	// Drive the breaker past its minimum request count at full failure rate.
	var lastErr error
	for i := 0; i < 15; i++ {
		_, lastErr = b.FetchEdits(context.Background(), models.UserKey{Text: "Alice"}, time.Time{}, nil)
	}
	if !errors.Is(lastErr, gobreaker.ErrOpenState) {
		t.Errorf("final error = %v, want ErrOpenState", lastErr)
	}
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"query": {"users": [{"name": "Alice", "groups": ["user"]}]}}`))
	}))
	defer srv.Close()

	b := NewBreakerClient(NewMediaWikiClient(testConfig(srv.URL)))
	status, err := b.CheckUser(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("CheckUser() error = %v", err)
	}
	if status != models.UserStatusRegistered {
		t.Errorf("CheckUser() = %v, want registered", status)
	}
}
