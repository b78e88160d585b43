// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wikimedia/similarusers/internal/config"
	"github.com/wikimedia/similarusers/internal/models"
)

func testConfig(baseURL string) *config.ProviderConfig {
	return &config.ProviderConfig{
		Lang:          "en",
		BaseURL:       baseURL,
		UserAgent:     "similarusers-test/1.0",
		Retries:       2,
		RetryDelay:    time.Millisecond,
		Timeout:       2 * time.Second,
		RatePerSecond: 1000,
		RateBurst:     100,
	}
}

func TestFetchEditsWithContinuation(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("list") != "usercontribs" || q.Get("ucuser") != "Alice" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Get("ucnamespace") != "0|1" {
			t.Errorf("ucnamespace = %q, want 0|1", q.Get("ucnamespace"))
		}
		calls++
		w.Header().Set("Content-Type", "application/json")
		if q.Get("uccontinue") == "" {
			fmt.Fprint(w, `{
				"continue": {"uccontinue": "20260110|123"},
				"query": {"usercontribs": [
					{"pageid": 11, "ns": 0, "timestamp": "2026-01-10T08:00:00Z"},
					{"pageid": 12, "ns": 1, "timestamp": "2026-01-10T09:00:00Z"}
				]}
			}`)
			return
		}
		fmt.Fprint(w, `{
			"query": {"usercontribs": [
				{"pageid": 13, "ns": 0, "timestamp": "2026-01-11T10:30:00Z"}
			]}
		}`)
	}))
	defer srv.Close()

	c := NewMediaWikiClient(testConfig(srv.URL))
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	edits, err := c.FetchEdits(context.Background(), models.UserKey{Text: "Alice"}, since, []int{0, 1})
	if err != nil {
		t.Fatalf("FetchEdits() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("API called %d times, want 2 (continuation)", calls)
	}
	if len(edits) != 3 {
		t.Fatalf("FetchEdits() returned %d edits, want 3", len(edits))
	}
	if edits[0].PageID != 11 || edits[2].PageID != 13 {
		t.Errorf("edits out of order: %+v", edits)
	}
	if edits[2].Timestamp.Hour() != 10 {
		t.Errorf("timestamp not parsed: %v", edits[2].Timestamp)
	}
}

func TestFetchEditsStrictlyAfterSince(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// ucstart is inclusive: the API echoes the boundary edit back.
		fmt.Fprint(w, `{
			"query": {"usercontribs": [
				{"pageid": 1, "ns": 0, "timestamp": "2026-01-01T00:00:00Z"},
				{"pageid": 2, "ns": 0, "timestamp": "2026-01-02T00:00:00Z"}
			]}
		}`)
	}))
	defer srv.Close()

	c := NewMediaWikiClient(testConfig(srv.URL))
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	edits, err := c.FetchEdits(context.Background(), models.UserKey{Text: "Alice"}, since, nil)
	if err != nil {
		t.Fatalf("FetchEdits() error = %v", err)
	}
	if len(edits) != 1 || edits[0].PageID != 2 {
		t.Errorf("edits = %+v, want only the edit after since", edits)
	}
}

func TestFetchEditsMalformedTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query": {"usercontribs": [{"pageid": 1, "ns": 0, "timestamp": "not-a-time"}]}}`)
	}))
	defer srv.Close()

	c := NewMediaWikiClient(testConfig(srv.URL))
	_, err := c.FetchEdits(context.Background(), models.UserKey{Text: "Alice"}, time.Time{}, nil)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("FetchEdits() error = %v, want ErrMalformed", err)
	}
}

func TestQueryRetriesOnRateLimit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"query": {"usercontribs": []}}`)
	}))
	defer srv.Close()

	c := NewMediaWikiClient(testConfig(srv.URL))
	if _, err := c.FetchEdits(context.Background(), models.UserKey{Text: "Alice"}, time.Time{}, nil); err != nil {
		t.Fatalf("FetchEdits() error = %v, want retry success", err)
	}
	if calls != 2 {
		t.Errorf("API called %d times, want 2", calls)
	}
}

func TestQueryExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewMediaWikiClient(testConfig(srv.URL))
	_, err := c.FetchEdits(context.Background(), models.UserKey{Text: "Alice"}, time.Time{}, nil)
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("FetchEdits() error = %v, want ErrUnreachable", err)
	}
}

func TestQueryAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": {"code": "baduser", "info": "Invalid value for user parameter"}}`)
	}))
	defer srv.Close()

	c := NewMediaWikiClient(testConfig(srv.URL))
	_, err := c.FetchEdits(context.Background(), models.UserKey{Text: "Alice"}, time.Time{}, nil)
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("FetchEdits() error = %v, want ErrMalformed", err)
	}
}

func TestCheckUser(t *testing.T) {
	tests := []struct {
		name string
		user string
		body string
		want models.UserStatus
	}{
		{
			"registered",
			"Alice",
			`{"query": {"users": [{"name": "Alice", "groups": ["user", "autoconfirmed"]}]}}`,
			models.UserStatusRegistered,
		},
		{
			"bot",
			"ClueBot",
			`{"query": {"users": [{"name": "ClueBot", "groups": ["bot", "user"]}]}}`,
			models.UserStatusBot,
		},
		{
			"missing",
			"Nobody",
			`{"query": {"users": [{"name": "Nobody", "missing": true}]}}`,
			models.UserStatusMissing,
		},
		{
			"anon ip",
			"192.0.2.7",
			`{"query": {"users": [{"name": "192.0.2.7", "invalid": true}]}}`,
			models.UserStatusAnon,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("list") != "users" {
					t.Errorf("unexpected query: %s", r.URL.RawQuery)
				}
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			c := NewMediaWikiClient(testConfig(srv.URL))
			got, err := c.CheckUser(context.Background(), tt.user)
			if err != nil {
				t.Fatalf("CheckUser() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CheckUser() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckUserEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query": {"users": []}}`)
	}))
	defer srv.Close()

	c := NewMediaWikiClient(testConfig(srv.URL))
	if _, err := c.CheckUser(context.Background(), "Alice"); !errors.Is(err, ErrMalformed) {
		t.Errorf("CheckUser() error = %v, want ErrMalformed", err)
	}
}

func TestCheckUsersBatches(t *testing.T) {
	var batches []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		names := strings.Split(r.URL.Query().Get("ususers"), "|")
		batches = append(batches, len(names))
		users := make([]string, len(names))
		for i, n := range names {
			users[i] = fmt.Sprintf(`{"name": %q, "groups": ["user"]}`, n)
		}
		fmt.Fprintf(w, `{"query": {"users": [%s]}}`, strings.Join(users, ","))
	}))
	defer srv.Close()

	names := make([]string, 120)
	for i := range names {
		names[i] = fmt.Sprintf("Editor%d", i)
	}

	c := NewMediaWikiClient(testConfig(srv.URL))
	statuses, err := c.CheckUsers(context.Background(), names)
	if err != nil {
		t.Fatalf("CheckUsers() error = %v", err)
	}
	if want := []int{50, 50, 20}; len(batches) != 3 || batches[0] != want[0] || batches[1] != want[1] || batches[2] != want[2] {
		t.Errorf("batch sizes = %v, want %v", batches, want)
	}
	if len(statuses) != 120 {
		t.Fatalf("CheckUsers() classified %d users, want 120", len(statuses))
	}
	if statuses["Editor119"] != models.UserStatusRegistered {
		t.Errorf("Editor119 = %v, want registered", statuses["Editor119"])
	}
}

func TestCheckUsersMixedStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query": {"users": [
			{"name": "Alice", "groups": ["user"]},
			{"name": "ClueBot", "groups": ["bot", "user"]},
			{"name": "Nobody", "missing": true},
			{"name": "192.0.2.7", "invalid": true}
		]}}`)
	}))
	defer srv.Close()

	c := NewMediaWikiClient(testConfig(srv.URL))
	statuses, err := c.CheckUsers(context.Background(), []string{"Alice", "ClueBot", "Nobody", "192.0.2.7"})
	if err != nil {
		t.Fatalf("CheckUsers() error = %v", err)
	}
	want := map[string]models.UserStatus{
		"Alice":     models.UserStatusRegistered,
		"ClueBot":   models.UserStatusBot,
		"Nobody":    models.UserStatusMissing,
		"192.0.2.7": models.UserStatusAnon,
	}
	for name, status := range want {
		if statuses[name] != status {
			t.Errorf("%s = %v, want %v", name, statuses[name], status)
		}
	}
}

func TestFetchPageEditorsWithContinuation(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("prop") != "revisions" || q.Get("pageids") != "42" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Get("rvdir") != "newer" {
			t.Errorf("rvdir = %q, want newer", q.Get("rvdir"))
		}
		calls++
		w.Header().Set("Content-Type", "application/json")
		if q.Get("rvcontinue") == "" {
			fmt.Fprint(w, `{
				"continue": {"rvcontinue": "20260110|456"},
				"query": {"pages": [{"pageid": 42, "revisions": [
					{"user": "Bob", "timestamp": "2026-01-05T08:00:00Z"},
					{"user": "Carol", "timestamp": "2026-01-06T09:00:00Z"}
				]}]}
			}`)
			return
		}
		fmt.Fprint(w, `{
			"query": {"pages": [{"pageid": 42, "revisions": [
				{"user": "Bob", "timestamp": "2026-01-11T10:30:00Z"}
			]}]}
		}`)
	}))
	defer srv.Close()

	c := NewMediaWikiClient(testConfig(srv.URL))
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	revs, err := c.FetchPageEditors(context.Background(), 42, since)
	if err != nil {
		t.Fatalf("FetchPageEditors() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("API called %d times, want 2 (continuation)", calls)
	}
	if len(revs) != 3 {
		t.Fatalf("FetchPageEditors() returned %d revisions, want 3", len(revs))
	}
	if revs[0].UserText != "Bob" || revs[1].UserText != "Carol" {
		t.Errorf("revisions out of order: %+v", revs)
	}
}

func TestFetchPageEditorsOmitsHiddenAndBoundary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// rvstart is inclusive: the boundary revision comes back. A revision
		// with a suppressed author has no user field at all.
		fmt.Fprint(w, `{
			"query": {"pages": [{"pageid": 42, "revisions": [
				{"user": "Bob", "timestamp": "2026-01-01T00:00:00Z"},
				{"timestamp": "2026-01-02T00:00:00Z"},
				{"user": "Carol", "timestamp": "2026-01-03T00:00:00Z"}
			]}]}
		}`)
	}))
	defer srv.Close()

	c := NewMediaWikiClient(testConfig(srv.URL))
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	revs, err := c.FetchPageEditors(context.Background(), 42, since)
	if err != nil {
		t.Fatalf("FetchPageEditors() error = %v", err)
	}
	if len(revs) != 1 || revs[0].UserText != "Carol" {
		t.Errorf("revisions = %+v, want only Carol", revs)
	}
}

func TestFetchPageEditorsMissingPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"query": {"pages": [{"pageid": 42, "missing": true}]}}`)
	}))
	defer srv.Close()

	c := NewMediaWikiClient(testConfig(srv.URL))
	revs, err := c.FetchPageEditors(context.Background(), 42, time.Time{})
	if err != nil {
		t.Fatalf("FetchPageEditors() error = %v", err)
	}
	if len(revs) != 0 {
		t.Errorf("revisions = %+v, want none for a missing page", revs)
	}
}

func TestUserAgentHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "similarusers-test/1.0" {
			t.Errorf("User-Agent = %q", ua)
		}
		fmt.Fprint(w, `{"query": {"usercontribs": []}}`)
	}))
	defer srv.Close()

	c := NewMediaWikiClient(testConfig(srv.URL))
	if _, err := c.FetchEdits(context.Background(), models.UserKey{Text: "Alice"}, time.Time{}, nil); err != nil {
		t.Fatalf("FetchEdits() error = %v", err)
	}
}
