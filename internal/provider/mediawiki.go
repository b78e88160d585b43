// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/wikimedia/similarusers/internal/config"
	"github.com/wikimedia/similarusers/internal/metrics"
	"github.com/wikimedia/similarusers/internal/models"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024

// contribsPageSize is the uclimit per request; 500 is the non-bot maximum.
const contribsPageSize = 500

// revisionsPageSize is the rvlimit per request when listing a page's history.
const revisionsPageSize = 500

// userBatchSize is how many names fit in one list=users call.
const userBatchSize = 50

// MediaWikiClient fetches edit histories from the MediaWiki Action API.
//
// Outbound calls are rate limited client-side and retried with exponential
// backoff on transient failures. All methods are safe for concurrent use;
// each request carries its own context.
type MediaWikiClient struct {
	baseURL        string
	userAgent      string
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewMediaWikiClient creates a client for the configured wiki.
func NewMediaWikiClient(cfg *config.ProviderConfig) *MediaWikiClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.wikipedia.org", cfg.Lang)
	}
	return &MediaWikiClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: cfg.UserAgent,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:        rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		maxRetries:     cfg.Retries,
		retryBaseDelay: cfg.RetryDelay,
	}
}

// FetchEdits lists the user's edits strictly after since within the given
// namespaces, oldest first, following API continuation until exhausted.
func (c *MediaWikiClient) FetchEdits(ctx context.Context, user models.UserKey, since time.Time, namespaces []int) ([]models.Edit, error) {
	start := time.Now()

	params := url.Values{}
	params.Set("list", "usercontribs")
	params.Set("ucuser", user.Text)
	params.Set("ucdir", "newer")
	params.Set("uclimit", strconv.Itoa(contribsPageSize))
	params.Set("ucprop", "ids|timestamp")
	if !since.IsZero() {
		params.Set("ucstart", since.UTC().Format(time.RFC3339))
	}
	if len(namespaces) > 0 {
		params.Set("ucnamespace", joinInts(namespaces))
	}

	var edits []models.Edit
	for {
		resp, err := c.query(ctx, params)
		if err != nil {
			metrics.RecordProviderRequest("usercontribs", "error", time.Since(start))
			return nil, err
		}
		for _, contrib := range resp.Query.UserContribs {
			ts, err := time.Parse(time.RFC3339, contrib.Timestamp)
			if err != nil {
				metrics.RecordProviderRequest("usercontribs", "malformed", time.Since(start))
				return nil, fmt.Errorf("%w: bad timestamp %q", ErrMalformed, contrib.Timestamp)
			}
			// ucstart is inclusive; the fetch contract is strictly-after.
			if !ts.After(since) {
				continue
			}
			edits = append(edits, models.Edit{
				User:      user,
				PageID:    contrib.PageID,
				Timestamp: ts.UTC(),
				Namespace: contrib.NS,
			})
		}
		if resp.Continue.UcContinue == "" {
			break
		}
		params.Set("uccontinue", resp.Continue.UcContinue)
	}

	metrics.RecordProviderRequest("usercontribs", "ok", time.Since(start))
	return edits, nil
}

// FetchPageEditors lists a page's revisions strictly after since, oldest
// first, following API continuation until exhausted. Revisions whose author
// is suppressed are omitted.
func (c *MediaWikiClient) FetchPageEditors(ctx context.Context, pageID int64, since time.Time) ([]models.PageRevision, error) {
	start := time.Now()

	params := url.Values{}
	params.Set("prop", "revisions")
	params.Set("pageids", strconv.FormatInt(pageID, 10))
	params.Set("rvdir", "newer")
	params.Set("rvlimit", strconv.Itoa(revisionsPageSize))
	params.Set("rvprop", "timestamp|user")
	if !since.IsZero() {
		params.Set("rvstart", since.UTC().Format(time.RFC3339))
	}

	var revs []models.PageRevision
	for {
		resp, err := c.query(ctx, params)
		if err != nil {
			metrics.RecordProviderRequest("revisions", "error", time.Since(start))
			return nil, err
		}
		for _, page := range resp.Query.Pages {
			if page.Missing {
				continue
			}
			for _, rev := range page.Revisions {
				if rev.User == "" {
					continue
				}
				ts, err := time.Parse(time.RFC3339, rev.Timestamp)
				if err != nil {
					metrics.RecordProviderRequest("revisions", "malformed", time.Since(start))
					return nil, fmt.Errorf("%w: bad timestamp %q", ErrMalformed, rev.Timestamp)
				}
				// rvstart is inclusive; the fetch contract is strictly-after.
				if !ts.After(since) {
					continue
				}
				revs = append(revs, models.PageRevision{
					UserText:  rev.User,
					Timestamp: ts.UTC(),
				})
			}
		}
		if resp.Continue.RvContinue == "" {
			break
		}
		params.Set("rvcontinue", resp.Continue.RvContinue)
	}

	metrics.RecordProviderRequest("revisions", "ok", time.Since(start))
	return revs, nil
}

// CheckUser classifies a user text via list=users: a missing name has no
// account, an invalid name with the shape of an IP is an anonymous editor,
// and accounts in the bot group are flagged as bots.
func (c *MediaWikiClient) CheckUser(ctx context.Context, userText string) (models.UserStatus, error) {
	statuses, err := c.CheckUsers(ctx, []string{userText})
	if err != nil {
		return models.UserStatusMissing, err
	}
	status, ok := statuses[userText]
	if !ok {
		return models.UserStatusMissing, fmt.Errorf("%w: user %q absent from response", ErrMalformed, userText)
	}
	return status, nil
}

// CheckUsers classifies a set of user texts, batching names per list=users
// call. The result maps each requested name to its status.
func (c *MediaWikiClient) CheckUsers(ctx context.Context, userTexts []string) (map[string]models.UserStatus, error) {
	statuses := make(map[string]models.UserStatus, len(userTexts))
	for len(userTexts) > 0 {
		batch := userTexts
		if len(batch) > userBatchSize {
			batch = batch[:userBatchSize]
		}
		userTexts = userTexts[len(batch):]

		start := time.Now()
		params := url.Values{}
		params.Set("list", "users")
		params.Set("ususers", strings.Join(batch, "|"))
		params.Set("usprop", "groups")

		resp, err := c.query(ctx, params)
		if err != nil {
			metrics.RecordProviderRequest("users", "error", time.Since(start))
			return nil, err
		}
		if len(resp.Query.Users) == 0 {
			metrics.RecordProviderRequest("users", "malformed", time.Since(start))
			return nil, fmt.Errorf("%w: empty users list", ErrMalformed)
		}
		metrics.RecordProviderRequest("users", "ok", time.Since(start))

		for _, u := range resp.Query.Users {
			statuses[u.Name] = classifyUser(u)
		}
	}
	return statuses, nil
}

func classifyUser(u apiUser) models.UserStatus {
	switch {
	case u.Invalid:
		return models.UserStatusAnon
	case u.Missing:
		return models.UserStatusMissing
	default:
		for _, g := range u.Groups {
			if g == "bot" {
				return models.UserStatusBot
			}
		}
		return models.UserStatusRegistered
	}
}

// query performs one Action API call with rate limiting, retries and JSON
// decoding. Transient failures (network errors, 5xx, 429) are retried with
// doubling backoff up to the configured budget.
func (c *MediaWikiClient) query(ctx context.Context, params url.Values) (*apiResponse, error) {
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	reqURL := fmt.Sprintf("%s/w/api.php?%s", c.baseURL, params.Encode())

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryBaseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrUnreachable, err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			_ = resp.Body.Close()
			lastErr = ErrRateLimited
			continue
		case resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("%w: HTTP %d", ErrUnreachable, resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			body := readBodyForError(resp.Body)
			_ = resp.Body.Close()
			return nil, fmt.Errorf("%w: HTTP %d: %s", ErrMalformed, resp.StatusCode, body)
		}

		var out apiResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&out)
		_ = resp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, decodeErr)
		}
		if out.Error != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrMalformed, out.Error.Code, out.Error.Info)
		}
		return &out, nil
	}
	return nil, fmt.Errorf("retries exhausted: %w", lastErr)
}

// readBodyForError reads a bounded prefix of the response body for error
// reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, "|")
}
