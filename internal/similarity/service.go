// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package similarity

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/wikimedia/similarusers/internal/logging"
	"github.com/wikimedia/similarusers/internal/models"
)

// ServiceOptions carries the query-shaping knobs of the engine.
type ServiceOptions struct {
	// DefaultK is used when a query does not specify a result count.
	DefaultK int

	// MaxK caps the requested result count.
	MaxK int

	// Lang selects the wiki for follow-up tool links, e.g. "en".
	Lang string

	// FollowupBaseURL is this service's public query URL, used for the
	// "similar" follow-up link.
	FollowupBaseURL string
}

// Service is the query engine: it ties the staleness detector, the store and
// the ranker together behind a single Query call.
type Service struct {
	store     *Store
	refresher *Refresher
	ranker    *Ranker
	provider  EditProvider
	opts      ServiceOptions
}

// NewService assembles the engine.
func NewService(store *Store, refresher *Refresher, ranker *Ranker, provider EditProvider, opts ServiceOptions) *Service {
	if opts.DefaultK < 1 {
		opts.DefaultK = 50
	}
	if opts.MaxK < opts.DefaultK {
		opts.MaxK = opts.DefaultK
	}
	return &Service{
		store:     store,
		refresher: refresher,
		ranker:    ranker,
		provider:  provider,
		opts:      opts,
	}
}

// Store exposes the underlying store for snapshot loading and health checks.
func (s *Service) Store() *Store {
	return s.store
}

// ClampK resolves a requested result count against the configured bounds.
// Zero or negative means "use the default".
func (s *Service) ClampK(k int) int {
	if k <= 0 {
		return s.opts.DefaultK
	}
	if k > s.opts.MaxK {
		return s.opts.MaxK
	}
	return k
}

// Query answers a similar-users request for the raw user text.
//
// The user text is normalized first; unknown users are classified via the
// provider before any refresh. Bot accounts are rejected. If the user's cached
// data is stale it is refreshed in-line; a provider failure during refresh of
// a user with cached data degrades to serving the cached data rather than
// failing the query.
//
// Errors: ErrInvalidArgument for unusable user text, ErrNotFound for users
// with no edits in the data, ErrBotUser for bot accounts and
// ErrReloadInProgress while a snapshot swap is underway.
func (s *Service) Query(ctx context.Context, rawUserText string, k int, followup bool) (*models.SimilarUsersResult, error) {
	done, ok := s.store.BeginOp()
	if !ok {
		return nil, ErrReloadInProgress
	}
	defer done()

	userText := models.NormalizeUserText(rawUserText)
	if userText == "" {
		return nil, fmt.Errorf("%w: empty user text", ErrInvalidArgument)
	}
	k = s.ClampK(k)

	meta, known := s.store.Metadata.Get(userText)
	user := models.UserKey{Text: userText, IsAnon: meta.IsAnon}
	if !known {
		status, err := s.provider.CheckUser(ctx, userText)
		if err != nil {
			return nil, fmt.Errorf("classifying user %s: %w", userText, err)
		}
		switch status {
		case models.UserStatusMissing:
			return nil, ErrNotFound
		case models.UserStatusBot:
			return nil, ErrBotUser
		case models.UserStatusAnon:
			user.IsAnon = true
		}
	}

	if s.refresher.IsStale(userText, time.Now().UTC()) {
		// The ungated refresh body: the query already holds the store's
		// operation gate for its full duration.
		if _, err := s.refresher.refresh(ctx, user); err != nil {
			if !known {
				return nil, fmt.Errorf("refreshing unknown user %s: %w", userText, err)
			}
			// Stale-but-cached beats failing the query outright.
			logging.Ctx(ctx).Warn().Err(err).
				Str("user", userText).
				Msg("Refresh failed, serving cached data")
		}
		meta, known = s.store.Metadata.Get(userText)
	}
	if !known {
		return nil, ErrNotFound
	}

	result := &models.SimilarUsersResult{
		UserText:       userText,
		NumEditsInData: meta.NumEdits,
		Results:        s.ranker.Rank(userText, k),
	}
	if !meta.EarliestEdit.IsZero() {
		first := meta.EarliestEdit
		result.FirstEditInData = &first
	}
	if !meta.LatestEdit.IsZero() {
		last := meta.LatestEdit
		result.LastEditInData = &last
	}

	if followup {
		for i := range result.Results {
			result.Results[i].FollowUp = s.followUpLinks(userText, result.Results[i].UserText, k)
		}
	}
	return result, nil
}

// followUpLinks builds the external investigation links for a user pair.
func (s *Service) followUpLinks(userText, neighbour string, k int) *models.FollowUp {
	wiki := s.opts.Lang + "wiki"
	return &models.FollowUp{
		Similar: fmt.Sprintf("%s?usertext=%s&k=%d",
			s.opts.FollowupBaseURL, url.QueryEscape(neighbour), k),
		EditorInteract: fmt.Sprintf(
			"https://sigma.toolforge.org/editorinteract.py?users=%s&users=%s&users=&startdate=&enddate=&ns=&server=%s&allusers=on",
			url.QueryEscape(userText), url.QueryEscape(neighbour), wiki),
		InteractionTimeline: fmt.Sprintf(
			"https://interaction-timeline.toolforge.org/?wiki=%s&user=%s&user=%s",
			wiki, url.QueryEscape(userText), url.QueryEscape(neighbour)),
	}
}
