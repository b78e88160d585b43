// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package provider

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/wikimedia/similarusers/internal/logging"
	"github.com/wikimedia/similarusers/internal/metrics"
	"github.com/wikimedia/similarusers/internal/models"
)

// BreakerClient wraps MediaWikiClient with a circuit breaker so a dead or
// slow wiki API cannot tie up every query goroutine in retries.
//
// The breaker uses real time for its interval and timeout; tests exercise the
// wrapped client directly or drive the breaker with enough failures to trip.
type BreakerClient struct {
	client *MediaWikiClient
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// NewBreakerClient wraps the client. The breaker opens at a 60% failure rate
// over at least 10 requests, stays open for one minute, then probes with up
// to 3 half-open requests.
func NewBreakerClient(client *MediaWikiClient) *BreakerClient {
	const cbName = "mediawiki-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("Opening provider circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().
				Str("from", fromStr).
				Str("to", toStr).
				Msg("Provider circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerClient{client: client, cb: cb, name: cbName}
}

// FetchEdits proxies the client call through the breaker.
func (b *BreakerClient) FetchEdits(ctx context.Context, user models.UserKey, since time.Time, namespaces []int) ([]models.Edit, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.client.FetchEdits(ctx, user, since, namespaces)
	})
	if err != nil {
		return nil, err
	}
	edits, _ := result.([]models.Edit)
	return edits, nil
}

// FetchPageEditors proxies the client call through the breaker.
func (b *BreakerClient) FetchPageEditors(ctx context.Context, pageID int64, since time.Time) ([]models.PageRevision, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.client.FetchPageEditors(ctx, pageID, since)
	})
	if err != nil {
		return nil, err
	}
	revs, _ := result.([]models.PageRevision)
	return revs, nil
}

// CheckUser proxies the client call through the breaker.
func (b *BreakerClient) CheckUser(ctx context.Context, userText string) (models.UserStatus, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.client.CheckUser(ctx, userText)
	})
	if err != nil {
		return models.UserStatusMissing, err
	}
	status, _ := result.(models.UserStatus)
	return status, nil
}

// CheckUsers proxies the client call through the breaker.
func (b *BreakerClient) CheckUsers(ctx context.Context, userTexts []string) (map[string]models.UserStatus, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.client.CheckUsers(ctx, userTexts)
	})
	if err != nil {
		return nil, err
	}
	statuses, _ := result.(map[string]models.UserStatus)
	return statuses, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
