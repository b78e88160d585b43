// SimilarUsers - Wikipedia Editor Similarity Service
// Copyright 2026 Wikimedia Foundation
// SPDX-License-Identifier: Apache-2.0
// https://github.com/wikimedia/similarusers

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wikimedia/similarusers/internal/config"
	"github.com/wikimedia/similarusers/internal/middleware"
)

// Router assembles the HTTP surface of the service.
type Router struct {
	handler *Handler
	cfg     *config.APIConfig
}

// NewRouter creates a router around the handler.
func NewRouter(handler *Handler, cfg *config.APIConfig) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// chiMiddleware adapts http.HandlerFunc middleware to Chi's shape.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// Setup builds the route tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	origins := rt.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(rt.cfg.RateLimitReqs, rt.cfg.RateLimitWindow))
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Get("/similarusers", rt.handler.SimilarUsers)
		r.Post("/database/refresh", rt.handler.DatabaseRefresh)
	})

	r.Get("/healthz", rt.handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
