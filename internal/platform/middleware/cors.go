// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"

	"github.com/hep-fcc/datacat/internal/platform/config"
	"github.com/hep-fcc/datacat/internal/platform/constants"
)

// defaultOrigins covers the frontend dev servers; production deployments
// serve the frontend from the same origin and add extras via EXTRA_ORIGINS.
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

// CORS configures cross-origin access for the browser frontend.
//
// Credentials must be allowed because the session rides in a cookie, which
// in turn forbids the wildcard origin; the allow-list is explicit.
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	origins := make([]string, 0, len(defaultOrigins)+4)
	origins = append(origins, defaultOrigins...)

	for _, origin := range strings.Split(cfg.ExtraOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", constants.HeaderXRequestID},
		ExposedHeaders:   []string{constants.HeaderXRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
