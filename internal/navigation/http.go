// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package navigation

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hep-fcc/datacat/internal/platform/apperr"
	"github.com/hep-fcc/datacat/internal/platform/respond"
	"github.com/hep-fcc/datacat/pkg/pagination"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/schema", handler.getSchema)
	router.Get("/dropdown/{key}", handler.dropdown)
	router.Get("/search", handler.search)
}

func (handler *Handler) getSchema(writer http.ResponseWriter, request *http.Request) {
	payload, err := handler.service.Schema(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.JSON(writer, http.StatusOK, payload)
}

// dropdown serves the options of one navigation entity. The filters query
// parameter carries a JSON object; malformed JSON is ignored with a warning
// rather than failing the dropdown.
func (handler *Handler) dropdown(writer http.ResponseWriter, request *http.Request) {
	key := chi.URLParam(request, "key")

	filters := map[string]any{}
	if raw := request.URL.Query().Get("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filters); err != nil {
			handler.logger.Warn("dropdown_filters_unparseable",
				slog.String("key", key),
				slog.String("filters", raw))
			filters = map[string]any{}
		}
	}

	options, err := handler.service.Dropdown(request.Context(), key, filters)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, options)
}

// search is the generic filter-plus-text endpoint: one "<key>_name" query
// parameter per navigation entity, a free-text "search" term, and the
// standard pagination window.
func (handler *Handler) search(writer http.ResponseWriter, request *http.Request) {
	page, err := pagination.FromRequest(request)
	if err != nil {
		respond.Error(writer, request, apperr.ValidationError(err.Error()))
		return
	}

	query := request.URL.Query()

	analysis, err := handler.service.inspector.Analysis(request.Context())
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	nameFilters := make(map[string]string, len(analysis.NavigationOrder))
	for _, key := range analysis.NavigationOrder {
		if value := query.Get(key + "_name"); value != "" {
			nameFilters[key] = value
		}
	}

	total, records, err := handler.service.Search(request.Context(), nameFilters, query.Get("search"), page)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Search(writer, total, records)
}
