// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package catalog

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hep-fcc/datacat/internal/platform/apperr"
	requestutil "github.com/hep-fcc/datacat/internal/platform/request"
	"github.com/hep-fcc/datacat/internal/platform/respond"
	"github.com/hep-fcc/datacat/pkg/pagination"
	queryutil "github.com/hep-fcc/datacat/pkg/query"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the catalog endpoints. Mutating endpoints go through
// the supplied middleware, which enforces authentication and the configured
// curator role.
func (handler *Handler) RegisterRoutes(router chi.Router, mutate func(http.Handler) http.Handler) {
	router.Get("/query", handler.search)
	router.Get("/download-filtered", handler.download)
	router.Get("/sorting-fields", handler.sortingFields)

	router.Post("/entities", handler.getEntities)
	router.Get("/entities/{id}", handler.getEntity)
	router.With(mutate).Put("/entities/{id}", handler.updateEntity)
	router.With(mutate).Put("/entities/{id}/metadata/lock", handler.setFieldLock)
	router.With(mutate).Delete("/entities", handler.deleteEntities)
}

func (handler *Handler) search(writer http.ResponseWriter, request *http.Request) {
	page, err := pagination.FromRequest(request)
	if err != nil {
		respond.Error(writer, request, apperr.ValidationError(err.Error()))
		return
	}

	total, records, err := handler.service.Search(request.Context(), request.URL.Query().Get("q"), page)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Search(writer, total, records)
}

// download streams the full filtered result set as a JSON attachment.
func (handler *Handler) download(writer http.ResponseWriter, request *http.Request) {
	page, err := pagination.FromRequest(request)
	if err != nil {
		respond.Error(writer, request, apperr.ValidationError(err.Error()))
		return
	}

	records, err := handler.service.Export(request.Context(), request.URL.Query().Get("q"), page)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.Header().Set("Content-Disposition", `attachment; filename="datacat_export.json"`)
	writer.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(writer).Encode(records)
}

func (handler *Handler) sortingFields(writer http.ResponseWriter, request *http.Request) {
	fields, err := handler.service.SortingFields(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, fields)
}

func (handler *Handler) getEntities(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		IDs []int64 `json:"ids"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	records, err := handler.service.GetRecords(request.Context(), body.IDs)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, records)
}

func (handler *Handler) getEntity(writer http.ResponseWriter, request *http.Request) {
	id, err := parseID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	record, err := handler.service.GetRecord(request.Context(), id)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, record)
}

func (handler *Handler) updateEntity(writer http.ResponseWriter, request *http.Request) {
	id, err := parseID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		Name     *string        `json:"name"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	record, err := handler.service.UpdateRecord(request.Context(), id, body.Name, body.Metadata)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, record)
}

func (handler *Handler) setFieldLock(writer http.ResponseWriter, request *http.Request) {
	id, err := parseID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var body struct {
		FieldName string `json:"field_name"`
		Locked    bool   `json:"locked"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.SetFieldLock(request.Context(), id, body.FieldName, body.Locked); err != nil {
		respond.Error(writer, request, err)
		return
	}

	action := "locked"
	if !body.Locked {
		action = "unlocked"
	}
	respond.Message(writer, http.StatusOK, fmt.Sprintf("Field %q %s", body.FieldName, action))
}

func (handler *Handler) deleteEntities(writer http.ResponseWriter, request *http.Request) {
	rawIDs := queryutil.StringSlice(request.URL.Query().Get("ids"))

	ids := make([]int64, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respond.Error(writer, request, apperr.ValidationError("Invalid id: "+raw))
			return
		}
		ids = append(ids, id)
	}

	deleted, err := handler.service.DeleteRecords(request.Context(), ids)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Message(writer, http.StatusOK, fmt.Sprintf("Deleted %d records", deleted))
}

func parseID(request *http.Request) (int64, error) {
	raw := chi.URLParam(request, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.ValidationError("Invalid record id: " + raw)
	}
	return id, nil
}
