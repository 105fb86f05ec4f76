// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package ingest

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hep-fcc/datacat/internal/platform/apperr"
	"github.com/hep-fcc/datacat/internal/platform/respond"
)

// maxDictionaryBytes caps an uploaded dictionary. Production dictionaries
// run to a few megabytes; this bound only guards against abuse.
const maxDictionaryBytes = 128 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the upload endpoint behind the curator middleware.
func (handler *Handler) RegisterRoutes(router chi.Router, mutate func(http.Handler) http.Handler) {
	router.With(mutate).Post("/upload-fcc-dict", handler.upload)
}

// upload accepts a dictionary either as a multipart "file" part or as the
// raw request body, and imports it synchronously.
func (handler *Handler) upload(writer http.ResponseWriter, request *http.Request) {
	raw, err := readDictionary(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.Import(request.Context(), raw)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Message(writer, http.StatusAccepted,
		fmt.Sprintf("Imported %d of %d records (%d failed)", result.Imported, result.Total, result.Failed))
}

func readDictionary(request *http.Request) ([]byte, error) {
	request.Body = http.MaxBytesReader(nil, request.Body, maxDictionaryBytes)

	if strings.HasPrefix(request.Header.Get("Content-Type"), "multipart/") {
		file, _, err := request.FormFile("file")
		if err != nil {
			return nil, apperr.ValidationError(`Multipart upload must carry a "file" part`)
		}
		defer file.Close()

		raw, err := io.ReadAll(file)
		if err != nil {
			return nil, apperr.ValidationError("Failed to read uploaded file")
		}
		return raw, nil
	}

	raw, err := io.ReadAll(request.Body)
	if err != nil {
		return nil, apperr.ValidationError("Failed to read request body")
	}
	return raw, nil
}
