// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

/*
Package ingest imports FCC process dictionaries into the catalog: JSON
documents of the shape {"processes": [ … ]} produced by the sample
production tooling. Each process entry becomes one catalog record; its
navigation entities are derived from the storage path and created on demand.
*/
package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hep-fcc/datacat/internal/platform/apperr"
	"github.com/hep-fcc/datacat/pkg/convert"
)

// nameField is the one dictionary field that maps onto the record name
// column; every other field travels in the metadata document.
const nameField = "process-name"

// numericStringFields are dictionary fields the producers sometimes emit as
// strings ("0.0126") and sometimes as numbers. They are coerced to float so
// numeric query comparisons behave the same either way.
var numericStringFields = []string{"cross-section", "k-factor", "matching-eff"}

// Record is one shaped dictionary entry ready for import.
type Record struct {
	// Name is the unique record name.
	Name string
	// Metadata is the full dictionary entry minus the name field.
	Metadata map[string]any
	// Navigation maps entity keys to the names derived from the storage
	// path. Absent keys leave the foreign key NULL.
	Navigation map[string]string
}

// ParseDocument decodes an uploaded dictionary and shapes every process
// entry. Entries without a usable name get a generated one so a sloppy
// dictionary still imports.
func ParseDocument(raw []byte) ([]Record, error) {
	var document struct {
		Processes []map[string]any `json:"processes"`
	}
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, apperr.ValidationError("Uploaded dictionary is not valid JSON")
	}
	if len(document.Processes) == 0 {
		return nil, apperr.ValidationError(`Uploaded dictionary has no "processes" entries`)
	}

	now := time.Now().UTC()
	records := make([]Record, len(document.Processes))
	for i, process := range document.Processes {
		records[i] = shapeRecord(process, i, now)
	}
	return records, nil
}

// shapeRecord turns one raw dictionary entry into a Record: name extracted,
// description whitespace collapsed, stringly-typed numerics coerced, and
// navigation names read off the path.
func shapeRecord(process map[string]any, index int, now time.Time) Record {
	name, _ := process[nameField].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		name = generatedName(now, index)
	}

	metadata := make(map[string]any, len(process))
	for key, value := range process {
		if key == nameField {
			continue
		}
		metadata[key] = value
	}

	if description, ok := metadata["description"].(string); ok {
		metadata["description"] = collapseWhitespace(description)
	}
	for _, key := range numericStringFields {
		if text, ok := metadata[key].(string); ok {
			metadata[key] = convert.ToFloat64(text)
		}
	}

	path, _ := process["path"].(string)

	return Record{
		Name:       name,
		Metadata:   metadata,
		Navigation: NavigationFromPath(path),
	}
}

// generatedName names a record that arrived without a process-name. The
// timestamp keeps batches distinguishable, the uuid fragment keeps repeated
// imports from colliding.
func generatedName(now time.Time, index int) string {
	return fmt.Sprintf("unnamed_%d_%s_%d", now.Unix(), uuid.NewString()[:8], index)
}

// collapseWhitespace squeezes every whitespace run into one space. Producer
// descriptions routinely carry hard-wrapped line breaks and indentation.
func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
