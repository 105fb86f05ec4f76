// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package catalog

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/hep-fcc/datacat/internal/gclql"
	"github.com/hep-fcc/datacat/internal/platform/apperr"
	"github.com/hep-fcc/datacat/internal/schema"
	"github.com/hep-fcc/datacat/pkg/pagination"
)

// exportLimit is the page size used by the filtered-download endpoint, which
// intentionally bypasses pagination.
const exportLimit = 999999

type Service struct {
	repo      Repository
	inspector *schema.Inspector
	logger    *slog.Logger
}

func NewService(repo Repository, inspector *schema.Inspector, logger *slog.Logger) *Service {
	return &Service{repo: repo, inspector: inspector, logger: logger}
}

// Search compiles the query and executes one result page. The sort field is
// resolved through the same rules as query filters, so anything filterable
// is sortable; an unresolvable field is a validation error raised before any
// data query runs.
func (service *Service) Search(ctx context.Context, rawQuery string, page pagination.Params) (int64, []Record, error) {
	plan, err := service.inspector.Plan(ctx)
	if err != nil {
		return 0, nil, apperr.Internal(err)
	}

	sortExpr, err := gclql.SortExpr(plan, page.SortBy)
	if err != nil {
		return 0, nil, apperr.ValidationError("Unknown sort field: " + page.SortBy)
	}

	where, params := gclql.NewCompiler(plan, service.logger).Compile(rawQuery)

	return service.repo.Search(ctx, SearchQuery{
		Where:     where,
		Params:    params,
		SortExpr:  sortExpr,
		SortOrder: page.SortOrder,
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
}

// Export runs the same compiled search without a pagination window, for the
// filtered-download endpoint.
func (service *Service) Export(ctx context.Context, rawQuery string, page pagination.Params) ([]Record, error) {
	page.Limit = exportLimit
	page.Offset = 0

	_, records, err := service.Search(ctx, rawQuery, page)
	return records, err
}

// SortingFields lists every field the API accepts in sort_by: main-table
// columns, harvested metadata keys (top-level and one level nested), and the
// joined navigation names. Lock sentinels are internal and never offered.
func (service *Service) SortingFields(ctx context.Context) ([]string, error) {
	analysis, err := service.inspector.Analysis(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	fields := make([]string, 0, len(analysis.MainColumns)+len(analysis.MetadataKeys)+len(analysis.MetadataNested)+len(analysis.NavigationOrder))

	for _, column := range analysis.MainColumns {
		if column.Name == "metadata" {
			continue
		}
		fields = append(fields, column.Name)
	}

	metadataFields := make([]string, 0, len(analysis.MetadataKeys)+len(analysis.MetadataNested))
	for key := range analysis.MetadataKeys {
		if _, isSentinel := LockedField(key); isSentinel {
			continue
		}
		metadataFields = append(metadataFields, "metadata."+key)
	}
	for key := range analysis.MetadataNested {
		metadataFields = append(metadataFields, "metadata."+key)
	}
	sort.Strings(metadataFields)
	fields = append(fields, metadataFields...)

	for _, key := range analysis.NavigationOrder {
		fields = append(fields, key+"_name")
	}

	return fields, nil
}

func (service *Service) GetRecord(ctx context.Context, id int64) (Record, error) {
	return service.repo.GetByID(ctx, id)
}

func (service *Service) GetRecords(ctx context.Context, ids []int64) ([]Record, error) {
	if len(ids) == 0 {
		return []Record{}, nil
	}
	return service.repo.GetByIDs(ctx, ids)
}

// UpdateRecord renames and/or merges metadata. A present-but-blank name is
// rejected; locked metadata fields are preserved by the repository merge.
func (service *Service) UpdateRecord(ctx context.Context, id int64, name *string, metadata map[string]any) (Record, error) {
	if name != nil && strings.TrimSpace(*name) == "" {
		return nil, apperr.ValidationError("Record name cannot be blank",
			apperr.FieldError{Field: "name", Message: "must not be blank"})
	}
	return service.repo.Update(ctx, id, name, metadata)
}

// SetFieldLock pins or releases one metadata field against automated
// overwrites.
func (service *Service) SetFieldLock(ctx context.Context, id int64, field string, locked bool) error {
	field = strings.TrimSpace(field)
	if field == "" {
		return apperr.ValidationError("Field name is required",
			apperr.FieldError{Field: "field_name", Message: "must not be blank"})
	}
	if _, isSentinel := LockedField(field); isSentinel {
		return apperr.ValidationError("Lock sentinels cannot be locked themselves",
			apperr.FieldError{Field: "field_name", Message: "must be a plain metadata field"})
	}
	return service.repo.SetFieldLock(ctx, id, field, locked)
}

// DeleteRecords removes records in bulk. Referenced records refuse with a
// conflict rather than cascading.
func (service *Service) DeleteRecords(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.ValidationError("At least one id is required")
	}
	return service.repo.Delete(ctx, ids)
}
