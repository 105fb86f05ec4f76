// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package navigation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hep-fcc/datacat/internal/catalog"
	"github.com/hep-fcc/datacat/internal/gclql"
	"github.com/hep-fcc/datacat/internal/platform/apperr"
	"github.com/hep-fcc/datacat/internal/platform/config"
	"github.com/hep-fcc/datacat/internal/schema"
	"github.com/hep-fcc/datacat/pkg/pagination"
)

type Service struct {
	repo      *PostgresRepository
	records   catalog.Repository
	inspector *schema.Inspector
	settings  *config.Settings
	logger    *slog.Logger
}

func NewService(
	repo *PostgresRepository,
	records catalog.Repository,
	inspector *schema.Inspector,
	settings *config.Settings,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		records:   records,
		inspector: inspector,
		settings:  settings,
		logger:    logger,
	}
}

// Dropdown lists the options of one navigation entity under the raw filter
// document sent by the frontend.
func (service *Service) Dropdown(ctx context.Context, key string, rawFilters map[string]any) ([]Option, error) {
	return service.repo.Dropdown(ctx, key, rawFilters)
}

// Search is the generic filter-plus-text search: entity name filters AND
// together, and the free-text term ORs a substring match across every
// textual column of the main table.
func (service *Service) Search(ctx context.Context, nameFilters map[string]string, text string, page pagination.Params) (int64, []catalog.Record, error) {
	plan, err := service.inspector.Plan(ctx)
	if err != nil {
		return 0, nil, apperr.Internal(err)
	}

	sortExpr, err := gclql.SortExpr(plan, page.SortBy)
	if err != nil {
		return 0, nil, apperr.ValidationError("Unknown sort field: " + page.SortBy)
	}

	where, params := buildSearchWhere(plan, nameFilters, text)

	return service.records.Search(ctx, catalog.SearchQuery{
		Where:     where,
		Params:    params,
		SortExpr:  sortExpr,
		SortOrder: page.SortOrder,
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
}

// buildSearchWhere assembles the generic-search WHERE clause against the
// frozen JOIN plan. Unknown entity keys in the filters are skipped.
func buildSearchWhere(plan *schema.Plan, nameFilters map[string]string, text string) (string, []any) {
	var clauses []string
	var params []any

	for _, key := range plan.Analysis.NavigationOrder {
		name, ok := nameFilters[key]
		if !ok || name == "" {
			continue
		}
		nameColumn, ok := plan.NameColumnFor(key)
		if !ok {
			continue
		}
		params = append(params, name)
		clauses = append(clauses, fmt.Sprintf("%s ILIKE $%d", nameColumn, len(params)))
	}

	text = strings.TrimSpace(text)
	if text != "" {
		var textClauses []string
		params = append(params, text)
		placeholder := fmt.Sprintf("$%d", len(params))

		for _, column := range plan.Analysis.MainColumns {
			if !isTextualColumn(column) {
				continue
			}
			textClauses = append(textClauses,
				fmt.Sprintf("%s.%s ILIKE '%%' || %s || '%%'", schema.MainAlias, column.Name, placeholder))
		}

		if len(textClauses) > 0 {
			clauses = append(clauses, "("+strings.Join(textClauses, " OR ")+")")
		} else {
			params = params[:len(params)-1]
		}
	}

	return strings.Join(clauses, " AND "), params
}

func isTextualColumn(column schema.Column) bool {
	switch column.DataType {
	case "text", "character varying", "character", "varchar", "citext":
		return true
	}
	return false
}

// # Schema Contract

// SchemaPayload is the document the frontend renders itself from. The mixed
// key casing is the contract of the existing UI and must stay as is.
type SchemaPayload struct {
	Tables            []string                          `json:"tables"`
	MainTable         string                            `json:"main_table"`
	ForeignKeys       []ForeignKey                      `json:"foreign_keys"`
	NavigationConfig  map[string]EntityConfig           `json:"navigation_config"`
	MainTableSchema   []schema.Column                   `json:"mainTableSchema"`
	NavigationTables  map[string]schema.NavigationTable `json:"navigationTables"`
	NavigationOrder   []string                          `json:"navigationOrder"`
	Navigation        []MenuEntry                       `json:"navigation"`
	AppTitle          string                            `json:"appTitle"`
	SearchPlaceholder string                            `json:"searchPlaceholder"`
}

// ForeignKey describes one navigation edge of the main table.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// EntityConfig describes one navigation entity for the frontend.
type EntityConfig struct {
	TableName  string `json:"table_name"`
	PrimaryKey string `json:"primary_key"`
	NameColumn string `json:"name_column"`
	Label      string `json:"label"`
}

// MenuEntry is one navigation menu item, in display order.
type MenuEntry struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Table string `json:"table"`
}

// Schema assembles the frontend contract from the cached analysis and the
// deployment settings.
func (service *Service) Schema(ctx context.Context) (*SchemaPayload, error) {
	analysis, err := service.inspector.Analysis(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	payload := &SchemaPayload{
		Tables:            []string{analysis.MainTable},
		MainTable:         analysis.MainTable,
		ForeignKeys:       make([]ForeignKey, 0, len(analysis.NavigationOrder)),
		NavigationConfig:  make(map[string]EntityConfig, len(analysis.Navigation)),
		MainTableSchema:   analysis.MainColumns,
		NavigationTables:  analysis.Navigation,
		NavigationOrder:   analysis.NavigationOrder,
		Navigation:        make([]MenuEntry, 0, len(analysis.NavigationOrder)),
		AppTitle:          service.settings.Application.Title,
		SearchPlaceholder: service.settings.Application.SearchPlaceholder,
	}

	for _, key := range analysis.NavigationOrder {
		nav := analysis.Navigation[key]
		label := MenuLabel(key)

		payload.Tables = append(payload.Tables, nav.TableName)
		payload.ForeignKeys = append(payload.ForeignKeys, ForeignKey{
			Column:           key + "_id",
			ReferencedTable:  nav.TableName,
			ReferencedColumn: nav.PrimaryKey,
		})
		payload.NavigationConfig[key] = EntityConfig{
			TableName:  nav.TableName,
			PrimaryKey: nav.PrimaryKey,
			NameColumn: nav.NameColumn,
			Label:      label,
		}
		payload.Navigation = append(payload.Navigation, MenuEntry{
			Key:   key,
			Label: label,
			Table: nav.TableName,
		})
	}

	return payload, nil
}

// MenuLabel renders an entity key as its menu label, e.g. "beam_energy"
// becomes "Beam Energy". A fresh caser per call: cases.Caser carries
// internal state and must not be shared across request goroutines.
func MenuLabel(key string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}
