// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package schema

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/go-openapi/inflect"
	"github.com/jackc/pgx/v5/pgxpool"
)

// # Information-Schema Queries

// tablesQuery lists every base table in the public namespace with its
// columns, their types, nullability, ordinal position, and a primary-key
// flag derived from table_constraints.
const tablesQuery = `
	SELECT
		t.table_name,
		c.column_name,
		c.data_type,
		c.is_nullable = 'YES' AS is_nullable,
		pk.column_name IS NOT NULL AS is_primary_key,
		c.ordinal_position
	FROM information_schema.tables t
	JOIN information_schema.columns c ON t.table_name = c.table_name
	LEFT JOIN (
		SELECT tc.table_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
	) pk ON c.table_name = pk.table_name AND c.column_name = pk.column_name
	WHERE t.table_schema = 'public'
		AND t.table_type = 'BASE TABLE'
		AND t.table_name NOT LIKE 'pg_%'
		AND t.table_name NOT LIKE 'sql_%'
	ORDER BY t.table_name, c.ordinal_position`

// foreignKeysQuery lists every foreign-key edge in the public namespace.
const foreignKeysQuery = `
	SELECT
		tc.table_name,
		kcu.column_name,
		ccu.table_name AS referenced_table,
		ccu.column_name AS referenced_column
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
		ON tc.constraint_name = kcu.constraint_name
	JOIN information_schema.constraint_column_usage ccu
		ON ccu.constraint_name = tc.constraint_name
	WHERE tc.constraint_type = 'FOREIGN KEY'
		AND tc.table_schema = 'public'
	ORDER BY tc.table_name, kcu.column_name`

// The two metadata harvests are bounded: they exist to power field
// auto-detection and the sorting-fields endpoint, not to enumerate every key
// ever ingested.
const metadataKeysQueryTemplate = `
	SELECT DISTINCT jsonb_object_keys(metadata) AS metadata_key
	FROM %s
	WHERE metadata IS NOT NULL AND metadata != 'null'::jsonb
	ORDER BY metadata_key
	LIMIT $1`

const metadataNestedKeysQueryTemplate = `
	SELECT DISTINCT parent_key || '.' || jsonb_object_keys(parent_value) AS nested_key
	FROM (
		SELECT key AS parent_key, value AS parent_value
		FROM %s, jsonb_each(metadata)
		WHERE metadata IS NOT NULL
			AND metadata != 'null'::jsonb
			AND jsonb_typeof(value) = 'object'
	) nested_objects
	ORDER BY nested_key
	LIMIT $1`

// metadataKeyScanLimit caps the per-level metadata key harvest so startup
// cost stays bounded on large catalogs.
const metadataKeyScanLimit = 50

// # Inspector

// Inspector discovers the live database layout and caches the resulting
// [Analysis] and [Plan] for the lifetime of the process.
//
// The cache is written once on first use and read-only afterwards;
// Invalidate exists for the manual refresh endpoint and for tests.
type Inspector struct {
	pool          *pgxpool.Pool
	mainTable     string
	orderOverride []string
	logger        *slog.Logger

	mu       sync.RWMutex
	analysis *Analysis
	plan     *Plan
}

// NewInspector creates an Inspector for the configured main table.
// orderOverride, when non-empty, reorders the discovered navigation keys
// (unknown keys are dropped with a warning, missing keys are appended).
func NewInspector(pool *pgxpool.Pool, mainTable string, orderOverride []string, logger *slog.Logger) *Inspector {
	return &Inspector{
		pool:          pool,
		mainTable:     mainTable,
		orderOverride: orderOverride,
		logger:        logger,
	}
}

// Analysis returns the cached schema-analysis record, discovering it on
// first call.
func (inspector *Inspector) Analysis(ctx context.Context) (*Analysis, error) {
	inspector.mu.RLock()
	if cached := inspector.analysis; cached != nil {
		inspector.mu.RUnlock()
		return cached, nil
	}
	inspector.mu.RUnlock()

	inspector.mu.Lock()
	defer inspector.mu.Unlock()

	// A concurrent caller may have filled the cache while we waited.
	if inspector.analysis != nil {
		return inspector.analysis, nil
	}

	analysis, err := inspector.inspect(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := NewPlan(analysis)
	if err != nil {
		return nil, err
	}

	inspector.analysis = analysis
	inspector.plan = plan

	inspector.logger.Info("schema_analysis_cached",
		slog.String("main_table", analysis.MainTable),
		slog.Any("navigation_order", analysis.NavigationOrder),
		slog.Int("metadata_keys", len(analysis.MetadataKeys)),
	)

	return analysis, nil
}

// Plan returns the cached JOIN plan derived from the analysis.
func (inspector *Inspector) Plan(ctx context.Context) (*Plan, error) {
	if _, err := inspector.Analysis(ctx); err != nil {
		return nil, err
	}
	inspector.mu.RLock()
	defer inspector.mu.RUnlock()
	return inspector.plan, nil
}

// Invalidate drops the cached analysis so the next call re-inspects the
// database. Used after ingestion introduces metadata keys the auto-detection
// should pick up.
func (inspector *Inspector) Invalidate() {
	inspector.mu.Lock()
	inspector.analysis = nil
	inspector.plan = nil
	inspector.mu.Unlock()
}

// inspect runs the discovery queries and assembles the analysis record.
func (inspector *Inspector) inspect(ctx context.Context) (*Analysis, error) {
	if !ValidIdent(inspector.mainTable) {
		return nil, fmt.Errorf("schema: invalid main table name %q", inspector.mainTable)
	}

	tables, err := inspector.fetchTables(ctx)
	if err != nil {
		return nil, err
	}

	edges, err := inspector.fetchForeignKeys(ctx)
	if err != nil {
		return nil, err
	}

	if _, ok := tables[inspector.mainTable]; !ok {
		return nil, fmt.Errorf("schema: main table %q not found in database", inspector.mainTable)
	}

	keys, err := inspector.fetchMetadataKeys(ctx, metadataKeysQueryTemplate)
	if err != nil {
		return nil, err
	}
	nested, err := inspector.fetchMetadataKeys(ctx, metadataNestedKeysQueryTemplate)
	if err != nil {
		return nil, err
	}

	return buildAnalysis(inspector.mainTable, tables, edges, keys, nested, inspector.orderOverride, inspector.logger)
}

// discoveredTable accumulates the rows of tablesQuery per table.
type discoveredTable struct {
	columns    []Column
	primaryKey string
}

// foreignKeyEdge is one row of foreignKeysQuery.
type foreignKeyEdge struct {
	TableName        string
	ColumnName       string
	ReferencedTable  string
	ReferencedColumn string
}

func (inspector *Inspector) fetchTables(ctx context.Context) (map[string]*discoveredTable, error) {
	rows, err := inspector.pool.Query(ctx, tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("schema: failed to list tables: %w", err)
	}
	defer rows.Close()

	tables := make(map[string]*discoveredTable)
	for rows.Next() {
		var tableName string
		var column Column
		if err := rows.Scan(&tableName, &column.Name, &column.DataType, &column.Nullable, &column.Primary, &column.Ordinal); err != nil {
			return nil, fmt.Errorf("schema: failed to scan table row: %w", err)
		}

		table, ok := tables[tableName]
		if !ok {
			table = &discoveredTable{}
			tables[tableName] = table
		}
		table.columns = append(table.columns, column)
		if column.Primary {
			table.primaryKey = column.Name
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema: failed to read table rows: %w", err)
	}

	return tables, nil
}

func (inspector *Inspector) fetchForeignKeys(ctx context.Context) ([]foreignKeyEdge, error) {
	rows, err := inspector.pool.Query(ctx, foreignKeysQuery)
	if err != nil {
		return nil, fmt.Errorf("schema: failed to list foreign keys: %w", err)
	}
	defer rows.Close()

	var edges []foreignKeyEdge
	for rows.Next() {
		var edge foreignKeyEdge
		if err := rows.Scan(&edge.TableName, &edge.ColumnName, &edge.ReferencedTable, &edge.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("schema: failed to scan foreign key row: %w", err)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema: failed to read foreign key rows: %w", err)
	}

	return edges, nil
}

func (inspector *Inspector) fetchMetadataKeys(ctx context.Context, queryTemplate string) (map[string]bool, error) {
	query := fmt.Sprintf(queryTemplate, inspector.mainTable)
	rows, err := inspector.pool.Query(ctx, query, metadataKeyScanLimit)
	if err != nil {
		return nil, fmt.Errorf("schema: failed to harvest metadata keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("schema: failed to scan metadata key: %w", err)
		}
		keys[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema: failed to read metadata keys: %w", err)
	}

	return keys, nil
}

// # Analysis Assembly

// buildAnalysis turns the raw discovery rows into the frozen [Analysis].
// It is a pure function so the navigation derivation rules are testable
// without a database.
func buildAnalysis(
	mainTable string,
	tables map[string]*discoveredTable,
	edges []foreignKeyEdge,
	metadataKeys, metadataNested map[string]bool,
	orderOverride []string,
	logger *slog.Logger,
) (*Analysis, error) {
	main, ok := tables[mainTable]
	if !ok {
		return nil, fmt.Errorf("schema: main table %q not found in schema", mainTable)
	}

	analysis := &Analysis{
		MainTable:      mainTable,
		MainPrimaryKey: tablePrimaryKey(mainTable, main),
		MainColumns:    main.columns,
		Navigation:     make(map[string]NavigationTable),
		MetadataKeys:   metadataKeys,
		MetadataNested: metadataNested,
	}

	// Navigation tables are the targets of foreign keys emanating from the
	// main table, keyed by the FK column minus its "_id" suffix and ordered
	// by the ordinal of that column.
	type navEntity struct {
		key     string
		ordinal int
	}
	var entities []navEntity

	for _, edge := range edges {
		if edge.TableName != mainTable {
			continue
		}
		referenced, ok := tables[edge.ReferencedTable]
		if !ok {
			continue
		}

		key := entityKeyFromColumn(edge.ColumnName)
		column, ok := columnByName(main.columns, edge.ColumnName)
		if !ok {
			continue
		}

		analysis.Navigation[key] = NavigationTable{
			TableName:  edge.ReferencedTable,
			PrimaryKey: tablePrimaryKey(edge.ReferencedTable, referenced),
			NameColumn: nameColumn(referenced.columns),
			Columns:    referenced.columns,
		}
		entities = append(entities, navEntity{key: key, ordinal: column.Ordinal})
	}

	sort.Slice(entities, func(i, j int) bool { return entities[i].ordinal < entities[j].ordinal })
	for _, entity := range entities {
		analysis.NavigationOrder = append(analysis.NavigationOrder, entity.key)
	}

	analysis.NavigationOrder = applyOrderOverride(analysis.NavigationOrder, analysis.Navigation, orderOverride, logger)

	return analysis, nil
}

// tablePrimaryKey prefers the information-schema primary key; absent that it
// falls back to the singular-plus-_id convention.
func tablePrimaryKey(tableName string, table *discoveredTable) string {
	if table.primaryKey != "" {
		return table.primaryKey
	}
	return inflect.Singularize(tableName) + "_id"
}

// nameColumn picks "name" when present, else the first textual column by
// ordinal position. Empty when the table has no textual column at all.
func nameColumn(columns []Column) string {
	firstTextual := ""
	for _, column := range columns {
		if column.Name == "name" {
			return "name"
		}
		if firstTextual == "" && isTextualType(column.DataType) {
			firstTextual = column.Name
		}
	}
	return firstTextual
}

func isTextualType(dataType string) bool {
	switch dataType {
	case "text", "character varying", "character", "varchar", "citext":
		return true
	}
	return false
}

// entityKeyFromColumn strips the "_id" suffix from a foreign-key column.
func entityKeyFromColumn(column string) string {
	if len(column) > 3 && column[len(column)-3:] == "_id" {
		return column[:len(column)-3]
	}
	return column
}

func columnByName(columns []Column, name string) (Column, bool) {
	for _, column := range columns {
		if column.Name == name {
			return column, true
		}
	}
	return Column{}, false
}

// applyOrderOverride reorders the discovered keys per the navigation.order
// setting. Keys the database does not carry are dropped with a warning;
// discovered keys the setting omits are appended in their ordinal order.
func applyOrderOverride(discovered []string, navigation map[string]NavigationTable, override []string, logger *slog.Logger) []string {
	if len(override) == 0 {
		return discovered
	}

	seen := make(map[string]bool, len(override))
	ordered := make([]string, 0, len(discovered))
	for _, key := range override {
		if _, ok := navigation[key]; !ok {
			logger.Warn("navigation_order_unknown_key", slog.String("key", key))
			continue
		}
		if !seen[key] {
			ordered = append(ordered, key)
			seen[key] = true
		}
	}
	for _, key := range discovered {
		if !seen[key] {
			ordered = append(ordered, key)
		}
	}
	return ordered
}
