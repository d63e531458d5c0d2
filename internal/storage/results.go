package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eams/internal/record"
	"eams/internal/transformer/builtin"

	"github.com/google/uuid"
)

// DefaultResultsTable is where search results are stored unless configured.
const DefaultResultsTable = "eams_results"

// ResultColumns is the column order of ResultRows.
var ResultColumns = []string{"run_id", "query", "row_index", "case_number", "row_hash", "payload", "extracted_at"}

// ResultDedupeColumns make re-running a search idempotent: an unchanged row
// for the same query is not stored twice.
var ResultDedupeColumns = []string{"query", "row_hash"}

var rowHash = builtin.Hash{IncludeFieldNames: true, TrimSpace: true}

func notNull() *bool { f := false; return &f }

// NewRunID returns a fresh identifier for one search run.
func NewRunID() string { return uuid.NewString() }

// ResultsTable returns the TableSpec of the results table.
func ResultsTable(name string) TableSpec {
	if name == "" {
		name = DefaultResultsTable
	}
	return TableSpec{
		Name: name,
		Columns: []ColumnSpec{
			{Name: "run_id", Type: TypeString, Nullable: notNull()},
			{Name: "query", Type: TypeString, Nullable: notNull()},
			{Name: "row_index", Type: TypeBigint, Nullable: notNull()},
			{Name: "case_number", Type: TypeString},
			{Name: "row_hash", Type: TypeString, Nullable: notNull()},
			{Name: "payload", Type: TypeJSON, Nullable: notNull()},
			{Name: "extracted_at", Type: TypeTimestamp, Nullable: notNull()},
		},
		Constraints: []ConstraintSpec{{Kind: "unique", Columns: ResultDedupeColumns}},
	}
}

// ResultRows converts extracted records into rows matching ResultColumns.
//
// case_number is the row's own case number, or the first expanded case's
// when the listing column was replaced by details; nil when neither exists.
func ResultRows(runID, query string, recs []*record.Record, at time.Time) ([][]any, error) {
	at = at.UTC()
	rows := make([][]any, 0, len(recs))
	for i, r := range recs {
		if r == nil {
			continue
		}
		payload, err := r.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal row %d: %w", i, err)
		}
		var caseNumber any
		if cn := caseNumberOf(r); cn != "" {
			caseNumber = cn
		}
		rows = append(rows, []any{runID, query, int64(i), caseNumber, rowHash.Sum(r), string(payload), at})
	}
	return rows, nil
}

func caseNumberOf(r *record.Record) string {
	if cn := strings.TrimSpace(r.Text("case_number")); cn != "" {
		return cn
	}
	v, ok := r.Get("details")
	if !ok {
		return ""
	}
	if list, ok := v.AsList(); ok && len(list) > 0 && list[0] != nil {
		return strings.TrimSpace(list[0].Text("case_number"))
	}
	if nested, ok := v.AsRecord(); ok {
		return strings.TrimSpace(nested.Text("case_number"))
	}
	return ""
}

// SaveResults ensures the results table and inserts recs. It returns the
// number of new rows.
func SaveResults(ctx context.Context, repo Repository, table, runID, query string, recs []*record.Record, at time.Time) (int64, error) {
	spec := ResultsTable(table)
	if err := repo.EnsureTable(ctx, spec); err != nil {
		return 0, fmt.Errorf("ensure table %s: %w", spec.Name, err)
	}
	rows, err := ResultRows(runID, query, recs, at)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := repo.InsertRows(ctx, spec.Name, ResultColumns, rows, ResultDedupeColumns)
	if err != nil {
		return n, fmt.Errorf("insert into %s: %w", spec.Name, err)
	}
	return n, nil
}

// DedupeRows keeps the first row per dedupeColumns key, preserving order.
// Backends whose idempotent insert does not collapse duplicates inside one
// statement use it.
func DedupeRows(rows [][]any, columns, dedupeColumns []string) ([][]any, error) {
	if len(dedupeColumns) == 0 {
		return rows, nil
	}
	idx := make([]int, 0, len(dedupeColumns))
	for _, dc := range dedupeColumns {
		pos := -1
		for i, c := range columns {
			if c == dc {
				pos = i
				break
			}
		}
		if pos < 0 {
			return nil, fmt.Errorf("dedupe column %q not present in columns", dc)
		}
		idx = append(idx, pos)
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([][]any, 0, len(rows))
	var b strings.Builder
	for _, row := range rows {
		b.Reset()
		for i, p := range idx {
			if i > 0 {
				b.WriteByte('\x1f')
			}
			fmt.Fprint(&b, row[p])
		}
		k := b.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	return out, nil
}
