package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"eams/internal/storage"
)

// Repo implements storage.Repository for Microsoft SQL Server.
//
// Idempotent inserts use INSERT ... SELECT ... WHERE NOT EXISTS. Unlike
// Postgres ON CONFLICT, that does not collapse duplicates inside the VALUES
// source, so each batch is deduped first (first occurrence wins).
type Repo struct {
	db dbConn
}

func init() {
	storage.Register("mssql", New)
}

// New opens cfg.DSN with the "sqlserver" driver and checks connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	raw.SetMaxOpenConns(8)
	raw.SetMaxIdleConns(8)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: raw}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// EnsureTable creates the table when OBJECT_ID reports it missing.
func (r *Repo) EnsureTable(ctx context.Context, t storage.TableSpec) error {
	q, err := buildCreateSQL(t)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create table %s: %w", t.Name, err)
	}
	return nil
}

// InsertRows inserts rows, skipping existing dedupe keys when dedupeColumns
// is set. Statements are chunked under SQL Server's 2100 parameter limit.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupeColumns []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(dedupeColumns) > 0 {
		var err error
		if rows, err = storage.DedupeRows(rows, columns, dedupeColumns); err != nil {
			return 0, fmt.Errorf("mssql: %w", err)
		}
	}

	maxRows := max(1, 2000/max(1, len(columns)))
	var total int64
	for start := 0; start < len(rows); start += maxRows {
		end := min(start+maxRows, len(rows))
		part := rows[start:end]

		var (
			q    string
			args []any
		)
		if len(dedupeColumns) == 0 {
			q, args = buildBulkInsertSQL(table, columns, part)
		} else {
			q, args = buildInsertNotExistsSQL(table, columns, part, dedupeColumns)
		}

		res, err := r.db.ExecContext(ctx, q, args...)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

func mssqlType(logical string) (string, error) {
	switch logical {
	case storage.TypeString:
		// 450 keeps composite unique keys under the 1700 byte index limit.
		return "NVARCHAR(450)", nil
	case storage.TypeText, storage.TypeJSON:
		return "NVARCHAR(MAX)", nil
	case storage.TypeBigint:
		return "BIGINT", nil
	case storage.TypeTimestamp:
		return "DATETIMEOFFSET", nil
	default:
		return "", fmt.Errorf("mssql: unsupported column type %q", logical)
	}
}

// buildCreateSQL builds a CREATE TABLE guarded by OBJECT_ID.
func buildCreateSQL(t storage.TableSpec) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}
	var defs []string
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return "", fmt.Errorf("mssql: column name is empty")
		}
		typ, err := mssqlType(c.Type)
		if err != nil {
			return "", fmt.Errorf("%s.%s: %w", t.Name, c.Name, err)
		}
		def := mssqlIdent(c.Name) + " " + typ
		if !c.IsNullable() {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	for _, con := range t.Constraints {
		if !strings.EqualFold(strings.TrimSpace(con.Kind), "unique") {
			return "", fmt.Errorf("%s unsupported constraint kind: %s", t.Name, con.Kind)
		}
		cols := make([]string, 0, len(con.Columns))
		for _, c := range con.Columns {
			cols = append(cols, mssqlIdent(c))
		}
		defs = append(defs, "UNIQUE ("+strings.Join(cols, ", ")+")")
	}
	return wrapCreateIfMissing(t.Name, strings.Join(defs, ", ")), nil
}

// wrapCreateIfMissing wraps a CREATE TABLE statement in an OBJECT_ID guard.
func wrapCreateIfMissing(tableName string, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(tableName, "'", "''"),
		mssqlTableIdent(tableName),
		innerDefs,
	)
}

func writeValues(b *strings.Builder, columns []string, rows [][]any) []any {
	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	return args
}

func writeColumnList(b *strings.Builder, prefix string, columns []string) {
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(prefix)
		b.WriteString(mssqlIdent(c))
	}
}

// buildBulkInsertSQL builds a single INSERT ... VALUES statement for all rows.
func buildBulkInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")
	writeColumnList(&b, "", columns)
	b.WriteString(") VALUES ")
	args := writeValues(&b, columns, rows)
	return b.String(), args
}

// buildInsertNotExistsSQL materializes incoming rows as a derived table V via
// VALUES, then inserts only those rows that do not match existing rows per
// dedupeColumns.
func buildInsertNotExistsSQL(table string, columns []string, rows [][]any, dedupeColumns []string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")
	writeColumnList(&b, "", columns)
	b.WriteString(") SELECT ")
	writeColumnList(&b, "v.", columns)
	b.WriteString(" FROM (VALUES ")
	args := writeValues(&b, columns, rows)
	b.WriteString(") AS v(")
	writeColumnList(&b, "", columns)
	b.WriteString(") WHERE NOT EXISTS (SELECT 1 FROM ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" t WHERE ")
	for i, dc := range dedupeColumns {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString("t.")
		b.WriteString(mssqlIdent(dc))
		b.WriteString(" = v.")
		b.WriteString(mssqlIdent(dc))
	}
	b.WriteString(")")
	return b.String(), args
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.results" -> [dbo].[results]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// dbConn is the part of *sql.DB this package uses.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Close() error
}

var _ dbConn = (*sql.DB)(nil)
