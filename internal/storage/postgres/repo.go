package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"eams/internal/storage"
)

// Repo implements storage.Repository for Postgres on a pgx pool.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a pool for cfg.DSN and checks connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureTable creates the schema (for qualified names) and the table inside
// one transaction.
func (r *Repo) EnsureTable(ctx context.Context, t storage.TableSpec) error {
	schemaSQL, tableSQL, err := buildCreateSQL(t)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if schemaSQL != "" {
			if _, err := tx.Exec(ctx, schemaSQL); err != nil {
				return fmt.Errorf("create schema for %s: %w", t.Name, err)
			}
		}
		if _, err := tx.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
		return nil
	})
}

// InsertRows performs a bulk INSERT, chunked under the 65535 parameter limit.
//
// If dedupeColumns is non-empty, the INSERT is made idempotent using:
//
//	ON CONFLICT (<dedupeColumns...>) DO NOTHING
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupeColumns []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	maxRows := max(1, 65000/max(1, len(columns)))

	var total int64
	for start := 0; start < len(rows); start += maxRows {
		end := min(start+maxRows, len(rows))
		q, args := buildInsertSQL(table, columns, rows[start:end], dedupeColumns)
		cmd, err := r.pool.Exec(ctx, q, args...)
		if err != nil {
			return total, err
		}
		total += cmd.RowsAffected()
	}
	return total, nil
}

// buildInsertSQL constructs a single INSERT statement and its args.
//
// Constraints:
//   - rows must have the same length as columns for every row.
//   - columns must be non-empty.
func buildInsertSQL(table string, columns []string, rows [][]any, dedupeColumns []string) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgTableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

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
			b.WriteString(fmt.Sprintf("$%d", p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	if len(dedupeColumns) > 0 {
		b.WriteString(" ON CONFLICT (")
		for i, c := range dedupeColumns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(pgIdent(c))
		}
		b.WriteString(") DO NOTHING")
	}

	b.WriteString(";")
	return b.String(), args
}

func pgType(logical string) (string, error) {
	switch logical {
	case storage.TypeString, storage.TypeText:
		return "text", nil
	case storage.TypeBigint:
		return "bigint", nil
	case storage.TypeTimestamp:
		return "timestamptz", nil
	case storage.TypeJSON:
		return "jsonb", nil
	default:
		return "", fmt.Errorf("postgres: unsupported column type %q", logical)
	}
}

// buildCreateSQL builds the optional CREATE SCHEMA and the CREATE TABLE.
func buildCreateSQL(t storage.TableSpec) (schemaSQL, tableSQL string, err error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", "", fmt.Errorf("table name is empty")
	}
	if schema, _ := splitQualifiedName(t.Name); schema != "" {
		schemaSQL = "CREATE SCHEMA IF NOT EXISTS " + pgIdent(schema) + ";"
	}

	var parts []string
	for _, c := range t.Columns {
		typ, err := pgType(c.Type)
		if err != nil {
			return "", "", fmt.Errorf("%s.%s: %w", t.Name, c.Name, err)
		}
		col := pgIdent(c.Name) + " " + typ
		if !c.IsNullable() {
			col += " NOT NULL"
		}
		parts = append(parts, col)
	}
	for _, c := range t.Constraints {
		if strings.ToLower(strings.TrimSpace(c.Kind)) != "unique" {
			return "", "", fmt.Errorf("table %s: unsupported constraint kind %q", t.Name, c.Kind)
		}
		if len(c.Columns) == 0 {
			return "", "", fmt.Errorf("table %s: unique constraint requires columns", t.Name)
		}
		cols := make([]string, 0, len(c.Columns))
		for _, col := range c.Columns {
			cols = append(cols, pgIdent(strings.TrimSpace(col)))
		}
		parts = append(parts, "UNIQUE ("+strings.Join(cols, ", ")+")")
	}

	tableSQL = fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s);", pgTableIdent(t.Name), strings.Join(parts, ", "))
	return schemaSQL, tableSQL, nil
}

// splitQualifiedName splits a schema-qualified name into (schema, table).
//
// Examples:
//   - "public.results" => ("public", "results")
//   - "results"        => ("", "results")
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func pgIdent(id string) string {
	return pgx.Identifier{id}.Sanitize()
}

func pgTableIdent(name string) string {
	if schema, table := splitQualifiedName(name); schema != "" {
		return pgx.Identifier{schema, table}.Sanitize()
	}
	return pgIdent(name)
}
