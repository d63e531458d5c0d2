package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"eams/internal/record"
)

type memRepo struct {
	ensured  []TableSpec
	inserted [][]any
	dedupe   []string
	err      error
}

func (m *memRepo) Close() {}

func (m *memRepo) EnsureTable(ctx context.Context, t TableSpec) error {
	m.ensured = append(m.ensured, t)
	return nil
}

func (m *memRepo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupeColumns []string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.inserted = append(m.inserted, rows...)
	m.dedupe = dedupeColumns
	return int64(len(rows)), nil
}

func TestResultRows_CaseNumberSources(t *testing.T) {
	t.Parallel()

	own := record.New()
	own.SetString("case_number", " ADJ1 ")

	expanded := record.New()
	expanded.SetString("name", "DOE, JANE")
	detail := record.New()
	detail.SetString("case_number", "ADJ2")
	expanded.Set("details", record.List(detail))

	none := record.New()
	none.SetString("name", "X")

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	rows, err := ResultRows("run", "adj:ADJ1", []*record.Record{own, expanded, nil, none}, at)
	if err != nil {
		t.Fatalf("ResultRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows=%d want 3", len(rows))
	}
	if rows[0][3] != "ADJ1" || rows[1][3] != "ADJ2" || rows[2][3] != nil {
		t.Fatalf("case numbers=%v %v %v", rows[0][3], rows[1][3], rows[2][3])
	}
	if rows[2][2] != int64(3) {
		t.Fatalf("row_index=%v want 3", rows[2][2])
	}
	if ts := rows[0][6].(time.Time); ts.Location() != time.UTC {
		t.Fatalf("extracted_at not UTC: %v", ts)
	}
	if h := rows[0][4].(string); len(h) != 64 {
		t.Fatalf("row_hash=%q", h)
	}
}

func TestSaveResults(t *testing.T) {
	t.Parallel()

	r := record.New()
	r.SetString("case_number", "ADJ1")

	repo := &memRepo{}
	n, err := SaveResults(context.Background(), repo, "", "run", "q", []*record.Record{r}, time.Now())
	if err != nil || n != 1 {
		t.Fatalf("SaveResults n=%d err=%v", n, err)
	}
	if len(repo.ensured) != 1 || repo.ensured[0].Name != DefaultResultsTable {
		t.Fatalf("ensured=%+v", repo.ensured)
	}
	if len(repo.dedupe) != 2 {
		t.Fatalf("dedupe=%v", repo.dedupe)
	}

	boom := errors.New("boom")
	if _, err := SaveResults(context.Background(), &memRepo{err: boom}, "", "run", "q", []*record.Record{r}, time.Now()); !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
}

// TestResultRows_HashCoversKeys verifies rows holding the same values under
// different columns get distinct row hashes, so neither is dropped as a
// duplicate.
func TestResultRows_HashCoversKeys(t *testing.T) {
	t.Parallel()

	status := record.New()
	status.SetString("case_number", "ADJ1")
	status.SetString("status", "Open")
	venue := record.New()
	venue.SetString("case_number", "ADJ1")
	venue.SetString("venue", "Open")

	rows, err := ResultRows("run", "adj:ADJ1", []*record.Record{status, venue}, time.Now())
	if err != nil {
		t.Fatalf("ResultRows: %v", err)
	}
	if rows[0][4] == rows[1][4] {
		t.Fatalf("row_hash collided: %v", rows[0][4])
	}
	got, err := DedupeRows(rows, ResultColumns, ResultDedupeColumns)
	if err != nil {
		t.Fatalf("DedupeRows: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows after dedupe=%d want 2", len(got))
	}
}

func TestDedupeRows_StableAndCorrect(t *testing.T) {
	t.Parallel()

	columns := []string{"run_id", "query", "row_index", "row_hash"}
	rows := [][]any{
		{"run", "adj:ADJ1", int64(0), "h1"},
		{"run", "adj:ADJ1", int64(1), "h1"},
		{"run", "name:J|A", int64(0), "h1"},
		{"run", "adj:ADJ1", int64(2), "h2"},
	}
	got, err := DedupeRows(rows, columns, []string{"query", "row_hash"})
	if err != nil {
		t.Fatalf("DedupeRows: %v", err)
	}
	if len(got) != 3 || got[0][2] != int64(0) || got[1][1] != "name:J|A" || got[2][3] != "h2" {
		t.Fatalf("got=%v", got)
	}
	if _, err := DedupeRows(rows, columns, []string{"missing"}); err == nil {
		t.Fatalf("expected error for missing column")
	}
}

func TestNew_UnknownKind(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	if _, err := New(context.Background(), Config{Kind: "oracle"}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestNewRunID_Unique(t *testing.T) {
	t.Parallel()

	a, b := NewRunID(), NewRunID()
	if a == b || len(a) != 36 {
		t.Fatalf("run ids %q %q", a, b)
	}
}
