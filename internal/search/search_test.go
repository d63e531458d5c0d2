package search

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"eams/internal/expand"
	"eams/internal/portal"
)

// fakeSession answers every search with listing and serves pages from a map.
type fakeSession struct {
	listing   string
	searchErr error
	pages     map[string]string

	forms   []portal.SearchForm
	fetched []string
}

func (f *fakeSession) Search(ctx context.Context, form portal.SearchForm) (string, error) {
	f.forms = append(f.forms, form)
	if f.searchErr != nil {
		return "", f.searchErr
	}
	return f.listing, nil
}

func (f *fakeSession) Fetch(ctx context.Context, url string) (string, error) {
	f.fetched = append(f.fetched, url)
	html, ok := f.pages[url]
	if !ok {
		return "", fmt.Errorf("no page %s", url)
	}
	return html, nil
}

const listing = `<html><body>
<table><tr><td>Search results</td></tr></table>
<table>
<tr><th>Case Number</th><th>Injured Worker Name</th></tr>
<tr><td><a href="CaseList?adj=ADJ1">ADJ1</a></td><td>DOE, JANE</td></tr>
</table></body></html>`

func newSession() *fakeSession {
	return &fakeSession{
		listing: listing,
		pages: map[string]string{
			"CaseList?adj=ADJ1": `<table><tr><th>Case</th></tr><tr><td><a href="CaseDetail?id=1">open</a></td></tr></table>`,
			"CaseDetail?id=1":   `<table><tr><th>Case Number</th><th>Status</th></tr><tr><td>ADJ1</td><td>Open</td></tr></table>`,
		},
	}
}

// TestFindByADJ_DefaultsToCaseExpansion verifies the case number is sent
// normalized and each row carries its case records under details.
func TestFindByADJ_DefaultsToCaseExpansion(t *testing.T) {
	t.Parallel()

	s := newSession()
	recs, err := New(s, nil).FindByADJ(context.Background(), " adj1 ", expand.Options{})
	if err != nil {
		t.Fatalf("FindByADJ: %v", err)
	}
	if len(s.forms) != 1 || s.forms[0] != (portal.SearchForm{CaseNumber: "ADJ1"}) {
		t.Fatalf("forms=%+v", s.forms)
	}
	if want := []string{"CaseList?adj=ADJ1", "CaseDetail?id=1"}; !reflect.DeepEqual(s.fetched, want) {
		t.Fatalf("fetched=%v want %v", s.fetched, want)
	}
	if len(recs) != 1 {
		t.Fatalf("rows=%d want 1", len(recs))
	}
	want := []any{map[string]any{"case_number": "ADJ1", "status": "Open"}}
	if got := recs[0].Map()["details"]; !reflect.DeepEqual(got, want) {
		t.Fatalf("details=%#v want %#v", got, want)
	}
}

// TestFindByName_DefaultsToBasicExpansion verifies the name form and that
// the linked page is stored flattened.
func TestFindByName_DefaultsToBasicExpansion(t *testing.T) {
	t.Parallel()

	s := newSession()
	recs, err := New(s, nil).FindByName(context.Background(), "J", "A", expand.Options{})
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if s.forms[0] != (portal.SearchForm{FirstName: "J", LastName: "A"}) {
		t.Fatalf("form=%+v", s.forms[0])
	}
	want := map[string]any{"case": "CaseDetail?id=1"}
	if got := recs[0].Map()["details"]; !reflect.DeepEqual(got, want) {
		t.Fatalf("details=%#v want %#v", got, want)
	}
}

func TestFindByADJ_ExplicitNoneSkipsFetches(t *testing.T) {
	t.Parallel()

	s := newSession()
	recs, err := New(s, nil).FindByADJ(context.Background(), "ADJ1", expand.Options{Mode: expand.ModeNone})
	if err != nil {
		t.Fatalf("FindByADJ: %v", err)
	}
	if len(s.fetched) != 0 {
		t.Fatalf("unexpected fetches %v", s.fetched)
	}
	if got := recs[0].Text("case_number"); got != "CaseList?adj=ADJ1" {
		t.Fatalf("case_number=%q", got)
	}
}

func TestFind_EmptyQuery(t *testing.T) {
	t.Parallel()

	s := newSession()
	if _, err := New(s, nil).FindByADJ(context.Background(), "  ", expand.Options{}); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("adj err=%v", err)
	}
	if _, err := New(s, nil).FindByName(context.Background(), "", " ", expand.Options{}); !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("name err=%v", err)
	}
	if len(s.forms) != 0 {
		t.Fatalf("searched with empty query")
	}
}

func TestFind_SearchErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := newSession()
	s.searchErr = boom
	if _, err := New(s, nil).FindByADJ(context.Background(), "ADJ1", expand.Options{}); !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
}

func TestFind_ExpansionErrorIsWrapped(t *testing.T) {
	t.Parallel()

	s := newSession()
	delete(s.pages, "CaseDetail?id=1")
	_, err := New(s, nil).FindByADJ(context.Background(), "ADJ1", expand.Options{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if want := "search by adj: expand row 0: fetch case CaseDetail?id=1: no page CaseDetail?id=1"; err.Error() != want {
		t.Fatalf("err=%q want %q", err.Error(), want)
	}
}
