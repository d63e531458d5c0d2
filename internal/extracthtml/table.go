package extracthtml

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Table is a read-only view over a <table> element using the portal's
// conventions: rows are every descendant <tr>, row 0 is the header row and
// its <th> cells name the columns of the data rows below it.
type Table struct {
	rows    *goquery.Selection
	headers *goquery.Selection
}

// NewTable builds a Table view over sel.
func NewTable(sel *goquery.Selection) Table {
	rows := sel.Find("tr")
	return Table{
		rows:    rows,
		headers: rows.First().Find("th"),
	}
}

// ParseDocument parses an HTML page. The HTML5 parser never rejects
// malformed markup, so errors only come from the reader.
func ParseDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Tables returns every table of the document in document order, nested
// tables included.
func Tables(doc *goquery.Document) []Table {
	var out []Table
	doc.Find("table").Each(func(_ int, s *goquery.Selection) {
		out = append(out, NewTable(s))
	})
	return out
}

// RowCount returns the number of rows, header row included.
func (t Table) RowCount() int { return t.rows.Length() }

// Row returns row i (an empty selection when out of range).
func (t Table) Row(i int) *goquery.Selection { return t.rows.Eq(i) }

// Cells returns the data cells (<td>) of row i.
func (t Table) Cells(i int) *goquery.Selection { return t.Row(i).Find("td") }

// Header returns the header cell for column col; it may be empty.
func (t Table) Header(col int) *goquery.Selection { return t.headers.Eq(col) }

// HeaderKey returns the derived key for column col, "" when absent.
func (t Table) HeaderKey(col int) string { return DeriveKey(t.Header(col)) }

// HeaderBlank reports whether column col has no header or a blank one.
func (t Table) HeaderBlank(col int) bool {
	h := t.Header(col)
	return h.Length() == 0 || strings.TrimSpace(nbspReplacer.Replace(h.Text())) == ""
}

// eachDataRow calls fn for every row from index `from` onward with that row's
// <td> cells.
func (t Table) eachDataRow(from int, fn func(row int, cells *goquery.Selection)) {
	for i := from; i < t.RowCount(); i++ {
		fn(i, t.Cells(i))
	}
}
