package extracthtml

import (
	"strconv"

	"eams/internal/record"

	"github.com/PuerkitoBio/goquery"
)

// Link is a cross-reference found in a listing row: a cell whose last child
// is an anchor with an href.
type Link struct {
	Key  string
	Href string
}

// ListingRow is one summary row of a search results page.
//
// Record holds every keyed cell; link cells are stored under their column
// key as the raw href. Links repeats them in column order so the caller can
// expand them.
type ListingRow struct {
	Record *record.Record
	Links  []Link
}

// LastLink returns the right-most link of the row.
func (r ListingRow) LastLink() (Link, bool) {
	if len(r.Links) == 0 {
		return Link{}, false
	}
	return r.Links[len(r.Links)-1], true
}

// AssembleListing extracts the summary rows of a search results page.
//
// The first table of the page is page chrome and is skipped, as is the header
// row of every other table. Rows keep document order across tables.
func AssembleListing(doc *goquery.Document) []ListingRow {
	var rows []ListingRow
	for ti, t := range Tables(doc) {
		if ti < 1 {
			continue
		}
		t.eachDataRow(1, func(_ int, cells *goquery.Selection) {
			row := ListingRow{Record: record.New()}
			cells.Each(func(col int, cell *goquery.Selection) {
				key := t.HeaderKey(col)
				if href, hasHref, isAnchor := anchorHref(cell); isAnchor {
					if hasHref && href != "" {
						row.Links = append(row.Links, Link{Key: key, Href: href})
					}
					if key != "" {
						row.Record.SetString(key, href)
					}
					return
				}
				if key == "" {
					return
				}
				row.Record.Set(key, valueOrNull(cell))
			})
			if row.Record.Len() > 0 || len(row.Links) > 0 {
				rows = append(rows, row)
			}
		})
	}
	return rows
}

// AssembleEvents extracts the event rows of a case event sub-page. Like a
// listing, the first table and each header row are skipped.
func AssembleEvents(doc *goquery.Document) []*record.Record {
	var events []*record.Record
	for ti, t := range Tables(doc) {
		if ti < 1 {
			continue
		}
		t.eachDataRow(1, func(_ int, cells *goquery.Selection) {
			ev := record.New()
			cells.Each(func(col int, cell *goquery.Selection) {
				key := t.HeaderKey(col)
				if key == "" {
					return
				}
				ev.Set(key, valueOrNull(cell))
			})
			if ev.Len() > 0 {
				events = append(events, ev)
			}
		})
	}
	return events
}

// LinkURLs returns the href of every anchor cell of every table, in document
// order. It is used to discover the case pages behind a listing link.
func LinkURLs(doc *goquery.Document) []string {
	var urls []string
	for _, t := range Tables(doc) {
		t.eachDataRow(0, func(_ int, cells *goquery.Selection) {
			cells.Each(func(_ int, cell *goquery.Selection) {
				if href, hasHref, isAnchor := anchorHref(cell); isAnchor && hasHref && href != "" {
					urls = append(urls, href)
				}
			})
		})
	}
	return urls
}

// URLInfo reads every table of a page into {table: {row: {key: value}}},
// keyed by position. Anchor cells give their href, other cells their decoded
// text. The shape is meant for record.Flatten.
func URLInfo(doc *goquery.Document) *record.Record {
	out := record.New()
	for ti, t := range Tables(doc) {
		table := record.New()
		t.eachDataRow(0, func(ri int, cells *goquery.Selection) {
			row := record.New()
			cells.Each(func(col int, cell *goquery.Selection) {
				key := t.HeaderKey(col)
				if key == "" {
					return
				}
				if href, _, isAnchor := anchorHref(cell); isAnchor {
					row.SetString(key, href)
					return
				}
				row.SetString(key, Decode(cell.Text()))
			})
			if row.Len() > 0 {
				table.Set(strconv.Itoa(ri), record.Nested(row))
			}
		})
		if table.Len() > 0 {
			out.Set(strconv.Itoa(ti), record.Nested(table))
		}
	}
	return out
}
