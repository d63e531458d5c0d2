package extracthtml

import (
	"fmt"
	"strings"

	"eams/internal/record"

	"github.com/PuerkitoBio/goquery"
)

// PageKind names the layout of a saved portal page.
type PageKind string

const (
	PageListing PageKind = "listing"
	PageDetail  PageKind = "detail"
	PageEvents  PageKind = "events"
	PageURLInfo PageKind = "urlinfo"
)

// ParsePageKind validates a -kind flag value.
func ParsePageKind(s string) (PageKind, error) {
	switch k := PageKind(strings.ToLower(strings.TrimSpace(s))); k {
	case PageListing, PageDetail, PageEvents, PageURLInfo:
		return k, nil
	default:
		return "", fmt.Errorf("unknown page kind %q (want listing, detail, events or urlinfo)", s)
	}
}

// ExtractPage returns the records a single page yields for kind without
// following any link. Listing rows keep link cells as raw hrefs; a detail page
// yields one combined record; urlinfo yields the flattened page.
func ExtractPage(doc *goquery.Document, kind PageKind) []*record.Record {
	switch kind {
	case PageListing:
		rows := AssembleListing(doc)
		out := make([]*record.Record, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.Record)
		}
		return out
	case PageDetail:
		return []*record.Record{AssembleDetail(doc).Record}
	case PageEvents:
		return AssembleEvents(doc)
	case PageURLInfo:
		return []*record.Record{record.Flatten(record.Nested(URLInfo(doc)))}
	default:
		return nil
	}
}

// ExtractPageHTML parses html and applies ExtractPage.
func ExtractPageHTML(html string, kind PageKind) ([]*record.Record, error) {
	doc, err := ParseDocument(html)
	if err != nil {
		return nil, err
	}
	return ExtractPage(doc, kind), nil
}
