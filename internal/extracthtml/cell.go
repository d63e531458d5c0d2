package extracthtml

import (
	"strings"

	"eams/internal/record"

	"github.com/PuerkitoBio/goquery"
)

// ExtractValue returns the scalar held by a table cell.
//
//   - text-only cell: the decoded text
//   - last child <a href>: the href, not the link text
//   - last child <span>: the decoded span text
//   - last child <input type="checkbox">: 1 when checked, else 0
//
// Any other trailing element yields ok=false: the cell has no extractable
// value and callers decide how to represent that (usually record.Null()).
func ExtractValue(cell *goquery.Selection) (record.Value, bool) {
	if cell == nil || cell.Length() == 0 {
		return record.Null(), false
	}
	if cell.Children().Length() == 0 {
		return record.String(Decode(cell.Text())), true
	}

	last := lastChild(cell)
	if last == nil || goquery.NodeName(last) == "#text" {
		return record.String(Decode(cell.Text())), true
	}

	switch goquery.NodeName(last) {
	case "a":
		if href, ok := last.Attr("href"); ok {
			return record.String(href), true
		}
	case "span":
		return record.String(Decode(last.Text())), true
	case "input":
		if strings.EqualFold(last.AttrOr("type", ""), "checkbox") {
			if _, checked := last.Attr("checked"); checked {
				return record.Int(1), true
			}
			return record.Int(0), true
		}
	}
	return record.Null(), false
}

// anchorHref reports whether the cell's last child is an anchor. href is the
// anchor target; hasHref is false for an anchor without one.
func anchorHref(cell *goquery.Selection) (href string, hasHref bool, isAnchor bool) {
	last := lastChild(cell)
	if last == nil || goquery.NodeName(last) != "a" {
		return "", false, false
	}
	href, hasHref = last.Attr("href")
	return href, hasHref, true
}

// lastChild returns the last child node of cell that carries content.
// Comments and whitespace-only text nodes are skipped. It returns nil for an
// empty cell.
func lastChild(cell *goquery.Selection) *goquery.Selection {
	contents := cell.Contents()
	for i := contents.Length() - 1; i >= 0; i-- {
		c := contents.Eq(i)
		switch goquery.NodeName(c) {
		case "#comment":
			continue
		case "#text":
			if strings.TrimSpace(nbspReplacer.Replace(c.Text())) == "" {
				continue
			}
		}
		return c
	}
	return nil
}
