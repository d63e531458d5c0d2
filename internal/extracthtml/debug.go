package extracthtml

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DebugPrintSelector prints either outer HTML or text of matches for a selector.
// Matches that are tables get a "# table N kind=... rows=..." line first, so a
// saved portal page can be checked against the classifier.
// This is used by the extract_html command's "-selector" debug mode.
func DebugPrintSelector(w io.Writer, html, selector string, textOnly bool) error {
	doc, err := ParseDocument(html)
	if err != nil {
		return err
	}

	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		if goquery.NodeName(s) == "table" {
			t := NewTable(s)
			c := Classify(t)
			fmt.Fprintf(w, "# table %d kind=%s rows=%d", i, c.Kind, t.RowCount())
			if c.SubKey != "" {
				fmt.Fprintf(w, " key=%s", c.SubKey)
			}
			fmt.Fprintln(w)
		}
		if textOnly {
			fmt.Fprintln(w, Decode(s.Text()))
			fmt.Fprintln(w)
			return
		}
		out, err := goquery.OuterHtml(s)
		if err != nil {
			in, _ := s.Html()
			fmt.Fprintln(w, strings.TrimSpace(in))
			fmt.Fprintln(w)
			return
		}
		fmt.Fprintln(w, out)
		fmt.Fprintln(w)
	})
	return nil
}
