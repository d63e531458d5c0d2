package extracthtml

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"eams/internal/record"

	"github.com/PuerkitoBio/goquery"
)

// Detail is the combined result of every table on one case detail page.
//
// EventLinks lists, in document order, the event sub-page links found in
// unlabeled columns of Generic tables. Fetching them is up to the caller.
type Detail struct {
	Record     *record.Record
	EventLinks []string
}

// AssembleDetail classifies every table of a case detail page and merges the
// output of the matching strategy into one record.
func AssembleDetail(doc *goquery.Document) Detail {
	d := Detail{Record: record.New()}
	for _, t := range Tables(doc) {
		AssembleTable(t, &d)
	}
	return d
}

// AssembleTable classifies t and applies its strategy to d.
func AssembleTable(t Table, d *Detail) {
	c := Classify(t)
	switch c.Kind {
	case BodyParts:
		assembleBodyParts(t, d.Record)
	case HearingOrParticipant:
		assembleHearingOrParticipant(t, c.SubKey, d.Record)
	default:
		d.EventLinks = append(d.EventLinks, assembleGeneric(t, d.Record)...)
	}
}

// assembleBodyParts reads the odd (0-based) <td> of every row. Heading rows
// made of <th> cells contribute nothing.
func assembleBodyParts(t Table, out *record.Record) {
	t.eachDataRow(0, func(_ int, cells *goquery.Selection) {
		cells.Each(func(col int, cell *goquery.Selection) {
			if col%2 == 0 {
				return
			}
			out.AppendTo(KeyBodyParts, BodyPart(Decode(cell.Text())))
		})
	})
}

var reNumeric = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// BodyPart splits decoded body-part text such as "123 Shoulder Strain" into
// {code: 123, detail: "Shoulder Strain"}. A non-numeric first token leaves
// code null and keeps the whole text as detail.
func BodyPart(text string) *record.Record {
	r := record.New()
	tokens := strings.Split(text, " ")
	if reNumeric.MatchString(tokens[0]) {
		r.Set("code", record.Int(bodyPartCode(tokens[0])))
		r.SetString("detail", strings.Join(tokens[1:], " "))
		return r
	}
	r.Set("code", record.Null())
	r.SetString("detail", text)
	return r
}

// bodyPartCode converts a numeric token to an int, truncating fractions and
// saturating at the int range.
func bodyPartCode(tok string) int {
	n, err := strconv.Atoi(tok)
	if err == nil {
		return n
	}
	if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(tok, "-") {
			return math.MinInt
		}
		return math.MaxInt
	}
	f, _ := strconv.ParseFloat(tok, 64)
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	default:
		return int(f)
	}
}

// assembleHearingOrParticipant emits one record per data row under subKey,
// skipping columns without a header.
func assembleHearingOrParticipant(t Table, subKey string, out *record.Record) {
	t.eachDataRow(1, func(_ int, cells *goquery.Selection) {
		row := record.New()
		cells.Each(func(col int, cell *goquery.Selection) {
			if t.HeaderBlank(col) {
				return
			}
			key := t.HeaderKey(col)
			if key == "" {
				return
			}
			row.Set(key, valueOrNull(cell))
		})
		if row.Len() > 0 {
			out.AppendTo(subKey, row)
		}
	})
}

// assembleGeneric folds every data row into out. Repeated labels accumulate
// as "first, second". Unlabeled columns are only inspected for event links,
// which are returned.
func assembleGeneric(t Table, out *record.Record) []string {
	var links []string
	t.eachDataRow(1, func(_ int, cells *goquery.Selection) {
		cells.Each(func(col int, cell *goquery.Selection) {
			value := valueOrNull(cell)
			if t.HeaderBlank(col) {
				if IsEventLink(value.Text()) {
					links = append(links, value.Text())
				}
				return
			}
			key := t.HeaderKey(col)
			if key == "" {
				return
			}
			mergeLabeled(out, key, value)
		})
	})
	return links
}

func mergeLabeled(out *record.Record, key string, value record.Value) {
	existing, ok := out.Get(key)
	if !ok || !existing.Truthy() {
		out.Set(key, value)
		return
	}
	if value.Truthy() && existing.IsScalar() && value.IsScalar() {
		out.SetString(key, existing.Text()+", "+value.Text())
	}
}

// IsEventLink reports whether s looks like an event sub-page link.
func IsEventLink(s string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(EventLinkMarker))
}

func valueOrNull(cell *goquery.Selection) record.Value {
	v, ok := ExtractValue(cell)
	if !ok {
		return record.Null()
	}
	return v
}
