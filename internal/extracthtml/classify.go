package extracthtml

import (
	"regexp"
	"strings"
)

// DetailKind is the semantic kind of a table on a case detail page.
type DetailKind int

const (
	Generic DetailKind = iota
	BodyParts
	HearingOrParticipant
	// EventList is the layout of event sub-pages. Classify never returns it;
	// those pages are assembled by AssembleEvents.
	EventList
)

func (k DetailKind) String() string {
	switch k {
	case BodyParts:
		return "body_parts"
	case HearingOrParticipant:
		return "hearing_or_participant"
	case EventList:
		return "event_list"
	default:
		return "generic"
	}
}

// Record keys written by the detail strategies.
const (
	KeyBodyParts     = "body_parts"
	KeyHearingDetail = "hearing_detail"
	KeyParticipants  = "participants"
	KeyMisc          = "misc"
	KeyEvents        = "events"
	KeyDetails       = "details"
)

// EventLinkMarker identifies event sub-page links in unlabeled columns.
const EventLinkMarker = "CaseEventFinder"

// Classification is the outcome of Classify. SubKey is the record key that
// HearingOrParticipant rows are collected under.
type Classification struct {
	Kind   DetailKind
	SubKey string
}

var reBodyPart = regexp.MustCompile(`(?i)\bbody\s+part`)

// Classify picks the assembly strategy for a detail table from its heading.
//
// The first cell of row 0 matching "body part" selects BodyParts. Otherwise
// "hearing" or "participant" anywhere in row 0 selects HearingOrParticipant.
// Everything else, including tables without rows, is Generic.
func Classify(t Table) Classification {
	if t.RowCount() == 0 {
		return Classification{Kind: Generic}
	}
	first := t.Row(0)

	heading := first.Find("th, td").First().Text()
	if reBodyPart.MatchString(heading) {
		return Classification{Kind: BodyParts, SubKey: KeyBodyParts}
	}

	text := strings.ToLower(first.Text())
	if !strings.Contains(text, "hearing") && !strings.Contains(text, "participant") {
		return Classification{Kind: Generic}
	}

	sub := KeyMisc
	switch {
	case strings.Contains(text, "hearing"):
		sub = KeyHearingDetail
	case strings.Contains(text, "participant"):
		sub = KeyParticipants
	}
	return Classification{Kind: HearingOrParticipant, SubKey: sub}
}
