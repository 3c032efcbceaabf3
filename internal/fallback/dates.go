// Package fallback provides deterministic, dependency-free field scanning
// used when structured extraction is unavailable or incomplete. It never
// fabricates values: a slot stays empty unless a matching token exists.
package fallback

import (
	"regexp"
	"time"
)

// PartialFields holds the date slots the scanner can populate.
// Values are ISO dates (YYYY-MM-DD) or empty.
type PartialFields struct {
	IssueDate  string
	ExpiryDate string
}

var (
	reDMY = regexp.MustCompile(`\b(\d{2})/(\d{2})/(\d{4})\b`)
	reISO = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
)

type dateHit struct {
	pos int
	iso string
}

// ScanDates scans raw text for date tokens in DD/MM/YYYY and YYYY-MM-DD form,
// in order of first appearance. The first match becomes the issue-date
// candidate, the second distinct match the expiry-date candidate. Purely
// positional: no ordering or plausibility checks beyond calendar validity.
func ScanDates(text string) PartialFields {
	var hits []dateHit
	for _, m := range reDMY.FindAllStringSubmatchIndex(text, -1) {
		iso := text[m[6]:m[7]] + "-" + text[m[4]:m[5]] + "-" + text[m[2]:m[3]]
		hits = append(hits, dateHit{pos: m[0], iso: iso})
	}
	for _, m := range reISO.FindAllStringSubmatchIndex(text, -1) {
		iso := text[m[2]:m[3]] + "-" + text[m[4]:m[5]] + "-" + text[m[6]:m[7]]
		hits = append(hits, dateHit{pos: m[0], iso: iso})
	}

	// merge in text order; the two regex passes each return ordered hits
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	var out PartialFields
	for _, h := range hits {
		if _, err := time.Parse("2006-01-02", h.iso); err != nil {
			continue // token shaped like a date but not a calendar date
		}
		switch {
		case out.IssueDate == "":
			out.IssueDate = h.iso
		case h.iso != out.IssueDate && out.ExpiryDate == "":
			out.ExpiryDate = h.iso
			return out
		}
	}
	return out
}
