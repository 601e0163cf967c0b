package roster

import (
	"strings"
	"time"
)

// Source records how a ResolvedScan got its identity.
type Source string

const (
	// SourceRosterMatch: exact id match against the loaded roster.
	SourceRosterMatch Source = "roster"
	// SourceHeuristicExtraction: name recovered from the payload text.
	SourceHeuristicExtraction Source = "heuristic"
	// SourceUnresolved: no extractor matched; the raw payload stands in
	// for the first name.
	SourceUnresolved Source = "unresolved"
)

// ResolvedScan is a RawScan after identity resolution. Matched is true only
// for roster matches; DisplayName is never empty when Payload is non-empty.
type ResolvedScan struct {
	Payload    string
	Symbology  string
	CapturedAt time.Time

	Matched     bool
	FirstName   string
	LastName    string
	DisplayName string
	Source      Source
}

// Resolve turns a payload into a ResolvedScan.
//
// Resolution order: exact roster lookup; then, when the payload itself
// reads as a "Last, First" pair, direct parsing; then the heuristic
// extractor chain; finally the raw payload as first name.
func (r *Resolver) Resolve(payload, symbology string, capturedAt time.Time) ResolvedScan {
	trimmed := strings.TrimSpace(payload)
	scan := ResolvedScan{
		Payload:    trimmed,
		Symbology:  symbology,
		CapturedAt: capturedAt,
	}

	if rec, ok := r.lookup(trimmed); ok {
		scan.Matched = true
		scan.Source = SourceRosterMatch
		scan.FirstName = rec.FirstName
		scan.LastName = rec.LastName
	} else if first, last, ok := parseNamePayload(trimmed); ok {
		scan.Source = SourceHeuristicExtraction
		scan.FirstName = first
		scan.LastName = last
		r.logger.Debug("roster: payload used directly as name", "name", last+", "+first)
	} else if first, last, ok := ExtractName(trimmed); ok {
		scan.Source = SourceHeuristicExtraction
		scan.FirstName = CleanName(first)
		scan.LastName = CleanName(last)
		r.logger.Debug("roster: no match, extracted name",
			"first", scan.FirstName, "last", scan.LastName)
	} else {
		scan.Source = SourceUnresolved
		scan.FirstName = trimmed
	}

	scan.DisplayName = FormatDisplayName(scan.FirstName, scan.LastName, trimmed)
	return scan
}

// parseNamePayload accepts payloads that already read as "Last, First":
// a comma present and none of the markers that would indicate an email,
// URL, or domain instead of a person name.
func parseNamePayload(data string) (first, last string, ok bool) {
	if data == "" || !strings.Contains(data, ",") {
		return "", "", false
	}
	lower := strings.ToLower(data)
	for _, marker := range []string{"@", "http", "www", ".com", ".org", ".net", ".edu"} {
		if strings.Contains(lower, marker) {
			return "", "", false
		}
	}

	l, f, _ := strings.Cut(data, ",")
	last = strings.TrimSpace(l)
	if fields := strings.Fields(f); len(fields) > 0 {
		first = fields[0]
	}
	return first, last, true
}

// FormatDisplayName renders "Last, First" when both parts are present,
// the available part when only one is, and the raw payload when neither.
func FormatDisplayName(first, last, payload string) string {
	switch {
	case first != "" && last != "":
		return last + ", " + first
	case first != "":
		return first
	case last != "":
		return last
	default:
		return payload
	}
}
