package roster

import (
	"encoding/json"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NameExtractor is one strategy for recovering a person name from an
// ambiguous payload. Strategies are tried in a fixed priority order so the
// fallback behavior stays auditable and each rule testable on its own.
type NameExtractor interface {
	// Name identifies the strategy in logs.
	Name() string
	// Extract reports a (first, last) pair when the strategy applies.
	Extract(data string) (first, last string, ok bool)
}

// defaultExtractors is the resolution fallback chain, in priority order.
var defaultExtractors = []NameExtractor{
	commaExtractor{},
	whitespaceExtractor{},
	emailExtractor{},
	urlPathExtractor{},
	jsonExtractor{},
	capitalizedPairExtractor{},
}

// ExtractName runs the default extractor chain over the payload. The first
// strategy that yields a pair wins.
func ExtractName(data string) (first, last string, ok bool) {
	data = strings.TrimSpace(data)
	if data == "" {
		return "", "", false
	}
	for _, ex := range defaultExtractors {
		if f, l, ok := ex.Extract(data); ok {
			return f, l, true
		}
	}
	return "", "", false
}

var trailingText = regexp.MustCompile(`\s+.*$`)

// commaExtractor handles "Last, First" and "Last, First <anything>".
type commaExtractor struct{}

func (commaExtractor) Name() string { return "comma" }

func (commaExtractor) Extract(data string) (string, string, bool) {
	if !strings.Contains(data, ",") {
		return "", "", false
	}
	parts := strings.Split(data, ",")
	if len(parts) < 2 {
		return "", "", false
	}
	last := strings.TrimSpace(parts[0])
	// Anything after the first name token is dropped ("Doe, John x123").
	first := trailingText.ReplaceAllString(strings.TrimSpace(parts[1]), "")
	return first, last, true
}

// whitespaceExtractor handles "First Last", but only when the payload has
// no email or URL markers.
type whitespaceExtractor struct{}

func (whitespaceExtractor) Name() string { return "whitespace" }

func (whitespaceExtractor) Extract(data string) (string, string, bool) {
	words := strings.Fields(data)
	if len(words) < 2 {
		return "", "", false
	}
	for _, marker := range []string{"@", "http", "www", ".com", ".org"} {
		if strings.Contains(data, marker) {
			return "", "", false
		}
	}
	return words[0], words[1], true
}

var emailLocalPart = regexp.MustCompile(`^([^.]+)\.([^@]+)@`)

// emailExtractor handles "first.last@domain".
type emailExtractor struct{}

func (emailExtractor) Name() string { return "email" }

func (emailExtractor) Extract(data string) (string, string, bool) {
	if !strings.Contains(data, "@") {
		return "", "", false
	}
	m := emailLocalPart.FindStringSubmatch(data)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

var urlPathPair = regexp.MustCompile(`/([^/]+)/([^/?]+)`)

// urlPathExtractor pulls two consecutive path segments out of a URL.
type urlPathExtractor struct{}

func (urlPathExtractor) Name() string { return "url-path" }

func (urlPathExtractor) Extract(data string) (string, string, bool) {
	if !strings.Contains(strings.ToLower(data), "http") {
		return "", "", false
	}
	m := urlPathPair.FindStringSubmatch(data)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// jsonExtractor handles JSON object payloads with firstName/first_name
// pairs, or a single name field that is re-run through the chain.
type jsonExtractor struct{}

func (jsonExtractor) Name() string { return "json" }

func (jsonExtractor) Extract(data string) (string, string, bool) {
	if !strings.HasPrefix(data, "{") || !strings.HasSuffix(data, "}") {
		return "", "", false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return "", "", false
	}
	if f, l, ok := stringPair(obj, "firstName", "lastName"); ok {
		return f, l, true
	}
	if f, l, ok := stringPair(obj, "first_name", "last_name"); ok {
		return f, l, true
	}
	if name, ok := obj["name"].(string); ok && name != "" {
		if f, l, ok := ExtractName(name); ok {
			return f, l, true
		}
		return name, "", true
	}
	return "", "", false
}

func stringPair(obj map[string]any, firstKey, lastKey string) (string, string, bool) {
	f, fok := obj[firstKey].(string)
	l, lok := obj[lastKey].(string)
	if !fok || !lok {
		return "", "", false
	}
	return f, l, true
}

var capitalizedWord = regexp.MustCompile(`\b[A-Z][a-z]+\b`)

// capitalizedPairExtractor is the last resort: the first two capitalized
// words anywhere in the payload.
type capitalizedPairExtractor struct{}

func (capitalizedPairExtractor) Name() string { return "capitalized-pair" }

func (capitalizedPairExtractor) Extract(data string) (string, string, bool) {
	words := capitalizedWord.FindAllString(data, 3)
	if len(words) < 2 {
		return "", "", false
	}
	return words[0], words[1], true
}

var nonNameChars = regexp.MustCompile(`[^\w\s\-.]`)

// CleanName normalizes an extracted name fragment: collapsed whitespace,
// name-safe characters only, title case.
func CleanName(name string) string {
	if name == "" {
		return ""
	}
	name = strings.Join(strings.Fields(name), " ")
	name = nonNameChars.ReplaceAllString(name, "")
	return cases.Title(language.Und).String(name)
}
