package roster

import "testing"

func TestExtractName_Chain(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		first string
		last  string
		ok    bool
	}{
		{"comma", "Doe, John", "John", "Doe", true},
		{"comma with trailing", "Doe, John x123", "John", "Doe", true},
		{"whitespace", "John Doe", "John", "Doe", true},
		{"whitespace extra words", "John Doe Volunteer", "John", "Doe", true},
		{"email", "john.doe@example.com", "john", "doe", true},
		{"url path", "http /john/doe", "john", "doe", true},
		{"url host wins", "https://example.com/volunteers/list", "example.com", "volunteers", true},
		{"json camel", `{"firstName":"John","lastName":"Doe"}`, "John", "Doe", true},
		{"json snake", `{"first_name":"John","last_name":"Doe"}`, "John", "Doe", true},
		{"json name field", `{"name":"Doe, John"}`, "John", "Doe", true},
		{"json bare name", `{"name":"Cher"}`, "Cher", "", true},
		{"capitalized pair", "x-John-Doe", "John", "Doe", true},
		{"numeric", "0123456789", "", "", false},
		{"empty", "", "", "", false},
		{"whitespace only", "   ", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last, ok := ExtractName(tt.data)
			if ok != tt.ok || first != tt.first || last != tt.last {
				t.Errorf("ExtractName(%q) = %q, %q, %v; want %q, %q, %v",
					tt.data, first, last, ok, tt.first, tt.last, tt.ok)
			}
		})
	}
}

func TestExtractName_MarkersBlockWhitespaceRule(t *testing.T) {
	// The whitespace rule must not fire on payloads carrying an email or
	// URL marker; the email rule picks those up instead.
	first, last, ok := ExtractName("john.doe@example.com extra")
	if !ok {
		t.Fatal("no extraction")
	}
	if first != "john" || last != "doe" {
		t.Fatalf("got %q/%q, want john/doe", first, last)
	}
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"john", "John"},
		{"  jane   smith ", "Jane Smith"},
		{"o'brien", "Obrien"},
		{"mary-ann", "Mary-Ann"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanName(tt.in); got != tt.want {
			t.Errorf("CleanName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
