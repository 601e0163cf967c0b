package roster

import (
	"testing"
	"time"
)

func loadedResolver(t *testing.T, rows [][]string) *Resolver {
	t.Helper()
	r := NewResolver(nil)
	if _, err := r.Load(rows); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestLoad_CountsDataRows(t *testing.T) {
	r := loadedResolver(t, [][]string{
		{"ID", "First Name", "Last Name"},
		{"V001", "Jane", "Smith"},
		{"V002", "John", "Doe"},
	})
	if r.Count() != 2 {
		t.Fatalf("Count = %d, want 2", r.Count())
	}
	if !r.Loaded() {
		t.Fatal("Loaded = false")
	}
}

func TestLoad_EmptyAndHeaderOnly(t *testing.T) {
	for _, rows := range [][][]string{
		nil,
		{},
		{{"ID", "Name"}},
	} {
		r := NewResolver(nil)
		n, err := r.Load(rows)
		if err != nil {
			t.Fatal(err)
		}
		if n != 0 {
			t.Fatalf("Load(%v) = %d, want 0", rows, n)
		}
		if r.Loaded() {
			t.Fatal("Loaded = true for empty roster")
		}
	}
}

func TestResolve_RosterMatchIsCaseInsensitive(t *testing.T) {
	r := loadedResolver(t, [][]string{
		{"ID Number", "First Name", "Last Name"},
		{"X", "A", "B"},
	})

	for _, payload := range []string{"X", "x", "  x  "} {
		scan := r.Resolve(payload, "QR_CODE", time.Now())
		if !scan.Matched {
			t.Fatalf("payload %q: not matched", payload)
		}
		if scan.Source != SourceRosterMatch {
			t.Fatalf("payload %q: source = %q", payload, scan.Source)
		}
		if scan.DisplayName != "B, A" {
			t.Fatalf("payload %q: display = %q, want %q", payload, scan.DisplayName, "B, A")
		}
	}
}

func TestResolve_CommaPayloadParsedDirectly(t *testing.T) {
	r := NewResolver(nil)

	scan := r.Resolve("Doe, John", "QR_CODE", time.Now())
	if scan.Matched {
		t.Fatal("heuristic result marked as matched")
	}
	if scan.Source != SourceHeuristicExtraction {
		t.Fatalf("source = %q", scan.Source)
	}
	if scan.FirstName != "John" || scan.LastName != "Doe" {
		t.Fatalf("got %q/%q, want John/Doe", scan.FirstName, scan.LastName)
	}
	if scan.DisplayName != "Doe, John" {
		t.Fatalf("display = %q", scan.DisplayName)
	}
}

func TestResolve_EmailPayload(t *testing.T) {
	r := NewResolver(nil)

	scan := r.Resolve("john.doe@example.com", "QR_CODE", time.Now())
	if scan.Matched {
		t.Fatal("heuristic result marked as matched")
	}
	if scan.FirstName != "John" || scan.LastName != "Doe" {
		t.Fatalf("got %q/%q, want cleaned John/Doe", scan.FirstName, scan.LastName)
	}
}

func TestResolve_Unresolved(t *testing.T) {
	r := NewResolver(nil)

	scan := r.Resolve("0123456789", "CODE_128", time.Now())
	if scan.Source != SourceUnresolved {
		t.Fatalf("source = %q", scan.Source)
	}
	if scan.DisplayName != "0123456789" {
		t.Fatalf("display = %q", scan.DisplayName)
	}
}

func TestResolve_RosterTakesPrecedenceOverHeuristics(t *testing.T) {
	r := loadedResolver(t, [][]string{
		{"ID", "First Name", "Last Name"},
		{"Doe, John", "Jane", "Smith"},
	})

	scan := r.Resolve("Doe, John", "QR_CODE", time.Now())
	if !scan.Matched || scan.FirstName != "Jane" {
		t.Fatalf("roster not preferred: %+v", scan)
	}
}

func TestDetectColumns_Keywords(t *testing.T) {
	tests := []struct {
		header []string
		want   columns
	}{
		{
			header: []string{"ID Number", "First Name", "Last Name"},
			want:   columns{id: 0, first: 1, last: 2, combined: -1},
		},
		{
			header: []string{"Email", "Volunteer #", "First Name", "Last Name"},
			want:   columns{id: 1, first: 2, last: 3, combined: -1},
		},
		{
			header: []string{"Code", "Name"},
			want:   columns{id: 0, first: 1, last: 2, combined: 1},
		},
	}
	for _, tt := range tests {
		if got := detectColumns(tt.header); got != tt.want {
			t.Errorf("detectColumns(%v) = %+v, want %+v", tt.header, got, tt.want)
		}
	}
}

func TestLoad_CombinedNameColumn(t *testing.T) {
	r := loadedResolver(t, [][]string{
		{"ID", "Name"},
		{"V001", "Smith, Jane"},
		{"V002", "Cher"},
	})

	scan := r.Resolve("V001", "QR_CODE", time.Now())
	if scan.FirstName != "Jane" || scan.LastName != "Smith" {
		t.Fatalf("got %q/%q, want Jane/Smith", scan.FirstName, scan.LastName)
	}

	scan = r.Resolve("V002", "QR_CODE", time.Now())
	if scan.FirstName != "Cher" || scan.LastName != "" {
		t.Fatalf("got %q/%q, want Cher/", scan.FirstName, scan.LastName)
	}
}

func TestLoad_ReplacesSnapshot(t *testing.T) {
	r := loadedResolver(t, [][]string{
		{"ID", "First Name", "Last Name"},
		{"V001", "Jane", "Smith"},
	})
	if _, err := r.Load([][]string{
		{"ID", "First Name", "Last Name"},
		{"V002", "John", "Doe"},
	}); err != nil {
		t.Fatal(err)
	}

	if scan := r.Resolve("V001", "QR_CODE", time.Now()); scan.Matched {
		t.Fatal("stale roster entry still matches after reload")
	}
	if scan := r.Resolve("V002", "QR_CODE", time.Now()); !scan.Matched {
		t.Fatal("new roster entry not found")
	}
}

func TestFormatDisplayName(t *testing.T) {
	tests := []struct {
		first, last, payload, want string
	}{
		{"Jane", "Smith", "V001", "Smith, Jane"},
		{"Jane", "", "V001", "Jane"},
		{"", "Smith", "V001", "Smith"},
		{"", "", "V001", "V001"},
	}
	for _, tt := range tests {
		if got := FormatDisplayName(tt.first, tt.last, tt.payload); got != tt.want {
			t.Errorf("FormatDisplayName(%q, %q, %q) = %q, want %q",
				tt.first, tt.last, tt.payload, got, tt.want)
		}
	}
}
