package sanitize

import (
	"errors"
	"strings"
	"testing"
)

func TestCleanPath_RejectsTraversal(t *testing.T) {
	inputs := []string{
		"../../secrets",
		"../secrets",
		"valid/../../etc",
		"valid/../valid",
		`valid\..\valid`,
		"..",
		"a/b/c/../d",
	}

	for _, input := range inputs {
		if _, err := CleanPath(input, "Documents"); !errors.Is(err, ErrTraversal) {
			t.Errorf("CleanPath(%q): expected ErrTraversal, got %v", input, err)
		}
	}
}

func TestCleanPath_RejectsEmpty(t *testing.T) {
	for _, input := range []string{"", "   ", "///", "/./."} {
		if _, err := CleanPath(input, "Documents"); err == nil {
			t.Errorf("CleanPath(%q): expected error, got nil", input)
		}
	}
}

func TestCleanPath_RejectsControlCharacters(t *testing.T) {
	if _, err := CleanPath("docs/\x00evil", "Documents"); !errors.Is(err, ErrControlChars) {
		t.Errorf("expected ErrControlChars, got %v", err)
	}
	if _, err := CleanPath("docs/tab\there", "Documents"); !errors.Is(err, ErrControlChars) {
		t.Errorf("expected ErrControlChars for tab, got %v", err)
	}
}

func TestCleanPath_InsertsRoot(t *testing.T) {
	tests := []struct {
		input string
		want  Path
	}{
		{"invoices/2025", "/Documents/invoices/2025"},
		{"/Documents/invoices", "/Documents/invoices"},
		{"documents/reports", "/documents/reports"}, // case-insensitive root match
		{"a//b///c", "/Documents/a/b/c"},
	}

	for _, tt := range tests {
		got, err := CleanPath(tt.input, "Documents")
		if err != nil {
			t.Fatalf("CleanPath(%q): %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("CleanPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCleanPath_ReplacesDisallowedCharacters(t *testing.T) {
	got, err := CleanPath(`reports/q1<final>:draft`, "Documents")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/Documents/reports/q1_final__draft" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestCleanPath_CapsSegmentLength(t *testing.T) {
	long := strings.Repeat("a", 300)
	got, err := CleanPath("x/"+long, "Documents")
	if err != nil {
		t.Fatal(err)
	}
	for _, seg := range strings.Split(string(got), "/") {
		if len(seg) > 255 {
			t.Errorf("segment exceeds 255 bytes: %d", len(seg))
		}
	}
}

func TestCanonicalPath(t *testing.T) {
	got, err := CanonicalPath(StructuredID{RecordID: "E1", CategoryCode: "ACME", Year: 2025})
	if err != nil {
		t.Fatal(err)
	}
	if got != "/Receipts/2025/ACME/E1" {
		t.Errorf("CanonicalPath = %q, want /Receipts/2025/ACME/E1", got)
	}
}

func TestCanonicalPath_SanitizesSegments(t *testing.T) {
	got, err := CanonicalPath(StructuredID{RecordID: "E<1>", CategoryCode: "AC:ME", Year: 2024})
	if err != nil {
		t.Fatal(err)
	}
	if got != "/Receipts/2024/AC_ME/E_1_" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestCanonicalPath_RequiresRecordID(t *testing.T) {
	if _, err := CanonicalPath(StructuredID{CategoryCode: "ACME"}); err == nil {
		t.Error("expected error for empty record id")
	}
}

func TestCanonicalPath_OmitsMissingSegments(t *testing.T) {
	got, err := CanonicalPath(StructuredID{RecordID: "E9"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "/Receipts/E9" {
		t.Errorf("unexpected result %q", got)
	}
}

func TestCleanName_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  Name
	}{
		{"report.pdf", "report.pdf"},
		{"  invoice.xlsx ", "invoice.xlsx"},
		{`bad<name>.txt`, "bad_name_.txt"},
		{"trailing...", "trailing"},
	}

	for _, tt := range tests {
		got, err := CleanName(tt.input)
		if err != nil {
			t.Fatalf("CleanName(%q): %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("CleanName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCleanName_Rejections(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{"", ErrEmptyName},
		{"   ", ErrEmptyName},
		{"a/b.txt", ErrSeparatorName},
		{`a\b.txt`, ErrSeparatorName},
		{"..", ErrTraversal},
		{"CON", ErrReservedName},
		{"con.txt", ErrReservedName},
		{"LPT1.pdf", ErrReservedName},
		{"bell\x07.txt", ErrControlChars},
	}

	for _, tt := range tests {
		if _, err := CleanName(tt.input); !errors.Is(err, tt.want) {
			t.Errorf("CleanName(%q): expected %v, got %v", tt.input, tt.want, err)
		}
	}
}

func TestCleanName_TruncatesPreservingExtension(t *testing.T) {
	long := strings.Repeat("x", 300) + ".pdf"
	got, err := CleanName(long)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) > 255 {
		t.Errorf("name exceeds 255 bytes: %d", len(got))
	}
	if !strings.HasSuffix(string(got), ".pdf") {
		t.Errorf("extension not preserved: %q", got)
	}
}
