package utils

import "testing"

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"100.50", "100.5", false},
		{"5.0", "5", false},
		{" 250 ", "250", false},
		{"1,234.50", "1234.5", false},
		{"", "0", false},
		{"abc", "", true},
		{"12.3.4", "", true},
	}
	for _, c := range cases {
		got, err := ParseDecimal(c.in)
		if c.wantErr {
			if err == nil {
				t.Fatalf("ParseDecimal(%q): expected error, got %s", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDecimal(%q): %v", c.in, err)
		}
		if got.String() != c.want {
			t.Fatalf("ParseDecimal(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestParseDecimalNumericEquality(t *testing.T) {
	a, err := ParseDecimal("5.0")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseDecimal("5")
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Fatalf("expected 5.0 and 5 to compare equal")
	}
}

func TestExtractObjectKeyFromURL(t *testing.T) {
	t.Setenv("GCS_BUCKET", "fxcard-review")

	cases := map[string]string{
		"bulk-files/2026/bulk_export_20260901_120000.xlsx":                          "bulk-files/2026/bulk_export_20260901_120000.xlsx",
		"gs://fxcard-review/bulk-files/2026/a.xlsx":                                 "bulk-files/2026/a.xlsx",
		"https://storage.googleapis.com/fxcard-review/bulk-files/2026/a.xlsx":       "bulk-files/2026/a.xlsx",
		"https://portal.example.com/bulk/object?key=bulk-files%2F2026%2Fa.xlsx":     "bulk-files/2026/a.xlsx",
		"bulk-files/../secrets.txt":                                                 "",
	}
	for in, want := range cases {
		if got := ExtractObjectKeyFromURL(in); got != want {
			t.Fatalf("ExtractObjectKeyFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}
