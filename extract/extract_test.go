package extract

import (
	"fmt"
	"testing"
	"time"
)

func TestYear(t *testing.T) {
	cases := []struct {
		title string
		want  int
		none  bool
	}{
		{title: "2015 Toyota Camry LE", want: 2015},
		{title: "Clean title 1998 Honda Civic", want: 1998},
		{title: "2012 Ford F-150, 2015 wheels", want: 2012},
		{title: "Toyota Camry low miles", none: true},
		{title: "1965 Mustang project", none: true},
		{title: "Price 20150 firm", none: true},
	}
	for _, c := range cases {
		got := Year(c.title)
		if c.none {
			if got != nil {
				t.Errorf("Year(%q) = %d, want nil", c.title, *got)
			}
			continue
		}
		if got == nil || *got != c.want {
			t.Errorf("Year(%q) = %v, want %d", c.title, got, c.want)
		}
	}
}

func TestMake(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"2015 Toyota Camry", "Toyota"},
		{"2010 chevy silverado runs great", "Chevrolet"},
		{"VW Jetta 2012", "Volkswagen"},
		{"HONDA ACCORD 2018", "Honda"},
		{"2008 Peterbilt truck", ""},
	}
	for _, c := range cases {
		if got := Make(c.title); got != c.want {
			t.Errorf("Make(%q) = %q, want %q", c.title, got, c.want)
		}
	}
}

func TestModel(t *testing.T) {
	cases := []struct {
		title string
		mk    string
		want  string
	}{
		{"2015 Toyota Camry LE", "Toyota", "Camry"},
		{"2018 honda cr-v EX-L", "Honda", "Cr-V"},
		{"2004 Toyota 4runner SR5", "Toyota", "4Runner"},
		{"2011 Hyundai Santa Fe", "Hyundai", "Santa Fe"},
		// No keyword match: first token after the make, title-cased.
		{"2009 Toyota Venza AWD", "Toyota", "Venza"},
		// Fallback token too short to be useful.
		{"Toyota X", "Toyota", ""},
		{"2015 Camry", "", ""},
	}
	for _, c := range cases {
		if got := Model(c.title, c.mk); got != c.want {
			t.Errorf("Model(%q, %q) = %q, want %q", c.title, c.mk, got, c.want)
		}
	}
}

func TestNormalizePrice(t *testing.T) {
	cases := []struct{ in, want string }{
		{"$12,500", "12500"},
		{"12500", "12500"},
		{"$1,000 obo", "1000"},
		{"call for price", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizePrice(c.in); got != c.want {
			t.Errorf("NormalizePrice(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizePostingTime(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "N/A"},
		{"2024-03-01T10:00:00", "2024-03-01 10:00:00"},
		{"2024-03-01T10:00", "2024-03-01 10:00:00"},
		{"2024-03-01T10:00:00+07:00", "2024-03-01 10:00:00"},
		{"2024-03-01 10:00:00", "2024-03-01 10:00:00"},
		{"2024-03-01 10:00", "2024-03-01 10:00:00"},
		{"03/01/2024", "2024-03-01 00:00:00"},
		{"03/01/24 10:30", "2024-03-01 10:30:00"},
		{"not a date", "not a date"},
	}
	for _, c := range cases {
		if got := NormalizePostingTime(c.in); got != c.want {
			t.Errorf("NormalizePostingTime(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizePostingTimeMonthName(t *testing.T) {
	year := time.Now().Year()
	want := fmt.Sprintf("%d-03-01 14:30:00", year)
	if got := NormalizePostingTime("Mar 1 14:30"); got != want {
		t.Errorf("NormalizePostingTime(%q) = %q, want %q", "Mar 1 14:30", got, want)
	}
}

// Normalizing an already-canonical value must not change it.
func TestNormalizePostingTimeIdempotent(t *testing.T) {
	in := "2024-03-01 10:00:00"
	once := NormalizePostingTime(in)
	twice := NormalizePostingTime(once)
	if once != in || twice != in {
		t.Errorf("normalization not idempotent: %q -> %q -> %q", in, once, twice)
	}
}

func TestParseCanonical(t *testing.T) {
	got, ok := ParseCanonical("2024-03-01 10:00:00")
	if !ok {
		t.Fatal("expected canonical parse to succeed")
	}
	if got.Year() != 2024 || got.Month() != time.March || got.Day() != 1 {
		t.Errorf("unexpected parse result: %v", got)
	}
	if _, ok := ParseCanonical("N/A"); ok {
		t.Error("expected N/A to fail canonical parse")
	}
}
