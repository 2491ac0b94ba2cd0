package kbb

import "testing"

func TestLookupURLStructured(t *testing.T) {
	got := LookupURL("2015 Toyota Camry LE - $12,500")
	want := "https://www.kbb.com/cars-for-sale/year-2015/make-toyota/model-camry/"
	if got != want {
		t.Errorf("LookupURL = %q, want %q", got, want)
	}
}

func TestLookupURLAliasDropsModel(t *testing.T) {
	// "chevy" maps to Chevrolet, but the converted make no longer appears
	// verbatim in the title, so no model segment is extracted.
	got := LookupURL("2009 chevy silverado 1500")
	want := "https://www.kbb.com/cars-for-sale/year-2009/make-chevrolet/"
	if got != want {
		t.Errorf("LookupURL = %q, want %q", got, want)
	}
}

func TestLookupURLYearAndMakeOnly(t *testing.T) {
	got := LookupURL("2015 Toyota")
	want := "https://www.kbb.com/cars-for-sale/year-2015/make-toyota/"
	if got != want {
		t.Errorf("LookupURL = %q, want %q", got, want)
	}
}

func TestLookupURLStripsNoiseFromModel(t *testing.T) {
	got := LookupURL("2014 Honda Civic $8,500 (clean)")
	want := "https://www.kbb.com/cars-for-sale/year-2014/make-honda/model-civic/"
	if got != want {
		t.Errorf("LookupURL = %q, want %q", got, want)
	}
}

func TestLookupURLFallbackSearch(t *testing.T) {
	got := LookupURL("Peterbilt truck $9,000 runs")
	want := "https://www.kbb.com/cars-for-sale/all?search=Peterbilt+truck+9000+runs"
	if got != want {
		t.Errorf("LookupURL = %q, want %q", got, want)
	}
}

func TestLookupURLFallbackWhenNoYear(t *testing.T) {
	got := LookupURL("Toyota Camry low miles")
	want := "https://www.kbb.com/cars-for-sale/all?search=Toyota+Camry+low+miles"
	if got != want {
		t.Errorf("LookupURL = %q, want %q", got, want)
	}
}

func TestLookupURLEmptyTitle(t *testing.T) {
	if got := LookupURL(""); got != "" {
		t.Errorf("LookupURL on empty title = %q, want empty", got)
	}
}
