package mrz

import "testing"

const validPassportOCR = `
P<LBNALHAJ<<ALI<<<<<<<<<<<<<<<<<<<<<<<<<<<<<<
AB1234567<LBN9001015M2501011<<<<<<<<<<<<<<06
`

func TestParseValidPassport(t *testing.T) {
	rec := Parse(validPassportOCR)
	if rec == nil {
		t.Fatal("Parse() returned nil for valid MRZ")
	}

	if rec.PassportNumber != "AB1234567" {
		t.Errorf("PassportNumber = %q, want AB1234567", rec.PassportNumber)
	}
	if rec.FullName != "ALI ALHAJ" {
		t.Errorf("FullName = %q, want ALI ALHAJ", rec.FullName)
	}
	if rec.FirstName != "ALI" {
		t.Errorf("FirstName = %q, want ALI", rec.FirstName)
	}
	if rec.LastName != "ALHAJ" {
		t.Errorf("LastName = %q, want ALHAJ", rec.LastName)
	}
	if rec.IssuingCountry != "LBN" {
		t.Errorf("IssuingCountry = %q, want LBN", rec.IssuingCountry)
	}
	if rec.Nationality != "LBN" {
		t.Errorf("Nationality = %q, want LBN", rec.Nationality)
	}
	if rec.Sex != "M" {
		t.Errorf("Sex = %q, want M", rec.Sex)
	}
	if rec.DateOfBirth == nil || *rec.DateOfBirth != "1990-01-01" {
		t.Errorf("DateOfBirth = %v, want 1990-01-01", rec.DateOfBirth)
	}
	if rec.ExpiryDate == nil || *rec.ExpiryDate != "2025-01-01" {
		t.Errorf("ExpiryDate = %v, want 2025-01-01", rec.ExpiryDate)
	}
	if len(rec.MRZLine1) != 44 || len(rec.MRZLine2) != 44 {
		t.Errorf("raw lines not 44 columns: %d, %d", len(rec.MRZLine1), len(rec.MRZLine2))
	}
}

func TestParseNoMRZ(t *testing.T) {
	if rec := Parse("Some random text without MRZ"); rec != nil {
		t.Errorf("Parse() = %+v, want nil", rec)
	}
}

func TestParseHeaderLineOnly(t *testing.T) {
	// A P< line with nothing after it cannot yield a record.
	if rec := Parse("P<LBNALHAJ<<ALI"); rec != nil {
		t.Errorf("Parse() = %+v, want nil", rec)
	}
}

func TestParseLowercaseInput(t *testing.T) {
	ocr := "p<lbnalhaj<<ali<<<<<<<<<<\nab1234567<lbn9001015m2501011"
	rec := Parse(ocr)
	if rec == nil {
		t.Fatal("Parse() returned nil for lowercase MRZ")
	}
	if rec.FullName != "ALI ALHAJ" {
		t.Errorf("FullName = %q, want ALI ALHAJ", rec.FullName)
	}
}

func TestParseMultipleGivenNames(t *testing.T) {
	ocr := "P<GBRSMITH<<JOHN<JAMES<<<<<<<<<<<<<<<<<<<<<<\n1234567890GBR8505159F3001015<<<<<<<<<<<<<<02"
	rec := Parse(ocr)
	if rec == nil {
		t.Fatal("Parse() returned nil")
	}
	if rec.LastName != "SMITH" {
		t.Errorf("LastName = %q, want SMITH", rec.LastName)
	}
	if rec.FirstName != "JOHN JAMES" {
		t.Errorf("FirstName = %q, want JOHN JAMES", rec.FirstName)
	}
	if rec.FullName != "JOHN JAMES SMITH" {
		t.Errorf("FullName = %q, want JOHN JAMES SMITH", rec.FullName)
	}
}

func TestParseBadBirthDateKeepsRecord(t *testing.T) {
	// Garbled date digits drop the date but not the whole identity.
	ocr := "P<LBNALHAJ<<ALI\nAB1234567<LBN9O01015M2501011"
	rec := Parse(ocr)
	if rec == nil {
		t.Fatal("Parse() returned nil")
	}
	if rec.DateOfBirth != nil {
		t.Errorf("DateOfBirth = %v, want nil", *rec.DateOfBirth)
	}
	if rec.PassportNumber != "AB1234567" {
		t.Errorf("PassportNumber = %q, want AB1234567", rec.PassportNumber)
	}
}

func TestParseDateWindow(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"900101", "1990-01-01"},
		{"250101", "2025-01-01"},
		{"600101", "1960-01-01"},
		{"500101", "2050-01-01"},
		{"510101", "1951-01-01"},
	}
	for _, tc := range cases {
		got := parseDate(tc.in)
		if got == nil {
			t.Errorf("parseDate(%q) = nil, want %s", tc.in, tc.want)
			continue
		}
		if *got != tc.want {
			t.Errorf("parseDate(%q) = %s, want %s", tc.in, *got, tc.want)
		}
	}
}

func TestParseDateInvalid(t *testing.T) {
	for _, in := range []string{"invalid", "", "12345", "9001", "<<<<<<", "901301", "900132", "900230"} {
		if got := parseDate(in); got != nil {
			t.Errorf("parseDate(%q) = %s, want nil", in, *got)
		}
	}
}
