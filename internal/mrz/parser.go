// Package mrz decodes ICAO 9303 TD3 machine-readable zones from OCR'd
// passport text.
//
// A TD3 MRZ is the two 44-column lines at the bottom of a passport data
// page. OCR output is noisy: lines arrive with surrounding prose, stray
// whitespace, and truncated filler, so the decoder trims and re-pads each
// line to the fixed width before slicing fields.
package mrz

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// lineLen is the fixed column width of a TD3 MRZ line.
const lineLen = 44

// line1Re matches the start of a TD3 first line: document code P plus the
// filler character.
var line1Re = regexp.MustCompile(`^P<`)

// Record is one decoded passport identity. Dates are ISO YYYY-MM-DD; a date
// field that does not decode is left nil while the rest of the record is
// kept. Both raw 44-column lines are retained for audit.
type Record struct {
	PassportNumber string  `json:"passport_number"`
	IssuingCountry string  `json:"issuing_country"`
	FullName       string  `json:"full_name"`
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	DateOfBirth    *string `json:"date_of_birth"`
	Nationality    string  `json:"nationality"`
	Sex            string  `json:"sex"`
	ExpiryDate     *string `json:"expiry_date"`
	MRZLine1       string  `json:"mrz_line1"`
	MRZLine2       string  `json:"mrz_line2"`
}

// Parse scans one OCR text block for a TD3 MRZ and decodes it by fixed
// columns. It returns nil when no MRZ is found and never panics on malformed
// input. Check digits are not verified in this revision.
//
// Line 1: P<IIISURNAME<<GIVEN<NAMES<<<... (III = issuing state)
// Line 2: NNNNNNNNNCIIIYYMMDDCSYYMMDDC<... (document number, nationality,
// birth date, sex, expiry)
func Parse(ocrText string) *Record {
	lines := strings.Split(strings.ToUpper(ocrText), "\n")

	line1Idx := -1
	for i, line := range lines {
		if line1Re.MatchString(strings.TrimSpace(line)) {
			line1Idx = i
			break
		}
	}
	if line1Idx == -1 || line1Idx+1 >= len(lines) {
		return nil
	}

	line1 := padLine(lines[line1Idx])
	line2 := padLine(lines[line1Idx+1])

	// Names field: surname and given names separated by a double filler.
	namesPart := strings.TrimSpace(strings.ReplaceAll(line1[5:44], "<", " "))
	var nameParts []string
	for _, p := range strings.Split(namesPart, "  ") {
		if p != "" {
			nameParts = append(nameParts, p)
		}
	}
	var lastName, firstName string
	if len(nameParts) > 0 {
		lastName = nameParts[0]
	}
	if len(nameParts) > 1 {
		firstName = strings.Join(nameParts[1:], " ")
	}

	return &Record{
		PassportNumber: strings.TrimSpace(strings.ReplaceAll(line2[0:9], "<", "")),
		IssuingCountry: strings.TrimSpace(strings.ReplaceAll(line1[2:5], "<", "")),
		FullName:       strings.TrimSpace(firstName + " " + lastName),
		FirstName:      firstName,
		LastName:       lastName,
		DateOfBirth:    parseDate(line2[13:19]),
		Nationality:    line2[10:13],
		Sex:            string(line2[20]),
		ExpiryDate:     parseDate(line2[21:27]),
		MRZLine1:       line1,
		MRZLine2:       line2,
	}
}

// padLine trims OCR whitespace and restores the fixed 44-column width with
// trailing filler.
func padLine(line string) string {
	s := strings.TrimSpace(line)
	if len(s) < lineLen {
		s += strings.Repeat("<", lineLen-len(s))
	}
	return s[:lineLen]
}

// parseDate decodes a YYMMDD field to ISO YYYY-MM-DD. Two-digit years map
// through the ICAO window: YY <= 50 reads as 20YY, otherwise 19YY. Returns
// nil when the field is not a valid calendar date.
func parseDate(s string) *string {
	if len(s) != 6 {
		return nil
	}
	yy, err := strconv.Atoi(s[0:2])
	if err != nil {
		return nil
	}
	mm, err := strconv.Atoi(s[2:4])
	if err != nil {
		return nil
	}
	dd, err := strconv.Atoi(s[4:6])
	if err != nil {
		return nil
	}

	yyyy := 1900 + yy
	if yy <= 50 {
		yyyy = 2000 + yy
	}

	// time.Date normalizes overflow (month 13 becomes January), so a
	// round-trip mismatch means the digits were not a real date.
	t := time.Date(yyyy, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
	if t.Year() != yyyy || int(t.Month()) != mm || t.Day() != dd {
		return nil
	}

	out := fmt.Sprintf("%04d-%02d-%02d", yyyy, mm, dd)
	return &out
}
