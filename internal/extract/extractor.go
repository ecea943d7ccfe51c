// Package extract pulls policy parameters out of free-text email bodies.
//
// Detection is deliberately shallow and regex-driven: it over-matches (the
// bare word "insurance" satisfies intent) and only handles English. The
// completeness gate downstream decides whether enough was found; this
// package never errors, it just leaves fields nil.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tripvera/travel-intake/internal/domain"
)

// Result carries everything the extractor could find in one body. Bool
// fields always carry a value; everything else is nil when absent.
type Result struct {
	IntentOK       bool              `json:"intent_ok"`
	Direction      *domain.Direction `json:"direction"`
	Scope          *domain.Scope     `json:"scope"`
	Plan           *domain.Plan      `json:"plan"`
	CoverageLimit  *int              `json:"coverage_limit"`
	Days           *int              `json:"days"`
	StartDate      *string           `json:"start_date"`
	EndDate        *string           `json:"end_date"`
	SportsCoverage bool              `json:"sports_coverage"`
}

var intentRes = []*regexp.Regexp{
	regexp.MustCompile(`travel\s+insurance`),
	regexp.MustCompile(`\binsurance\b`),
	regexp.MustCompile(`\bpolic(y|ies)\b`),
	regexp.MustCompile(`\bcover(age)?\b`),
	regexp.MustCompile(`\bissue`),
	regexp.MustCompile(`\barrange`),
	regexp.MustCompile(`\bprovide`),
	regexp.MustCompile(`\binsure`),
	regexp.MustCompile(`\bquote`),
}

var (
	inboundRe  = regexp.MustCompile(`\binbound\b`)
	outboundRe = regexp.MustCompile(`\boutbound\b`)

	scopeExclRe = regexp.MustCompile(`(worldwide\s+excluding|world\s+except|excl\.?\s*(us|usa|canada)|excluding\s*(us|usa|canada)|excluding\s+country\s+of\s+residence)`)
	worldwideRe = regexp.MustCompile(`worldwide`)
	europeRe    = regexp.MustCompile(`(europe|greece)`)

	platinumRe = regexp.MustCompile(`\bplatinum\b`)
	goldPlusRe = regexp.MustCompile(`gold\s+plus`)
	goldRe     = regexp.MustCompile(`\bgold\b`)
	silverRe   = regexp.MustCompile(`\bsilver\b`)

	// Dollar amounts like "$50,000" or "300,000"; the two digit groups are
	// concatenated. A bare three-digit amount does not match.
	coverageRe = regexp.MustCompile(`\$?\s?(\d+),?(\d{3})`)

	daysRe   = regexp.MustCompile(`(\d+)\s+days?`)
	weeksRe  = regexp.MustCompile(`(\d+)\s+weeks?`)
	monthsRe = regexp.MustCompile(`(\d+)\s+months?`)

	isoDateRe = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	dmyDateRe = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{4})`)
	ymdDateRe = regexp.MustCompile(`(\d{4})[/-](\d{1,2})[/-](\d{1,2})`)

	sportsRe = regexp.MustCompile(`(sports?\s+coverage|sports?\s+activit|motorcycle)`)
)

// coverageToPlan maps a detected dollar limit to the plan tier that carries
// it. Both the abbreviated ("50") and full ("50,000") spellings appear in
// real mail.
var coverageToPlan = map[int]domain.Plan{
	50:     domain.PlanSilver,
	50000:  domain.PlanSilver,
	100:    domain.PlanGold,
	100000: domain.PlanGold,
	300:    domain.PlanGoldPlus,
	300000: domain.PlanGoldPlus,
	500:    domain.PlanPlatinum,
	500000: domain.PlanPlatinum,
}

// Extract runs the full pattern battery over one email body. Word patterns
// scan the lower-cased text; digit patterns scan the raw text.
func Extract(body string) Result {
	lower := strings.ToLower(body)
	res := Result{}

	for _, re := range intentRes {
		if re.MatchString(lower) {
			res.IntentOK = true
			break
		}
	}

	if inboundRe.MatchString(lower) {
		d, s := domain.DirectionInbound, domain.ScopeInbound
		res.Direction, res.Scope = &d, &s
	} else if outboundRe.MatchString(lower) {
		d := domain.DirectionOutbound
		res.Direction = &d
	}

	// Inbound implies its own scope; everything else goes through the
	// geographic patterns, with europe/greece as a fallback bucket.
	if res.Scope == nil {
		if scopeExclRe.MatchString(lower) {
			s := domain.ScopeWorldwideExclUS
			res.Scope = &s
		} else if worldwideRe.MatchString(lower) {
			s := domain.ScopeWorldwide
			res.Scope = &s
		}
	}
	if res.Scope == nil && europeRe.MatchString(lower) {
		s := domain.ScopeWorldwideExclUS
		res.Scope = &s
	}

	switch {
	case platinumRe.MatchString(lower):
		p := domain.PlanPlatinum
		res.Plan = &p
	case goldPlusRe.MatchString(lower):
		p := domain.PlanGoldPlus
		res.Plan = &p
	case goldRe.MatchString(lower):
		p := domain.PlanGold
		res.Plan = &p
	case silverRe.MatchString(lower):
		p := domain.PlanSilver
		res.Plan = &p
	}

	if res.Plan == nil {
		if m := coverageRe.FindStringSubmatch(body); m != nil {
			if amount, err := strconv.Atoi(m[1] + m[2]); err == nil {
				if plan, ok := coverageToPlan[amount]; ok {
					res.Plan = &plan
				}
			}
		}
	}

	if m := daysRe.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			res.Days = &n
		}
	}
	if res.Days == nil || *res.Days == 0 {
		if m := weeksRe.FindStringSubmatch(lower); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				n *= 7
				res.Days = &n
			}
		} else if m := monthsRe.FindStringSubmatch(lower); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				n *= 30
				res.Days = &n
			}
		}
	}

	res.StartDate, res.EndDate = extractDates(body)

	res.SportsCoverage = sportsRe.MatchString(lower)

	return res
}

// extractDates finds a travel window. ISO dates win; the D/M/Y and Y/M/D
// shapes are fallbacks. A single date of any shape yields nothing: the
// completeness gate asks the sender rather than guessing an end date.
func extractDates(body string) (start, end *string) {
	if m := isoDateRe.FindAllStringSubmatch(body, -1); len(m) >= 2 {
		s := m[0][1] + "-" + m[0][2] + "-" + m[0][3]
		e := m[1][1] + "-" + m[1][2] + "-" + m[1][3]
		return &s, &e
	}

	if m := dmyDateRe.FindAllStringSubmatch(body, -1); len(m) >= 2 {
		s := m[0][3] + "-" + pad2(m[0][2]) + "-" + pad2(m[0][1])
		e := m[1][3] + "-" + pad2(m[1][2]) + "-" + pad2(m[1][1])
		return &s, &e
	}
	if m := ymdDateRe.FindAllStringSubmatch(body, -1); len(m) >= 2 {
		s := m[0][1] + "-" + pad2(m[0][2]) + "-" + pad2(m[0][3])
		e := m[1][1] + "-" + pad2(m[1][2]) + "-" + pad2(m[1][3])
		return &s, &e
	}
	return nil, nil
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
