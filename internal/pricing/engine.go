// Package pricing computes deterministic premium quotes from a banded
// tariff table and a rules catalog.
//
// All monetary arithmetic uses shopspring/decimal; binary floating point
// never touches a money value. YAML rates arrive as float64 and are
// converted once, at load boundaries, via decimal.NewFromFloat.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tripvera/travel-intake/internal/domain"
)

// Band is one inclusive trip-length range keyed into the tariff table.
type Band struct {
	Min int
	Max int
}

// bands covers 1..92 days. Outside this range no tariff applies.
var bands = []Band{
	{1, 7},
	{8, 15},
	{16, 31},
	{32, 45},
	{46, 92},
}

// TravellerInput is the pricing-relevant slice of one traveller. A nil age
// (unknown date of birth) never qualifies for the senior load.
type TravellerInput struct {
	AgeAtTravel *int
}

// TravellerPremium is the per-traveller breakdown of one quote.
type TravellerPremium struct {
	Base       decimal.Decimal
	AgeLoad    decimal.Decimal
	SportsLoad decimal.Decimal
	Total      decimal.Decimal
}

// Quote is one fully-aggregated premium calculation.
type Quote struct {
	BasePerTraveller  decimal.Decimal
	Breakdown         []TravellerPremium
	Subtotal          decimal.Decimal
	GroupDiscount     decimal.Decimal
	GroupDiscountRate decimal.Decimal
	Net               decimal.Decimal
	Tax               decimal.Decimal
	TaxRate           decimal.Decimal
	Fees              decimal.Decimal
	Total             decimal.Decimal
	Currency          string

	// Summed loads across travellers, persisted alongside the case.
	AgeLoadTotal    decimal.Decimal
	SportsLoadTotal decimal.Decimal
}

// Engine prices policies against an immutable tariff table and rules
// catalog. Safe for concurrent use: nothing is mutated after Load.
type Engine struct {
	tariffs map[Key]Tariff
	rules   Rules
}

// Load builds an engine from the packaged tariff CSV and rules YAML.
func Load(tariffPath, rulesPath string) (*Engine, error) {
	tariffs, err := LoadTariffs(tariffPath)
	if err != nil {
		return nil, err
	}
	rules, err := LoadRules(rulesPath)
	if err != nil {
		return nil, err
	}
	return NewEngine(tariffs, rules), nil
}

// NewEngine wraps already-loaded configuration. Used by tests.
func NewEngine(tariffs map[Key]Tariff, rules Rules) *Engine {
	return &Engine{tariffs: tariffs, rules: rules}
}

// KBVersion identifies the loaded rules catalog; stamped onto every case.
func (e *Engine) KBVersion() string {
	return e.rules.KBVersion
}

// IsSenior reports whether an age falls in the configured senior band.
// Nil (unknown) ages are never senior.
func (e *Engine) IsSenior(age *int) bool {
	if age == nil {
		return false
	}
	return *age >= e.rules.AgeLoad.SeniorAgeMin && *age <= e.rules.AgeLoad.SeniorAgeMax
}

// Quote computes the full premium for one case.
//
// Per traveller: base from the tariff row; age load = base x
// senior_multiplier inside the senior band; sports load = (base + age load)
// x sports multiplier when the flag is set. Aggregation: subtotal, tiered
// group discount, tax on the net, flat fees, then a banker's round of the
// gross to the configured places.
func (e *Engine) Quote(scope domain.Scope, plan domain.Plan, days int, travellers []TravellerInput, sportsFlag bool) (*Quote, error) {
	band, ok := dayBand(days)
	if !ok {
		return nil, fmt.Errorf("%w: %d, must be 1-92", ErrInvalidDays, days)
	}

	tariff, ok := e.tariffs[Key{Scope: scope, Plan: plan, BandMin: band.Min, BandMax: band.Max}]
	if !ok {
		return nil, fmt.Errorf("%w for %s, %s, %d days", ErrNoTariff, scope, plan, days)
	}

	base := tariff.Premium
	seniorMult := decimal.NewFromFloat(e.rules.AgeLoad.SeniorMultiplier)
	sportsMult := decimal.NewFromFloat(e.rules.SportsLoad.Multiplier)

	q := &Quote{
		BasePerTraveller: base,
		Currency:         tariff.Currency,
		Breakdown:        make([]TravellerPremium, 0, len(travellers)),
	}

	for _, tr := range travellers {
		p := TravellerPremium{Base: base}
		if e.IsSenior(tr.AgeAtTravel) {
			p.AgeLoad = base.Mul(seniorMult)
		}
		if sportsFlag {
			p.SportsLoad = base.Add(p.AgeLoad).Mul(sportsMult)
		}
		p.Total = base.Add(p.AgeLoad).Add(p.SportsLoad)

		q.Breakdown = append(q.Breakdown, p)
		q.Subtotal = q.Subtotal.Add(p.Total)
		q.AgeLoadTotal = q.AgeLoadTotal.Add(p.AgeLoad)
		q.SportsLoadTotal = q.SportsLoadTotal.Add(p.SportsLoad)
	}

	q.GroupDiscountRate = e.groupDiscountRate(len(travellers))
	q.GroupDiscount = q.Subtotal.Mul(q.GroupDiscountRate)
	q.Net = q.Subtotal.Sub(q.GroupDiscount)

	q.TaxRate = decimal.NewFromFloat(e.rules.DefaultTaxRate)
	q.Tax = q.Net.Mul(q.TaxRate)

	q.Fees = decimal.NewFromFloat(e.rules.Fees.IssueFeeUSD).
		Add(decimal.NewFromFloat(e.rules.Fees.PaymentFeeUSD))

	gross := q.Net.Add(q.Tax).Add(q.Fees)

	places := int32(2)
	if e.rules.RoundingRule != nil {
		places = int32(*e.rules.RoundingRule)
	}
	q.Total = gross.RoundBank(places)

	return q, nil
}

// dayBand maps a trip length onto its tariff band.
func dayBand(days int) (Band, bool) {
	for _, b := range bands {
		if days >= b.Min && days <= b.Max {
			return b, true
		}
	}
	return Band{}, false
}

// groupDiscountRate walks the tiers in file order; the first match wins.
func (e *Engine) groupDiscountRate(travellers int) decimal.Decimal {
	for _, tier := range e.rules.GroupDiscountTiers {
		if tier.MaxTravellers == nil {
			if travellers >= tier.MinTravellers {
				return decimal.NewFromFloat(tier.DiscountRate)
			}
			continue
		}
		if travellers >= tier.MinTravellers && travellers <= *tier.MaxTravellers {
			return decimal.NewFromFloat(tier.DiscountRate)
		}
	}
	return decimal.Zero
}
