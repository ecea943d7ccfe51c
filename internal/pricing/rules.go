package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules is the YAML rules catalog: loads, discount tiers, tax, fees, and
// rounding. Loaded once at startup and treated as immutable afterwards.
type Rules struct {
	KBVersion string `yaml:"kb_version"`

	AgeLoad struct {
		SeniorAgeMin     int     `yaml:"senior_age_min"`
		SeniorAgeMax     int     `yaml:"senior_age_max"`
		SeniorMultiplier float64 `yaml:"senior_multiplier"`
	} `yaml:"age_load"`

	SportsLoad struct {
		Multiplier float64 `yaml:"multiplier"`
	} `yaml:"sports_load"`

	GroupDiscountTiers []DiscountTier `yaml:"group_discount_tiers"`

	DefaultTaxRate float64 `yaml:"default_tax_rate"`

	Fees struct {
		IssueFeeUSD   float64 `yaml:"issue_fee_usd"`
		PaymentFeeUSD float64 `yaml:"payment_fee_usd"`
	} `yaml:"fees"`

	// RoundingRule is the decimal places for the final total. Nil means 2.
	RoundingRule *int `yaml:"rounding_rule"`
}

// DiscountTier is one inclusive band on the traveller count. A tier without
// max_travellers is open-ended and matches any count at or above its min.
type DiscountTier struct {
	MinTravellers int     `yaml:"min_travellers"`
	MaxTravellers *int    `yaml:"max_travellers"`
	DiscountRate  float64 `yaml:"discount_rate"`
}

// LoadRules reads the rules YAML. A missing kb_version falls back to v1.0.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("open rules file %s: %w", path, err)
	}

	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("parse rules yaml: %w", err)
	}
	if r.KBVersion == "" {
		r.KBVersion = "v1.0"
	}
	return r, nil
}
