package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Direction classifies who is travelling relative to the issuing country.
type Direction string

const (
	DirectionOutbound Direction = "OUTBOUND"
	DirectionInbound  Direction = "INBOUND"
)

// Scope is the geographic coverage classification of a policy.
type Scope string

const (
	ScopeWorldwide       Scope = "WORLDWIDE"
	ScopeWorldwideExclUS Scope = "WW_EXCL_US_CA"
	ScopeInbound         Scope = "INBOUND"
)

// Plan enumerates the sellable policy tiers.
type Plan string

const (
	PlanSilver   Plan = "Silver"
	PlanGold     Plan = "Gold"
	PlanGoldPlus Plan = "Gold Plus"
	PlanPlatinum Plan = "Platinum"
)

// Route is the terminal disposition of an ingested email.
type Route string

const (
	RouteSuccess Route = "success"
	RouteMissing Route = "missing"
	RouteIgnore  Route = "ignore"
)

// Case is one accepted policy-request email, normalized. Cases are
// append-only: route and pricing are written once, in the same transaction
// that creates the row, and never mutated afterwards. Artifact URLs are
// filled later by external collaborators.
type Case struct {
	CaseID         string `json:"case_id" db:"case_id"`
	MessageID      string `json:"message_id" db:"message_id"`
	ThreadID       string `json:"thread_id" db:"thread_id"`
	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`

	FromEmail  string    `json:"from_email" db:"from_email"`
	Subject    string    `json:"subject" db:"subject"`
	Body       string    `json:"body" db:"body"`
	ReceivedAt time.Time `json:"received_at" db:"received_at"`

	Direction      *Direction `json:"direction" db:"direction"`
	Scope          *Scope     `json:"scope" db:"scope"`
	Plan           *Plan      `json:"plan" db:"plan"`
	CoverageLimit  *int       `json:"coverage_limit" db:"coverage_limit"`
	StartDate      *time.Time `json:"start_date" db:"start_date"`
	EndDate        *time.Time `json:"end_date" db:"end_date"`
	Days           *int       `json:"days" db:"days"`
	SportsCoverage bool       `json:"sports_coverage" db:"sports_coverage"`

	PremiumBase          *decimal.Decimal `json:"premium_base" db:"premium_base"`
	PremiumAgeLoad       *decimal.Decimal `json:"premium_age_load" db:"premium_age_load"`
	PremiumSportsLoad    *decimal.Decimal `json:"premium_sports_load" db:"premium_sports_load"`
	PremiumSubtotal      *decimal.Decimal `json:"premium_subtotal" db:"premium_subtotal"`
	PremiumGroupDiscount *decimal.Decimal `json:"premium_group_discount" db:"premium_group_discount"`
	PremiumNet           *decimal.Decimal `json:"premium_net" db:"premium_net"`
	PremiumTax           *decimal.Decimal `json:"premium_tax" db:"premium_tax"`
	PremiumFees          *decimal.Decimal `json:"premium_fees" db:"premium_fees"`
	PremiumTotal         *decimal.Decimal `json:"premium_total" db:"premium_total"`
	Currency             string           `json:"currency" db:"currency"`

	Route         Route    `json:"route" db:"route"`
	MissingFields []string `json:"missing_fields" db:"missing_fields"`
	IntentOK      bool     `json:"intent_ok" db:"intent_ok"`

	EmailStorageURL        *string  `json:"email_storage_url" db:"email_storage_url"`
	AttachmentsStorageURLs []string `json:"attachments_storage_urls" db:"attachments_storage_urls"`
	PolicyPDFURL           *string  `json:"policy_pdf_url" db:"policy_pdf_url"`
	AuditJSONURL           *string  `json:"audit_json_url" db:"audit_json_url"`

	KBVersion string    `json:"kb_version" db:"kb_version"`
	TraceID   string    `json:"trace_id" db:"trace_id"`
	LatencyMS *int      `json:"latency_ms" db:"latency_ms"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Traveller is one passport identity attached to a case, decoded from an
// OCR'd MRZ block. The full parsed record is retained in MRZData for audit.
type Traveller struct {
	ID             int64           `json:"id" db:"id"`
	CaseID         string          `json:"case_id" db:"case_id"`
	FullName       string          `json:"full_name" db:"full_name"`
	PassportNumber string          `json:"passport_number" db:"passport_number"`
	DateOfBirth    *time.Time      `json:"date_of_birth" db:"date_of_birth"`
	AgeAtTravel    *int            `json:"age_at_travel" db:"age_at_travel"`
	IsSenior       bool            `json:"is_senior" db:"is_senior"`
	MRZData        json.RawMessage `json:"mrz_data" db:"mrz_data"`
}
