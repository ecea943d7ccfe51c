package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tripvera/travel-intake/internal/domain"
	"github.com/tripvera/travel-intake/internal/extract"
	"github.com/tripvera/travel-intake/internal/mrz"
	"github.com/tripvera/travel-intake/internal/pkg/logger"
	"github.com/tripvera/travel-intake/internal/pricing"
)

// Service implements the ingestion business logic. It coordinates extraction,
// MRZ parsing and pricing, and persists each decided case exactly once.
// All public methods are safe for concurrent use if the underlying
// repository is concurrency-safe.
type Service struct {
	repo   Repository
	engine *pricing.Engine
}

// NewService creates an intake service backed by the given repository and
// pricing engine.
func NewService(repo Repository, engine *pricing.Engine) *Service {
	return &Service{repo: repo, engine: engine}
}

// Input is the normalized payload of one inbound email, as delivered by the
// n8n webhook.
type Input struct {
	MessageID  string
	ThreadID   string
	From       string
	Subject    string
	Body       string
	ReceivedAt *time.Time
	OCRResults []string
}

// OutcomeKind labels the terminal result of one ingestion.
type OutcomeKind string

const (
	OutcomeDuplicate    OutcomeKind = "duplicate"
	OutcomeIgnore       OutcomeKind = "ignore"
	OutcomeMissing      OutcomeKind = "missing"
	OutcomeSuccess      OutcomeKind = "success"
	OutcomePricingError OutcomeKind = "pricing_error"
)

// Outcome is the decided result of ingesting one email. Case is nil for
// ignored emails, which are never persisted. PricingErr is set only for
// OutcomePricingError.
type Outcome struct {
	Kind           OutcomeKind
	IdempotencyKey string
	Case           *domain.Case
	Travellers     []domain.Traveller
	Extracted      extract.Result
	Quote          *pricing.Quote
	Missing        []string
	PricingErr     error
}

// Ingest runs the full pipeline for one email: idempotency check, intent
// gate, extraction, MRZ parsing, completeness routing and pricing. The case
// and its travellers are written in a single transaction with the final
// route already set, so a crash mid-request never leaves a half-decided row.
func (s *Service) Ingest(ctx context.Context, in Input) (*Outcome, error) {
	started := time.Now()

	key := idempotencyKey(in.MessageID, in.Body)

	existing, err := s.repo.GetByIdempotencyKey(ctx, key)
	if err == nil {
		logger.Info("duplicate ingest", "message_id", in.MessageID, "case_id", existing.CaseID, "from", in.From)
		return &Outcome{Kind: OutcomeDuplicate, IdempotencyKey: key, Case: existing}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}

	extracted := extract.Extract(in.Body)
	if !extracted.IntentOK {
		return &Outcome{Kind: OutcomeIgnore, IdempotencyKey: key, Extracted: extracted}, nil
	}

	c := s.newCase(in, key, extracted)
	travellers := parseTravellers(c.CaseID, in.OCRResults)

	missing := missingFields(extracted, len(travellers))
	if len(missing) > 0 {
		c.Route = domain.RouteMissing
		c.MissingFields = missing
		return s.persist(ctx, started, c, travellers, &Outcome{
			Kind:      OutcomeMissing,
			Extracted: extracted,
			Missing:   missing,
		})
	}

	s.deriveAges(c, travellers)

	inputs := make([]pricing.TravellerInput, len(travellers))
	for i := range travellers {
		inputs[i] = pricing.TravellerInput{AgeAtTravel: travellers[i].AgeAtTravel}
	}

	quote, err := s.engine.Quote(*c.Scope, *c.Plan, *c.Days, inputs, c.SportsCoverage)
	if err != nil {
		c.Route = domain.RouteMissing
		c.MissingFields = []string{"pricing_error"}
		return s.persist(ctx, started, c, travellers, &Outcome{
			Kind:       OutcomePricingError,
			Extracted:  extracted,
			PricingErr: err,
		})
	}

	c.Route = domain.RouteSuccess
	c.Currency = quote.Currency
	c.PremiumBase = decimalPtr(quote.BasePerTraveller)
	c.PremiumAgeLoad = decimalPtr(quote.AgeLoadTotal)
	c.PremiumSportsLoad = decimalPtr(quote.SportsLoadTotal)
	c.PremiumSubtotal = decimalPtr(quote.Subtotal)
	c.PremiumGroupDiscount = decimalPtr(quote.GroupDiscount)
	c.PremiumNet = decimalPtr(quote.Net)
	c.PremiumTax = decimalPtr(quote.Tax)
	c.PremiumFees = decimalPtr(quote.Fees)
	c.PremiumTotal = decimalPtr(quote.Total)

	return s.persist(ctx, started, c, travellers, &Outcome{
		Kind:      OutcomeSuccess,
		Extracted: extracted,
		Quote:     quote,
	})
}

// persist stamps latency and writes the case. A unique-key collision means a
// concurrent request won the race for the same email; the stored case is
// returned as a duplicate instead of an error.
func (s *Service) persist(ctx context.Context, started time.Time, c *domain.Case, travellers []domain.Traveller, out *Outcome) (*Outcome, error) {
	latency := int(time.Since(started).Milliseconds())
	c.LatencyMS = &latency

	if err := s.repo.SaveCase(ctx, c, travellers); err != nil {
		if errors.Is(err, ErrDuplicateCase) {
			stored, getErr := s.repo.GetByIdempotencyKey(ctx, c.IdempotencyKey)
			if getErr != nil {
				return nil, fmt.Errorf("reread after duplicate: %w", getErr)
			}
			logger.Warn("lost ingest race", "message_id", c.MessageID, "case_id", stored.CaseID)
			return &Outcome{Kind: OutcomeDuplicate, IdempotencyKey: c.IdempotencyKey, Case: stored}, nil
		}
		return nil, fmt.Errorf("save case: %w", err)
	}

	logger.Info("case routed",
		"case_id", c.CaseID,
		"route", string(c.Route),
		"travellers", len(travellers),
		"latency_ms", latency)

	out.IdempotencyKey = c.IdempotencyKey
	out.Case = c
	out.Travellers = travellers
	return out, nil
}

// newCase builds the case row from the payload and extraction result.
func (s *Service) newCase(in Input, key string, extracted extract.Result) *domain.Case {
	c := &domain.Case{
		CaseID:         uuid.New().String(),
		MessageID:      in.MessageID,
		ThreadID:       in.ThreadID,
		IdempotencyKey: key,
		FromEmail:      in.From,
		Subject:        in.Subject,
		Body:           in.Body,
		ReceivedAt:     time.Now().UTC(),
		Direction:      extracted.Direction,
		Scope:          extracted.Scope,
		Plan:           extracted.Plan,
		CoverageLimit:  extracted.CoverageLimit,
		StartDate:      parseISODate(extracted.StartDate),
		EndDate:        parseISODate(extracted.EndDate),
		Days:           extracted.Days,
		SportsCoverage: extracted.SportsCoverage,
		Currency:       "USD",
		IntentOK:       true,
		KBVersion:      s.engine.KBVersion(),
		TraceID:        uuid.New().String(),
	}
	if c.ThreadID == "" {
		c.ThreadID = in.MessageID
	}
	if in.ReceivedAt != nil {
		c.ReceivedAt = in.ReceivedAt.UTC()
	}
	return c
}

// parseTravellers decodes one traveller per OCR block that contains a
// readable MRZ. Blocks without one are skipped.
func parseTravellers(caseID string, ocrResults []string) []domain.Traveller {
	var out []domain.Traveller
	for _, ocrText := range ocrResults {
		rec := mrz.Parse(ocrText)
		if rec == nil {
			continue
		}
		raw, err := json.Marshal(rec)
		if err != nil {
			logger.Warn("marshal mrz record failed", "case_id", caseID, "error", err)
			raw = nil
		}
		out = append(out, domain.Traveller{
			CaseID:         caseID,
			FullName:       rec.FullName,
			PassportNumber: rec.PassportNumber,
			DateOfBirth:    parseISODate(rec.DateOfBirth),
			MRZData:        raw,
		})
	}
	return out
}

// missingFields returns the required fields absent from the extraction, in
// reporting order. Inbound requests imply their scope, so scope is only
// required for everything else. A case without a single readable passport
// can never be priced.
func missingFields(extracted extract.Result, travellerCount int) []string {
	inbound := extracted.Direction != nil && *extracted.Direction == domain.DirectionInbound

	var missing []string
	if extracted.Direction == nil {
		missing = append(missing, "direction")
	}
	if !inbound && extracted.Scope == nil {
		missing = append(missing, "scope")
	}
	if extracted.Plan == nil {
		missing = append(missing, "plan")
	}
	if extracted.Days == nil {
		missing = append(missing, "days")
	}
	if extracted.StartDate == nil {
		missing = append(missing, "start_date")
	}
	if travellerCount == 0 {
		missing = append(missing, "passport_numbers", "traveller_names")
	}
	return missing
}

// deriveAges computes each traveller's age at the travel start date and
// flags seniors. Travellers without a birth date keep a nil age and are
// never seniors.
func (s *Service) deriveAges(c *domain.Case, travellers []domain.Traveller) {
	if c.StartDate == nil {
		return
	}
	for i := range travellers {
		if travellers[i].DateOfBirth == nil {
			continue
		}
		days := int(c.StartDate.Sub(*travellers[i].DateOfBirth).Hours() / 24)
		age := days / 365
		travellers[i].AgeAtTravel = &age
		travellers[i].IsSenior = s.engine.IsSenior(&age)
	}
}

// GetCase returns a case and its travellers.
func (s *Service) GetCase(ctx context.Context, caseID string) (*domain.Case, []domain.Traveller, error) {
	c, err := s.repo.GetByID(ctx, caseID)
	if err != nil {
		return nil, nil, err
	}
	travellers, err := s.repo.ListTravellers(ctx, caseID)
	if err != nil {
		return nil, nil, err
	}
	return c, travellers, nil
}

// ListCases returns cases matching the filter.
func (s *Service) ListCases(ctx context.Context, f ListFilter) ([]domain.Case, int, error) {
	return s.repo.List(ctx, f)
}

// RouteStats returns the number of cases per route.
func (s *Service) RouteStats(ctx context.Context) (map[domain.Route]int, error) {
	return s.repo.RouteStats(ctx)
}

// idempotencyKey derives the dedup key for an email from its message ID and
// body. The same email replayed by n8n always maps to the same key; an edited
// resend maps to a new one.
func idempotencyKey(messageID, body string) string {
	sum := sha256.Sum256([]byte(messageID + "|" + body))
	return hex.EncodeToString(sum[:])
}

func parseISODate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil
	}
	return &t
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
