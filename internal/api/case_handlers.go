package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tripvera/travel-intake/internal/domain"
	"github.com/tripvera/travel-intake/internal/pkg/httputil"
	"github.com/tripvera/travel-intake/internal/service/intake"
)

// CaseResponse is the full read model for one case, travellers included.
type CaseResponse struct {
	CaseID     string       `json:"case_id"`
	MessageID  string       `json:"message_id"`
	ThreadID   string       `json:"thread_id"`
	From       string       `json:"from"`
	Subject    string       `json:"subject"`
	ReceivedAt string       `json:"received_at"`
	Route      domain.Route `json:"route"`
	IntentOK   bool         `json:"intent_ok"`

	Direction      *domain.Direction `json:"direction"`
	Scope          *domain.Scope     `json:"scope"`
	Plan           *domain.Plan      `json:"plan"`
	CoverageLimit  *int              `json:"coverage_limit"`
	Days           *int              `json:"days"`
	StartDate      *string           `json:"start_date"`
	EndDate        *string           `json:"end_date"`
	SportsCoverage bool              `json:"sports_coverage"`

	Premium       premiumBreakdown `json:"premium"`
	Currency      string           `json:"currency"`
	MissingFields []string         `json:"missing_fields"`

	KBVersion string `json:"kb_version"`
	TraceID   string `json:"trace_id"`
	LatencyMS *int   `json:"latency_ms"`
	CreatedAt string `json:"created_at"`

	Travellers []caseTraveller `json:"travellers"`
}

// premiumBreakdown mirrors the persisted premium columns; every field is
// null until the case prices successfully.
type premiumBreakdown struct {
	Base          *string `json:"base"`
	AgeLoad       *string `json:"age_load"`
	SportsLoad    *string `json:"sports_load"`
	Subtotal      *string `json:"subtotal"`
	GroupDiscount *string `json:"group_discount"`
	Net           *string `json:"net"`
	Tax           *string `json:"tax"`
	Fees          *string `json:"fees"`
	Total         *string `json:"total"`
}

type caseTraveller struct {
	FullName       string  `json:"full_name"`
	PassportNumber string  `json:"passport_number"`
	DateOfBirth    *string `json:"date_of_birth"`
	AgeAtTravel    *int    `json:"age_at_travel"`
	IsSenior       bool    `json:"is_senior"`
}

type caseSummary struct {
	CaseID       string       `json:"case_id"`
	MessageID    string       `json:"message_id"`
	From         string       `json:"from"`
	Subject      string       `json:"subject"`
	ReceivedAt   string       `json:"received_at"`
	Route        domain.Route `json:"route"`
	Plan         *domain.Plan `json:"plan"`
	Days         *int         `json:"days"`
	PremiumTotal *string      `json:"premium_total"`
	Currency     string       `json:"currency"`
}

// HandleGetCase returns one case with its travellers.
//
//	GET /api/v1/cases/{caseID}
func (h *Handlers) HandleGetCase(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")

	c, travellers, err := h.intake.GetCase(r.Context(), caseID)
	if errors.Is(err, intake.ErrNotFound) {
		httputil.NotFound(w, "case not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, newCaseResponse(c, travellers))
}

// HandleListCases returns newest-first case summaries.
//
//	GET /api/v1/cases?route=&limit=&offset=
func (h *Handlers) HandleListCases(w http.ResponseWriter, r *http.Request) {
	filter := intake.ListFilter{Route: r.URL.Query().Get("route")}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	cases, total, err := h.intake.ListCases(r.Context(), filter)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	summaries := make([]caseSummary, 0, len(cases))
	for i := range cases {
		summaries = append(summaries, newCaseSummary(&cases[i]))
	}

	httputil.OK(w, map[string]interface{}{
		"cases": summaries,
		"total": total,
	})
}

// HandleStats returns case counts per route.
//
//	GET /api/v1/stats
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.intake.RouteStats(r.Context())
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	byRoute := map[string]int{
		string(domain.RouteSuccess): 0,
		string(domain.RouteMissing): 0,
		string(domain.RouteIgnore):  0,
	}
	total := 0
	for route, n := range stats {
		byRoute[string(route)] = n
		total += n
	}

	httputil.OK(w, map[string]interface{}{
		"total":    total,
		"by_route": byRoute,
	})
}

func newCaseResponse(c *domain.Case, travellers []domain.Traveller) CaseResponse {
	resp := CaseResponse{
		CaseID:         c.CaseID,
		MessageID:      c.MessageID,
		ThreadID:       c.ThreadID,
		From:           c.FromEmail,
		Subject:        c.Subject,
		ReceivedAt:     c.ReceivedAt.UTC().Format(time.RFC3339),
		Route:          c.Route,
		IntentOK:       c.IntentOK,
		Direction:      c.Direction,
		Scope:          c.Scope,
		Plan:           c.Plan,
		CoverageLimit:  c.CoverageLimit,
		Days:           c.Days,
		StartDate:      dateString(c.StartDate),
		EndDate:        dateString(c.EndDate),
		SportsCoverage: c.SportsCoverage,
		Premium: premiumBreakdown{
			Base:          moneyString(c.PremiumBase),
			AgeLoad:       moneyString(c.PremiumAgeLoad),
			SportsLoad:    moneyString(c.PremiumSportsLoad),
			Subtotal:      moneyString(c.PremiumSubtotal),
			GroupDiscount: moneyString(c.PremiumGroupDiscount),
			Net:           moneyString(c.PremiumNet),
			Tax:           moneyString(c.PremiumTax),
			Fees:          moneyString(c.PremiumFees),
			Total:         moneyString(c.PremiumTotal),
		},
		Currency:      c.Currency,
		MissingFields: c.MissingFields,
		KBVersion:     c.KBVersion,
		TraceID:       c.TraceID,
		LatencyMS:     c.LatencyMS,
		CreatedAt:     c.CreatedAt.UTC().Format(time.RFC3339),
		Travellers:    make([]caseTraveller, 0, len(travellers)),
	}
	for _, t := range travellers {
		resp.Travellers = append(resp.Travellers, caseTraveller{
			FullName:       t.FullName,
			PassportNumber: t.PassportNumber,
			DateOfBirth:    dateString(t.DateOfBirth),
			AgeAtTravel:    t.AgeAtTravel,
			IsSenior:       t.IsSenior,
		})
	}
	return resp
}

func newCaseSummary(c *domain.Case) caseSummary {
	return caseSummary{
		CaseID:       c.CaseID,
		MessageID:    c.MessageID,
		From:         c.FromEmail,
		Subject:      c.Subject,
		ReceivedAt:   c.ReceivedAt.UTC().Format(time.RFC3339),
		Route:        c.Route,
		Plan:         c.Plan,
		Days:         c.Days,
		PremiumTotal: moneyString(c.PremiumTotal),
		Currency:     c.Currency,
	}
}
