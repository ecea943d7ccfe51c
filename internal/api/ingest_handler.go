package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tripvera/travel-intake/internal/domain"
	"github.com/tripvera/travel-intake/internal/extract"
	"github.com/tripvera/travel-intake/internal/pkg/httputil"
	"github.com/tripvera/travel-intake/internal/pricing"
	"github.com/tripvera/travel-intake/internal/service/intake"
)

// IngestRequest is the payload n8n posts for every inbound email.
// received_at is RFC 3339; ocr_results holds one raw text block per
// passport photo the OCR stage produced.
type IngestRequest struct {
	MessageID  string   `json:"message_id"`
	ThreadID   string   `json:"thread_id"`
	From       string   `json:"from"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	ReceivedAt string   `json:"received_at"`
	OCRResults []string `json:"ocr_results"`
}

type duplicateResponse struct {
	Status         string `json:"status"`
	CaseID         string `json:"case_id"`
	IdempotencyKey string `json:"idempotency_key"`
}

type ignoreResponse struct {
	Route    domain.Route `json:"route"`
	IntentOK bool         `json:"intent_ok"`
}

// missingResponse tells the orchestrator which fields to ask the sender
// for. ThreadID echoes the payload value (empty if absent) so the reply
// lands in the right thread.
type missingResponse struct {
	Route           domain.Route `json:"route"`
	CaseID          string       `json:"case_id"`
	To              string       `json:"to"`
	Missing         []string     `json:"missing"`
	OriginalSubject string       `json:"original_subject"`
	ThreadID        string       `json:"thread_id"`
}

type successResponse struct {
	Route      domain.Route       `json:"route"`
	CaseID     string             `json:"case_id"`
	Extracted  extract.Result     `json:"extracted"`
	Pricing    pricingPayload     `json:"pricing"`
	Travellers []travellerPayload `json:"travellers"`
}

// pricingPayload carries the premium breakdown as exact two-decimal
// strings. Clients must never see float artifacts on money.
type pricingPayload struct {
	BasePerTraveller string `json:"base_per_traveller"`
	Subtotal         string `json:"subtotal"`
	GroupDiscount    string `json:"group_discount"`
	Net              string `json:"net"`
	Tax              string `json:"tax"`
	Fees             string `json:"fees"`
	Total            string `json:"total"`
	Currency         string `json:"currency"`
}

type travellerPayload struct {
	Name     string `json:"name"`
	Passport string `json:"passport"`
	Age      *int   `json:"age"`
	IsSenior bool   `json:"is_senior"`
}

type pricingErrorResponse struct {
	Route  domain.Route `json:"route"`
	CaseID string       `json:"case_id"`
	Error  string       `json:"error"`
}

// HandleIngest processes one email and responds with the routing decision.
//
//	POST /api/v1/ingest
func (h *Handlers) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.MessageID == "" {
		httputil.BadRequest(w, "message_id is required")
		return
	}

	in := intake.Input{
		MessageID:  req.MessageID,
		ThreadID:   req.ThreadID,
		From:       req.From,
		Subject:    req.Subject,
		Body:       req.Body,
		OCRResults: req.OCRResults,
	}
	if req.ReceivedAt != "" {
		if ts, err := time.Parse(time.RFC3339, req.ReceivedAt); err == nil {
			in.ReceivedAt = &ts
		}
	}

	out, err := h.intake.Ingest(r.Context(), in)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	switch out.Kind {
	case intake.OutcomeDuplicate:
		httputil.OK(w, duplicateResponse{
			Status:         "duplicate",
			CaseID:         out.Case.CaseID,
			IdempotencyKey: out.IdempotencyKey,
		})

	case intake.OutcomeIgnore:
		httputil.OK(w, ignoreResponse{
			Route:    domain.RouteIgnore,
			IntentOK: false,
		})

	case intake.OutcomeMissing:
		httputil.OK(w, missingResponse{
			Route:           out.Case.Route,
			CaseID:          out.Case.CaseID,
			To:              req.From,
			Missing:         out.Missing,
			OriginalSubject: req.Subject,
			ThreadID:        req.ThreadID,
		})

	case intake.OutcomePricingError:
		httputil.JSON(w, http.StatusBadRequest, pricingErrorResponse{
			Route:  domain.RouteMissing,
			CaseID: out.Case.CaseID,
			Error:  out.PricingErr.Error(),
		})

	case intake.OutcomeSuccess:
		httputil.OK(w, successResponse{
			Route:      out.Case.Route,
			CaseID:     out.Case.CaseID,
			Extracted:  out.Extracted,
			Pricing:    newPricingPayload(out.Quote),
			Travellers: newTravellerPayloads(out.Travellers),
		})

	default:
		httputil.InternalError(w, fmt.Errorf("unexpected ingest outcome %q", out.Kind))
	}
}

func newPricingPayload(q *pricing.Quote) pricingPayload {
	return pricingPayload{
		BasePerTraveller: q.BasePerTraveller.StringFixed(2),
		Subtotal:         q.Subtotal.StringFixed(2),
		GroupDiscount:    q.GroupDiscount.StringFixed(2),
		Net:              q.Net.StringFixed(2),
		Tax:              q.Tax.StringFixed(2),
		Fees:             q.Fees.StringFixed(2),
		Total:            q.Total.StringFixed(2),
		Currency:         q.Currency,
	}
}

func newTravellerPayloads(travellers []domain.Traveller) []travellerPayload {
	out := make([]travellerPayload, 0, len(travellers))
	for _, t := range travellers {
		out = append(out, travellerPayload{
			Name:     t.FullName,
			Passport: t.PassportNumber,
			Age:      t.AgeAtTravel,
			IsSenior: t.IsSenior,
		})
	}
	return out
}
