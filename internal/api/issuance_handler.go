package api

import (
	"errors"
	"net/http"

	"github.com/tripvera/travel-intake/internal/pkg/httputil"
	"github.com/tripvera/travel-intake/internal/service/intake"
)

// SimulateIssuanceRequest identifies the case to run issuance for.
type SimulateIssuanceRequest struct {
	CaseID string `json:"case_id"`
}

type simulateIssuanceResponse struct {
	ScreenshotURL       string  `json:"screenshot_url"`
	PolicyNumber        string  `json:"policy_number"`
	SimulationTimestamp float64 `json:"simulation_timestamp"`
}

// HandleSimulateIssuance runs the issuance simulation for a case and
// returns the captured artifacts.
//
//	POST /api/v1/simulate-issuance
func (h *Handlers) HandleSimulateIssuance(w http.ResponseWriter, r *http.Request) {
	var req SimulateIssuanceRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.CaseID == "" {
		httputil.BadRequest(w, "case_id is required")
		return
	}

	res, err := h.issuance.Simulate(r.Context(), req.CaseID)
	if errors.Is(err, intake.ErrNotFound) {
		httputil.NotFound(w, "case not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	httputil.OK(w, simulateIssuanceResponse{
		ScreenshotURL:       res.ScreenshotPath,
		PolicyNumber:        res.PolicyNumber,
		SimulationTimestamp: res.Timestamp,
	})
}
