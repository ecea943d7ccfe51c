package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripvera/travel-intake/internal/domain"
	"github.com/tripvera/travel-intake/internal/pricing"
	"github.com/tripvera/travel-intake/internal/service/intake"
	"github.com/tripvera/travel-intake/internal/service/issuance"
)

const (
	testSecret = "test-secret"

	passportOCR = "P<LBNALHAJ<<ALI<<<<<<<<<<<<<<<<<<<<<<<<<<<<\n" +
		"AB1234567<LBN9001015M2501011<<<<<<<<<<<<<<06"

	successBody = "Please issue travel insurance for an outbound worldwide trip " +
		"on the Silver plan for 7 days, from 2025-03-05 to 2025-03-12."
)

// fakeRepo is an in-memory Repository so handler tests can run the full
// pipeline without Postgres.
type fakeRepo struct {
	mu         sync.Mutex
	cases      map[string]*domain.Case
	byIdemKey  map[string]string
	travellers map[string][]domain.Traveller
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		cases:      make(map[string]*domain.Case),
		byIdemKey:  make(map[string]string),
		travellers: make(map[string][]domain.Traveller),
	}
}

func (r *fakeRepo) SaveCase(ctx context.Context, c *domain.Case, travellers []domain.Traveller) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byIdemKey[c.IdempotencyKey]; ok {
		return intake.ErrDuplicateCase
	}
	r.byIdemKey[c.IdempotencyKey] = c.CaseID
	r.cases[c.CaseID] = c
	r.travellers[c.CaseID] = travellers
	return nil
}

func (r *fakeRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byIdemKey[key]
	if !ok {
		return nil, intake.ErrNotFound
	}
	return r.cases[id], nil
}

func (r *fakeRepo) GetByID(ctx context.Context, caseID string) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[caseID]
	if !ok {
		return nil, intake.ErrNotFound
	}
	return c, nil
}

func (r *fakeRepo) ListTravellers(ctx context.Context, caseID string) ([]domain.Traveller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.travellers[caseID], nil
}

func (r *fakeRepo) List(ctx context.Context, filter intake.ListFilter) ([]domain.Case, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Case{}
	for _, c := range r.cases {
		if filter.Route != "" && string(c.Route) != filter.Route {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	return out, len(out), nil
}

func (r *fakeRepo) RouteStats(ctx context.Context) (map[domain.Route]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := make(map[domain.Route]int)
	for _, c := range r.cases {
		stats[c.Route]++
	}
	return stats, nil
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cases)
}

func setupTestRouter(t *testing.T) (http.Handler, *fakeRepo) {
	t.Helper()

	engine, err := pricing.Load("../../data/tariffs.csv", "../../data/rules.yml")
	require.NoError(t, err)

	repo := newFakeRepo()
	intakeSvc := intake.NewService(repo, engine)
	issuanceSvc := issuance.NewService(repo, t.TempDir(), "https://www.google.com")

	h := NewHandlers(intakeSvc, issuanceSvc)
	return SetupRoutes(h, NewHealthChecker(nil), testSecret), repo
}

func doJSON(t *testing.T, router http.Handler, method, path, secret string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func ingestPayload() map[string]interface{} {
	return map[string]interface{}{
		"message_id":  "msg-001",
		"from":        "ali@example.com",
		"subject":     "Travel insurance request",
		"body":        successBody,
		"ocr_results": []string{passportOCR},
	}
}

func TestIngestRejectsBadSecret(t *testing.T) {
	router, repo := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/ingest", "wrong-secret", ingestPayload())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	resp := decodeBody(t, rec)
	assert.Equal(t, "Unauthorized", resp["error"])
	assert.Equal(t, 0, repo.count())
}

func TestIngestMissingSecretHeader(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/ingest", "", ingestPayload())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIngestSuccess(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/ingest", testSecret, ingestPayload())
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody(t, rec)
	assert.Equal(t, "success", resp["route"])
	assert.NotEmpty(t, resp["case_id"])

	extracted := resp["extracted"].(map[string]interface{})
	assert.Equal(t, true, extracted["intent_ok"])
	assert.Equal(t, "OUTBOUND", extracted["direction"])
	assert.Equal(t, "WORLDWIDE", extracted["scope"])
	assert.Equal(t, "Silver", extracted["plan"])
	assert.Equal(t, float64(7), extracted["days"])
	assert.Equal(t, "2025-03-05", extracted["start_date"])
	assert.Equal(t, "2025-03-12", extracted["end_date"])

	pricingResp := resp["pricing"].(map[string]interface{})
	assert.Equal(t, "30.00", pricingResp["base_per_traveller"])
	assert.Equal(t, "30.00", pricingResp["subtotal"])
	assert.Equal(t, "0.00", pricingResp["group_discount"])
	assert.Equal(t, "30.00", pricingResp["net"])
	assert.Equal(t, "0.00", pricingResp["tax"])
	assert.Equal(t, "0.00", pricingResp["fees"])
	assert.Equal(t, "30.00", pricingResp["total"])
	assert.Equal(t, "USD", pricingResp["currency"])

	travellers := resp["travellers"].([]interface{})
	require.Len(t, travellers, 1)
	trav := travellers[0].(map[string]interface{})
	assert.Equal(t, "ALI ALHAJ", trav["name"])
	assert.Equal(t, "AB1234567", trav["passport"])
	assert.Equal(t, float64(35), trav["age"])
	assert.Equal(t, false, trav["is_senior"])
}

func TestIngestDuplicateReplay(t *testing.T) {
	router, repo := setupTestRouter(t)

	first := doJSON(t, router, http.MethodPost, "/api/v1/ingest", testSecret, ingestPayload())
	require.Equal(t, http.StatusOK, first.Code)
	firstResp := decodeBody(t, first)

	second := doJSON(t, router, http.MethodPost, "/api/v1/ingest", testSecret, ingestPayload())
	require.Equal(t, http.StatusOK, second.Code)

	resp := decodeBody(t, second)
	assert.Equal(t, "duplicate", resp["status"])
	assert.Equal(t, firstResp["case_id"], resp["case_id"])
	assert.NotEmpty(t, resp["idempotency_key"])
	assert.Equal(t, 1, repo.count())
}

func TestIngestIgnoreNotPersisted(t *testing.T) {
	router, repo := setupTestRouter(t)

	payload := ingestPayload()
	payload["body"] = "Lunch tomorrow at noon?"
	payload["ocr_results"] = []string{}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/ingest", testSecret, payload)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody(t, rec)
	assert.Equal(t, "ignore", resp["route"])
	assert.Equal(t, false, resp["intent_ok"])
	assert.Equal(t, 0, repo.count())
}

func TestIngestMissingFields(t *testing.T) {
	router, _ := setupTestRouter(t)

	payload := ingestPayload()
	payload["body"] = "Please quote travel insurance."
	payload["ocr_results"] = []string{}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/ingest", testSecret, payload)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody(t, rec)
	assert.Equal(t, "missing", resp["route"])
	assert.NotEmpty(t, resp["case_id"])
	assert.Equal(t, "ali@example.com", resp["to"])
	assert.Equal(t, "Travel insurance request", resp["original_subject"])
	assert.Equal(t, "", resp["thread_id"])

	want := []interface{}{"direction", "scope", "plan", "days", "start_date", "passport_numbers", "traveller_names"}
	assert.Equal(t, want, resp["missing"])
}

func TestIngestPricingFailure(t *testing.T) {
	router, repo := setupTestRouter(t)

	payload := ingestPayload()
	payload["body"] = "Please issue travel insurance for an outbound worldwide trip " +
		"on the Silver plan for 200 days, from 2025-03-05 to 2025-09-21."

	rec := doJSON(t, router, http.MethodPost, "/api/v1/ingest", testSecret, payload)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeBody(t, rec)
	assert.Equal(t, "missing", resp["route"])
	assert.NotEmpty(t, resp["case_id"])
	assert.NotEmpty(t, resp["error"])

	stored := repo.cases[resp["case_id"].(string)]
	require.NotNil(t, stored)
	assert.Equal(t, domain.RouteMissing, stored.Route)
	assert.Equal(t, []string{"pricing_error"}, stored.MissingFields)
}

func TestIngestRequiresMessageID(t *testing.T) {
	router, _ := setupTestRouter(t)

	payload := ingestPayload()
	delete(payload, "message_id")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/ingest", testSecret, payload)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeBody(t, rec)
	assert.Equal(t, "message_id is required", resp["error"])
}

func TestIngestInvalidJSON(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Secret", testSecret)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, "Invalid JSON", resp["error"])
}

func TestSimulateIssuance(t *testing.T) {
	router, _ := setupTestRouter(t)

	ing := doJSON(t, router, http.MethodPost, "/api/v1/ingest", testSecret, ingestPayload())
	require.Equal(t, http.StatusOK, ing.Code)
	caseID := decodeBody(t, ing)["case_id"].(string)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/simulate-issuance", testSecret,
		map[string]interface{}{"case_id": caseID})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody(t, rec)
	assert.Equal(t, "TP-"+strings.ToUpper(caseID[:8]), resp["policy_number"])
	assert.Greater(t, resp["simulation_timestamp"].(float64), float64(0))

	screenshot := resp["screenshot_url"].(string)
	assert.Contains(t, screenshot, "issuance_"+caseID+".png")
	_, err := os.Stat(screenshot)
	assert.NoError(t, err)
}

func TestSimulateIssuanceUnknownCase(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/simulate-issuance", testSecret,
		map[string]interface{}{"case_id": "4aa3a849-0000-0000-0000-000000000000"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	resp := decodeBody(t, rec)
	assert.Equal(t, "case not found", resp["error"])
}

func TestSimulateIssuanceRequiresCaseID(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/simulate-issuance", testSecret,
		map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCase(t *testing.T) {
	router, _ := setupTestRouter(t)

	ing := doJSON(t, router, http.MethodPost, "/api/v1/ingest", testSecret, ingestPayload())
	require.Equal(t, http.StatusOK, ing.Code)
	caseID := decodeBody(t, ing)["case_id"].(string)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/cases/"+caseID, testSecret, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody(t, rec)
	assert.Equal(t, caseID, resp["case_id"])
	assert.Equal(t, "success", resp["route"])
	assert.Equal(t, "msg-001", resp["message_id"])
	assert.Equal(t, "2025-03-05", resp["start_date"])

	premium := resp["premium"].(map[string]interface{})
	assert.Equal(t, "30.00", premium["total"])
	assert.Equal(t, "0.00", premium["age_load"])

	travellers := resp["travellers"].([]interface{})
	require.Len(t, travellers, 1)
	trav := travellers[0].(map[string]interface{})
	assert.Equal(t, "AB1234567", trav["passport_number"])
	assert.Equal(t, "1990-01-01", trav["date_of_birth"])
}

func TestGetCaseNotFound(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/cases/nope", testSecret, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListCasesAndStats(t *testing.T) {
	router, _ := setupTestRouter(t)

	require.Equal(t, http.StatusOK,
		doJSON(t, router, http.MethodPost, "/api/v1/ingest", testSecret, ingestPayload()).Code)

	missing := ingestPayload()
	missing["message_id"] = "msg-002"
	missing["body"] = "Please quote travel insurance."
	missing["ocr_results"] = []string{}
	require.Equal(t, http.StatusOK,
		doJSON(t, router, http.MethodPost, "/api/v1/ingest", testSecret, missing).Code)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/cases?route=success", testSecret, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listResp := decodeBody(t, rec)
	assert.Equal(t, float64(1), listResp["total"])
	cases := listResp["cases"].([]interface{})
	require.Len(t, cases, 1)
	first := cases[0].(map[string]interface{})
	assert.Equal(t, "success", first["route"])
	assert.Equal(t, "30.00", first["premium_total"])

	rec = doJSON(t, router, http.MethodGet, "/api/v1/stats", testSecret, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	statsResp := decodeBody(t, rec)
	assert.Equal(t, float64(2), statsResp["total"])
	byRoute := statsResp["by_route"].(map[string]interface{})
	assert.Equal(t, float64(1), byRoute["success"])
	assert.Equal(t, float64(1), byRoute["missing"])
	assert.Equal(t, float64(0), byRoute["ignore"])
}

func TestHealthEndpointsArePublic(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	assert.Contains(t, resp, "status")
	assert.Contains(t, resp, "checks")

	rec = doJSON(t, router, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	liveResp := decodeBody(t, rec)
	assert.Equal(t, "alive", liveResp["status"])
}
