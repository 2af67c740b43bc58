package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"outthedoor/backend/internal/store"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	server, err := NewServer(Config{
		DBPath:     filepath.Join(t.TempDir(), "test.db"),
		SilentDB:   true,
		AppBaseURL: "http://localhost:3000",
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = server.Close() })

	router, err := server.Router()
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %s: %v", w.Body.String(), err)
	}
	return out
}

func submitBody(dealerID string) map[string]any {
	return map[string]any{
		"dealer_id":        dealerID,
		"vin":              "1HGCM82633A004352",
		"year":             2025,
		"make":             "Honda",
		"model":            "Accord",
		"trim":             "EX-L",
		"msrp":             38000,
		"dealer_discount":  -1200,
		"doc_fee":          85,
		"dmv_fee":          350,
		"tire_battery_fee": 9,
		"incentives":       []map[string]any{{"name": "Loyalty Cash", "amount": -500}},
		"tax_rate":         0.0925,
		"tax_amount":       3400,
		"otd_total":        40364,
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/api/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w.Code)
	}
}

func TestBriefValidation(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/briefs", map[string]any{
		"buyer_id": "buyer-1",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", w.Code, w.Body.String())
	}
}

func TestQuoteSubmitRejectsNegativeMoney(t *testing.T) {
	router := newTestRouter(t)

	dealer := decode[DealerDTO](t, doJSON(t, router, http.MethodPost, "/api/dealers", map[string]any{"name": "Sunset Motors"}))
	brief := decode[BriefDTO](t, doJSON(t, router, http.MethodPost, "/api/briefs", map[string]any{
		"buyer_id":     "buyer-1",
		"zipcode":      "94107",
		"payment_type": "cash",
		"makes":        []string{"Honda"},
	}))

	body := submitBody(dealer.ID)
	body["otd_total"] = -5
	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/briefs/%s/quotes", brief.ID), body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", w.Code, w.Body.String())
	}
}

func TestQuoteAndContractFlow(t *testing.T) {
	router := newTestRouter(t)

	dealer := decode[DealerDTO](t, doJSON(t, router, http.MethodPost, "/api/dealers", map[string]any{
		"name":          "Sunset Motors",
		"state":         "CA",
		"contact_email": "sales@sunset.example.com",
	}))
	brief := decode[BriefDTO](t, doJSON(t, router, http.MethodPost, "/api/briefs", map[string]any{
		"buyer_id":     "buyer-1",
		"zipcode":      "94107",
		"payment_type": "cash",
		"max_otd":      52000,
		"makes":        []string{"Honda"},
	}))

	w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/briefs/%s/quotes", brief.ID), submitBody(dealer.ID))
	if w.Code != http.StatusCreated {
		t.Fatalf("submit: expected 201 got %d: %s", w.Code, w.Body.String())
	}
	quote := decode[QuoteDTO](t, w)
	if quote.Status != store.QuoteStatusDraft {
		t.Fatalf("expected draft got %s", quote.Status)
	}
	if quote.ShadinessLevel != "low" {
		t.Fatalf("expected low level got %s", quote.ShadinessLevel)
	}

	// Contract upload before acceptance is a conflict.
	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/quotes/%s/contract", quote.ID), nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("early upload: expected 409 got %d: %s", w.Code, w.Body.String())
	}

	if w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/quotes/%s/publish", quote.ID), nil); w.Code != http.StatusOK {
		t.Fatalf("publish: expected 200 got %d: %s", w.Code, w.Body.String())
	}
	if w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/quotes/%s/accept", quote.ID), nil); w.Code != http.StatusOK {
		t.Fatalf("accept: expected 200 got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/quotes/%s/contract", quote.ID), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201 got %d: %s", w.Code, w.Body.String())
	}
	contract := decode[ContractDTO](t, w)
	if contract.Status != store.ContractStatusUploaded {
		t.Fatalf("expected uploaded got %s", contract.Status)
	}

	claim := map[string]any{
		"vin":              "1HGCM82633A004352",
		"year":             2025,
		"make":             "Honda",
		"model":            "Accord",
		"trim":             "EX-L",
		"msrp":             38000,
		"dealer_discount":  -1200,
		"incentives":       []map[string]any{{"name": "Loyalty Cash", "amount": -500}},
		"doc_fee":          85,
		"dmv_fee":          350,
		"tire_battery_fee": 9,
		"tax_rate":         0.0925,
		"tax_amount":       3400,
		"otd_total":        40364,
	}
	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/contracts/%s/check", contract.ID), claim)
	if w.Code != http.StatusOK {
		t.Fatalf("check: expected 200 got %d: %s", w.Code, w.Body.String())
	}
	checked := decode[ContractDTO](t, w)
	if checked.Status != store.ContractStatusCheckedOK {
		t.Fatalf("expected checked_ok got %s: %s", checked.Status, w.Body.String())
	}
	if len(checked.Checks) == 0 || !checked.Checks.AllPass() {
		t.Fatalf("expected passing report: %s", w.Body.String())
	}

	// Timeline carries the whole story.
	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/briefs/%s/timeline", brief.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("timeline: expected 200 got %d", w.Code)
	}
	var timeline struct {
		Items []TimelineEventDTO `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &timeline); err != nil {
		t.Fatalf("decode timeline: %v", err)
	}
	seen := map[string]bool{}
	for _, event := range timeline.Items {
		seen[event.Type] = true
	}
	for _, want := range []string{
		store.EventBriefCreated,
		store.EventQuoteSubmitted,
		store.EventQuotePublished,
		store.EventQuoteAccepted,
		store.EventContractUploaded,
		store.EventContractPass,
	} {
		if !seen[want] {
			t.Fatalf("timeline missing %s event", want)
		}
	}
}

func TestCheckRejectsOutOfRangeClaim(t *testing.T) {
	router := newTestRouter(t)

	dealer := decode[DealerDTO](t, doJSON(t, router, http.MethodPost, "/api/dealers", map[string]any{"name": "Sunset Motors"}))
	brief := decode[BriefDTO](t, doJSON(t, router, http.MethodPost, "/api/briefs", map[string]any{
		"buyer_id":     "buyer-1",
		"zipcode":      "94107",
		"payment_type": "cash",
		"makes":        []string{"Honda"},
	}))
	quote := decode[QuoteDTO](t, doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/briefs/%s/quotes", brief.ID), submitBody(dealer.ID)))
	doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/quotes/%s/publish", quote.ID), nil)
	doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/quotes/%s/accept", quote.ID), nil)
	contract := decode[ContractDTO](t, doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/quotes/%s/contract", quote.ID), nil))

	for name, mutate := range map[string]func(map[string]any){
		"negative msrp":      func(m map[string]any) { m["msrp"] = -38000 },
		"tax rate above one": func(m map[string]any) { m["tax_rate"] = 5 },
		"negative other fee": func(m map[string]any) {
			m["other_fees"] = []map[string]any{{"name": "Nitrogen Fill", "amount": -95}}
		},
		"negative otd total": func(m map[string]any) { m["otd_total"] = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			claim := map[string]any{
				"vin":       "1HGCM82633A004352",
				"year":      2025,
				"make":      "Honda",
				"model":     "Accord",
				"msrp":      38000,
				"tax_rate":  0.0925,
				"otd_total": 40364,
			}
			mutate(claim)
			w := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/contracts/%s/check", contract.ID), claim)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	// None of the rejected claims may have run a diff.
	after := decode[ContractDTO](t, doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/contracts/%s", contract.ID), nil))
	if after.Status != store.ContractStatusUploaded {
		t.Fatalf("rejected claims must not change status, got %s", after.Status)
	}
	if len(after.Checks) != 0 {
		t.Fatalf("rejected claims must not persist a report, got %d checks", len(after.Checks))
	}
}

func TestCheckUnknownContract(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/contracts/missing/check", map[string]any{
		"vin":   "1HGCM82633A004352",
		"year":  2025,
		"make":  "Honda",
		"model": "Accord",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d: %s", w.Code, w.Body.String())
	}
}
