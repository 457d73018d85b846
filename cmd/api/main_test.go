package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/mcclellann/lomap/pkg/date"
	"github.com/mcclellann/lomap/pkg/ledger"
	"github.com/mcclellann/lomap/pkg/models"
	"github.com/mcclellann/lomap/pkg/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func setupTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	today := date.MustParse("2026-06-20")
	server := NewServer(store.NewMemoryStore(), zap.NewNop(), ledger.WithClock(func() date.Date { return today }))
	return server.Router()
}

func do(t *testing.T, router *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func loanBody(bank string) map[string]any {
	return map[string]any{
		"face_value":                 12000,
		"bank_name":                  bank,
		"issue_date":                 "2026-01-15",
		"term_months":                12,
		"payment_frequency":          "monthly",
		"interest_rate":              12,
		"interest_rate_type":         "effective",
		"interest_payment_frequency": "quarterly",
	}
}

func TestAPI_Banks(t *testing.T) {
	router := setupTestRouter(t)

	rr := do(t, router, "POST", "/banks", map[string]string{"name": "chase"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("Expected a request id header")
	}
	var bank models.Bank
	json.Unmarshal(rr.Body.Bytes(), &bank)
	if bank.Name != "Chase" {
		t.Errorf("Expected name Chase, got %q", bank.Name)
	}

	if rr := do(t, router, "POST", "/banks", map[string]string{"name": "CHASE"}); rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for a duplicate, got %d", rr.Code)
	}
	if rr := do(t, router, "POST", "/banks", map[string]string{}); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a missing name, got %d", rr.Code)
	}
	if rr := do(t, router, "POST", "/banks", "{"); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a malformed body, got %d", rr.Code)
	}

	rr = do(t, router, "PUT", fmt.Sprintf("/banks/%d", bank.ID), map[string]string{"name": "citi"})
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", rr.Code, rr.Body)
	}
	if rr := do(t, router, "GET", "/banks/99", nil); rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
	if rr := do(t, router, "GET", "/banks/abc", nil); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}

	rr = do(t, router, "GET", "/banks", nil)
	var views []ledger.BankView
	json.Unmarshal(rr.Body.Bytes(), &views)
	if len(views) != 1 || views[0].Name != "Citi" {
		t.Errorf("Expected one bank named Citi, got %v", views)
	}

	if rr := do(t, router, "DELETE", fmt.Sprintf("/banks/%d", bank.ID), nil); rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}
}

func TestAPI_CreateAndGetLoan(t *testing.T) {
	router := setupTestRouter(t)
	do(t, router, "POST", "/banks", map[string]string{"name": "chase"})

	rr := do(t, router, "POST", "/loans", loanBody("chase"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body)
	}
	var created ledger.LoanView
	json.Unmarshal(rr.Body.Bytes(), &created)
	if created.BankName != "Chase" || created.CompoundingPeriod != "annually" {
		t.Errorf("Unexpected loan %+v", created)
	}
	if created.Maturity != date.MustParse("2027-01-15") {
		t.Errorf("Expected maturity 2027-01-15, got %s", created.Maturity)
	}

	rr = do(t, router, "GET", fmt.Sprintf("/loans/%d", created.ID), nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	var fetched ledger.LoanView
	json.Unmarshal(rr.Body.Bytes(), &fetched)
	if fetched.ID != created.ID || !fetched.PrincipalBalance.Equal(decimal.NewFromInt(12000)) {
		t.Errorf("Expected loan %d with balance 12000, got %+v", created.ID, fetched)
	}

	if rr := do(t, router, "POST", "/loans", loanBody("nobody")); rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for an unknown bank, got %d", rr.Code)
	}

	bad := loanBody("chase")
	bad["term_months"] = 7
	if rr := do(t, router, "POST", "/loans", bad); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422 for a frequency mismatch, got %d", rr.Code)
	}

	bad = loanBody("chase")
	bad["issue_date"] = "15/01/2026"
	if rr := do(t, router, "POST", "/loans", bad); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a malformed date, got %d", rr.Code)
	}

	bad = loanBody("chase")
	bad["interest_rate_type"] = "floating"
	if rr := do(t, router, "POST", "/loans", bad); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for an unknown rate type, got %d", rr.Code)
	}
}

func TestAPI_RecordPayment(t *testing.T) {
	router := setupTestRouter(t)
	do(t, router, "POST", "/banks", map[string]string{"name": "chase"})
	do(t, router, "POST", "/loans", loanBody("chase"))

	rr := do(t, router, "POST", "/loans/1/payments", map[string]any{"value": 1000, "payment_date": "2026-02-10"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body)
	}
	var payment models.Payment
	json.Unmarshal(rr.Body.Bytes(), &payment)
	if payment.LoanID != 1 || !payment.Value.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Unexpected payment %+v", payment)
	}

	if rr := do(t, router, "POST", "/loans/1/payments", map[string]any{"value": 20000, "payment_date": "2026-03-10"}); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422 for a payment above the balance, got %d", rr.Code)
	}
	if rr := do(t, router, "POST", "/loans/1/payments", map[string]any{"value": 100, "payment_date": "2026-07-01"}); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected status 422 for a future payment, got %d", rr.Code)
	}
	if rr := do(t, router, "POST", "/loans/9/payments", map[string]any{"value": 100, "payment_date": "2026-03-10"}); rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for an unknown loan, got %d", rr.Code)
	}

	rr = do(t, router, "GET", "/loans/1", nil)
	var loan ledger.LoanView
	json.Unmarshal(rr.Body.Bytes(), &loan)
	if !loan.PrincipalBalance.Equal(decimal.NewFromInt(11000)) {
		t.Errorf("Expected balance 11000, got %s", loan.PrincipalBalance)
	}

	rr = do(t, router, "PUT", fmt.Sprintf("/payments/%d", payment.ID), map[string]any{"value": "1500.50", "payment_date": "2026-02-12"})
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", rr.Code, rr.Body)
	}

	rr = do(t, router, "GET", "/payments", nil)
	var views []ledger.PaymentView
	json.Unmarshal(rr.Body.Bytes(), &views)
	if len(views) != 1 || views[0].BankName != "Chase" || !views[0].Value.Equal(decimal.RequireFromString("1500.50")) {
		t.Errorf("Unexpected payments %+v", views)
	}

	if rr := do(t, router, "DELETE", "/loans/1", nil); rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409 deleting a loan with payments, got %d", rr.Code)
	}
	if rr := do(t, router, "DELETE", fmt.Sprintf("/payments/%d", payment.ID), nil); rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}
	if rr := do(t, router, "DELETE", "/loans/1", nil); rr.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", rr.Code)
	}
}

func TestAPI_CashFlow(t *testing.T) {
	router := setupTestRouter(t)
	do(t, router, "POST", "/banks", map[string]string{"name": "chase"})
	do(t, router, "POST", "/loans", loanBody("chase"))
	do(t, router, "POST", "/loans/1/payments", map[string]any{"value": 1000, "payment_date": "2026-02-10"})

	rr := do(t, router, "GET", "/loans/1/cashflow", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var rows []ledger.CashFlowRow
	json.Unmarshal(rr.Body.Bytes(), &rows)
	if len(rows) != 12 {
		t.Fatalf("Expected 12 periods, got %d", len(rows))
	}
	if rows[0].Date != date.MustParse("2026-02-15") {
		t.Errorf("Expected first period 2026-02-15, got %s", rows[0].Date)
	}
	if !rows[0].IncurredAmortization.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Expected 1000 incurred in the first period, got %s", rows[0].IncurredAmortization)
	}
	if !rows[5].ActualAmortization.Equal(decimal.NewFromInt(5000)) {
		t.Errorf("Expected a 5000 catch-up in the period holding today, got %s", rows[5].ActualAmortization)
	}

	if rr := do(t, router, "GET", "/frequencies", nil); rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}

func TestAPI_Metrics(t *testing.T) {
	router := setupTestRouter(t)
	do(t, router, "GET", "/banks/7", nil)

	rr := do(t, router, "GET", "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	want := `lomap_http_requests_total{method="GET",route="/banks/{id}",status="404"} 1`
	if !strings.Contains(rr.Body.String(), want) {
		t.Errorf("Expected metrics to contain %s", want)
	}
}
