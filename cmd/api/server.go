package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/lomap/pkg/date"
	"github.com/mcclellann/lomap/pkg/ledger"
	"github.com/mcclellann/lomap/pkg/models"
	"github.com/mcclellann/lomap/pkg/schedule"
	"github.com/mcclellann/lomap/pkg/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Server holds the ledger instance.
type Server struct {
	ledger   *ledger.Ledger
	log      *zap.Logger
	validate *validator.Validate
	metrics  *metrics
}

func NewServer(s store.Storage, log *zap.Logger, opts ...ledger.Option) *Server {
	opts = append([]ledger.Option{ledger.WithLogger(log)}, opts...)
	return &Server{
		ledger:   ledger.NewLedger(s, opts...),
		log:      log,
		validate: validator.New(),
		metrics:  newMetrics(),
	}
}

// Router wires every route of the API.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.requestLogger)

	router.HandleFunc("/banks", s.listBanksHandler).Methods("GET")
	router.HandleFunc("/banks", s.createBankHandler).Methods("POST")
	router.HandleFunc("/banks/{id}", s.getBankHandler).Methods("GET")
	router.HandleFunc("/banks/{id}", s.renameBankHandler).Methods("PUT")
	router.HandleFunc("/banks/{id}", s.deleteBankHandler).Methods("DELETE")

	router.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}", s.updateLoanHandler).Methods("PUT")
	router.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	router.HandleFunc("/loans/{id}/cashflow", s.cashFlowHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/payments", s.listLoanPaymentsHandler).Methods("GET")
	router.HandleFunc("/loans/{id}/payments", s.recordPaymentHandler).Methods("POST")

	router.HandleFunc("/payments", s.listPaymentsHandler).Methods("GET")
	router.HandleFunc("/payments/{id}", s.getPaymentHandler).Methods("GET")
	router.HandleFunc("/payments/{id}", s.updatePaymentHandler).Methods("PUT")
	router.HandleFunc("/payments/{id}", s.deletePaymentHandler).Methods("DELETE")

	router.HandleFunc("/frequencies", s.frequenciesHandler).Methods("GET")
	router.Handle("/metrics", s.metrics.handler()).Methods("GET")
	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLogger tags every request with an id, echoed in X-Request-ID, and
// logs and counts it once served.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		s.metrics.observe(r, rec.status, elapsed)

		s.log.Info("request served",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed))
	})
}

// statusFor maps an error kind to the response status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrUnknownBank),
		errors.Is(err, models.ErrUnknownLoan),
		errors.Is(err, models.ErrUnknownPayment):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateBank),
		errors.Is(err, models.ErrReferentialIntegrity):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidRange),
		errors.Is(err, models.ErrFrequencyMismatch),
		errors.Is(err, models.ErrRateTypeConflict),
		errors.Is(err, models.ErrDateOutOfBounds),
		errors.Is(err, models.ErrPayoffExceeded):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body into req and validates its struct tags.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, kind string) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		http.Error(w, fmt.Sprintf("Invalid %s ID", kind), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

type bankRequest struct {
	Name string `json:"name" validate:"required"`
}

func (s *Server) listBanksHandler(w http.ResponseWriter, r *http.Request) {
	banks, err := s.ledger.BankViews()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, banks)
}

func (s *Server) createBankHandler(w http.ResponseWriter, r *http.Request) {
	var req bankRequest
	if !s.decode(w, r, &req) {
		return
	}
	bank, err := s.ledger.RegisterBank(req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bank)
}

func (s *Server) getBankHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "bank")
	if !ok {
		return
	}
	bank, err := s.ledger.GetBank(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bank)
}

func (s *Server) renameBankHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "bank")
	if !ok {
		return
	}
	var req bankRequest
	if !s.decode(w, r, &req) {
		return
	}
	bank, err := s.ledger.RenameBank(id, req.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bank)
}

func (s *Server) deleteBankHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "bank")
	if !ok {
		return
	}
	if err := s.ledger.DeleteBank(id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loanRequest carries the terms of a new or edited loan. The bank is given
// by id or by name.
type loanRequest struct {
	FaceValue                json.Number `json:"face_value" validate:"required,numeric"`
	BankID                   int         `json:"bank_id" validate:"required_without=BankName,gte=0"`
	BankName                 string      `json:"bank_name" validate:"required_without=BankID"`
	IssueDate                string      `json:"issue_date" validate:"required"`
	Term                     int         `json:"term_months" validate:"required,gt=0"`
	PaymentFrequency         string      `json:"payment_frequency" validate:"required"`
	InterestRate             json.Number `json:"interest_rate" validate:"required,numeric"`
	InterestRateType         string      `json:"interest_rate_type" validate:"required,oneof=effective nominal"`
	CompoundingPeriod        string      `json:"compounding_period"`
	InterestPaymentFrequency string      `json:"interest_payment_frequency" validate:"required"`
}

var errMalformed = errors.New("malformed request")

// terms converts the request into loan terms. Parse failures wrap
// errMalformed; a failed bank lookup keeps its own kind.
func (s *Server) terms(req loanRequest) (models.LoanTerms, error) {
	var t models.LoanTerms
	var err error
	if t.FaceValue, err = decimal.NewFromString(req.FaceValue.String()); err != nil {
		return t, fmt.Errorf("%w: face value: %v", errMalformed, err)
	}
	if t.InterestRate, err = decimal.NewFromString(req.InterestRate.String()); err != nil {
		return t, fmt.Errorf("%w: interest rate: %v", errMalformed, err)
	}
	if t.IssueDate, err = date.Parse(req.IssueDate); err != nil {
		return t, fmt.Errorf("%w: %v", errMalformed, err)
	}
	t.Term = req.Term
	t.PaymentFrequency = schedule.Frequency(req.PaymentFrequency)
	t.InterestRateType = schedule.RateType(req.InterestRateType)
	t.CompoundingPeriod = schedule.Frequency(req.CompoundingPeriod)
	t.InterestPaymentFrequency = schedule.Frequency(req.InterestPaymentFrequency)

	t.BankID = req.BankID
	if t.BankID == 0 {
		bank, err := s.ledger.GetBankByName(req.BankName)
		if err != nil {
			return t, err
		}
		t.BankID = bank.ID
	}
	return t, nil
}

func (s *Server) loanTerms(w http.ResponseWriter, r *http.Request) (models.LoanTerms, bool) {
	var req loanRequest
	if !s.decode(w, r, &req) {
		return models.LoanTerms{}, false
	}
	t, err := s.terms(req)
	switch {
	case err == nil:
		return t, true
	case errors.Is(err, errMalformed):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.fail(w, r, err)
	}
	return t, false
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.LoanViews()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	terms, ok := s.loanTerms(w, r)
	if !ok {
		return
	}
	loan, err := s.ledger.CreateLoan(terms)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := s.ledger.LoanView(loan.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loan")
	if !ok {
		return
	}
	view, err := s.ledger.LoanView(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) updateLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loan")
	if !ok {
		return
	}
	terms, ok := s.loanTerms(w, r)
	if !ok {
		return
	}
	if _, err := s.ledger.UpdateLoan(id, terms); err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := s.ledger.LoanView(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loan")
	if !ok {
		return
	}
	if err := s.ledger.DeleteLoan(id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cashFlowHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loan")
	if !ok {
		return
	}
	rows, err := s.ledger.CashFlow(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

type paymentRequest struct {
	Value       json.Number `json:"value" validate:"required,numeric"`
	PaymentDate string      `json:"payment_date" validate:"required"`
}

func (s *Server) payment(w http.ResponseWriter, r *http.Request) (decimal.Decimal, date.Date, bool) {
	var req paymentRequest
	if !s.decode(w, r, &req) {
		return decimal.Zero, date.Date{}, false
	}
	value, err := decimal.NewFromString(req.Value.String())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return decimal.Zero, date.Date{}, false
	}
	on, err := date.Parse(req.PaymentDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return decimal.Zero, date.Date{}, false
	}
	return value, on, true
}

func (s *Server) listLoanPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loan")
	if !ok {
		return
	}
	payments, err := s.ledger.PaymentViews(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "loan")
	if !ok {
		return
	}
	value, on, ok := s.payment(w, r)
	if !ok {
		return
	}
	payment, err := s.ledger.RecordPayment(id, value, on)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

func (s *Server) listPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	payments, err := s.ledger.PaymentViews(0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (s *Server) getPaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "payment")
	if !ok {
		return
	}
	payment, err := s.ledger.GetPayment(id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (s *Server) updatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "payment")
	if !ok {
		return
	}
	value, on, ok := s.payment(w, r)
	if !ok {
		return
	}
	payment, err := s.ledger.UpdatePayment(id, value, on)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

func (s *Server) deletePaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "payment")
	if !ok {
		return
	}
	if err := s.ledger.DeletePayment(id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) frequenciesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"frequencies":         schedule.Frequencies,
		"rate_types":          schedule.RateTypes,
		"compounding_periods": schedule.CompoundingPeriods,
	})
}
