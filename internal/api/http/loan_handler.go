package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"device-loan-backend/internal/security"
	"device-loan-backend/internal/service"
)

const RoleAdmin = "admin"

type LoanHandler struct {
	loans service.LoanService
}

func NewLoanHandler(loans service.LoanService) *LoanHandler {
	return &LoanHandler{loans: loans}
}

// Collect handles POST /reservations/{id}/collect.
func (h *LoanHandler) Collect(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	writeResult(w, r, h.loans.Collect(r.Context(), id), http.StatusCreated)
}

// Return handles POST /loans/{id}/return.
func (h *LoanHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	writeResult(w, r, h.loans.ReturnLoan(r.Context(), id), http.StatusOK)
}

// List handles GET /loans. Only administrators see every loan.
func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, _ := security.ClaimsFromContext(r.Context())
	if claims == nil || !claims.HasRole(RoleAdmin) {
		writeError(w, r, http.StatusForbidden, codeForbidden, "listing all loans requires the admin role")
		return
	}
	page, size := pageParams(r)
	writeResult(w, r, h.loans.GetAllLoans(r.Context(), page, size), http.StatusOK)
}

// ListForUser handles GET /users/{id}/loans. Users may read their own loans;
// administrators may read anyone's.
func (h *LoanHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	claims, _ := security.ClaimsFromContext(r.Context())
	if claims == nil || (claims.UserID != id && !claims.HasRole(RoleAdmin)) {
		writeError(w, r, http.StatusForbidden, codeForbidden, "cannot read another user's loans")
		return
	}
	page, size := pageParams(r)
	writeResult(w, r, h.loans.GetLoansByUserID(r.Context(), id, page, size), http.StatusOK)
}

func pathID(w http.ResponseWriter, r *http.Request) (int32, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id < 0 {
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id: "+raw)
		return 0, false
	}
	return int32(id), true
}

// pageParams reads page and page_size. Missing or malformed values become 0
// and are normalised by the service.
func pageParams(r *http.Request) (int32, int32) {
	q := r.URL.Query()
	page, _ := strconv.ParseInt(q.Get("page"), 10, 32)
	size, _ := strconv.ParseInt(q.Get("page_size"), 10, 32)
	return int32(page), int32(size)
}
