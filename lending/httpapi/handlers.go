package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/libraryops/lending-core-go/lending"
)

const (
	routeLoans        = "/loans"
	routeLoansActive  = "/loans/active"
	routeLoansOverdue = "/loans/overdue"
	routeSanctions    = "/sanctions"
	routeCopies       = "/copies"
	routeHealthLive   = "/health/live"
	routeHealthReady  = "/health/ready"
	routeMetrics      = "/metrics"

	paramLoanID     = "loanID"
	paramCopyID     = "copyID"
	paramBorrowerID = "borrowerID"
	queryBorrowerID = "borrowerId"

	msgInvalidRequestBody = "invalid request body"
	msgInvalidID          = "invalid id"
	msgInternalError      = "internal server error"
	msgStorageBusy        = "storage is busy, retry later"
)

var jsonAPI = jsoniter.ConfigFastest

// Handler serves the lending REST routes on top of a Service.
type Handler struct {
	service *lending.Service
	logger  *slog.Logger
}

// NewHandler creates a Handler for the given service.
func NewHandler(service *lending.Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.With(slog.String("component", "httpapi")),
	}
}

type createLoanRequest struct {
	CopyID     string `json:"copyId"`
	BorrowerID string `json:"borrowerId"`
	Date       string `json:"date,omitempty"`
}

type createSanctionRequest struct {
	BorrowerID   string `json:"borrowerId"`
	Reason       string `json:"reason"`
	DurationDays int    `json:"durationDays"`
	IssuedBy     string `json:"issuedBy"`
}

type addCopyRequest struct {
	BookID        string `json:"bookId"`
	ShelfLocation string `json:"shelfLocation"`
}

type loanBody struct {
	LoanID     string  `json:"loanId"`
	CopyID     string  `json:"copyId"`
	BorrowerID string  `json:"borrowerId"`
	LoanedAt   string  `json:"loanedAt"`
	ReturnedAt *string `json:"returnedAt,omitempty"`
}

type loanViewBody struct {
	loanBody
	DaysRemaining int    `json:"daysRemaining"`
	Band          string `json:"band"`
}

type sanctionBody struct {
	BorrowerID string `json:"borrowerId"`
	Reason     string `json:"reason"`
	IssuedBy   string `json:"issuedBy"`
	AppliedAt  string `json:"appliedAt"`
	ExpiresAt  string `json:"expiresAt"`
	Active     bool   `json:"active"`
}

type copyBody struct {
	CopyID        string `json:"copyId"`
	BookID        string `json:"bookId"`
	ShelfLocation string `json:"shelfLocation"`
	Status        string `json:"status"`
	Retired       bool   `json:"retired"`
}

type copyStatusBody struct {
	CopyID string `json:"copyId"`
	Status string `json:"status"`
}

type errorBody struct {
	Error string `json:"error"`
}

// CreateLoan handles POST /loans.
func (h *Handler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var request createLoanRequest
	if err := jsonAPI.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, msgInvalidRequestBody)
		return
	}

	copyID, copyIDErr := uuid.Parse(request.CopyID)
	borrowerID, borrowerIDErr := uuid.Parse(request.BorrowerID)

	if copyIDErr != nil || borrowerIDErr != nil {
		h.writeError(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	var loanedAt time.Time

	if request.Date != "" {
		parsed, parseErr := time.Parse(time.RFC3339, request.Date)
		if parseErr != nil {
			h.writeError(w, http.StatusBadRequest, "date must be RFC 3339")
			return
		}

		loanedAt = parsed
	}

	loan, err := h.service.CreateLoan(r.Context(), borrowerID, copyID, loanedAt)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, buildLoanBody(loan))
}

// ReturnLoan handles PUT /loans/{loanID}/return.
func (h *Handler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(chi.URLParam(r, paramLoanID))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	loan, returnErr := h.service.ReturnLoan(r.Context(), loanID)
	if returnErr != nil {
		h.writeDomainError(w, returnErr)
		return
	}

	h.writeJSON(w, http.StatusOK, buildLoanBody(loan))
}

// ActiveLoans handles GET /loans/active.
func (h *Handler) ActiveLoans(w http.ResponseWriter, r *http.Request) {
	borrowerID, ok := h.optionalBorrowerID(w, r)
	if !ok {
		return
	}

	views, err := h.service.ActiveLoans(r.Context(), borrowerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, buildLoanViewBodies(views))
}

// AllLoans handles GET /loans.
func (h *Handler) AllLoans(w http.ResponseWriter, r *http.Request) {
	borrowerID, ok := h.optionalBorrowerID(w, r)
	if !ok {
		return
	}

	loans, err := h.service.AllLoans(r.Context(), borrowerID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	bodies := make([]loanBody, 0, len(loans))
	for _, loan := range loans {
		bodies = append(bodies, buildLoanBody(loan))
	}

	h.writeJSON(w, http.StatusOK, bodies)
}

// OverdueLoans handles GET /loans/overdue.
func (h *Handler) OverdueLoans(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.OverdueLoans(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, buildLoanViewBodies(views))
}

// CreateSanction handles POST /sanctions.
func (h *Handler) CreateSanction(w http.ResponseWriter, r *http.Request) {
	var request createSanctionRequest
	if err := jsonAPI.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, msgInvalidRequestBody)
		return
	}

	borrowerID, borrowerIDErr := uuid.Parse(request.BorrowerID)
	issuedBy, issuedByErr := uuid.Parse(request.IssuedBy)

	if borrowerIDErr != nil || issuedByErr != nil {
		h.writeError(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	sanction, err := h.service.ApplySanction(r.Context(), borrowerID, request.Reason, request.DurationDays, issuedBy)
	if err != nil {
		if errors.Is(err, lending.ErrInvalidSanctionDuration) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		h.writeDomainError(w, err)

		return
	}

	h.writeJSON(w, http.StatusCreated, buildSanctionBody(sanction))
}

// RemoveSanction handles DELETE /sanctions/{borrowerID}.
func (h *Handler) RemoveSanction(w http.ResponseWriter, r *http.Request) {
	borrowerID, err := uuid.Parse(chi.URLParam(r, paramBorrowerID))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	if removeErr := h.service.RemoveSanction(r.Context(), borrowerID); removeErr != nil {
		h.writeDomainError(w, removeErr)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// AddCopy handles POST /copies.
func (h *Handler) AddCopy(w http.ResponseWriter, r *http.Request) {
	var request addCopyRequest
	if err := jsonAPI.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, http.StatusBadRequest, msgInvalidRequestBody)
		return
	}

	bookID, bookIDErr := uuid.Parse(request.BookID)
	if bookIDErr != nil {
		h.writeError(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	copyRecord, err := h.service.AddCopy(r.Context(), bookID, request.ShelfLocation)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, copyBody{
		CopyID:        copyRecord.ID.String(),
		BookID:        copyRecord.BookID.String(),
		ShelfLocation: copyRecord.ShelfLocation,
		Status:        string(copyRecord.Status),
		Retired:       copyRecord.Retired,
	})
}

// CopyStatus handles GET /copies/{copyID}.
func (h *Handler) CopyStatus(w http.ResponseWriter, r *http.Request) {
	copyID, err := uuid.Parse(chi.URLParam(r, paramCopyID))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, msgInvalidID)
		return
	}

	status, statusErr := h.service.CopyStatus(r.Context(), copyID)
	if statusErr != nil {
		h.writeDomainError(w, statusErr)
		return
	}

	h.writeJSON(w, http.StatusOK, copyStatusBody{
		CopyID: copyID.String(),
		Status: string(status),
	})
}

// optionalBorrowerID parses the borrowerId query parameter; a missing
// parameter means "all borrowers".
func (h *Handler) optionalBorrowerID(w http.ResponseWriter, r *http.Request) (*uuid.UUID, bool) {
	raw := r.URL.Query().Get(queryBorrowerID)
	if raw == "" {
		return nil, true
	}

	borrowerID, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, msgInvalidID)
		return nil, false
	}

	return &borrowerID, true
}

// writeDomainError maps the lending error taxonomy onto HTTP status codes
// and descriptive bodies. Unknown errors stay opaque with a 500.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, lending.ErrCopyUnavailable):
		h.writeError(w, http.StatusConflict, lending.ErrCopyUnavailable.Error())
	case errors.Is(err, lending.ErrLoanAlreadyReturned):
		h.writeError(w, http.StatusConflict, lending.ErrLoanAlreadyReturned.Error())
	case errors.Is(err, lending.ErrBorrowerSanctioned):
		h.writeError(w, http.StatusForbidden, lending.ErrBorrowerSanctioned.Error())
	case errors.Is(err, lending.ErrCopyNotFound):
		h.writeError(w, http.StatusNotFound, lending.ErrCopyNotFound.Error())
	case errors.Is(err, lending.ErrBorrowerNotFound):
		h.writeError(w, http.StatusNotFound, lending.ErrBorrowerNotFound.Error())
	case errors.Is(err, lending.ErrLoanNotFound):
		h.writeError(w, http.StatusNotFound, lending.ErrLoanNotFound.Error())
	case errors.Is(err, lending.ErrTransientStorageConflict):
		h.writeError(w, http.StatusServiceUnavailable, msgStorageBusy)
	default:
		h.logger.Error("unhandled error in http handler", slog.String("error", err.Error()))
		h.writeError(w, http.StatusInternalServerError, msgInternalError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorBody{Error: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := jsonAPI.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response body", slog.String("error", err.Error()))
	}
}

func buildLoanBody(loan lending.Loan) loanBody {
	body := loanBody{
		LoanID:     loan.ID.String(),
		CopyID:     loan.CopyID.String(),
		BorrowerID: loan.BorrowerID.String(),
		LoanedAt:   loan.LoanedAt.Format(time.RFC3339),
	}

	if loan.ReturnedAt != nil {
		returnedAt := loan.ReturnedAt.Format(time.RFC3339)
		body.ReturnedAt = &returnedAt
	}

	return body
}

func buildLoanViewBodies(views []lending.LoanView) []loanViewBody {
	bodies := make([]loanViewBody, 0, len(views))

	for _, view := range views {
		bodies = append(bodies, loanViewBody{
			loanBody:      buildLoanBody(view.Loan),
			DaysRemaining: view.Due.DaysRemaining,
			Band:          string(view.Due.Band),
		})
	}

	return bodies
}

func buildSanctionBody(sanction lending.Sanction) sanctionBody {
	return sanctionBody{
		BorrowerID: sanction.BorrowerID.String(),
		Reason:     sanction.Reason,
		IssuedBy:   sanction.IssuedBy.String(),
		AppliedAt:  sanction.AppliedAt.Format(time.RFC3339),
		ExpiresAt:  sanction.ExpiresAt.Format(time.RFC3339),
		Active:     sanction.Active,
	}
}
