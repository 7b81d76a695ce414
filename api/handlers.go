/*
handlers.go - HTTP API handlers for the enrollment billing engine

PURPOSE:
  Exposes the schedule engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Plans:
    GET    /api/plans                  List payment plans
    POST   /api/plans                  Create/replace a plan
    GET    /api/plans/{id}             Get plan detail

  Enrollments:
    POST   /api/enrollments            Run the creation saga
    GET    /api/enrollments            List (filter by student_id)
    GET    /api/enrollments/{id}       Get enrollment detail
    GET    /api/enrollments/{id}/installments  The generated schedule
    POST   /api/enrollments/{id}/complete  Close the creation flow

  Schedules:
    POST   /api/schedules/preview      Dry-run schedule, nothing persisted

  Installments:
    GET    /api/installments/{id}      Get installment detail
    POST   /api/installments/{id}/payments  Record a down payment
    GET    /api/installments/{id}/payments  Payment history

  Admin:
    POST   /api/admin/overdue          Flip past-due pending installments

  Exports:
    POST   /api/exports                Start a schedule export
    GET    /api/exports                List export jobs (filter by owner)
    GET    /api/exports/{id}           Export job status

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid plan configuration, bad amounts
  - 404: Resource not found
  - 409: Duplicate enrollment, creation already in flight for the student
  - 500: Store failures; partial installment failures carry the list of
         installments that were persisted before the failure (no rollback)

SINGLE FLIGHT:
  At most one creation saga runs per student at a time in this process.
  A second concurrent request for the same student gets 409 immediately.
  This does not close the duplicate check-then-create race across
  processes; see enrollment/guard.go.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - enrollment/orchestrator.go: The saga behind POST /api/enrollments
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/campora/enrollment-engine/billing"
	"github.com/campora/enrollment-engine/enrollment"
	"github.com/campora/enrollment-engine/export"
	"github.com/campora/enrollment-engine/ws"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        billing.PlanStore
	Overdue      billing.OverdueStore
	Orchestrator *enrollment.Orchestrator
	DownPayments *enrollment.DownPaymentRecorder

	// Exports and Hub are optional; endpoints that need them answer 503
	// when they are not configured.
	Exports *export.Service
	Hub     *ws.Hub

	mu       sync.Mutex
	inflight map[billing.StudentID]bool
}

// NewHandler creates a handler over a store. overdue may equal store when
// the implementation supports the overdue transition.
func NewHandler(store billing.PlanStore, overdue billing.OverdueStore, orch *enrollment.Orchestrator, dp *enrollment.DownPaymentRecorder) *Handler {
	return &Handler{
		Store:        store,
		Overdue:      overdue,
		Orchestrator: orch,
		DownPayments: dp,
		inflight:     make(map[billing.StudentID]bool),
	}
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns all payment plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.ListPlans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list plans", err)
		return
	}

	dtos := make([]PlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = toPlanDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPlan returns a single plan.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := billing.PlanID(chi.URLParam(r, "id"))

	plan, err := h.Store.FetchPlan(r.Context(), id)
	if err != nil {
		if billing.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Plan not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan))
}

// CreatePlan creates or replaces a payment plan.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	subtotal, err := decimal.NewFromString(req.Subtotal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid subtotal (use a decimal string)", err)
		return
	}
	total, err := decimal.NewFromString(req.Total)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid total (use a decimal string)", err)
		return
	}

	plan := billing.PaymentPlan{
		ID:               billing.PlanID(req.ID),
		Name:             req.Name,
		Kind:             billing.PlanKind(req.Kind),
		Subtotal:         subtotal,
		Total:            total,
		InstallmentCount: req.InstallmentCount,
		PeriodUnit:       billing.PeriodUnit(req.PeriodUnit),
		PeriodValue:      req.PeriodValue,
		CurrencySymbol:   req.CurrencySymbol,
	}
	if plan.ID == "" {
		plan.ID = billing.PlanID(uuid.NewString())
	}
	if req.FinalSubtotal != nil {
		d, err := decimal.NewFromString(*req.FinalSubtotal)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid final_subtotal", err)
			return
		}
		plan.FinalSubtotal = &d
	}
	if req.FinalTotal != nil {
		d, err := decimal.NewFromString(*req.FinalTotal)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid final_total", err)
			return
		}
		plan.FinalTotal = &d
	}

	switch plan.Kind {
	case billing.KindSinglePayment, billing.KindRecurringPayment, billing.KindInstallmentPlan:
	default:
		writeError(w, http.StatusBadRequest, "Invalid kind (single, recurring, installments)", nil)
		return
	}
	if plan.Kind == billing.KindInstallmentPlan {
		if plan.InstallmentCount < 1 {
			writeError(w, http.StatusBadRequest, "installment_count must be at least 1", nil)
			return
		}
		switch plan.PeriodUnit {
		case billing.PeriodDays, billing.PeriodWeeks, billing.PeriodMonths, billing.PeriodYears:
		default:
			writeError(w, http.StatusBadRequest, "Invalid period_unit (days, weeks, months, years)", nil)
			return
		}
	}

	saved, err := h.Store.SavePlan(r.Context(), plan)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(saved))
}

// =============================================================================
// SCHEDULE PREVIEW
// =============================================================================

// PreviewSchedule generates a schedule without persisting anything. The
// wizard uses this to show due dates and amounts before the student commits.
func (h *Handler) PreviewSchedule(w http.ResponseWriter, r *http.Request) {
	var req SchedulePreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	baseDate, err := time.Parse("2006-01-02", req.BaseDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid base_date format (use YYYY-MM-DD)", err)
		return
	}

	plan, err := h.Store.FetchPlan(r.Context(), billing.PlanID(req.PlanID))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	specs, err := billing.GenerateSchedule(plan, baseDate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	lines := make([]InstallmentSpecDTO, len(specs))
	for i, spec := range specs {
		lines[i] = InstallmentSpecDTO{
			Sequence: spec.Sequence,
			DueDate:  spec.DueDate.Format("2006-01-02"),
			Subtotal: spec.Subtotal.String(),
			Total:    spec.Total.String(),
		}
	}

	writeJSON(w, http.StatusOK, SchedulePreviewResponse{
		PlanID:   req.PlanID,
		BaseDate: req.BaseDate,
		Schedule: lines,
	})
}

// =============================================================================
// ENROLLMENT HANDLERS
// =============================================================================

// CreateEnrollment runs the creation saga: duplicate guard, enrollment
// insert, sequential installment generation. On partial failure the response
// lists what was persisted; nothing is rolled back.
func (h *Handler) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var req CreateEnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.StudentID == "" || req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "student_id and plan_id are required", nil)
		return
	}

	enrollmentDate, err := time.Parse("2006-01-02", req.EnrollmentDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid enrollment_date format (use YYYY-MM-DD)", err)
		return
	}

	// First due date defaults to the enrollment date when the wizard does
	// not pick one explicitly.
	firstDueDate := enrollmentDate
	if req.FirstDueDate != "" {
		firstDueDate, err = time.Parse("2006-01-02", req.FirstDueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid first_due_date format (use YYYY-MM-DD)", err)
			return
		}
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	studentID := billing.StudentID(req.StudentID)
	if !h.acquire(studentID) {
		writeError(w, http.StatusConflict, "Enrollment creation already in progress for this student", enrollment.ErrCreationInFlight)
		return
	}
	defer h.release(studentID)

	result, err := h.Orchestrator.CreateEnrollment(r.Context(), enrollment.CreateInput{
		RequestID:      requestID,
		StudentID:      studentID,
		PlanID:         billing.PlanID(req.PlanID),
		EnrollmentDate: enrollmentDate,
		FirstDueDate:   firstDueDate,
		AcademicPeriod: billing.AcademicPeriodID(req.AcademicPeriod),
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateEnrollmentResponse{
		RequestID:    requestID,
		Enrollment:   toEnrollmentDTO(result.Enrollment),
		Installments: toInstallmentDTOs(result.Installments),
	})
}

// CompleteEnrollment closes the creation flow after the down-payment
// decision (recorded or skipped). Observers on the request channel get the
// final stage; the store is untouched.
func (h *Handler) CompleteEnrollment(w http.ResponseWriter, r *http.Request) {
	id := billing.EnrollmentID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetEnrollment(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}

	var req CompleteEnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	h.Orchestrator.Complete(req.RequestID, id)
	w.WriteHeader(http.StatusNoContent)
}

// ListEnrollments returns enrollments, optionally filtered by student.
func (h *Handler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	studentID := billing.StudentID(r.URL.Query().Get("student_id"))

	enrollments, err := h.Store.ListEnrollments(r.Context(), studentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list enrollments", err)
		return
	}

	dtos := make([]EnrollmentDTO, len(enrollments))
	for i, e := range enrollments {
		dtos[i] = toEnrollmentDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEnrollment returns a single enrollment.
func (h *Handler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	id := billing.EnrollmentID(chi.URLParam(r, "id"))

	e, err := h.Store.GetEnrollment(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentDTO(e))
}

// GetEnrollmentInstallments returns the generated schedule, sequence order.
func (h *Handler) GetEnrollmentInstallments(w http.ResponseWriter, r *http.Request) {
	id := billing.EnrollmentID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetEnrollment(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}

	installments, err := h.Store.ListInstallments(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list installments", err)
		return
	}
	writeJSON(w, http.StatusOK, toInstallmentDTOs(installments))
}

// =============================================================================
// INSTALLMENT / PAYMENT HANDLERS
// =============================================================================

// GetInstallment returns a single installment.
func (h *Handler) GetInstallment(w http.ResponseWriter, r *http.Request) {
	id := billing.InstallmentID(chi.URLParam(r, "id"))

	ins, err := h.Store.GetInstallment(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInstallmentDTO(ins))
}

// RecordPayment records a down payment against an installment.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id := billing.InstallmentID(chi.URLParam(r, "id"))

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount (use a decimal string)", err)
		return
	}

	result, err := h.DownPayments.Record(r.Context(), enrollment.DownPaymentInput{
		InstallmentID: id,
		Amount:        amount,
		Method:        req.Method,
		Reference:     req.Reference,
		Note:          req.Note,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, RecordPaymentResponse{
		Payment:            toPaymentDTO(result.Payment),
		OutstandingBalance: result.OutstandingBalance.String(),
	})
}

// ListPayments returns payments recorded against an installment.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id := billing.InstallmentID(chi.URLParam(r, "id"))

	payments, err := h.Store.ListPayments(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// TriggerOverdue flips past-due pending installments to overdue. The
// background scheduler does this hourly; this endpoint is the manual lever.
func (h *Handler) TriggerOverdue(w http.ResponseWriter, r *http.Request) {
	if h.Overdue == nil {
		writeError(w, http.StatusServiceUnavailable, "Overdue transitions not supported by this store", nil)
		return
	}

	n, err := h.Overdue.MarkOverdue(r.Context(), time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to mark overdue installments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"transitioned": n})
}

// =============================================================================
// EXPORT HANDLERS
// =============================================================================

// StartExport kicks off a background schedule export.
func (h *Handler) StartExport(w http.ResponseWriter, r *http.Request) {
	if h.Exports == nil {
		writeError(w, http.StatusServiceUnavailable, "Exports not configured", nil)
		return
	}

	var req StartExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	exportID, err := h.Exports.Start(r.Context(), export.Filter{
		StudentID:      billing.StudentID(req.StudentID),
		AcademicPeriod: billing.AcademicPeriodID(req.AcademicPeriod),
	}, req.Owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start export", err)
		return
	}
	writeJSON(w, http.StatusAccepted, StartExportResponse{ExportID: exportID})
}

// ListExports returns export jobs, optionally filtered by owner.
func (h *Handler) ListExports(w http.ResponseWriter, r *http.Request) {
	if h.Exports == nil {
		writeError(w, http.StatusServiceUnavailable, "Exports not configured", nil)
		return
	}

	statuses, err := h.Exports.ListStatuses(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list exports", err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

// GetExport returns a single export job status.
func (h *Handler) GetExport(w http.ResponseWriter, r *http.Request) {
	if h.Exports == nil {
		writeError(w, http.StatusServiceUnavailable, "Exports not configured", nil)
		return
	}

	status, err := h.Exports.GetStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Export not found", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// =============================================================================
// WEBSOCKET HANDLERS
// =============================================================================

// EnrollmentProgressWS subscribes to saga progress for one request ID.
func (h *Handler) EnrollmentProgressWS(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "Websocket hub not configured", nil)
		return
	}
	h.Hub.HandleWebSocket(w, r, chi.URLParam(r, "requestID"))
}

// ExportProgressWS subscribes to export events for one owner.
func (h *Handler) ExportProgressWS(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		writeError(w, http.StatusServiceUnavailable, "Websocket hub not configured", nil)
		return
	}
	h.Hub.HandleWebSocket(w, r, chi.URLParam(r, "owner"))
}

// =============================================================================
// SINGLE FLIGHT
// =============================================================================

func (h *Handler) acquire(studentID billing.StudentID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inflight[studentID] {
		return false
	}
	h.inflight[studentID] = true
	return true
}

func (h *Handler) release(studentID billing.StudentID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.inflight, studentID)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// writeDomainError maps domain errors onto HTTP statuses. Partial
// installment failures get special treatment: the client needs to know
// exactly which installments exist.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var insErr *enrollment.InstallmentCreationError
	if errors.As(err, &insErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:    "Installment generation failed partway; created installments were kept",
			Details:  insErr.Error(),
			FailedAt: insErr.FailedAt,
			Created:  toInstallmentDTOs(insErr.Created),
		})
		return
	}

	switch {
	case errors.Is(err, enrollment.ErrDuplicateEnrollment):
		writeError(w, http.StatusConflict, "Student already enrolled in this academic period", err)
	case errors.Is(err, enrollment.ErrCreationInFlight):
		writeError(w, http.StatusConflict, "Enrollment creation already in progress", err)
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case billing.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
