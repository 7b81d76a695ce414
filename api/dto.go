/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal billing model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND DATES:
  Amounts travel as decimal strings ("1500.00") so clients never touch
  binary floats. Dates are plain "YYYY-MM-DD"; timestamps are RFC3339.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - billing/types.go: The domain model these mirror
*/
package api

import (
	"time"

	"github.com/campora/enrollment-engine/billing"
)

// =============================================================================
// PLAN TYPES
// =============================================================================

// PlanDTO represents a payment plan in API responses.
type PlanDTO struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Kind             string  `json:"kind"`
	Subtotal         string  `json:"subtotal"`
	Total            string  `json:"total"`
	InstallmentCount int     `json:"installment_count"`
	PeriodUnit       string  `json:"period_unit"`
	PeriodValue      int     `json:"period_value"`
	FinalSubtotal    *string `json:"final_subtotal,omitempty"`
	FinalTotal       *string `json:"final_total,omitempty"`
	CurrencySymbol   string  `json:"currency_symbol,omitempty"`
	CreatedAt        string  `json:"created_at,omitempty"`
}

// CreatePlanRequest is the request to create or replace a payment plan.
type CreatePlanRequest struct {
	ID               string  `json:"id,omitempty"`
	Name             string  `json:"name"`
	Kind             string  `json:"kind"`
	Subtotal         string  `json:"subtotal"`
	Total            string  `json:"total"`
	InstallmentCount int     `json:"installment_count"`
	PeriodUnit       string  `json:"period_unit"`
	PeriodValue      int     `json:"period_value"`
	FinalSubtotal    *string `json:"final_subtotal,omitempty"`
	FinalTotal       *string `json:"final_total,omitempty"`
	CurrencySymbol   string  `json:"currency_symbol,omitempty"`
}

// =============================================================================
// ENROLLMENT TYPES
// =============================================================================

// EnrollmentDTO represents an enrollment in API responses.
type EnrollmentDTO struct {
	ID             string `json:"id"`
	StudentID      string `json:"student_id"`
	PlanID         string `json:"plan_id"`
	EnrollmentDate string `json:"enrollment_date"`
	FirstDueDate   string `json:"first_due_date"`
	PeriodScoped   bool   `json:"period_scoped"`
	AcademicPeriod string `json:"academic_period,omitempty"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// CreateEnrollmentRequest is the request that starts the creation saga.
type CreateEnrollmentRequest struct {
	RequestID      string `json:"request_id,omitempty"`
	StudentID      string `json:"student_id"`
	PlanID         string `json:"plan_id"`
	EnrollmentDate string `json:"enrollment_date"`
	FirstDueDate   string `json:"first_due_date,omitempty"`
	AcademicPeriod string `json:"academic_period,omitempty"`
}

// CompleteEnrollmentRequest marks the creation flow finished after the
// down-payment decision. RequestID routes the final progress event.
type CompleteEnrollmentRequest struct {
	RequestID string `json:"request_id"`
}

// CreateEnrollmentResponse carries the saga result: the enrollment plus
// every installment that was persisted.
type CreateEnrollmentResponse struct {
	RequestID    string           `json:"request_id"`
	Enrollment   EnrollmentDTO    `json:"enrollment"`
	Installments []InstallmentDTO `json:"installments"`
}

// =============================================================================
// INSTALLMENT / PAYMENT TYPES
// =============================================================================

// InstallmentDTO represents one generated installment.
type InstallmentDTO struct {
	ID           string `json:"id"`
	EnrollmentID string `json:"enrollment_id"`
	Sequence     int    `json:"sequence"`
	DueDate      string `json:"due_date"`
	Subtotal     string `json:"subtotal"`
	Total        string `json:"total"`
	Status       string `json:"status"`
	GeneratedAt  string `json:"generated_at,omitempty"`
}

// InstallmentSpecDTO is a not-yet-persisted schedule line (preview).
type InstallmentSpecDTO struct {
	Sequence int    `json:"sequence"`
	DueDate  string `json:"due_date"`
	Subtotal string `json:"subtotal"`
	Total    string `json:"total"`
}

// SchedulePreviewRequest asks for a dry-run schedule without persisting.
type SchedulePreviewRequest struct {
	PlanID   string `json:"plan_id"`
	BaseDate string `json:"base_date"`
}

// SchedulePreviewResponse is the generated schedule for a plan and base date.
type SchedulePreviewResponse struct {
	PlanID   string               `json:"plan_id"`
	BaseDate string               `json:"base_date"`
	Schedule []InstallmentSpecDTO `json:"schedule"`
}

// PaymentDTO represents a recorded payment.
type PaymentDTO struct {
	ID            string `json:"id"`
	InstallmentID string `json:"installment_id"`
	Amount        string `json:"amount"`
	Method        string `json:"method,omitempty"`
	Reference     string `json:"reference,omitempty"`
	Note          string `json:"note,omitempty"`
	AppliedAt     string `json:"applied_at,omitempty"`
}

// RecordPaymentRequest records a down payment against an installment.
type RecordPaymentRequest struct {
	Amount    string `json:"amount"`
	Method    string `json:"method,omitempty"`
	Reference string `json:"reference,omitempty"`
	Note      string `json:"note,omitempty"`
}

// RecordPaymentResponse returns the payment plus the installment's
// remaining balance.
type RecordPaymentResponse struct {
	Payment            PaymentDTO `json:"payment"`
	OutstandingBalance string     `json:"outstanding_balance"`
}

// =============================================================================
// EXPORT TYPES
// =============================================================================

// StartExportRequest kicks off a background schedule export.
type StartExportRequest struct {
	Owner          string `json:"owner"`
	StudentID      string `json:"student_id,omitempty"`
	AcademicPeriod string `json:"academic_period,omitempty"`
}

// StartExportResponse returns the export ID to poll or subscribe on.
type StartExportResponse struct {
	ExportID string `json:"export_id"`
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`

	// Populated only for partial installment-generation failures: the
	// schedule position that failed and the installments already persisted.
	FailedAt int              `json:"failed_at,omitempty"`
	Created  []InstallmentDTO `json:"created,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toPlanDTO(p billing.PaymentPlan) PlanDTO {
	dto := PlanDTO{
		ID:               string(p.ID),
		Name:             p.Name,
		Kind:             string(p.Kind),
		Subtotal:         p.Subtotal.String(),
		Total:            p.Total.String(),
		InstallmentCount: p.InstallmentCount,
		PeriodUnit:       string(p.PeriodUnit),
		PeriodValue:      p.PeriodValue,
		CurrencySymbol:   p.CurrencySymbol,
	}
	if p.FinalSubtotal != nil {
		s := p.FinalSubtotal.String()
		dto.FinalSubtotal = &s
	}
	if p.FinalTotal != nil {
		s := p.FinalTotal.String()
		dto.FinalTotal = &s
	}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toEnrollmentDTO(e billing.Enrollment) EnrollmentDTO {
	dto := EnrollmentDTO{
		ID:             string(e.ID),
		StudentID:      string(e.StudentID),
		PlanID:         string(e.PlanID),
		EnrollmentDate: e.EnrollmentDate.Format("2006-01-02"),
		FirstDueDate:   e.FirstDueDate.Format("2006-01-02"),
		PeriodScoped:   e.PeriodScoped,
		AcademicPeriod: string(e.AcademicPeriod),
		Status:         string(e.Status),
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toInstallmentDTO(ins billing.Installment) InstallmentDTO {
	dto := InstallmentDTO{
		ID:           string(ins.ID),
		EnrollmentID: string(ins.EnrollmentID),
		Sequence:     ins.Sequence,
		DueDate:      ins.DueDate.Format("2006-01-02"),
		Subtotal:     ins.Subtotal.String(),
		Total:        ins.Total.String(),
		Status:       string(ins.Status),
	}
	if !ins.GeneratedAt.IsZero() {
		dto.GeneratedAt = ins.GeneratedAt.Format(time.RFC3339)
	}
	return dto
}

func toInstallmentDTOs(installments []billing.Installment) []InstallmentDTO {
	dtos := make([]InstallmentDTO, len(installments))
	for i, ins := range installments {
		dtos[i] = toInstallmentDTO(ins)
	}
	return dtos
}

func toPaymentDTO(p billing.Payment) PaymentDTO {
	dto := PaymentDTO{
		ID:            string(p.ID),
		InstallmentID: string(p.InstallmentID),
		Amount:        p.Amount.String(),
		Method:        p.Method,
		Reference:     p.Reference,
		Note:          p.Note,
	}
	if !p.AppliedAt.IsZero() {
		dto.AppliedAt = p.AppliedAt.Format(time.RFC3339)
	}
	return dto
}
