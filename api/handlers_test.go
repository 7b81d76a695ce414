/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Plan creation and schedule preview
- The enrollment creation endpoint (saga over HTTP)
- Down payment recording and error mapping
- Single-flight guard per student
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campora/enrollment-engine/billing"
	"github.com/campora/enrollment-engine/billing/store"
	"github.com/campora/enrollment-engine/enrollment"
)

func newTestHandler() (*Handler, http.Handler) {
	mem := store.NewMemory()
	h := NewHandler(mem, mem, enrollment.NewOrchestrator(mem, nil), enrollment.NewDownPaymentRecorder(mem))
	return h, NewRouter(h)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response: %v (body: %s)", err, rec.Body.String())
	}
	return v
}

func tuitionPlanRequest() CreatePlanRequest {
	return CreatePlanRequest{
		ID:               "plan-tuition",
		Name:             "Tuition 4x",
		Kind:             "installments",
		Subtotal:         "1000.00",
		Total:            "1100.00",
		InstallmentCount: 4,
		PeriodUnit:       "months",
		PeriodValue:      1,
	}
}

func TestCreatePlan_AndPreview(t *testing.T) {
	// GIVEN: A 4-installment monthly plan
	_, router := newTestHandler()

	rec := doJSON(t, router, http.MethodPost, "/api/plans", tuitionPlanRequest())
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// WHEN: Previewing a schedule from Feb 1
	rec = doJSON(t, router, http.MethodPost, "/api/schedules/preview", SchedulePreviewRequest{
		PlanID:   "plan-tuition",
		BaseDate: "2025-02-01",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// THEN: Four lines, first due on the base date, nothing persisted
	preview := decode[SchedulePreviewResponse](t, rec)
	if len(preview.Schedule) != 4 {
		t.Fatalf("Expected 4 schedule lines, got %d", len(preview.Schedule))
	}
	if preview.Schedule[0].DueDate != "2025-02-01" {
		t.Errorf("Expected first due date 2025-02-01, got %s", preview.Schedule[0].DueDate)
	}
	if preview.Schedule[0].Total != "275" && preview.Schedule[0].Total != "275.00" {
		t.Errorf("Expected total 275 per installment, got %s", preview.Schedule[0].Total)
	}
}

func TestCreatePlan_InvalidKind_Rejected(t *testing.T) {
	_, router := newTestHandler()

	req := tuitionPlanRequest()
	req.Kind = "balloon"
	rec := doJSON(t, router, http.MethodPost, "/api/plans", req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestGetPlan_NotFound(t *testing.T) {
	_, router := newTestHandler()

	rec := doJSON(t, router, http.MethodGet, "/api/plans/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
}

func TestCreateEnrollment_EndToEnd(t *testing.T) {
	// GIVEN: A stored plan
	_, router := newTestHandler()
	doJSON(t, router, http.MethodPost, "/api/plans", tuitionPlanRequest())

	// WHEN: Creating an enrollment
	rec := doJSON(t, router, http.MethodPost, "/api/enrollments", CreateEnrollmentRequest{
		StudentID:      "student-1",
		PlanID:         "plan-tuition",
		EnrollmentDate: "2025-01-10",
		FirstDueDate:   "2025-02-01",
		AcademicPeriod: "2025-spring",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// THEN: The response carries the enrollment and its full schedule
	resp := decode[CreateEnrollmentResponse](t, rec)
	if resp.RequestID == "" {
		t.Error("Expected a generated request_id")
	}
	if resp.Enrollment.Status != string(billing.EnrollmentActive) {
		t.Errorf("Expected active enrollment, got %s", resp.Enrollment.Status)
	}
	if resp.Enrollment.FirstDueDate != "2025-02-01" {
		t.Errorf("Expected first_due_date 2025-02-01, got %s", resp.Enrollment.FirstDueDate)
	}
	if len(resp.Installments) != 4 {
		t.Fatalf("Expected 4 installments, got %d", len(resp.Installments))
	}
	if resp.Installments[0].DueDate != "2025-02-01" {
		t.Errorf("Expected first due date 2025-02-01, got %s", resp.Installments[0].DueDate)
	}

	// AND: The schedule is queryable afterwards
	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/enrollments/%s/installments", resp.Enrollment.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	installments := decode[[]InstallmentDTO](t, rec)
	if len(installments) != 4 {
		t.Errorf("Expected 4 persisted installments, got %d", len(installments))
	}
}

func TestCompleteEnrollment_NoContent(t *testing.T) {
	_, router := newTestHandler()
	doJSON(t, router, http.MethodPost, "/api/plans", tuitionPlanRequest())
	created := decode[CreateEnrollmentResponse](t, doJSON(t, router, http.MethodPost, "/api/enrollments", CreateEnrollmentRequest{
		StudentID:      "student-1",
		PlanID:         "plan-tuition",
		EnrollmentDate: "2025-01-10",
	}))

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/enrollments/%s/complete", created.Enrollment.ID), CompleteEnrollmentRequest{
		RequestID: created.RequestID,
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/api/enrollments/missing/complete", CompleteEnrollmentRequest{})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 for unknown enrollment, got %d", rec.Code)
	}
}

func TestCreateEnrollment_Duplicate_Conflict(t *testing.T) {
	_, router := newTestHandler()
	doJSON(t, router, http.MethodPost, "/api/plans", tuitionPlanRequest())

	body := CreateEnrollmentRequest{
		StudentID:      "student-1",
		PlanID:         "plan-tuition",
		EnrollmentDate: "2025-01-10",
		AcademicPeriod: "2025-spring",
	}
	if rec := doJSON(t, router, http.MethodPost, "/api/enrollments", body); rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}

	rec := doJSON(t, router, http.MethodPost, "/api/enrollments", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409 for duplicate period enrollment, got %d", rec.Code)
	}
}

func TestCreateEnrollment_UnknownPlan_NotFound(t *testing.T) {
	_, router := newTestHandler()

	rec := doJSON(t, router, http.MethodPost, "/api/enrollments", CreateEnrollmentRequest{
		StudentID:      "student-1",
		PlanID:         "missing",
		EnrollmentDate: "2025-01-10",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateEnrollment_BadDate_Rejected(t *testing.T) {
	_, router := newTestHandler()

	rec := doJSON(t, router, http.MethodPost, "/api/enrollments", CreateEnrollmentRequest{
		StudentID:      "student-1",
		PlanID:         "plan-tuition",
		EnrollmentDate: "01/10/2025",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}
}

func TestRecordPayment_Success(t *testing.T) {
	// GIVEN: An enrollment with pending installments
	_, router := newTestHandler()
	doJSON(t, router, http.MethodPost, "/api/plans", tuitionPlanRequest())
	created := decode[CreateEnrollmentResponse](t, doJSON(t, router, http.MethodPost, "/api/enrollments", CreateEnrollmentRequest{
		StudentID:      "student-1",
		PlanID:         "plan-tuition",
		EnrollmentDate: "2025-01-10",
		FirstDueDate:   "2025-02-01",
	}))

	first := created.Installments[0]

	// WHEN: Recording a 100.00 down payment on the first installment
	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/installments/%s/payments", first.ID), RecordPaymentRequest{
		Amount: "100.00",
		Method: "card",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// THEN: The outstanding balance reflects the payment
	resp := decode[RecordPaymentResponse](t, rec)
	if resp.OutstandingBalance != "175" && resp.OutstandingBalance != "175.00" {
		t.Errorf("Expected outstanding 175, got %s", resp.OutstandingBalance)
	}

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/installments/%s/payments", first.ID), nil)
	payments := decode[[]PaymentDTO](t, rec)
	if len(payments) != 1 {
		t.Errorf("Expected 1 payment, got %d", len(payments))
	}
}

func TestRecordPayment_NonPositive_Rejected(t *testing.T) {
	_, router := newTestHandler()
	doJSON(t, router, http.MethodPost, "/api/plans", tuitionPlanRequest())
	created := decode[CreateEnrollmentResponse](t, doJSON(t, router, http.MethodPost, "/api/enrollments", CreateEnrollmentRequest{
		StudentID:      "student-1",
		PlanID:         "plan-tuition",
		EnrollmentDate: "2025-01-10",
	}))

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/installments/%s/payments", created.Installments[0].ID), RecordPaymentRequest{
		Amount: "0",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for zero amount, got %d", rec.Code)
	}
}

func TestRecordPayment_MissingInstallment_NotFound(t *testing.T) {
	_, router := newTestHandler()

	rec := doJSON(t, router, http.MethodPost, "/api/installments/missing/payments", RecordPaymentRequest{
		Amount: "10.00",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTriggerOverdue_Endpoint(t *testing.T) {
	_, router := newTestHandler()
	doJSON(t, router, http.MethodPost, "/api/plans", tuitionPlanRequest())
	doJSON(t, router, http.MethodPost, "/api/enrollments", CreateEnrollmentRequest{
		StudentID:      "student-1",
		PlanID:         "plan-tuition",
		EnrollmentDate: "2020-01-10",
		FirstDueDate:   "2020-02-01",
	})

	rec := doJSON(t, router, http.MethodPost, "/api/admin/overdue", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	result := decode[map[string]int](t, rec)
	if result["transitioned"] != 4 {
		t.Errorf("Expected 4 transitioned installments, got %d", result["transitioned"])
	}
}

func TestSingleFlight_SecondAcquireBlocked(t *testing.T) {
	h, _ := newTestHandler()

	if !h.acquire("student-1") {
		t.Fatal("First acquire should succeed")
	}
	if h.acquire("student-1") {
		t.Error("Second acquire for the same student should fail")
	}
	if !h.acquire("student-2") {
		t.Error("Different student should not be blocked")
	}

	h.release("student-1")
	if !h.acquire("student-1") {
		t.Error("Acquire after release should succeed")
	}
}

func TestExportEndpoints_Unconfigured_ServiceUnavailable(t *testing.T) {
	_, router := newTestHandler()

	rec := doJSON(t, router, http.MethodPost, "/api/exports", StartExportRequest{Owner: "admin"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503 without export pipeline, got %d", rec.Code)
	}
}
