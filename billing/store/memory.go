// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campora/enrollment-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	plans        map[billing.PlanID]billing.PaymentPlan
	enrollments  map[billing.EnrollmentID]billing.Enrollment
	installments map[billing.InstallmentID]billing.Installment
	payments     map[billing.PaymentID]billing.Payment
}

func NewMemory() *Memory {
	return &Memory{
		plans:        make(map[billing.PlanID]billing.PaymentPlan),
		enrollments:  make(map[billing.EnrollmentID]billing.Enrollment),
		installments: make(map[billing.InstallmentID]billing.Installment),
		payments:     make(map[billing.PaymentID]billing.Payment),
	}
}

func (m *Memory) FindEnrollments(_ context.Context, studentID billing.StudentID, periodID billing.AcademicPeriodID) ([]billing.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []billing.Enrollment
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.PeriodScoped && e.AcademicPeriod == periodID {
			result = append(result, e)
		}
	}
	sortEnrollments(result)
	return result, nil
}

func (m *Memory) CreateEnrollment(_ context.Context, draft billing.EnrollmentDraft) (billing.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := billing.Enrollment{
		ID:             billing.EnrollmentID(uuid.NewString()),
		StudentID:      draft.StudentID,
		PlanID:         draft.PlanID,
		EnrollmentDate: draft.EnrollmentDate,
		FirstDueDate:   draft.FirstDueDate,
		PeriodScoped:   draft.PeriodScoped,
		AcademicPeriod: draft.AcademicPeriod,
		Status:         draft.Status,
		CreatedAt:      time.Now().UTC(),
	}
	m.enrollments[e.ID] = e
	return e, nil
}

func (m *Memory) FetchPlan(_ context.Context, id billing.PlanID) (billing.PaymentPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plans[id]
	if !ok {
		return billing.PaymentPlan{}, billing.ErrPlanNotFound
	}
	return p, nil
}

func (m *Memory) CreateInstallment(_ context.Context, draft billing.InstallmentDraft) (billing.Installment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.enrollments[draft.EnrollmentID]; !ok {
		return billing.Installment{}, billing.ErrEnrollmentNotFound
	}
	for _, existing := range m.installments {
		if existing.EnrollmentID == draft.EnrollmentID && existing.Sequence == draft.Sequence {
			return billing.Installment{}, billing.ErrDuplicateSequence
		}
	}

	ins := billing.Installment{
		ID:           billing.InstallmentID(uuid.NewString()),
		EnrollmentID: draft.EnrollmentID,
		Sequence:     draft.Sequence,
		DueDate:      draft.DueDate,
		Subtotal:     draft.Subtotal,
		Total:        draft.Total,
		Status:       draft.Status,
		GeneratedAt:  time.Now().UTC(),
	}
	m.installments[ins.ID] = ins
	return ins, nil
}

func (m *Memory) CreatePayment(_ context.Context, draft billing.PaymentDraft) (billing.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.installments[draft.InstallmentID]; !ok {
		return billing.Payment{}, billing.ErrInstallmentNotFound
	}

	p := billing.Payment{
		ID:            billing.PaymentID(uuid.NewString()),
		InstallmentID: draft.InstallmentID,
		Method:        draft.Method,
		Amount:        draft.Amount,
		AppliedAt:     draft.AppliedAt,
		Reference:     draft.Reference,
		Note:          draft.Note,
	}
	m.payments[p.ID] = p
	return p, nil
}

func (m *Memory) GetEnrollment(_ context.Context, id billing.EnrollmentID) (billing.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.enrollments[id]
	if !ok {
		return billing.Enrollment{}, billing.ErrEnrollmentNotFound
	}
	return e, nil
}

func (m *Memory) ListEnrollments(_ context.Context, studentID billing.StudentID) ([]billing.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []billing.Enrollment
	for _, e := range m.enrollments {
		if studentID == "" || e.StudentID == studentID {
			result = append(result, e)
		}
	}
	sortEnrollments(result)
	return result, nil
}

func (m *Memory) ListInstallments(_ context.Context, enrollmentID billing.EnrollmentID) ([]billing.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []billing.Installment
	for _, ins := range m.installments {
		if ins.EnrollmentID == enrollmentID {
			result = append(result, ins)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
	return result, nil
}

func (m *Memory) GetInstallment(_ context.Context, id billing.InstallmentID) (billing.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ins, ok := m.installments[id]
	if !ok {
		return billing.Installment{}, billing.ErrInstallmentNotFound
	}
	return ins, nil
}

func (m *Memory) ListPayments(_ context.Context, installmentID billing.InstallmentID) ([]billing.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []billing.Payment
	for _, p := range m.payments {
		if p.InstallmentID == installmentID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AppliedAt.Before(result[j].AppliedAt) })
	return result, nil
}

// =============================================================================
// PLAN ADMINISTRATION (billing.PlanStore)
// =============================================================================

func (m *Memory) SavePlan(_ context.Context, plan billing.PaymentPlan) (billing.PaymentPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if plan.ID == "" {
		plan.ID = billing.PlanID(uuid.NewString())
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}
	m.plans[plan.ID] = plan
	return plan, nil
}

func (m *Memory) ListPlans(_ context.Context) ([]billing.PaymentPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]billing.PaymentPlan, 0, len(m.plans))
	for _, p := range m.plans {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// =============================================================================
// OVERDUE TRANSITION (billing.OverdueStore)
// =============================================================================

func (m *Memory) MarkOverdue(_ context.Context, asOf time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, ins := range m.installments {
		if ins.Status == billing.InstallmentPending && ins.DueDate.Before(asOf) {
			ins.Status = billing.InstallmentOverdue
			m.installments[id] = ins
			n++
		}
	}
	return n, nil
}

func sortEnrollments(es []billing.Enrollment) {
	sort.Slice(es, func(i, j int) bool { return es[i].CreatedAt.After(es[j].CreatedAt) })
}
