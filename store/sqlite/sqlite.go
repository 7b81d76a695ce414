/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements billing.Store, billing.PlanStore and billing.OverdueStore using
  SQLite. In production deployments the same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

NO MULTI-ROW TRANSACTION FOR INSTALLMENTS:
  CreateInstallment inserts exactly one row. The saga semantics depend on
  that: each installment either exists durably or was never attempted, and a
  failure mid-sequence leaves the earlier rows in place. Do not "improve"
  this with a batch insert.

KEY TABLES:
  plans:        payment plan definitions (engine reads, admin flow writes)
  enrollments:  student-to-plan billing relationships
  installments: scheduled obligations, unique (enrollment_id, sequence)
  payments:     immutable monetary applications against installments

AMOUNT STORAGE:
  Decimal amounts are stored as TEXT and parsed back through
  decimal.NewFromString, never as REAL, so no precision is lost.

WAL MODE:
  SQLite is opened with WAL for better concurrency: multiple readers don't
  block, single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/enrollments.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - billing/store.go: interface definitions
  - billing/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/campora/enrollment-engine/billing"
)

// Store implements the billing storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent (each new
	// connection would otherwise see a fresh empty database) and serializes
	// writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		total TEXT NOT NULL,
		installment_count INTEGER DEFAULT 0,
		period_unit TEXT,
		period_value INTEGER DEFAULT 0,
		final_subtotal TEXT,
		final_total TEXT,
		currency_symbol TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS enrollments (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		plan_id TEXT NOT NULL REFERENCES plans(id),
		enrollment_date TEXT NOT NULL,
		first_due_date TEXT NOT NULL,
		period_scoped BOOLEAN NOT NULL DEFAULT FALSE,
		academic_period_id TEXT,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_enrollments_student
		ON enrollments(student_id);
	-- Duplicate-guard lookup path
	CREATE INDEX IF NOT EXISTS idx_enrollments_student_period
		ON enrollments(student_id, academic_period_id)
		WHERE academic_period_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
		sequence INTEGER NOT NULL,
		due_date TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		total TEXT NOT NULL,
		status TEXT NOT NULL,
		generated_at TEXT NOT NULL
	);

	-- Sequence numbers are contiguous 1..N within an enrollment; a retry of
	-- an already-created sequence must fail loudly, not duplicate the row.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_installments_enrollment_sequence
		ON installments(enrollment_id, sequence);
	CREATE INDEX IF NOT EXISTS idx_installments_status_due
		ON installments(status, due_date);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		installment_id TEXT NOT NULL REFERENCES installments(id),
		method TEXT NOT NULL,
		amount TEXT NOT NULL,
		applied_at TEXT NOT NULL,
		reference TEXT,
		note TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_payments_installment
		ON payments(installment_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENROLLMENTS (billing.Store)
// =============================================================================

func (s *Store) FindEnrollments(ctx context.Context, studentID billing.StudentID, periodID billing.AcademicPeriodID) ([]billing.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, student_id, plan_id, enrollment_date, first_due_date,
		       period_scoped, academic_period_id, status, created_at
		FROM enrollments
		WHERE student_id = ? AND academic_period_id = ?
		ORDER BY created_at DESC
	`
	return s.queryEnrollments(ctx, query, studentID, periodID)
}

func (s *Store) CreateEnrollment(ctx context.Context, draft billing.EnrollmentDraft) (billing.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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

	query := `
		INSERT INTO enrollments
		(id, student_id, plan_id, enrollment_date, first_due_date,
		 period_scoped, academic_period_id, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.StudentID,
		e.PlanID,
		e.EnrollmentDate.Format(time.RFC3339),
		e.FirstDueDate.Format(time.RFC3339),
		e.PeriodScoped,
		nullString(string(e.AcademicPeriod)),
		e.Status,
		e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return billing.Enrollment{}, fmt.Errorf("failed to insert enrollment: %w", err)
	}
	return e, nil
}

func (s *Store) GetEnrollment(ctx context.Context, id billing.EnrollmentID) (billing.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, student_id, plan_id, enrollment_date, first_due_date,
		       period_scoped, academic_period_id, status, created_at
		FROM enrollments WHERE id = ?
	`
	enrollments, err := s.queryEnrollments(ctx, query, id)
	if err != nil {
		return billing.Enrollment{}, err
	}
	if len(enrollments) == 0 {
		return billing.Enrollment{}, billing.ErrEnrollmentNotFound
	}
	return enrollments[0], nil
}

func (s *Store) ListEnrollments(ctx context.Context, studentID billing.StudentID) ([]billing.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, student_id, plan_id, enrollment_date, first_due_date,
		       period_scoped, academic_period_id, status, created_at
		FROM enrollments
	`
	if studentID == "" {
		return s.queryEnrollments(ctx, query+" ORDER BY created_at DESC")
	}
	return s.queryEnrollments(ctx, query+" WHERE student_id = ? ORDER BY created_at DESC", studentID)
}

func (s *Store) queryEnrollments(ctx context.Context, query string, args ...any) ([]billing.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []billing.Enrollment
	for rows.Next() {
		var (
			e              billing.Enrollment
			enrollmentDate string
			firstDueDate   string
			academicPeriod sql.NullString
			createdAt      string
		)
		err := rows.Scan(
			&e.ID, &e.StudentID, &e.PlanID, &enrollmentDate, &firstDueDate,
			&e.PeriodScoped, &academicPeriod, &e.Status, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		e.EnrollmentDate, _ = time.Parse(time.RFC3339, enrollmentDate)
		e.FirstDueDate, _ = time.Parse(time.RFC3339, firstDueDate)
		e.AcademicPeriod = billing.AcademicPeriodID(academicPeriod.String)
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

// =============================================================================
// PLANS (billing.Store + billing.PlanStore)
// =============================================================================

func (s *Store) FetchPlan(ctx context.Context, id billing.PlanID) (billing.PaymentPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, kind, subtotal, total, installment_count,
		       period_unit, period_value, final_subtotal, final_total,
		       currency_symbol, created_at
		FROM plans WHERE id = ?
	`
	plans, err := s.queryPlans(ctx, query, id)
	if err != nil {
		return billing.PaymentPlan{}, err
	}
	if len(plans) == 0 {
		return billing.PaymentPlan{}, billing.ErrPlanNotFound
	}
	return plans[0], nil
}

func (s *Store) SavePlan(ctx context.Context, plan billing.PaymentPlan) (billing.PaymentPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if plan.ID == "" {
		plan.ID = billing.PlanID(uuid.NewString())
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT OR REPLACE INTO plans
		(id, name, kind, subtotal, total, installment_count, period_unit,
		 period_value, final_subtotal, final_total, currency_symbol, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		plan.ID,
		plan.Name,
		plan.Kind,
		plan.Subtotal.String(),
		plan.Total.String(),
		plan.InstallmentCount,
		nullString(string(plan.PeriodUnit)),
		plan.PeriodValue,
		nullDecimal(plan.FinalSubtotal),
		nullDecimal(plan.FinalTotal),
		nullString(plan.CurrencySymbol),
		plan.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return billing.PaymentPlan{}, fmt.Errorf("failed to save plan: %w", err)
	}
	return plan, nil
}

func (s *Store) ListPlans(ctx context.Context) ([]billing.PaymentPlan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, kind, subtotal, total, installment_count,
		       period_unit, period_value, final_subtotal, final_total,
		       currency_symbol, created_at
		FROM plans
		ORDER BY created_at ASC
	`
	return s.queryPlans(ctx, query)
}

func (s *Store) queryPlans(ctx context.Context, query string, args ...any) ([]billing.PaymentPlan, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []billing.PaymentPlan
	for rows.Next() {
		var (
			p             billing.PaymentPlan
			subtotal      string
			total         string
			periodUnit    sql.NullString
			finalSubtotal sql.NullString
			finalTotal    sql.NullString
			currency      sql.NullString
			createdAt     string
		)
		err := rows.Scan(
			&p.ID, &p.Name, &p.Kind, &subtotal, &total, &p.InstallmentCount,
			&periodUnit, &p.PeriodValue, &finalSubtotal, &finalTotal,
			&currency, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		p.Subtotal = parseDecimal(subtotal)
		p.Total = parseDecimal(total)
		p.PeriodUnit = billing.PeriodUnit(periodUnit.String)
		if finalSubtotal.Valid {
			d := parseDecimal(finalSubtotal.String)
			p.FinalSubtotal = &d
		}
		if finalTotal.Valid {
			d := parseDecimal(finalTotal.String)
			p.FinalTotal = &d
		}
		p.CurrencySymbol = currency.String
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// =============================================================================
// INSTALLMENTS (billing.Store + billing.OverdueStore)
// =============================================================================

func (s *Store) CreateInstallment(ctx context.Context, draft billing.InstallmentDraft) (billing.Installment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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

	query := `
		INSERT INTO installments
		(id, enrollment_id, sequence, due_date, subtotal, total, status, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		ins.ID,
		ins.EnrollmentID,
		ins.Sequence,
		ins.DueDate.Format(time.RFC3339),
		ins.Subtotal.String(),
		ins.Total.String(),
		ins.Status,
		ins.GeneratedAt.Format(time.RFC3339),
	)
	if err != nil {
		return billing.Installment{}, fmt.Errorf("failed to insert installment %d: %w", ins.Sequence, err)
	}
	return ins, nil
}

func (s *Store) GetInstallment(ctx context.Context, id billing.InstallmentID) (billing.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, enrollment_id, sequence, due_date, subtotal, total, status, generated_at
		FROM installments WHERE id = ?
	`
	installments, err := s.queryInstallments(ctx, query, id)
	if err != nil {
		return billing.Installment{}, err
	}
	if len(installments) == 0 {
		return billing.Installment{}, billing.ErrInstallmentNotFound
	}
	return installments[0], nil
}

func (s *Store) ListInstallments(ctx context.Context, enrollmentID billing.EnrollmentID) ([]billing.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, enrollment_id, sequence, due_date, subtotal, total, status, generated_at
		FROM installments
		WHERE enrollment_id = ?
		ORDER BY sequence ASC
	`
	return s.queryInstallments(ctx, query, enrollmentID)
}

func (s *Store) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE installments SET status = ?
		WHERE status = ? AND due_date < ?
	`, billing.InstallmentOverdue, billing.InstallmentPending, asOf.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue installments: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) queryInstallments(ctx context.Context, query string, args ...any) ([]billing.Installment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	var installments []billing.Installment
	for rows.Next() {
		var (
			ins         billing.Installment
			dueDate     string
			subtotal    string
			total       string
			generatedAt string
		)
		err := rows.Scan(
			&ins.ID, &ins.EnrollmentID, &ins.Sequence, &dueDate,
			&subtotal, &total, &ins.Status, &generatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		ins.DueDate, _ = time.Parse(time.RFC3339, dueDate)
		ins.Subtotal = parseDecimal(subtotal)
		ins.Total = parseDecimal(total)
		ins.GeneratedAt, _ = time.Parse(time.RFC3339, generatedAt)
		installments = append(installments, ins)
	}
	return installments, rows.Err()
}

// =============================================================================
// PAYMENTS (billing.Store)
// =============================================================================

func (s *Store) CreatePayment(ctx context.Context, draft billing.PaymentDraft) (billing.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := billing.Payment{
		ID:            billing.PaymentID(uuid.NewString()),
		InstallmentID: draft.InstallmentID,
		Method:        draft.Method,
		Amount:        draft.Amount,
		AppliedAt:     draft.AppliedAt,
		Reference:     draft.Reference,
		Note:          draft.Note,
	}

	query := `
		INSERT INTO payments
		(id, installment_id, method, amount, applied_at, reference, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.InstallmentID,
		p.Method,
		p.Amount.String(),
		p.AppliedAt.Format(time.RFC3339),
		nullString(p.Reference),
		nullString(p.Note),
	)
	if err != nil {
		return billing.Payment{}, fmt.Errorf("failed to insert payment: %w", err)
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, installmentID billing.InstallmentID) ([]billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, installment_id, method, amount, applied_at, reference, note
		FROM payments
		WHERE installment_id = ?
		ORDER BY applied_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, installmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []billing.Payment
	for rows.Next() {
		var (
			p         billing.Payment
			amount    string
			appliedAt string
			reference sql.NullString
			note      sql.NullString
		)
		err := rows.Scan(&p.ID, &p.InstallmentID, &p.Method, &amount, &appliedAt, &reference, &note)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.Amount = parseDecimal(amount)
		p.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt)
		p.Reference = reference.String
		p.Note = note.String
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
