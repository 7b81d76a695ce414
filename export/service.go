package export

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/campora/enrollment-engine/billing"
)

// Notifier receives export lifecycle events. ws.Hub satisfies it; a nil
// notifier is tolerated everywhere.
type Notifier interface {
	NotifyExportProgress(channel, exportID string, progress float64, stage string)
	NotifyExportComplete(channel, exportID, url, fileName string)
	NotifyExportFailed(channel, exportID, reason string)
}

// Filter narrows which schedules land in the workbook. Zero value means
// every enrollment in the store.
type Filter struct {
	StudentID      billing.StudentID
	AcademicPeriod billing.AcademicPeriodID
}

type scheduleRow struct {
	enrollment  billing.Enrollment
	installment billing.Installment
}

type column struct {
	Header string
	Value  func(r scheduleRow) any
}

var scheduleColumns = []column{
	{Header: "Enrollment", Value: func(r scheduleRow) any { return string(r.enrollment.ID) }},
	{Header: "Student", Value: func(r scheduleRow) any { return string(r.enrollment.StudentID) }},
	{Header: "Academic Period", Value: func(r scheduleRow) any { return string(r.enrollment.AcademicPeriod) }},
	{Header: "Installment #", Value: func(r scheduleRow) any { return r.installment.Sequence }},
	{Header: "Due Date", Value: func(r scheduleRow) any { return r.installment.DueDate.Format("2006-01-02") }},
	{Header: "Subtotal", Value: func(r scheduleRow) any { return r.installment.Subtotal.String() }},
	{Header: "Total", Value: func(r scheduleRow) any { return r.installment.Total.String() }},
	{Header: "Status", Value: func(r scheduleRow) any { return string(r.installment.Status) }},
}

const maxRowsForExport = 100_000

// Service runs schedule exports: snapshot the matching installments, write
// them to an XLSX workbook, upload it, and publish a presigned link.
type Service struct {
	store     billing.Store
	statuses  *StatusStore
	uploader  *Uploader
	notifier  Notifier
	urlExpiry time.Duration
}

func NewService(store billing.Store, statuses *StatusStore, uploader *Uploader, notifier Notifier, urlExpiry time.Duration) *Service {
	if urlExpiry <= 0 {
		urlExpiry = 24 * time.Hour
	}
	return &Service{store: store, statuses: statuses, uploader: uploader, notifier: notifier, urlExpiry: urlExpiry}
}

// Start registers the job and kicks off generation in the background. The
// owner string doubles as the websocket channel for progress events.
func (s *Service) Start(ctx context.Context, f Filter, owner string) (string, error) {
	rows, err := s.collectRows(ctx, f)
	if err != nil {
		return "", err
	}
	if len(rows) > maxRowsForExport {
		return "", fmt.Errorf("export: too many installments to export (over %d rows)", maxRowsForExport)
	}

	exportID := fmt.Sprintf("exports:%s", uuid.NewString())
	status := &Status{
		Key:      exportID,
		Type:     "schedules",
		Owner:    owner,
		Filters:  filtersMap(f),
		Progress: 0,
		Stage:    "queued",
		Created:  time.Now(),
	}
	if err := s.statuses.Save(ctx, status); err != nil {
		return "", err
	}

	go s.run(context.Background(), status, rows, owner)

	return exportID, nil
}

func (s *Service) GetStatus(ctx context.Context, exportID string) (*Status, error) {
	return s.statuses.Get(ctx, exportID)
}

func (s *Service) ListStatuses(ctx context.Context, owner string) ([]*Status, error) {
	return s.statuses.List(ctx, owner)
}

func (s *Service) collectRows(ctx context.Context, f Filter) ([]scheduleRow, error) {
	// FindEnrollments matches period-scoped records only, so a student-only
	// filter would come back empty. List by student and narrow here instead.
	enrollments, err := s.store.ListEnrollments(ctx, f.StudentID)
	if err != nil {
		return nil, fmt.Errorf("export: load enrollments: %w", err)
	}

	var rows []scheduleRow
	for _, e := range enrollments {
		if f.AcademicPeriod != "" && e.AcademicPeriod != f.AcademicPeriod {
			continue
		}
		installments, err := s.store.ListInstallments(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("export: load installments for %s: %w", e.ID, err)
		}
		for _, ins := range installments {
			rows = append(rows, scheduleRow{enrollment: e, installment: ins})
		}
	}
	return rows, nil
}

func (s *Service) run(ctx context.Context, status *Status, rows []scheduleRow, owner string) {
	f := excelize.NewFile()
	sheet := "Schedules"
	f.SetSheetName(f.GetSheetName(0), sheet)
	_ = f.SetDocProps(&excelize.DocProperties{Creator: owner})

	for i, col := range scheduleColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}

	total := len(rows)
	const chunkSize = 500
	for i, row := range rows {
		for colIdx, col := range scheduleColumns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, i+2)
			_ = f.SetCellValue(sheet, cell, col.Value(row))
		}

		if (i+1)%chunkSize == 0 || i == total-1 {
			progress := math.Round(float64(i+1) / float64(total) * 100.0)
			// Hold at 95 until the upload finishes.
			if progress >= 100 {
				progress = 95
			}
			s.tick(ctx, status, progress, "generating", owner)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.fail(ctx, status, fmt.Sprintf("write workbook: %v", err), owner)
		return
	}

	fileName := fmt.Sprintf("schedules_%s.xlsx", time.Now().Format("20060102_150405"))
	s.tick(ctx, status, 95, "uploading", owner)

	key, err := s.uploader.UploadXLSX(ctx, fileName, buf.Bytes())
	if err != nil {
		s.fail(ctx, status, fmt.Sprintf("upload failed: %v", err), owner)
		return
	}

	url, err := s.uploader.PresignedURL(ctx, key, s.urlExpiry)
	if err != nil {
		s.fail(ctx, status, fmt.Sprintf("presign failed: %v", err), owner)
		return
	}

	status.FileURL = &url
	status.FileName = fileName
	status.Progress = 100
	status.Stage = "ready"
	_ = s.statuses.Save(ctx, status)
	if s.notifier != nil {
		s.notifier.NotifyExportComplete(owner, status.Key, url, fileName)
	}
}

func (s *Service) tick(ctx context.Context, status *Status, progress float64, stage, owner string) {
	status.Progress = progress
	status.Stage = stage
	_ = s.statuses.Save(ctx, status)
	if s.notifier != nil {
		s.notifier.NotifyExportProgress(owner, status.Key, progress, stage)
	}
}

func (s *Service) fail(ctx context.Context, status *Status, reason, owner string) {
	log.Printf("export %s: %s", status.Key, reason)
	status.Error = &reason
	status.Progress = 100
	status.Stage = "failed"
	_ = s.statuses.Save(ctx, status)
	if s.notifier != nil {
		s.notifier.NotifyExportFailed(owner, status.Key, reason)
	}
}

func filtersMap(f Filter) map[string]interface{} {
	m := map[string]interface{}{}
	if f.StudentID != "" {
		m["student_id"] = string(f.StudentID)
	}
	if f.AcademicPeriod != "" {
		m["academic_period"] = string(f.AcademicPeriod)
	}
	return m
}
