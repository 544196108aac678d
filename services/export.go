package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"exam-portal/models"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Registrations"

var exportHeaders = []string{
	"Registration ID", "Student Name", "Email", "Phone", "School", "Class", "Gender",
	"Fee", "Payment Status", "Paid", "Order ID", "Payment ID", "Paid At", "Created At",
}

// RegistrationLister lists registrations for exports.
type RegistrationLister interface {
	ListRegistrations(ctx context.Context, f models.RegistrationFilter) ([]models.Registration, error)
}

// ExportRegistrations writes the matching registrations to an xlsx workbook.
func ExportRegistrations(ctx context.Context, lister RegistrationLister, filter models.RegistrationFilter) ([]byte, int, error) {
	regs, err := lister.ListRegistrations(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, 0, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, 0, fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range regs {
		row := []interface{}{
			r.ID, r.StudentName, r.Email, r.Phone, r.SchoolName, r.Class, r.Gender,
			ResolveFee(r.Fees, r.Gender), string(r.PaymentStatus), r.IsPaid,
			r.RazorpayOrderID, r.RazorpayPaymentID, formatTime(r.PaidAt), formatTime(&r.CreatedAt),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, 0, err
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, 0, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), len(regs), nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
