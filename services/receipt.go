package services

import (
	"bytes"
	"fmt"
	"time"

	"exam-portal/models"

	"github.com/jung-kurt/gofpdf"
)

// RenderReceipt creates a one-page PDF payment receipt.
func RenderReceipt(reg models.Registration, evt models.PaymentEvent) ([]byte, error) {
	paidAt := evt.Timestamp
	if reg.PaidAt != nil {
		paidAt = *reg.PaidAt
	}
	amount := evt.Amount
	if amount == 0 {
		amount = ToMinorUnits(ResolveFee(reg.Fees, reg.Gender))
	}
	currency := evt.Currency
	if currency == "" {
		currency = "INR"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payment Receipt", false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Exam Registration - Payment Receipt")
	pdf.Ln(16)

	pdf.SetFont("Arial", "", 12)
	rows := [][2]string{
		{"Registration ID", reg.ID},
		{"Student", reg.StudentName},
		{"School", reg.SchoolName},
		{"Class", reg.Class},
		{"Order ID", firstNonEmpty(reg.RazorpayOrderID, evt.OrderID)},
		{"Payment ID", firstNonEmpty(reg.RazorpayPaymentID, evt.PaymentID)},
		{"Amount", fmt.Sprintf("%s %d.%02d", currency, amount/100, amount%100)},
		{"Paid at", paidAt.UTC().Format(time.RFC1123)},
	}
	for _, r := range rows {
		pdf.CellFormat(50, 9, r[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(120, 9, r[1], "1", 1, "L", false, 0, "")
	}

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 10)
	pdf.Cell(40, 8, "This is a system generated receipt.")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("error generating receipt PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
