package services

import (
	"context"
	"fmt"
	"html"

	"exam-portal/logger"
	"exam-portal/models"
	"exam-portal/utils"
)

// ReceiptNotifier emails a PDF receipt once a payment is verified.
type ReceiptNotifier struct {
	store  RegistrationStore
	mailer Mailer
}

func NewReceiptNotifier(store RegistrationStore, mailer Mailer) *ReceiptNotifier {
	return &ReceiptNotifier{store: store, mailer: mailer}
}

// HandlePaymentVerified is the consumer handler for payment.verified events.
func (n *ReceiptNotifier) HandlePaymentVerified(ctx context.Context, evt models.PaymentEvent) error {
	reg, err := n.store.GetRegistration(ctx, evt.RegistrationID)
	if err != nil {
		return fmt.Errorf("error loading registration %s: %w", evt.RegistrationID, err)
	}
	if !reg.IsPaid {
		logger.Warn("[EMAIL] Registration %s not paid - skipping receipt", reg.ID)
		return nil
	}
	if err := utils.ValidateEmail(reg.Email); err != nil {
		logger.Warn("[EMAIL] Registration %s: %v - skipping receipt", reg.ID, err)
		return nil
	}

	pdf, err := RenderReceipt(*reg, evt)
	if err != nil {
		return err
	}

	subject := "Payment received - exam registration " + reg.ID
	attachment := Attachment{Name: fmt.Sprintf("receipt_%s.pdf", reg.ID), Data: pdf}
	if err := n.mailer.Send(reg.Email, subject, receiptBody(reg), attachment); err != nil {
		return err
	}

	logger.Info("[EMAIL] Receipt sent for registration %s", reg.ID)
	return nil
}

func receiptBody(reg *models.Registration) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
    <p>Dear <strong>%s</strong>,</p>
    <p>We have received your exam registration fee. Your registration ID is <strong>%s</strong>.</p>
    <p>The payment receipt is attached to this email.</p>
    <p>Best regards,<br>Exam Registration Team</p>
</body>
</html>`, html.EscapeString(reg.StudentName), html.EscapeString(reg.ID))
}
