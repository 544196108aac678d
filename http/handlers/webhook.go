package handlers

import (
	"io"
	"net/http"

	"exam-portal/http/response"
	"exam-portal/services"
	"exam-portal/utils"
)

// WebhookHandler receives gateway webhook deliveries.
type WebhookHandler struct {
	svc *services.WebhookService
}

func NewWebhookHandler(svc *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

// RazorpayWebhook handles incoming Razorpay webhooks
// POST /razorpay-webhook
func (h *WebhookHandler) RazorpayWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, utils.MaxBodyBytes))
	if err != nil {
		response.Fail(w, http.StatusBadRequest, codeInvalidBody, nil)
		return
	}

	result, err := h.svc.Handle(r.Context(), body, r.Header.Get("X-Razorpay-Signature"))
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, http.StatusOK, map[string]interface{}{
		"status":          result.Status,
		"event":           result.Event,
		"registration_id": result.RegistrationID,
	})
}
