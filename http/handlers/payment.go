package handlers

import (
	"context"
	"net/http"

	apperrors "exam-portal/errors"
	"exam-portal/http/response"
	"exam-portal/logger"
	"exam-portal/models"
	"exam-portal/services"
	"exam-portal/utils"

	"github.com/thedevsaddam/govalidator"
)

const codeInvalidBody = "invalid_body"

var verifyRules = govalidator.MapData{
	"registrationId":      []string{"required", "max:128"},
	"razorpay_order_id":   []string{"required", "max:128"},
	"razorpay_payment_id": []string{"required", "max:128"},
	"razorpay_signature":  []string{"required", "max:256"},
}

var createOrderRules = govalidator.MapData{
	"registrationId": []string{"required", "max:128"},
}

// PaymentService is the subset of services.PaymentService used by the handlers.
type PaymentService interface {
	CreateOrder(ctx context.Context, registrationID string) (*models.OrderResult, error)
	VerifyPayment(ctx context.Context, req models.VerifyPaymentRequest) (*services.VerifyResult, error)
}

// PaymentHandler serves checkout order creation and signature verification.
type PaymentHandler struct {
	svc PaymentService
}

func NewPaymentHandler(svc PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// CreateOrder opens a gateway order for a registration
// POST /create-order {registrationId}
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		logger.Warn("[PAYMENT] create-order rejected: %v", err)
		response.Fail(w, http.StatusBadRequest, codeInvalidBody, map[string]interface{}{"detail": err.Error()})
		return
	}

	if err := utils.ValidateStruct(&req, createOrderRules, nil); err != nil {
		response.Fail(w, http.StatusBadRequest, services.CodeMissingRegistrationID, nil)
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), req.RegistrationID)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, http.StatusOK, map[string]interface{}{
		"key_id":   result.KeyID,
		"order_id": result.OrderID,
		"amount":   result.Amount,
		"currency": result.Currency,
	})
}

// VerifyPayment checks the checkout signature and records the outcome
// POST /verify-payment {registrationId, razorpay_order_id, razorpay_payment_id, razorpay_signature}
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyPaymentRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		logger.Warn("[PAYMENT] verify-payment rejected: %v", err)
		response.Fail(w, http.StatusBadRequest, codeInvalidBody, map[string]interface{}{"detail": err.Error()})
		return
	}

	missing := services.MissingVerifyFields(req)
	if len(missing) > 0 {
		response.Fail(w, http.StatusBadRequest, services.CodeMissingFields, map[string]interface{}{
			"body":    req,
			"missing": missing,
		})
		return
	}
	if err := utils.ValidateStruct(&req, verifyRules, nil); err != nil {
		fields := []string{}
		if verr, ok := err.(utils.ValidationError); ok {
			fields = verr.Fields()
		}
		response.Fail(w, http.StatusBadRequest, codeInvalidBody, map[string]interface{}{"fields": fields})
		return
	}

	result, err := h.svc.VerifyPayment(r.Context(), req)
	if err != nil {
		if apperrors.CodeOf(err) == services.CodeMissingFields {
			response.Fail(w, http.StatusBadRequest, services.CodeMissingFields, map[string]interface{}{
				"body":    req,
				"missing": apperrors.DetailOf(err),
			})
			return
		}
		response.Error(w, err)
		return
	}

	if !result.Authentic {
		response.Fail(w, http.StatusBadRequest, services.CodeSignatureMismatch, map[string]interface{}{
			"debug": result.Debug,
		})
		return
	}

	response.OK(w, http.StatusOK, nil)
}
