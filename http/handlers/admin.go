package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"exam-portal/auth"
	apperrors "exam-portal/errors"
	"exam-portal/http/response"
	"exam-portal/logger"
	"exam-portal/models"
	"exam-portal/services"
	"exam-portal/utils"

	"github.com/thedevsaddam/govalidator"
)

var loginRules = govalidator.MapData{
	"username": []string{"required", "max:128"},
	"password": []string{"required", "max:256"},
}

// DLQStore reads and resolves dead-lettered messages.
type DLQStore interface {
	GetDLQMessages(ctx context.Context, limit int) ([]models.DLQMessage, error)
	GetDLQMessage(ctx context.Context, messageID string) (*models.DLQMessage, error)
	ResolveDLQMessage(ctx context.Context, messageID, notes string) error
}

// Republisher re-sends a raw payload to the payments topic.
type Republisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// AdminHandler serves the session-protected admin console.
type AdminHandler struct {
	sessions      *auth.Sessions
	username      string
	password      string
	registrations services.RegistrationLister
	dlq           DLQStore
	republisher   Republisher
}

func NewAdminHandler(sessions *auth.Sessions, username, password string, registrations services.RegistrationLister, dlq DLQStore, republisher Republisher) *AdminHandler {
	return &AdminHandler{
		sessions:      sessions,
		username:      username,
		password:      password,
		registrations: registrations,
		dlq:           dlq,
		republisher:   republisher,
	}
}

// Login issues an admin session token
// POST /admin/login {username, password}
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.AdminLoginRequest
	if err := utils.DecodeJSONRequest(r, &req); err != nil {
		response.Fail(w, http.StatusBadRequest, codeInvalidBody, map[string]interface{}{"detail": err.Error()})
		return
	}
	if err := utils.ValidateStruct(&req, loginRules, nil); err != nil {
		response.Fail(w, http.StatusBadRequest, services.CodeMissingFields, nil)
		return
	}

	if !auth.CheckCredentials(h.username, h.password, req.Username, req.Password) {
		logger.Warn("[AUTH] Failed admin login for %q", req.Username)
		response.Fail(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}

	token, expiresAt, err := h.sessions.Issue(req.Username, auth.RoleAdmin)
	if err != nil {
		logger.Error("[AUTH] Error issuing session for %s: %v", req.Username, err)
		response.Error(w, apperrors.WithCode(apperrors.NewInternalServerError("error issuing session"), services.CodeUnexpected))
		return
	}

	logger.Info("[AUTH] Admin %s logged in", req.Username)
	response.OK(w, http.StatusOK, map[string]interface{}{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

// ExportRegistrations streams an xlsx export
// GET /admin/registrations/export?created_after=&created_before=&status=
func (h *AdminHandler) ExportRegistrations(w http.ResponseWriter, r *http.Request) {
	filters, err := utils.ParseTimeFilters(r)
	if err != nil {
		response.Fail(w, http.StatusBadRequest, "invalid_filter", map[string]interface{}{"detail": err.Error()})
		return
	}

	filter := models.RegistrationFilter{
		CreatedAfter:  filters.CreatedAfter,
		CreatedBefore: filters.CreatedBefore,
	}
	switch status := models.PaymentStatus(strings.ToLower(r.URL.Query().Get("status"))); status {
	case models.PaymentStatusNone, models.PaymentStatusCreated, models.PaymentStatusPaid, models.PaymentStatusFailed:
		filter.Status = status
	default:
		response.Fail(w, http.StatusBadRequest, "invalid_filter", map[string]interface{}{"detail": "status must be created, paid or failed"})
		return
	}

	data, count, err := services.ExportRegistrations(r.Context(), h.registrations, filter)
	if err != nil {
		logger.Error("Error exporting registrations: %v", err)
		response.Error(w, apperrors.WithCode(err, services.CodeUnexpected))
		return
	}

	logger.Info("[ADMIN] Exported %d registrations", count)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="registrations_%s.xlsx"`, time.Now().UTC().Format("20060102")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GetDLQMessages retrieves unresolved DLQ messages
// GET /admin/dlq/messages?limit=50
func (h *AdminHandler) GetDLQMessages(w http.ResponseWriter, r *http.Request) {
	limit := utils.ParseLimit(r, 50, 500)

	messages, err := h.dlq.GetDLQMessages(r.Context(), limit)
	if err != nil {
		logger.Error("Error fetching DLQ messages: %v", err)
		response.Error(w, apperrors.WithCode(err, services.CodeUnexpected))
		return
	}
	if messages == nil {
		messages = []models.DLQMessage{}
	}

	response.OK(w, http.StatusOK, map[string]interface{}{
		"count":    len(messages),
		"messages": messages,
	})
}

// ResolveDLQMessage marks a DLQ message as resolved
// POST /admin/dlq/messages/resolve?id=
func (h *AdminHandler) ResolveDLQMessage(w http.ResponseWriter, r *http.Request) {
	messageID := r.URL.Query().Get("id")
	if messageID == "" {
		response.Fail(w, http.StatusBadRequest, "missing_id", nil)
		return
	}

	req := models.ResolveDLQRequest{Notes: "Manually resolved"}
	if r.ContentLength > 0 {
		if err := utils.DecodeJSONRequest(r, &req); err != nil {
			response.Fail(w, http.StatusBadRequest, codeInvalidBody, map[string]interface{}{"detail": err.Error()})
			return
		}
	}

	if err := h.dlq.ResolveDLQMessage(r.Context(), messageID, req.Notes); err != nil {
		logger.Error("Error resolving DLQ message %s: %v", messageID, err)
		response.Error(w, dlqError(err))
		return
	}

	logger.Info("[ADMIN] DLQ message %s marked as resolved", messageID)
	response.OK(w, http.StatusOK, map[string]interface{}{"message_id": messageID})
}

// RetryDLQMessage republishes a DLQ message and resolves it on success
// POST /admin/dlq/messages/retry?id=
func (h *AdminHandler) RetryDLQMessage(w http.ResponseWriter, r *http.Request) {
	messageID := r.URL.Query().Get("id")
	if messageID == "" {
		response.Fail(w, http.StatusBadRequest, "missing_id", nil)
		return
	}
	if h.republisher == nil {
		response.Fail(w, http.StatusConflict, "kafka_disabled", nil)
		return
	}

	msg, err := h.dlq.GetDLQMessage(r.Context(), messageID)
	if err != nil {
		response.Error(w, dlqError(err))
		return
	}
	if msg.ResolvedAt != nil {
		response.Fail(w, http.StatusConflict, "already_resolved", nil)
		return
	}

	if err := h.republisher.Publish(r.Context(), msg.Key, []byte(msg.Value)); err != nil {
		logger.Error("Error retrying DLQ message %s: %v", messageID, err)
		response.Fail(w, http.StatusBadGateway, "retry_failed", map[string]interface{}{"detail": err.Error()})
		return
	}

	if err := h.dlq.ResolveDLQMessage(r.Context(), messageID, "Manually retried successfully"); err != nil {
		response.Error(w, dlqError(err))
		return
	}

	logger.Info("[ADMIN] DLQ message %s republished", messageID)
	response.OK(w, http.StatusOK, map[string]interface{}{"message_id": messageID})
}

func dlqError(err error) error {
	if apperrors.KindOf(err) == apperrors.NotFound {
		return apperrors.WithCode(err, "dlq_message_not_found")
	}
	return apperrors.WithCode(err, services.CodeUnexpected)
}
