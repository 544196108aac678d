package http

import (
	"net/http"

	"exam-portal/auth"
	"exam-portal/http/handlers"
	"exam-portal/http/middleware"
	"exam-portal/metrics"
)

// Deps are the handlers and shared middleware state the routes need.
type Deps struct {
	Payments *handlers.PaymentHandler
	Webhooks *handlers.WebhookHandler
	Admin    *handlers.AdminHandler
	Health   http.HandlerFunc
	Sessions *auth.Sessions
	Limiter  *middleware.RateLimiter
}

// SetupRoutes configures all HTTP routes and middleware
func SetupRoutes(mux *http.ServeMux, d Deps) {
	// Checkout APIs, called from the browser
	mux.HandleFunc("/create-order", public("create_order", d.Limiter, d.Payments.CreateOrder))
	mux.HandleFunc("/verify-payment", public("verify_payment", d.Limiter, d.Payments.VerifyPayment))

	// Gateway callbacks
	mux.HandleFunc("/razorpay-webhook", middleware.Instrument("razorpay_webhook",
		middleware.Methods(d.Webhooks.RazorpayWebhook, http.MethodPost)))

	// Admin console
	admin := middleware.RequireRole(d.Sessions, auth.RoleAdmin)
	mux.HandleFunc("/admin/login", middleware.Instrument("admin_login",
		d.Limiter.Limit(middleware.Methods(d.Admin.Login, http.MethodPost))))
	mux.HandleFunc("/admin/registrations/export", middleware.Instrument("admin_export",
		middleware.Methods(admin(d.Admin.ExportRegistrations), http.MethodGet)))
	mux.HandleFunc("/admin/dlq/messages", middleware.Instrument("admin_dlq_list",
		middleware.Methods(admin(d.Admin.GetDLQMessages), http.MethodGet)))
	mux.HandleFunc("/admin/dlq/messages/resolve", middleware.Instrument("admin_dlq_resolve",
		middleware.Methods(admin(d.Admin.ResolveDLQMessage), http.MethodPost)))
	mux.HandleFunc("/admin/dlq/messages/retry", middleware.Instrument("admin_dlq_retry",
		middleware.Methods(admin(d.Admin.RetryDLQMessage), http.MethodPost)))

	// Operations
	mux.HandleFunc("/healthz", d.Health)
	mux.Handle("/metrics", metrics.Handler())
}

func public(route string, limiter *middleware.RateLimiter, h http.HandlerFunc) http.HandlerFunc {
	return middleware.Instrument(route,
		middleware.EnableCORS(limiter.Limit(middleware.Methods(h, http.MethodPost))))
}
