package models

// AdminLoginRequest is the body of POST /admin/login.
type AdminLoginRequest struct {
	Username string `json:"username" valid:"required"`
	Password string `json:"password" valid:"required"`
}

// ResolveDLQRequest is the optional body of POST /admin/dlq/messages/resolve.
type ResolveDLQRequest struct {
	Notes string `json:"notes"`
}
