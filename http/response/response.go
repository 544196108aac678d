package response

import (
	"encoding/json"
	"net/http"

	apperrors "exam-portal/errors"
	"exam-portal/logger"
)

// OK sends {ok:true, ...fields} with the given status.
func OK(w http.ResponseWriter, statusCode int, fields map[string]interface{}) {
	body := map[string]interface{}{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	SendJSON(w, statusCode, body)
}

// Fail sends {ok:false, error:code, ...fields}.
func Fail(w http.ResponseWriter, statusCode int, code string, fields map[string]interface{}) {
	body := map[string]interface{}{"ok": false, "error": code}
	for k, v := range fields {
		body[k] = v
	}
	SendJSON(w, statusCode, body)
}

// Error converts err into the error envelope. The error's Detail is sent as
// "detail" for client errors and persistence failures only.
func Error(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	var fields map[string]interface{}
	detail := apperrors.DetailOf(err)
	if detail != nil && (status < http.StatusInternalServerError || apperrors.KindOf(err) == apperrors.Persistence) {
		fields = map[string]interface{}{"detail": detail}
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed: %v", err)
	}
	Fail(w, status, apperrors.CodeOf(err), fields)
}

// SendJSON encodes and sends a JSON response
func SendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
