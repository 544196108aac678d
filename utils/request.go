package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/thedevsaddam/govalidator"
)

// MaxBodyBytes caps request bodies read by DecodeJSONRequest.
const MaxBodyBytes = 64 << 10

// DecodeJSONRequest decodes a single JSON object from the request body into v.
// Unknown fields and trailing data are rejected.
// Usage: var data MyType; if err := DecodeJSONRequest(r, &data); err != nil { ... }
func DecodeJSONRequest(r *http.Request, v interface{}) error {
	defer r.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("error reading body: %w", err)
	}
	if len(raw) > MaxBodyBytes {
		return fmt.Errorf("request body too large")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("request body is empty")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

// ValidationError carries per-field govalidator messages.
type ValidationError struct {
	Errors url.Values
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", v.Fields())
}

// Fields returns the failing field names, sorted.
func (v ValidationError) Fields() []string {
	fields := make([]string, 0, len(v.Errors))
	for f := range v.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// ValidateStruct checks data (a struct pointer) against rules keyed by JSON field name.
func ValidateStruct(data interface{}, rules govalidator.MapData, messages govalidator.MapData) error {
	opts := govalidator.Options{
		Data:     data,
		Rules:    rules,
		Messages: messages,
	}
	if errs := govalidator.New(opts).ValidateStruct(); len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
