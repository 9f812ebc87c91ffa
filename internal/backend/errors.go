package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is a normalized non-2xx backend response.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend %d: %s", e.Status, e.Message)
}

// CodeEmailExists is sent when a guest order uses the email of an existing account.
const CodeEmailExists = "EMAIL_EXISTS"

func parseError(status int, body []byte) *Error {
	e := &Error{Status: status}

	var payload struct {
		Code    string          `json:"code"`
		Error   string          `json:"error"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}

	e.Code = payload.Code
	e.Message = rawMessage(payload.Message)
	if e.Message == "" {
		e.Message = payload.Error
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// rawMessage flattens string and []string messages.
func rawMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return string(raw)
}

func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func hasStatus(err error, status int) bool {
	be, ok := AsError(err)
	return ok && be.Status == status
}

func IsNotFound(err error) bool     { return hasStatus(err, http.StatusNotFound) }
func IsConflict(err error) bool     { return hasStatus(err, http.StatusConflict) }
func IsUnauthorized(err error) bool { return hasStatus(err, http.StatusUnauthorized) }

// IsEmailExists reports the existing-account conflict of guest order creation.
func IsEmailExists(err error) bool {
	be, ok := AsError(err)
	if !ok {
		return false
	}
	if be.Code == CodeEmailExists {
		return true
	}
	return be.Status == http.StatusConflict && strings.Contains(strings.ToLower(be.Message), "email")
}
