package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind discriminates backend failure classes so callers branch on a
// decoded type instead of re-inspecting response bodies.
type ErrorKind string

const (
	ErrUnauthorized        ErrorKind = "unauthorized"
	ErrNotFound            ErrorKind = "not_found"
	ErrInsufficientBalance ErrorKind = "insufficient_balance"
	ErrQuotaExceeded       ErrorKind = "quota_exceeded"
	ErrValidation          ErrorKind = "validation"
)

// Error is a classified backend error, decoded once at the HTTP boundary.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string

	// Set when Kind == ErrInsufficientBalance.
	RequiredPoints int
	CurrentPoints  int

	// Set when Kind == ErrQuotaExceeded.
	DailyLimit int
	UsedUnits  int
	CostUnits  int
	UsageDate  string
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrInsufficientBalance:
		return fmt.Sprintf("insufficient balance: %d points required, current balance %d", e.RequiredPoints, e.CurrentPoints)
	case ErrQuotaExceeded:
		return fmt.Sprintf("daily quota exceeded: %d/%d units used, task costs %d, resets after %s", e.UsedUnits, e.DailyLimit, e.CostUnits, e.UsageDate)
	case ErrUnauthorized:
		if e.Message != "" {
			return e.Message
		}
		return "not authenticated"
	case ErrNotFound:
		if e.Message != "" {
			return e.Message
		}
		return "not found"
	default:
		if e.Message != "" {
			return e.Message
		}
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
}

// errorBody is the backend's error envelope. "error" may be a bare string or
// a structured object; quota and balance payloads ride alongside it.
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`

	RequiredPoints *int `json:"requiredPoints"`
	CurrentPoints  *int `json:"currentPoints"`

	DailyLimit *int   `json:"dailyLimit"`
	UsedUnits  *int   `json:"usedUnits"`
	CostUnits  *int   `json:"costUnits"`
	UsageDate  string `json:"usageDate"`
}

// decodeError classifies a non-2xx response. It never fails: an unparseable
// body degrades to a generic validation error carrying the raw text.
func decodeError(status int, body []byte) *Error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	apiErr := &Error{StatusCode: status, Message: displayMessage(eb, body)}

	switch {
	case status == 401:
		apiErr.Kind = ErrUnauthorized
	case status == 404:
		apiErr.Kind = ErrNotFound
	case status == 403 && eb.RequiredPoints != nil:
		apiErr.Kind = ErrInsufficientBalance
		apiErr.RequiredPoints = *eb.RequiredPoints
		if eb.CurrentPoints != nil {
			apiErr.CurrentPoints = *eb.CurrentPoints
		}
	case status == 429 && eb.DailyLimit != nil:
		apiErr.Kind = ErrQuotaExceeded
		apiErr.DailyLimit = *eb.DailyLimit
		if eb.UsedUnits != nil {
			apiErr.UsedUnits = *eb.UsedUnits
		}
		if eb.CostUnits != nil {
			apiErr.CostUnits = *eb.CostUnits
		}
		apiErr.UsageDate = eb.UsageDate
	default:
		apiErr.Kind = ErrValidation
	}

	return apiErr
}

// displayMessage renders `error ?? message`, serializing a structured error
// value to its JSON text for display.
func displayMessage(eb errorBody, raw []byte) string {
	if len(eb.Error) > 0 {
		var s string
		if err := json.Unmarshal(eb.Error, &s); err == nil {
			return s
		}
		return string(eb.Error)
	}
	if eb.Message != "" {
		return eb.Message
	}
	return string(raw)
}

// IsUnauthorized reports whether err is a backend 401.
func IsUnauthorized(err error) bool {
	return isKind(err, ErrUnauthorized)
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	return isKind(err, ErrNotFound)
}

func isKind(err error, kind ErrorKind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
