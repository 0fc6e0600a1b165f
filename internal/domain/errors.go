package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies a routing failure for the caller. The webhook layer
// uses it to decide user-visible messaging; nothing in the core retries.
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeUnsupportedBroker ErrorType = "unsupported_broker"
	ErrorTypeAuth              ErrorType = "auth"
	ErrorTypeNetwork           ErrorType = "network"
	ErrorTypeBrokerRejection   ErrorType = "broker_rejected"
	ErrorTypeUnknown           ErrorType = "unknown"
)

var (
	ErrUnsupportedBroker = errors.New("unsupported broker")
	ErrWebhookNotFound   = errors.New("webhook not found or inactive")
	ErrAccountNotFound   = errors.New("broker account not found or inactive")
	ErrOrderNotFound     = errors.New("order not found")
)

// BrokerError is a classified failure surfaced by a broker adapter or the
// router. Adapters convert every transport and HTTP failure into one of
// these; they never let anything else escape.
type BrokerError struct {
	Type    ErrorType
	Message string
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// NewBrokerError builds a classified broker error.
func NewBrokerError(t ErrorType, format string, args ...interface{}) *BrokerError {
	return &BrokerError{Type: t, Message: fmt.Sprintf(format, args...)}
}

// TypeOf returns the classification of err, or ErrorTypeUnknown when err
// carries no classification.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var be *BrokerError
	if errors.As(err, &be) {
		return be.Type
	}
	if errors.Is(err, ErrUnsupportedBroker) {
		return ErrorTypeUnsupportedBroker
	}
	return ErrorTypeUnknown
}

// FailedResult folds err into the uniform OrderResult failure shape.
func FailedResult(err error) OrderResult {
	return OrderResult{
		Success:   false,
		Error:     err.Error(),
		ErrorType: TypeOf(err),
	}
}
