// Package apperrors defines the typed error taxonomy of §7: each kind maps
// a distilled exception class from the original source to a Go error type
// callers can match on with errors.As, rather than switching on message
// text.
package apperrors

import "fmt"

// ValidationError names the first §4.1 rule an OrderRequest failed.
type ValidationError struct {
	Rule   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Rule, e.Detail)
}

func NewValidationError(rule, detail string) *ValidationError {
	return &ValidationError{Rule: rule, Detail: detail}
}

// InstrumentError signals an instrument that cannot be resolved or traded.
type InstrumentError struct {
	Symbol string
	Detail string
}

func (e *InstrumentError) Error() string {
	return fmt.Sprintf("instrument error (%s): %s", e.Symbol, e.Detail)
}

func NewInstrumentError(symbol, detail string) *InstrumentError {
	return &InstrumentError{Symbol: symbol, Detail: detail}
}

// RiskReason is the sub-reason code carried by a RiskError (§4.4).
type RiskReason string

const (
	RiskReasonOrderSize    RiskReason = "order_size"
	RiskReasonDailyVolume  RiskReason = "daily_volume"
	RiskReasonPosition     RiskReason = "position"
	RiskReasonRate         RiskReason = "rate"
	RiskReasonOptionExpiry RiskReason = "option_expiry"
)

// RiskError is a pre-trade check failure (§4.4, §7).
type RiskError struct {
	Reason RiskReason
	Detail string
}

func (e *RiskError) Error() string {
	return fmt.Sprintf("risk check failed (%s): %s", e.Reason, e.Detail)
}

func NewRiskError(reason RiskReason, detail string) *RiskError {
	return &RiskError{Reason: reason, Detail: detail}
}

// ProcessingError is the catch-all for internal pipeline-composition
// failures that are not validation, instrument, or risk failures.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing error at %s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

func NewProcessingError(stage string, err error) *ProcessingError {
	return &ProcessingError{Stage: stage, Err: err}
}

// CodecError is a malformed inbound FIX message or an encoding failure.
type CodecError struct {
	Detail string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("FIX codec error: %s", e.Detail)
}

func NewCodecError(detail string) *CodecError {
	return &CodecError{Detail: detail}
}

// SessionError is a session-state violation forcing reconnect (§6/§7).
type SessionError struct {
	Detail string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("FIX session error: %s", e.Detail)
}

func NewSessionError(detail string) *SessionError {
	return &SessionError{Detail: detail}
}

// ConnectionError is raised when a send is attempted while the session is
// not ACTIVE (§4.8).
type ConnectionError struct {
	State string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: session is %s, not ACTIVE", e.State)
}

func NewConnectionError(state string) *ConnectionError {
	return &ConnectionError{State: state}
}
