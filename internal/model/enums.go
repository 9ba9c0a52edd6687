// Package model defines the immutable value types shared across the order
// adapter: ingress requests, processed orders, execution reports, and
// option instruments.
package model

import "strings"

// Side is the buy/sell direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// FIXCode returns the FIX 4.4 tag 54 value for the side.
func (s Side) FIXCode() string {
	if s == SideBuy {
		return "1"
	}
	return "2"
}

// ParseSide normalizes a case-insensitive side string.
func ParseSide(raw string) (Side, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(SideBuy):
		return SideBuy, true
	case string(SideSell):
		return SideSell, true
	default:
		return "", false
	}
}

// OrderType is the requested order style.
type OrderType string

const (
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

// FIXCode returns the FIX 4.4 tag 40 value for the order type.
func (t OrderType) FIXCode() string {
	switch t {
	case OrderTypeMarket:
		return "1"
	case OrderTypeLimit:
		return "2"
	case OrderTypeStop:
		return "3"
	case OrderTypeStopLimit:
		return "4"
	default:
		return ""
	}
}

func ParseOrderType(raw string) (OrderType, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(OrderTypeMarket):
		return OrderTypeMarket, true
	case string(OrderTypeLimit):
		return OrderTypeLimit, true
	case string(OrderTypeStop):
		return OrderTypeStop, true
	case string(OrderTypeStopLimit):
		return OrderTypeStopLimit, true
	default:
		return "", false
	}
}

// TimeInForce controls order duration semantics.
type TimeInForce string

const (
	TimeInForceDay TimeInForce = "DAY"
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
	TimeInForceFOK TimeInForce = "FOK"
	TimeInForceGTD TimeInForce = "GTD"
)

// FIXCode returns the FIX 4.4 tag 59 value for the time in force.
func (t TimeInForce) FIXCode() string {
	switch t {
	case TimeInForceDay:
		return "0"
	case TimeInForceGTC:
		return "1"
	case TimeInForceIOC:
		return "3"
	case TimeInForceFOK:
		return "4"
	case TimeInForceGTD:
		return "6"
	default:
		return ""
	}
}

func ParseTimeInForce(raw string) (TimeInForce, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(TimeInForceDay):
		return TimeInForceDay, true
	case string(TimeInForceGTC):
		return TimeInForceGTC, true
	case string(TimeInForceIOC):
		return TimeInForceIOC, true
	case string(TimeInForceFOK):
		return TimeInForceFOK, true
	case string(TimeInForceGTD):
		return TimeInForceGTD, true
	default:
		return "", false
	}
}

// OptionType distinguishes calls from puts.
type OptionType string

const (
	OptionTypeCall OptionType = "CALL"
	OptionTypePut  OptionType = "PUT"
)

// FIXCode returns the FIX 4.4 tag 201 value (0=PUT, 1=CALL).
func (t OptionType) FIXCode() string {
	if t == OptionTypeCall {
		return "1"
	}
	return "0"
}

func ParseOptionType(raw string) (OptionType, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(OptionTypeCall):
		return OptionTypeCall, true
	case string(OptionTypePut):
		return OptionTypePut, true
	default:
		return "", false
	}
}

// OrderStatus is the FIX 4.4 lifecycle status of a processed order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// Terminal reports whether the status accepts no further mutation (§3).
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// ExecType is the FIX 4.4 tag 150 execution-report reason.
type ExecType string

const (
	ExecTypeNew         ExecType = "NEW"
	ExecTypePartialFill ExecType = "PARTIAL_FILL"
	ExecTypeFill        ExecType = "FILL"
	ExecTypeCanceled    ExecType = "CANCELED"
	ExecTypeRejected    ExecType = "REJECTED"
	ExecTypeExpired     ExecType = "EXPIRED"
)

// OrderStatusFromExecType maps an inbound ExecType to the ProcessedOrder
// status it drives (§4.8).
func OrderStatusFromExecType(t ExecType) (OrderStatus, bool) {
	switch t {
	case ExecTypeNew:
		return OrderStatusNew, true
	case ExecTypePartialFill:
		return OrderStatusPartiallyFilled, true
	case ExecTypeFill:
		return OrderStatusFilled, true
	case ExecTypeCanceled:
		return OrderStatusCanceled, true
	case ExecTypeRejected:
		return OrderStatusRejected, true
	case ExecTypeExpired:
		return OrderStatusExpired, true
	default:
		return "", false
	}
}
