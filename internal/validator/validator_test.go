package validator

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rtxfix/orderadapter/internal/apperrors"
	"github.com/rtxfix/orderadapter/internal/model"
)

func validBaseRequest() model.OrderRequest {
	return model.OrderRequest{
		OrderID:     "ORD-1",
		Symbol:      "AAPL",
		Side:        "BUY",
		Quantity:    100,
		OrderType:   "MARKET",
		TimeInForce: "DAY",
		Account:     "ACC1",
	}
}

func TestValidate_HappyPathMarket(t *testing.T) {
	v := New(nil)
	if err := v.Validate(validBaseRequest()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_MissingOrderID(t *testing.T) {
	v := New(nil)
	req := validBaseRequest()
	req.OrderID = ""
	err := v.Validate(req)
	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Rule != "presence" {
		t.Fatalf("expected presence rule, got %s", verr.Rule)
	}
}

func TestValidate_BadSymbolFormat(t *testing.T) {
	v := New(nil)
	req := validBaseRequest()
	req.Symbol = "aapl1"
	err := v.Validate(req)
	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) || verr.Rule != "symbol_format" {
		t.Fatalf("expected symbol_format error, got %v", err)
	}
}

func TestValidate_BadEnumSide(t *testing.T) {
	v := New(nil)
	req := validBaseRequest()
	req.Side = "LONG"
	err := v.Validate(req)
	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) || verr.Rule != "side_enum" {
		t.Fatalf("expected side_enum error, got %v", err)
	}
}

func TestValidate_LimitOrderRequiresPrice(t *testing.T) {
	v := New(nil)
	req := validBaseRequest()
	req.OrderType = "LIMIT"
	err := v.Validate(req)
	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) || verr.Rule != "price_presence" {
		t.Fatalf("expected price_presence error, got %v", err)
	}

	price := decimal.RequireFromString("150.25")
	req.Price = &price
	if err := v.Validate(req); err != nil {
		t.Fatalf("expected no error once price supplied, got %v", err)
	}
}

func TestValidate_PriceOutOfRange(t *testing.T) {
	v := New(nil)
	req := validBaseRequest()
	req.OrderType = "LIMIT"
	price := decimal.RequireFromString("0.001")
	req.Price = &price
	err := v.Validate(req)
	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) || verr.Rule != "price_range" {
		t.Fatalf("expected price_range error, got %v", err)
	}
}

func TestValidate_QuantityOutOfBounds(t *testing.T) {
	v := New(nil)
	req := validBaseRequest()
	req.Quantity = 2_000_000
	err := v.Validate(req)
	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) || verr.Rule != "quantity" {
		t.Fatalf("expected quantity error, got %v", err)
	}
}

func TestValidate_ExpiryMustBeFuture(t *testing.T) {
	v := New(nil)
	req := validBaseRequest()
	req.ExpiryDate = "2000-01-01"
	err := v.Validate(req)
	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) || verr.Rule != "expiry" {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestValidate_MinQuantityExceedsQuantity(t *testing.T) {
	v := New(nil)
	req := validBaseRequest()
	minQty := 500
	req.MinQuantity = &minQty
	err := v.Validate(req)
	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) || verr.Rule != "min_quantity" {
		t.Fatalf("expected min_quantity error, got %v", err)
	}
}

func TestValidate_SPXWRequiresStrikeExpiryOptionType(t *testing.T) {
	v := New(nil)
	req := validBaseRequest()
	req.Symbol = "SPXW"
	err := v.Validate(req)
	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) || verr.Rule != "spxw_required" {
		t.Fatalf("expected spxw_required error, got %v", err)
	}

	strike := decimal.RequireFromString("4500")
	req.StrikePrice = &strike
	req.ExpiryDate = futureDate(7)
	req.OptionType = "CALL"
	if err := v.Validate(req); err != nil {
		t.Fatalf("expected no error once SPXW fields supplied, got %v", err)
	}
}

func futureDate(daysFromNow int) string {
	return time.Now().UTC().AddDate(0, 0, daysFromNow).Format("2006-01-02")
}
