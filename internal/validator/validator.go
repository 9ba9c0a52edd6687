// Package validator applies the pure, I/O-free §4.1 rule set to an
// OrderRequest, returning the first failing rule as a typed error.
package validator

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rtxfix/orderadapter/internal/apperrors"
	"github.com/rtxfix/orderadapter/internal/model"
)

var (
	orderIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)
	symbolPattern  = regexp.MustCompile(`^[A-Z]{1,12}$`)
	accountPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,20}$`)
)

const (
	maxQuantity = 1_000_000
)

var (
	minPrice = decimal.RequireFromString("0.01")
	maxPrice = decimal.RequireFromString("999999.99")
)

// OptionSymbols configures which ingress symbols are treated as the
// SPXW-style option requiring strike/expiry/option_type (§4.1 "SPXW-specific").
// SPXW is always included; additional symbols may be configured at
// construction for brokers that list other weekly index options the same
// way.
type OptionSymbols map[string]bool

// DefaultOptionSymbols returns the baseline option-symbol set.
func DefaultOptionSymbols() OptionSymbols {
	return OptionSymbols{"SPXW": true}
}

// Validator applies §4.1 in order and is pure and free of I/O.
type Validator struct {
	optionSymbols OptionSymbols
}

// New constructs a Validator. A nil optionSymbols defaults to DefaultOptionSymbols.
func New(optionSymbols OptionSymbols) *Validator {
	if optionSymbols == nil {
		optionSymbols = DefaultOptionSymbols()
	}
	return &Validator{optionSymbols: optionSymbols}
}

// Validate runs the full §4.1 rule chain, short-circuiting on the first
// failure.
func (v *Validator) Validate(req model.OrderRequest) error {
	if err := v.validateRequired(req); err != nil {
		return err
	}
	if err := v.validateFormats(req); err != nil {
		return err
	}
	if err := v.validateEnumerations(req); err != nil {
		return err
	}
	if err := v.validateQuantity(req); err != nil {
		return err
	}
	if err := v.validatePrices(req); err != nil {
		return err
	}
	if err := v.validateExpiry(req); err != nil {
		return err
	}
	if err := v.validateShowQuantities(req); err != nil {
		return err
	}
	if err := v.validateOptionSymbol(req); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validateRequired(req model.OrderRequest) error {
	switch {
	case strings.TrimSpace(req.OrderID) == "":
		return apperrors.NewValidationError("presence", "order_id is required")
	case strings.TrimSpace(req.Symbol) == "":
		return apperrors.NewValidationError("presence", "symbol is required")
	case strings.TrimSpace(req.Side) == "":
		return apperrors.NewValidationError("presence", "side is required")
	case req.Quantity == 0:
		return apperrors.NewValidationError("presence", "quantity is required")
	case strings.TrimSpace(req.OrderType) == "":
		return apperrors.NewValidationError("presence", "order_type is required")
	case strings.TrimSpace(req.TimeInForce) == "":
		return apperrors.NewValidationError("presence", "time_in_force is required")
	}
	return nil
}

func (v *Validator) validateFormats(req model.OrderRequest) error {
	if !orderIDPattern.MatchString(req.OrderID) {
		return apperrors.NewValidationError("order_id_format",
			"order_id must match ^[A-Za-z0-9_-]{1,50}$")
	}
	if !symbolPattern.MatchString(req.Symbol) {
		return apperrors.NewValidationError("symbol_format",
			"symbol must match ^[A-Z]{1,12}$")
	}
	if req.Account != "" && !accountPattern.MatchString(req.Account) {
		return apperrors.NewValidationError("account_format",
			"account must match ^[A-Za-z0-9_-]{1,20}$")
	}
	if req.ClientOrderID != "" && !orderIDPattern.MatchString(req.ClientOrderID) {
		return apperrors.NewValidationError("client_order_id_format",
			"client_order_id must match ^[A-Za-z0-9_-]{1,50}$")
	}
	return nil
}

func (v *Validator) validateEnumerations(req model.OrderRequest) error {
	if _, ok := model.ParseSide(req.Side); !ok {
		return apperrors.NewValidationError("side_enum", "side must be BUY or SELL")
	}
	orderType, ok := model.ParseOrderType(req.OrderType)
	if !ok {
		return apperrors.NewValidationError("order_type_enum",
			"order_type must be one of MARKET, LIMIT, STOP, STOP_LIMIT")
	}
	if _, ok := model.ParseTimeInForce(req.TimeInForce); !ok {
		return apperrors.NewValidationError("time_in_force_enum",
			"time_in_force must be one of DAY, GTC, IOC, FOK, GTD")
	}
	if req.OptionType != "" {
		if _, ok := model.ParseOptionType(req.OptionType); !ok {
			return apperrors.NewValidationError("option_type_enum",
				"option_type must be CALL or PUT")
		}
	}

	// The quantity rule precedes price presence in the §4.1 order.
	if err := v.validateQuantity(req); err != nil {
		return err
	}

	// Price presence depends on the parsed order type (§4.1 "price presence").
	switch orderType {
	case model.OrderTypeLimit, model.OrderTypeStopLimit:
		if req.Price == nil || req.Price.Sign() <= 0 {
			return apperrors.NewValidationError("price_presence",
				"price is required and must be positive for LIMIT/STOP_LIMIT orders")
		}
	}
	switch orderType {
	case model.OrderTypeStop, model.OrderTypeStopLimit:
		if req.StopPrice == nil || req.StopPrice.Sign() <= 0 {
			return apperrors.NewValidationError("price_presence",
				"stop_price is required and must be positive for STOP/STOP_LIMIT orders")
		}
	}
	return nil
}

func (v *Validator) validateQuantity(req model.OrderRequest) error {
	if req.Quantity < 1 || req.Quantity > maxQuantity {
		return apperrors.NewValidationError("quantity",
			"quantity must be between 1 and 1000000")
	}
	return nil
}

func (v *Validator) validatePrices(req model.OrderRequest) error {
	if req.Price != nil {
		if err := checkPriceRange("price", *req.Price); err != nil {
			return err
		}
	}
	if req.StopPrice != nil {
		if err := checkPriceRange("stop_price", *req.StopPrice); err != nil {
			return err
		}
	}
	return nil
}

func checkPriceRange(field string, price decimal.Decimal) error {
	if price.LessThan(minPrice) || price.GreaterThan(maxPrice) {
		return apperrors.NewValidationError("price_range",
			field+" must be between 0.01 and 999999.99")
	}
	if price.Exponent() < -4 {
		return apperrors.NewValidationError("price_range",
			field+" must have at most 4 decimal places")
	}
	return nil
}

func (v *Validator) validateExpiry(req model.OrderRequest) error {
	if req.ExpiryDate == "" {
		return nil
	}
	expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		return apperrors.NewValidationError("expiry", "expiry_date must be in YYYY-MM-DD format")
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if !expiry.After(today) {
		return apperrors.NewValidationError("expiry", "expiry_date must be strictly after today")
	}
	return nil
}

func (v *Validator) validateShowQuantities(req model.OrderRequest) error {
	if req.MinQuantity != nil {
		if *req.MinQuantity <= 0 || *req.MinQuantity > req.Quantity {
			return apperrors.NewValidationError("min_quantity",
				"min_quantity must be positive and <= quantity")
		}
	}
	if req.MaxShow != nil {
		if *req.MaxShow <= 0 || *req.MaxShow > req.Quantity {
			return apperrors.NewValidationError("max_show",
				"max_show must be positive and <= quantity")
		}
	}
	return nil
}

func (v *Validator) validateOptionSymbol(req model.OrderRequest) error {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol != "SPXW" && !v.optionSymbols[symbol] {
		return nil
	}
	if req.StrikePrice == nil {
		return apperrors.NewValidationError("spxw_required", "strike_price is required for "+symbol)
	}
	if req.ExpiryDate == "" {
		return apperrors.NewValidationError("spxw_required", "expiry_date is required for "+symbol)
	}
	if req.OptionType == "" {
		return apperrors.NewValidationError("spxw_required", "option_type is required for "+symbol)
	}
	return nil
}
