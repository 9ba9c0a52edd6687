// Package instrument resolves an OrderRequest's symbol into the contract
// terms the broker expects on the wire: security id, maturity fields, and
// contract specifications (§4.2).
package instrument

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rtxfix/orderadapter/internal/apperrors"
	"github.com/rtxfix/orderadapter/internal/model"
)

const (
	securityIDSourceExchangeSymbol = "8"
	spxwContractSize               = 100
	spxwCurrency                   = "USD"
	spxwExchange                   = "CBOE"
	spxwUnderlying                 = "SPX"
)

// OptionSymbols names the ingress symbols resolved as SPXW-style options.
// Kept distinct from validator.OptionSymbols so each package can evolve its
// own configured set without a shared dependency.
type OptionSymbols map[string]bool

// DefaultOptionSymbols returns the baseline option-symbol set.
func DefaultOptionSymbols() OptionSymbols {
	return OptionSymbols{"SPXW": true}
}

// Resolver turns a validated OrderRequest into an Instrument.
type Resolver struct {
	optionSymbols OptionSymbols
}

// New constructs a Resolver. A nil optionSymbols defaults to DefaultOptionSymbols.
func New(optionSymbols OptionSymbols) *Resolver {
	if optionSymbols == nil {
		optionSymbols = DefaultOptionSymbols()
	}
	return &Resolver{optionSymbols: optionSymbols}
}

// Resolve returns nil, nil for plain-equity symbols (no Instrument attached)
// and a populated *model.Instrument for configured option symbols.
func (r *Resolver) Resolve(req model.OrderRequest) (*model.Instrument, error) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if !r.optionSymbols[symbol] {
		return nil, nil
	}

	expiry, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		return nil, apperrors.NewInstrumentError(symbol, "expiry_date is not a valid date")
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if !expiry.After(today) {
		return nil, apperrors.NewInstrumentError(symbol, "option has already expired")
	}

	optionType, ok := model.ParseOptionType(req.OptionType)
	if !ok {
		return nil, apperrors.NewInstrumentError(symbol, "option_type must be CALL or PUT")
	}
	if req.StrikePrice == nil {
		return nil, apperrors.NewInstrumentError(symbol, "strike_price is required")
	}

	inst := &model.Instrument{
		Symbol:            symbol,
		UnderlyingSymbol:  spxwUnderlying,
		StrikePrice:       *req.StrikePrice,
		ExpiryDate:        expiry,
		OptionType:        optionType,
		Exchange:          spxwExchange,
		Currency:          spxwCurrency,
		ContractSize:      spxwContractSize,
		SecurityIDSource:  securityIDSourceExchangeSymbol,
		MaturityDate:      maturityDate(expiry),
		MaturityMonthYear: maturityMonthYear(expiry),
	}
	inst.SecurityID = generateSecurityID(symbol, expiry, optionType, *req.StrikePrice)
	return inst, nil
}

// generateSecurityID reproduces the `{symbol}_{YYMMDD}_{C|P}_{strike*1000
// zero-padded to 8 digits}` formula (§4.2).
func generateSecurityID(symbol string, expiry time.Time, optionType model.OptionType, strike decimal.Decimal) string {
	expStr := expiry.Format("060102")
	code := "P"
	if optionType == model.OptionTypeCall {
		code = "C"
	}
	strikeThousandths := strike.Mul(decimal.NewFromInt(1000)).Truncate(0)
	return fmt.Sprintf("%s_%s_%s_%08s", symbol, expStr, code, strikeThousandths.String())
}

func maturityDate(expiry time.Time) string {
	return expiry.Format("20060102")
}

func maturityMonthYear(expiry time.Time) string {
	return expiry.Format("200601")
}
