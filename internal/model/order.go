package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest is the externally supplied, immutable order as received by
// the ingress listener (§3). It is constructed once on decode and never
// mutated afterward.
type OrderRequest struct {
	OrderID       string           `json:"order_id"`
	Symbol        string           `json:"symbol"`
	Side          string           `json:"side"`
	Quantity      int              `json:"quantity"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	StopPrice     *decimal.Decimal `json:"stop_price,omitempty"`
	OrderType     string           `json:"order_type"`
	TimeInForce   string           `json:"time_in_force"`
	Account       string           `json:"account,omitempty"`
	StrikePrice   *decimal.Decimal `json:"strike_price,omitempty"`
	ExpiryDate    string           `json:"expiry_date,omitempty"` // YYYY-MM-DD
	OptionType    string           `json:"option_type,omitempty"`
	ClientOrderID string           `json:"client_order_id,omitempty"`
	MinQuantity   *int             `json:"min_quantity,omitempty"`
	MaxShow       *int             `json:"max_show,omitempty"`
	Text          string           `json:"text,omitempty"`

	// ExtraFields preserves JSON keys the schema does not recognize (§6).
	ExtraFields map[string]any `json:"-"`
}

// EffectiveClientOrderID returns ClientOrderID if set, else OrderID (§3).
func (r OrderRequest) EffectiveClientOrderID() string {
	if r.ClientOrderID != "" {
		return r.ClientOrderID
	}
	return r.OrderID
}

// Instrument is the resolved option record produced by the Instrument
// Resolver (§3, §4.2). Plain-equity symbols resolve to no Instrument.
type Instrument struct {
	Symbol            string
	UnderlyingSymbol  string
	StrikePrice       decimal.Decimal
	ExpiryDate        time.Time // UTC midnight
	OptionType        OptionType
	Exchange          string
	Currency          string
	ContractSize      int
	SecurityID        string
	SecurityIDSource  string
	MaturityDate      string // YYYYMMDD
	MaturityMonthYear string // YYYYMM
}

// ProcessedOrder is the internal canonical form emitted by the Order
// Processor (§3). Mutated only by the Gateway in response to matching
// execution reports.
type ProcessedOrder struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Side          Side
	Quantity      int
	Price         *decimal.Decimal
	StopPrice     *decimal.Decimal
	OrderType     OrderType
	TimeInForce   TimeInForce
	Account       string
	ClearingAccount string
	OrderCapacity string
	MinQuantity   *int
	MaxShow       *int
	Text          string

	Instrument *Instrument // nil for non-option symbols

	Status            OrderStatus
	CreatedTime       time.Time
	UpdatedTime       time.Time
	FilledQuantity    int
	RemainingQuantity int
	AvgPrice          decimal.Decimal
	LastPrice         decimal.Decimal
	LastQuantity      int

	BrokerOrderID string // set once the broker assigns OrderID (tag 37)
}

// IsTerminal reports whether the order accepts no further mutation (§3).
func (p *ProcessedOrder) IsTerminal() bool {
	return p.Status.Terminal()
}

// ExecutionReport is an inbound, broker-originated fill/status update (§3).
type ExecutionReport struct {
	OrderID           string // broker-assigned
	ClientOrderID     string
	OrigClientOrderID string
	ExecID            string
	ExecType          ExecType
	OrderStatus       OrderStatus
	Symbol            string
	Side              Side
	OrderQty          int
	CumQty            int
	LeavesQty         int
	LastQty           *int
	AvgPx             *decimal.Decimal
	LastPx            *decimal.Decimal
	TransactTime      time.Time
	Text              string
	Account           string
}

// Balanced reports the §3 arrival invariant cum_qty + leaves_qty == order_qty.
func (e ExecutionReport) Balanced() bool {
	return e.CumQty+e.LeavesQty == e.OrderQty
}

// CancelReject is an inbound OrderCancelReject (35=9), correlated to a
// cancel attempt by ClientOrderID (§4.8).
type CancelReject struct {
	ClientOrderID     string
	OrigClientOrderID string
	Reason            string
	Text              string
}
