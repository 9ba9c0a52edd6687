// Package processor composes the validator, instrument resolver, and risk
// engine into the single Process entry point the ingress listener calls
// (§3, §4.3).
package processor

import (
	"time"

	"github.com/rtxfix/orderadapter/internal/apperrors"
	"github.com/rtxfix/orderadapter/internal/metrics"
	"github.com/rtxfix/orderadapter/internal/model"
)

// Validator matches internal/validator.Validator.
type Validator interface {
	Validate(model.OrderRequest) error
}

// InstrumentResolver matches internal/instrument.Resolver.
type InstrumentResolver interface {
	Resolve(model.OrderRequest) (*model.Instrument, error)
}

// RiskEngine matches internal/risk.Engine.
type RiskEngine interface {
	Admit(*model.ProcessedOrder) error
}

// Processor runs the order-entry pipeline: validate -> resolve instrument
// -> build ProcessedOrder -> risk admit -> enrich.
type Processor struct {
	validator    Validator
	resolver     InstrumentResolver
	risk         RiskEngine
	defaultExchange string
	defaultCurrency string
	now          func() time.Time
}

// Option configures a Processor at construction.
type Option func(*Processor)

// WithDefaultExchange sets the Processor's default exchange. No pipeline
// stage reads it; ProcessedOrder carries no exchange for non-option orders.
func WithDefaultExchange(exchange string) Option {
	return func(p *Processor) { p.defaultExchange = exchange }
}

// WithDefaultCurrency sets the Processor's default currency. No pipeline
// stage reads it; ProcessedOrder carries no currency for non-option orders.
func WithDefaultCurrency(currency string) Option {
	return func(p *Processor) { p.defaultCurrency = currency }
}

// New constructs a Processor from its three pipeline stages.
func New(validator Validator, resolver InstrumentResolver, risk RiskEngine, opts ...Option) *Processor {
	p := &Processor{
		validator:       validator,
		resolver:        resolver,
		risk:            risk,
		defaultExchange: "XNAS",
		defaultCurrency: "USD",
		now:             func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the full pipeline, short-circuiting on the first typed
// error and recording a Prometheus counter per outcome category (§4.3).
func (p *Processor) Process(req model.OrderRequest) (*model.ProcessedOrder, error) {
	start := p.now()
	symbol := req.Symbol

	defer func() {
		metrics.OrderProcessingLatencyMs.WithLabelValues(symbol).Observe(
			float64(p.now().Sub(start).Milliseconds()))
	}()

	if err := p.validator.Validate(req); err != nil {
		var verr *apperrors.ValidationError
		rule := "unknown"
		if ok := asValidationError(err, &verr); ok {
			rule = verr.Rule
		}
		metrics.ValidationErrorsTotal.WithLabelValues(rule).Inc()
		metrics.OrdersProcessedTotal.WithLabelValues(symbol, "validation_rejected").Inc()
		return nil, err
	}

	instrument, err := p.resolver.Resolve(req)
	if err != nil {
		metrics.InstrumentErrorsTotal.WithLabelValues(symbol).Inc()
		metrics.OrdersProcessedTotal.WithLabelValues(symbol, "instrument_rejected").Inc()
		return nil, err
	}

	order := p.buildProcessedOrder(req, instrument, start)

	if err := p.risk.Admit(order); err != nil {
		var rerr *apperrors.RiskError
		reason := "unknown"
		if ok := asRiskError(err, &rerr); ok {
			reason = string(rerr.Reason)
		}
		metrics.RiskRejectionsTotal.WithLabelValues(reason).Inc()
		metrics.OrdersProcessedTotal.WithLabelValues(symbol, "risk_rejected").Inc()
		return nil, err
	}

	p.enrich(order)

	metrics.OrdersProcessedTotal.WithLabelValues(symbol, "admitted").Inc()
	return order, nil
}

func (p *Processor) buildProcessedOrder(req model.OrderRequest, instrument *model.Instrument, now time.Time) *model.ProcessedOrder {
	side, _ := model.ParseSide(req.Side)
	orderType, _ := model.ParseOrderType(req.OrderType)
	tif, _ := model.ParseTimeInForce(req.TimeInForce)

	order := &model.ProcessedOrder{
		OrderID:       req.OrderID,
		ClientOrderID: req.EffectiveClientOrderID(),
		Symbol:        req.Symbol,
		Side:          side,
		Quantity:      req.Quantity,
		Price:         req.Price,
		StopPrice:     req.StopPrice,
		OrderType:     orderType,
		TimeInForce:   tif,
		Account:       req.Account,
		MinQuantity:   req.MinQuantity,
		MaxShow:       req.MaxShow,
		Text:          req.Text,
		Instrument:    instrument,
		Status:        model.OrderStatusNew,
		CreatedTime:   now,
		UpdatedTime:   now,
		RemainingQuantity: req.Quantity,
	}

	if instrument == nil {
		order.Instrument = nil
	}
	return order
}

// enrich applies §4.3's final-enrichment step: default clearing account to
// the trading account, default order capacity to Agency.
func (p *Processor) enrich(order *model.ProcessedOrder) {
	if order.ClearingAccount == "" {
		order.ClearingAccount = order.Account
	}
	if order.OrderCapacity == "" {
		order.OrderCapacity = "A"
	}
}

func asValidationError(err error, target **apperrors.ValidationError) bool {
	verr, ok := err.(*apperrors.ValidationError)
	if ok {
		*target = verr
	}
	return ok
}

func asRiskError(err error, target **apperrors.RiskError) bool {
	rerr, ok := err.(*apperrors.RiskError)
	if ok {
		*target = rerr
	}
	return ok
}
