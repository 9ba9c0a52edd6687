// Package gateway bridges the Order Processor and the FIX Session (§4.8):
// it tracks outstanding orders, submits NewOrderSingle/Cancel/
// CancelReplace messages through the session's sequencing, and applies
// inbound ExecutionReports and OrderCancelRejects back onto ProcessedOrder
// state.
package gateway

import (
	"fmt"
	"log"
	"sync"

	"github.com/rtxfix/orderadapter/internal/apperrors"
	"github.com/rtxfix/orderadapter/internal/fixcodec"
	"github.com/rtxfix/orderadapter/internal/fixsession"
	"github.com/rtxfix/orderadapter/internal/metrics"
	"github.com/rtxfix/orderadapter/internal/model"
	"github.com/shopspring/decimal"
)

// Sender is the subset of *fixsession.Session the Gateway depends on. A
// Session rejects application messages sent outside the ACTIVE state, so
// the Gateway still checks State() up front to fail fast with a typed
// ConnectionError instead of relying on the session's own rejection.
type Sender interface {
	State() fixsession.State
	SendApplicationMessage(msgType string, body []fixcodec.Field) ([]byte, error)
}

// PositionUpdater matches internal/risk.Engine's fill-application method.
type PositionUpdater interface {
	ApplyFill(symbol string, side model.Side, lastQty int)
}

// Gateway bridges order processing and the FIX wire.
type Gateway struct {
	session Sender
	risk    PositionUpdater

	mu             sync.Mutex
	outstanding    map[string]*model.ProcessedOrder // keyed by client_order_id
	pendingCancels map[string]string                // new cancel clOrdID -> original clOrdID
}

// New constructs a Gateway. risk may be nil if position feedback is not
// wired (e.g. in tests exercising only the codec path).
func New(session Sender, risk PositionUpdater) *Gateway {
	return &Gateway{
		session:        session,
		risk:           risk,
		outstanding:    make(map[string]*model.ProcessedOrder),
		pendingCancels: make(map[string]string),
	}
}

// SendOrder submits a newly processed order over the FIX session (§4.8).
func (g *Gateway) SendOrder(order *model.ProcessedOrder) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session.State() != fixsession.StateActive {
		return apperrors.NewConnectionError(string(g.session.State()))
	}

	g.outstanding[order.ClientOrderID] = order
	metrics.OutstandingOrders.Set(float64(len(g.outstanding)))

	body := fixcodec.NewOrderSingleBody(order)
	if _, err := g.session.SendApplicationMessage(fixcodec.MsgTypeNewOrderSingle, body); err != nil {
		delete(g.outstanding, order.ClientOrderID)
		metrics.OutstandingOrders.Set(float64(len(g.outstanding)))
		return apperrors.NewProcessingError("gateway_send_order", err)
	}
	return nil
}

// CancelOrder submits an OrderCancelRequest for a tracked order (§4.8
// supplemental capability).
func (g *Gateway) CancelOrder(clientOrderID, newClientOrderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	order, ok := g.outstanding[clientOrderID]
	if !ok {
		return fmt.Errorf("gateway: no outstanding order for %s", clientOrderID)
	}
	if g.session.State() != fixsession.StateActive {
		return apperrors.NewConnectionError(string(g.session.State()))
	}

	body := fixcodec.OrderCancelRequestBody(order, newClientOrderID)
	if _, err := g.session.SendApplicationMessage(fixcodec.MsgTypeOrderCancelRequest, body); err != nil {
		return apperrors.NewProcessingError("gateway_cancel_order", err)
	}
	g.pendingCancels[newClientOrderID] = clientOrderID
	return nil
}

// CancelReplaceOrder submits an OrderCancelReplaceRequest (§4.8).
func (g *Gateway) CancelReplaceOrder(clientOrderID, newClientOrderID string, newQuantity int, newPrice *decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	order, ok := g.outstanding[clientOrderID]
	if !ok {
		return fmt.Errorf("gateway: no outstanding order for %s", clientOrderID)
	}
	if g.session.State() != fixsession.StateActive {
		return apperrors.NewConnectionError(string(g.session.State()))
	}

	body := fixcodec.OrderCancelReplaceRequestBody(order, newClientOrderID, newQuantity, newPrice)
	if _, err := g.session.SendApplicationMessage(fixcodec.MsgTypeOrderCancelReplaceRequest, body); err != nil {
		return apperrors.NewProcessingError("gateway_cancel_replace_order", err)
	}
	return nil
}

// OnExecutionReport applies an inbound ExecutionReport to the matching
// outstanding order (§4.8). Position is updated from last_qty, never
// cum_qty, so each partial fill adds only its own quantity. A duplicate
// report is applied again.
func (g *Gateway) OnExecutionReport(report model.ExecutionReport) {
	g.mu.Lock()
	defer g.mu.Unlock()

	order, ok := g.outstanding[report.ClientOrderID]
	if !ok {
		log.Printf("[GATEWAY] execution report for unknown client_order_id %s, discarding", report.ClientOrderID)
		return
	}

	order.Status = report.OrderStatus
	order.FilledQuantity = report.CumQty
	order.RemainingQuantity = report.LeavesQty
	if report.AvgPx != nil {
		order.AvgPrice = *report.AvgPx
	}
	if report.LastPx != nil {
		order.LastPrice = *report.LastPx
	}
	if report.LastQty != nil {
		order.LastQuantity = *report.LastQty
	}
	if report.OrderID != "" {
		order.BrokerOrderID = report.OrderID
	}
	order.UpdatedTime = report.TransactTime

	if g.risk != nil && report.LastQty != nil && *report.LastQty > 0 {
		g.risk.ApplyFill(order.Symbol, order.Side, *report.LastQty)
	}

	if order.IsTerminal() {
		delete(g.outstanding, report.ClientOrderID)
		metrics.OutstandingOrders.Set(float64(len(g.outstanding)))
	}
}

// OnCancelReject marks a pending cancel attempt as failed without altering
// the original order's state (§4.8).
func (g *Gateway) OnCancelReject(reject model.CancelReject) {
	g.mu.Lock()
	defer g.mu.Unlock()

	orig, ok := g.pendingCancels[reject.ClientOrderID]
	if !ok {
		log.Printf("[GATEWAY] cancel reject for unknown client_order_id %s, discarding", reject.ClientOrderID)
		return
	}
	delete(g.pendingCancels, reject.ClientOrderID)
	log.Printf("[GATEWAY] cancel rejected for order %s (attempt %s): %s", orig, reject.ClientOrderID, reject.Text)
}

// Outstanding returns a snapshot count, for diagnostics/metrics callers.
func (g *Gateway) Outstanding() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.outstanding)
}
