// Package risk implements the pre-trade risk engine of §4.4: order-size,
// daily-volume, position, rate, and option-expiry checks behind a single
// critical section per admitted order.
package risk

import (
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rtxfix/orderadapter/internal/apperrors"
	"github.com/rtxfix/orderadapter/internal/model"
)

// Limits configures the thresholds each check enforces (§4.4).
type Limits struct {
	Enabled            bool
	MaxOrderSize       int
	MaxDailyVolume     int
	MaxPositionSize    int
	MaxOrdersPerSecond int
	RateWindow         time.Duration // defaults to 5 minutes if zero
	MinOptionPrice     decimal.Decimal
}

// SnapshotWriter is the write-through sink for admitted-order counters
// (§2.2, Redis mirror). A nil SnapshotWriter disables mirroring.
type SnapshotWriter interface {
	WriteSnapshot(symbol string, dailyVolume, position, orderCount int)
}

type symbolState struct {
	dailyVolume int
	position    int
	orderCount  int
}

// Engine holds all per-symbol risk state behind one mutex. Every admission
// check runs in the same critical section as the state update it implies,
// so two concurrent orders can never both observe capacity that only one
// of them should consume.
type Engine struct {
	mu sync.Mutex

	limits Limits

	symbols     map[string]*symbolState
	orderTimes  []time.Time // sliding window for the rate check, across all symbols
	lastResetAt time.Time

	cache SnapshotWriter

	now func() time.Time
}

// New constructs a risk Engine. cache may be nil.
func New(limits Limits, cache SnapshotWriter) *Engine {
	if limits.RateWindow == 0 {
		limits.RateWindow = 5 * time.Minute
	}
	return &Engine{
		limits:      limits,
		symbols:     make(map[string]*symbolState),
		lastResetAt: time.Now().UTC(),
		cache:       cache,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Admit runs checks 2-6 of §4.4 against order and, if every check passes,
// records it in the same critical section (§4.4 step 7).
func (e *Engine) Admit(order *model.ProcessedOrder) error {
	if !e.limits.Enabled {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.resetIfNewDayLocked(now)
	e.pruneRateWindowLocked(now)

	if err := e.checkOrderSizeLocked(order); err != nil {
		return err
	}
	if err := e.checkDailyVolumeLocked(order); err != nil {
		return err
	}
	if err := e.checkPositionLocked(order); err != nil {
		return err
	}
	if err := e.checkRateLocked(); err != nil {
		return err
	}
	if err := e.checkOptionExpiryLocked(order); err != nil {
		return err
	}
	e.warnIfOptionPriceBelowMinimumLocked(order)

	e.recordLocked(order, now)
	return nil
}

func (e *Engine) checkOrderSizeLocked(order *model.ProcessedOrder) error {
	if e.limits.MaxOrderSize > 0 && order.Quantity > e.limits.MaxOrderSize {
		return apperrors.NewRiskError(apperrors.RiskReasonOrderSize,
			"order quantity exceeds maximum order size")
	}
	return nil
}

func (e *Engine) checkDailyVolumeLocked(order *model.ProcessedOrder) error {
	if e.limits.MaxDailyVolume <= 0 {
		return nil
	}
	state := e.symbolStateLocked(order.Symbol)
	if state.dailyVolume+order.Quantity > e.limits.MaxDailyVolume {
		return apperrors.NewRiskError(apperrors.RiskReasonDailyVolume,
			"order would exceed daily volume limit for symbol")
	}
	return nil
}

func (e *Engine) checkPositionLocked(order *model.ProcessedOrder) error {
	if e.limits.MaxPositionSize <= 0 {
		return nil
	}
	state := e.symbolStateLocked(order.Symbol)
	delta := order.Quantity
	if order.Side == model.SideSell {
		delta = -order.Quantity
	}
	newPosition := state.position + delta
	if abs(newPosition) > e.limits.MaxPositionSize {
		return apperrors.NewRiskError(apperrors.RiskReasonPosition,
			"order would exceed maximum position size for symbol")
	}
	return nil
}

func (e *Engine) checkRateLocked() error {
	if e.limits.MaxOrdersPerSecond <= 0 {
		return nil
	}
	now := e.now()
	oneSecondAgo := now.Add(-time.Second)
	count := 0
	for _, t := range e.orderTimes {
		if t.After(oneSecondAgo) {
			count++
		}
	}
	if count >= e.limits.MaxOrdersPerSecond {
		return apperrors.NewRiskError(apperrors.RiskReasonRate,
			"order rate limit exceeded")
	}
	return nil
}

func (e *Engine) checkOptionExpiryLocked(order *model.ProcessedOrder) error {
	if order.Instrument == nil {
		return nil
	}
	today := e.now().Truncate(24 * time.Hour)
	if !order.Instrument.ExpiryDate.After(today) {
		return apperrors.NewRiskError(apperrors.RiskReasonOptionExpiry,
			"cannot trade an option expiring today or sooner")
	}
	return nil
}

// warnIfOptionPriceBelowMinimumLocked logs (but never rejects) an option
// order priced below MinOptionPrice (§4.4 step 6, warn-only).
func (e *Engine) warnIfOptionPriceBelowMinimumLocked(order *model.ProcessedOrder) {
	if order.Instrument == nil || order.Price == nil {
		return
	}
	if e.limits.MinOptionPrice.IsZero() {
		return
	}
	if order.Price.LessThan(e.limits.MinOptionPrice) {
		log.Printf("[RISK] order %s: option price %s below minimum %s, admitting anyway (warn-only)",
			order.ClientOrderID, order.Price.String(), e.limits.MinOptionPrice.String())
	}
}

func (e *Engine) recordLocked(order *model.ProcessedOrder, now time.Time) {
	state := e.symbolStateLocked(order.Symbol)
	state.dailyVolume += order.Quantity
	state.orderCount++

	// Position is not touched here: it moves only on fills, via ApplyFill.
	e.orderTimes = append(e.orderTimes, now)

	if e.cache != nil {
		e.cache.WriteSnapshot(order.Symbol, state.dailyVolume, state.position, state.orderCount)
	}
}

// ApplyFill adjusts the tracked position for a fill reported after the
// order was admitted (§4.8 gateway execution-report handling). side is the
// original order side; lastQty is the incremental fill quantity.
func (e *Engine) ApplyFill(symbol string, side model.Side, lastQty int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.symbolStateLocked(symbol)
	delta := lastQty
	if side == model.SideSell {
		delta = -lastQty
	}
	state.position += delta

	if e.cache != nil {
		e.cache.WriteSnapshot(symbol, state.dailyVolume, state.position, state.orderCount)
	}
}

func (e *Engine) symbolStateLocked(symbol string) *symbolState {
	state, ok := e.symbols[symbol]
	if !ok {
		state = &symbolState{}
		e.symbols[symbol] = state
	}
	return state
}

// resetIfNewDayLocked clears daily-volume and order-count counters at the
// UTC day boundary (§4.4), leaving positions untouched.
func (e *Engine) resetIfNewDayLocked(now time.Time) {
	if sameUTCDay(now, e.lastResetAt) {
		return
	}
	for _, state := range e.symbols {
		state.dailyVolume = 0
		state.orderCount = 0
	}
	e.lastResetAt = now
}

func (e *Engine) pruneRateWindowLocked(now time.Time) {
	cutoff := now.Add(-e.limits.RateWindow)
	kept := e.orderTimes[:0]
	for _, t := range e.orderTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	e.orderTimes = kept
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
