package engine

import (
	"context"
	"time"

	"github.com/memdexlab/memdex/internal/domain"
	"github.com/memdexlab/memdex/internal/repository"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// ExecuteTrade
// ──────────────────────────────────────────────────────────────────────────────

// ExecuteTrade runs one trade end to end: validation, solvency/inventory
// checks, lot creation or proportional-cost lot reduction, order logging,
// persistence, broadcast.  All-or-nothing: every check precedes the first
// mutation, so a rejected trade leaves the account untouched.
func (e *Engine) ExecuteTrade(ctx context.Context, req domain.TradeRequest) (*domain.TradeResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC()
	acct, _ := e.accountLocked(req.GuestID)

	var (
		order domain.Order
		err   error
	)
	switch {
	case req.Market == domain.MarketSynthetic && req.Side == domain.SideBuy:
		order, err = e.buySyntheticLocked(acct, req, now)
	case req.Market == domain.MarketSynthetic && req.Side == domain.SideSell:
		order, err = e.sellSyntheticLocked(acct, req, now)
	case req.Market == domain.MarketPrediction && req.Side == domain.SideBuy:
		order, err = e.buyPredictionLocked(acct, req, now)
	default:
		order, err = e.sellPredictionLocked(acct, req, now)
	}
	if err != nil {
		return nil, err
	}

	acct.UpdatedAt = now
	e.recomputePnLLocked(acct)
	e.recordActivityLocked(domain.ActivityEntry{
		Who:       acct.Username,
		Type:      order.Type,
		Market:    req.Market,
		Symbol:    activitySymbol(req),
		Quantity:  order.Quantity,
		Amount:    order.Amount,
		CreatedAt: now,
	})

	e.persistLocked(ctx, now, repository.DocAccounts)
	e.broadcastLocked()

	return &domain.TradeResult{
		Order:       order,
		FillPrice:   order.Price,
		RealizedPnL: order.RealizedPnL,
		Account:     acct.Clone(),
	}, nil
}

func activitySymbol(req domain.TradeRequest) string {
	if req.Market == domain.MarketSynthetic {
		return string(req.Ticker)
	}
	if in, ok := domain.InstrumentByID(req.InstrumentID); ok {
		return in.DisplayTicker + " " + string(req.Outcome)
	}
	return req.InstrumentID
}

// ──────────────────────────────────────────────────────────────────────────────
// Synthetic market
// ──────────────────────────────────────────────────────────────────────────────

// buySyntheticLocked stakes a cash amount at the current price and opens a
// new lot with its own cost basis.
func (e *Engine) buySyntheticLocked(acct *domain.Account, req domain.TradeRequest, now time.Time) (domain.Order, error) {
	amount := req.Amount.Round(domain.CashPrecision)
	if acct.CashBalance.LessThan(amount) {
		return domain.Order{}, domain.ErrInsufficientFunds
	}
	price, _ := e.prices.Current(req.Ticker)
	units := amount.Div(price).Round(domain.QuantityPrecision)
	if !units.IsPositive() {
		return domain.Order{}, domain.ErrInvalidAmount
	}

	acct.CashBalance = acct.CashBalance.Sub(amount)
	lot := domain.SyntheticPosition{
		ID:             acct.Synthetic.NextPositionID,
		Ticker:         req.Ticker,
		Units:          units,
		AvgEntryPrice:  price,
		InvestedAmount: amount,
		OpenedAt:       now,
		UpdatedAt:      now,
	}
	acct.Synthetic.NextPositionID++
	acct.Synthetic.Positions = append(acct.Synthetic.Positions, lot)

	order := domain.Order{
		ID:        acct.Synthetic.NextOrderID,
		Type:      domain.OrderBuy,
		Ticker:    req.Ticker,
		Quantity:  units,
		Price:     price,
		Amount:    amount,
		CreatedAt: now,
	}
	acct.Synthetic.NextOrderID++
	appendOrder(&acct.Synthetic.Orders, order)
	return order, nil
}

// sellSyntheticLocked closes units across the ticker's lots in open order.
// Cost is removed proportionally from each touched lot; a quantity within the
// rounding epsilon above the held total closes the position exactly.
func (e *Engine) sellSyntheticLocked(acct *domain.Account, req domain.TradeRequest, now time.Time) (domain.Order, error) {
	price, _ := e.prices.Current(req.Ticker)

	qty := req.Quantity.Round(domain.QuantityPrecision)
	if !qty.IsPositive() {
		// Sell-by-value: convert the USD amount at the current price.
		qty = req.Amount.Round(domain.CashPrecision).Div(price).Round(domain.QuantityPrecision)
	}
	if !qty.IsPositive() {
		return domain.Order{}, domain.ErrInvalidAmount
	}

	held := acct.SyntheticUnits(req.Ticker)
	if qty.GreaterThan(held.Add(domain.SellEpsilon)) {
		return domain.Order{}, domain.ErrInsufficientInventory
	}
	if qty.GreaterThan(held) {
		qty = held
	}

	remaining := qty
	removedCost := decimal.Zero
	kept := make([]domain.SyntheticPosition, 0, len(acct.Synthetic.Positions))
	for _, p := range acct.Synthetic.Positions {
		if p.Ticker != req.Ticker || !remaining.IsPositive() {
			kept = append(kept, p)
			continue
		}
		used := decimal.Min(p.Units, remaining)
		if used.Equal(p.Units) {
			removedCost = removedCost.Add(p.InvestedAmount)
			remaining = remaining.Sub(used)
			continue // lot fully closed
		}
		cost := used.Div(p.Units).Mul(p.InvestedAmount).Round(domain.CashPrecision)
		p.Units = p.Units.Sub(used)
		p.InvestedAmount = p.InvestedAmount.Sub(cost)
		p.UpdatedAt = now
		removedCost = removedCost.Add(cost)
		remaining = decimal.Zero
		kept = append(kept, p)
	}
	acct.Synthetic.Positions = kept

	proceeds := qty.Mul(price).Round(domain.CashPrecision)
	realized := proceeds.Sub(removedCost)
	acct.CashBalance = acct.CashBalance.Add(proceeds)

	order := domain.Order{
		ID:          acct.Synthetic.NextOrderID,
		Type:        domain.OrderSell,
		Ticker:      req.Ticker,
		Quantity:    qty,
		Price:       price,
		Amount:      proceeds,
		RealizedPnL: realized,
		CreatedAt:   now,
	}
	acct.Synthetic.NextOrderID++
	appendOrder(&acct.Synthetic.Orders, order)
	return order, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Prediction market
// ──────────────────────────────────────────────────────────────────────────────

// buyPredictionLocked stakes cash on one side of an instrument at the live
// chance-derived contract price.  The lot freezes its settlement anchors at
// entry: target price from the daily reference (falling back to the current
// price) and the session counter.  Frozen anchors are why lots never merge.
func (e *Engine) buyPredictionLocked(acct *domain.Account, req domain.TradeRequest, now time.Time) (domain.Order, error) {
	amount := req.Amount.Round(domain.CashPrecision)
	if acct.CashBalance.LessThan(amount) {
		return domain.Order{}, domain.ErrInsufficientFunds
	}

	in, _ := domain.InstrumentByID(req.InstrumentID)
	price := e.contractPriceLocked(req.InstrumentID, req.Outcome)
	contracts := amount.Div(price).Round(domain.QuantityPrecision)
	if !contracts.IsPositive() {
		return domain.Order{}, domain.ErrInvalidAmount
	}

	target := e.session.PriceToBeat[in.Ticker]
	if !target.IsPositive() {
		target, _ = e.prices.Current(in.Ticker)
	}

	acct.CashBalance = acct.CashBalance.Sub(amount)
	lot := domain.PredictionPosition{
		ID:              acct.Prediction.NextPositionID,
		InstrumentID:    req.InstrumentID,
		Outcome:         req.Outcome,
		Contracts:       contracts,
		AvgEntryPrice:   price,
		InvestedAmount:  amount,
		TargetPrice:     target,
		OpenedAtSession: e.session.SkipCount,
		OpenedAt:        now,
		UpdatedAt:       now,
	}
	acct.Prediction.NextPositionID++
	acct.Prediction.Positions = append(acct.Prediction.Positions, lot)

	order := domain.Order{
		ID:           acct.Prediction.NextOrderID,
		Type:         domain.OrderBuy,
		InstrumentID: req.InstrumentID,
		Outcome:      req.Outcome,
		Quantity:     contracts,
		Price:        price,
		Amount:       amount,
		CreatedAt:    now,
	}
	acct.Prediction.NextOrderID++
	appendOrder(&acct.Prediction.Orders, order)
	return order, nil
}

// sellPredictionLocked closes contracts across the instrument+outcome lots in
// open order at the live contract price.  Realized P&L from prediction sells
// feeds the account's permanent accumulator.
func (e *Engine) sellPredictionLocked(acct *domain.Account, req domain.TradeRequest, now time.Time) (domain.Order, error) {
	qty := req.Quantity.Round(domain.QuantityPrecision)
	if !qty.IsPositive() {
		return domain.Order{}, domain.ErrInvalidAmount
	}

	held := acct.PredictionContracts(req.InstrumentID, req.Outcome)
	if qty.GreaterThan(held.Add(domain.SellEpsilon)) {
		return domain.Order{}, domain.ErrInsufficientInventory
	}
	if qty.GreaterThan(held) {
		qty = held
	}
	price := e.contractPriceLocked(req.InstrumentID, req.Outcome)

	remaining := qty
	removedCost := decimal.Zero
	kept := make([]domain.PredictionPosition, 0, len(acct.Prediction.Positions))
	for _, p := range acct.Prediction.Positions {
		if p.InstrumentID != req.InstrumentID || p.Outcome != req.Outcome || !remaining.IsPositive() {
			kept = append(kept, p)
			continue
		}
		used := decimal.Min(p.Contracts, remaining)
		if used.Equal(p.Contracts) {
			removedCost = removedCost.Add(p.InvestedAmount)
			remaining = remaining.Sub(used)
			continue
		}
		cost := used.Div(p.Contracts).Mul(p.InvestedAmount).Round(domain.CashPrecision)
		p.Contracts = p.Contracts.Sub(used)
		p.InvestedAmount = p.InvestedAmount.Sub(cost)
		p.UpdatedAt = now
		removedCost = removedCost.Add(cost)
		remaining = decimal.Zero
		kept = append(kept, p)
	}
	acct.Prediction.Positions = kept

	proceeds := qty.Mul(price).Round(domain.CashPrecision)
	realized := proceeds.Sub(removedCost)
	acct.CashBalance = acct.CashBalance.Add(proceeds)
	acct.RealizedPnL = acct.RealizedPnL.Add(realized)

	order := domain.Order{
		ID:           acct.Prediction.NextOrderID,
		Type:         domain.OrderSell,
		InstrumentID: req.InstrumentID,
		Outcome:      req.Outcome,
		Quantity:     qty,
		Price:        price,
		Amount:       proceeds,
		RealizedPnL:  realized,
		CreatedAt:    now,
	}
	acct.Prediction.NextOrderID++
	appendOrder(&acct.Prediction.Orders, order)
	return order, nil
}

// appendOrder appends to an order log and trims the oldest past the cap.
func appendOrder(orders *[]domain.Order, o domain.Order) {
	*orders = append(*orders, o)
	if len(*orders) > domain.OrderHistoryCap {
		*orders = (*orders)[len(*orders)-domain.OrderHistoryCap:]
	}
}
