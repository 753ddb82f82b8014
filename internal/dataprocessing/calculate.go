package dataprocessing

import (
	"log/slog"

	"opsunify/pkg/contracts/domain"
)

// Classify returns the payout direction of a net bid/offer adjustment:
// PAGA when the client pays (negative), RECEBE when the client receives
// (positive), NEUTRO when zero or null. Exhaustive and mutually exclusive.
func Classify(net domain.NullFloat) domain.Classification {
	switch {
	case net.Valid && net.Value < 0:
		return domain.ClassificationPaga
	case net.Valid && net.Value > 0:
		return domain.ClassificationRecebe
	default:
		return domain.ClassificationNeutro
	}
}

// Null-propagating arithmetic: any null operand yields null, and a zero
// divisor yields null instead of panicking or producing Inf.

func addNull(a, b domain.NullFloat) domain.NullFloat {
	if !a.Valid || !b.Valid {
		return domain.NullFloat{}
	}
	return domain.NullFloatFrom(a.Value + b.Value)
}

func subNull(a, b domain.NullFloat) domain.NullFloat {
	if !a.Valid || !b.Valid {
		return domain.NullFloat{}
	}
	return domain.NullFloatFrom(a.Value - b.Value)
}

func mulNull(a, b domain.NullFloat) domain.NullFloat {
	if !a.Valid || !b.Valid {
		return domain.NullFloat{}
	}
	return domain.NullFloatFrom(a.Value * b.Value)
}

func divNull(a, b domain.NullFloat) domain.NullFloat {
	if !a.Valid || !b.Valid || b.Value == 0 {
		return domain.NullFloat{}
	}
	return domain.NullFloatFrom(a.Value / b.Value)
}

// pctChange computes ((num / den) - 1) * 100, null-safe against null or
// zero denominators.
func pctChange(num, den domain.NullFloat) domain.NullFloat {
	ratio := divNull(num, den)
	if !ratio.Valid {
		return domain.NullFloat{}
	}
	return domain.NullFloatFrom((ratio.Value - 1) * 100)
}

// Calculator derives the financial metrics of a run variant.
type Calculator struct {
	logger *slog.Logger
}

// NewCalculator creates a calculator. A nil logger falls back to the default
// logger.
func NewCalculator(logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{logger: logger}
}

// Calculate fills the classification and the metric set of the variant on
// every row. Every formula propagates null instead of failing: any null
// operand, or a null or zero denominator, yields a null metric.
func (c *Calculator) Calculate(rows []domain.EnrichedOperation, variant domain.Variant) {
	for i := range rows {
		row := &rows[i]
		ref := row.Key.RefPrice
		bid := row.BidOfferSum
		qty := row.Quantity

		row.Classification = Classify(bid)

		// Price the operation would exit at right now.
		exit := addNull(ref, bid)
		row.RefBidValue = mulNull(exit, qty)
		row.PercentMovingNow = pctChange(exit, row.Strike)

		switch variant {
		case domain.VariantDashboard:
			row.FinalPrice = addNull(row.MarketPrice, bid)
			row.ProfitPercent = pctChange(row.FinalPrice, row.OpeningPrice)
			row.BidTotal = mulNull(qty, bid)
			row.EntryNotional = mulNull(row.OpeningPrice, qty)
			row.ExitNotional = mulNull(row.FinalPrice, qty)
			row.ProfitAmount = subNull(row.ExitNotional, row.EntryNotional)
		case domain.VariantSaindoHoje:
			row.PriorResult = mulNull(subNull(row.MarketPrice, row.OpeningPrice), qty)
			row.BidTotal = mulNull(bid, qty)
			row.ResultLeavingToday = addNull(row.PriorResult, row.BidTotal)
			base := mulNull(qty, row.OpeningPrice)
			row.PercentLeavingToday = pctChange(addNull(base, row.ResultLeavingToday), base)
		}
	}

	c.logger.Debug("calculated metrics",
		slog.String("variant", string(variant)),
		slog.Int("rows", len(rows)))
}
