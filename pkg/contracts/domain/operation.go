// Package domain contains the core domain models for the operation
// unification pipeline. These types serve as the Single Source of Truth
// (SSOT) for all layers of the application.
package domain

import (
	"fmt"
	"strings"
)

// OperationLeg is one raw row of the Operations input. Several legs can
// belong to the same logical trade; the Aggregate step unifies them.
// Text cells keep their trimmed source form; numeric cells are coerced at
// parse time with the canonical Brazilian-format rules.
type OperationLeg struct {
	TradeDate        NullString `json:"trade_date"`
	Account          NullString `json:"account"`
	OperationType    NullString `json:"operation_type"`
	OptionType       NullString `json:"option_type"`
	Asset            NullString `json:"asset"`
	Strike           NullFloat  `json:"strike"`
	Quantity         NullFloat  `json:"quantity"`
	KnockInLevel     NullString `json:"knock_in_level"`
	KnockOutLevel    NullString `json:"knock_out_level"`
	BarrierDirection NullString `json:"barrier_direction"`
	Rebate           NullString `json:"rebate"`
	FixingDate       NullString `json:"fixing_date"`
	KnockInReached   NullString `json:"knock_in_reached"`
	Structure        NullString `json:"structure"`
	RefPrice         NullFloat  `json:"ref_price"`
	BidOffer         NullFloat  `json:"bid_offer"`
	ProductCode      NullString `json:"product_code"`
}

// GroupKey identifies one logical trade. Null components are valid distinct
// key values: legs with the same nulls group together. All fields are
// comparable so the key can index a map directly.
type GroupKey struct {
	TradeDate   NullString `json:"trade_date"`
	Account     NullString `json:"account"`
	Asset       NullString `json:"asset"`
	FixingDate  NullString `json:"fixing_date"`
	Structure   NullString `json:"structure"`
	RefPrice    NullFloat  `json:"ref_price"`
	ProductCode NullString `json:"product_code"`
}

// Key extracts the grouping key of a leg.
func (l OperationLeg) Key() GroupKey {
	return GroupKey{
		TradeDate:   l.TradeDate,
		Account:     l.Account,
		Asset:       l.Asset,
		FixingDate:  l.FixingDate,
		Structure:   l.Structure,
		RefPrice:    l.RefPrice,
		ProductCode: l.ProductCode,
	}
}

// UnifiedOperation is the aggregation of all legs sharing one GroupKey.
// OperationTypes and OptionTypes hold the distinct non-null values sorted
// and joined with ", " (empty when every leg was null). Strike is the group
// minimum, Quantity the maximum, the barrier fields the first non-null in
// source order, and BidOfferSum the null-as-zero sum (always valid: an
// all-null group sums to 0).
type UnifiedOperation struct {
	Key              GroupKey   `json:"key"`
	OperationTypes   string     `json:"operation_types"`
	OptionTypes      string     `json:"option_types"`
	Strike           NullFloat  `json:"strike"`
	Quantity         NullFloat  `json:"quantity"`
	KnockInLevel     NullString `json:"knock_in_level"`
	KnockOutLevel    NullString `json:"knock_out_level"`
	BarrierDirection NullString `json:"barrier_direction"`
	Rebate           NullString `json:"rebate"`
	KnockInReached   NullString `json:"knock_in_reached"`
	BidOfferSum      NullFloat  `json:"bid_offer_sum"`
	LegCount         int        `json:"leg_count"`
}

// Classification is the payout direction of a unified operation.
type Classification string

const (
	ClassificationPaga   Classification = "PAGA"
	ClassificationRecebe Classification = "RECEBE"
	ClassificationNeutro Classification = "NEUTRO"
)

// Variant selects which enrichment and metric set a pipeline run computes.
type Variant string

const (
	// VariantBase unifies legs, joins advisors and derives the
	// reference-price metrics. No dashboard input.
	VariantBase Variant = "base"
	// VariantDashboard additionally joins the market dashboard and derives
	// the opening/market-price profit metrics.
	VariantDashboard Variant = "dashboard"
	// VariantSaindoHoje is the dashboard variant with the leaving-today
	// metric formulation.
	VariantSaindoHoje Variant = "saindo_hoje"
)

// ParseVariant normalizes and validates a variant name. The empty string is
// accepted: it means "resolve against the available inputs" and is settled
// by the pipeline, not here.
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantBase, VariantDashboard, VariantSaindoHoje, "":
		return v, nil
	default:
		return "", fmt.Errorf("unknown variant %q (valid: %s, %s, %s)",
			s, VariantBase, VariantDashboard, VariantSaindoHoje)
	}
}

// EnrichedOperation is a UnifiedOperation after the reference joins and the
// metric pass. Created once per run, never mutated afterwards. Metric fields
// for variants that did not run stay null.
type EnrichedOperation struct {
	UnifiedOperation

	Advisor      NullString `json:"advisor"`
	ClientName   NullString `json:"client_name"`
	OpeningPrice NullFloat  `json:"opening_price"`
	MarketPrice  NullFloat  `json:"market_price"`

	Classification Classification `json:"classification"`

	// Reference-price metrics (every variant).
	RefBidValue      NullFloat `json:"ref_bid_value"`
	PercentMovingNow NullFloat `json:"percent_moving_now"`

	// Dashboard metrics.
	FinalPrice    NullFloat `json:"final_price"`
	ProfitPercent NullFloat `json:"profit_percent"`
	BidTotal      NullFloat `json:"bid_total"`
	EntryNotional NullFloat `json:"entry_notional"`
	ExitNotional  NullFloat `json:"exit_notional"`
	ProfitAmount  NullFloat `json:"profit_amount"`

	// Leaving-today metrics.
	PriorResult         NullFloat `json:"prior_result"`
	ResultLeavingToday  NullFloat `json:"result_leaving_today"`
	PercentLeavingToday NullFloat `json:"percent_leaving_today"`
}
