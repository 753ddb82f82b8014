package dataprocessing

import (
	"opsunify/pkg/contracts/domain"
)

// Output column names. The base list mirrors the desk's unified-operations
// sheet: `Nome` surfaces as `Nome Cliente`, `Bid(+)/Offer(-)` as
// `Paga/Recebe` and `Código do Produto` as `Cod Produto`. The dashboard and
// leaving-today variants append their metric columns.
const (
	outClientName     = "Nome Cliente"
	outPagaRecebe     = "Paga/Recebe"
	outClassification = "Cliente_Paga_Recebe"
	outRefBid         = "Ref+Bid"
	outPercentNow     = "% Saindo agora"
	outProductCode    = "Cod Produto"

	outOpeningPrice  = "Preço de Abertura"
	outMarketPrice   = "Preço de Mercado"
	outFinalPrice    = "Preço Final"
	outProfitPct     = "% Lucro"
	outBidTotal      = "Total Bid"
	outEntryNotional = "Nocional Entrada"
	outExitNotional  = "Nocional Saída"
	outProfitAmount  = "Lucro (R$)"

	outPriorResult  = "Resultado Anterior"
	outResultToday  = "Resultado Saindo Hoje"
	outPercentToday = "% Saindo Hoje"
)

var baseColumns = []string{
	colTradeDate,
	colAccount,
	colAdvisor,
	outClientName,
	colAsset,
	colStrike,
	colQuantity,
	colKnockIn,
	colKnockOut,
	colBarrierDir,
	colFixing,
	colKnockInReached,
	colStructure,
	colRef,
	outPagaRecebe,
	outClassification,
	outRefBid,
	outPercentNow,
	outProductCode,
}

var dashboardColumns = []string{
	outOpeningPrice,
	outMarketPrice,
	outFinalPrice,
	outProfitPct,
	outBidTotal,
	outEntryNotional,
	outExitNotional,
	outProfitAmount,
}

var saindoHojeColumns = []string{
	outOpeningPrice,
	outMarketPrice,
	outPriorResult,
	outBidTotal,
	outResultToday,
	outPercentToday,
}

// ResultBuilder projects enriched operations into the exportable table of a
// variant: numeric columns carry float64 cells (nil when null), display
// columns carry the formatted strings.
type ResultBuilder struct {
	formatter *Formatter
}

// NewResultBuilder creates a builder with a pt-BR formatter.
func NewResultBuilder() *ResultBuilder {
	return &ResultBuilder{formatter: NewFormatter()}
}

// Columns returns the output column list of a variant.
func (b *ResultBuilder) Columns(variant domain.Variant) []string {
	cols := append([]string(nil), baseColumns...)
	switch variant {
	case domain.VariantDashboard:
		cols = append(cols, dashboardColumns...)
	case domain.VariantSaindoHoje:
		cols = append(cols, saindoHojeColumns...)
	}
	return cols
}

// Build renders one row per enriched operation, in input order.
func (b *ResultBuilder) Build(rows []domain.EnrichedOperation, variant domain.Variant) *domain.ResultTable {
	table := &domain.ResultTable{
		Columns: b.Columns(variant),
		Rows:    make([][]any, 0, len(rows)),
	}
	for i := range rows {
		table.Rows = append(table.Rows, b.buildRow(&rows[i], variant))
	}
	return table
}

func (b *ResultBuilder) buildRow(row *domain.EnrichedOperation, variant domain.Variant) []any {
	cells := make([]any, 0, len(baseColumns)+len(dashboardColumns))
	cells = append(cells,
		textCell(row.Key.TradeDate),
		accountCell(row.Key.Account),
		textCell(row.Advisor),
		textCell(row.ClientName),
		textCell(row.Key.Asset),
		numCell(row.Strike),
		numCell(row.Quantity),
		textCell(row.KnockInLevel),
		textCell(row.KnockOutLevel),
		textCell(row.BarrierDirection),
		textCell(row.Key.FixingDate),
		textCell(row.KnockInReached),
		textCell(row.Key.Structure),
		numCell(row.Key.RefPrice),
		numCell(row.BidOfferSum),
		string(row.Classification),
		b.formatter.Currency(row.RefBidValue),
		b.formatter.Percent(row.PercentMovingNow),
		textCell(row.Key.ProductCode),
	)
	switch variant {
	case domain.VariantDashboard:
		cells = append(cells,
			numCell(row.OpeningPrice),
			numCell(row.MarketPrice),
			numCell(row.FinalPrice),
			b.formatter.Percent(row.ProfitPercent),
			numCell(row.BidTotal),
			numCell(row.EntryNotional),
			numCell(row.ExitNotional),
			b.formatter.Currency(row.ProfitAmount),
		)
	case domain.VariantSaindoHoje:
		cells = append(cells,
			numCell(row.OpeningPrice),
			numCell(row.MarketPrice),
			numCell(row.PriorResult),
			numCell(row.BidTotal),
			numCell(row.ResultLeavingToday),
			b.formatter.Percent(row.PercentLeavingToday),
		)
	}
	return cells
}

// textCell renders a nullable string cell; null becomes a nil cell.
func textCell(v domain.NullString) any {
	if !v.Valid {
		return nil
	}
	return v.Value
}

// numCell renders a nullable numeric cell; null becomes a nil cell.
func numCell(v domain.NullFloat) any {
	if !v.Valid {
		return nil
	}
	return v.Value
}

// accountCell writes numeric-looking accounts as numbers, the way the desk
// sheets carry them, falling back to the raw text otherwise.
func accountCell(v domain.NullString) any {
	if !v.Valid {
		return nil
	}
	if n := ParseNumber(v.Value); n.Valid {
		return n.Value
	}
	return v.Value
}
