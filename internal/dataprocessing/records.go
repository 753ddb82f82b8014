package dataprocessing

import (
	"opsunify/pkg/contracts/domain"
)

// Operations sheet column names, as the desk spreadsheet carries them.
const (
	colTradeDate      = "Data_Operação"
	colAccount        = "Conta_Cliente"
	colOperationType  = "Tipo Operação"
	colOptionType     = "Tipo Opção"
	colAsset          = "Ativo"
	colStrike         = "Preço Exercício"
	colQuantity       = "Quantidade"
	colKnockIn        = "Barreira Knock In"
	colKnockOut       = "Barreira Knock Out"
	colBarrierDir     = "Direção da Barreira"
	colRebate         = "Rebate"
	colFixing         = "Fixing"
	colKnockInReached = "KnockInAtingido"
	colStructure      = "Estrutura"
	colRef            = "Ref"
	colBidOffer       = "Bid(+)/Offer(-)"
	colProductCode    = "Código do Produto"
)

// Advisors sheet column names.
const (
	colAdvAccount = "Conta"
	colAdvName    = "Nome"
	colAdvisor    = "Assessor"
)

// Dashboard sheet column names.
const (
	colDashAccount = "Conta"
	colDashAsset   = "Ativo"
	colDashFixing  = "Data de Fixing"
	colDashOpen    = "Preço de Abertura"
	colDashMarket  = "Preço de Mercado"
)

// ParseOperations converts a validated Operations table into typed legs.
// Text cells keep their trimmed form; price and quantity cells go through
// the canonical numeric coercion so CSV and spreadsheet inputs behave
// identically.
func ParseOperations(t *Table) []domain.OperationLeg {
	legs := make([]domain.OperationLeg, 0, t.Len())
	for _, row := range t.Rows {
		legs = append(legs, domain.OperationLeg{
			TradeDate:        cellString(t.Cell(row, colTradeDate)),
			Account:          cellString(t.Cell(row, colAccount)),
			OperationType:    cellString(t.Cell(row, colOperationType)),
			OptionType:       cellString(t.Cell(row, colOptionType)),
			Asset:            cellString(t.Cell(row, colAsset)),
			Strike:           ParseNumber(t.Cell(row, colStrike)),
			Quantity:         ParseNumber(t.Cell(row, colQuantity)),
			KnockInLevel:     cellString(t.Cell(row, colKnockIn)),
			KnockOutLevel:    cellString(t.Cell(row, colKnockOut)),
			BarrierDirection: cellString(t.Cell(row, colBarrierDir)),
			Rebate:           cellString(t.Cell(row, colRebate)),
			FixingDate:       cellString(t.Cell(row, colFixing)),
			KnockInReached:   cellString(t.Cell(row, colKnockInReached)),
			Structure:        cellString(t.Cell(row, colStructure)),
			RefPrice:         ParseNumber(t.Cell(row, colRef)),
			BidOffer:         ParseNumber(t.Cell(row, colBidOffer)),
			ProductCode:      cellString(t.Cell(row, colProductCode)),
		})
	}
	return legs
}

// ParseAdvisors converts a validated Advisors table into advisor records.
func ParseAdvisors(t *Table) []domain.AdvisorRecord {
	records := make([]domain.AdvisorRecord, 0, t.Len())
	for _, row := range t.Rows {
		records = append(records, domain.AdvisorRecord{
			Account:    cellString(t.Cell(row, colAdvAccount)),
			ClientName: cellString(t.Cell(row, colAdvName)),
			Advisor:    cellString(t.Cell(row, colAdvisor)),
		})
	}
	return records
}

// ParseDashboard converts a validated Dashboard table into dashboard records.
func ParseDashboard(t *Table) []domain.DashboardRecord {
	records := make([]domain.DashboardRecord, 0, t.Len())
	for _, row := range t.Rows {
		records = append(records, domain.DashboardRecord{
			Account:      cellString(t.Cell(row, colDashAccount)),
			Asset:        cellString(t.Cell(row, colDashAsset)),
			FixingDate:   cellString(t.Cell(row, colDashFixing)),
			OpeningPrice: ParseNumber(t.Cell(row, colDashOpen)),
			MarketPrice:  ParseNumber(t.Cell(row, colDashMarket)),
		})
	}
	return records
}

func cellString(s string) domain.NullString {
	if s == "" {
		return domain.NullString{}
	}
	return domain.NullStringFrom(s)
}
