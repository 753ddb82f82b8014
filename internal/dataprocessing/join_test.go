package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsunify/pkg/contracts/domain"
)

func unifiedOp(account, asset, fixing string) domain.UnifiedOperation {
	return domain.UnifiedOperation{
		Key: domain.GroupKey{
			Account:    domain.NullStringFrom(account),
			Asset:      domain.NullStringFrom(asset),
			FixingDate: domain.NullStringFrom(fixing),
		},
	}
}

func advisor(account, name, advisorName string) domain.AdvisorRecord {
	return domain.AdvisorRecord{
		Account:    domain.NullStringFrom(account),
		ClientName: domain.NullStringFrom(name),
		Advisor:    domain.NullStringFrom(advisorName),
	}
}

func TestJoinAdvisorsMatchesOnNumericAccount(t *testing.T) {
	ops := []domain.UnifiedOperation{
		unifiedOp("1234", "PETR4", "15/01/2024"),
		unifiedOp("999", "VALE3", "15/01/2024"),
	}
	advisors := []domain.AdvisorRecord{
		advisor("1234,00", "Maria", "Assessor A"),
	}

	rows, matched := NewJoiner(nil).JoinAdvisors(ops, advisors)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, matched)

	assert.Equal(t, domain.NullStringFrom("Maria"), rows[0].ClientName)
	assert.Equal(t, domain.NullStringFrom("Assessor A"), rows[0].Advisor)
	assert.False(t, rows[1].ClientName.Valid)
	assert.False(t, rows[1].Advisor.Valid)
}

func TestJoinAdvisorsFirstRecordWins(t *testing.T) {
	ops := []domain.UnifiedOperation{unifiedOp("100", "PETR4", "")}
	advisors := []domain.AdvisorRecord{
		advisor("100", "Primeiro", "A1"),
		advisor("100,0", "Segundo", "A2"),
	}

	rows, matched := NewJoiner(nil).JoinAdvisors(ops, advisors)
	assert.Equal(t, 1, matched)
	assert.Equal(t, domain.NullStringFrom("Primeiro"), rows[0].ClientName)
}

func TestJoinAdvisorsNullAccountNeverMatches(t *testing.T) {
	op := domain.UnifiedOperation{}
	advisors := []domain.AdvisorRecord{advisor("abc", "Ninguem", "A1")}

	rows, matched := NewJoiner(nil).JoinAdvisors([]domain.UnifiedOperation{op}, advisors)
	assert.Equal(t, 0, matched)
	assert.False(t, rows[0].Advisor.Valid)
}

func dashRecord(account, asset, fixing string, opening, market float64) domain.DashboardRecord {
	return domain.DashboardRecord{
		Account:      domain.NullStringFrom(account),
		Asset:        domain.NullStringFrom(asset),
		FixingDate:   domain.NullStringFrom(fixing),
		OpeningPrice: domain.NullFloatFrom(opening),
		MarketPrice:  domain.NullFloatFrom(market),
	}
}

func TestJoinDashboardNormalizesKeyComponents(t *testing.T) {
	rows := []domain.EnrichedOperation{
		{UnifiedOperation: unifiedOp("1234", "PETR4", "15/01/2024")},
	}
	dashboard := []domain.DashboardRecord{
		dashRecord("1234,00", " petr4 ", "2024-01-15", 10.0, 11.0),
	}

	matched := NewJoiner(nil).JoinDashboard(rows, dashboard)
	assert.Equal(t, 1, matched)
	assert.Equal(t, domain.NullFloatFrom(10.0), rows[0].OpeningPrice)
	assert.Equal(t, domain.NullFloatFrom(11.0), rows[0].MarketPrice)
}

func TestJoinDashboardDuplicateKeysFirstWins(t *testing.T) {
	rows := []domain.EnrichedOperation{
		{UnifiedOperation: unifiedOp("100", "VALE3", "10/02/2024")},
	}
	dashboard := []domain.DashboardRecord{
		dashRecord("100", "VALE3", "10/02/2024", 50.0, 55.0),
		dashRecord("100", "VALE3", "10/02/2024", 60.0, 66.0),
	}

	matched := NewJoiner(nil).JoinDashboard(rows, dashboard)
	assert.Equal(t, 1, matched)
	assert.Equal(t, domain.NullFloatFrom(50.0), rows[0].OpeningPrice)
}

func TestJoinDashboardNullComponentNeverMatches(t *testing.T) {
	rows := []domain.EnrichedOperation{
		{UnifiedOperation: unifiedOp("100", "VALE3", "sem data")},
	}
	dashboard := []domain.DashboardRecord{
		dashRecord("100", "VALE3", "sem data", 50.0, 55.0),
	}

	matched := NewJoiner(nil).JoinDashboard(rows, dashboard)
	assert.Equal(t, 0, matched)
	assert.False(t, rows[0].OpeningPrice.Valid)
}

func TestJoinDashboardKeepsRowCount(t *testing.T) {
	rows := []domain.EnrichedOperation{
		{UnifiedOperation: unifiedOp("1", "A", "01/01/2024")},
		{UnifiedOperation: unifiedOp("2", "B", "01/01/2024")},
		{UnifiedOperation: unifiedOp("3", "C", "01/01/2024")},
	}
	dashboard := []domain.DashboardRecord{
		dashRecord("2", "B", "01/01/2024", 1, 2),
	}

	matched := NewJoiner(nil).JoinDashboard(rows, dashboard)
	assert.Equal(t, 1, matched)
	assert.Len(t, rows, 3)
	assert.False(t, rows[0].OpeningPrice.Valid)
	assert.True(t, rows[1].OpeningPrice.Valid)
	assert.False(t, rows[2].OpeningPrice.Valid)
}
