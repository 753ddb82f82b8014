package dataprocessing

import (
	"log/slog"

	"opsunify/pkg/contracts/domain"
)

// Joiner enriches unified operations with reference data using left-join
// semantics: the operations side never gains or loses rows.
type Joiner struct {
	logger *slog.Logger
}

// NewJoiner creates a joiner. A nil logger falls back to the default logger.
func NewJoiner(logger *slog.Logger) *Joiner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Joiner{logger: logger}
}

// JoinAdvisors left-joins advisor records on the numeric account form. The
// first advisor record per account wins; non-numeric accounts never match.
// Returns the enriched rows and how many matched.
func (j *Joiner) JoinAdvisors(ops []domain.UnifiedOperation, advisors []domain.AdvisorRecord) ([]domain.EnrichedOperation, int) {
	index := make(map[float64]domain.AdvisorRecord, len(advisors))
	for _, rec := range advisors {
		key := AccountNumber(rec.Account)
		if !key.Valid {
			continue
		}
		if _, ok := index[key.Value]; !ok {
			index[key.Value] = rec
		}
	}

	rows := make([]domain.EnrichedOperation, len(ops))
	matched := 0
	for i, op := range ops {
		rows[i] = domain.EnrichedOperation{UnifiedOperation: op}
		key := AccountNumber(op.Key.Account)
		if !key.Valid {
			continue
		}
		if rec, ok := index[key.Value]; ok {
			rows[i].Advisor = rec.Advisor
			rows[i].ClientName = rec.ClientName
			matched++
		}
	}

	j.logger.Debug("joined advisors",
		slog.Int("operations", len(ops)),
		slog.Int("advisors", len(advisors)),
		slog.Int("matched", matched))
	return rows, matched
}

// dashboardKey is the composite dashboard join key after normalization.
type dashboardKey struct {
	account float64
	asset   string
	date    domain.NullDate
}

// dashboardKeyFor normalizes one side of the dashboard join. ok is false
// when any component is null; null components never match anything.
func dashboardKeyFor(account, asset, fixing domain.NullString) (dashboardKey, bool) {
	acct := AccountNumber(account)
	sym := NormalizeAsset(asset)
	date := ParseDate(fixing.Or(""))
	if !acct.Valid || !sym.Valid || !date.Valid {
		return dashboardKey{}, false
	}
	return dashboardKey{account: acct.Value, asset: sym.Value, date: date}, true
}

// JoinDashboard left-joins dashboard records on (account, normalized asset,
// fixing day). Duplicate dashboard keys are dropped up front, first
// occurrence wins. Rows are enriched in place; the match count is returned.
func (j *Joiner) JoinDashboard(rows []domain.EnrichedOperation, dashboard []domain.DashboardRecord) int {
	index := make(map[dashboardKey]domain.DashboardRecord, len(dashboard))
	for _, rec := range dashboard {
		key, ok := dashboardKeyFor(rec.Account, rec.Asset, rec.FixingDate)
		if !ok {
			continue
		}
		if _, seen := index[key]; !seen {
			index[key] = rec
		}
	}

	matched := 0
	for i := range rows {
		key, ok := dashboardKeyFor(rows[i].Key.Account, rows[i].Key.Asset, rows[i].Key.FixingDate)
		if !ok {
			continue
		}
		if rec, found := index[key]; found {
			rows[i].OpeningPrice = rec.OpeningPrice
			rows[i].MarketPrice = rec.MarketPrice
			matched++
		}
	}

	j.logger.Debug("joined dashboard",
		slog.Int("operations", len(rows)),
		slog.Int("dashboard_records", len(dashboard)),
		slog.Int("matched", matched))
	return matched
}
