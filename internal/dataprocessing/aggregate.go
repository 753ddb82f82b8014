package dataprocessing

import (
	"log/slog"
	"sort"
	"strings"

	"opsunify/pkg/contracts/domain"
)

// The aggregation step reduces every column with one of a small closed set
// of named strategies, so each strategy is testable on its own, independent
// of the grouping mechanics.

// DistinctSortedJoin collects distinct non-null strings and renders them
// sorted and joined with a separator. No values renders "".
type DistinctSortedJoin struct {
	sep  string
	seen map[string]struct{}
}

// NewDistinctSortedJoin returns a reducer joining with sep.
func NewDistinctSortedJoin(sep string) *DistinctSortedJoin {
	return &DistinctSortedJoin{sep: sep, seen: make(map[string]struct{})}
}

// Add feeds one cell. Nulls are ignored.
func (r *DistinctSortedJoin) Add(v domain.NullString) {
	if v.Valid {
		r.seen[v.Value] = struct{}{}
	}
}

// Result renders the accumulated values.
func (r *DistinctSortedJoin) Result() string {
	values := make([]string, 0, len(r.seen))
	for v := range r.seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return strings.Join(values, r.sep)
}

// FirstNonNull keeps the first valid value in arrival order; null when every
// input was null.
type FirstNonNull struct {
	value domain.NullString
}

// Add feeds one cell.
func (r *FirstNonNull) Add(v domain.NullString) {
	if !r.value.Valid && v.Valid {
		r.value = v
	}
}

// Value returns the captured value.
func (r *FirstNonNull) Value() domain.NullString { return r.value }

// MinFloat keeps the smallest valid value; null when every input was null.
type MinFloat struct {
	value domain.NullFloat
}

// Add feeds one cell.
func (r *MinFloat) Add(v domain.NullFloat) {
	if !v.Valid {
		return
	}
	if !r.value.Valid || v.Value < r.value.Value {
		r.value = v
	}
}

// Value returns the minimum.
func (r *MinFloat) Value() domain.NullFloat { return r.value }

// MaxFloat keeps the largest valid value; null when every input was null.
type MaxFloat struct {
	value domain.NullFloat
}

// Add feeds one cell.
func (r *MaxFloat) Add(v domain.NullFloat) {
	if !v.Valid {
		return
	}
	if !r.value.Valid || v.Value > r.value.Value {
		r.value = v
	}
}

// Value returns the maximum.
func (r *MaxFloat) Value() domain.NullFloat { return r.value }

// SumFloat sums valid values, counting nulls as 0. The result is always a
// number: an all-null group sums to 0.
type SumFloat struct {
	total float64
}

// Add feeds one cell.
func (r *SumFloat) Add(v domain.NullFloat) {
	if v.Valid {
		r.total += v.Value
	}
}

// Value returns the sum.
func (r *SumFloat) Value() domain.NullFloat { return domain.NullFloatFrom(r.total) }

// groupState carries the per-column reducers of one group key.
type groupState struct {
	operationTypes *DistinctSortedJoin
	optionTypes    *DistinctSortedJoin
	strike         MinFloat
	quantity       MaxFloat
	knockIn        FirstNonNull
	knockOut       FirstNonNull
	barrierDir     FirstNonNull
	rebate         FirstNonNull
	knockInReached FirstNonNull
	bidOffer       SumFloat
	legs           int
}

func newGroupState() *groupState {
	return &groupState{
		operationTypes: NewDistinctSortedJoin(", "),
		optionTypes:    NewDistinctSortedJoin(", "),
	}
}

func (g *groupState) add(leg domain.OperationLeg) {
	g.operationTypes.Add(leg.OperationType)
	g.optionTypes.Add(leg.OptionType)
	g.strike.Add(leg.Strike)
	g.quantity.Add(leg.Quantity)
	g.knockIn.Add(leg.KnockInLevel)
	g.knockOut.Add(leg.KnockOutLevel)
	g.barrierDir.Add(leg.BarrierDirection)
	g.rebate.Add(leg.Rebate)
	g.knockInReached.Add(leg.KnockInReached)
	g.bidOffer.Add(leg.BidOffer)
	g.legs++
}

// Aggregator unifies operation legs into one row per group key, preserving
// the order in which keys first appear in the input.
type Aggregator struct {
	logger *slog.Logger
}

// NewAggregator creates an aggregator. A nil logger falls back to the
// default logger.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger}
}

// Aggregate groups legs by key and reduces each group to one unified
// operation. Null key components are valid distinct values: legs whose keys
// share the same nulls unify together. No group is dropped, even when every
// non-key column of it is null.
func (a *Aggregator) Aggregate(legs []domain.OperationLeg) []domain.UnifiedOperation {
	groups := make(map[domain.GroupKey]*groupState)
	order := make([]domain.GroupKey, 0)

	for _, leg := range legs {
		key := leg.Key()
		state, ok := groups[key]
		if !ok {
			state = newGroupState()
			groups[key] = state
			order = append(order, key)
		}
		state.add(leg)
	}

	unified := make([]domain.UnifiedOperation, 0, len(order))
	for _, key := range order {
		state := groups[key]
		unified = append(unified, domain.UnifiedOperation{
			Key:              key,
			OperationTypes:   state.operationTypes.Result(),
			OptionTypes:      state.optionTypes.Result(),
			Strike:           state.strike.Value(),
			Quantity:         state.quantity.Value(),
			KnockInLevel:     state.knockIn.Value(),
			KnockOutLevel:    state.knockOut.Value(),
			BarrierDirection: state.barrierDir.Value(),
			Rebate:           state.rebate.Value(),
			KnockInReached:   state.knockInReached.Value(),
			BidOfferSum:      state.bidOffer.Value(),
			LegCount:         state.legs,
		})
	}

	a.logger.Debug("aggregated operation legs",
		slog.Int("legs_in", len(legs)),
		slog.Int("operations_out", len(unified)))
	return unified
}
