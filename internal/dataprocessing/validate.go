package dataprocessing

import (
	"fmt"
	"sort"
	"strings"
)

// Required input columns. Validation runs before anything else touches a
// table; the typed parsers assume these exist.
var (
	RequiredAdvisorColumns = []string{colAdvAccount, colAdvName, colAdvisor}

	RequiredOperationColumns = []string{
		colTradeDate,
		colAccount,
		colOperationType,
		colOptionType,
		colAsset,
		colStrike,
		colQuantity,
		colKnockIn,
		colKnockOut,
		colBarrierDir,
		colRebate,
		colFixing,
		colKnockInReached,
		colStructure,
		colRef,
		colBidOffer,
		colProductCode,
	}

	RequiredDashboardColumns = []string{
		colDashAccount,
		colDashAsset,
		colDashFixing,
		colDashOpen,
		colDashMarket,
	}
)

// SchemaError reports required columns missing from an input table. It is
// fatal: the pipeline aborts before any computation, producing no partial
// output.
type SchemaError struct {
	Table   string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("table %s: missing required columns: %s", e.Table, strings.Join(e.Missing, ", "))
}

// ValidateColumns checks that every required column exists in the table and
// returns a *SchemaError naming the missing ones, sorted. It does not mutate
// the table.
func ValidateColumns(t *Table, required []string) error {
	var missing []string
	for _, col := range required {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &SchemaError{Table: t.Name, Missing: missing}
}
