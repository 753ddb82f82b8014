package dataprocessing

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"opsunify/pkg/contracts/domain"
)

// Formatter renders numbers in the Brazilian display conventions of the
// result sheet. Formatting is cosmetic only: the numeric columns keep their
// raw values; these strings land in dedicated display columns.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter creates a pt-BR formatter.
func NewFormatter() *Formatter {
	return &Formatter{printer: message.NewPrinter(language.BrazilianPortuguese)}
}

// Currency renders "R$ 1.234,50" style: period for thousands, comma for
// decimals, always two places. Null renders "".
func (f *Formatter) Currency(v domain.NullFloat) string {
	if !v.Valid {
		return ""
	}
	return "R$ " + f.printer.Sprint(number.Decimal(v.Value, number.Scale(2)))
}

// Percent renders two decimals with a comma decimal separator and a trailing
// "%". No thousands grouping. Null renders "".
func (f *Formatter) Percent(v domain.NullFloat) string {
	if !v.Valid {
		return ""
	}
	return strings.ReplaceAll(strconv.FormatFloat(v.Value, 'f', 2, 64), ".", ",") + "%"
}
