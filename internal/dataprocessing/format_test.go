package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"opsunify/pkg/contracts/domain"
)

func TestFormatterCurrency(t *testing.T) {
	tests := []struct {
		name string
		in   domain.NullFloat
		want string
	}{
		{"thousands and decimals", domain.NullFloatFrom(1234.5), "R$ 1.234,50"},
		{"negative", domain.NullFloatFrom(-1234.5), "R$ -1.234,50"},
		{"million grouping", domain.NullFloatFrom(1000000), "R$ 1.000.000,00"},
		{"small value", domain.NullFloatFrom(2.5), "R$ 2,50"},
		{"zero", domain.NullFloatFrom(0), "R$ 0,00"},
		{"rounds to two places", domain.NullFloatFrom(1.006), "R$ 1,01"},
		{"null renders empty", domain.NullFloat{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewFormatter().Currency(tt.in))
		})
	}
}

func TestFormatterPercent(t *testing.T) {
	tests := []struct {
		name string
		in   domain.NullFloat
		want string
	}{
		{"two decimals", domain.NullFloatFrom(21.052631578947366), "21,05%"},
		{"negative", domain.NullFloatFrom(-12.5), "-12,50%"},
		{"no thousands grouping", domain.NullFloatFrom(1234.5), "1234,50%"},
		{"zero", domain.NullFloatFrom(0), "0,00%"},
		{"null renders empty", domain.NullFloat{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewFormatter().Percent(tt.in))
		})
	}
}
