package filament

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFitsColumn(t *testing.T) {
	cases := map[string]bool{
		"0":               true,
		"1.5":             true,
		"0.0001":          true,
		"-2.25":           true,
		"9999999999.9999": true,
		"0.00005":         false,
		"1.23456":         false,
		"10000000000":     false,
		"-10000000000":    false,
	}
	for in, want := range cases {
		if got := FitsColumn(decimal.RequireFromString(in)); got != want {
			t.Errorf("FitsColumn(%s) = %v, want %v", in, got, want)
		}
	}
}
