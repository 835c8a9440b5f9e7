package validator

import (
	"testing"

	"github.com/shopspring/decimal"
)

type item struct {
	Grams decimal.Decimal `json:"grams" validate:"gt=0"`
}

type sample struct {
	Decision string          `json:"decision" validate:"required,decision"`
	Hours    decimal.Decimal `json:"hours" validate:"gte=0"`
	Items    []item          `json:"items" validate:"dive"`
}

func TestValidateDecimalsAndCustomTags(t *testing.T) {
	ok := sample{
		Decision: "approved",
		Hours:    decimal.RequireFromString("1.5"),
		Items:    []item{{Grams: decimal.NewFromInt(10)}},
	}
	if errs := Validate(&ok); errs != nil {
		t.Fatalf("expected no errors, got %v", errs)
	}

	bad := sample{
		Decision: "maybe",
		Hours:    decimal.NewFromInt(-1),
		Items:    []item{{Grams: decimal.Zero}},
	}
	errs := Validate(&bad)
	for _, field := range []string{"decision", "hours", "items[0].grams"} {
		if _, found := errs[field]; !found {
			t.Errorf("expected error for %s, got %v", field, errs)
		}
	}
}
