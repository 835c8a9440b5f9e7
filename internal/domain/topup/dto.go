package topup

import "github.com/shopspring/decimal"

type ItemRequest struct {
	Material string          `json:"material" validate:"required,max=64"`
	Color    string          `json:"color" validate:"required,max=64"`
	Grams    decimal.Decimal `json:"grams" validate:"gt=0"`
}

// CreateTopUpRequest is the body of POST /topups
type CreateTopUpRequest struct {
	Hours       decimal.Decimal `json:"hours" validate:"gte=0"`
	Items       []ItemRequest   `json:"items" validate:"max=20,dive"`
	AmountMinor int64           `json:"amount_minor" validate:"gte=0"`
	Note        string          `json:"note" validate:"max=500"`
}

type RejectRequest struct {
	Note string `json:"note" validate:"max=500"`
}

// CreateInput is what the service needs to create a request.
type CreateInput struct {
	Hours       decimal.Decimal
	Items       []ItemInput
	AmountMinor int64
	Note        string
}

// ItemInput carries free-text material and color.
type ItemInput struct {
	Material string
	Color    string
	Grams    decimal.Decimal
}

func (r *CreateTopUpRequest) ToInput() CreateInput {
	in := CreateInput{Hours: r.Hours, AmountMinor: r.AmountMinor, Note: r.Note}
	for _, it := range r.Items {
		in.Items = append(in.Items, ItemInput{Material: it.Material, Color: it.Color, Grams: it.Grams})
	}
	return in
}

type ListResponse struct {
	TopUps []*TopUp `json:"topups"`
}
