package wallet

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/printhub/printhub-api/internal/domain/filament"
)

// BucketResponse is one filament balance.
type BucketResponse struct {
	Material  filament.Material `json:"material"`
	Color     filament.Color    `json:"color"`
	Grams     decimal.Decimal   `json:"grams"`
	Debitable bool              `json:"debitable"`
}

// Response is the wallet as shown to clients.
type Response struct {
	UserID   uuid.UUID        `json:"user_id"`
	Hours    decimal.Decimal  `json:"hours"`
	Filament []BucketResponse `json:"filament"`
}

func ToResponse(w *Wallet) *Response {
	out := &Response{UserID: w.UserID, Hours: w.Hours, Filament: []BucketResponse{}}
	for _, b := range w.Buckets() {
		out.Filament = append(out.Filament, BucketResponse{
			Material:  b.Material,
			Color:     b.Color,
			Grams:     w.Grams(b),
			Debitable: b.Debitable(),
		})
	}
	return out
}
