package printjob

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ModelRequest struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	StoragePath string `json:"storage_path" validate:"required,max=1024"`
	PublicURL   string `json:"public_url" validate:"omitempty,url"`
}

type SettingsRequest struct {
	FilamentType  string          `json:"filament_type" validate:"required,max=64"`
	Color         string          `json:"color" validate:"required,max=64"`
	LayerHeight   decimal.Decimal `json:"layer_height" validate:"gte=0,lte=1"`
	InfillPercent int             `json:"infill_percent" validate:"gte=0,lte=100"`
	Supports      bool            `json:"supports"`
}

// CreateJobRequest is the body of POST /jobs
type CreateJobRequest struct {
	Model    ModelRequest    `json:"model"`
	Quantity int             `json:"quantity" validate:"required,min=1,max=100"`
	Settings SettingsRequest `json:"settings"`
	Notes    string          `json:"notes" validate:"max=2000"`
}

// QuoteRequest is the body of POST /admin/jobs/{id}/quote
type QuoteRequest struct {
	Hours         decimal.Decimal `json:"hours" validate:"gte=0"`
	Grams         decimal.Decimal `json:"grams" validate:"gte=0"`
	AmountMinor   int64           `json:"amount_minor" validate:"gte=0"`
	QueuePosition int             `json:"queue_position" validate:"omitempty,min=1"`
	Notes         string          `json:"notes" validate:"max=2000"`
}

type DecisionRequest struct {
	Decision string `json:"decision" validate:"required,decision"`
	Message  string `json:"message" validate:"max=2000"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type StartRequest struct {
	ResourceID string `json:"resource_id" validate:"required,max=128"`
}

type CompleteRequest struct {
	Hours  decimal.Decimal `json:"hours" validate:"gte=0"`
	Grams  decimal.Decimal `json:"grams" validate:"gte=0"`
	Photos []string        `json:"photos" validate:"max=10,dive,url"`
}

type ErrorRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

type RefundRequest struct {
	Note string `json:"note" validate:"max=500"`
}

// CreateJobInput is what the service needs to create a job.
type CreateJobInput struct {
	Model    Model
	Quantity int
	Settings Settings
	Notes    string
}

func (r *CreateJobRequest) ToInput() CreateJobInput {
	return CreateJobInput{
		Model: Model{
			Filename:    r.Model.Filename,
			StoragePath: r.Model.StoragePath,
			PublicURL:   r.Model.PublicURL,
		},
		Quantity: r.Quantity,
		Settings: Settings{
			FilamentType:  r.Settings.FilamentType,
			Color:         r.Settings.Color,
			LayerHeight:   r.Settings.LayerHeight,
			InfillPercent: r.Settings.InfillPercent,
			Supports:      r.Settings.Supports,
		},
		Notes: r.Notes,
	}
}

func (r *QuoteRequest) ToQuote(staffID uuid.UUID) Quote {
	return Quote{
		Hours:         r.Hours,
		Grams:         r.Grams,
		AmountMinor:   r.AmountMinor,
		QueuePosition: r.QueuePosition,
		Notes:         r.Notes,
		QuotedBy:      staffID,
	}
}

// ListResponse is a page of jobs.
type ListResponse struct {
	Jobs []*Job `json:"jobs"`
}
