package handler

import (
	"time"

	dErrors "taxregistry/pkg/domain-errors"
)

// TaxPayerRequest carries the three profile fields for create and update.
// Fields are taken as given; absent fields are empty strings.
type TaxPayerRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
}

// CapitalGainRequest carries one gain. Date is RFC 3339 with optional
// fractional seconds down to nanoseconds.
type CapitalGainRequest struct {
	Date   *time.Time `json:"date"`
	Amount *float64   `json:"amount"`
}

// Validate only checks that both fields were sent. Any date and any amount,
// including negative ones, are accepted.
func (r *CapitalGainRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Date == nil {
		return dErrors.New(dErrors.CodeValidation, "date is required")
	}
	if r.Amount == nil {
		return dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	return nil
}
