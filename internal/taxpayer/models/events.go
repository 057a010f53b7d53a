package models

import "time"

// Domain events describe committed registry changes. The service hands them
// to its publisher after the mutation has taken effect.

const (
	EventTaxPayerCreated  = "taxpayer.created"
	EventTaxPayerUpdated  = "taxpayer.updated"
	EventTaxPayerDeleted  = "taxpayer.deleted"
	EventCapitalGainAdded = "taxpayer.capital_gain_added"
)

// Event is implemented by every registry event.
type Event interface {
	EventType() string
	AggregateID() TID
}

type TaxPayerCreated struct {
	TID        TID       `json:"tid"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Address    string    `json:"address"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e TaxPayerCreated) EventType() string { return EventTaxPayerCreated }
func (e TaxPayerCreated) AggregateID() TID  { return e.TID }

type TaxPayerUpdated struct {
	TID        TID       `json:"tid"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Address    string    `json:"address"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e TaxPayerUpdated) EventType() string { return EventTaxPayerUpdated }
func (e TaxPayerUpdated) AggregateID() TID  { return e.TID }

type TaxPayerDeleted struct {
	TID        TID       `json:"tid"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e TaxPayerDeleted) EventType() string { return EventTaxPayerDeleted }
func (e TaxPayerDeleted) AggregateID() TID  { return e.TID }

type CapitalGainAdded struct {
	TID        TID       `json:"tid"`
	Date       time.Time `json:"date"`
	Amount     float64   `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e CapitalGainAdded) EventType() string { return EventCapitalGainAdded }
func (e CapitalGainAdded) AggregateID() TID  { return e.TID }
