package handler

import (
	"time"

	"taxregistry/internal/taxpayer/models"
)

type CreateTaxPayerResponse struct {
	TID models.TID `json:"tid"`
}

type TaxPayerResponse struct {
	TID          models.TID            `json:"tid"`
	FirstName    string                `json:"first_name"`
	LastName     string                `json:"last_name"`
	Address      string                `json:"address"`
	CapitalGains []CapitalGainResponse `json:"capital_gains"`
}

type CapitalGainResponse struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

type TaxPayerListResponse struct {
	TaxPayers []TaxPayerResponse `json:"taxpayers"`
}

func toTaxPayerList(all []*models.TaxPayer) *TaxPayerListResponse {
	out := make([]TaxPayerResponse, 0, len(all))
	for _, tp := range all {
		out = append(out, toTaxPayerResponse(tp))
	}
	return &TaxPayerListResponse{TaxPayers: out}
}

func toTaxPayerResponse(tp *models.TaxPayer) TaxPayerResponse {
	gains := make([]CapitalGainResponse, 0, len(tp.CapitalGains))
	for _, g := range tp.CapitalGains {
		gains = append(gains, CapitalGainResponse{Date: g.Date, Amount: g.Amount})
	}
	return TaxPayerResponse{
		TID:          tp.TID,
		FirstName:    tp.FirstName,
		LastName:     tp.LastName,
		Address:      tp.Address,
		CapitalGains: gains,
	}
}
