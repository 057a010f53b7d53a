package models

import (
	"slices"
	"time"
)

// Profile holds the mutable identity fields of a taxpayer. They are always
// written together so readers never observe a mix of old and new values.
type Profile struct {
	FirstName string
	LastName  string
	Address   string
}

// CapitalGain is a dated monetary event. It has no identity of its own and
// lives only inside its owning taxpayer.
type CapitalGain struct {
	Date   time.Time
	Amount float64
}

// TaxPayer is the registry's aggregate. CapitalGains is append-only and kept
// in insertion order.
type TaxPayer struct {
	TID          TID
	FirstName    string
	LastName     string
	Address      string
	CapitalGains []CapitalGain
}

func NewTaxPayer(tid TID, p Profile) *TaxPayer {
	t := &TaxPayer{TID: tid}
	t.ApplyProfile(p)
	return t
}

func (t *TaxPayer) Profile() Profile {
	return Profile{FirstName: t.FirstName, LastName: t.LastName, Address: t.Address}
}

// ApplyProfile overwrites all three profile fields. The tid and gains are untouched.
func (t *TaxPayer) ApplyProfile(p Profile) {
	t.FirstName = p.FirstName
	t.LastName = p.LastName
	t.Address = p.Address
}

func (t *TaxPayer) AppendCapitalGain(g CapitalGain) {
	t.CapitalGains = append(t.CapitalGains, g)
}

// Clone returns a deep copy; mutating the copy never affects the original.
func (t *TaxPayer) Clone() *TaxPayer {
	if t == nil {
		return nil
	}
	c := *t
	c.CapitalGains = slices.Clone(t.CapitalGains)
	return &c
}
