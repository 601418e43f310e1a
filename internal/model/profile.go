package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProfileType distinguishes the two kinds of platform users.
type ProfileType string

const (
	ProfileBeneficiary ProfileType = "beneficiary"
	ProfileStore       ProfileType = "store"
)

// Profile is a local user record addressable by its on-chain address.
// This subsystem only reads profiles; they are managed elsewhere.
type Profile struct {
	ID            string
	Email         string
	Address       string
	Type          ProfileType
	Data          map[string]any
	TermsAccepted bool
	ActiveSince   *time.Time
	ActiveUntil   *time.Time
	BalanceTokens decimal.Decimal
	BalanceNative decimal.Decimal
}

// StoreID returns the merchant identifier for store profiles, falling back
// to the on-chain address when the data bag does not carry one.
func (p *Profile) StoreID() string {
	if p == nil {
		return ""
	}
	if id, ok := p.Data["store_id"].(string); ok && id != "" {
		return id
	}
	return p.Address
}

// AidFunds returns the configured monthly distribution amount for a
// beneficiary, or zero when none is set.
func (p *Profile) AidFunds() decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	switch v := p.Data["aid_funds"].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return decimal.Zero
}
