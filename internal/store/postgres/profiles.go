package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"tokenledger/internal/model"
)

const profileColumns = `
	id, email, COALESCE(address, ''), type, data, terms_accepted,
	active_since, active_until, balance_tokens::text, balance_native::text
`

// ByAddress returns the profile with the given on-chain address, or nil.
func (s *Store) ByAddress(ctx context.Context, address string) (*model.Profile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE lower(address) = lower($1)`,
		address,
	)

	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("profile by address %s: %w", address, err)
	}
	return profile, nil
}

// Beneficiaries returns beneficiary profiles that accepted the terms and
// have an on-chain address.
func (s *Store) Beneficiaries(ctx context.Context) ([]model.Profile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+profileColumns+`
		 FROM profiles
		 WHERE type = $1 AND terms_accepted AND address IS NOT NULL AND address <> ''`,
		string(model.ProfileBeneficiary),
	)
	if err != nil {
		return nil, fmt.Errorf("list beneficiaries: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan beneficiary: %w", err)
		}
		profiles = append(profiles, *profile)
	}
	return profiles, rows.Err()
}

func scanProfile(row pgx.Row) (*model.Profile, error) {
	var (
		profile model.Profile
		ptype   string
		data    []byte
		tokens  string
		native  string
	)
	if err := row.Scan(&profile.ID, &profile.Email, &profile.Address, &ptype,
		&data, &profile.TermsAccepted, &profile.ActiveSince, &profile.ActiveUntil,
		&tokens, &native); err != nil {
		return nil, err
	}

	profile.Type = model.ProfileType(ptype)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &profile.Data); err != nil {
			return nil, fmt.Errorf("parse profile data: %w", err)
		}
	}

	var err error
	if profile.BalanceTokens, err = decimal.NewFromString(tokens); err != nil {
		return nil, fmt.Errorf("parse balance_tokens %q: %w", tokens, err)
	}
	if profile.BalanceNative, err = decimal.NewFromString(native); err != nil {
		return nil, fmt.Errorf("parse balance_native %q: %w", native, err)
	}
	return &profile, nil
}
