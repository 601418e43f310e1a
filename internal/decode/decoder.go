package decode

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tokenledger/internal/model"
)

// ProfileResolver attaches local identities to on-chain addresses.
type ProfileResolver interface {
	ByAddress(ctx context.Context, address string) (*model.Profile, error)
}

// MetadataFetcher dereferences an IPFS content id to its metadata
// document.
type MetadataFetcher interface {
	Metadata(ctx context.Context, cid string) (map[string]any, error)
}

// Decoder maps raw feed events onto canonical decoded events. Dispatch is
// exhaustive over the known type tags; anything else is a
// *model.DecodeError, never a record with an undefined category.
type Decoder struct {
	profiles ProfileResolver
	ipfs     MetadataFetcher
	logger   *zap.Logger
}

func NewDecoder(profiles ProfileResolver, ipfs MetadataFetcher, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{
		profiles: profiles,
		ipfs:     ipfs,
		logger:   logger.Named("decode"),
	}
}

// Decode converts one raw event into its canonical form. A missing
// counterparty profile is not an error; the reference is simply nil.
func (d *Decoder) Decode(ctx context.Context, ev model.RawEvent) (model.DecodedEvent, error) {
	switch ev.Type {
	case "transferWithDataEvent":
		from, to, err := d.counterparties(ctx, ev.Data["from"], ev.Data["to"])
		if err != nil {
			return model.DecodedEvent{}, err
		}
		tokens, err := parseValue(ev, "value")
		if err != nil {
			return model.DecodedEvent{}, err
		}
		return model.DecodedEvent{
			Category: model.CategoryTransfer,
			From:     from,
			To:       to,
			Tokens:   tokens,
			Data:     d.transferMetadata(ctx, ev.Data["data"]),
		}, nil

	case "Transfer":
		from, to, err := d.counterparties(ctx, ev.Data["from"], ev.Data["to"])
		if err != nil {
			return model.DecodedEvent{}, err
		}
		tokens, err := parseValue(ev, "value")
		if err != nil {
			return model.DecodedEvent{}, err
		}
		return model.DecodedEvent{
			Category: model.CategoryTransfer,
			From:     from,
			To:       to,
			Tokens:   tokens,
			Data:     map[string]any{},
		}, nil

	case "Issued":
		to, err := d.profiles.ByAddress(ctx, ev.Data["_to"])
		if err != nil {
			return model.DecodedEvent{}, fmt.Errorf("resolve _to: %w", err)
		}
		tokens, err := parseValue(ev, "_value")
		if err != nil {
			return model.DecodedEvent{}, err
		}
		return model.DecodedEvent{
			Category: model.CategoryMint,
			To:       to,
			Tokens:   tokens,
			Data: map[string]any{
				"data":     ev.Data["_data"],
				"operator": ev.Data["_operator"],
			},
		}, nil

	case "Redeemed":
		from, err := d.profiles.ByAddress(ctx, ev.Data["_from"])
		if err != nil {
			return model.DecodedEvent{}, fmt.Errorf("resolve _from: %w", err)
		}
		tokens, err := parseValue(ev, "_value")
		if err != nil {
			return model.DecodedEvent{}, err
		}
		return model.DecodedEvent{
			Category: model.CategoryBurn,
			From:     from,
			Tokens:   tokens,
			Data: map[string]any{
				"data":          ev.Data["_data"],
				"operator_data": ev.Data["_operator"],
			},
		}, nil

	case "ControllerRedemption":
		to, err := d.profiles.ByAddress(ctx, ev.Data["_tokenHolder"])
		if err != nil {
			return model.DecodedEvent{}, fmt.Errorf("resolve _tokenHolder: %w", err)
		}
		tokens, err := parseValue(ev, "_value")
		if err != nil {
			return model.DecodedEvent{}, err
		}
		return model.DecodedEvent{
			Category: model.CategoryForcedBurn,
			To:       to,
			Tokens:   tokens,
			Data: map[string]any{
				"data":          ev.Data["_data"],
				"controller":    ev.Data["_controller"],
				"operator_data": ev.Data["_operatorData"],
			},
		}, nil

	case "PartyUpdated":
		to, err := d.profiles.ByAddress(ctx, ev.Data["user"])
		if err != nil {
			return model.DecodedEvent{}, fmt.Errorf("resolve user: %w", err)
		}
		return model.DecodedEvent{
			Category: model.CategoryRoleAssign,
			To:       to,
			Tokens:   decimal.Zero,
			Data: map[string]any{
				"expiration":   ev.Data["expiration"],
				"permission":   ev.Data["permission"],
				"attachedData": ev.Data["attachedData"],
			},
		}, nil

	case "PartyRemoved":
		to, err := d.profiles.ByAddress(ctx, ev.Data["user"])
		if err != nil {
			return model.DecodedEvent{}, fmt.Errorf("resolve user: %w", err)
		}
		return model.DecodedEvent{
			Category: model.CategoryRoleRevoke,
			To:       to,
			Tokens:   decimal.Zero,
			Data:     map[string]any{},
		}, nil

	case "executionComplete":
		return model.DecodedEvent{
			Category: model.CategoryExecution,
			Tokens:   decimal.Zero,
			Data:     map[string]any{},
		}, nil
	}

	return model.DecodedEvent{}, &model.DecodeError{
		TypeTag: ev.Type,
		Index:   ev.Index,
		Reason:  "unrecognized type tag",
	}
}

func (d *Decoder) counterparties(ctx context.Context, fromAddr, toAddr string) (*model.Profile, *model.Profile, error) {
	from, err := d.profiles.ByAddress(ctx, fromAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve from: %w", err)
	}
	to, err := d.profiles.ByAddress(ctx, toAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve to: %w", err)
	}
	return from, to, nil
}

// transferMetadata interprets the hex payload of a transfer-with-data
// event as a utf8 content id and dereferences it. Any failure along the
// way falls back to the raw payload string.
func (d *Decoder) transferMetadata(ctx context.Context, payload string) any {
	if payload == "" {
		return payload
	}

	hexPayload := payload
	if len(hexPayload) < 2 || hexPayload[:2] != "0x" {
		hexPayload = "0x" + hexPayload
	}
	cidBytes, err := hexutil.Decode(hexPayload)
	if err != nil || !utf8.Valid(cidBytes) {
		return payload
	}

	metadata, err := d.ipfs.Metadata(ctx, string(cidBytes))
	if err != nil {
		d.logger.Warn("ipfs dereference failed, keeping raw payload",
			zap.String("cid", string(cidBytes)),
			zap.Error(err),
		)
		return payload
	}
	return metadata
}

func parseValue(ev model.RawEvent, field string) (decimal.Decimal, error) {
	value, ok := ev.Data[field]
	if !ok || value == "" {
		return decimal.Zero, &model.DecodeError{
			TypeTag: ev.Type,
			Index:   ev.Index,
			Reason:  fmt.Sprintf("missing %s field", field),
		}
	}
	tokens, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, &model.DecodeError{
			TypeTag: ev.Type,
			Index:   ev.Index,
			Reason:  fmt.Sprintf("malformed %s field %q", field, value),
		}
	}
	return tokens, nil
}
