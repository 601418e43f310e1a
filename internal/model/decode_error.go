package model

import "fmt"

// DecodeError reports an event whose type tag or field bag cannot be
// mapped to a ledger category. Callers skip the offending event; it must
// never be silently dropped or stored with undefined fields.
type DecodeError struct {
	TypeTag string
	Index   int64
	Reason  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode event %d (type %q): %s", e.Index, e.TypeTag, e.Reason)
}
