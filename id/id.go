// Package id defines TypeID-based identity types for parklot entities.
//
// Spots, transactions and rate cards share one ID type whose prefix names
// the entity. IDs are UUIDv7-based, so IDs of one kind sort by creation
// time when compared as strings, which history queries rely on for ties.
package id

import (
	"errors"
	"fmt"
	"strings"

	"go.jetify.com/typeid/v2"
)

// ErrInvalid is returned for malformed or wrongly prefixed IDs.
var ErrInvalid = errors.New("id: invalid id")

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

const (
	PrefixSpot        Prefix = "spot"
	PrefixTransaction Prefix = "txn"
	PrefixRateCard    Prefix = "rate"
)

// ID is a prefix-qualified identifier in the form "prefix_suffix". The zero
// value is the nil ID and renders as "".
//
//nolint:recvcheck // UnmarshalText needs a pointer receiver.
type ID struct {
	tid typeid.TypeID
	set bool
}

// Nil is the zero-value ID.
var Nil ID

type (
	// SpotID identifies a parking spot.
	SpotID = ID
	// TransactionID identifies a parking session.
	TransactionID = ID
	// RateCardID identifies a rate card.
	RateCardID = ID
)

// New generates an ID. It panics on an invalid prefix, which is a
// programming error.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: generate %q: %v", prefix, err))
	}
	return ID{tid: tid, set: true}
}

func NewSpotID() SpotID               { return New(PrefixSpot) }
func NewTransactionID() TransactionID { return New(PrefixTransaction) }
func NewRateCardID() RateCardID       { return New(PrefixRateCard) }

// Parse accepts any well-formed TypeID.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("%w: empty", ErrInvalid)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
	}
	return ID{tid: tid, set: true}, nil
}

// ParseWithPrefix parses s and requires the given prefix.
func ParseWithPrefix(s string, want Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if got := parsed.Prefix(); got != want {
		return Nil, fmt.Errorf("%w: %q is a %s id, want %s", ErrInvalid, s, got, want)
	}
	return parsed, nil
}

func ParseSpotID(s string) (SpotID, error)               { return ParseWithPrefix(s, PrefixSpot) }
func ParseTransactionID(s string) (TransactionID, error) { return ParseWithPrefix(s, PrefixTransaction) }
func ParseRateCardID(s string) (RateCardID, error)       { return ParseWithPrefix(s, PrefixRateCard) }

// String returns "prefix_suffix", or "" for the nil ID.
func (i ID) String() string {
	if !i.set {
		return ""
	}
	return i.tid.String()
}

// Prefix returns the entity prefix, or "" for the nil ID.
func (i ID) Prefix() Prefix {
	if !i.set {
		return ""
	}
	return Prefix(i.tid.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool { return !i.set }

// Compare orders IDs by their string form, which for one prefix is
// creation order.
func Compare(a, b ID) int { return strings.Compare(a.String(), b.String()) }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
