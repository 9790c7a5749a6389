package id_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xraph/parklot/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"SpotID", id.NewSpotID, "spot_"},
		{"TransactionID", id.NewTransactionID, "txn_"},
		{"RateCardID", id.NewRateCardID, "rate_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseTyped(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"SpotID", id.NewSpotID, id.ParseSpotID},
		{"TransactionID", id.NewTransactionID, id.ParseTransactionID},
		{"RateCardID", id.NewRateCardID, id.ParseRateCardID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseSpotID rejects txn_", id.NewTransactionID().String(), id.ParseSpotID},
		{"ParseTransactionID rejects rate_", id.NewRateCardID().String(), id.ParseTransactionID},
		{"ParseRateCardID rejects spot_", id.NewSpotID().String(), id.ParseRateCardID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestParseErrorsWrapSentinel(t *testing.T) {
	for _, in := range []string{"", "not-an-id", "spot_", id.NewTransactionID().String()} {
		if _, err := id.ParseSpotID(in); !errors.Is(err, id.ErrInvalid) {
			t.Errorf("ParseSpotID(%q) = %v, want ErrInvalid", in, err)
		}
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() || !id.Nil.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" || i.Prefix() != "" {
		t.Errorf("nil ID renders as %q/%q", i.String(), i.Prefix())
	}
}

func TestCompareFollowsCreationOrder(t *testing.T) {
	first := id.NewTransactionID()
	time.Sleep(2 * time.Millisecond)
	second := id.NewTransactionID()

	if id.Compare(first, second) >= 0 || id.Compare(second, first) <= 0 {
		t.Errorf("Compare(%s, %s) not ascending", first, second)
	}
	if id.Compare(first, first) != 0 {
		t.Error("Compare of equal IDs should be 0")
	}
}

func TestTextRoundTripInJSON(t *testing.T) {
	type doc struct {
		Spot id.SpotID `json:"spot"`
		Prev id.SpotID `json:"prev"`
	}
	in := doc{Spot: id.NewSpotID()}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if want := `"prev":""`; !strings.Contains(string(raw), want) {
		t.Errorf("nil ID encoded as %s", raw)
	}

	var out doc
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out.Spot.String() != in.Spot.String() || !out.Prev.IsNil() {
		t.Errorf("decoded %+v, want %+v", out, in)
	}
	if err := json.Unmarshal([]byte(`{"spot":"garbage"}`), &out); !errors.Is(err, id.ErrInvalid) {
		t.Errorf("garbage decode err = %v", err)
	}
}
