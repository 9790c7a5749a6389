package types_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/xraph/parklot/types"
)

func TestMoneyString(t *testing.T) {
	tests := []struct {
		money types.Money
		want  string
	}{
		{types.USD(2400), "$24.00"},
		{types.New(19900, "EUR"), "€199.00"},
		{types.New(100, "jpy"), "¥100"},
		{types.Zero("USD"), "$0.00"},
		{types.USD(-1), "$-0.01"},
		{types.New(550, "chf"), "CHF 5.50"},
	}
	for _, tt := range tests {
		if got := tt.money.String(); got != tt.want {
			t.Errorf("%#v.String() = %s, want %s", tt.money, got, tt.want)
		}
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		amount, currency string
		want             types.Money
		wantErr          bool
	}{
		{"8", "usd", types.USD(800), false},
		{"8.00", "USD", types.USD(800), false},
		{"12.5", "usd", types.USD(1250), false},
		{" 50.00 ", "usd", types.USD(5000), false},
		{"300", "jpy", types.New(300, "jpy"), false},
		{"8.005", "usd", types.Money{}, true},
		{"1.5", "jpy", types.Money{}, true},
		{"eight", "usd", types.Money{}, true},
		{"99999999999999999999", "usd", types.Money{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.amount+"/"+tt.currency, func(t *testing.T) {
			got, err := types.ParseMoney(tt.amount, tt.currency)
			if tt.wantErr {
				if !errors.Is(err, types.ErrInvalidAmount) {
					t.Fatalf("err = %v, want ErrInvalidAmount", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMoneyDecimalAndFormat(t *testing.T) {
	if got := types.USD(2435).Decimal().String(); got != "24.35" {
		t.Errorf("Decimal = %s", got)
	}
	if got, err := types.USD(800).Multiply(3); err != nil || got.FormatMajor() != "24.00" {
		t.Errorf("Multiply(3) = %s, %v", got, err)
	}
	if got := types.New(300, "jpy").FormatMajor(); got != "300" {
		t.Errorf("yen FormatMajor = %s", got)
	}
}

func TestMoneyMultiplyOverflow(t *testing.T) {
	tests := []struct {
		amount, n int64
		want      int64
		overflows bool
	}{
		{800, 3, 2400, false},
		{-250, 4, -1000, false},
		{math.MaxInt64, 1, math.MaxInt64, false},
		{math.MinInt64 / 2, 2, math.MinInt64, false},
		{math.MaxInt64/2 + 1, 2, 0, true},
		{4_000_000_000_000_000_000, 3, 0, true},
		{math.MinInt64, -1, 0, true},
	}
	for _, tt := range tests {
		got, err := types.USD(tt.amount).Multiply(tt.n)
		if tt.overflows {
			if !errors.Is(err, types.ErrInvalidAmount) {
				t.Errorf("%d x %d: err = %v, want ErrInvalidAmount", tt.amount, tt.n, err)
			}
			continue
		}
		if err != nil || got.Amount != tt.want {
			t.Errorf("%d x %d = %d, %v; want %d", tt.amount, tt.n, got.Amount, err, tt.want)
		}
	}
}

func TestMoneyCmp(t *testing.T) {
	if types.USD(50).Cmp(types.USD(100)) != -1 ||
		types.USD(5000).Cmp(types.USD(2400)) != 1 ||
		types.USD(0).Cmp(types.Zero("usd")) != 0 {
		t.Error("Cmp ordering wrong")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic comparing usd with eur")
		}
	}()
	_ = types.USD(100).Cmp(types.New(100, "eur"))
}

func TestMoneyJSONCarriesDisplay(t *testing.T) {
	data, err := json.Marshal(types.USD(2400))
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"amount":2400,"currency":"usd","display":"$24.00"}`; string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	var back types.Money
	if err := json.Unmarshal([]byte(`{"amount":5000,"currency":"USD","display":"ignored"}`), &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(types.USD(5000)) {
		t.Errorf("got %v", back)
	}
}
