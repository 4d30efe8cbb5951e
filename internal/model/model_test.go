package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestValidateNewCard(t *testing.T) {
	tests := []struct {
		name string
		card NewCard
		want error
	}{
		{"valid", NewCard{Number: "1234", PIN: "12", Balance: decimal.NewFromInt(5)}, nil},
		{"trimmed number too short", NewCard{Number: "  123  ", PIN: "12"}, ErrNumberTooShort},
		{"empty number", NewCard{Number: "", PIN: "1234"}, ErrNumberTooShort},
		{"short pin", NewCard{Number: "123456", PIN: "1"}, ErrPINTooShort},
		{"negative balance", NewCard{Number: "123456", PIN: "12", Balance: decimal.NewFromInt(-1)}, ErrNegativeBalance},
		{"zero balance", NewCard{Number: "123456", PIN: "12", Balance: decimal.Zero}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, ValidateNewCard(tt.card), tt.want)
		})
	}
}

func TestNormalizeNumber(t *testing.T) {
	require.Equal(t, "AbC 12", NormalizeNumber("\t AbC 12 \n"))
}

func TestMaskedPIN(t *testing.T) {
	require.Equal(t, "••34", CardData{PIN: "1234"}.MaskedPIN())
	require.Equal(t, "••", CardData{PIN: "12"}.MaskedPIN())
	require.Equal(t, "", CardData{}.MaskedPIN())
}

func TestLuhnValid(t *testing.T) {
	require.True(t, CardData{Number: "79927398713"}.LuhnValid())
	require.False(t, CardData{Number: "79927398710"}.LuhnValid())
	require.False(t, CardData{Number: "GIFT-1234"}.LuhnValid())
}
