package balance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/giftcards/internal/model"
)

func TestApply(t *testing.T) {
	before := time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC)
	now := before.Add(time.Hour)
	cards := []model.Card{
		{ID: "a", Data: model.CardData{Number: "1111", PIN: "11", Balance: decimal.NewFromInt(10), ExpiryDate: "01/Jan/2030", LastUpdated: before}},
		{ID: "b", Data: model.CardData{Number: "2222", PIN: "22", Balance: decimal.NewFromInt(20), LastUpdated: before}},
	}

	// найдено: баланс без даты
	updated, err := Apply(cards, "a", model.Found{Balance: decimal.RequireFromString("3.25")}, now)
	require.NoError(t, err)
	require.True(t, updated[0].Data.Balance.Equal(decimal.RequireFromString("3.25")))
	require.Equal(t, "01/Jan/2030", updated[0].Data.ExpiryDate)
	require.Equal(t, now, updated[0].Data.LastUpdated)
	require.True(t, cards[0].Data.Balance.Equal(decimal.NewFromInt(10)))

	// найдено: баланс и дата
	updated, err = Apply(cards, "b", model.Found{Balance: decimal.Zero, ExpiryDate: "05/Feb/2027"}, now)
	require.NoError(t, err)
	require.Equal(t, "05/Feb/2027", updated[1].Data.ExpiryDate)
	require.True(t, updated[1].Data.Balance.IsZero())
}

func TestApplyRejects(t *testing.T) {
	now := time.Now()
	cards := []model.Card{{ID: "a", Data: model.CardData{Number: "1111", PIN: "11", Balance: decimal.NewFromInt(10)}}}

	updated, err := Apply(cards, "a", model.NotFound{}, now)
	require.ErrorIs(t, err, ErrNothingFound)
	require.Equal(t, cards, updated)

	_, err = Apply(cards, "missing", model.Found{Balance: decimal.NewFromInt(1)}, now)
	require.ErrorIs(t, err, ErrCardNotFound)

	_, err = Apply(cards, "a", model.Found{Balance: decimal.NewFromInt(-1)}, now)
	require.ErrorIs(t, err, model.ErrNegativeBalance)
}
