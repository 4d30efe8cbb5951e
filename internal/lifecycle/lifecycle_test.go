package lifecycle

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/giftcards/internal/model"
)

var now = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func card(balance int64, expiry string) model.Card {
	return model.Card{ID: expiry, Data: model.CardData{
		Number:     "12345",
		PIN:        "12",
		Balance:    decimal.NewFromInt(balance),
		ExpiryDate: expiry,
	}}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		card model.Card
		want model.Status
	}{
		{"zero balance ignores future expiry", card(0, "01/Jan/2099"), model.StatusArchived},
		{"zero balance without expiry", card(0, ""), model.StatusArchived},
		{"past expiry", card(10, "31/Dec/2020"), model.StatusArchived},
		{"future expiry", card(10, "31/Dec/2099"), model.StatusActive},
		{"no expiry", card(10, ""), model.StatusActive},
		{"malformed expiry", card(10, "not-a-date"), model.StatusActive},
		{"two components", card(10, "12/2020"), model.StatusActive},
		{"unknown month", card(10, "01/Foo/2020"), model.StatusActive},
		{"numeric month", card(10, "15-06-2023"), model.StatusArchived},
		{"space separated", card(10, "15 june 2023"), model.StatusArchived},
		{"fractional balance", model.Card{Data: model.CardData{Balance: decimal.RequireFromString("0.01")}}, model.StatusActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.card, now))
		})
	}
}

func TestClassifyEndOfDayBoundary(t *testing.T) {
	c := card(10, "01/01/2024")

	require.Equal(t, model.StatusActive, Classify(c, time.Date(2024, time.January, 1, 23, 59, 59, 0, time.UTC)))
	require.Equal(t, model.StatusArchived, Classify(c, time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)))
}

func TestParseExpiry(t *testing.T) {
	got, ok := ParseExpiry(" 05/MAR/2026 ", time.UTC)
	require.True(t, ok)
	require.Equal(t, time.Date(2026, time.March, 5, 23, 59, 59, 999000000, time.UTC), got)

	got, ok = ParseExpiry("5-march-2026", time.UTC)
	require.True(t, ok)
	require.Equal(t, time.March, got.Month())

	for _, bad := range []string{"", "05/13/2026", "aa/Mar/2026", "05/Mar/yyyy", "05//Mar/2026", "05/Ma/2026", "1/2/3/4"} {
		_, ok := ParseExpiry(bad, time.UTC)
		require.False(t, ok, bad)
	}
}

func TestPartitionKeepsOrder(t *testing.T) {
	cards := []model.Card{
		card(10, "a"),
		card(0, "b"),
		card(10, "31/Dec/2020"),
		card(5, "31/Dec/2099"),
	}

	active, archived := Partition(cards, now)

	require.Equal(t, []model.Card{cards[0], cards[3]}, active)
	require.Equal(t, []model.Card{cards[1], cards[2]}, archived)
}

func TestExpiringWithin(t *testing.T) {
	cards := []model.Card{
		card(10, "03/Jan/2024"),
		card(10, "20/Jan/2024"),
		card(0, "02/Jan/2024"),
		card(10, ""),
		card(10, "31/Dec/2023"),
	}

	expiring := ExpiringWithin(cards, now, 7*24*time.Hour)

	require.Equal(t, []model.Card{cards[0]}, expiring)
}
