package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/giftcards/internal/model"
)

var now = time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)

func card(id, number string, balance int64) model.Card {
	return model.Card{ID: id, Data: model.CardData{
		Number:  number,
		PIN:     "1234",
		Balance: decimal.NewFromInt(balance),
	}}
}

func numbers(cards []model.Card) []string {
	var out []string
	for _, c := range cards {
		out = append(out, c.Data.Number)
	}
	return out
}

func TestMergeNewPreservesOrder(t *testing.T) {
	existing := []model.Card{card("a", "AAAA", 1), card("b", "BBBB", 2)}
	incoming := []model.NewCard{
		{Number: "CCCC", PIN: "11", Balance: decimal.NewFromInt(3)},
		{Number: "DDDD", PIN: "22", Balance: decimal.NewFromInt(4)},
	}

	updated, duplicates := MergeNew(existing, incoming, now)

	require.Empty(t, duplicates)
	require.Equal(t, []string{"AAAA", "BBBB", "CCCC", "DDDD"}, numbers(updated))
	require.Equal(t, "a", updated[0].ID)
	require.Equal(t, "b", updated[1].ID)
	require.NotEmpty(t, updated[2].ID)
	require.NotEqual(t, updated[2].ID, updated[3].ID)
	require.Equal(t, now, updated[2].Data.LastUpdated)
	require.True(t, updated[3].Data.Balance.Equal(decimal.NewFromInt(4)))
	require.Len(t, existing, 2)
}

func TestMergeNewDuplicateInSameBatch(t *testing.T) {
	incoming := []model.NewCard{
		{Number: "12345", PIN: "11"},
		{Number: " 12345 ", PIN: "22"},
	}

	updated, duplicates := MergeNew(nil, incoming, now)

	require.Len(t, updated, 1)
	require.Equal(t, "12345", updated[0].Data.Number)
	require.Equal(t, "11", updated[0].Data.PIN)
	require.Equal(t, []string{"12345"}, duplicates)
}

func TestMergeNewDuplicateOfExisting(t *testing.T) {
	existing := []model.Card{card("a", "AAAA", 1)}

	updated, duplicates := MergeNew(existing, []model.NewCard{{Number: "AAAA\n", PIN: "99"}}, now)

	require.Equal(t, existing, updated)
	require.Equal(t, []string{"AAAA"}, duplicates)
}

func TestMergeNewIsCaseSensitive(t *testing.T) {
	updated, duplicates := MergeNew([]model.Card{card("a", "abcd", 1)}, []model.NewCard{{Number: "ABCD", PIN: "12"}}, now)

	require.Empty(t, duplicates)
	require.Len(t, updated, 2)
}

func TestImportMergePreservesIdentity(t *testing.T) {
	existing := []model.Card{card("a", "AAAA", 1), card("b", "BBBB", 2)}
	imported := []model.Card{
		{ID: "foreign-1", Data: model.CardData{Number: "BBBB", PIN: "77", Balance: decimal.NewFromInt(50), ExpiryDate: "01/Jan/2030", LastUpdated: now}},
		{ID: "foreign-2", Data: model.CardData{Number: "CCCC", PIN: "88", Balance: decimal.NewFromInt(9)}},
	}

	updated := ImportMerge(existing, imported, now)

	require.Equal(t, []string{"AAAA", "BBBB", "CCCC"}, numbers(updated))
	require.Equal(t, "b", updated[1].ID)
	require.Equal(t, "77", updated[1].Data.PIN)
	require.Equal(t, "01/Jan/2030", updated[1].Data.ExpiryDate)
	require.True(t, updated[1].Data.Balance.Equal(decimal.NewFromInt(50)))

	require.NotEqual(t, "foreign-2", updated[2].ID)
	require.NotEmpty(t, updated[2].ID)
	require.Equal(t, now, updated[2].Data.LastUpdated)

	// исходная коллекция не изменена
	require.Equal(t, "1234", existing[1].Data.PIN)
}

func TestImportMergeRepeatedNumberInPayload(t *testing.T) {
	imported := []model.Card{card("x", "ZZZZ", 1), card("y", "ZZZZ", 7)}

	updated := ImportMerge(nil, imported, now)

	require.Len(t, updated, 1)
	require.True(t, updated[0].Data.Balance.Equal(decimal.NewFromInt(7)))
}

func TestRoundTripIntoEmptyCollection(t *testing.T) {
	source := []model.Card{card("a", "AAAA", 1), card("b", "BBBB", 0)}

	updated := ImportMerge(nil, source, now)

	require.Equal(t, numbers(source), numbers(updated))
	for i := range source {
		require.Equal(t, source[i].Data.PIN, updated[i].Data.PIN)
		require.True(t, source[i].Data.Balance.Equal(updated[i].Data.Balance))
	}
}

func TestFilterValid(t *testing.T) {
	valid, rejected := FilterValid([]model.NewCard{
		{Number: "123", PIN: "12"},
		{Number: "1234", PIN: "1"},
		{Number: "1234", PIN: "12"},
	})

	require.Equal(t, 2, rejected)
	require.Len(t, valid, 1)
}

func TestRemove(t *testing.T) {
	cards := []model.Card{card("a", "AAAA", 1), card("b", "BBBB", 2), card("c", "CCCC", 3)}

	updated, ok := Remove(cards, "b")
	require.True(t, ok)
	require.Equal(t, []string{"AAAA", "CCCC"}, numbers(updated))

	_, ok = Remove(cards, "missing")
	require.False(t, ok)
}
