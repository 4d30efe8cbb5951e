package balance

import (
	"errors"
	"time"

	"github.com/iurnickita/giftcards/internal/model"
)

var (
	ErrNothingFound = errors.New("no balance found")
	ErrCardNotFound = errors.New("card not found")
)

// Apply sets the balance (and the expiry, when the update carries one) of the
// card with the given id. NotFound leaves the collection untouched.
func Apply(cards []model.Card, id string, update model.BalanceUpdate, now time.Time) ([]model.Card, error) {
	found, ok := update.(model.Found)
	if !ok {
		return cards, ErrNothingFound
	}
	if found.Balance.IsNegative() {
		return cards, model.ErrNegativeBalance
	}

	for i, card := range cards {
		if card.ID != id {
			continue
		}
		updated := make([]model.Card, len(cards))
		copy(updated, cards)

		updated[i].Data.Balance = found.Balance
		if found.ExpiryDate != "" {
			updated[i].Data.ExpiryDate = found.ExpiryDate
		}
		updated[i].Data.LastUpdated = now
		return updated, nil
	}
	return cards, ErrCardNotFound
}
