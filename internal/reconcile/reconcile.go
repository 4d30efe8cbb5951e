// Package reconcile merges new and imported card data into a collection
// without ever producing two cards with the same number.
package reconcile

import (
	"time"

	"github.com/google/uuid"

	"github.com/iurnickita/giftcards/internal/model"
)

// MergeNew appends every incoming candidate whose normalized number is not yet
// present. Skipped numbers are returned in input order. The order of updated is
// existing cards first, then accepted candidates in input order.
func MergeNew(existing []model.Card, incoming []model.NewCard, now time.Time) (updated []model.Card, duplicates []string) {
	updated = make([]model.Card, len(existing), len(existing)+len(incoming))
	copy(updated, existing)

	known := make(map[string]struct{}, len(updated))
	for _, card := range updated {
		known[model.NormalizeNumber(card.Data.Number)] = struct{}{}
	}

	for _, candidate := range incoming {
		number := model.NormalizeNumber(candidate.Number)
		if _, ok := known[number]; ok {
			duplicates = append(duplicates, number)
			continue
		}
		known[number] = struct{}{}
		updated = append(updated, model.Card{
			ID: uuid.NewString(),
			Data: model.CardData{
				Number:      number,
				PIN:         candidate.PIN,
				Balance:     candidate.Balance,
				LastUpdated: now,
			},
		})
	}
	return updated, duplicates
}

// ImportMerge overwrites the data of cards matched by number and appends the rest
// under fresh ids. It never removes a card.
func ImportMerge(existing []model.Card, imported []model.Card, now time.Time) []model.Card {
	updated := make([]model.Card, len(existing), len(existing)+len(imported))
	copy(updated, existing)

	index := make(map[string]int, len(updated))
	for i, card := range updated {
		index[model.NormalizeNumber(card.Data.Number)] = i
	}

	for _, card := range imported {
		data := card.Data
		data.Number = model.NormalizeNumber(data.Number)
		if data.LastUpdated.IsZero() {
			data.LastUpdated = now
		}

		if i, ok := index[data.Number]; ok {
			// id остается прежним
			updated[i].Data = data
			continue
		}
		index[data.Number] = len(updated)
		updated = append(updated, model.Card{ID: uuid.NewString(), Data: data})
	}
	return updated
}

// FilterValid drops candidates that fail model.ValidateNewCard.
func FilterValid(incoming []model.NewCard) (valid []model.NewCard, rejected int) {
	valid = make([]model.NewCard, 0, len(incoming))
	for _, candidate := range incoming {
		if model.ValidateNewCard(candidate) != nil {
			rejected++
			continue
		}
		valid = append(valid, candidate)
	}
	return valid, rejected
}

// Remove deletes the card with the given id, keeping the order of the rest.
func Remove(cards []model.Card, id string) ([]model.Card, bool) {
	updated := make([]model.Card, 0, len(cards))
	found := false
	for _, card := range cards {
		if card.ID == id {
			found = true
			continue
		}
		updated = append(updated, card)
	}
	if !found {
		return cards, false
	}
	return updated, true
}
