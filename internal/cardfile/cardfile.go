// Package cardfile reads and writes the JSON card list used for export, import
// and the backup file.
package cardfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/giftcards/internal/model"
)

var ErrMalformed = errors.New("malformed card list")

type cardJSON struct {
	ID          string      `json:"id"`
	CardNumber  string      `json:"cardNumber"`
	PIN         string      `json:"pin"`
	Balance     json.Number `json:"balance"`
	ExpiryDate  string      `json:"expiryDate,omitempty"`
	LastUpdated time.Time   `json:"lastUpdated"`
}

func Encode(cards []model.Card) ([]byte, error) {
	out := make([]cardJSON, 0, len(cards))
	for _, card := range cards {
		out = append(out, cardJSON{
			ID:          card.ID,
			CardNumber:  card.Data.Number,
			PIN:         card.Data.PIN,
			Balance:     json.Number(card.Data.Balance.String()),
			ExpiryDate:  card.Data.ExpiryDate,
			LastUpdated: card.Data.LastUpdated,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// Decode accepts the whole list or nothing.
func Decode(data []byte) ([]model.Card, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: not an array", ErrMalformed)
	}

	var in []cardJSON
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	cards := make([]model.Card, 0, len(in))
	for i, item := range in {
		if strings.TrimSpace(item.ID) == "" || strings.TrimSpace(item.CardNumber) == "" || item.PIN == "" {
			return nil, fmt.Errorf("%w: element %d lacks id, cardNumber or pin", ErrMalformed, i)
		}
		balance := decimal.Zero
		if item.Balance != "" {
			var err error
			balance, err = decimal.NewFromString(item.Balance.String())
			if err != nil {
				return nil, fmt.Errorf("%w: element %d balance: %v", ErrMalformed, i, err)
			}
		}
		if balance.IsNegative() {
			return nil, fmt.Errorf("%w: element %d: %v", ErrMalformed, i, model.ErrNegativeBalance)
		}
		cards = append(cards, model.Card{
			ID: item.ID,
			Data: model.CardData{
				Number:      model.NormalizeNumber(item.CardNumber),
				PIN:         item.PIN,
				Balance:     balance,
				ExpiryDate:  item.ExpiryDate,
				LastUpdated: item.LastUpdated,
			},
		})
	}
	return cards, nil
}
