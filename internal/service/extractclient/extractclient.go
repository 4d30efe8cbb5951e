package extractclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iurnickita/giftcards/internal/model"
	"github.com/iurnickita/giftcards/internal/service/extractclient/config"
)

// Extractor turns free text into card candidates or a balance update.
// Its output is untrusted and must go through normal validation.
type Extractor interface {
	ExtractCards(ctx context.Context, text string) ([]model.NewCard, error)
	ExtractBalance(ctx context.Context, text string) (model.BalanceUpdate, error)
}

const (
	TaskCards   = "cards"
	TaskBalance = "balance"
)

var (
	ErrNothingFound  = errors.New("nothing found")
	ErrUnavailable   = errors.New("extraction service unavailable")
	ErrNotConfigured = errors.New("extraction service is not configured")
)

const cardsPrompt = `Extract every gift card from the text below.
For each card return its card number, its PIN and, when stated, its amount as a number.
Return an empty list when there are no cards.

Text:
`

const balancePrompt = `Find the current remaining balance of a single gift card in the text below.
If an expiry date is stated, return it as dd/MMM/yyyy (for example 05/Mar/2026).
Set found to false when no balance is stated.

Text:
`

// NewExtractor builds the configured extractor behind a circuit breaker.
func NewExtractor(ctx context.Context, cfg config.Config, zaplog *zap.Logger) (Extractor, error) {
	var (
		extractor Extractor
		err       error
	)
	switch cfg.Provider {
	case config.ProviderGemini:
		extractor, err = NewGeminiClient(ctx, cfg)
	case config.ProviderHTTP:
		extractor, err = NewHTTPClient(cfg)
	case config.ProviderNone:
		return noneClient{}, nil
	default:
		return nil, fmt.Errorf("unknown extraction provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewBreaker(cfg.Provider, extractor, zaplog), nil
}

type noneClient struct{}

func (noneClient) ExtractCards(context.Context, string) ([]model.NewCard, error) {
	return nil, ErrNotConfigured
}

func (noneClient) ExtractBalance(context.Context, string) (model.BalanceUpdate, error) {
	return nil, ErrNotConfigured
}

// JSON ответы сервиса распознавания

type cardAnswer struct {
	CardNumber string          `json:"cardNumber"`
	PIN        string          `json:"pin"`
	Amount     json.RawMessage `json:"amount"`
}

type balanceAnswer struct {
	Found      bool            `json:"found"`
	Balance    json.RawMessage `json:"balance"`
	ExpiryDate string          `json:"expiryDate"`
}

func parseCards(body []byte) ([]model.NewCard, error) {
	var answers []cardAnswer
	if err := json.Unmarshal(body, &answers); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNothingFound, err)
	}
	if len(answers) == 0 {
		return nil, ErrNothingFound
	}

	cards := make([]model.NewCard, 0, len(answers))
	for _, answer := range answers {
		// сумма не указана - ноль
		amount, ok := parseNumber(answer.Amount)
		if !ok {
			amount = decimal.Zero
		}
		cards = append(cards, model.NewCard{
			Number:  answer.CardNumber,
			PIN:     answer.PIN,
			Balance: amount,
		})
	}
	return cards, nil
}

func parseBalance(body []byte) (model.BalanceUpdate, error) {
	var answer balanceAnswer
	if err := json.Unmarshal(body, &answer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNothingFound, err)
	}
	balance, ok := parseNumber(answer.Balance)
	if !answer.Found || !ok {
		return model.NotFound{}, nil
	}
	return model.Found{Balance: balance, ExpiryDate: answer.ExpiryDate}, nil
}

// parseNumber accepts only a JSON number literal.
func parseNumber(raw json.RawMessage) (decimal.Decimal, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !(raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')) {
		return decimal.Decimal{}, false
	}
	value, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return value, true
}
