package model

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/theplant/luhn"
)

// Подарочные карты

type Card struct {
	ID   string
	Data CardData
}
type CardData struct {
	Number      string
	PIN         string
	Balance     decimal.Decimal
	ExpiryDate  string
	LastUpdated time.Time
}

// NewCard - кандидат на добавление: без идентификатора и времени обновления.
type NewCard struct {
	Number  string
	PIN     string
	Balance decimal.Decimal
}

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusArchived Status = "ARCHIVED"
)

const (
	MinNumberLength = 4
	MinPINLength    = 2
)

// NormalizeNumber trims surrounding whitespace. Case and inner characters are kept.
func NormalizeNumber(number string) string {
	return strings.TrimSpace(number)
}

// MaskedPIN keeps the last two characters visible.
func (data CardData) MaskedPIN() string {
	n := utf8.RuneCountInString(data.PIN)
	if n <= 2 {
		return strings.Repeat("•", n)
	}
	runes := []rune(data.PIN)
	return strings.Repeat("•", n-2) + string(runes[n-2:])
}

// LuhnValid reports whether an all-digit number passes the Luhn check.
// Gift card numbers do not have to, so this is a hint only.
func (data CardData) LuhnValid() bool {
	number := NormalizeNumber(data.Number)
	if number == "" || len(number) > 18 {
		return false
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return false
		}
	}
	n, err := strconv.Atoi(number)
	if err != nil {
		return false
	}
	return luhn.Valid(n)
}

// Обновление баланса от сервиса распознавания

// BalanceUpdate is either Found or NotFound.
type BalanceUpdate interface {
	balanceUpdate()
}

type Found struct {
	Balance    decimal.Decimal
	ExpiryDate string
}

type NotFound struct{}

func (Found) balanceUpdate()    {}
func (NotFound) balanceUpdate() {}
