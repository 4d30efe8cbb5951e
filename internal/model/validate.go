package model

import (
	"errors"
	"unicode/utf8"
)

var (
	ErrNumberTooShort  = errors.New("card number is too short")
	ErrPINTooShort     = errors.New("pin is too short")
	ErrNegativeBalance = errors.New("balance is negative")
)

// ValidateNewCard rejects a candidate instead of coercing it.
func ValidateNewCard(card NewCard) error {
	if utf8.RuneCountInString(NormalizeNumber(card.Number)) < MinNumberLength {
		return ErrNumberTooShort
	}
	if utf8.RuneCountInString(card.PIN) < MinPINLength {
		return ErrPINTooShort
	}
	if card.Balance.IsNegative() {
		return ErrNegativeBalance
	}
	return nil
}
