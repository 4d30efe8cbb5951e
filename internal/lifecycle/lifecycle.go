// Package lifecycle decides whether a card is still usable.
package lifecycle

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/iurnickita/giftcards/internal/model"
)

var separators = regexp.MustCompile(`[/\- ]`)

var months = map[string]time.Month{
	"jan": time.January,
	"feb": time.February,
	"mar": time.March,
	"apr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"aug": time.August,
	"sep": time.September,
	"oct": time.October,
	"nov": time.November,
	"dec": time.December,
}

// ParseExpiry reads a day/month/year date and returns the last instant of that
// day in loc. Numeric dates are always day first.
func ParseExpiry(value string, loc *time.Location) (time.Time, bool) {
	parts := separators.Split(strings.TrimSpace(value), -1)
	if len(parts) != 3 {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, false
	}
	month, ok := parseMonth(parts[1])
	if !ok {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, false
	}

	return time.Date(year, month, day, 23, 59, 59, int(999*time.Millisecond), loc), true
}

func parseMonth(value string) (time.Month, bool) {
	if n, err := strconv.Atoi(value); err == nil {
		if n < 1 || n > 12 {
			return 0, false
		}
		return time.Month(n), true
	}
	if len(value) < 3 {
		return 0, false
	}
	month, ok := months[strings.ToLower(value[:3])]
	return month, ok
}

// Classify is pure: the same card and now always give the same status.
func Classify(card model.Card, now time.Time) model.Status {
	if card.Data.Balance.IsZero() {
		return model.StatusArchived
	}
	if card.Data.ExpiryDate != "" {
		// нераспознанная дата равносильна отсутствию даты
		if expiry, ok := ParseExpiry(card.Data.ExpiryDate, now.Location()); ok && expiry.Before(now) {
			return model.StatusArchived
		}
	}
	return model.StatusActive
}

// Partition splits cards by status, keeping relative order in each part.
func Partition(cards []model.Card, now time.Time) (active, archived []model.Card) {
	for _, card := range cards {
		if Classify(card, now) == model.StatusArchived {
			archived = append(archived, card)
		} else {
			active = append(active, card)
		}
	}
	return active, archived
}

// ExpiringWithin returns active cards whose expiry falls in (now, now+window].
func ExpiringWithin(cards []model.Card, now time.Time, window time.Duration) []model.Card {
	var expiring []model.Card
	limit := now.Add(window)
	for _, card := range cards {
		if Classify(card, now) != model.StatusActive {
			continue
		}
		expiry, ok := ParseExpiry(card.Data.ExpiryDate, now.Location())
		if !ok || expiry.After(limit) {
			continue
		}
		expiring = append(expiring, card)
	}
	return expiring
}
