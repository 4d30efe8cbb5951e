package extractclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/iurnickita/giftcards/internal/model"
)

type breaker struct {
	next Extractor
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker stops calling a failing extraction service for a while.
// "Nothing found" answers are not failures.
func NewBreaker(name string, next Extractor, zaplog *zap.Logger) Extractor {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNothingFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			zaplog.Warn("extraction circuit breaker state changed",
				zap.String("extractor", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
	return &breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *breaker) ExtractCards(ctx context.Context, text string) ([]model.NewCard, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.ExtractCards(ctx, text)
	})
	if err != nil {
		return nil, b.convert(err)
	}
	cards, _ := result.([]model.NewCard)
	return cards, nil
}

func (b *breaker) ExtractBalance(ctx context.Context, text string) (model.BalanceUpdate, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.ExtractBalance(ctx, text)
	})
	if err != nil {
		return nil, b.convert(err)
	}
	update, ok := result.(model.BalanceUpdate)
	if !ok {
		return model.NotFound{}, nil
	}
	return update, nil
}

func (b *breaker) convert(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
