// Package reminder periodically warns about active cards that are about to expire.
package reminder

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/iurnickita/giftcards/internal/model"
	"github.com/iurnickita/giftcards/internal/reminder/config"
)

const (
	DefaultSchedule = "0 9 * * *"
	DefaultWindow   = 7 * 24 * time.Hour
)

// Source lists active cards expiring within window.
type Source interface {
	Expiring(ctx context.Context, now time.Time, window time.Duration) []model.Card
}

type Reminder struct {
	cron     *cron.Cron
	source   Source
	notifier Notifier
	window   time.Duration
	zaplog   *zap.Logger
	now      func() time.Time
}

func New(cfg config.Config, source Source, notifier Notifier, zaplog *zap.Logger) (*Reminder, error) {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}

	r := &Reminder{
		cron:     cron.New(cron.WithChain(cron.Recover(cronLogger{zaplog.Sugar()}))),
		source:   source,
		notifier: notifier,
		window:   window,
		zaplog:   zaplog,
		now:      time.Now,
	}
	if _, err := r.cron.AddFunc(schedule, func() { r.Check(context.Background()) }); err != nil {
		return nil, err
	}
	zaplog.Info("scheduled expiry reminder", zap.String("schedule", schedule), zap.Duration("window", window))
	return r, nil
}

// Check отправляет напоминание один раз. Ошибки только логируются.
func (r *Reminder) Check(ctx context.Context) int {
	cards := r.source.Expiring(ctx, r.now(), r.window)
	if len(cards) == 0 {
		return 0
	}
	if err := r.notifier.Notify(ctx, cards); err != nil {
		r.zaplog.Warn("expiry reminder failed", zap.Int("cards", len(cards)), zap.Error(err))
		return 0
	}
	return len(cards)
}

// Run запускает планировщик до отмены ctx.
func (r *Reminder) Run(ctx context.Context) error {
	r.cron.Start()
	<-ctx.Done()
	// ждём завершения запущенных задач
	<-r.cron.Stop().Done()
	return nil
}

// cronLogger передаёт сообщения cron в zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
