package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iurnickita/giftcards/internal/backup"
	"github.com/iurnickita/giftcards/internal/balance"
	"github.com/iurnickita/giftcards/internal/cardfile"
	"github.com/iurnickita/giftcards/internal/lifecycle"
	"github.com/iurnickita/giftcards/internal/metrics"
	"github.com/iurnickita/giftcards/internal/model"
	"github.com/iurnickita/giftcards/internal/reconcile"
	"github.com/iurnickita/giftcards/internal/service/config"
	"github.com/iurnickita/giftcards/internal/service/extractclient"
	"github.com/iurnickita/giftcards/internal/store"
)

type Service interface {
	AddCards(ctx context.Context, cards []model.NewCard) (AddResult, error)
	ExtractCards(ctx context.Context, text string) (AddResult, error)
	ListCards(ctx context.Context, now time.Time) Listing
	GetCard(ctx context.Context, id string) (model.Card, error)
	UpdateBalance(ctx context.Context, id string, amount decimal.Decimal, expiryDate string) (model.Card, error)
	RefreshBalance(ctx context.Context, id string, text string) (model.Card, error)
	DeleteCard(ctx context.Context, id string) error
	Export(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, data []byte) (int, error)
	SetBackupTarget(ctx context.Context, path string) error
	BackupStatus() backup.Status
	SyncFromBackup(cards []model.Card)
	Expiring(ctx context.Context, now time.Time, window time.Duration) []model.Card
	Run(ctx context.Context) error
	Close() error
}

var (
	ErrInsufficientData      = errors.New("insufficient data")
	ErrInvalidCard           = errors.New("invalid card")
	ErrCardNotFound          = errors.New("card not found")
	ErrNothingFound          = errors.New("nothing found")
	ErrExtractionUnavailable = errors.New("extraction unavailable")
	ErrMalformedImport       = errors.New("malformed import")
	ErrPermissionRequired    = errors.New("backup permission required")
)

// AddResult: Duplicates и Rejected - информация для пользователя, не ошибка.
type AddResult struct {
	Added      []model.Card
	Duplicates []string
	Rejected   int
}

type Listing struct {
	Active   []model.Card
	Archived []model.Card
}

type service struct {
	cfg       config.Config
	store     store.Store
	extractor extractclient.Extractor
	autosaver *backup.Autosaver
	watcher   *backup.Watcher
	metrics   *metrics.Metrics
	zaplog    *zap.Logger
	now       func() time.Time

	// одно событие обрабатывается целиком до следующего
	mu    sync.Mutex
	cards []model.Card
}

func NewService(ctx context.Context, cfg config.Config, store store.Store, extractor extractclient.Extractor, zaplog *zap.Logger, m *metrics.Metrics) (Service, error) {
	cards, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}

	service := &service{
		cfg:       cfg,
		store:     store,
		extractor: extractor,
		autosaver: backup.NewAutosaver(cfg.AutosaveDelay, zaplog, m),
		metrics:   m,
		zaplog:    zaplog,
		now:       time.Now,
		cards:     cards,
	}

	if cfg.WatchBackup {
		service.watcher, err = backup.NewWatcher(service.autosaver.Wrote, service.SyncFromBackup, zaplog)
		if err != nil {
			return nil, fmt.Errorf("backup watcher: %w", err)
		}
	}

	handle, err := store.LoadHandle(ctx)
	if err != nil {
		return nil, fmt.Errorf("load backup target: %w", err)
	}
	if handle != "" {
		if err := service.attachTarget(handle); err != nil && !errors.Is(err, ErrPermissionRequired) {
			zaplog.Warn("backup target unavailable", zap.String("target", handle), zap.Error(err))
		}
	}

	active, archived := lifecycle.Partition(cards, service.now())
	m.SetCards(len(active), len(archived))

	return service, nil
}

func (service *service) AddCards(ctx context.Context, cards []model.NewCard) (AddResult, error) {
	if len(cards) == 0 {
		return AddResult{}, ErrInsufficientData
	}
	// ручной ввод: одна ошибка - отказ всей пачки
	for _, card := range cards {
		if err := model.ValidateNewCard(card); err != nil {
			return AddResult{}, fmt.Errorf("%w: %w", ErrInvalidCard, err)
		}
	}

	service.mu.Lock()
	defer service.mu.Unlock()
	return service.merge(ctx, cards, 0), nil
}

func (service *service) ExtractCards(ctx context.Context, text string) (AddResult, error) {
	if text == "" {
		return AddResult{}, ErrInsufficientData
	}

	candidates, err := service.extractor.ExtractCards(ctx, text)
	if err == nil && len(candidates) == 0 {
		err = ErrNothingFound
	}
	if err != nil {
		err = service.extractionError(err)
		service.metrics.RecordExtraction(extractclient.TaskCards, resultLabel(err))
		return AddResult{}, err
	}
	service.metrics.RecordExtraction(extractclient.TaskCards, resultLabel(nil))

	valid, rejected := reconcile.FilterValid(candidates)
	if rejected > 0 {
		service.zaplog.Info("extracted cards rejected", zap.Int("rejected", rejected))
	}

	service.mu.Lock()
	defer service.mu.Unlock()
	return service.merge(ctx, valid, rejected), nil
}

// merge must be called with mu held.
func (service *service) merge(ctx context.Context, candidates []model.NewCard, rejected int) AddResult {
	result := AddResult{Rejected: rejected}
	if len(candidates) == 0 {
		service.metrics.RecordMerge(0, 0, rejected)
		return result
	}

	before := len(service.cards)
	updated, duplicates := reconcile.MergeNew(service.cards, candidates, service.now())
	result.Added = append([]model.Card(nil), updated[before:]...)
	result.Duplicates = duplicates
	service.metrics.RecordMerge(len(result.Added), len(duplicates), rejected)

	if len(result.Added) > 0 {
		service.commit(ctx, updated)
	}
	return result
}

func (service *service) ListCards(_ context.Context, now time.Time) Listing {
	service.mu.Lock()
	defer service.mu.Unlock()

	active, archived := lifecycle.Partition(service.cards, now)
	return Listing{Active: active, Archived: archived}
}

func (service *service) GetCard(_ context.Context, id string) (model.Card, error) {
	service.mu.Lock()
	defer service.mu.Unlock()

	for _, card := range service.cards {
		if card.ID == id {
			return card, nil
		}
	}
	return model.Card{}, ErrCardNotFound
}

func (service *service) UpdateBalance(ctx context.Context, id string, amount decimal.Decimal, expiryDate string) (model.Card, error) {
	return service.applyBalance(ctx, id, model.Found{Balance: amount, ExpiryDate: expiryDate})
}

func (service *service) RefreshBalance(ctx context.Context, id string, text string) (model.Card, error) {
	if text == "" {
		return model.Card{}, ErrInsufficientData
	}
	if _, err := service.GetCard(ctx, id); err != nil {
		return model.Card{}, err
	}

	update, err := service.extractor.ExtractBalance(ctx, text)
	if err == nil {
		if _, ok := update.(model.NotFound); ok {
			err = ErrNothingFound
		}
	}
	if err != nil {
		err = service.extractionError(err)
		service.metrics.RecordExtraction(extractclient.TaskBalance, resultLabel(err))
		return model.Card{}, err
	}
	service.metrics.RecordExtraction(extractclient.TaskBalance, resultLabel(nil))

	return service.applyBalance(ctx, id, update)
}

func (service *service) applyBalance(ctx context.Context, id string, update model.BalanceUpdate) (model.Card, error) {
	service.mu.Lock()
	defer service.mu.Unlock()

	updated, err := balance.Apply(service.cards, id, update, service.now())
	if err != nil {
		switch {
		case errors.Is(err, balance.ErrCardNotFound):
			return model.Card{}, ErrCardNotFound
		case errors.Is(err, balance.ErrNothingFound):
			return model.Card{}, ErrNothingFound
		case errors.Is(err, model.ErrNegativeBalance):
			return model.Card{}, fmt.Errorf("%w: %w", ErrInvalidCard, err)
		default:
			return model.Card{}, err
		}
	}
	service.commit(ctx, updated)

	for _, card := range updated {
		if card.ID == id {
			return card, nil
		}
	}
	return model.Card{}, ErrCardNotFound
}

func (service *service) DeleteCard(ctx context.Context, id string) error {
	service.mu.Lock()
	defer service.mu.Unlock()

	updated, ok := reconcile.Remove(service.cards, id)
	if !ok {
		return ErrCardNotFound
	}
	service.commit(ctx, updated)
	return nil
}

func (service *service) Export(_ context.Context) ([]byte, error) {
	service.mu.Lock()
	snapshot := append([]model.Card(nil), service.cards...)
	service.mu.Unlock()

	return cardfile.Encode(snapshot)
}

// Import validates the whole payload before anything is merged.
func (service *service) Import(ctx context.Context, data []byte) (int, error) {
	imported, err := cardfile.Decode(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}

	service.mu.Lock()
	defer service.mu.Unlock()

	if len(imported) > 0 {
		service.commit(ctx, reconcile.ImportMerge(service.cards, imported, service.now()))
	}
	return len(imported), nil
}

// SetBackupTarget selects (or re-authorizes) the backup file and schedules a full write.
func (service *service) SetBackupTarget(ctx context.Context, path string) error {
	if path == "" {
		return ErrInsufficientData
	}
	target, err := backup.NewFileTarget(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInsufficientData, err)
	}
	if err := service.store.SaveHandle(ctx, target.Path()); err != nil {
		return err
	}

	err = service.attachTarget(target.Path())
	if err != nil {
		return err
	}

	service.mu.Lock()
	service.autosaver.Schedule(service.cards)
	service.mu.Unlock()
	return nil
}

func (service *service) attachTarget(path string) error {
	target, err := backup.NewFileTarget(path)
	if err != nil {
		return err
	}
	service.autosaver.SetTarget(target)
	if service.watcher != nil {
		if err := service.watcher.Watch(target.Path()); err != nil {
			service.zaplog.Warn("backup watch failed", zap.String("target", target.Path()), zap.Error(err))
		}
	}

	err = service.autosaver.Verify()
	if errors.Is(err, backup.ErrPermissionRequired) {
		return ErrPermissionRequired
	}
	return err
}

func (service *service) BackupStatus() backup.Status {
	return service.autosaver.Status()
}

// SyncFromBackup merges cards edited outside of the application.
func (service *service) SyncFromBackup(cards []model.Card) {
	service.mu.Lock()
	defer service.mu.Unlock()

	service.zaplog.Info("backup file changed externally", zap.Int("cards", len(cards)))
	service.commit(context.Background(), reconcile.ImportMerge(service.cards, cards, service.now()))
}

func (service *service) Expiring(_ context.Context, now time.Time, window time.Duration) []model.Card {
	service.mu.Lock()
	defer service.mu.Unlock()

	return lifecycle.ExpiringWithin(service.cards, now, window)
}

// Run watches the backup file until ctx is done.
func (service *service) Run(ctx context.Context) error {
	if service.watcher == nil {
		<-ctx.Done()
		return nil
	}
	return service.watcher.Run(ctx)
}

// Close flushes the pending backup write.
func (service *service) Close() error {
	service.autosaver.Close()
	if service.watcher != nil {
		return service.watcher.Close()
	}
	return nil
}

// commit must be called with mu held. Persistence failures are logged and
// never roll back the in-memory collection.
func (service *service) commit(ctx context.Context, cards []model.Card) {
	service.cards = cards

	if err := service.store.Save(context.WithoutCancel(ctx), cards); err != nil {
		service.zaplog.Error("save cards failed", zap.Error(err))
	}
	service.autosaver.Schedule(cards)

	active, archived := lifecycle.Partition(cards, service.now())
	service.metrics.SetCards(len(active), len(archived))
}

func (service *service) extractionError(err error) error {
	switch {
	case errors.Is(err, extractclient.ErrNothingFound), errors.Is(err, ErrNothingFound):
		return ErrNothingFound
	case errors.Is(err, extractclient.ErrNotConfigured), errors.Is(err, extractclient.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrExtractionUnavailable, err)
	default:
		service.zaplog.Warn("extraction failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrExtractionUnavailable, err)
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNothingFound):
		return "nothing_found"
	default:
		return "failed"
	}
}
