package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/iurnickita/giftcards/internal/config"
	"github.com/iurnickita/giftcards/internal/logger"
	"github.com/iurnickita/giftcards/internal/metrics"
	"github.com/iurnickita/giftcards/internal/service"
	"github.com/iurnickita/giftcards/internal/service/extractclient"
	"github.com/iurnickita/giftcards/internal/store"
)

// app: собранные зависимости одного запуска
type app struct {
	cfg      config.Config
	zaplog   *zap.Logger
	store    store.Store
	registry *prometheus.Registry
	service  service.Service
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return nil, err
	}

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	extractor, err := extractclient.NewExtractor(ctx, cfg.Extract, zaplog)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service, err := service.NewService(ctx, cfg.Service, store, extractor, zaplog, metrics.New(registry))
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		zaplog:   zaplog,
		store:    store,
		registry: registry,
		service:  service,
	}, nil
}

// Close дописывает резервную копию и закрывает хранилище.
func (a *app) Close() error {
	err := errors.Join(a.service.Close(), a.store.Close())
	a.zaplog.Sync()
	return err
}
