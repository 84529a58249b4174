package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"

	"weekplan/internal/config"
	"weekplan/internal/model"
	"weekplan/internal/remote"
	"weekplan/internal/repository"
	"weekplan/internal/service"
	"weekplan/internal/syncer"
)

// app is the device side: local state, planner and the optional sync orchestrator.
type app struct {
	cfg     config.Config
	logger  *log.Logger
	db      *gorm.DB
	repo    *repository.PlannerRepository
	planner *service.PlannerService
	orch    *syncer.Orchestrator
	closers []func()
}

// newLogger writes to stderr and, when LOG_FILE is set, to a rotating file.
func newLogger(cfg config.LogConfig) *log.Logger {
	var w io.Writer = os.Stderr
	if cfg.File != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	}
	log.SetOutput(w)
	return log.New(w, "", log.LstdFlags)
}

func loadConfig() (config.Config, *log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config: %w", err)
	}
	return cfg, newLogger(cfg.Log), nil
}

func newApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	db, err := repository.NewDB(cfg.Store.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	a.db = db
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	}

	store, err := a.deviceStore(db)
	if err != nil {
		a.Close()
		return nil, err
	}

	template, err := model.LoadTemplate(cfg.Device.TemplatePath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.repo = repository.NewPlannerRepository(store, template, logger)

	deviceID, err := a.repo.DeviceID(ctx, cfg.Device.ID)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("device id: %w", err)
	}
	logger.Printf("[info] device %s, store %s", deviceID, cfg.Store.Kind)

	a.planner = service.NewPlannerService(a.repo, model.NewStamper(deviceID, time.Now), logger)

	if cfg.SyncEnabled() {
		policy, err := syncer.ParseFailurePolicy(cfg.Remote.FailurePolicy)
		if err != nil {
			a.Close()
			return nil, err
		}
		client := remote.NewClient(cfg.Remote.URL, cfg.Remote.Token, cfg.Remote.Timeout.Duration())
		a.orch = syncer.New(client, a.planner, a.repo, syncer.Options{Policy: policy, Logger: logger})
		a.planner.SetPusher(a.orch)
		logger.Printf("[info] sync with %s every %s (%s)", cfg.Remote.URL, cfg.Remote.SyncInterval.Duration(), policy)
	}
	return a, nil
}

func (a *app) deviceStore(db *gorm.DB) (repository.Store, error) {
	switch a.cfg.Store.Kind {
	case "memory":
		return repository.NewMemoryStore(), nil
	case "cloud", "smart":
		cloud, err := a.cloudStore()
		if err != nil {
			return nil, err
		}
		if a.cfg.Store.Kind == "cloud" {
			return cloud, nil
		}
		return repository.NewSmartStore(repository.NewLocalStore(db), cloud, a.logger), nil
	default:
		return repository.NewLocalStore(db), nil
	}
}

func (a *app) cloudStore() (*repository.CloudStore, error) {
	rdb, err := repository.NewRedisClient(redisOptions(a.cfg.Redis))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	return repository.NewCloudStore(rdb, a.cfg.Device.ID), nil
}

func redisOptions(cfg config.RedisConfig) repository.RedisOptions {
	return repository.RedisOptions{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
