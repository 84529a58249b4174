package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"weekplan/internal/authority"
	"weekplan/internal/config"
	"weekplan/internal/repository"
)

func authorityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authority",
		Short: "Serve the remote authority HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Authority.Addr = addr
			}

			store, closeStore, err := authorityStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			srv := &http.Server{
				Addr:              cfg.Authority.Addr,
				Handler:           authority.NewRouter(authority.NewService(store, logger)),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Printf("[info] authority listening on %s (store %s)", cfg.Authority.Addr, cfg.Authority.Store)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown: %w", err)
				}
			}
			logger.Println("Shutdown complete.")
			return nil
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides AUTHORITY_ADDR)")
	return cmd
}

func authorityStore(ctx context.Context, cfg config.Config, logger *log.Logger) (repository.Store, func(), error) {
	switch cfg.Authority.Store {
	case "memory":
		logger.Println("[info] authority state is in memory and will not survive a restart")
		return repository.NewMemoryStore(), func() {}, nil
	case "postgres":
		pg, err := repository.NewPostgresStore(ctx, cfg.Authority.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case "redis":
		rdb, err := repository.NewRedisClient(redisOptions(cfg.Redis))
		if err != nil {
			return nil, nil, err
		}
		return repository.NewCloudStore(rdb, "authority"), func() { _ = rdb.Close() }, nil
	default:
		db, err := repository.NewDB(cfg.Store.DatabaseURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("db: %w", err)
		}
		closeDB := func() {}
		if sqlDB, err := db.DB(); err == nil {
			closeDB = func() { _ = sqlDB.Close() }
		}
		return repository.NewLocalStore(db), closeDB, nil
	}
}
