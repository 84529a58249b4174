package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"weekplan/internal/bot"
	"weekplan/internal/repository"
	"weekplan/internal/service"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the device process: sync loop, daily report and the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			scheduler := service.NewSchedulerService(time.Local, logger)
			if a.orch != nil {
				if _, err := scheduler.ScheduleInterval(cfg.Remote.SyncInterval.Duration(), func() {
					jobCtx, cancel := context.WithTimeout(ctx, cfg.Remote.SyncInterval.Duration()+cfg.Remote.Timeout.Duration())
					defer cancel()
					report, err := a.orch.RunCycle(jobCtx)
					if err != nil && !errors.Is(err, context.Canceled) {
						logger.Printf("sync: %v", err)
						return
					}
					if !report.Unchanged {
						logger.Printf("[info] sync: %s", report)
					}
				}); err != nil {
					return err
				}
			}

			var telegramBot *bot.Bot
			if cfg.Bot.TelegramToken != "" {
				opts := bot.Options{Location: time.Local}
				if a.orch != nil {
					opts.Sync = a.orch
				}
				telegramBot, err = bot.New(cfg.Bot.TelegramToken, repository.NewUserRepository(a.db), a.planner, service.NewReportService(a.planner), opts)
				if err != nil {
					return err
				}
				if _, err := scheduler.ScheduleDaily(cfg.Bot.ReportTime, func() {
					jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
					defer cancel()
					if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Printf("report: %v", err)
					}
				}); err != nil {
					return err
				}
			}

			scheduler.Start()
			defer scheduler.Stop()
			defer func() {
				if a.orch != nil {
					a.orch.Cancel()
				}
			}()

			logger.Println("Daily planner started.")
			if telegramBot != nil {
				if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
			} else {
				<-ctx.Done()
			}
			logger.Println("Shutdown complete.")
			return nil
		},
	}
}
