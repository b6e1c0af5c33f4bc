package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"device-loan-backend/internal/app"
	"device-loan-backend/internal/config"
	"device-loan-backend/internal/jobs"
	"device-loan-backend/internal/logger"
	"device-loan-backend/internal/scheduler"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type runtime struct {
	configPath string
	app        *app.App
}

func newRootCommand() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:           "cronjob",
		Short:         "Scheduled jobs for the device loan backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rt.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			logger.Initialize(cfg.Log.Level, cfg.Log.Format)

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			rt.app = a
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if rt.app != nil {
				return rt.app.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&rt.configPath, "config", "config/config.yaml", "Path to configuration file")

	root.AddCommand(scheduleCommand(rt), runCommand(rt))
	return root
}

func scheduleCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run jobs on their cron schedules until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := scheduler.NewScheduler(rt.app.Jobs, rt.app.Config.Scheduler)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s.Start()
			logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")
			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), rt.app.Config.Server.ShutdownTimeout)
			defer cancel()
			s.Stop(stopCtx)
			return nil
		},
	}
}

func runCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:       "run [job]",
		Short:     "Run one job, or all of them, once and exit",
		ValidArgs: []string{jobs.JobRetryWaitlistNotifications, jobs.JobSendOverdueReminders, "all"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("Running job once", "job", args[0])
			if args[0] == "all" {
				return rt.app.Jobs.RunAll(ctx)
			}
			return rt.app.Jobs.Run(ctx, args[0])
		},
	}
}
