package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"airsync/cmd/airsync/cmd/types"
	"airsync/internal/app"
	"airsync/internal/config"
	"airsync/internal/utils/logger"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

// skipApp аннотация команд, которым не нужно открывать хранилище
const skipApp = "skip-app"

var (
	cfgFile     string
	cfg         *config.Config
	log         *slog.Logger
	application *app.App
)

var rootCmd = &cobra.Command{
	Use:   "airsync",
	Short: "airsync - двусторонняя синхронизация каталога с Airtable",
	Long: `airsync синхронизирует коллекции и предметы локального хранилища
с базой Airtable в обе стороны.

Изменения, сделанные с любой стороны, переносятся на другую; при конфликте
побеждает более позднее изменение.`,
	PersistentPreRunE:  setupApp,
	PersistentPostRunE: closeApp,
	SilenceUsage:       true,
	SilenceErrors:      true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		stop()
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}
	log = logger.NewWithFile(cfg.Env, cfg.Logger.File)

	if cmd.Annotations[skipApp] == "true" {
		return nil
	}

	application, err = app.New(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	cmd.SetContext(types.WithApp(cmd.Context(), application))
	return nil
}

func closeApp(_ *cobra.Command, _ []string) error {
	if application == nil {
		return nil
	}
	return application.Close()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл (yaml)")
}
