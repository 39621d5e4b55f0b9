package cmd

import (
	"airsync/cmd/airsync/cmd/types"
	"airsync/internal/app/server"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить HTTP API",
	Long: `Запускает HTTP API со списком интеграций, статистикой вызовов
и запуском синхронизации с потоковой передачей прогресса (SSE).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := types.AppFrom(cmd.Context())
		if err != nil {
			return err
		}

		addr := cfg.Server.RunAddress
		if serveAddr != "" {
			addr = serveAddr
		}
		if cfg.Server.APIToken == "" {
			log.Warn("API token is not set, requests are not authenticated")
		}

		err = server.Run(cmd.Context(), addr, a.Handler(), log)
		if err != nil {
			log.Error("Server stopped", slog.String("error", err.Error()))
			return err
		}
		log.Info("Server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "адрес HTTP сервера (по умолчанию run_address)")
}
