package cmd

import (
	"airsync/cmd/airsync/cmd/integration"
	"airsync/cmd/airsync/cmd/sync"
)

func init() {
	rootCmd.AddCommand(sync.SyncCmd)
	rootCmd.AddCommand(serveCmd)

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)

	integration.IntegrationCmd.AddCommand(integration.AddCmd)
	integration.IntegrationCmd.AddCommand(integration.ListCmd)
	integration.IntegrationCmd.AddCommand(integration.UsageCmd)
	rootCmd.AddCommand(integration.IntegrationCmd)
}
