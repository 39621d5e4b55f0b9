package integration

import (
	"strings"

	"airsync/cmd/airsync/cmd/output"
	"airsync/cmd/airsync/cmd/types"
	"airsync/internal/domain/integration"

	"github.com/spf13/cobra"
)

var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список интеграций",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := types.AppFrom(cmd.Context())
		if err != nil {
			return err
		}

		intgs, err := a.Integrations.List(cmd.Context())
		if err != nil {
			return err
		}
		summaries := make([]integration.Summary, 0, len(intgs))
		for _, intg := range intgs {
			summaries = append(summaries, intg.Summarize())
		}

		return output.Print(cmd.OutOrStdout(), outputFormat, summaries, func() output.Table {
			t := output.Table{{"ID", "NAME", "BASE", "SCOPE", "LAST SYNCED"}}
			for i, s := range summaries {
				scope := string(s.ScopeType)
				cfg := intgs[i].Config
				switch s.ScopeType {
				case integration.ScopeCollections:
					scope += ": " + strings.Join(cfg.CollectionIDsToSync, ",")
				case integration.ScopeContainers:
					scope += ": " + strings.Join(cfg.ContainerIDsToSync, ",")
				}
				last := s.LastSyncedAt
				if last == "" {
					last = "never"
				}
				t = append(t, []string{s.ID, s.Name, s.BaseID, scope, last})
			}
			return t
		})
	},
}
