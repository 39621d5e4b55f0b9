package integration

import (
	"sort"
	"strconv"
	"time"

	"airsync/cmd/airsync/cmd/output"
	"airsync/cmd/airsync/cmd/types"
	"airsync/internal/domain/integration"

	"github.com/spf13/cobra"
)

var usageMonth string

// monthUsage вызовы API за месяц
type monthUsage struct {
	Month string `json:"month" yaml:"month"`
	Calls int    `json:"calls" yaml:"calls"`
}

var UsageCmd = &cobra.Command{
	Use:   "usage <id>",
	Short: "Вызовы API интеграции по месяцам",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := types.AppFrom(cmd.Context())
		if err != nil {
			return err
		}

		calls, err := a.Integrations.Usage(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		usage := usageRows(calls, usageMonth)

		return output.Print(cmd.OutOrStdout(), outputFormat, usage, func() output.Table {
			t := output.Table{{"MONTH", "CALLS"}}
			for _, u := range usage {
				t = append(t, []string{u.Month, strconv.Itoa(u.Calls)})
			}
			return t
		})
	},
}

// usageRows сортирует месяцы по убыванию; month ограничивает выборку одним месяцем
func usageRows(calls map[string]int, month string) []monthUsage {
	out := []monthUsage{}
	for m, n := range calls {
		if month != "" && m != month {
			continue
		}
		out = append(out, monthUsage{Month: m, Calls: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	return out
}

func init() {
	UsageCmd.Flags().StringVar(&usageMonth, "month", "", "месяц YYYY-MM, например "+integration.MonthKey(time.Now()))
}
