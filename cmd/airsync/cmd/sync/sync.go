package sync

import (
	"errors"
	"fmt"
	"io"
	"os"

	"airsync/cmd/airsync/cmd/types"
	domainsync "airsync/internal/domain/sync"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var full bool

// SyncCmd запускает синхронизацию одной интеграции
var SyncCmd = &cobra.Command{
	Use:   "sync <integration-id>",
	Short: "Синхронизировать интеграцию с Airtable",
	Long: `Выполняет один прогон: выгрузка локальных изменений, загрузка
изменений из Airtable и сверка удаленных записей.

С флагом --full игнорируются метки прошлых прогонов.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := types.AppFrom(cmd.Context())
		if err != nil {
			return err
		}

		stream, err := a.StartSync(cmd.Context(), args[0], full)
		if err != nil {
			return err
		}
		defer stream.Close()

		out := cmd.OutOrStdout()
		return render(out, newProgress(out, isTerminal(out)), stream)
	},
}

// snapshots поток снимков прогона
type snapshots interface {
	Next() bool
	Snapshot() domainsync.Snapshot
	Err() error
	Close() error
}

// render выводит прогресс до завершения прогона и итоговую сводку
func render(out io.Writer, p *progress, stream snapshots) error {
	for stream.Next() {
		p.update(stream.Snapshot())
	}
	p.done()

	err := errors.Join(stream.Err(), stream.Close())
	printSummary(out, stream.Snapshot())
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func init() {
	SyncCmd.Flags().BoolVar(&full, "full", false, "полная синхронизация без учета прошлых прогонов")
}
