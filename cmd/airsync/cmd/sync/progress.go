package sync

import (
	"fmt"
	"io"

	domainsync "airsync/internal/domain/sync"

	"github.com/fatih/color"
)

var statusTitles = map[domainsync.Status]string{
	domainsync.StatusInitializing:       "Initializing",
	domainsync.StatusSyncingCollections: "Syncing collections",
	domainsync.StatusSyncingItems:       "Syncing items",
	domainsync.StatusDone:               "Done",
}

// progress печатает снимки прогона. На терминале строка перерисовывается,
// иначе печатается одна строка на каждую смену стадии.
type progress struct {
	w      io.Writer
	tty    bool
	status domainsync.Status
	drawn  bool
}

func newProgress(w io.Writer, tty bool) *progress {
	return &progress{w: w, tty: tty}
}

func (p *progress) update(s domainsync.Snapshot) {
	if p.tty {
		fmt.Fprintf(p.w, "\r\033[K%s %s", color.CyanString("%-20s", statusTitles[s.Status]), counters(s))
		p.drawn = true
		return
	}
	if s.Status != p.status {
		fmt.Fprintln(p.w, statusTitles[s.Status])
		p.status = s.Status
	}
}

func (p *progress) done() {
	if p.tty && p.drawn {
		fmt.Fprintln(p.w)
	}
}

func counters(s domainsync.Snapshot) string {
	return fmt.Sprintf("push %d/%d  pull %d/%d  errors %d  api calls %d",
		s.Pushed, s.ToPush, s.Pulled, s.ToPull, s.PullErrored, s.APICalls)
}

func printSummary(w io.Writer, s domainsync.Snapshot) {
	bold := color.New(color.Bold)
	bold.Fprintln(w, "Summary")
	fmt.Fprintf(w, "  remote: %d created, %d updated, %d removed\n",
		len(s.RecordsCreatedOnRemote), len(s.RecordsUpdatedOnRemote), len(s.RecordsRemovedFromRemote))
	fmt.Fprintf(w, "  local:  %d created, %d updated, %d deleted\n",
		len(s.DataCreatedFromRemote), len(s.DataUpdatedFromRemote), len(s.DataDeletedFromRemote))
	fmt.Fprintf(w, "  api calls: %d\n", s.APICalls)

	printErrors(w, "Push errors", s.PushErrors)
	printErrors(w, "Pull errors", s.DataUpdateErrors)

	if s.Status == domainsync.StatusDone {
		fmt.Fprintln(w, color.GreenString("Sync finished"))
	}
}

func printErrors(w io.Writer, title string, refs []domainsync.RecordRef) {
	if len(refs) == 0 {
		return
	}
	red := color.New(color.FgRed)
	red.Fprintf(w, "%s (%d)\n", title, len(refs))
	for _, r := range refs {
		id := r.ID
		if id == "" {
			id = r.RemoteID
		}
		fmt.Fprintf(w, "  %s %s: %s\n", r.Type, id, r.ErrorMessage)
	}
}
