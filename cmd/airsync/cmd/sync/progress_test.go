package sync

import (
	"bytes"
	"errors"
	"testing"

	domainsync "airsync/internal/domain/sync"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgress_Plain(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	p := newProgress(&buf, false)

	p.update(domainsync.Snapshot{Status: domainsync.StatusInitializing})
	p.update(domainsync.Snapshot{Status: domainsync.StatusSyncingCollections})
	p.update(domainsync.Snapshot{Status: domainsync.StatusSyncingCollections, Pushed: 1})
	p.update(domainsync.Snapshot{Status: domainsync.StatusDone})
	p.done()

	assert.Equal(t, "Initializing\nSyncing collections\nDone\n", buf.String())
}

func TestProgress_Terminal(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	p := newProgress(&buf, true)

	p.update(domainsync.Snapshot{Status: domainsync.StatusSyncingItems, Pushed: 2, ToPush: 5, APICalls: 3})
	p.done()

	out := buf.String()
	assert.Contains(t, out, "\r\033[K")
	assert.Contains(t, out, "push 2/5")
	assert.Contains(t, out, "api calls 3")
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
}

func TestPrintSummary(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		name        string
		snap        domainsync.Snapshot
		contains    []string
		notContains []string
	}{
		{
			name: "clean run",
			snap: domainsync.Snapshot{
				Status:                 domainsync.StatusDone,
				APICalls:               4,
				RecordsCreatedOnRemote: []domainsync.RecordRef{{Type: "item", ID: "i1"}},
			},
			contains:    []string{"remote: 1 created, 0 updated, 0 removed", "api calls: 4", "Sync finished"},
			notContains: []string{"Push errors", "Pull errors"},
		},
		{
			name: "errors listed",
			snap: domainsync.Snapshot{
				Status:           domainsync.StatusSyncingItems,
				PushErrors:       []domainsync.RecordRef{{Type: "item", ID: "i1", ErrorMessage: "boom"}},
				DataUpdateErrors: []domainsync.RecordRef{{Type: "item", RemoteID: "rec1", ErrorMessage: "invalid"}},
			},
			contains:    []string{"Push errors (1)", "item i1: boom", "Pull errors (1)", "item rec1: invalid"},
			notContains: []string{"Sync finished"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printSummary(&buf, tt.snap)
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

// scriptedStream отдает заранее заданные снимки
type scriptedStream struct {
	snaps  []domainsync.Snapshot
	pos    int
	err    error
	closed int
}

func (s *scriptedStream) Next() bool {
	if s.pos >= len(s.snaps) {
		return false
	}
	s.pos++
	return true
}

func (s *scriptedStream) Snapshot() domainsync.Snapshot {
	if s.pos == 0 {
		return domainsync.Snapshot{}
	}
	return s.snaps[s.pos-1]
}

func (s *scriptedStream) Err() error { return s.err }

func (s *scriptedStream) Close() error {
	s.closed++
	return nil
}

func TestRender(t *testing.T) {
	color.NoColor = true
	errRemote := errors.New("remote unavailable")

	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "success"},
		{name: "run error", err: errRemote, wantErr: errRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			stream := &scriptedStream{
				snaps: []domainsync.Snapshot{
					{Status: domainsync.StatusInitializing},
					{Status: domainsync.StatusSyncingItems},
					{Status: domainsync.StatusDone, RecordsCreatedOnRemote: []domainsync.RecordRef{{Type: "item", ID: "itm1"}}},
				},
				err: tt.err,
			}

			err := render(&buf, newProgress(&buf, false), stream)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, 1, stream.closed)
			out := buf.String()
			assert.Contains(t, out, "Initializing\nSyncing items\nDone\n")
			assert.Contains(t, out, "remote: 1 created, 0 updated, 0 removed")
		})
	}
}
