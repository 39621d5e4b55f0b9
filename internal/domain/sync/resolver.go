package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"airsync/internal/domain/entity"
	"airsync/internal/domain/mapping"
	"airsync/internal/infrastructure/airtable"
)

// resolver кэш local id -> remote id одного типа на время прогона.
// Документ без связанной записи создается на удаленной стороне по требованию.
type resolver struct {
	run   *run
	conv  mapping.Converter
	cache map[string]string
	// created документы, созданные по требованию в этом прогоне
	created map[string]bool
	// sent поля, с которыми документ был создан; ссылки в них только искались
	sent map[string]airtable.Record
	// completed созданные по требованию документы, ссылки которых уже дописаны
	completed map[string]bool
}

func newResolver(r *run, conv mapping.Converter) *resolver {
	return &resolver{
		run:       r,
		conv:      conv,
		cache:     map[string]string{},
		created:   map[string]bool{},
		sent:      map[string]airtable.Record{},
		completed: map[string]bool{},
	}
}

func (rs *resolver) Resolve(ctx context.Context, localID string) (string, bool, error) {
	return rs.resolve(ctx, localID, true)
}

func (rs *resolver) remember(localID, recordID string) {
	rs.cache[localID] = recordID
}

// lookup представление резолвера без создания записей
func (rs *resolver) lookup() mapping.Refs {
	return lookupRefs{rs: rs}
}

type lookupRefs struct {
	rs *resolver
}

func (l lookupRefs) Resolve(ctx context.Context, localID string) (string, bool, error) {
	return l.rs.resolve(ctx, localID, false)
}

func (rs *resolver) resolve(ctx context.Context, localID string, create bool) (string, bool, error) {
	if rid, ok := rs.cache[localID]; ok {
		return rid, true, nil
	}

	r := rs.run
	typ, table := rs.conv.Type(), rs.conv.Table()

	d, err := r.repo.GetDatum(ctx, typ, localID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to load %s %s: %w", typ, localID, err)
	}
	if d.Deleted {
		return "", false, nil
	}

	if rid, ok := isLinked(d, r.intg.ID); ok {
		exists := true
		if r.opts.FullSync {
			if exists, err = r.remoteExists(ctx, table, rid); err != nil {
				return "", false, err
			}
		}
		if exists {
			rs.cache[localID] = rid
			return rid, true, nil
		}
	}

	if !create {
		return "", false, nil
	}
	if !d.Valid {
		return "", false, fmt.Errorf("%s %s is invalid", typ, localID)
	}

	rec, err := rs.conv.ToRecord(ctx, d)
	if err != nil {
		return "", false, err
	}
	results, err := r.gw.CreateRecords(ctx, table, []airtable.Record{rec})
	if err != nil {
		return "", false, fmt.Errorf("failed to create %s record for %s: %w", typ, localID, err)
	}
	if len(results) == 0 {
		return "", false, nil
	}

	rid := results[0].ID
	if err := r.patchLink(ctx, typ, localID, entity.Link{ID: rid, ModifiedAt: r.now()}); err != nil {
		return "", false, err
	}
	rs.cache[localID] = rid
	rs.created[localID] = true
	rs.sent[localID] = rec
	r.snap.ToPush++
	r.snap.Pushed++
	r.snap.RecordsCreatedOnRemote = append(r.snap.RecordsCreatedOnRemote, RecordRef{Type: typ, ID: localID, RemoteID: rid})
	r.log.Debug("Created referenced record", "type", typ, "id", localID, "record_id", rid)
	return rid, true, nil
}

// pending созданные по требованию документы, ссылки которых еще не дописаны
func (rs *resolver) pending() []string {
	var ids []string
	for id := range rs.created {
		if !rs.completed[id] {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
