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

// typeSync параметры синхронизации одного типа документов
type typeSync struct {
	conv  mapping.Converter
	scope entity.Conditions
	refs  *resolver
	// skip документы, которые не создаются, не обновляются и не принимают изменения
	skip map[string]bool
	// skipForCreation документы, уже созданные по ссылке в этом прогоне
	skipForCreation map[string]bool
}

// syncType выполняет шаги синхронизации одного типа по порядку:
// надгробия, набор на отправку, создание, прием, обратная запись, обновление, удаление.
func (r *run) syncType(ctx context.Context, t typeSync) error {
	typ := t.conv.Type()

	tombstones, err := r.loadTombstones(ctx, typ)
	if err != nil {
		return err
	}
	tombstoned := make(map[string]bool, len(tombstones))
	for _, ts := range tombstones {
		tombstoned[ts.RemoteID] = true
	}

	pending, err := r.pushSet(ctx, typ, t.scope)
	if err != nil {
		return err
	}

	created, err := r.createRecords(ctx, t, pending)
	if err != nil {
		return err
	}
	if err := r.completeCreated(ctx, t); err != nil {
		return err
	}

	st := &pullState{
		tombstoned: tombstoned,
		pulled:     map[string]bool{},
		removed:    map[string]bool{},
	}
	if err := r.pullRecords(ctx, t, st); err != nil {
		return fmt.Errorf("failed to update %s data from remote records: %w", typ, err)
	}

	if err := r.pushUpdates(ctx, t, pending, created, st.pulled); err != nil {
		return err
	}
	if err := r.completeCreated(ctx, t); err != nil {
		return err
	}

	if err := r.deleteTombstoned(ctx, t, st.removed); err != nil {
		return err
	}

	r.log.Info("Data type synced", "type", typ, "pending", len(pending), "created", len(created), "pulled", len(st.pulled))
	return r.emit(ctx)
}

func (r *run) loadTombstones(ctx context.Context, typ string) ([]entity.Tombstone, error) {
	data, err := r.repo.GetData(ctx, entity.TypeDeletedData, entity.TombstoneConditions(r.intg.ID, typ), entity.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to load deleted %s data: %w", typ, err)
	}
	out := make([]entity.Tombstone, 0, len(data))
	for _, d := range data {
		if ts, ok := entity.ParseTombstone(d); ok {
			out = append(out, ts)
		}
	}
	return out, nil
}

// pushSet документы в области синхронизации и связанные документы, измененные после прошлой отправки
func (r *run) pushSet(ctx context.Context, typ string, scope entity.Conditions) ([]*entity.Datum, error) {
	inScope, err := r.repo.GetData(ctx, typ, scope, entity.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s data in scope: %w", typ, err)
	}
	synced, err := r.repo.GetData(ctx, typ, entity.Conditions{
		Linked:       r.intg.ID,
		UpdatedAfter: r.lastPush,
	}, entity.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get synced %s data: %w", typ, err)
	}

	seen := make(map[string]bool, len(inScope)+len(synced))
	out := make([]*entity.Datum, 0, len(inScope)+len(synced))
	for _, d := range slices.Concat(inScope, synced) {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}
	return out, nil
}

// createRecords создает удаленные записи для документов без связи.
// Возвращает id документов, отобранных для создания.
func (r *run) createRecords(ctx context.Context, t typeSync, pending []*entity.Datum) (map[string]bool, error) {
	typ, table := t.conv.Type(), t.conv.Table()

	var toCreate []*entity.Datum
	for _, d := range pending {
		if !d.Valid || t.skip[d.ID] {
			continue
		}
		if rid, ok := isLinked(d, r.intg.ID); ok {
			if !r.opts.FullSync {
				continue
			}
			exists, err := r.remoteExists(ctx, table, rid)
			if err != nil {
				return nil, err
			}
			if exists {
				continue
			}
		}
		toCreate = append(toCreate, d)
	}

	created := make(map[string]bool, len(toCreate))
	for _, d := range toCreate {
		created[d.ID] = true
	}

	r.snap.ToPush += len(toCreate)
	if err := r.emit(ctx); err != nil {
		return nil, err
	}

	for chunk := range slices.Chunk(toCreate, airtable.MaxRecordsPerRequest) {
		converted := make(map[string]airtable.Record, len(chunk))
		for _, d := range chunk {
			if t.skipForCreation[d.ID] {
				continue
			}
			rec, err := t.conv.ToRecord(ctx, d)
			if err != nil {
				r.pushError(typ, d.ID, "", err)
				continue
			}
			converted[d.ID] = rec
		}
		// документ мог быть создан по ссылке во время конвертации соседей по пачке
		records := make([]airtable.Record, 0, len(converted))
		for _, d := range chunk {
			if rec, ok := converted[d.ID]; ok && !t.skipForCreation[d.ID] {
				records = append(records, rec)
			}
		}

		if len(records) > 0 {
			results, err := r.gw.CreateRecords(ctx, table, records)
			if err != nil {
				return nil, fmt.Errorf("failed to create %s records: %w", typ, err)
			}
			for _, rec := range results {
				id, _ := rec.Fields[airtable.FieldID].(string)
				if id == "" {
					continue
				}
				if err := r.patchLink(ctx, typ, id, entity.Link{ID: rec.ID, ModifiedAt: r.now()}); err != nil {
					return nil, err
				}
				t.refs.remember(id, rec.ID)
				r.snap.RecordsCreatedOnRemote = append(r.snap.RecordsCreatedOnRemote,
					RecordRef{Type: typ, ID: id, RemoteID: rec.ID})
			}
		}

		r.snap.Pushed += len(chunk)
		if err := r.emit(ctx); err != nil {
			return nil, err
		}
	}
	return created, nil
}

// completeCreated дописывает ссылки записей, созданных по требованию.
// Такие записи конвертируются без создания связанных записей, поэтому ссылка
// на еще не созданного родителя в них пропущена. После создания пачки все
// родители известны, и запись обновляется полной конвертацией. Конвертация
// может создать новые записи по требованию, поэтому шаг повторяется до пустого списка.
func (r *run) completeCreated(ctx context.Context, t typeSync) error {
	typ, table := t.conv.Type(), t.conv.Table()

	for ids := t.refs.pending(); len(ids) > 0; ids = t.refs.pending() {
		var records []airtable.Record
		for _, id := range ids {
			t.refs.completed[id] = true

			d, err := r.repo.GetDatum(ctx, typ, id)
			if err != nil {
				if errors.Is(err, entity.ErrNotFound) {
					continue
				}
				return fmt.Errorf("failed to load %s %s: %w", typ, id, err)
			}
			rid, ok := isLinked(d, r.intg.ID)
			if d.Deleted || !ok {
				continue
			}
			rec, err := t.conv.ToRecord(ctx, d)
			if err != nil {
				r.pushError(typ, id, rid, err)
				continue
			}
			if !mapping.HasFieldChanges(t.refs.sent[id].Fields, rec.Fields) {
				continue
			}
			rec.ID = rid
			records = append(records, rec)
		}

		for chunk := range slices.Chunk(records, airtable.MaxRecordsPerRequest) {
			r.snap.ToPush += len(chunk)
			results, err := r.gw.UpdateRecords(ctx, table, chunk)
			if err != nil {
				return fmt.Errorf("failed to complete %s records: %w", typ, err)
			}
			if err := r.linkUpdated(ctx, typ, results); err != nil {
				return err
			}
			r.snap.Pushed += len(chunk)
			if err := r.emit(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// linkUpdated обновляет ссылки по ответу на изменение записей
func (r *run) linkUpdated(ctx context.Context, typ string, results []airtable.Record) error {
	for _, rec := range results {
		id, _ := rec.Fields[airtable.FieldID].(string)
		if id != "" {
			modifiedAt, _ := mapping.ModifiedAt(rec)
			if err := r.patchLink(ctx, typ, id, entity.Link{ID: rec.ID, ModifiedAt: modifiedAt}); err != nil {
				return err
			}
		}
		r.snap.RecordsUpdatedOnRemote = append(r.snap.RecordsUpdatedOnRemote,
			RecordRef{Type: typ, ID: id, RemoteID: rec.ID})
	}
	return nil
}

// pushUpdates отправляет текущее состояние связанных документов, измененных после прошлой отправки
func (r *run) pushUpdates(ctx context.Context, t typeSync, pending []*entity.Datum, created, pulled map[string]bool) error {
	typ, table := t.conv.Type(), t.conv.Table()

	var toUpdate []*entity.Datum
	for _, d := range pending {
		if !d.Valid || created[d.ID] || t.refs.created[d.ID] || t.skip[d.ID] {
			continue
		}
		if _, ok := isLinked(d, r.intg.ID); !ok {
			continue
		}
		if !r.opts.FullSync && (pulled[d.ID] || !d.LastModified().After(r.lastPush)) {
			continue
		}
		toUpdate = append(toUpdate, d)
	}

	r.snap.ToPush += len(toUpdate)
	if err := r.emit(ctx); err != nil {
		return err
	}

	for chunk := range slices.Chunk(toUpdate, airtable.MaxRecordsPerRequest) {
		records := make([]airtable.Record, 0, len(chunk))
		for _, d := range chunk {
			// прием мог изменить документ после построения набора на отправку
			current, err := r.repo.GetDatum(ctx, typ, d.ID)
			if err != nil {
				if errors.Is(err, entity.ErrNotFound) {
					continue
				}
				return fmt.Errorf("failed to load %s %s: %w", typ, d.ID, err)
			}
			rid, ok := isLinked(current, r.intg.ID)
			if current.Deleted || !ok {
				continue
			}
			rec, err := t.conv.ToRecord(ctx, current)
			if err != nil {
				r.pushError(typ, d.ID, rid, err)
				continue
			}
			rec.ID = rid
			records = append(records, rec)
		}

		if len(records) > 0 {
			results, err := r.gw.UpdateRecords(ctx, table, records)
			if err != nil {
				return fmt.Errorf("failed to update %s records: %w", typ, err)
			}
			if err := r.linkUpdated(ctx, typ, results); err != nil {
				return err
			}
		}

		r.snap.Pushed += len(chunk)
		if err := r.emit(ctx); err != nil {
			return err
		}
	}
	return nil
}

// deleteTombstoned удаляет записи по надгробиям и помечает надгробия обработанными.
// Надгробия перечитываются, чтобы учесть удаления, принятые в этом прогоне.
func (r *run) deleteTombstoned(ctx context.Context, t typeSync, removed map[string]bool) error {
	typ, table := t.conv.Type(), t.conv.Table()

	tombstones, err := r.loadTombstones(ctx, typ)
	if err != nil {
		return err
	}

	for _, ts := range tombstones {
		if !removed[ts.RemoteID] {
			_, err := r.gw.DeleteRecords(ctx, table, []string{ts.RemoteID})
			switch {
			case err == nil:
				r.snap.RecordsRemovedFromRemote = append(r.snap.RecordsRemovedFromRemote,
					RecordRef{Type: typ, RemoteID: ts.RemoteID})
			case airtable.IsNotFound(err):
				r.log.Debug("Record already removed", "type", typ, "record_id", ts.RemoteID)
			default:
				return fmt.Errorf("failed to delete %s record %s: %w", typ, ts.RemoteID, err)
			}
			removed[ts.RemoteID] = true
		}

		ts.Datum.Deleted = true
		if _, err := r.repo.SaveDatum(ctx, ts.Datum, entity.SaveOptions{SkipCallbacks: true}); err != nil {
			return fmt.Errorf("failed to consume deleted %s data %s: %w", typ, ts.Datum.ID, err)
		}
		if err := r.emit(ctx); err != nil {
			return err
		}
	}
	return nil
}
