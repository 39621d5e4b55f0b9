package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"airsync/internal/domain/entity"
	"airsync/internal/domain/mapping"
	"airsync/internal/infrastructure/airtable"
)

const (
	pullPageSize = 100
	isoMillis    = "2006-01-02T15:04:05.000Z07:00"
)

type pullState struct {
	tombstoned map[string]bool
	// pulled локальные id, принятые в этом прогоне
	pulled map[string]bool
	// removed remote id, удаленные в этом прогоне
	removed map[string]bool
}

// writeback изменения удаленных записей, накопленные за проход приема
type writeback struct {
	deletes []string
	updates []airtable.Record
	index   map[string]int
}

func (w *writeback) remove(recordID string) {
	if slices.Contains(w.deletes, recordID) {
		return
	}
	w.deletes = append(w.deletes, recordID)
}

// update ставит запись в очередь. Повторное обновление той же записи сливается с первым,
// API не принимает одну запись дважды в одном запросе.
func (w *writeback) update(rec airtable.Record) {
	if w.index == nil {
		w.index = map[string]int{}
	}
	if i, ok := w.index[rec.ID]; ok {
		maps.Copy(w.updates[i].Fields, rec.Fields)
		return
	}
	w.index[rec.ID] = len(w.updates)
	w.updates = append(w.updates, airtable.Record{ID: rec.ID, Fields: maps.Clone(rec.Fields)})
}

// pullRecords выполняет основной проход приема и один проход повтора записей с ошибками
func (r *run) pullRecords(ctx context.Context, t typeSync, st *pullState) error {
	if err := r.pullPass(ctx, t, st, false); err != nil {
		return err
	}
	if !r.tables[t.conv.Table()].Has(airtable.FieldSyncErrorMessage) {
		return nil
	}
	return r.pullPass(ctx, t, st, true)
}

func (r *run) pullPass(ctx context.Context, t typeSync, st *pullState, retry bool) (err error) {
	typ, table := t.conv.Type(), t.conv.Table()

	wb := &writeback{}
	defer func() {
		if wbErr := r.applyWriteback(ctx, t, wb, st); wbErr != nil {
			err = errors.Join(err, wbErr)
		}
	}()

	opts := airtable.ListOptions{
		PageSize: pullPageSize,
		Fields:   r.pullFields(t.conv),
		Sort:     []airtable.Sort{{Field: airtable.FieldRowNumber, Direction: "asc"}},
	}
	switch {
	case retry:
		opts.FilterByFormula = fmt.Sprintf("{%s}", airtable.FieldSyncErrorMessage)
	case !r.lastPull.IsZero():
		opts.FilterByFormula = fmt.Sprintf(`IS_AFTER({%s}, DATETIME_PARSE("%s"))`,
			airtable.FieldModifiedAt, r.lastPull.UTC().Format(isoMillis))
	}

	for {
		page, err := r.gw.ListRecords(ctx, table, opts)
		if err != nil {
			return fmt.Errorf("failed to list %s records: %w", typ, err)
		}
		r.snap.ToPull += len(page.Records)
		if err := r.emit(ctx); err != nil {
			return err
		}

		for _, rec := range page.Records {
			if err := r.pullRecord(ctx, t, st, wb, rec, retry); err != nil {
				return err
			}
			r.snap.Pulled++
			if err := r.emit(ctx); err != nil {
				return err
			}
		}

		if page.Offset == "" {
			return nil
		}
		opts.Offset = page.Offset
	}
}

// pullFields поля конвертера и служебные поля, которые есть в таблице
func (r *run) pullFields(conv mapping.Converter) []string {
	fields := slices.Clone(conv.Fields())
	tf := r.tables[conv.Table()]
	for _, f := range []string{airtable.FieldID, airtable.FieldModifiedAt, airtable.FieldDelete, airtable.FieldSyncErrorMessage} {
		if tf.Has(f) && !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}
	return fields
}

// pullRecord принимает одну удаленную запись. Ошибки сохранения не прерывают прием,
// они записываются в снимок и в поле ошибки удаленной записи.
func (r *run) pullRecord(ctx context.Context, t typeSync, st *pullState, wb *writeback, rec airtable.Record, retry bool) error {
	typ := t.conv.Type()

	if st.tombstoned[rec.ID] {
		return nil
	}
	attempts := r.intg.Data.PullErrorAttempts[rec.ID]
	if retry && attempts >= r.config.MaxPullRetries {
		r.log.Warn("Skipping record after repeated save failures", "type", typ, "record_id", rec.ID, "attempts", attempts)
		return nil
	}

	currentMessage, _ := rec.Fields[airtable.FieldSyncErrorMessage].(string)

	d, err := t.conv.FromRecord(ctx, rec)
	if err != nil {
		r.pullFailed(t, wb, rec, "", currentMessage, err)
		return nil
	}

	var existing *entity.Datum
	if d.ID != "" {
		existing, err = r.repo.GetDatum(ctx, typ, d.ID)
		if err != nil && !errors.Is(err, entity.ErrNotFound) {
			return fmt.Errorf("failed to load %s %s: %w", typ, d.ID, err)
		}
	}

	if existing != nil {
		// побеждает последняя запись: локальный документ новее удаленной записи
		modifiedAt, ok := mapping.ModifiedAt(rec)
		if !ok || existing.LastModified().After(modifiedAt) {
			return nil
		}
		if t.skip[existing.ID] {
			return nil
		}
		st.pulled[existing.ID] = true
	}

	saved, changed, err := r.savePulled(ctx, existing, d)
	if err != nil {
		r.pullFailed(t, wb, rec, d.ID, currentMessage, err)
		return nil
	}
	delete(r.intg.Data.PullErrorAttempts, rec.ID)

	if d.Deleted {
		wb.remove(rec.ID)
		r.snap.ToPush++
		r.snap.DataDeletedFromRemote = append(r.snap.DataDeletedFromRemote,
			RecordRef{Type: typ, ID: d.ID, RemoteID: rec.ID})
		return nil
	}

	st.pulled[saved.ID] = true
	switch {
	case existing == nil:
		r.snap.DataCreatedFromRemote = append(r.snap.DataCreatedFromRemote,
			RecordRef{Type: typ, ID: saved.ID, RemoteID: rec.ID})
	case changed:
		r.snap.DataUpdatedFromRemote = append(r.snap.DataUpdatedFromRemote,
			RecordRef{Type: typ, ID: saved.ID, RemoteID: rec.ID})
	}

	next, err := t.conv.ToRecord(ctx, saved)
	if err != nil {
		r.pushError(typ, saved.ID, rec.ID, err)
		return nil
	}
	if currentMessage != "" || mapping.HasFieldChanges(rec.Fields, next.Fields) {
		fields := maps.Clone(next.Fields)
		if r.tables[t.conv.Table()].Has(airtable.FieldSyncErrorMessage) {
			fields[airtable.FieldSyncErrorMessage] = ""
		}
		wb.update(airtable.Record{ID: rec.ID, Fields: fields})
		r.snap.ToPush++
	}
	return nil
}

// savePulled сохраняет принятый документ.
// Документ без изменений полей не сохраняется, чтобы не сдвигать его время изменения.
func (r *run) savePulled(ctx context.Context, existing, d *entity.Datum) (*entity.Datum, bool, error) {
	opts := entity.SaveOptions{CreateHistory: r.history()}

	if existing == nil {
		if d.Deleted {
			return nil, false, nil
		}
		saved, err := r.repo.SaveDatum(ctx, d, opts)
		return saved, true, err
	}

	if existing.Deleted == d.Deleted && sameFields(existing.Fields, d.Fields) {
		if sameLink(existing, d, r.intg.ID) {
			return existing, false, nil
		}
		opts.NoTouch = true
		opts.SkipCallbacks = true
		saved, err := r.repo.SaveDatum(ctx, d, opts)
		return saved, false, err
	}

	saved, err := r.repo.SaveDatum(ctx, d, opts)
	return saved, true, err
}

// pullFailed учитывает ошибку приема записи и ставит в очередь запись сообщения об ошибке
func (r *run) pullFailed(t typeSync, wb *writeback, rec airtable.Record, localID, currentMessage string, cause error) {
	typ := t.conv.Type()
	msg := cause.Error()
	r.log.Warn("Failed to save data from remote record", "type", typ, "id", localID, "record_id", rec.ID, "error", cause)

	if r.intg.Data.PullErrorAttempts == nil {
		r.intg.Data.PullErrorAttempts = map[string]int{}
	}
	r.intg.Data.PullErrorAttempts[rec.ID]++

	r.snap.recordPullError(RecordRef{Type: typ, ID: localID, RemoteID: rec.ID, ErrorMessage: msg})

	if msg == currentMessage || !r.tables[t.conv.Table()].Has(airtable.FieldSyncErrorMessage) {
		return
	}
	fields := map[string]any{airtable.FieldSyncErrorMessage: msg}
	if localID != "" {
		fields[airtable.FieldID] = localID
	}
	wb.update(airtable.Record{ID: rec.ID, Fields: fields})
	r.snap.ToPush++
}

// applyWriteback отправляет накопленные удаления и обновления пачками
func (r *run) applyWriteback(ctx context.Context, t typeSync, wb *writeback, st *pullState) error {
	typ, table := t.conv.Type(), t.conv.Table()

	for ids := range slices.Chunk(wb.deletes, airtable.MaxRecordsPerRequest) {
		if _, err := r.gw.DeleteRecords(ctx, table, ids); err != nil {
			return fmt.Errorf("failed to delete %s records: %w", typ, err)
		}
		r.snap.Pushed += len(ids)
		for _, id := range ids {
			st.removed[id] = true
			r.snap.RecordsRemovedFromRemote = append(r.snap.RecordsRemovedFromRemote, RecordRef{Type: typ, RemoteID: id})
		}
		if err := r.emit(ctx); err != nil {
			return err
		}
	}

	for records := range slices.Chunk(wb.updates, airtable.MaxRecordsPerRequest) {
		results, err := r.gw.UpdateRecords(ctx, table, records)
		if err != nil {
			return fmt.Errorf("failed to write back %s records: %w", typ, err)
		}
		r.snap.Pushed += len(records)
		for _, rec := range results {
			id, _ := rec.Fields[airtable.FieldID].(string)
			r.snap.RecordsUpdatedOnRemote = append(r.snap.RecordsUpdatedOnRemote, RecordRef{Type: typ, ID: id, RemoteID: rec.ID})
		}
		if err := r.emit(ctx); err != nil {
			return err
		}
	}
	return nil
}

func sameFields(a, b map[string]any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

func sameLink(a, b *entity.Datum, integrationID string) bool {
	la, _ := a.LinkFor(integrationID)
	lb, _ := b.LinkFor(integrationID)
	return la.ID == lb.ID && la.ModifiedAt.Equal(lb.ModifiedAt)
}
