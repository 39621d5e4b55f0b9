package entity

import "reflect"

const (
	historyFieldType      = "datum_type"
	historyFieldID        = "datum_id"
	historyFieldCreatedBy = "created_by"
	historyFieldEvent     = "event_name"
	historyFieldBatch     = "batch"
	historyFieldOriginal  = "original_data"
	historyFieldData      = "data"
	historyFieldDeleted   = "deleted"
)

// HistoryFor возвращает запись истории для сохраненного документа.
// Сохранение без изменений полей и признака удаления в историю не пишется.
func HistoryFor(existing, saved *Datum, h *History) *Datum {
	if h == nil || saved == nil || saved.Type == TypeHistory {
		return nil
	}
	if existing != nil && existing.Deleted == saved.Deleted && reflect.DeepEqual(existing.Fields, saved.Fields) {
		return nil
	}

	d := New(TypeHistory)
	d.Set(historyFieldType, saved.Type)
	d.Set(historyFieldID, saved.ID)
	d.Set(historyFieldCreatedBy, h.CreatedBy)
	d.Set(historyFieldEvent, h.EventName)
	d.Set(historyFieldBatch, h.Batch)
	d.Set(historyFieldData, cloneFields(saved.Fields))
	d.Set(historyFieldDeleted, saved.Deleted)
	if existing != nil {
		d.Set(historyFieldOriginal, cloneFields(existing.Fields))
	}
	return d
}

// HistoryConditions условия выборки истории одного документа
func HistoryConditions(typ, id string) Conditions {
	return Conditions{
		Equals: map[string]any{
			historyFieldType: typ,
			historyFieldID:   id,
		},
	}
}

// Related документы, которые записываются вместе с сохраняемым:
// надгробия удаленных связей и запись истории.
func Related(existing, saved *Datum, opts SaveOptions) []*Datum {
	var out []*Datum
	if !opts.SkipCallbacks {
		out = append(out, TombstonesFor(existing, saved)...)
	}
	if h := HistoryFor(existing, saved, opts.CreateHistory); h != nil {
		out = append(out, h)
	}
	return out
}

func cloneFields(fields map[string]any) map[string]any {
	c := (&Datum{Fields: fields}).Clone()
	return c.Fields
}
