package entity

// Tombstone запись об удалении, ожидающая распространения на удаленную сторону
type Tombstone struct {
	Datum         *Datum
	IntegrationID string
	Type          string
	RemoteID      string
}

// NewTombstone создает документ integration_deleted_data
func NewTombstone(integrationID, typ, remoteID string) *Datum {
	d := New(TypeDeletedData)
	d.Set(tombstoneFieldIntg, integrationID)
	d.Set(tombstoneFieldType, typ)
	d.Set(tombstoneFieldData, map[string]any{tombstoneDataIDName: remoteID})
	return d
}

// TombstoneConditions условия выборки надгробий интеграции для одного типа
func TombstoneConditions(integrationID, typ string) Conditions {
	return Conditions{
		Equals: map[string]any{
			tombstoneFieldIntg: integrationID,
			tombstoneFieldType: typ,
		},
	}
}

// ParseTombstone извлекает данные из документа integration_deleted_data
func ParseTombstone(d *Datum) (Tombstone, bool) {
	if d == nil || d.Type != TypeDeletedData {
		return Tombstone{}, false
	}
	data, _ := d.Fields[tombstoneFieldData].(map[string]any)
	rid, _ := data[tombstoneDataIDName].(string)
	if rid == "" {
		return Tombstone{}, false
	}
	return Tombstone{
		Datum:         d,
		IntegrationID: d.String(tombstoneFieldIntg),
		Type:          d.String(tombstoneFieldType),
		RemoteID:      rid,
	}, true
}

// TombstonesFor возвращает надгробия, которые нужно записать, когда связанный
// документ помечается удаленным. existing может быть nil.
func TombstonesFor(existing, saved *Datum) []*Datum {
	if saved == nil || !saved.Deleted || saved.Type == TypeDeletedData {
		return nil
	}
	if existing != nil && existing.Deleted {
		return nil
	}
	var out []*Datum
	for intgID, l := range saved.Integrations {
		if l.ID == "" {
			continue
		}
		out = append(out, NewTombstone(intgID, saved.Type, l.ID))
	}
	return out
}
