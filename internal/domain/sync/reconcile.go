package sync

import (
	"context"
	"errors"
	"fmt"

	"airsync/internal/domain/entity"
	"airsync/internal/infrastructure/airtable"
)

type removalCandidate struct {
	id       string
	recordID string
}

// removalCandidates предметы со ссылкой на эту интеграцию, вышедшие из области синхронизации
func (r *run) removalCandidates(ctx context.Context, scope entity.Conditions) ([]removalCandidate, error) {
	inScope, err := r.repo.GetData(ctx, entity.TypeItem, scope, entity.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get items in scope: %w", err)
	}
	ids := make(map[string]bool, len(inScope))
	for _, d := range inScope {
		ids[d.ID] = true
	}

	linked, err := r.repo.GetData(ctx, entity.TypeItem, entity.Conditions{Linked: r.intg.ID}, entity.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get synced items: %w", err)
	}

	var out []removalCandidate
	for _, d := range linked {
		if ids[d.ID] {
			continue
		}
		l, _ := d.LinkFor(r.intg.ID)
		out = append(out, removalCandidate{id: d.ID, recordID: l.ID})
	}
	return out, nil
}

// reconcile удаляет удаленные записи предметов, вышедших из области синхронизации.
// Запись, в которой еще лежат другие записи, остается на месте.
func (r *run) reconcile(ctx context.Context, candidates []removalCandidate) error {
	fields := r.tables[airtable.TableItems]

	for _, c := range candidates {
		if c.recordID != "" {
			if !fields.Has(airtable.FieldContainerRecordID) {
				r.log.Warn("Cannot check record contents, keeping it",
					"item_id", c.id, "record_id", c.recordID, "missing_field", airtable.FieldContainerRecordID)
				continue
			}

			page, err := r.gw.ListRecords(ctx, airtable.TableItems, airtable.ListOptions{
				PageSize:        1,
				Fields:          []string{airtable.FieldID},
				FilterByFormula: fmt.Sprintf(`{%s} = "%s"`, airtable.FieldContainerRecordID, c.recordID),
			})
			if err != nil {
				return fmt.Errorf("failed to check contents of record %s: %w", c.recordID, err)
			}
			if len(page.Records) > 0 {
				r.log.Info("Keeping out of scope record that still contains other records",
					"item_id", c.id, "record_id", c.recordID)
				continue
			}

			_, err = r.gw.DeleteRecords(ctx, airtable.TableItems, []string{c.recordID})
			switch {
			case err == nil:
				r.snap.RecordsRemovedFromRemote = append(r.snap.RecordsRemovedFromRemote,
					RecordRef{Type: entity.TypeItem, ID: c.id, RemoteID: c.recordID})
			case airtable.IsNotFound(err):
				r.log.Debug("Record already removed", "record_id", c.recordID)
			default:
				return fmt.Errorf("failed to remove out of scope record %s: %w", c.recordID, err)
			}
		}

		if err := r.unlink(ctx, c.id); err != nil {
			return err
		}
		if err := r.emit(ctx); err != nil {
			return err
		}
	}
	return nil
}

// unlink удаляет пространство имен интеграции из документа
func (r *run) unlink(ctx context.Context, id string) error {
	d, err := r.repo.GetDatum(ctx, entity.TypeItem, id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load item %s: %w", id, err)
	}
	d.RemoveLink(r.intg.ID)
	_, err = r.repo.SaveDatum(ctx, d, entity.SaveOptions{NoTouch: true, SkipValidation: true, SkipCallbacks: true})
	if err != nil {
		return fmt.Errorf("failed to unlink item %s: %w", id, err)
	}
	return nil
}
