package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"airsync/internal/domain/entity"
	"airsync/internal/domain/integration"
	"airsync/internal/domain/mapping"
	"airsync/internal/infrastructure/airtable"

	"golang.org/x/exp/slog"
)

// run состояние одного прогона синхронизации
type run struct {
	repo       entity.Repository
	gateways   GatewayFactory
	log        *slog.Logger
	config     *Config
	opts       Options
	onProgress func(Snapshot) error

	intg   *integration.Integration
	gw     Gateway
	tables map[string]airtable.TableFields

	startedAt time.Time
	lastPush  time.Time
	lastPull  time.Time

	// remote ids по таблицам: true запись существует, false подтверждено отсутствие.
	// Заполняется только при полной синхронизации.
	remoteIDs map[string]map[string]bool

	collections *resolver
	items       *resolver

	snap Snapshot
}

func (r *run) now() time.Time {
	return r.config.Now()
}

// emit отправляет копию текущего снимка
func (r *run) emit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.gw != nil {
		r.snap.APICalls = r.gw.Calls()
	}
	if r.onProgress == nil {
		return nil
	}
	return r.onProgress(r.snap.Clone())
}

// prepare загружает интеграцию и создает шлюз
func (r *run) prepare(ctx context.Context) error {
	d, err := r.repo.GetDatum(ctx, entity.TypeIntegration, r.opts.IntegrationID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrIntegrationNotFound, r.opts.IntegrationID)
		}
		return fmt.Errorf("failed to load integration: %w", err)
	}
	if d.Deleted {
		return fmt.Errorf("%w: %s", ErrIntegrationNotFound, r.opts.IntegrationID)
	}

	intg, err := integration.FromDatum(d)
	if err != nil {
		return err
	}
	if intg.Type != integration.TypeAirtable {
		return fmt.Errorf("%w: unsupported integration type %q", integration.ErrInvalidConfig, intg.Type)
	}
	if err := intg.Config.Validate(); err != nil {
		return err
	}

	token := r.opts.Secrets[SecretAccessToken]
	if token == "" {
		return ErrMissingAccessToken
	}

	r.intg = intg
	r.gw = r.gateways(token, intg.Config.BaseID)
	return nil
}

// finish сохраняет счетчик вызовов API и состояние интеграции.
// Интеграция перечитывается, чтобы не затереть изменения, сделанные во время прогона;
// из состояния прогона переносятся только отметки и счетчики ошибок приема.
func (r *run) finish(ctx context.Context) error {
	calls := r.gw.Calls()
	r.snap.APICalls = calls

	current, err := r.repo.GetDatum(ctx, entity.TypeIntegration, r.intg.ID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			r.log.Warn("Integration was removed during sync", "api_calls", calls)
			return nil
		}
		return fmt.Errorf("failed to reload integration: %w", err)
	}
	intg, err := integration.FromDatum(current)
	if err != nil {
		return err
	}
	intg.Data.LastPush = r.intg.Data.LastPush
	intg.Data.LastPull = r.intg.Data.LastPull
	intg.Data.LastSyncedAt = r.intg.Data.LastSyncedAt
	intg.Data.PullErrorAttempts = r.intg.Data.PullErrorAttempts
	intg.Data.AddAPICalls(r.now(), calls)
	r.intg = intg

	d, err := intg.ToDatum()
	if err != nil {
		return err
	}
	if _, err := r.repo.SaveDatum(ctx, d, entity.SaveOptions{SkipValidation: true}); err != nil {
		return fmt.Errorf("failed to save integration state: %w", err)
	}
	r.log.Debug("Integration state saved", "api_calls", calls)
	return nil
}

func (r *run) sync(ctx context.Context) error {
	cfg := r.intg.Config

	schema, err := r.gw.GetBaseSchema(ctx)
	if err != nil {
		return fmt.Errorf("failed to get base schema: %w", err)
	}
	r.tables, err = airtable.ValidateTables(schema, cfg.BaseID, airtable.TableCollections, airtable.TableItems)
	if err != nil {
		return err
	}
	if err := r.emit(ctx); err != nil {
		return err
	}

	r.startedAt = r.now()
	if r.opts.FullSync {
		r.remoteIDs = map[string]map[string]bool{}
		for _, table := range []string{airtable.TableCollections, airtable.TableItems} {
			ids, err := r.listRecordIDs(ctx, table)
			if err != nil {
				return fmt.Errorf("failed to list %s records for full sync: %w", table, err)
			}
			r.remoteIDs[table] = ids
		}
	} else {
		if t := r.intg.Data.LastPush; t != nil {
			r.lastPush = *t
		}
		if t := r.intg.Data.LastPull; t != nil {
			r.lastPull = *t
		}
	}
	r.log.Info("Sync started", "full_sync", r.opts.FullSync, "scope_type", cfg.ScopeType)
	if err := r.emit(ctx); err != nil {
		return err
	}

	collectionConv := mapping.NewCollectionConverter(r.repo, r.intg.ID, r.tables[airtable.TableCollections])
	r.collections = newResolver(r, collectionConv)

	itemOpts := mapping.ItemOptions{
		Repo:          r.repo,
		IntegrationID: r.intg.ID,
		Fields:        r.tables[airtable.TableItems],
	}
	if cfg.ShouldSyncItemImages() {
		itemOpts.ImagesPublicEndpoint = cfg.ImagesPublicEndpoint
	}
	r.items = newResolver(r, nil)
	itemOpts.Collections = r.collections
	itemOpts.Containers = r.items
	itemConv := mapping.NewItemConverter(itemOpts)
	// при создании по ссылке связанные записи только ищутся, но не создаются
	r.items.conv = itemConv.WithRefs(r.collections.lookup(), r.items.lookup())

	r.snap.Status = StatusSyncingCollections
	if err := r.emit(ctx); err != nil {
		return err
	}
	if cfg.ScopeType == integration.ScopeCollections {
		err := r.syncType(ctx, typeSync{
			conv:  collectionConv,
			scope: entity.Conditions{IDs: nonNil(cfg.CollectionIDsToSync)},
			refs:  r.collections,
		})
		if err != nil {
			return err
		}
	}

	r.snap.Status = StatusSyncingItems
	if err := r.emit(ctx); err != nil {
		return err
	}
	scope, err := r.itemScope(ctx)
	if err != nil {
		return err
	}
	candidates, err := r.removalCandidates(ctx, scope)
	if err != nil {
		return err
	}
	skip := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		skip[c.id] = true
	}
	err = r.syncType(ctx, typeSync{
		conv:            itemConv,
		scope:           scope,
		refs:            r.items,
		skip:            skip,
		skipForCreation: r.items.created,
	})
	if err != nil {
		return err
	}
	if err := r.reconcile(ctx, candidates); err != nil {
		return err
	}

	startedAt, now := r.startedAt, r.now()
	r.intg.Data.LastPush = &startedAt
	r.intg.Data.LastPull = &startedAt
	r.intg.Data.LastSyncedAt = &now
	r.snap.LastSyncedAt = &now
	r.snap.Status = StatusDone

	r.log.Info("Sync finished",
		"pushed", r.snap.Pushed,
		"pulled", r.snap.Pulled,
		"pull_errored", r.snap.PullErrored,
		"api_calls", r.gw.Calls(),
	)
	// прогон уже завершен, отказ потребителя от последнего снимка не ошибка
	if err := r.emit(ctx); err != nil {
		r.log.Debug("Final snapshot was not consumed", "error", err)
	}
	return nil
}

// listRecordIDs возвращает id всех записей таблицы
func (r *run) listRecordIDs(ctx context.Context, table string) (map[string]bool, error) {
	ids := map[string]bool{}
	opts := airtable.ListOptions{Fields: []string{airtable.FieldID}}
	for {
		page, err := r.gw.ListRecords(ctx, table, opts)
		if err != nil {
			return nil, err
		}
		for _, rec := range page.Records {
			ids[rec.ID] = true
		}
		if page.Offset == "" {
			return ids, nil
		}
		opts.Offset = page.Offset
	}
}

// remoteExists проверяет, что удаленная запись существует.
// Сначала используется список, полученный в начале полной синхронизации.
func (r *run) remoteExists(ctx context.Context, table, recordID string) (bool, error) {
	known := r.remoteIDs[table]
	if exists, ok := known[recordID]; ok {
		return exists, nil
	}

	_, err := r.gw.GetRecord(ctx, table, recordID)
	exists := err == nil
	if err != nil && !airtable.IsNotFound(err) {
		return false, fmt.Errorf("failed to check record %s in %s: %w", recordID, table, err)
	}
	if known != nil {
		known[recordID] = exists
	}
	return exists, nil
}

// patchLink записывает ссылку на удаленную запись, не меняя временных меток документа
func (r *run) patchLink(ctx context.Context, typ, id string, link entity.Link) error {
	d, err := r.repo.GetDatum(ctx, typ, id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			r.log.Warn("Remote record refers to unknown data", "type", typ, "id", id, "record_id", link.ID)
			return nil
		}
		return fmt.Errorf("failed to load %s %s: %w", typ, id, err)
	}

	d.SetLink(r.intg.ID, link)
	_, err = r.repo.SaveDatum(ctx, d, entity.SaveOptions{NoTouch: true, SkipValidation: true, SkipCallbacks: true})
	if err != nil {
		return fmt.Errorf("failed to link %s %s to record %s: %w", typ, id, link.ID, err)
	}
	return nil
}

func (r *run) pushError(typ, id, recordID string, err error) {
	r.log.Warn("Failed to convert data for push", "type", typ, "id", id, "error", err)
	r.snap.PushErrors = append(r.snap.PushErrors, RecordRef{
		Type:         typ,
		ID:           id,
		RemoteID:     recordID,
		ErrorMessage: err.Error(),
	})
}

func (r *run) history() *entity.History {
	return &entity.History{
		CreatedBy: "integration-" + r.intg.ID,
		EventName: "sync",
		Batch:     r.startedAt.UTC().Format(time.RFC3339Nano),
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func isLinked(d *entity.Datum, integrationID string) (string, bool) {
	l, ok := d.LinkFor(integrationID)
	if !ok || l.ID == "" {
		return "", false
	}
	return l.ID, true
}
