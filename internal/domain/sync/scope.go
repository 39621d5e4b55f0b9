package sync

import (
	"context"
	"fmt"

	"airsync/internal/domain/entity"
	"airsync/internal/domain/integration"
)

// itemScope условия выборки предметов, входящих в область синхронизации
func (r *run) itemScope(ctx context.Context) (entity.Conditions, error) {
	cfg := r.intg.Config
	if cfg.ScopeType == integration.ScopeContainers {
		ids, err := r.containerTree(ctx, cfg.ContainerIDsToSync)
		if err != nil {
			return entity.Conditions{}, err
		}
		return entity.Conditions{IDs: ids}, nil
	}
	return entity.Conditions{
		In: map[string][]string{"collection_id": nonNil(cfg.CollectionIDsToSync)},
	}, nil
}

// containerTree возвращает контейнеры и все вложенные в них предметы.
// Обход в ширину, каждый предмет посещается один раз, поэтому циклы не страшны.
func (r *run) containerTree(ctx context.Context, roots []string) ([]string, error) {
	seen := map[string]bool{}
	ids := []string{}
	var frontier []string
	for _, id := range roots {
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
		frontier = append(frontier, id)
	}

	for len(frontier) > 0 {
		children, err := r.repo.GetData(ctx, entity.TypeItem, entity.Conditions{
			In: map[string][]string{"container_id": frontier},
		}, entity.QueryOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to get contents of containers: %w", err)
		}
		frontier = nil
		for _, c := range children {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			ids = append(ids, c.ID)
			frontier = append(frontier, c.ID)
		}
	}
	return ids, nil
}
