package secrets

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound ни один источник не знает секретов интеграции
var ErrNotFound = errors.New("secrets not found")

// Provider источник секретов интеграции (токенов доступа к удаленной базе)
type Provider interface {
	Resolve(ctx context.Context, integrationID string) (map[string]string, error)
}

// Chain опрашивает источники по порядку и возвращает первый найденный набор
type Chain []Provider

func (c Chain) Resolve(ctx context.Context, integrationID string) (map[string]string, error) {
	for _, p := range c {
		s, err := p.Resolve(ctx, integrationID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w for integration %s", ErrNotFound, integrationID)
}
