package sync

import (
	"context"

	"airsync/internal/infrastructure/airtable"

	"golang.org/x/exp/slog"
)

// Gateway удаленная табличная база, с которой идет синхронизация
type Gateway interface {
	// Calls количество попыток вызова API с момента создания
	Calls() int
	GetBaseSchema(ctx context.Context) (*airtable.BaseSchema, error)
	ListRecords(ctx context.Context, table string, opts airtable.ListOptions) (*airtable.ListResult, error)
	GetRecord(ctx context.Context, table, id string) (*airtable.Record, error)
	CreateRecords(ctx context.Context, table string, records []airtable.Record) ([]airtable.Record, error)
	UpdateRecords(ctx context.Context, table string, records []airtable.Record) ([]airtable.Record, error)
	DeleteRecords(ctx context.Context, table string, ids []string) ([]airtable.DeletedRecord, error)
}

// GatewayFactory создает шлюз для одного прогона синхронизации
type GatewayFactory func(token, baseID string) Gateway

// AirtableGateways фабрика шлюзов поверх HTTP клиента Airtable.
// Шлюзы всех прогонов делят один gate, счетчик вызовов у каждого свой.
func AirtableGateways(log *slog.Logger, opts ...airtable.Option) GatewayFactory {
	pool := airtable.NewPool(log, opts...)
	return func(token, baseID string) Gateway {
		return pool.Client(token, baseID)
	}
}
