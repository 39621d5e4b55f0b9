package entity

import "context"

// Repository интерфейс документного хранилища
type Repository interface {
	GetDatum(ctx context.Context, typ, id string) (*Datum, error)
	GetData(ctx context.Context, typ string, cond Conditions, opts QueryOptions) ([]*Datum, error)
	GetDataCount(ctx context.Context, typ string, cond Conditions) (int, error)
	SaveDatum(ctx context.Context, d *Datum, opts SaveOptions) (*Datum, error)
	GetAttachmentInfo(ctx context.Context, d *Datum, name string) (*AttachmentInfo, error)
}
