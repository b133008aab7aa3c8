package repo

import (
	"context"

	"github.com/joripage/oms-core/pkg/oms/model"
)

type IOrder interface {
	// Upsert stores record unless a newer revision is already stored.
	Upsert(ctx context.Context, record *model.OrderRecord) error
	Get(ctx context.Context, orderID string) (*model.OrderRecord, error)
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]*model.OrderRecord, error)
}

type IOrderEvent interface {
	Create(ctx context.Context, record *model.OrderEvent) (*model.OrderEvent, error)
	BulkCreate(ctx context.Context, records []*model.OrderEvent) ([]*model.OrderEvent, error)
	ListByOrderID(ctx context.Context, orderID string) ([]*model.OrderEvent, error)
}
