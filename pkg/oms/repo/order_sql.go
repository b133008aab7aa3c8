package repo

import (
	"context"

	"github.com/joripage/oms-core/pkg/oms/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderSQLRepo struct {
	db *gorm.DB
}

func NewOrderSQLRepo(db *gorm.DB) *OrderSQLRepo {
	return &OrderSQLRepo{
		db: db,
	}
}

func (r *OrderSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *OrderSQLRepo) Upsert(ctx context.Context, record *model.OrderRecord) error {
	return r.dbWithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status", "quantity", "price", "filled_quantity", "avg_fill_price",
			"commission", "reason", "revision", "updated_at",
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			gorm.Expr("orders.revision < excluded.revision"),
		}},
	}).Create(record).Error
}

func (r *OrderSQLRepo) Get(ctx context.Context, orderID string) (*model.OrderRecord, error) {
	var record model.OrderRecord
	if err := r.dbWithContext(ctx).Where("order_id = ?", orderID).Take(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *OrderSQLRepo) ListBySymbol(ctx context.Context, symbol string, limit int) ([]*model.OrderRecord, error) {
	var records []*model.OrderRecord
	q := r.dbWithContext(ctx).Where("symbol = ?", symbol).Order("updated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return records, q.Find(&records).Error
}
