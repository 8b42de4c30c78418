package pg

import (
	"context"
	"fmt"

	"github.com/STTM-NSU/fintrack/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	_queryLots = `SELECT id, position_id, purchased_at, quantity, price FROM purchase_lots
		WHERE position_id = $1 ORDER BY purchased_at DESC, id`
	_insertLot = `INSERT INTO purchase_lots (id, position_id, purchased_at, quantity, price)
		VALUES (:id, :position_id, :purchased_at, :quantity, :price)`
)

type LotStore struct {
	db *sqlx.DB
}

func NewLotStore(db *sqlx.DB) *LotStore {
	return &LotStore{db: db}
}

func (s *LotStore) List(ctx context.Context, positionID string) ([]model.PurchaseLot, error) {
	var lots []model.PurchaseLot
	if err := s.db.SelectContext(ctx, &lots, _queryLots, positionID); err != nil {
		return nil, fmt.Errorf("%w: can't query purchase lots", err)
	}
	return lots, nil
}

func (s *LotStore) Create(ctx context.Context, l model.PurchaseLot) (model.PurchaseLot, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if _, err := s.db.NamedExecContext(ctx, _insertLot, l); err != nil {
		return model.PurchaseLot{}, fmt.Errorf("%w: can't insert purchase lot", err)
	}
	return l, nil
}
