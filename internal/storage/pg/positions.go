// Package pg implements the stores on top of postgres through sqlx.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/STTM-NSU/fintrack/internal/model"
	"github.com/STTM-NSU/fintrack/internal/storage"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	_positionColumns = "id, asset_name, category, kind, amount, cost_basis_price, purchase_date, annual_rate_pct, term_months"

	_queryPositions = "SELECT " + _positionColumns + " FROM positions ORDER BY created_at, id"
	_queryPosition  = "SELECT " + _positionColumns + " FROM positions WHERE id = $1"
	_insertPosition = `INSERT INTO positions (
							id, asset_name, category, kind, amount,
							cost_basis_price, purchase_date, annual_rate_pct, term_months
						) VALUES (:id, :asset_name, :category, :kind, :amount,
							:cost_basis_price, :purchase_date, :annual_rate_pct, :term_months)`
	_updatePosition = `UPDATE positions SET
							asset_name = :asset_name,
							category = :category,
							kind = :kind,
							amount = :amount,
							cost_basis_price = :cost_basis_price,
							purchase_date = :purchase_date,
							annual_rate_pct = :annual_rate_pct,
							term_months = :term_months
						WHERE id = :id`
	_deletePosition = "DELETE FROM positions WHERE id = $1"
)

type PositionStore struct {
	db *sqlx.DB
}

func NewPositionStore(db *sqlx.DB) *PositionStore {
	return &PositionStore{db: db}
}

func (s *PositionStore) List(ctx context.Context, f storage.Filter) ([]model.Position, error) {
	var positions []model.Position
	if err := s.db.SelectContext(ctx, &positions, _queryPositions); err != nil {
		return nil, fmt.Errorf("%w: can't query positions", err)
	}
	out := positions[:0]
	for _, p := range positions {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *PositionStore) Get(ctx context.Context, id string) (model.Position, error) {
	var p model.Position
	if err := s.db.GetContext(ctx, &p, _queryPosition, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, storage.ErrNotFound
		}
		return p, fmt.Errorf("%w: can't query position %s", err, id)
	}
	return p, nil
}

func (s *PositionStore) Create(ctx context.Context, p model.Position) (model.Position, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, err := s.db.NamedExecContext(ctx, _insertPosition, p); err != nil {
		return model.Position{}, fmt.Errorf("%w: can't insert position", err)
	}
	return p, nil
}

func (s *PositionStore) Update(ctx context.Context, p model.Position) (model.Position, error) {
	res, err := s.db.NamedExecContext(ctx, _updatePosition, p)
	if err != nil {
		return model.Position{}, fmt.Errorf("%w: can't update position %s", err, p.ID)
	}
	if err := expectAffected(res); err != nil {
		return model.Position{}, err
	}
	return p, nil
}

func (s *PositionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, _deletePosition, id)
	if err != nil {
		return fmt.Errorf("%w: can't delete position %s", err, id)
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: can't get affected rows", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
