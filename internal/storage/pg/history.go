package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/STTM-NSU/fintrack/internal/model"
	"github.com/STTM-NSU/fintrack/internal/storage"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	_queryLastPoint = "SELECT total_value, ts FROM portfolio_history ORDER BY ts DESC, id DESC LIMIT 1"
	_queryHistory   = "SELECT total_value, ts FROM portfolio_history ORDER BY ts, id"
	_insertPoint    = "INSERT INTO portfolio_history (total_value, ts) VALUES ($1, $2)"
)

type HistoryStore struct {
	db *sqlx.DB
}

func NewHistoryStore(db *sqlx.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) LastPoint(ctx context.Context) (model.HistoryPoint, bool, error) {
	var p model.HistoryPoint
	if err := s.db.GetContext(ctx, &p, _queryLastPoint); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, false, nil
		}
		return p, false, fmt.Errorf("%w: can't query last history point", err)
	}
	return p, true, nil
}

func (s *HistoryStore) Append(ctx context.Context, totalValue float64, ts time.Time) error {
	if _, err := s.db.ExecContext(ctx, _insertPoint, totalValue, ts); err != nil {
		return fmt.Errorf("%w: can't insert history point", err)
	}
	return nil
}

func (s *HistoryStore) List(ctx context.Context) ([]model.HistoryPoint, error) {
	var points []model.HistoryPoint
	if err := s.db.SelectContext(ctx, &points, _queryHistory); err != nil {
		return nil, fmt.Errorf("%w: can't query portfolio history", err)
	}
	return points, nil
}

const (
	_queryCategories = "SELECT id, name FROM categories ORDER BY name"
	_insertCategory  = "INSERT INTO categories (id, name) VALUES ($1, $2)"
	_deleteCategory  = "DELETE FROM categories WHERE id = $1"
)

type CategoryStore struct {
	db *sqlx.DB
}

func NewCategoryStore(db *sqlx.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func (s *CategoryStore) List(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := s.db.SelectContext(ctx, &categories, _queryCategories); err != nil {
		return nil, fmt.Errorf("%w: can't query categories", err)
	}
	return categories, nil
}

// FindByName matches names the way positions reference them: ignoring case
// and a plural suffix.
func (s *CategoryStore) FindByName(ctx context.Context, name string) (model.Category, error) {
	categories, err := s.List(ctx)
	if err != nil {
		return model.Category{}, err
	}
	want := model.NormalizeCategory(name)
	for _, c := range categories {
		if model.NormalizeCategory(c.Name) == want {
			return c, nil
		}
	}
	return model.Category{}, storage.ErrNotFound
}

func (s *CategoryStore) Create(ctx context.Context, c model.Category) (model.Category, error) {
	if _, err := s.FindByName(ctx, c.Name); err == nil {
		return model.Category{}, storage.ErrAlreadyExists
	} else if !errors.Is(err, storage.ErrNotFound) {
		return model.Category{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, err := s.db.ExecContext(ctx, _insertCategory, c.ID, c.Name); err != nil {
		return model.Category{}, fmt.Errorf("%w: can't insert category", err)
	}
	return c, nil
}

func (s *CategoryStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, _deleteCategory, id)
	if err != nil {
		return fmt.Errorf("%w: can't delete category %s", err, id)
	}
	return expectAffected(res)
}
