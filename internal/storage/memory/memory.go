// Package memory keeps every store in process memory. It backs tests and the
// "memory" storage driver.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/STTM-NSU/fintrack/internal/model"
	"github.com/STTM-NSU/fintrack/internal/storage"
	"github.com/google/uuid"
)

type PositionStore struct {
	mu        sync.RWMutex
	order     []string
	positions map[string]model.Position
}

func NewPositionStore() *PositionStore {
	return &PositionStore{positions: make(map[string]model.Position)}
}

func (s *PositionStore) List(_ context.Context, f storage.Filter) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Position, 0, len(s.order))
	for _, id := range s.order {
		if p := s.positions[id]; f.Match(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *PositionStore) Get(_ context.Context, id string) (model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[id]
	if !ok {
		return model.Position{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *PositionStore) Create(_ context.Context, p model.Position) (model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := s.positions[p.ID]; ok {
		return model.Position{}, storage.ErrAlreadyExists
	}
	s.positions[p.ID] = p
	s.order = append(s.order, p.ID)
	return p, nil
}

func (s *PositionStore) Update(_ context.Context, p model.Position) (model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[p.ID]; !ok {
		return model.Position{}, storage.ErrNotFound
	}
	s.positions[p.ID] = p
	return p, nil
}

func (s *PositionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.positions[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.positions, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

// SnapshotStore keeps snapshots per asset in append order.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string][]model.PriceSnapshot
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string][]model.PriceSnapshot)}
}

func (s *SnapshotStore) Latest(_ context.Context, asset string) (float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := latest(s.snapshots[asset])
	return snap.Price, ok, nil
}

func (s *SnapshotStore) LatestAll(_ context.Context) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.snapshots))
	for asset, snaps := range s.snapshots {
		if snap, ok := latest(snaps); ok {
			out[asset] = snap.Price
		}
	}
	return out, nil
}

func (s *SnapshotStore) Append(_ context.Context, asset string, price float64, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[asset] = append(s.snapshots[asset], model.PriceSnapshot{
		AssetName: asset,
		Timestamp: ts,
		Price:     price,
	})
	return nil
}

func (s *SnapshotStore) List(_ context.Context, asset string) ([]model.PriceSnapshot, error) {
	s.mu.RLock()
	out := slices.Clone(s.snapshots[asset])
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b model.PriceSnapshot) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out, nil
}

// latest picks the snapshot with the greatest timestamp. Ties go to the one
// appended last.
func latest(snaps []model.PriceSnapshot) (model.PriceSnapshot, bool) {
	if len(snaps) == 0 {
		return model.PriceSnapshot{}, false
	}
	best := snaps[0]
	for _, s := range snaps[1:] {
		if !s.Timestamp.Before(best.Timestamp) {
			best = s
		}
	}
	return best, true
}

type refKey struct {
	asset  string
	window model.Window
}

type ReferenceCache struct {
	mu   sync.RWMutex
	refs map[refKey]model.ReferencePrice
}

func NewReferenceCache() *ReferenceCache {
	return &ReferenceCache{refs: make(map[refKey]model.ReferencePrice)}
}

func (c *ReferenceCache) Get(_ context.Context, asset string, w model.Window) (model.ReferencePrice, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.refs[refKey{asset, w}]
	return r, ok, nil
}

func (c *ReferenceCache) PutIfAbsent(_ context.Context, r model.ReferencePrice) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := refKey{r.AssetName, r.Window}
	if _, ok := c.refs[k]; ok {
		return false, nil
	}
	c.refs[k] = r
	return true, nil
}

func (c *ReferenceCache) Invalidate(_ context.Context, asset string, w model.Window) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.refs, refKey{asset, w})
	return nil
}

func (c *ReferenceCache) ByWindow(_ context.Context, w model.Window) (map[string]float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64)
	for k, r := range c.refs {
		if k.window == w {
			out[k.asset] = r.Price
		}
	}
	return out, nil
}

type HistoryStore struct {
	mu     sync.RWMutex
	points []model.HistoryPoint
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

func (s *HistoryStore) LastPoint(_ context.Context) (model.HistoryPoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.points) == 0 {
		return model.HistoryPoint{}, false, nil
	}
	last := s.points[0]
	for _, p := range s.points[1:] {
		if !p.Timestamp.Before(last.Timestamp) {
			last = p
		}
	}
	return last, true, nil
}

func (s *HistoryStore) Append(_ context.Context, totalValue float64, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = append(s.points, model.HistoryPoint{TotalValue: totalValue, Timestamp: ts})
	return nil
}

func (s *HistoryStore) List(_ context.Context) ([]model.HistoryPoint, error) {
	s.mu.RLock()
	out := slices.Clone(s.points)
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b model.HistoryPoint) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out, nil
}

type CategoryStore struct {
	mu         sync.RWMutex
	categories []model.Category
}

func NewCategoryStore() *CategoryStore {
	return &CategoryStore{}
}

func (s *CategoryStore) List(_ context.Context) ([]model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categories), nil
}

func (s *CategoryStore) FindByName(_ context.Context, name string) (model.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexByName(name); i >= 0 {
		return s.categories[i], nil
	}
	return model.Category{}, storage.ErrNotFound
}

func (s *CategoryStore) Create(_ context.Context, c model.Category) (model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexByName(c.Name) >= 0 {
		return model.Category{}, storage.ErrAlreadyExists
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.categories = append(s.categories, c)
	return c, nil
}

func (s *CategoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.categories, func(c model.Category) bool { return c.ID == id })
	if i < 0 {
		return storage.ErrNotFound
	}
	s.categories = slices.Delete(s.categories, i, i+1)
	return nil
}

func (s *CategoryStore) indexByName(name string) int {
	want := model.NormalizeCategory(name)
	return slices.IndexFunc(s.categories, func(c model.Category) bool {
		return model.NormalizeCategory(c.Name) == want
	})
}

type LotStore struct {
	mu   sync.RWMutex
	lots map[string][]model.PurchaseLot // position id -> lots
}

func NewLotStore() *LotStore {
	return &LotStore{lots: make(map[string][]model.PurchaseLot)}
}

func (s *LotStore) List(_ context.Context, positionID string) ([]model.PurchaseLot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.lots[positionID])
	slices.SortStableFunc(out, func(a, b model.PurchaseLot) int {
		return b.Date.Compare(a.Date)
	})
	return out, nil
}

func (s *LotStore) Create(_ context.Context, l model.PurchaseLot) (model.PurchaseLot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	s.lots[l.PositionID] = append(s.lots[l.PositionID], l)
	return l, nil
}
