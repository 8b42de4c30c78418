package portfolio

import (
	"context"
	"fmt"
	"time"

	"github.com/STTM-NSU/fintrack/internal/model"
)

type LotInput struct {
	Date     *time.Time `json:"date"`
	Quantity float64    `json:"quantity"`
	Price    float64    `json:"purchasePrice"`
}

// PositionLots lists the recorded buys of a position, newest first.
func (s *Service) PositionLots(ctx context.Context, positionID string) ([]model.PurchaseLot, error) {
	if _, err := s.stores.Positions.Get(ctx, positionID); err != nil {
		return nil, err
	}
	return s.stores.Lots.List(ctx, positionID)
}

// AddPositionLot records a buy. The position itself is not changed.
func (s *Service) AddPositionLot(ctx context.Context, positionID string, in LotInput) (model.PurchaseLot, error) {
	if _, err := s.stores.Positions.Get(ctx, positionID); err != nil {
		return model.PurchaseLot{}, err
	}
	switch {
	case in.Quantity <= 0:
		return model.PurchaseLot{}, fmt.Errorf("%w: quantity must be positive", model.ErrInvalidInput)
	case in.Price <= 0:
		return model.PurchaseLot{}, fmt.Errorf("%w: purchase price must be positive", model.ErrInvalidInput)
	}

	lot := model.PurchaseLot{
		PositionID: positionID,
		Date:       s.now().UTC(),
		Quantity:   in.Quantity,
		Price:      in.Price,
	}
	if in.Date != nil {
		lot.Date = *in.Date
	}
	return s.stores.Lots.Create(ctx, lot)
}
