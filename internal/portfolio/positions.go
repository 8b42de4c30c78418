package portfolio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/STTM-NSU/fintrack/internal/model"
	"github.com/STTM-NSU/fintrack/internal/storage"
)

// PositionInput carries user supplied fields. Nil fields are left untouched
// on update.
type PositionInput struct {
	AssetName      *string    `json:"assetName"`
	Category       *string    `json:"categoryName"`
	Amount         *float64   `json:"amount"`
	CostBasisPrice *float64   `json:"initialPrice"`
	PurchaseDate   *time.Time `json:"purchaseDate"`
	AnnualRatePct  *float64   `json:"couponRate"`
	TermMonths     *int       `json:"investmentLength"`
}

func (in PositionInput) apply(p *model.Position) {
	if in.AssetName != nil {
		p.AssetName = strings.TrimSpace(*in.AssetName)
	}
	if in.Category != nil {
		p.Category = strings.TrimSpace(*in.Category)
	}
	if in.Amount != nil {
		p.Amount = *in.Amount
	}
	if in.CostBasisPrice != nil {
		p.CostBasisPrice = *in.CostBasisPrice
	}
	if in.PurchaseDate != nil {
		p.PurchaseDate = *in.PurchaseDate
	}
	if in.AnnualRatePct != nil {
		p.AnnualRatePct = in.AnnualRatePct
	}
	if in.TermMonths != nil {
		p.TermMonths = in.TermMonths
	}
	p.Kind = kindOf(*p)
}

func kindOf(p model.Position) model.InstrumentKind {
	if p.AnnualRatePct != nil || p.TermMonths != nil {
		return model.Accruing
	}
	return model.Market
}

// ValidatePosition rejects positions the valuation engine can't price
// correctly. Partial bond fields are a consistency violation rather than a
// MARKET position.
func ValidatePosition(p model.Position) error {
	switch {
	case strings.TrimSpace(p.AssetName) == "":
		return fmt.Errorf("%w: empty asset name", model.ErrInvalidInput)
	case strings.TrimSpace(p.Category) == "":
		return fmt.Errorf("%w: empty category", model.ErrInvalidInput)
	case p.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive", model.ErrInvalidInput)
	case p.CostBasisPrice <= 0:
		return fmt.Errorf("%w: initial price must be positive", model.ErrInvalidInput)
	case p.PurchaseDate.IsZero():
		return fmt.Errorf("%w: empty purchase date", model.ErrInvalidInput)
	}

	if (p.AnnualRatePct == nil) != (p.TermMonths == nil) {
		return model.ErrConsistencyViolation
	}
	if p.Kind != kindOf(p) {
		return fmt.Errorf("%w: kind %s doesn't match bond fields", model.ErrConsistencyViolation, p.Kind)
	}
	if p.AnnualRatePct != nil && *p.AnnualRatePct <= 0 {
		return fmt.Errorf("%w: coupon rate must be positive", model.ErrInvalidInput)
	}
	if p.TermMonths != nil && *p.TermMonths <= 0 {
		return fmt.Errorf("%w: investment length must be positive", model.ErrInvalidInput)
	}
	return nil
}

func (s *Service) Positions(ctx context.Context) ([]model.Position, error) {
	return s.stores.Positions.List(ctx, storage.Filter{})
}

func (s *Service) Position(ctx context.Context, id string) (model.Position, error) {
	return s.stores.Positions.Get(ctx, id)
}

// CreatePosition stores a new position under an existing category. The
// category is matched ignoring case and plural form.
func (s *Service) CreatePosition(ctx context.Context, in PositionInput) (model.Position, error) {
	p := model.Position{PurchaseDate: s.now().UTC()}
	in.apply(&p)
	if err := ValidatePosition(p); err != nil {
		return model.Position{}, err
	}
	if err := s.resolveCategory(ctx, &p); err != nil {
		return model.Position{}, err
	}
	return s.stores.Positions.Create(ctx, p)
}

func (s *Service) UpdatePosition(ctx context.Context, id string, in PositionInput) (model.Position, error) {
	p, err := s.stores.Positions.Get(ctx, id)
	if err != nil {
		return model.Position{}, err
	}
	in.apply(&p)
	if err := ValidatePosition(p); err != nil {
		return model.Position{}, err
	}
	if in.Category != nil {
		if err := s.resolveCategory(ctx, &p); err != nil {
			return model.Position{}, err
		}
	}
	return s.stores.Positions.Update(ctx, p)
}

func (s *Service) DeletePosition(ctx context.Context, id string) error {
	return s.stores.Positions.Delete(ctx, id)
}

func (s *Service) resolveCategory(ctx context.Context, p *model.Position) error {
	c, err := s.stores.Categories.FindByName(ctx, p.Category)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: category %q not found", model.ErrInvalidInput, p.Category)
	}
	if err != nil {
		return fmt.Errorf("%w: can't find category", err)
	}
	p.Category = c.Name
	return nil
}
