package portfolio

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/STTM-NSU/fintrack/internal/model"
)

// CategoryName trims a name and capitalizes it: "  akcie" becomes "Akcie".
func CategoryName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

func (s *Service) Categories(ctx context.Context) ([]model.Category, error) {
	return s.stores.Categories.List(ctx)
}

// CreateCategory fails with storage.ErrAlreadyExists when a category of the
// same name exists, compared ignoring case.
func (s *Service) CreateCategory(ctx context.Context, name string) (model.Category, error) {
	name = CategoryName(name)
	if name == "" {
		return model.Category{}, fmt.Errorf("%w: empty category name", model.ErrInvalidInput)
	}
	return s.stores.Categories.Create(ctx, model.Category{Name: name})
}

func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	return s.stores.Categories.Delete(ctx, id)
}
