package legalform

import (
	"context"
	"fmt"

	"market/internal/market/models"
)

// Saver is the write side shared by both catalog stores.
type Saver interface {
	Save(ctx context.Context, form *models.LegalForm) error
}

// Seed writes forms into s. Existing entries with the same id are replaced.
func Seed(ctx context.Context, s Saver, forms []models.LegalForm) error {
	for i := range forms {
		if err := s.Save(ctx, &forms[i]); err != nil {
			return fmt.Errorf("seed legal form %d: %w", forms[i].ID, err)
		}
	}
	return nil
}
