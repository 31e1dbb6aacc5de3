package port

import (
	"context"

	"github.com/tamima/evoucher/internal/models"
)

// RunRepository defines persistence operations for the batch run ledger
type RunRepository interface {
	Create(ctx context.Context, run *models.BatchRun) error
	GetByID(ctx context.Context, id string) (*models.BatchRun, error)
	ListRecent(ctx context.Context, limit int) ([]*models.BatchRun, error)
}
