package orderstate

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-payments/internal/models"
	"ms-payments/internal/settings"
)

// Migrate creates the tables this service owns if they do not exist yet.
func Migrate(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.Order)(nil),
		(*models.EventQuota)(nil),
		(*models.RequiredAction)(nil),
		(*settings.Settings)(nil),
	}

	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("orderstate: create table for %T: %w", model, err)
		}
	}
	return nil
}
