package repository

import (
	"context"

	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
)

// DeliveryLogRepository is append-only: entries are inserted and read, never updated.
type DeliveryLogRepository interface {
	Insert(ctx context.Context, e *entity.DeliveryLogEntry) error
	ListRecent(ctx context.Context, userID string, limit int) ([]entity.DeliveryLogEntry, error)
	ListRecentByAddress(ctx context.Context, userID, address string, limit int) ([]entity.DeliveryLogEntry, error)
	CountByStatus(ctx context.Context, userID string, r entity.DateRange) (map[entity.DeliveryStatus]int64, error)
}
