package repository

import (
	"context"
	"time"

	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
)

// RecipientRepository stores contacts. Create and Update return ErrDuplicate
// when (user, email) already exists.
type RecipientRepository interface {
	Create(ctx context.Context, r *entity.Recipient) error
	GetByID(ctx context.Context, userID, id string) (*entity.Recipient, error)
	GetByEmail(ctx context.Context, userID, email string) (*entity.Recipient, error)
	GetByIDs(ctx context.Context, userID string, ids []string) ([]entity.Recipient, error)
	List(ctx context.Context, userID string, f entity.RecipientFilter) ([]entity.Recipient, int64, error)
	Update(ctx context.Context, r *entity.Recipient) error
	Delete(ctx context.Context, userID, id string) error
	TouchLastEmailSent(ctx context.Context, id string, at time.Time) error
	CountByUser(ctx context.Context, userID string) (int64, error)
}
