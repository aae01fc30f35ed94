package repository

import (
	"context"

	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
)

// TemplateRepository stores message templates. Lookups are scoped to the owning user.
type TemplateRepository interface {
	Create(ctx context.Context, t *entity.Template) error
	GetByID(ctx context.Context, userID, id string) (*entity.Template, error)
	List(ctx context.Context, userID string, f entity.TemplateFilter) ([]entity.Template, error)
	Update(ctx context.Context, t *entity.Template) error
	Delete(ctx context.Context, userID, id string) error
	CountByUser(ctx context.Context, userID string) (int64, error)
}
