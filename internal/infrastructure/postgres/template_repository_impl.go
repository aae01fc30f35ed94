package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/internal/domain/repository"
)

const templateColumns = `id, user_id, name, description, subject, body, is_html, variables, category, is_active, created_at, updated_at`

type TemplateRepository struct {
	pool *pgxpool.Pool
}

func NewTemplateRepository(pool *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

func scanTemplate(row pgx.Row) (*entity.Template, error) {
	t := &entity.Template{}
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Description, &t.Subject, &t.Body,
		&t.IsHTML, &t.Variables, &t.Category, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TemplateRepository) Create(ctx context.Context, t *entity.Template) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO templates (user_id, name, description, subject, body, is_html, variables, category, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, t.UserID, t.Name, t.Description, t.Subject, t.Body, t.IsHTML,
		nonNilStrings(t.Variables), t.Category, t.IsActive)

	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (r *TemplateRepository) GetByID(ctx context.Context, userID, id string) (*entity.Template, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1 AND user_id = $2`, id, userID)
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapReadErr(err)
	}
	return t, nil
}

func (r *TemplateRepository) List(ctx context.Context, userID string, f entity.TemplateFilter) ([]entity.Template, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+templateColumns+`
		FROM templates
		WHERE user_id = $1 AND ($2::text = '' OR category = $2::text)
		ORDER BY created_at DESC
	`, userID, f.Category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]entity.Template, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *TemplateRepository) Update(ctx context.Context, t *entity.Template) error {
	t.UpdatedAt = time.Now()

	res, err := r.pool.Exec(ctx, `
		UPDATE templates
		SET name = $1, description = $2, subject = $3, body = $4, is_html = $5,
		    variables = $6, category = $7, is_active = $8, updated_at = $9
		WHERE id = $10 AND user_id = $11
	`, t.Name, t.Description, t.Subject, t.Body, t.IsHTML,
		nonNilStrings(t.Variables), t.Category, t.IsActive, t.UpdatedAt, t.ID, t.UserID)
	if err != nil {
		return mapWriteErr(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *TemplateRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return mapWriteErr(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *TemplateRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM templates WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

var _ repository.TemplateRepository = (*TemplateRepository)(nil)
