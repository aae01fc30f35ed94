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

const recipientColumns = `id, user_id, email, name, custom_fields, tags, status, last_email_sent, notes, created_at, updated_at`

type RecipientRepository struct {
	pool *pgxpool.Pool
}

func NewRecipientRepository(pool *pgxpool.Pool) *RecipientRepository {
	return &RecipientRepository{pool: pool}
}

func scanRecipient(row pgx.Row) (*entity.Recipient, error) {
	rc := &entity.Recipient{}
	var status string
	err := row.Scan(&rc.ID, &rc.UserID, &rc.Email, &rc.Name, &rc.CustomFields, &rc.Tags,
		&status, &rc.LastEmailSent, &rc.Notes, &rc.CreatedAt, &rc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rc.Status = entity.RecipientStatus(status)
	return rc, nil
}

func (r *RecipientRepository) Create(ctx context.Context, rc *entity.Recipient) error {
	if rc.Status == "" {
		rc.Status = entity.RecipientActive
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO recipients (user_id, email, name, custom_fields, tags, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, rc.UserID, rc.Email, rc.Name, nonNilMap(rc.CustomFields), nonNilStrings(rc.Tags),
		string(rc.Status), rc.Notes)

	if err := row.Scan(&rc.ID, &rc.CreatedAt, &rc.UpdatedAt); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (r *RecipientRepository) GetByID(ctx context.Context, userID, id string) (*entity.Recipient, error) {
	return r.getOne(ctx, `WHERE id = $1 AND user_id = $2`, id, userID)
}

func (r *RecipientRepository) GetByEmail(ctx context.Context, userID, email string) (*entity.Recipient, error) {
	return r.getOne(ctx, `WHERE email = $1 AND user_id = $2`, email, userID)
}

func (r *RecipientRepository) getOne(ctx context.Context, where string, args ...any) (*entity.Recipient, error) {
	rc, err := scanRecipient(r.pool.QueryRow(ctx, `SELECT `+recipientColumns+` FROM recipients `+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, mapReadErr(err)
	}
	return rc, nil
}

// GetByIDs returns the user's recipients among ids. Unknown ids are skipped
// and the result is in no particular order.
func (r *RecipientRepository) GetByIDs(ctx context.Context, userID string, ids []string) ([]entity.Recipient, error) {
	out := make([]entity.Recipient, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+recipientColumns+`
		FROM recipients
		WHERE user_id = $1 AND id::text = ANY($2::text[])
	`, userID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		rc, err := scanRecipient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rc)
	}
	return out, rows.Err()
}

func (r *RecipientRepository) List(ctx context.Context, userID string, f entity.RecipientFilter) ([]entity.Recipient, int64, error) {
	where := `
		WHERE user_id = $1
		  AND ($2::text = '' OR $2::text = ANY(tags))
		  AND ($3::text = '' OR status = $3::text)
		  AND ($4::text = '' OR email ILIKE '%' || $4::text || '%' OR name ILIKE '%' || $4::text || '%')`
	args := []any{userID, f.Tag, string(f.Status), f.Search}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM recipients `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+recipientColumns+` FROM recipients `+where+`
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6
	`, append(args, f.Limit, f.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]entity.Recipient, 0)
	for rows.Next() {
		rc, err := scanRecipient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *rc)
	}
	return out, total, rows.Err()
}

func (r *RecipientRepository) Update(ctx context.Context, rc *entity.Recipient) error {
	rc.UpdatedAt = time.Now()

	res, err := r.pool.Exec(ctx, `
		UPDATE recipients
		SET email = $1, name = $2, custom_fields = $3, tags = $4, status = $5, notes = $6, updated_at = $7
		WHERE id = $8 AND user_id = $9
	`, rc.Email, rc.Name, nonNilMap(rc.CustomFields), nonNilStrings(rc.Tags),
		string(rc.Status), rc.Notes, rc.UpdatedAt, rc.ID, rc.UserID)
	if err != nil {
		return mapWriteErr(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RecipientRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM recipients WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return mapWriteErr(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *RecipientRepository) TouchLastEmailSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE recipients SET last_email_sent = $1 WHERE id = $2`, at, id)
	return err
}

func (r *RecipientRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM recipients WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

var _ repository.RecipientRepository = (*RecipientRepository)(nil)
