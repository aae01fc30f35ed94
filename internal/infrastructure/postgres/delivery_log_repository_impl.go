package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/internal/domain/repository"
)

const deliveryLogColumns = `id, user_id, recipient_address, recipient_name, status, error, sent_at,
	rendered_subject, rendered_body, attachments, custom_fields, created_at`

type DeliveryLogRepository struct {
	pool *pgxpool.Pool
}

func NewDeliveryLogRepository(pool *pgxpool.Pool) *DeliveryLogRepository {
	return &DeliveryLogRepository{pool: pool}
}

func (r *DeliveryLogRepository) Insert(ctx context.Context, e *entity.DeliveryLogEntry) error {
	attachments := e.Attachments
	if attachments == nil {
		attachments = []entity.AttachmentDescriptor{}
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO delivery_logs (id, user_id, recipient_address, recipient_name, status, error, sent_at,
			rendered_subject, rendered_body, attachments, custom_fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`, e.ID, e.UserID, e.RecipientAddress, e.RecipientName, string(e.Status), e.Error, e.SentAt,
		e.RenderedSubject, e.RenderedBody, attachments, nonNilMap(e.CustomFields))

	if err := row.Scan(&e.CreatedAt); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (r *DeliveryLogRepository) ListRecent(ctx context.Context, userID string, limit int) ([]entity.DeliveryLogEntry, error) {
	return r.list(ctx, `WHERE user_id = $1 ORDER BY sent_at DESC LIMIT $2`, userID, limit)
}

func (r *DeliveryLogRepository) ListRecentByAddress(ctx context.Context, userID, address string, limit int) ([]entity.DeliveryLogEntry, error) {
	return r.list(ctx, `WHERE user_id = $1 AND recipient_address = $2 ORDER BY sent_at DESC LIMIT $3`, userID, address, limit)
}

func (r *DeliveryLogRepository) list(ctx context.Context, tail string, args ...any) ([]entity.DeliveryLogEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+deliveryLogColumns+` FROM delivery_logs `+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]entity.DeliveryLogEntry, 0)
	for rows.Next() {
		e, err := scanDeliveryLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func scanDeliveryLog(row pgx.Row) (*entity.DeliveryLogEntry, error) {
	e := &entity.DeliveryLogEntry{}
	var status string
	err := row.Scan(&e.ID, &e.UserID, &e.RecipientAddress, &e.RecipientName, &status, &e.Error, &e.SentAt,
		&e.RenderedSubject, &e.RenderedBody, &e.Attachments, &e.CustomFields, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Status = entity.DeliveryStatus(status)
	return e, nil
}

// CountByStatus groups the user's entries by status within r. Zero bounds are open.
func (r *DeliveryLogRepository) CountByStatus(ctx context.Context, userID string, dr entity.DateRange) (map[entity.DeliveryStatus]int64, error) {
	var from, to *time.Time
	if !dr.From.IsZero() {
		from = &dr.From
	}
	if !dr.To.IsZero() {
		to = &dr.To
	}

	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*)
		FROM delivery_logs
		WHERE user_id = $1
		  AND ($2::timestamptz IS NULL OR sent_at >= $2)
		  AND ($3::timestamptz IS NULL OR sent_at <= $3)
		GROUP BY status
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[entity.DeliveryStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[entity.DeliveryStatus(status)] = n
	}
	return counts, rows.Err()
}

var _ repository.DeliveryLogRepository = (*DeliveryLogRepository)(nil)
