//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/internal/domain/repository"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("skipping integration test: DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), os.Getenv("DATABASE_URL"))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func testUser(t *testing.T, pool *pgxpool.Pool) *entity.User {
	t.Helper()
	u := &entity.User{Email: "repo-" + uuid.NewString() + "@example.com", Password: "x", Name: "Repo"}
	require.NoError(t, NewUserRepository(pool).Create(context.Background(), u))
	return u
}

func TestRecipientRepository_DuplicateEmail(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	u := testUser(t, pool)
	repo := NewRecipientRepository(pool)

	first := &entity.Recipient{UserID: u.ID, Email: "dup@example.com", Tags: []string{"a"}}
	require.NoError(t, repo.Create(ctx, first))
	assert.Equal(t, entity.RecipientActive, first.Status)

	err := repo.Create(ctx, &entity.Recipient{UserID: u.ID, Email: "dup@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	got, err := repo.GetByEmail(ctx, u.ID, "dup@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Tags)
	assert.Empty(t, got.CustomFields)

	_, err = repo.GetByID(ctx, u.ID, "not-a-uuid")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecipientRepository_ListFilters(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	u := testUser(t, pool)
	repo := NewRecipientRepository(pool)

	require.NoError(t, repo.Create(ctx, &entity.Recipient{UserID: u.ID, Email: "ann@example.com", Name: "Ann", Tags: []string{"vip"}}))
	require.NoError(t, repo.Create(ctx, &entity.Recipient{UserID: u.ID, Email: "bob@example.com", Name: "Bob", Status: entity.RecipientBounced}))

	items, total, err := repo.List(ctx, u.ID, entity.RecipientFilter{Tag: "vip", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "ann@example.com", items[0].Email)

	items, total, err = repo.List(ctx, u.ID, entity.RecipientFilter{Search: "BO", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, entity.RecipientBounced, items[0].Status)
}

func TestDeliveryLogRepository_CountByStatus(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	u := testUser(t, pool)
	repo := NewDeliveryLogRepository(pool)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, st := range []entity.DeliveryStatus{entity.DeliverySent, entity.DeliverySent, entity.DeliveryFailed} {
		e := &entity.DeliveryLogEntry{
			ID:               uuid.NewString(),
			UserID:           u.ID,
			RecipientAddress: "log@example.com",
			Status:           st,
			SentAt:           base.Add(time.Duration(i) * 24 * time.Hour),
		}
		require.NoError(t, repo.Insert(ctx, e))
	}

	counts, err := repo.CountByStatus(ctx, u.ID, entity.DateRange{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[entity.DeliverySent])
	assert.EqualValues(t, 1, counts[entity.DeliveryFailed])

	counts, err = repo.CountByStatus(ctx, u.ID, entity.DateRange{From: base.Add(24 * time.Hour)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[entity.DeliverySent])

	recent, err := repo.ListRecent(ctx, u.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, entity.DeliveryFailed, recent[0].Status)
	assert.Empty(t, recent[0].Attachments)
}
