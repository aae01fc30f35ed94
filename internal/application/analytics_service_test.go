package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/pkg/mailer"
)

func seedLogs(repo *fakeLogRepo, userID string, base time.Time, statuses ...entity.DeliveryStatus) {
	for i, s := range statuses {
		repo.entries = append(repo.entries, entity.DeliveryLogEntry{
			ID:               string(rune('a' + i)),
			UserID:           userID,
			RecipientAddress: "r@x.com",
			Status:           s,
			SentAt:           base.Add(time.Duration(i) * time.Hour),
		})
	}
}

func newAnalytics(logs *fakeLogRepo) *AnalyticsService {
	return NewAnalyticsService(logs, newFakeTemplateRepo(), newFakeRecipientRepo(), nil, nil, time.Minute, 0, nil)
}

func TestAnalytics_AggregateWithRange(t *testing.T) {
	logs := &fakeLogRepo{}
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	seedLogs(logs, "u1", base, entity.DeliverySent, entity.DeliverySent, entity.DeliveryFailed, entity.DeliveryReplied)
	seedLogs(logs, "u2", base, entity.DeliveryFailed)
	svc := newAnalytics(logs)

	all, err := svc.Aggregate(context.Background(), "u1", entity.DateRange{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, all.Total)
	assert.EqualValues(t, 2, all.Sent)
	assert.InDelta(t, 50.0, all.SuccessRate, 1e-9)
	assert.InDelta(t, 50.0, all.ReplyRate, 1e-9)

	// bounds are inclusive: hours 1 and 2
	r := entity.DateRange{From: base.Add(time.Hour), To: base.Add(2 * time.Hour)}
	windowed, err := svc.Aggregate(context.Background(), "u1", r)
	require.NoError(t, err)
	assert.EqualValues(t, 2, windowed.Total)
	assert.EqualValues(t, 1, windowed.Sent)
	assert.EqualValues(t, 1, windowed.Failed)
}

func TestAnalytics_EmptyUser(t *testing.T) {
	svc := newAnalytics(&fakeLogRepo{})
	a, err := svc.Aggregate(context.Background(), "nobody", entity.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, entity.Analytics{}, a)
}

func TestAnalytics_HistoryLimits(t *testing.T) {
	logs := &fakeLogRepo{}
	statuses := make([]entity.DeliveryStatus, 130)
	for i := range statuses {
		statuses[i] = entity.DeliverySent
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedLogs(logs, "u1", base, statuses...)
	svc := newAnalytics(logs)

	got, err := svc.History(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Len(t, got, 20)
	assert.True(t, got[0].SentAt.After(got[1].SentAt))

	got, err = svc.History(context.Background(), "u1", 500)
	require.NoError(t, err)
	assert.Len(t, got, 100)

	svc.HistoryDefaultLimit = 7
	got, err = svc.History(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Len(t, got, 7)
}

type stubSearcher struct {
	q string
}

func (s *stubSearcher) Search(_ context.Context, userID, q string, _ int) ([]mailer.DeliveryEvent, error) {
	s.q = q
	return []mailer.DeliveryEvent{{ID: "1", UserID: userID}}, nil
}

func TestAnalytics_SearchHistory(t *testing.T) {
	svc := newAnalytics(&fakeLogRepo{})
	got, err := svc.SearchHistory(context.Background(), "u1", "acme", 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	stub := &stubSearcher{}
	svc.Search = stub
	got, err = svc.SearchHistory(context.Background(), "u1", "acme", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "acme", stub.q)
}

func TestAnalytics_Dashboard(t *testing.T) {
	logs := &fakeLogRepo{}
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	seedLogs(logs, "u1", base,
		entity.DeliverySent, entity.DeliverySent, entity.DeliverySent,
		entity.DeliveryFailed, entity.DeliverySent, entity.DeliverySent, entity.DeliverySent)
	svc := newAnalytics(logs)
	svc.Templates = newFakeTemplateRepo(&entity.Template{UserID: "u1"}, &entity.Template{UserID: "u2"})
	svc.Recipients = newFakeRecipientRepo(&entity.Recipient{UserID: "u1", Email: "a@x.com"})

	d, err := svc.Dashboard(context.Background(), "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 6, d.EmailsSent)
	assert.EqualValues(t, 1, d.TemplatesCount)
	assert.EqualValues(t, 1, d.RecipientsCount)
	assert.InDelta(t, 600.0/7, d.SuccessRate, 1e-9)
	require.Len(t, d.RecentEmails, 5)
	assert.Equal(t, base.Add(6*time.Hour), d.RecentEmails[0].SentAt)
}
