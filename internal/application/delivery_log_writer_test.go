package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/pkg/helpers"
	"github.com/oksasatya/bulk-mailer/pkg/mailer"
)

func TestDeliveryLogWriter_RecordAssignsIDAndTime(t *testing.T) {
	repo := &fakeLogRepo{}
	pub := &fakePublisher{}
	w := NewDeliveryLogWriter(repo, pub, helpers.NopLogger())
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	entry := &entity.DeliveryLogEntry{
		UserID:           "u1",
		RecipientAddress: "a@x.com",
		Status:           entity.DeliverySent,
		RenderedSubject:  "Hi",
		Attachments:      []entity.AttachmentDescriptor{{Filename: "cv.pdf", Path: "x.pdf"}},
	}
	id, err := w.Record(context.Background(), entry)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, fixed, entry.SentAt)
	require.Len(t, repo.entries, 1)
	assert.Equal(t, id, repo.entries[0].ID)

	require.Len(t, pub.bodies, 1)
	ev, ok := pub.bodies[0].(mailer.DeliveryEvent)
	require.True(t, ok)
	assert.Equal(t, id, ev.ID)
	assert.Equal(t, "sent", ev.Status)
	assert.Equal(t, []string{"cv.pdf"}, ev.Attachments)
}

func TestDeliveryLogWriter_InsertFailure(t *testing.T) {
	repo := &fakeLogRepo{insertErr: errors.New("conn refused")}
	pub := &fakePublisher{}
	w := NewDeliveryLogWriter(repo, pub, nil)

	_, err := w.Record(context.Background(), &entity.DeliveryLogEntry{UserID: "u1", Status: entity.DeliveryFailed})
	var perr *PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.EqualError(t, perr.Err, "conn refused")
	assert.Empty(t, pub.bodies, "nothing is published for an entry that was not stored")
}

func TestDeliveryLogWriter_PublishFailureIsIgnored(t *testing.T) {
	repo := &fakeLogRepo{}
	w := NewDeliveryLogWriter(repo, &fakePublisher{err: errors.New("channel closed")}, helpers.NopLogger())

	_, err := w.Record(context.Background(), &entity.DeliveryLogEntry{UserID: "u1", Status: entity.DeliverySent})
	require.NoError(t, err)
	assert.Len(t, repo.entries, 1)
}
