package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/internal/domain/repository"
	"github.com/oksasatya/bulk-mailer/internal/metrics"
	"github.com/oksasatya/bulk-mailer/pkg/mailer"
)

// EventPublisher queues a JSON message. helpers.RabbitPublisher satisfies it.
type EventPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// DeliveryLogWriter persists one entry per delivery attempt and announces it
// on the event queue.
type DeliveryLogWriter struct {
	Repo      repository.DeliveryLogRepository
	Publisher EventPublisher
	Logger    *logrus.Logger
	now       func() time.Time
}

func NewDeliveryLogWriter(repo repository.DeliveryLogRepository, pub EventPublisher, logger *logrus.Logger) *DeliveryLogWriter {
	return &DeliveryLogWriter{Repo: repo, Publisher: pub, Logger: logger, now: time.Now}
}

// Record assigns an id and timestamp when missing and stores e. Publishing is
// best effort and never fails the call.
func (w *DeliveryLogWriter) Record(ctx context.Context, e *entity.DeliveryLogEntry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.SentAt.IsZero() {
		e.SentAt = w.clock()
	}
	if err := w.Repo.Insert(ctx, e); err != nil {
		return "", &PersistenceError{Op: "insert delivery log", Err: err}
	}
	w.publish(ctx, e)
	return e.ID, nil
}

func (w *DeliveryLogWriter) clock() time.Time {
	if w.now == nil {
		return time.Now()
	}
	return w.now()
}

func (w *DeliveryLogWriter) publish(ctx context.Context, e *entity.DeliveryLogEntry) {
	if w.Publisher == nil {
		return
	}
	if err := w.Publisher.PublishJSON(ctx, eventFromEntry(e)); err != nil {
		metrics.IncEventPublishFailure()
		if w.Logger != nil {
			w.Logger.WithError(err).WithField("log_id", e.ID).Warn("failed to publish delivery event")
		}
	}
}

func eventFromEntry(e *entity.DeliveryLogEntry) mailer.DeliveryEvent {
	ev := mailer.DeliveryEvent{
		ID:               e.ID,
		UserID:           e.UserID,
		RecipientAddress: e.RecipientAddress,
		RecipientName:    e.RecipientName,
		Status:           string(e.Status),
		Error:            e.Error,
		Subject:          e.RenderedSubject,
		Body:             e.RenderedBody,
		SentAt:           e.SentAt,
	}
	for _, a := range e.Attachments {
		ev.Attachments = append(ev.Attachments, a.Filename)
	}
	return ev
}
