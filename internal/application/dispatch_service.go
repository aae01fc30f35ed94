package application

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/internal/domain/repository"
	"github.com/oksasatya/bulk-mailer/internal/infrastructure/upload"
	"github.com/oksasatya/bulk-mailer/internal/metrics"
	"github.com/oksasatya/bulk-mailer/pkg/mailer"
	"github.com/oksasatya/bulk-mailer/pkg/mailer/templates"
	"github.com/oksasatya/bulk-mailer/pkg/validation"
)

const (
	modeBulk     = "bulk"
	modeTemplate = "template"
)

// CacheInvalidator drops cached aggregates for a user after new log entries.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// DispatchRequest is one bulk send. Attachments are released when the
// dispatch returns, whatever the outcome.
type DispatchRequest struct {
	Sender      entity.Sender
	Recipients  []entity.RecipientRef
	Subject     string
	Body        string
	IsHTML      bool
	Attachments *upload.Staged
}

// TemplateDispatchRequest sends a stored template to stored recipients
// (by id) plus any inline recipients.
type TemplateDispatchRequest struct {
	Sender       entity.Sender
	TemplateID   string
	RecipientIDs []string
	Inline       []entity.RecipientRef
	Attachments  *upload.Staged
}

type DispatchService struct {
	Transport      mailer.Transport
	Logs           *DeliveryLogWriter
	Recipients     repository.RecipientRepository
	Templates      repository.TemplateRepository
	Cache          CacheInvalidator
	Logger         *logrus.Logger
	Concurrency    int
	AttemptTimeout time.Duration
	now            func() time.Time
}

func NewDispatchService(
	transport mailer.Transport,
	logs *DeliveryLogWriter,
	recipients repository.RecipientRepository,
	templates repository.TemplateRepository,
	cache CacheInvalidator,
	logger *logrus.Logger,
	concurrency int,
	attemptTimeout time.Duration,
) *DispatchService {
	return &DispatchService{
		Transport:      transport,
		Logs:           logs,
		Recipients:     recipients,
		Templates:      templates,
		Cache:          cache,
		Logger:         logger,
		Concurrency:    concurrency,
		AttemptTimeout: attemptTimeout,
		now:            time.Now,
	}
}

// Dispatch attempts delivery to every recipient once, in input order, and
// returns one outcome per recipient. A failure for one recipient never stops
// the others. The only error returned is a *ValidationError, before any attempt.
func (s *DispatchService) Dispatch(ctx context.Context, req DispatchRequest) (*entity.DispatchResult, error) {
	return s.dispatch(ctx, req, modeBulk)
}

func (s *DispatchService) DispatchTemplate(ctx context.Context, req TemplateDispatchRequest) (*entity.DispatchResult, error) {
	defer req.Attachments.Release()

	fields := map[string]string{}
	if req.TemplateID == "" {
		fields["template_id"] = "is required"
	}
	if len(req.RecipientIDs) == 0 && len(req.Inline) == 0 {
		fields["recipients"] = "is required"
	}
	if len(fields) > 0 {
		return nil, newValidationError(fields)
	}

	tpl, err := s.Templates.GetByID(ctx, req.Sender.UserID, req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}

	refs, err := s.resolveRecipients(ctx, req.Sender.UserID, req.RecipientIDs)
	if err != nil {
		return nil, err
	}
	for _, r := range req.Inline {
		r.Structured = true
		refs = append(refs, r)
	}
	if len(refs) == 0 {
		return nil, newValidationError(map[string]string{"recipient_ids": "match no recipients"})
	}

	return s.dispatch(ctx, DispatchRequest{
		Sender:      req.Sender,
		Recipients:  refs,
		Subject:     tpl.Subject,
		Body:        tpl.Body,
		IsHTML:      tpl.IsHTML,
		Attachments: req.Attachments,
	}, modeTemplate)
}

// resolveRecipients loads the sender's recipients in the order of ids.
// Unknown or foreign ids are skipped.
func (s *DispatchService) resolveRecipients(ctx context.Context, userID string, ids []string) ([]entity.RecipientRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := s.Recipients.GetByIDs(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}
	byID := make(map[string]*entity.Recipient, len(found))
	for i := range found {
		byID[found[i].ID] = &found[i]
	}
	refs := make([]entity.RecipientRef, 0, len(found))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if _, dup := seen[id]; !ok || dup {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, r.Ref())
	}
	return refs, nil
}

func (s *DispatchService) dispatch(ctx context.Context, req DispatchRequest, mode string) (*entity.DispatchResult, error) {
	defer req.Attachments.Release()

	if err := validateDispatch(req); err != nil {
		return nil, err
	}

	// Attempts, log writes and cache invalidation outlive the caller; every
	// recipient must end with exactly one log entry even if the client goes away.
	ctx = context.WithoutCancel(ctx)

	atts := req.Attachments.Attachments()
	descriptors := req.Attachments.Descriptors()
	outcomes := make([]entity.Outcome, len(req.Recipients))

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency())
	for i, rcpt := range req.Recipients {
		i, rcpt := i, rcpt
		g.Go(func() error {
			outcomes[i] = s.deliverOne(ctx, req, rcpt, atts, descriptors)
			return nil
		})
	}
	_ = g.Wait()

	result := &entity.DispatchResult{Results: outcomes}
	stats := result.Stats()
	metrics.IncDispatch(mode, string(result.Classification()))
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{
			"user_id": req.Sender.UserID,
			"mode":    mode,
			"total":   stats.Total,
			"sent":    stats.Sent,
			"failed":  stats.Failed,
		}).Info("dispatch completed")
	}
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, req.Sender.UserID)
	}
	return result, nil
}

func validateDispatch(req DispatchRequest) error {
	fields := map[string]string{}
	if len(req.Recipients) == 0 {
		fields["recipients"] = "is required"
	}
	for i, r := range req.Recipients {
		if r.Email == "" {
			fields[fmt.Sprintf("recipients[%d].email", i)] = "is required"
		}
	}
	if req.Subject == "" {
		fields["subject"] = "is required"
	}
	if req.Body == "" {
		fields["body"] = "is required"
	}
	if req.Sender.UserID == "" {
		fields["sender.user_id"] = "is required"
	}
	if err := validation.Validator().Var(req.Sender.Email, "required,email"); err != nil {
		fields["sender.email"] = "must be a valid email address"
	}
	if len(fields) > 0 {
		return newValidationError(fields)
	}
	return nil
}

func (s *DispatchService) concurrency() int {
	if s.Concurrency < 1 {
		return 1
	}
	return s.Concurrency
}

func (s *DispatchService) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *DispatchService) provider() string {
	if p, ok := s.Transport.(interface{ Provider() string }); ok {
		return p.Provider()
	}
	return ""
}

// buildMessage personalizes structured recipients and returns the body it
// rendered. Bare addresses get the literal subject and the body as both text and HTML.
func buildMessage(req DispatchRequest, rcpt entity.RecipientRef, atts []mailer.Attachment) (mailer.Message, string) {
	msg := mailer.Message{
		From:        req.Sender.Email,
		To:          rcpt.Email,
		Subject:     req.Subject,
		Attachments: atts,
	}
	if !rcpt.Structured {
		msg.Text = req.Body
		msg.HTML = req.Body
		return msg, req.Body
	}
	attrs := rcpt.Attributes()
	msg.Subject = templates.Render(req.Subject, attrs)
	body := templates.Render(req.Body, attrs)
	if req.IsHTML {
		msg.HTML = body
	} else {
		msg.Text = body
	}
	return msg, body
}

func (s *DispatchService) deliverOne(ctx context.Context, req DispatchRequest, rcpt entity.RecipientRef, atts []mailer.Attachment, descriptors []entity.AttachmentDescriptor) entity.Outcome {
	outcome := entity.Outcome{Email: rcpt.Email, Name: rcpt.Name}
	entry := &entity.DeliveryLogEntry{
		UserID:           req.Sender.UserID,
		RecipientAddress: rcpt.Email,
		RecipientName:    rcpt.Name,
		Attachments:      descriptors,
		CustomFields:     rcpt.CustomFields,
	}

	if rcpt.Stored() && rcpt.Status != "" && rcpt.Status != entity.RecipientActive {
		outcome.Status = entity.OutcomeFailed
		outcome.Error = "recipient is " + string(rcpt.Status)
		entry.Status = entity.DeliveryFailed
		entry.Error = outcome.Error
		entry.SentAt = s.clock()
		s.record(ctx, entry)
		return outcome
	}

	msg, body := buildMessage(req, rcpt, atts)

	attemptCtx := ctx
	cancel := func() {}
	if s.AttemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, s.AttemptTimeout)
	}
	start := time.Now()
	err := s.Transport.Deliver(attemptCtx, msg)
	cancel()
	entry.SentAt = s.clock()

	if err != nil {
		derr := &DeliveryError{Recipient: rcpt.Email, Err: err}
		metrics.ObserveDelivery(s.provider(), string(entity.OutcomeFailed), time.Since(start).Seconds())
		if s.Logger != nil {
			s.Logger.WithError(derr).WithField("user_id", req.Sender.UserID).Warn("delivery failed")
		}
		outcome.Status = entity.OutcomeFailed
		outcome.Error = err.Error()
		entry.Status = entity.DeliveryFailed
		entry.Error = err.Error()
		s.record(ctx, entry)
		return outcome
	}

	metrics.ObserveDelivery(s.provider(), string(entity.OutcomeSuccess), time.Since(start).Seconds())
	outcome.Status = entity.OutcomeSuccess
	entry.Status = entity.DeliverySent
	entry.RenderedSubject = msg.Subject
	entry.RenderedBody = body
	s.record(ctx, entry)

	if rcpt.Stored() && s.Recipients != nil {
		if err := s.Recipients.TouchLastEmailSent(ctx, rcpt.ID, entry.SentAt); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("recipient_id", rcpt.ID).Warn("failed to update last email sent")
		}
	}
	return outcome
}

// record never changes the outcome; a failed write is logged and counted.
func (s *DispatchService) record(ctx context.Context, entry *entity.DeliveryLogEntry) {
	if s.Logs == nil {
		return
	}
	if _, err := s.Logs.Record(ctx, entry); err != nil {
		metrics.IncLogWriteFailure()
		if s.Logger != nil {
			s.Logger.WithError(err).WithFields(logrus.Fields{
				"user_id":   entry.UserID,
				"recipient": entry.RecipientAddress,
				"status":    entry.Status,
			}).Error("delivery log write failed")
		}
	}
}
