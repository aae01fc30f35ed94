package application

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/internal/domain/repository"
	"github.com/oksasatya/bulk-mailer/pkg/validation"
)

const (
	recipientHistoryLimit = 10
	defaultRecipientLimit = 100
	maxRecipientLimit     = 500
)

type RecipientService struct {
	Repo   repository.RecipientRepository
	Logs   repository.DeliveryLogRepository
	Logger *logrus.Logger
}

func NewRecipientService(repo repository.RecipientRepository, logs repository.DeliveryLogRepository, logger *logrus.Logger) *RecipientService {
	return &RecipientService{Repo: repo, Logs: logs, Logger: logger}
}

type RecipientInput struct {
	Email        string
	Name         string
	CustomFields map[string]string
	Tags         []string
	Notes        string
}

// UpdateRecipientInput patches a recipient. A nil CustomFields value deletes
// that key; a non-nil Tags replaces the tag set.
type UpdateRecipientInput struct {
	Email        string
	Name         *string
	CustomFields map[string]*string
	Tags         []string
	Notes        *string
	Status       entity.RecipientStatus
}

type RecipientPage struct {
	Items []entity.Recipient `json:"recipients"`
	Total int64              `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
	Pages int                `json:"pages"`
}

type RecipientDetail struct {
	Recipient    *entity.Recipient         `json:"recipient"`
	EmailHistory []entity.DeliveryLogEntry `json:"email_history"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Total      int      `json:"total"`
	Created    int      `json:"created"`
	Duplicates int      `json:"duplicates"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
}

func checkEmail(email string) error {
	if email == "" {
		return newValidationError(map[string]string{"email": "is required"})
	}
	if err := validation.Validator().Var(email, "email"); err != nil {
		return newValidationError(map[string]string{"email": "must be a valid email address"})
	}
	return nil
}

func dedupTags(tags []string) []string {
	r := &entity.Recipient{Tags: []string{}}
	r.MergeTags(tags)
	return r.Tags
}

// Create fails with repository.ErrDuplicate when the address is already stored for the user.
func (s *RecipientService) Create(ctx context.Context, userID string, in RecipientInput) (*entity.Recipient, error) {
	if err := checkEmail(in.Email); err != nil {
		return nil, err
	}
	r := &entity.Recipient{
		UserID:       userID,
		Email:        in.Email,
		Name:         in.Name,
		CustomFields: in.CustomFields,
		Tags:         dedupTags(in.Tags),
		Status:       entity.RecipientActive,
		Notes:        in.Notes,
	}
	if err := s.Repo.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Upsert creates the recipient or merges into the stored one: non-empty
// name/notes overwrite, custom fields are merged key by key, tags are unioned.
// created reports which branch ran.
func (s *RecipientService) Upsert(ctx context.Context, userID string, in RecipientInput) (r *entity.Recipient, created bool, err error) {
	if err := checkEmail(in.Email); err != nil {
		return nil, false, err
	}
	existing, err := s.Repo.GetByEmail(ctx, userID, in.Email)
	if errors.Is(err, repository.ErrNotFound) {
		r, err = s.Create(ctx, userID, in)
		return r, err == nil, err
	}
	if err != nil {
		return nil, false, err
	}

	if in.Name != "" {
		existing.Name = in.Name
	}
	if len(in.CustomFields) > 0 {
		if existing.CustomFields == nil {
			existing.CustomFields = make(map[string]string, len(in.CustomFields))
		}
		for k, v := range in.CustomFields {
			existing.CustomFields[k] = v
		}
	}
	existing.MergeTags(in.Tags)
	if in.Notes != "" {
		existing.Notes = in.Notes
	}
	if err := s.Repo.Update(ctx, existing); err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *RecipientService) Update(ctx context.Context, userID, id string, in UpdateRecipientInput) (*entity.Recipient, error) {
	if in.Status != "" && !in.Status.Valid() {
		return nil, newValidationError(map[string]string{"status": "must be one of: active, unsubscribed, bounced"})
	}
	if in.Email != "" {
		if err := checkEmail(in.Email); err != nil {
			return nil, err
		}
	}

	r, err := s.Repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if in.Email != "" {
		r.Email = in.Email
	}
	if in.Name != nil {
		r.Name = *in.Name
	}
	if in.CustomFields != nil {
		if r.CustomFields == nil {
			r.CustomFields = make(map[string]string, len(in.CustomFields))
		}
		for k, v := range in.CustomFields {
			if v == nil {
				delete(r.CustomFields, k)
				continue
			}
			r.CustomFields[k] = *v
		}
	}
	if in.Tags != nil {
		r.Tags = dedupTags(in.Tags)
	}
	if in.Notes != nil {
		r.Notes = *in.Notes
	}
	if in.Status != "" {
		r.Status = in.Status
	}
	if err := s.Repo.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Get returns the recipient with its 10 most recent delivery log entries.
func (s *RecipientService) Get(ctx context.Context, userID, id string) (*RecipientDetail, error) {
	r, err := s.Repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	history, err := s.Logs.ListRecentByAddress(ctx, userID, r.Email, recipientHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("list recipient history: %w", err)
	}
	return &RecipientDetail{Recipient: r, EmailHistory: history}, nil
}

func (s *RecipientService) List(ctx context.Context, userID string, f entity.RecipientFilter) (*RecipientPage, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, newValidationError(map[string]string{"status": "must be one of: active, unsubscribed, bounced"})
	}
	if f.Limit <= 0 {
		f.Limit = defaultRecipientLimit
	}
	if f.Limit > maxRecipientLimit {
		f.Limit = maxRecipientLimit
	}
	if f.Page < 1 {
		f.Page = 1
	}

	items, total, err := s.Repo.List(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	return &RecipientPage{
		Items: items,
		Total: total,
		Page:  f.Page,
		Limit: f.Limit,
		Pages: int(math.Ceil(float64(total) / float64(f.Limit))),
	}, nil
}

func (s *RecipientService) Delete(ctx context.Context, userID, id string) error {
	return s.Repo.Delete(ctx, userID, id)
}

// Import creates each entry that is not stored yet. Existing addresses are
// counted as duplicates and left untouched; one bad entry never stops the rest.
func (s *RecipientService) Import(ctx context.Context, userID string, in []RecipientInput) (*ImportResult, error) {
	if len(in) == 0 {
		return nil, newValidationError(map[string]string{"recipients": "is required"})
	}
	res := &ImportResult{Total: len(in), Errors: []string{}}
	for i, item := range in {
		_, err := s.Create(ctx, userID, item)
		var verr *ValidationError
		switch {
		case err == nil:
			res.Created++
		case errors.Is(err, repository.ErrDuplicate):
			res.Duplicates++
		case errors.As(err, &verr):
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("entry %d: %s", i, verr.Error()))
		default:
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("entry %d (%s): %v", i, item.Email, err))
			if s.Logger != nil {
				s.Logger.WithError(err).WithField("user_id", userID).Warn("recipient import entry failed")
			}
		}
	}
	return res, nil
}
