package application

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/internal/domain/repository"
)

type TemplateService struct {
	Repo   repository.TemplateRepository
	Logger *logrus.Logger
}

func NewTemplateService(repo repository.TemplateRepository, logger *logrus.Logger) *TemplateService {
	return &TemplateService{Repo: repo, Logger: logger}
}

type CreateTemplateInput struct {
	Name        string
	Description string
	Subject     string
	Body        string
	IsHTML      *bool
	Category    string
}

// UpdateTemplateInput leaves a field unchanged when it is nil or, for
// name/subject/body/category, empty.
type UpdateTemplateInput struct {
	Name        string
	Description *string
	Subject     string
	Body        string
	IsHTML      *bool
	Category    string
	IsActive    *bool
}

func (s *TemplateService) Create(ctx context.Context, userID string, in CreateTemplateInput) (*entity.Template, error) {
	fields := map[string]string{}
	if in.Name == "" {
		fields["name"] = "is required"
	}
	if in.Subject == "" {
		fields["subject"] = "is required"
	}
	if in.Body == "" {
		fields["body"] = "is required"
	}
	if len(fields) > 0 {
		return nil, newValidationError(fields)
	}

	t := &entity.Template{
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		Subject:     in.Subject,
		Body:        in.Body,
		IsHTML:      true,
		Category:    in.Category,
		IsActive:    true,
	}
	if in.IsHTML != nil {
		t.IsHTML = *in.IsHTML
	}
	t.RefreshVariables()

	if err := s.Repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TemplateService) Get(ctx context.Context, userID, id string) (*entity.Template, error) {
	return s.Repo.GetByID(ctx, userID, id)
}

func (s *TemplateService) List(ctx context.Context, userID string, f entity.TemplateFilter) ([]entity.Template, error) {
	return s.Repo.List(ctx, userID, f)
}

func (s *TemplateService) Update(ctx context.Context, userID, id string, in UpdateTemplateInput) (*entity.Template, error) {
	t, err := s.Repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		t.Name = in.Name
	}
	if in.Subject != "" {
		t.Subject = in.Subject
	}
	if in.Body != "" {
		t.Body = in.Body
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.IsHTML != nil {
		t.IsHTML = *in.IsHTML
	}
	if in.Category != "" {
		t.Category = in.Category
	}
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
	t.RefreshVariables()

	if err := s.Repo.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TemplateService) Delete(ctx context.Context, userID, id string) error {
	return s.Repo.Delete(ctx, userID, id)
}

// Duplicate stores a copy named "<name> (Copy)". The copy starts active.
func (s *TemplateService) Duplicate(ctx context.Context, userID, id string) (*entity.Template, error) {
	src, err := s.Repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	cp := &entity.Template{
		UserID:      src.UserID,
		Name:        src.Name + " (Copy)",
		Description: src.Description,
		Subject:     src.Subject,
		Body:        src.Body,
		IsHTML:      src.IsHTML,
		Category:    src.Category,
		IsActive:    true,
	}
	cp.RefreshVariables()

	if err := s.Repo.Create(ctx, cp); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"user_id": userID, "source_id": id, "template_id": cp.ID}).Info("template duplicated")
	}
	return cp, nil
}
