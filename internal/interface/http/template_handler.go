package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/bulk-mailer/internal/application"
	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/pkg/response"
	"github.com/oksasatya/bulk-mailer/pkg/validation"
)

type TemplateHandler struct {
	Svc    *application.TemplateService
	Logger *logrus.Logger
}

func NewTemplateHandler(svc *application.TemplateService, logger *logrus.Logger) *TemplateHandler {
	return &TemplateHandler{Svc: svc, Logger: logger}
}

type templateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Subject     string  `json:"subject"`
	Body        string  `json:"body"`
	IsHTML      *bool   `json:"is_html"`
	Category    string  `json:"category"`
	IsActive    *bool   `json:"is_active"`
}

func (h *TemplateHandler) List(c *gin.Context) {
	list, err := h.Svc.List(c.Request.Context(), c.GetString("userID"), entity.TemplateFilter{Category: c.Query("category")})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, list, "templates", nil)
}

func (h *TemplateHandler) Get(c *gin.Context) {
	t, err := h.Svc.Get(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, t, "template", nil)
}

func (h *TemplateHandler) Create(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	in := application.CreateTemplateInput{
		Name:     req.Name,
		Subject:  req.Subject,
		Body:     req.Body,
		IsHTML:   req.IsHTML,
		Category: req.Category,
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	t, err := h.Svc.Create(c.Request.Context(), c.GetString("userID"), in)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, t, "template saved", nil)
}

func (h *TemplateHandler) Update(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	t, err := h.Svc.Update(c.Request.Context(), c.GetString("userID"), c.Param("id"), application.UpdateTemplateInput{
		Name:        req.Name,
		Description: req.Description,
		Subject:     req.Subject,
		Body:        req.Body,
		IsHTML:      req.IsHTML,
		Category:    req.Category,
		IsActive:    req.IsActive,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, t, "template updated", nil)
}

func (h *TemplateHandler) Delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"deleted": true}, "template deleted", nil)
}

func (h *TemplateHandler) Duplicate(c *gin.Context) {
	t, err := h.Svc.Duplicate(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, t, "template duplicated", nil)
}
