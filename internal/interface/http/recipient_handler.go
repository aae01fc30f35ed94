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

type RecipientHandler struct {
	Svc    *application.RecipientService
	Logger *logrus.Logger
}

func NewRecipientHandler(svc *application.RecipientService, logger *logrus.Logger) *RecipientHandler {
	return &RecipientHandler{Svc: svc, Logger: logger}
}

type recipientRequest struct {
	Email        string            `json:"email" binding:"required,email"`
	Name         string            `json:"name"`
	CustomFields map[string]string `json:"custom_fields"`
	Tags         []string          `json:"tags"`
	Notes        string            `json:"notes"`
}

func (r recipientRequest) input() application.RecipientInput {
	return application.RecipientInput{
		Email:        r.Email,
		Name:         r.Name,
		CustomFields: r.CustomFields,
		Tags:         r.Tags,
		Notes:        r.Notes,
	}
}

// updateRecipientRequest uses pointers so absent fields are left alone and a
// null custom field value removes the key.
type updateRecipientRequest struct {
	Email        string             `json:"email" binding:"omitempty,email"`
	Name         *string            `json:"name"`
	CustomFields map[string]*string `json:"custom_fields"`
	Tags         []string           `json:"tags"`
	Notes        *string            `json:"notes"`
	Status       string             `json:"status" binding:"omitempty,recipientstatus"`
}

type importRequest struct {
	Recipients []recipientRequest `json:"recipients" binding:"required,min=1"`
}

func (h *RecipientHandler) List(c *gin.Context) {
	page, err := h.Svc.List(c.Request.Context(), c.GetString("userID"), entity.RecipientFilter{
		Tag:    c.Query("tag"),
		Status: entity.RecipientStatus(c.Query("status")),
		Search: c.Query("search"),
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, page, "recipients", nil)
}

func (h *RecipientHandler) Get(c *gin.Context) {
	d, err := h.Svc.Get(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, d, "recipient", nil)
}

func (h *RecipientHandler) Create(c *gin.Context) {
	var req recipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	r, err := h.Svc.Create(c.Request.Context(), c.GetString("userID"), req.input())
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusCreated, r, "recipient created", nil)
}

func (h *RecipientHandler) Upsert(c *gin.Context) {
	var req recipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	r, created, err := h.Svc.Upsert(c.Request.Context(), c.GetString("userID"), req.input())
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	if created {
		response.Success(c, http.StatusCreated, r, "recipient created", nil)
		return
	}
	response.Success(c, http.StatusOK, r, "recipient updated", nil)
}

func (h *RecipientHandler) Update(c *gin.Context) {
	var req updateRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	r, err := h.Svc.Update(c.Request.Context(), c.GetString("userID"), c.Param("id"), application.UpdateRecipientInput{
		Email:        req.Email,
		Name:         req.Name,
		CustomFields: req.CustomFields,
		Tags:         req.Tags,
		Notes:        req.Notes,
		Status:       entity.RecipientStatus(req.Status),
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, r, "recipient updated", nil)
}

func (h *RecipientHandler) Delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"deleted": true}, "recipient deleted", nil)
}

func (h *RecipientHandler) Import(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	in := make([]application.RecipientInput, len(req.Recipients))
	for i, r := range req.Recipients {
		in[i] = r.input()
	}
	res, err := h.Svc.Import(c.Request.Context(), c.GetString("userID"), in)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, res, "recipients imported", nil)
}
