package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/bulk-mailer/config"
	"github.com/oksasatya/bulk-mailer/internal/application"
	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/internal/infrastructure/upload"
	"github.com/oksasatya/bulk-mailer/pkg/response"
	"github.com/oksasatya/bulk-mailer/pkg/validation"
)

const attachmentsField = "attachments"

type Dispatcher interface {
	Dispatch(ctx context.Context, req application.DispatchRequest) (*entity.DispatchResult, error)
	DispatchTemplate(ctx context.Context, req application.TemplateDispatchRequest) (*entity.DispatchResult, error)
}

type SenderResolver interface {
	Sender(ctx context.Context, userID string) (entity.Sender, error)
}

type AttachmentStager interface {
	Stage(ctx context.Context, userID string, files []*multipart.FileHeader) (*upload.Staged, error)
}

type EmailHandler struct {
	Dispatch Dispatcher
	Users    SenderResolver
	Stager   AttachmentStager
	Logger   *logrus.Logger
	Cfg      *config.Config
}

func NewEmailHandler(d Dispatcher, users SenderResolver, stager AttachmentStager, logger *logrus.Logger, cfg *config.Config) *EmailHandler {
	return &EmailHandler{Dispatch: d, Users: users, Stager: stager, Logger: logger, Cfg: cfg}
}

// recipientItem accepts either a bare address string or an object with
// personalization data. Objects are rendered per recipient.
type recipientItem struct {
	Email        string
	Name         string
	CustomFields map[string]string
	Structured   bool
}

func (r *recipientItem) UnmarshalJSON(b []byte) error {
	var addr string
	if err := json.Unmarshal(b, &addr); err == nil {
		*r = recipientItem{Email: strings.TrimSpace(addr)}
		return nil
	}
	var obj struct {
		Email        string         `json:"email"`
		Name         string         `json:"name"`
		CustomFields map[string]any `json:"custom_fields"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("recipient must be an address or an object: %w", err)
	}
	*r = recipientItem{
		Email:        strings.TrimSpace(obj.Email),
		Name:         obj.Name,
		CustomFields: stringifyFields(obj.CustomFields),
		Structured:   true,
	}
	return nil
}

func (r recipientItem) ref() entity.RecipientRef {
	return entity.RecipientRef{Email: r.Email, Name: r.Name, CustomFields: r.CustomFields, Structured: r.Structured}
}

func stringifyFields(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch x := v.(type) {
		case nil:
		case string:
			out[k] = x
		default:
			out[k] = fmt.Sprint(x)
		}
	}
	return out
}

func refs(items []recipientItem) []entity.RecipientRef {
	out := make([]entity.RecipientRef, len(items))
	for i, it := range items {
		out[i] = it.ref()
	}
	return out
}

type sendEmailRequest struct {
	Recipients []recipientItem `json:"recipients"`
	Subject    string          `json:"subject"`
	Body       string          `json:"body"`
	IsHTML     bool            `json:"is_html"`
}

type sendTemplateRequest struct {
	TemplateID   string          `json:"template_id"`
	RecipientIDs []string        `json:"recipient_ids"`
	Recipients   []recipientItem `json:"recipients"`
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// formRecipients reads recipients from a multipart field: either one JSON
// array or one address per value.
func formRecipients(values []string) ([]recipientItem, error) {
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var items []recipientItem
		if err := json.Unmarshal([]byte(values[0]), &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	items := make([]recipientItem, 0, len(values))
	for _, v := range values {
		items = append(items, recipientItem{Email: strings.TrimSpace(v)})
	}
	return items, nil
}

func formIDs(values []string) ([]string, error) {
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var ids []string
		if err := json.Unmarshal([]byte(values[0]), &ids); err != nil {
			return nil, err
		}
		return ids, nil
	}
	return values, nil
}

func formBool(form *multipart.Form, key string) bool {
	if v := form.Value[key]; len(v) > 0 {
		b, _ := strconv.ParseBool(v[0])
		return b
	}
	return false
}

func formString(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (h *EmailHandler) parseSend(c *gin.Context) (sendEmailRequest, []*multipart.FileHeader, error) {
	var req sendEmailRequest
	if !isMultipart(c) {
		err := c.ShouldBindJSON(&req)
		return req, nil, err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return req, nil, err
	}
	if req.Recipients, err = formRecipients(form.Value["recipients"]); err != nil {
		return req, nil, err
	}
	req.Subject = formString(form, "subject")
	req.Body = formString(form, "body")
	req.IsHTML = formBool(form, "is_html")
	return req, form.File[attachmentsField], nil
}

func (h *EmailHandler) parseSendTemplate(c *gin.Context) (sendTemplateRequest, []*multipart.FileHeader, error) {
	var req sendTemplateRequest
	if !isMultipart(c) {
		err := c.ShouldBindJSON(&req)
		return req, nil, err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return req, nil, err
	}
	if req.RecipientIDs, err = formIDs(form.Value["recipient_ids"]); err != nil {
		return req, nil, err
	}
	if req.Recipients, err = formRecipients(form.Value["recipients"]); err != nil {
		return req, nil, err
	}
	req.TemplateID = formString(form, "template_id")
	return req, form.File[attachmentsField], nil
}

func (h *EmailHandler) enabled(c *gin.Context) bool {
	if h.Cfg != nil && !h.Cfg.MailSendEnabled {
		response.Error[any](c, http.StatusServiceUnavailable, "email sending disabled", nil)
		return false
	}
	return true
}

// Send delivers one message to each recipient and reports per-recipient outcomes.
func (h *EmailHandler) Send(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	ctx := c.Request.Context()
	sender, err := h.resolveSender(ctx, c.GetString("userID"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	req, files, err := h.parseSend(c)
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	staged, err := h.Stager.Stage(ctx, sender.UserID, files)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}

	res, err := h.Dispatch.Dispatch(ctx, application.DispatchRequest{
		Sender:      sender,
		Recipients:  refs(req.Recipients),
		Subject:     req.Subject,
		Body:        req.Body,
		IsHTML:      req.IsHTML,
		Attachments: staged,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	writeDispatchResult(c, res)
}

// SendTemplate renders a stored template for stored and inline recipients.
func (h *EmailHandler) SendTemplate(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	ctx := c.Request.Context()
	sender, err := h.resolveSender(ctx, c.GetString("userID"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	req, files, err := h.parseSendTemplate(c)
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	staged, err := h.Stager.Stage(ctx, sender.UserID, files)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}

	res, err := h.Dispatch.DispatchTemplate(ctx, application.TemplateDispatchRequest{
		Sender:       sender,
		TemplateID:   req.TemplateID,
		RecipientIDs: req.RecipientIDs,
		Inline:       refs(req.Recipients),
		Attachments:  staged,
	})
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	writeDispatchResult(c, res)
}

func writeDispatchResult(c *gin.Context, res *entity.DispatchResult) {
	switch res.Classification() {
	case entity.AllSuccess:
		response.Success(c, http.StatusOK, res, "all emails sent successfully", nil)
	case entity.Partial:
		response.Result(c, http.StatusMultiStatus, false, res, "some emails failed to send", map[string]any{"stats": res.Stats()})
	default:
		response.Result(c, http.StatusInternalServerError, false, res, "all emails failed to send", nil)
	}
}

// resolveSender reports an unknown sender as invalid input rather than a missing resource.
func (h *EmailHandler) resolveSender(ctx context.Context, userID string) (entity.Sender, error) {
	sender, err := h.Users.Sender(ctx, userID)
	if errors.Is(err, application.ErrUserNotFound) {
		return entity.Sender{}, &application.ValidationError{Fields: map[string]string{"sender": "could not be resolved"}}
	}
	return sender, err
}
