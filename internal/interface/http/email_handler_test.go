package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/bulk-mailer/config"
	"github.com/oksasatya/bulk-mailer/internal/application"
	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/internal/domain/repository"
	"github.com/oksasatya/bulk-mailer/internal/infrastructure/upload"
)

type stubDispatcher struct {
	got         application.DispatchRequest
	gotTemplate application.TemplateDispatchRequest
	attachments int
	result      *entity.DispatchResult
	err         error
}

func (s *stubDispatcher) Dispatch(_ context.Context, req application.DispatchRequest) (*entity.DispatchResult, error) {
	defer req.Attachments.Release()
	s.got = req
	s.attachments = req.Attachments.Len()
	return s.result, s.err
}

func (s *stubDispatcher) DispatchTemplate(_ context.Context, req application.TemplateDispatchRequest) (*entity.DispatchResult, error) {
	defer req.Attachments.Release()
	s.gotTemplate = req
	s.attachments = req.Attachments.Len()
	return s.result, s.err
}

type stubUsers struct{}

func (stubUsers) Sender(_ context.Context, userID string) (entity.Sender, error) {
	if userID != "u1" {
		return entity.Sender{}, application.ErrUserNotFound
	}
	return entity.Sender{UserID: "u1", Email: "me@example.com"}, nil
}

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Error   json.RawMessage `json:"error"`
}

func newEmailRouter(t *testing.T, d *stubDispatcher, enabled bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	stager := upload.NewStager(t.TempDir(), 2, 64, []string{"pdf", "txt"}, nil, nil)
	h := NewEmailHandler(d, stubUsers{}, stager, nil, &config.Config{MailSendEnabled: enabled})
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userID", "u1"); c.Next() })
	r.POST("/email/send", h.Send)
	r.POST("/email/send/template", h.SendTemplate)
	return r
}

func doJSON(r http.Handler, path string, body any) (*httptest.ResponseRecorder, envelope) {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

type part struct {
	field, filename, content string
}

func doMultipart(t *testing.T, r http.Handler, path string, parts []part) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.filename != "" {
			fw, err := mw.CreateFormFile(p.field, p.filename)
			require.NoError(t, err)
			_, _ = fw.Write([]byte(p.content))
			continue
		}
		require.NoError(t, mw.WriteField(p.field, p.content))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

var (
	okOutcome  = entity.Outcome{Email: "a@x.com", Status: entity.OutcomeSuccess}
	badOutcome = entity.Outcome{Email: "b@x.com", Status: entity.OutcomeFailed, Error: "rejected"}
)

func TestSend_StatusByClassification(t *testing.T) {
	cases := []struct {
		name    string
		results []entity.Outcome
		status  int
		success bool
	}{
		{"all success", []entity.Outcome{okOutcome, okOutcome}, http.StatusOK, true},
		{"partial", []entity.Outcome{okOutcome, badOutcome}, http.StatusMultiStatus, false},
		{"all failure", []entity.Outcome{badOutcome}, http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := &stubDispatcher{result: &entity.DispatchResult{Results: tc.results}}
			w, env := doJSON(newEmailRouter(t, d, true), "/email/send", map[string]any{
				"recipients": []string{"a@x.com", "b@x.com"},
				"subject":    "s",
				"body":       "b",
			})
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.success, env.Success)

			var data struct {
				Results []entity.Outcome `json:"results"`
			}
			require.NoError(t, json.Unmarshal(env.Data, &data))
			assert.Len(t, data.Results, len(tc.results))
		})
	}
}

func TestSend_PartialIncludesStats(t *testing.T) {
	d := &stubDispatcher{result: &entity.DispatchResult{Results: []entity.Outcome{okOutcome, badOutcome, okOutcome}}}
	_, env := doJSON(newEmailRouter(t, d, true), "/email/send", map[string]any{
		"recipients": []string{"a@x.com"}, "subject": "s", "body": "b",
	})
	var meta struct {
		Stats entity.DispatchStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(env.Meta, &meta))
	assert.Equal(t, entity.DispatchStats{Total: 3, Sent: 2, Failed: 1}, meta.Stats)
}

func TestSend_MixedRecipientShapes(t *testing.T) {
	d := &stubDispatcher{result: &entity.DispatchResult{Results: []entity.Outcome{okOutcome}}}
	w, _ := doJSON(newEmailRouter(t, d, true), "/email/send", map[string]any{
		"recipients": []any{
			"a@x.com",
			map[string]any{"email": "b@x.com", "name": "Bee", "custom_fields": map[string]any{"company": "Acme", "seats": 3}},
		},
		"subject": "Hi {{name}}",
		"body":    "b",
		"is_html": true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, d.got.Recipients, 2)
	assert.False(t, d.got.Recipients[0].Structured)
	assert.True(t, d.got.Recipients[1].Structured)
	assert.Equal(t, map[string]string{"company": "Acme", "seats": "3"}, d.got.Recipients[1].CustomFields)
	assert.True(t, d.got.IsHTML)
	assert.Equal(t, "me@example.com", d.got.Sender.Email)
}

func TestSend_ValidationErrorIs400(t *testing.T) {
	d := &stubDispatcher{err: &application.ValidationError{Fields: map[string]string{"subject": "is required"}}}
	w, env := doJSON(newEmailRouter(t, d, true), "/email/send", map[string]any{"recipients": []string{"a@x.com"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var fields map[string]string
	require.NoError(t, json.Unmarshal(env.Error, &fields))
	assert.Equal(t, "is required", fields["subject"])
}

func TestSend_UnknownSenderIs400(t *testing.T) {
	gin.SetMode(gin.TestMode)
	d := &stubDispatcher{}
	h := NewEmailHandler(d, stubUsers{}, upload.NewStager(t.TempDir(), 2, 64, []string{"txt"}, nil, nil), nil, &config.Config{MailSendEnabled: true})
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userID", "ghost"); c.Next() })
	r.POST("/email/send", h.Send)
	r.POST("/email/send/template", h.SendTemplate)

	for _, path := range []string{"/email/send", "/email/send/template"} {
		w, env := doJSON(r, path, map[string]any{"recipients": []string{"a@x.com"}, "subject": "s", "body": "b", "template_id": "t1"})
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		var fields map[string]string
		require.NoError(t, json.Unmarshal(env.Error, &fields))
		assert.Equal(t, "could not be resolved", fields["sender"])
	}
	assert.Nil(t, d.got.Recipients)
}

func TestSend_BadRecipientShapeIs400(t *testing.T) {
	d := &stubDispatcher{}
	w, _ := doJSON(newEmailRouter(t, d, true), "/email/send", map[string]any{"recipients": []any{42}, "subject": "s", "body": "b"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, d.got.Recipients)
}

func TestSend_DisabledIs503(t *testing.T) {
	d := &stubDispatcher{}
	w, _ := doJSON(newEmailRouter(t, d, false), "/email/send", map[string]any{"recipients": []string{"a@x.com"}, "subject": "s", "body": "b"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSend_MultipartWithAttachment(t *testing.T) {
	d := &stubDispatcher{result: &entity.DispatchResult{Results: []entity.Outcome{okOutcome}}}
	w, _ := doMultipart(t, newEmailRouter(t, d, true), "/email/send", []part{
		{field: "recipients", content: `["a@x.com", {"email": "b@x.com", "name": "Bee"}]`},
		{field: "subject", content: "s"},
		{field: "body", content: "b"},
		{field: "is_html", content: "true"},
		{field: "attachments", filename: "cv.pdf", content: "tiny"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, d.attachments)
	require.Len(t, d.got.Recipients, 2)
	assert.Equal(t, "Bee", d.got.Recipients[1].Name)
	assert.True(t, d.got.IsHTML)
}

func TestSend_MultipartRepeatedRecipients(t *testing.T) {
	d := &stubDispatcher{result: &entity.DispatchResult{Results: []entity.Outcome{okOutcome}}}
	w, _ := doMultipart(t, newEmailRouter(t, d, true), "/email/send", []part{
		{field: "recipients", content: "a@x.com"},
		{field: "recipients", content: "b@x.com"},
		{field: "subject", content: "s"},
		{field: "body", content: "b"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, d.got.Recipients, 2)
	assert.Equal(t, "b@x.com", d.got.Recipients[1].Email)
	assert.False(t, d.got.Recipients[1].Structured)
}

func TestSend_UploadConstraints(t *testing.T) {
	base := []part{
		{field: "recipients", content: "a@x.com"},
		{field: "subject", content: "s"},
		{field: "body", content: "b"},
	}
	cases := []struct {
		name   string
		files  []part
		status int
	}{
		{"too large", []part{{field: "attachments", filename: "big.pdf", content: string(make([]byte, 100))}}, http.StatusRequestEntityTooLarge},
		{"bad type", []part{{field: "attachments", filename: "run.exe", content: "x"}}, http.StatusBadRequest},
		{"too many", []part{
			{field: "attachments", filename: "1.txt", content: "x"},
			{field: "attachments", filename: "2.txt", content: "x"},
			{field: "attachments", filename: "3.txt", content: "x"},
		}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := &stubDispatcher{}
			parts := append(append([]part{}, base...), tc.files...)
			w, _ := doMultipart(t, newEmailRouter(t, d, true), "/email/send", parts)
			assert.Equal(t, tc.status, w.Code)
			assert.Nil(t, d.got.Recipients, "no dispatch after a rejected upload")
		})
	}
}

func TestSendTemplate_JSON(t *testing.T) {
	d := &stubDispatcher{result: &entity.DispatchResult{Results: []entity.Outcome{okOutcome}}}
	w, _ := doJSON(newEmailRouter(t, d, true), "/email/send/template", map[string]any{
		"template_id":   "t1",
		"recipient_ids": []string{"r1", "r2"},
		"recipients":    []any{map[string]any{"email": "i@x.com"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", d.gotTemplate.TemplateID)
	assert.Equal(t, []string{"r1", "r2"}, d.gotTemplate.RecipientIDs)
	require.Len(t, d.gotTemplate.Inline, 1)
}

func TestSendTemplate_MultipartIDs(t *testing.T) {
	d := &stubDispatcher{result: &entity.DispatchResult{Results: []entity.Outcome{okOutcome}}}
	w, _ := doMultipart(t, newEmailRouter(t, d, true), "/email/send/template", []part{
		{field: "template_id", content: "t1"},
		{field: "recipient_ids", content: `["r1","r2"]`},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"r1", "r2"}, d.gotTemplate.RecipientIDs)
}

func TestSendTemplate_NotFound(t *testing.T) {
	d := &stubDispatcher{err: errors.Join(errors.New("load template"), repository.ErrNotFound)}
	w, _ := doJSON(newEmailRouter(t, d, true), "/email/send/template", map[string]any{"template_id": "x", "recipient_ids": []string{"r"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
