package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/bulk-mailer/internal/application"
	"github.com/oksasatya/bulk-mailer/internal/domain/entity"
	"github.com/oksasatya/bulk-mailer/pkg/response"
)

const dateOnly = "2006-01-02"

type AnalyticsHandler struct {
	Svc    *application.AnalyticsService
	Logger *logrus.Logger
}

func NewAnalyticsHandler(svc *application.AnalyticsService, logger *logrus.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{Svc: svc, Logger: logger}
}

// parseBound accepts RFC3339 or YYYY-MM-DD. A date-only upper bound covers
// the whole day.
func parseBound(v string, upper bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateOnly, v)
	if err != nil {
		return time.Time{}, err
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func parseDateRange(c *gin.Context) (entity.DateRange, map[string]string) {
	var r entity.DateRange
	fields := map[string]string{}
	var err error
	if r.From, err = parseBound(c.Query("start_date"), false); err != nil {
		fields["start_date"] = "must be RFC3339 or YYYY-MM-DD"
	}
	if r.To, err = parseBound(c.Query("end_date"), true); err != nil {
		fields["end_date"] = "must be RFC3339 or YYYY-MM-DD"
	}
	if len(fields) == 0 && !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		fields["end_date"] = "must not be before start_date"
	}
	if len(fields) > 0 {
		return r, fields
	}
	return r, nil
}

func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}

func (h *AnalyticsHandler) History(c *gin.Context) {
	logs, err := h.Svc.History(c.Request.Context(), c.GetString("userID"), queryInt(c, "limit"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, logs, "email history", nil)
}

func (h *AnalyticsHandler) SearchHistory(c *gin.Context) {
	events, err := h.Svc.SearchHistory(c.Request.Context(), c.GetString("userID"), c.Query("q"), queryInt(c, "size"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, events, "search results", nil)
}

func (h *AnalyticsHandler) Analytics(c *gin.Context) {
	r, invalid := parseDateRange(c)
	if invalid != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid date range", invalid)
		return
	}
	a, err := h.Svc.Aggregate(c.Request.Context(), c.GetString("userID"), r)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, a, "email analytics", nil)
}

func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	d, err := h.Svc.Dashboard(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	response.Success(c, http.StatusOK, d, "dashboard", nil)
}
