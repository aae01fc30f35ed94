package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/bulk-mailer/internal/interface/http"
	"github.com/oksasatya/bulk-mailer/internal/interface/middleware"
	"github.com/oksasatya/bulk-mailer/pkg/helpers"
)

// EmailModule wires dispatch, history and analytics routes. All are protected.
type EmailModule struct {
	Email     *handlers.EmailHandler
	Analytics *handlers.AnalyticsHandler
	Redis     *redis.Client
	JWT       *helpers.JWTManager
}

func NewEmailModule(email *handlers.EmailHandler, analytics *handlers.AnalyticsHandler, rdb *redis.Client, jwt *helpers.JWTManager) *EmailModule {
	return &EmailModule{Email: email, Analytics: analytics, Redis: rdb, JWT: jwt}
}

func (m *EmailModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Redis, m.JWT))

	// sends are expensive; reads share a softer per-user budget
	sendLimiter := middleware.RateLimit(m.Redis, 20, time.Minute, middleware.KeyByUserID(), nil)
	readLimiter := middleware.RateLimit(m.Redis, 120, time.Minute, middleware.KeyByUserID(), nil)

	auth.POST("/email/send", sendLimiter, m.Email.Send)
	auth.POST("/email/send/template", sendLimiter, m.Email.SendTemplate)

	auth.GET("/email/history", readLimiter, m.Analytics.History)
	auth.GET("/email/history/search", readLimiter, m.Analytics.SearchHistory)
	auth.GET("/email/analytics", readLimiter, m.Analytics.Analytics)
	auth.GET("/dashboard", readLimiter, m.Analytics.Dashboard)
}
