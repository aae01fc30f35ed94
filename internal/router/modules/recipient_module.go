package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/bulk-mailer/internal/interface/http"
	"github.com/oksasatya/bulk-mailer/internal/interface/middleware"
	"github.com/oksasatya/bulk-mailer/pkg/helpers"
)

type RecipientModule struct {
	Handler *handlers.RecipientHandler
	Redis   *redis.Client
	JWT     *helpers.JWTManager
}

func NewRecipientModule(h *handlers.RecipientHandler, rdb *redis.Client, jwt *helpers.JWTManager) *RecipientModule {
	return &RecipientModule{Handler: h, Redis: rdb, JWT: jwt}
}

func (m *RecipientModule) Register(rg *gin.RouterGroup) {
	g := rg.Group("/recipients")
	g.Use(
		middleware.Auth(m.Redis, m.JWT),
		middleware.RateLimit(m.Redis, 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		g.GET("", m.Handler.List)
		g.POST("", m.Handler.Create)
		g.POST("/upsert", m.Handler.Upsert)
		g.POST("/import", m.Handler.Import)
		g.GET("/:id", m.Handler.Get)
		g.PUT("/:id", m.Handler.Update)
		g.DELETE("/:id", m.Handler.Delete)
	}
}
