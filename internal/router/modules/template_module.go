package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/bulk-mailer/internal/interface/http"
	"github.com/oksasatya/bulk-mailer/internal/interface/middleware"
	"github.com/oksasatya/bulk-mailer/pkg/helpers"
)

type TemplateModule struct {
	Handler *handlers.TemplateHandler
	Redis   *redis.Client
	JWT     *helpers.JWTManager
}

func NewTemplateModule(h *handlers.TemplateHandler, rdb *redis.Client, jwt *helpers.JWTManager) *TemplateModule {
	return &TemplateModule{Handler: h, Redis: rdb, JWT: jwt}
}

func (m *TemplateModule) Register(rg *gin.RouterGroup) {
	g := rg.Group("/templates")
	g.Use(
		middleware.Auth(m.Redis, m.JWT),
		middleware.RateLimit(m.Redis, 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		g.GET("", m.Handler.List)
		g.POST("", m.Handler.Create)
		g.GET("/:id", m.Handler.Get)
		g.PUT("/:id", m.Handler.Update)
		g.DELETE("/:id", m.Handler.Delete)
		g.POST("/:id/duplicate", m.Handler.Duplicate)
	}
}
