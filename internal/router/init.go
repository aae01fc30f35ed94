package router

import (
	"github.com/oksasatya/bulk-mailer/internal/application"
	"github.com/oksasatya/bulk-mailer/internal/container"
	pginfra "github.com/oksasatya/bulk-mailer/internal/infrastructure/postgres"
	"github.com/oksasatya/bulk-mailer/internal/infrastructure/search"
	"github.com/oksasatya/bulk-mailer/internal/infrastructure/upload"
	handlers "github.com/oksasatya/bulk-mailer/internal/interface/http"
	"github.com/oksasatya/bulk-mailer/internal/router/modules"
	"github.com/oksasatya/bulk-mailer/pkg/helpers"
)

type repositories struct {
	users      *pginfra.UserRepository
	templates  *pginfra.TemplateRepository
	recipients *pginfra.RecipientRepository
	logs       *pginfra.DeliveryLogRepository
}

type services struct {
	users      *application.UserService
	templates  *application.TemplateService
	recipients *application.RecipientService
	analytics  *application.AnalyticsService
	dispatch   *application.DispatchService
}

func buildRepositories() repositories {
	pool := container.GetPGPool()
	return repositories{
		users:      pginfra.NewUserRepository(pool),
		templates:  pginfra.NewTemplateRepository(pool),
		recipients: pginfra.NewRecipientRepository(pool),
		logs:       pginfra.NewDeliveryLogRepository(pool),
	}
}

func buildServices(repos repositories) services {
	cfg := container.GetConfig()
	logger := container.GetLogger()

	var searcher application.HistorySearcher
	if es := container.GetES(); es != nil {
		searcher = search.NewDeliveryIndex(es, cfg.ESDeliveryIndex)
	}
	analytics := application.NewAnalyticsService(
		repos.logs,
		repos.templates,
		repos.recipients,
		container.GetRedis(),
		searcher,
		cfg.AnalyticsCacheTTL,
		cfg.HistoryDefaultLimit,
		logger,
	)

	var publisher application.EventPublisher
	if pub := container.GetRabbitPub(); pub != nil {
		publisher = pub
	}
	writer := application.NewDeliveryLogWriter(repos.logs, publisher, logger)

	return services{
		users:      application.NewUserService(repos.users, container.GetJWT(), container.GetRedis(), logger),
		templates:  application.NewTemplateService(repos.templates, logger),
		recipients: application.NewRecipientService(repos.recipients, repos.logs, logger),
		analytics:  analytics,
		dispatch: application.NewDispatchService(
			container.GetTransport(),
			writer,
			repos.recipients,
			repos.templates,
			analytics,
			logger,
			cfg.DispatchConcurrency,
			cfg.DispatchAttemptTimeout,
		),
	}
}

func buildStager() *upload.Stager {
	cfg := container.GetConfig()
	var archiver upload.Archiver
	if gcs := container.GetGCS(); gcs != nil && cfg.GCSBucket != "" {
		archiver = helpers.NewGCSArchiver(gcs, cfg.GCSBucket)
	}
	return upload.NewStager(
		cfg.UploadDir,
		cfg.UploadMaxFiles,
		cfg.UploadMaxFileSize,
		cfg.AllowedExtensions(),
		archiver,
		container.GetLogger(),
	)
}

// InitModules builds every feature module from the container and adds it to
// the registry. Call once at startup, after the container is populated.
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	rdb := container.GetRedis()
	jwt := container.GetJWT()

	svc := buildServices(buildRepositories())

	r.Add(modules.NewUserModule(
		handlers.NewUserHandler(svc.users, logger, cfg.CookieDomain, cfg.CookieSecure),
		rdb, jwt,
	))
	r.Add(modules.NewEmailModule(
		handlers.NewEmailHandler(svc.dispatch, svc.users, buildStager(), logger, cfg),
		handlers.NewAnalyticsHandler(svc.analytics, logger),
		rdb, jwt,
	))
	r.Add(modules.NewTemplateModule(handlers.NewTemplateHandler(svc.templates, logger), rdb, jwt))
	r.Add(modules.NewRecipientModule(handlers.NewRecipientHandler(svc.recipients, logger), rdb, jwt))
	if cfg.MetricsEnabled {
		r.Add(modules.NewMetricsModule(rdb))
	}
}
