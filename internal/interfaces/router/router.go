package router

import (
	ingestsvc "loanchain-backend/internal/application/ingestion"
	instsvc "loanchain-backend/internal/application/institutions"
	loansvc "loanchain-backend/internal/application/loans"
	"loanchain-backend/internal/config"
	"loanchain-backend/internal/infrastructure/cache"
	"loanchain-backend/internal/infrastructure/chain"
	"loanchain-backend/internal/infrastructure/database"
	insthandler "loanchain-backend/internal/interfaces/handlers/institutions"
	loanhandler "loanchain-backend/internal/interfaces/handlers/loans"
	"loanchain-backend/internal/middleware"
	"loanchain-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with all global middleware and route
// registration. The chain client is passed in because dialing the provider is
// a startup precondition owned by main.
func CreateApp(cfg *config.Config, chainClient chain.Client) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler,
	})

	app.Use(middleware.CORS())
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		var err error
		rdb, err = cache.Open(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return response.Message(c, "Backend API is running!")
	})

	if db != nil {
		institutionService := &instsvc.Service{DB: db, Rdb: rdb}
		ingestionService := &ingestsvc.Service{DB: db, Chain: chainClient, Rdb: rdb}
		institutionHandlers := &insthandler.Handlers{Service: institutionService, Ingestion: ingestionService}
		instGroup := app.Group("/api/institutions")
		instGroup.Post("/", institutionHandlers.CreateInstitution)
		instGroup.Get("/", institutionHandlers.GetInstitutions)
		instGroup.Post("/:institutionId/upload", institutionHandlers.UploadLoanCSV)
		instGroup.Get("/:institutionId/loans", institutionHandlers.GetInstitutionLoans)
		instGroup.Get("/dashboard/:institutionId", institutionHandlers.GetDashboard)

		loanService := &loansvc.Service{DB: db, Chain: chainClient, Rdb: rdb}
		loanHandlers := &loanhandler.Handlers{Service: loanService}
		loanGroup := app.Group("/api/loans")
		loanGroup.Patch("/:loanId/invest", loanHandlers.InvestInLoan)
		loanGroup.Post("/update-statuses", loanHandlers.UpdateStatuses)
		loanGroup.Post("/reconcile", loanHandlers.Reconcile)
	}

	return app, db, rdb, nil
}
