package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"gpodo/cache"
	controller "gpodo/controllers"
	"gpodo/middleware"
	"gpodo/utils"
)

const requestLogFormat = "[${time}] ${status} - ${latency} ${method} ${path}\n"

// Services are the shared collaborators built once in main.
type Services struct {
	Cache              cache.Cache
	CacheTTL           time.Duration
	Hub                *cache.TallyHub
	Mailer             utils.Mailer
	LimiterStorage     fiber.Storage // nil keeps limiter counters in memory
	OTPRateLimit       int
	OTPVerifyRateLimit int           // zero allows twice the send budget
}

func (s *Services) defaults() {
	if s.Cache == nil {
		s.Cache = cache.NoopCache{}
	}
	if s.Hub == nil {
		s.Hub = cache.NewTallyHub(logrus.WithField("component", "tally_hub"))
	}
	if s.Mailer == nil {
		s.Mailer = &utils.LogMailer{Logger: logrus.WithField("component", "mailer")}
	}
	if s.OTPVerifyRateLimit <= 0 {
		s.OTPVerifyRateLimit = 2 * s.OTPRateLimit
	}
}

func SetupRoutes(app *fiber.App, db *gorm.DB, svc Services) {
	svc.defaults()
	SetupAuthRoutes(app, db, svc)
	SetupAPIRoutes(app, db, svc)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Route not found",
		})
	})
}

func SetupAuthRoutes(app *fiber.App, db *gorm.DB, svc Services) {
	authController := controller.NewAuthController(db, svc.Mailer)
	paymentController := controller.NewPaymentController(db)

	auth := app.Group("/auth", logger.New(logger.Config{Format: requestLogFormat}))
	auth.Post("/signup", authController.SignUp)
	auth.Post("/refresh", authController.RefreshToken)

	protectedAuth := auth.Group("", middleware.Protected(db))
	protectedAuth.Post("/signout", authController.SignOut)
	protectedAuth.Get("/me", authController.GetCurrentUser)
	protectedAuth.Put("/me/language", authController.UpdateLanguage)

	otp := app.Group("/otp", logger.New(logger.Config{Format: requestLogFormat}))
	otp.Post("/send", middleware.OTPRateLimiter(svc.OTPRateLimit, svc.LimiterStorage), authController.SendOTP)
	otp.Post("/verify", middleware.OTPVerifyRateLimiter(svc.OTPVerifyRateLimit, svc.LimiterStorage), authController.VerifyOTP)

	// Stripe calls the webhook directly; the signature authenticates it.
	app.Post("/payment/webhook", paymentController.HandlePaymentWebhook)

	logrus.Info("Authentication routes initialized")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB, svc Services) {
	groupController := controller.NewGroupController(db, svc.Cache, svc.CacheTTL)
	votingController := controller.NewVotingController(db, svc.Cache, svc.CacheTTL, svc.Hub)
	marketplaceController := controller.NewMarketplaceController(db)
	paymentController := controller.NewPaymentController(db)
	arbitrationController := controller.NewArbitrationController(db, svc.Cache, svc.CacheTTL)

	// Browsers cannot set headers on websocket handshakes, so the stream
	// authenticates through the access_token cookie.
	app.Get("/ws/voting-sessions/:id",
		middleware.Protected(db),
		votingController.UpgradeTallyStream,
		websocket.New(votingController.StreamTally),
	)

	api := app.Group("/api/v1", middleware.Protected(db), logger.New(logger.Config{Format: requestLogFormat}))

	groups := api.Group("/groups")
	groups.Post("/", groupController.CreateGroup)
	groups.Get("/", groupController.ListGroups)
	groups.Get("/:id", groupController.GetGroup)
	groups.Get("/:id/context", groupController.GetPhaseContext)
	groups.Get("/:id/pipeline", groupController.GetPipeline)
	groups.Post("/:id/join", groupController.JoinGroup)
	groups.Post("/:id/leave", groupController.LeaveGroup)
	groups.Post("/:id/advance", groupController.AdvancePhase)
	groups.Get("/:id/members", groupController.ListMembers)
	groups.Put("/:id/members/:userId/role", groupController.UpdateMemberRole)
	groups.Post("/:id/invites", groupController.CreateInvite)

	groups.Post("/:id/voting-sessions", votingController.CreateSession)
	groups.Get("/:id/voting-sessions", votingController.ListSessions)

	groups.Post("/:id/arbitration", arbitrationController.FileCase)
	groups.Get("/:id/arbitration", arbitrationController.ListCases)
	groups.Get("/:id/arbitration/:caseId", arbitrationController.GetCase)
	groups.Post("/:id/arbitration/:caseId/assign", arbitrationController.AssignCase)
	groups.Put("/:id/arbitration/:caseId/status", arbitrationController.UpdateCaseStatus)

	api.Get("/invites", groupController.ListMyInvites)

	sessions := api.Group("/voting-sessions")
	sessions.Get("/:id", votingController.GetSession)
	sessions.Post("/:id/votes", votingController.CastVote)
	sessions.Post("/:id/close", votingController.CloseSession)

	services := api.Group("/services")
	services.Post("/", marketplaceController.CreateService)
	services.Get("/", marketplaceController.ListServices)
	services.Get("/:id", marketplaceController.GetService)

	api.Post("/rpc/purchase_service", marketplaceController.PurchaseService)
	api.Get("/purchases", marketplaceController.ListPurchases)
	api.Get("/points", marketplaceController.PointsHistory)

	payment := api.Group("/payment")
	payment.Get("/packages", paymentController.ListPackages)
	payment.Post("/create-intent", paymentController.CreatePaymentIntent)
	payment.Get("/transactions", paymentController.ListTransactions)

	logrus.Info("API routes initialized")
}
