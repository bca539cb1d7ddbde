package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/ScriptHub/app/controllers"
	"github.com/ManuelReschke/ScriptHub/app/repository"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/account"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/billing"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/cache"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/catalog"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/database"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/entitlements"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/env"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/jobqueue"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/license"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/mail"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/middleware"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/router"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/security"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/statistics"
	"github.com/ManuelReschke/ScriptHub/internal/pkg/storage"
)

// bodyLimit leaves room for a 50 MB script plus a cover image.
const bodyLimit = 120 * 1024 * 1024

func main() {
	app, manager := NewApplication()

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "5000"))
		if err := app.Listen(addr); err != nil {
			log.Fatalf("[Server] Listen failed: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("[Server] Shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Errorf("[Server] Shutdown error: %v", err)
	}
	manager.Stop()
	if err := database.Close(); err != nil {
		log.Errorf("[Database] Close error: %v", err)
	}
	if err := cache.Close(); err != nil {
		log.Errorf("[Cache] Close error: %v", err)
	}
	log.Info("[Server] Bye")
}

func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	basePath := findBasePath()
	db := database.GetDB()
	rdb := cache.GetClient()
	repos := repository.NewFactory(db).GetRepositories()

	tokens, err := security.NewTokenIssuer(env.GetEnv("JWT_SECRET", ""))
	if err != nil {
		log.Fatalf("[Server] %v", err)
	}

	store, err := storage.NewFromEnv(context.Background())
	if err != nil {
		log.Fatalf("[Storage] %v", err)
	}

	queue := jobqueue.NewQueue(rdb, env.GetEnvInt("JOBQUEUE_WORKERS", jobqueue.DefaultWorkers))
	queue.Register(jobqueue.JobTypeSendEmail, jobqueue.NewSendEmailHandler(mail.NewSenderFromEnv()))

	var notifier mail.Notifier = mail.NewDirectNotifier(mail.NewSenderFromEnv())
	if env.GetEnvBool("MAIL_ASYNC", true) {
		notifier = mail.NewQueueNotifier(queue)
	}

	verifications := counter.New(rdb, db)
	manager := jobqueue.NewManager(queue, verifications, jobqueue.DefaultCounterFlushInterval)
	manager.Start()

	billingSvc := billing.NewServiceFromDB(db, billing.NewStripeClientFromEnv(), billing.NewRedisKeyReveal(rdb), billing.ConfigFromEnv())

	handlers := router.Handlers{
		Auth:     middleware.NewAuthenticator(tokens, repos.User),
		Account:  controllers.NewAuthController(account.NewService(repos.User, tokens, notifier)),
		Payment:  controllers.NewPaymentController(billingSvc),
		License:  controllers.NewLicenseController(license.NewService(db, verifications)),
		Plan:     controllers.NewPlanController(catalog.NewService(repos.Plan)),
		Script:   controllers.NewScriptController(repos.Script, store, entitlements.NewChecker(repos.License, repos.Subscription)),
		AdminUsr: controllers.NewAdminUserController(repos.User, statistics.NewService(repos, rdb)),
	}

	ops := router.OpsConfig{
		MetricsUser:     env.GetEnv("METRICS_USER", ""),
		MetricsPassword: env.GetEnv("METRICS_PASSWORD", ""),
	}
	if local, ok := store.(*storage.LocalStore); ok {
		ops.UploadDir = local.Root()
	}
	if doc := basePath + "public/docs/v1/openapi.yml"; fileExists(doc) {
		ops.OpenAPIFile = doc
	}

	app := fiber.New(fiber.Config{
		AppName:   "ScriptHub",
		BodyLimit: bodyLimit,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: env.GetEnv("FRONTEND_URL", "http://localhost:5173"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	router.InstallRouter(app, handlers, ops)

	return app, manager
}

// findBasePath locates the project root from the usual working directories.
func findBasePath() string {
	for _, path := range []string{"./", "../../", "../../../"} {
		if fileExists(path + "migrations") {
			return path
		}
	}
	return "./"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
