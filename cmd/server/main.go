package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/crosspostr/crosspostr/configs"
	"github.com/crosspostr/crosspostr/internal/api/handlers"
	"github.com/crosspostr/crosspostr/internal/api/middleware"
	job "github.com/crosspostr/crosspostr/internal/jobs"
	"github.com/crosspostr/crosspostr/internal/platforms"
	"github.com/crosspostr/crosspostr/internal/publisher"
	"github.com/crosspostr/crosspostr/internal/repository"
	"github.com/crosspostr/crosspostr/internal/scheduler"
	"github.com/crosspostr/crosspostr/internal/service"
	"github.com/crosspostr/crosspostr/internal/vault"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	credentialVault, err := vault.New(cfg.SecretKey)
	if err != nil {
		log.Fatalf("Failed to initialize credential vault: %v", err)
	}

	registry := platforms.NewRegistry(*cfg)

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	selectedAccountRepo := repository.NewSelectedAccountRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)
	postMediaRepo := repository.NewPostMediaRepository(db)
	publishResultRepo := repository.NewPublishResultRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	r2Service, err := service.NewR2Service(*cfg)
	if err != nil {
		log.Fatalf("Failed to initialize media storage: %v", err)
	}
	postService := service.NewPostService(db, postRepo, selectedAccountRepo, socialAccountRepo, mediaAssetRepo, postMediaRepo, r2Service)
	platformService := service.NewPlatformService(socialAccountRepo, credentialVault, registry)
	activityService := service.NewActivityService(publishResultRepo, analyticsRepo, postRepo)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	platform := handlers.NewPlatformHandler(platformService, *cfg)
	app.Get("/auth/:platform", platform.AddSocialAccount)
	app.Get("/auth/:platform/callback", platform.CallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService)
	api.Post("/posts/create", post.CreatePost)
	api.Post("/posts/cancel", post.CancelPost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/calendar", post.Calendar)

	// social accounts api routes
	api.Get("/accounts", platform.ListSocialAccounts)
	api.Post("/accounts/connect/:platform", platform.ConnectAccount)
	api.Post("/accounts/remove", platform.DeleteSocialAccount)

	activity := handlers.NewActivityHandler(activityService)
	api.Get("/activity", activity.Feed)
	api.Get("/analytics", activity.Analytics)

	// publishing engine
	recorder := publisher.NewRecorder(publishResultRepo, analyticsRepo)
	orchestrator := publisher.NewOrchestrator(postRepo, selectedAccountRepo, socialAccountRepo, mediaAssetRepo, credentialVault, registry, recorder)
	poller := scheduler.NewPoller(postRepo, orchestrator, cfg.PollBatchSize)

	refreshJob := job.NewCredentialRefreshJob(socialAccountRepo, credentialVault, registry)

	c := cron.New()
	if err := poller.Start(c, cfg.PollInterval); err != nil {
		log.Fatalf("Failed to start poller: %v", err)
	}
	c.AddFunc("@every 00h10m00s", refreshJob.RefreshCredentials)
	c.Start()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db, c)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB, c *cron.Cron) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	c.Stop()

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
