package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"

	config "github.com/calebms/postbridge/configs"
	"github.com/calebms/postbridge/internal/api/handlers"
	"github.com/calebms/postbridge/internal/api/middleware"
	job "github.com/calebms/postbridge/internal/jobs"
	"github.com/calebms/postbridge/internal/platform"
	"github.com/calebms/postbridge/internal/queue"
	"github.com/calebms/postbridge/internal/repository"
	"github.com/calebms/postbridge/internal/service"
	"github.com/calebms/postbridge/internal/storage"
	"github.com/calebms/postbridge/internal/vault"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	credentialVault, err := vault.New(cfg.VaultKey)
	if err != nil {
		log.Fatalf("Failed to initialize credential vault: %v", err)
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
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
	historyRepo := repository.NewPublishHistoryRepository(db)

	linkingService := service.NewLinkingService(*cfg, socialAccountRepo, credentialVault)
	postService := service.NewPostService(postRepo, historyRepo)
	publishService := service.NewPublishService(postRepo, socialAccountRepo, historyRepo,
		credentialVault, platform.NewInstagram(), platform.NewLinkedIn())

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	publishDueJob := job.NewPublishDueJob(postRepo, publishService)
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, credentialVault)

	platformHandler := handlers.NewPlatformHandler(linkingService)
	app.Get("/auth/:platform/callback", platformHandler.CallbackHandler)

	schedulerHandler := handlers.NewSchedulerHandler(*cfg, publishDueJob)
	app.Get("/jobs/publish-due", schedulerHandler.RunPublishDue)

	authed := app.Group("/")
	authed.Use(authMiddleware.AuthMiddleware())
	authed.Get("/auth/:platform", platformHandler.AddSocialAccount)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService, publishService, client)
	api.Post("/posts/create", post.CreatePost)
	api.Post("/posts/publish", post.PublishPost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/history", post.PostHistory)
	api.Post("/posts/remove", post.RemovePost)

	// social accounts api routes
	api.Get("/accounts", platformHandler.ListSocialAccounts)
	api.Post("/accounts/remove", platformHandler.DisconnectSocialAccount)

	//queue
	queueW := queue.NewQueue(publishService)

	// cron jobs
	c := cron.New()
	c.AddFunc("@every 00h05m00s", publishDueJob.RunOnce)
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeSchedulePost, queueW.HandleSchedulePostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
