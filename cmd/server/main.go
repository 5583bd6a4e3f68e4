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

	config "threadline/configs"
	"threadline/internal/api/handlers"
	"threadline/internal/api/middleware"
	job "threadline/internal/jobs"
	"threadline/internal/queue"
	"threadline/internal/repository"
	"threadline/internal/service"
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

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	tenantRepo := repository.NewTenantRepository(db)
	postRepo := repository.NewPostRepository(db)
	postMediaRepo := repository.NewPostMediaRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	rateLimitRepo := repository.NewRateLimitRepository(db)

	r2Service := service.NewR2Service(*cfg)
	mediaService := service.NewMediaService(r2Service)
	publisherService := service.NewPublisherService(*cfg, postRepo, postMediaRepo, mediaService)
	rateLimitService := service.NewRateLimitService(cfg.RateLimits, rateLimitRepo)
	lifecycleService := service.NewLifecycleService(postRepo, accountRepo, activityRepo, rateLimitService, publisherService)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postRepo, activityRepo, lifecycleService, client)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/activity", post.ListActivity)
	api.Post("/posts/publish", post.PublishNow)
	api.Post("/posts/remove", post.DeletePost)

	// cron jobs
	dispatchJob := job.NewDispatchJob(cfg.DispatchPage, tenantRepo, postRepo, lifecycleService)
	refreshTokenJob := job.NewTokenRefreshJob(*cfg, accountRepo)

	c := cron.New()
	c.AddFunc("@every 00h01m00s", dispatchJob.Tick)
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()

	// queue
	queueW := queue.NewQueue(lifecycleService)

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishNow, queueW.HandlePublishNowTask)

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
