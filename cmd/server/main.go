package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mentorly-backend/internal/config"
	"mentorly-backend/internal/database"
	"mentorly-backend/internal/handlers"
	"mentorly-backend/internal/meeting"
	"mentorly-backend/internal/middleware"
	"mentorly-backend/internal/notify"
	"mentorly-backend/internal/repository"
	"mentorly-backend/internal/router"
	"mentorly-backend/internal/services"
	"mentorly-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting Mentorly Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	slotRepo := repository.NewSlotRepo(pool)
	tokenRepo := repository.NewTokenRepo(pool)
	earningsRepo := repository.NewEarningsRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	emailService := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.FrontendURL)
	authService := services.NewAuthService(userRepo, redisClients.Sessions, jwtAuth)
	eventQueue := notify.NewQueue(redisClients.Queue)

	walletService := services.NewWalletService(pool, tokenRepo)
	bookingService := services.NewBookingService(pool, slotRepo, tokenRepo, eventQueue)
	cancellationService := services.NewCancellationService(pool, slotRepo, tokenRepo, eventQueue)
	earningsService := services.NewEarningsService(pool, slotRepo, tokenRepo, earningsRepo, eventQueue)
	withdrawalService := services.NewWithdrawalService(pool, earningsRepo, eventQueue)

	// ──── Initialize Handlers ────
	accountHandler := handlers.NewAccountHandler(authService)
	slotHandler := handlers.NewSlotHandler(bookingService)
	cancellationHandler := handlers.NewCancellationHandler(cancellationService)
	walletHandler := handlers.NewWalletHandler(walletService)
	earningsHandler := handlers.NewEarningsHandler(earningsService)
	withdrawalHandler := handlers.NewWithdrawalHandler(withdrawalService)

	// ──── Step 5: Start Notification Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, emailService, userRepo, slotRepo, cfg.WorkerCount)
	workerPool.Start()

	// ──── Step 6: Start Meeting Hub ────
	meetingStore := meeting.NewMemoryStore()
	coordinator := meeting.NewCoordinator(meetingStore, earningsService)
	meetingHub := meeting.NewHub(coordinator, jwtAuth)
	meetingHandler := handlers.NewMeetingHandler(coordinator)
	log.Println("✓ Meeting hub started")

	// ──── Step 7: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		accountHandler,
		slotHandler,
		cancellationHandler,
		walletHandler,
		earningsHandler,
		withdrawalHandler,
		meetingHandler,
		meetingHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ Mentorly Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
