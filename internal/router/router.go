package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"mentorly-backend/internal/handlers"
	"mentorly-backend/internal/meeting"
	"mentorly-backend/internal/middleware"
	"mentorly-backend/internal/models"
)

func New(
	jwtAuth *middleware.JWTAuth,
	accountHandler *handlers.AccountHandler,
	slotHandler *handlers.SlotHandler,
	cancellationHandler *handlers.CancellationHandler,
	walletHandler *handlers.WalletHandler,
	earningsHandler *handlers.EarningsHandler,
	withdrawalHandler *handlers.WithdrawalHandler,
	meetingHandler *handlers.MeetingHandler,
	meetingHub *meeting.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", accountHandler.Register)
			r.Post("/login", accountHandler.Login)
			r.Post("/refresh", accountHandler.Refresh)

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", accountHandler.Logout)
			})
		})

		// ──── Availability Routes (mentor) ────
		r.Route("/availability", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(middleware.RequireRole(models.RoleMentor))
			r.Post("/", slotHandler.MarkAvailability)
			r.Delete("/", slotHandler.RemoveAvailability)
		})

		// ──── Mentor Discovery & Schedule ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/mentors/{mentorID}/slots", slotHandler.ListAvailable)
		})

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(middleware.RequireRole(models.RoleMentor))
			r.Get("/schedule", slotHandler.MySchedule)
		})

		// ──── Booking Routes (student) ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(middleware.RequireRole(models.RoleStudent))
			r.Post("/bookings", slotHandler.Book)
			r.Get("/sessions", slotHandler.MySessions)
			r.Post("/sessions/{slotID}/cancellation", cancellationHandler.Request)
		})

		// ──── Cancellation Routes (mentor) ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(middleware.RequireRole(models.RoleMentor))
			r.Post("/sessions/{slotID}/cancellation/approve", cancellationHandler.Approve)
			r.Delete("/sessions/{slotID}", cancellationHandler.Cancel)
		})

		// ──── Wallet Routes ────
		r.Route("/wallet", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", walletHandler.Balance)
			r.Get("/history", walletHandler.History)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))
				r.Post("/grants", walletHandler.Grant)
			})
		})

		// ──── Earnings Routes (mentor) ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(middleware.RequireRole(models.RoleMentor))
			r.Get("/earnings", earningsHandler.Summary)
		})

		// ──── Withdrawal Routes ────
		r.Route("/withdrawals", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleMentor))
				r.Post("/", withdrawalHandler.Request)
				r.Get("/", withdrawalHandler.List)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))
				r.Post("/{txnID}/complete", withdrawalHandler.Complete)
				r.Post("/{txnID}/cancel", withdrawalHandler.Cancel)
			})
		})

		// ──── Meeting Routes (admin) ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(middleware.RequireRole(models.RoleAdmin))
			r.Get("/meetings", meetingHandler.ListActive)
		})

		// ──── WebSocket (meeting coordination) ────
		r.Get("/ws", meetingHub.HandleWebSocket)
	})

	return r
}
