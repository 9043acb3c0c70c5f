package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"festiva/internal/config"
	"festiva/internal/database"
	"festiva/internal/handlers"
	"festiva/internal/middleware"
	"festiva/internal/models"
	"festiva/internal/repositories"
	"festiva/internal/services"
)

// tokenValidator adapts the auth service to the middleware's interface
type tokenValidator struct {
	auth *services.AuthService
}

func (v tokenValidator) ValidateToken(token string) (int, models.UserRole, error) {
	claims, err := v.auth.ValidateToken(token)
	if err != nil {
		return 0, "", err
	}
	return claims.UserID, claims.Role, nil
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize database connection
	dbConfig := database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}

	db, err := database.NewConnection(dbConfig)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()
	log.Println("Database connection established successfully")

	if err := db.RunMigrations(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// Create session store
	sessionStore := sessions.NewCookieStore([]byte(cfg.Session.Secret))
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		Secure:   cfg.Server.Env == "production",
		SameSite: http.SameSiteLaxMode,
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db.DB)
	eventRepo := repositories.NewEventRepository(db.DB)
	orderRepo := repositories.NewOrderRepository(db.DB)
	webhookLogRepo := repositories.NewWebhookLogRepository(db.DB)

	// Initialize services
	emailService := services.NewResendEmailService(services.ResendConfig{
		APIKey:    cfg.Resend.APIKey,
		FromEmail: cfg.Resend.FromEmail,
		FromName:  cfg.Resend.FromName,
	})

	midtransService := services.NewMidtransService(services.MidtransConfig{
		ServerKey:   cfg.Midtrans.ServerKey,
		ClientKey:   cfg.Midtrans.ClientKey,
		Environment: cfg.Midtrans.Environment,
		FinishURL:   cfg.Midtrans.FinishURL,
	})
	pdfService := services.NewPDFService()
	imageService := services.NewImageService()

	var storageService services.StorageService
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Service, err := services.NewR2Service(cfg.R2)
		if err != nil {
			log.Fatal("Failed to initialize R2 service:", err)
		}
		storageService = r2Service
		log.Println("R2 storage service initialized successfully")
	} else {
		storageService = services.NewLocalStorageService("./uploads", "/uploads")
		log.Println("Using local storage service (R2 credentials not configured)")
	}

	authService := services.NewAuthService(userRepo, cfg.Auth)
	inventoryService := services.NewInventoryService(eventRepo)
	receiptService := services.NewReceiptService(userRepo, pdfService, emailService)
	orderService := services.NewOrderService(orderRepo, eventRepo, userRepo, inventoryService, midtransService)
	eventService := services.NewEventService(eventRepo, orderRepo, userRepo, imageService, storageService)
	paymentProcessor := services.NewPaymentProcessor(orderRepo, inventoryService, webhookLogRepo, midtransService, receiptService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	eventHandler := handlers.NewEventHandler(eventService)
	checkoutHandler := handlers.NewCheckoutHandler(orderService, sessionStore)
	paymentHandler := handlers.NewPaymentHandler(paymentProcessor, inventoryService)
	orderHandler := handlers.NewOrderHandler(orderService, pdfService)

	requireAuth := middleware.RequireAuth(tokenValidator{auth: authService})
	requireOrganizer := middleware.RequireRole(models.RoleOrganizer, models.RoleAdmin)

	// Initialize router
	r := chi.NewRouter()
	r.Use(middleware.ErrorHandlingMiddleware)
	r.Use(middleware.LoggingMiddleware)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := db.Ping(); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Get("/events", eventHandler.List)
		r.Get("/events/{slug}", eventHandler.GetBySlug)

		// Gateway-facing endpoints stay unauthenticated; the webhook is
		// protected by its signature.
		r.Post("/payments/notification", paymentHandler.Notification)
		r.Post("/payments/release", paymentHandler.ReleaseHold)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/checkout", checkoutHandler.Checkout)
			r.Get("/checkout/pending", checkoutHandler.PendingOrder)

			r.Get("/orders", orderHandler.List)
			r.Get("/orders/{orderID}", orderHandler.Get)
			r.Get("/orders/{orderID}/ticket", orderHandler.Ticket)
			r.Post("/orders/{orderID}/cancel", checkoutHandler.CancelPending)

			r.Group(func(r chi.Router) {
				r.Use(requireOrganizer)

				r.Post("/events", eventHandler.Create)
				r.Put("/events/{id}", eventHandler.Update)
				r.Post("/events/{id}/poster", eventHandler.UploadPoster)
				r.Get("/events/{id}/stats", eventHandler.Stats)
				r.Post("/orders/{orderID}/redeem", orderHandler.Redeem)
			})
		})
	})

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed:", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
