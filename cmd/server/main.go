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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/homestack/backend/internal/config"
	"github.com/homestack/backend/internal/handlers"
	appMiddleware "github.com/homestack/backend/internal/middleware"
	"github.com/homestack/backend/internal/services"
	"github.com/homestack/backend/internal/storage"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	itemStore, err := services.NewMongoItemStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("Failed to connect item store: %v", err)
	}
	userService, err := services.NewMongoUserService(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("Failed to connect user store: %v", err)
	}

	ledger, err := storage.OpenCSVLedger(cfg.LedgerPath)
	if err != nil {
		log.Fatalf("Failed to open item ledger: %v", err)
	}

	// Initialize services
	itemService := services.NewItemService(itemStore, ledger)
	imageService := services.NewImageService(cfg.UploadDir)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, cfg.JWTSecret, cfg.JWTExpiration)
	itemHandler := handlers.NewItemHandler(itemService, userService, imageService, cfg.MaxUploadSizeMB)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/users/register", authHandler.Register)
		r.Post("/users/login", authHandler.Login)

		r.Route("/items", func(r chi.Router) {
			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(appMiddleware.JWTAuth(cfg.JWTSecret))

				r.Get("/", itemHandler.ListItems)
				r.Get("/recent", itemHandler.ListRecentItems)
				r.Post("/bulk", itemHandler.BulkAddItems)
				r.Post("/add-item", itemHandler.AddItem)
				r.Delete("/{id}", itemHandler.DecrementOrDeleteItem)
				r.Put("/{id}", itemHandler.UpdateItem)
			})

			// These two predate the auth group and have never been behind
			// it; kept open on purpose. See DESIGN.md.
			r.Put("/delete/{id}", itemHandler.SoftDeleteItem)
			r.Get("/all", itemHandler.ListAllItems)
		})

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.JWTAuth(cfg.JWTSecret))
			r.Get("/users/me", authHandler.GetProfile)
		})
	})

	// Serve uploaded files
	workDir, _ := os.Getwd()
	filesDir := http.Dir(workDir + "/" + cfg.UploadDir)
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(filesDir)))

	srv := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: r,
	}

	go func() {
		log.Printf("HomeStack API server starting on %s", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Flush the ledger and drop connections on shutdown.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := ledger.Close(); err != nil {
		log.Printf("Ledger close error: %v", err)
	}
	if err := itemStore.Close(shutdownCtx); err != nil {
		log.Printf("Item store disconnect error: %v", err)
	}
	if err := userService.Close(shutdownCtx); err != nil {
		log.Printf("User store disconnect error: %v", err)
	}
}
