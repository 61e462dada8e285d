package main

import (
	"log"
	"net/http"
	"strings"

	"dropwatch/config"
	"dropwatch/database"
	"dropwatch/handlers"
	"dropwatch/middleware"
	"dropwatch/notifier"
	"dropwatch/repository"
	"dropwatch/scheduler"
	"dropwatch/scraper"
	"dropwatch/services"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	if err := database.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDatabase()

	if err := database.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	productRepo := repository.NewProductRepository()
	alertRepo := repository.NewAlertRepository()
	userRepo := repository.NewUserRepository()
	cycleRepo := repository.NewCycleRepository()

	// The browser fallback is optional: without it the fetcher still serves
	// pages that render server side.
	var renderer scraper.PageRenderer
	if browser, err := scraper.NewBrowserRenderer(cfg.FetchTimeout, cfg.RenderSettle); err != nil {
		log.Printf("Headless browser unavailable, rendered fallback disabled: %v", err)
	} else {
		renderer = browser
	}
	fetcher := scraper.NewFetcher(renderer, cfg.FetchTimeout)
	defer fetcher.Close()

	emailNotifier := notifier.NewEmailNotifier(cfg, productRepo, alertRepo, userRepo)
	authService := services.NewAuthService(cfg, userRepo)

	priceChecker := scheduler.NewPriceChecker(cycleRepo, fetcher, emailNotifier, cfg.CheckCronSpec, cfg.CycleWorkers)
	priceChecker.Start()
	defer priceChecker.Stop()

	h := handlers.NewHandlers(productRepo, alertRepo, authService, fetcher, priceChecker)
	defer h.Close()

	r := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.RateLimitMiddleware(rateLimiter))

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")

	auth := r.PathPrefix("/api/v1/auth").Subrouter()
	auth.HandleFunc("/register", h.Register).Methods("POST")
	auth.HandleFunc("/login", h.Login).Methods("POST")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.AuthMiddleware(authService))

	api.HandleFunc("/auth/me", h.Me).Methods("GET")

	api.HandleFunc("/products", h.CreateProduct).Methods("POST")
	api.HandleFunc("/products", h.GetProducts).Methods("GET")
	api.HandleFunc("/products/{id:[0-9]+}", h.GetProduct).Methods("GET")
	api.HandleFunc("/products/{id:[0-9]+}", h.UpdateProduct).Methods("PATCH")
	api.HandleFunc("/products/{id:[0-9]+}", h.DeleteProduct).Methods("DELETE")
	api.HandleFunc("/products/{id:[0-9]+}/history", h.GetPriceHistory).Methods("GET")
	api.HandleFunc("/products/{id:[0-9]+}/check", h.CheckProductNow).Methods("POST")
	api.HandleFunc("/products/{id:[0-9]+}/check-async", h.CheckProductAsync).Methods("POST")

	api.HandleFunc("/products/{id:[0-9]+}/alerts", h.CreateAlert).Methods("POST")
	api.HandleFunc("/products/{id:[0-9]+}/alerts", h.GetAlerts).Methods("GET")
	api.HandleFunc("/alerts/{alertId:[0-9]+}", h.UpdateAlert).Methods("PATCH")
	api.HandleFunc("/alerts/{alertId:[0-9]+}", h.DeleteAlert).Methods("DELETE")

	api.HandleFunc("/tasks/{taskId}", h.GetTaskStatus).Methods("GET")
	api.HandleFunc("/tasks-stats", h.GetTaskStats).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	addr := cfg.Host + ":" + cfg.Port
	log.Printf("Server starting on %s", addr)
	if err := http.ListenAndServe(addr, c.Handler(r)); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
