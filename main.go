package main

import (
	"crypto/tls"
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/omnifin/omni/backend/src/config"
	"github.com/omnifin/omni/backend/src/database"
	"github.com/omnifin/omni/backend/src/handlers"
	"github.com/omnifin/omni/backend/src/llm"
	"github.com/omnifin/omni/backend/src/logger"
	"github.com/omnifin/omni/backend/src/services"
	"github.com/omnifin/omni/backend/src/transfers"
)

func proxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
			"https://omnifin.app":   true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Omni backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)

	statsCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	llmClient := llm.NewGeminiClient(config.Cfg.GeminiAPIKey, config.Cfg.GeminiModel)
	detector := transfers.NewDetector(
		database.DB,
		config.Cfg.TransferLookbackDays,
		config.Cfg.TransferRowCap,
		config.Cfg.TransferDateTolerance,
	)

	dashboardService := services.NewDashboardService(database.DB, statsCache)
	insightService := services.NewInsightService(database.DB, llmClient)
	statementService := services.NewStatementService(
		database.DB,
		llmClient,
		detector,
		dashboardService,
		config.Cfg.PromptCharBudget,
	)
	invoiceService := services.NewInvoiceService(database.DB, llmClient, config.Cfg.PromptCharBudget)

	statementHandler := handlers.NewStatementHandler(statementService, detector)
	creditCardHandler := handlers.NewCreditCardHandler(database.DB, invoiceService)
	accountHandler := handlers.NewAccountHandler(database.DB, dashboardService)
	transactionHandler := handlers.NewTransactionHandler(database.DB, dashboardService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, insightService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(proxyHeadersMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Omni Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handlers.AuthMiddleware(config.Cfg.JWTSecret))

			r.Get("/accounts", accountHandler.HandleListAccounts)
			r.Post("/accounts", accountHandler.HandleCreateAccount)
			r.Get("/accounts/{accountID}", accountHandler.HandleGetAccount)
			r.Put("/accounts/{accountID}", accountHandler.HandleUpdateAccount)
			r.Delete("/accounts/{accountID}", accountHandler.HandleDeleteAccount)

			r.Get("/transactions", transactionHandler.HandleListTransactions)
			r.Post("/transactions", transactionHandler.HandleCreateTransaction)
			r.Get("/categories", transactionHandler.HandleListCategories)

			r.Get("/credit-cards", creditCardHandler.HandleListCreditCards)
			r.Post("/credit-cards", creditCardHandler.HandleCreateCreditCard)
			r.Delete("/credit-cards/{cardID}", creditCardHandler.HandleDeleteCreditCard)
			r.Post("/credit-cards/{cardID}/invoices", creditCardHandler.HandleImportInvoice)
			r.Get("/credit-cards/{cardID}/invoices", creditCardHandler.HandleListInvoices)
			r.Get("/invoices/{invoiceID}", creditCardHandler.HandleGetInvoice)

			r.Post("/statements/process", statementHandler.HandleProcessStatement)
			r.Post("/statements/import", statementHandler.HandleImportStatement)
			r.Get("/transfers/analyze", statementHandler.HandleAnalyzeTransfers)

			r.Get("/dashboard/stats", dashboardHandler.HandleGetStats)
			r.Get("/reports/analysis", dashboardHandler.HandleGetReportAnalysis)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
		}
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
