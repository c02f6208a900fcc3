package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/debtflow/collections-engine/internal/config"
	"github.com/debtflow/collections-engine/internal/handler"
	"github.com/debtflow/collections-engine/internal/repository"
	"github.com/debtflow/collections-engine/internal/service"
	"github.com/debtflow/collections-engine/pkg/response"
)

func main() {
	// Load .env into the environment if present; real deployments set env vars.
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database
	db, err := initDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize Redis
	redisClient := initRedis(cfg)
	defer redisClient.Close()

	// Initialize store and service
	store := repository.NewStore(db)
	feeConfigs := service.NewStaticFeeConfigProvider(cfg)
	ledgerService := service.NewLedgerService(store, redisClient, cfg, feeConfigs)

	debtHandler := handler.NewDebtHandler(ledgerService)
	planHandler := handler.NewPlanHandler(ledgerService)
	transactionHandler := handler.NewTransactionHandler(ledgerService)
	healthHandler := handler.NewHealthHandler(db, redisClient, cfg.GetHealthTimeout())

	// Setup routes
	router := setupRoutes(debtHandler, planHandler, transactionHandler, healthHandler)

	// Start server
	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      response.LoggingMiddleware(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(debtHandler *handler.DebtHandler, planHandler *handler.PlanHandler, transactionHandler *handler.TransactionHandler, healthHandler *handler.HealthHandler) *mux.Router {
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/debts", debtHandler.Create).Methods("POST")
	api.HandleFunc("/debts/{debtId}", debtHandler.Get).Methods("GET")
	api.HandleFunc("/debts/{debtId}/activate", debtHandler.Activate).Methods("POST")
	api.HandleFunc("/debts/{debtId}/outstanding", debtHandler.GetOutstanding).Methods("GET")
	api.HandleFunc("/debts/{debtId}/interest", debtHandler.AccrueInterest).Methods("POST")
	api.HandleFunc("/debts/{debtId}/fees", debtHandler.AddFee).Methods("POST")
	api.HandleFunc("/debts/{debtId}/settlement", debtHandler.ProposeSettlement).Methods("POST")
	api.HandleFunc("/debts/{debtId}/settlement/accept", debtHandler.AcceptSettlement).Methods("POST")
	api.HandleFunc("/debts/{debtId}/settlement/reject", debtHandler.RejectSettlement).Methods("POST")
	api.HandleFunc("/debts/{debtId}/dispute", debtHandler.FlagDispute).Methods("POST")
	api.HandleFunc("/debts/{debtId}/dispute/resolve", debtHandler.ResolveDispute).Methods("POST")
	api.HandleFunc("/debts/{debtId}/write-off", debtHandler.WriteOff).Methods("POST")
	api.HandleFunc("/debts/{debtId}/next-action", debtHandler.ScheduleNextAction).Methods("POST")
	api.HandleFunc("/debts/{debtId}/notes", debtHandler.AppendNote).Methods("POST")
	api.HandleFunc("/debts/{debtId}/notes", debtHandler.ListNotes).Methods("GET")
	api.HandleFunc("/debts/{debtId}/transactions", debtHandler.ListTransactions).Methods("GET")

	api.HandleFunc("/plans", planHandler.Create).Methods("POST")
	api.HandleFunc("/plans/{planId}/activate", planHandler.Activate).Methods("POST")
	api.HandleFunc("/plans/{planId}/complete", planHandler.Complete).Methods("POST")
	api.HandleFunc("/plans/{planId}/default", planHandler.Default).Methods("POST")
	api.HandleFunc("/plans/{planId}/cancel", planHandler.Cancel).Methods("POST")
	api.HandleFunc("/plans/{planId}/discount", planHandler.ApplyDiscount).Methods("POST")
	api.HandleFunc("/plans/{planId}/schedule", planHandler.GetSchedule).Methods("GET")
	api.HandleFunc("/plans/by-reference/{reference}", planHandler.GetByReference).Methods("GET")

	api.HandleFunc("/transactions", transactionHandler.Record).Methods("POST")
	api.HandleFunc("/transactions/lookup", transactionHandler.Lookup).Methods("GET")
	api.HandleFunc("/transactions/{transactionId}/settle", transactionHandler.Settle).Methods("POST")
	api.HandleFunc("/transactions/{transactionId}/fail", transactionHandler.Fail).Methods("POST")
	api.HandleFunc("/transactions/{transactionId}/metadata", transactionHandler.AttachMetadata).Methods("POST")

	return router
}
