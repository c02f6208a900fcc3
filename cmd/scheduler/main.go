package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/debtflow/collections-engine/internal/config"
	"github.com/debtflow/collections-engine/internal/repository"
	"github.com/debtflow/collections-engine/internal/service"
)

func main() {
	log.Println("Starting collections scheduler...")

	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	store := repository.NewStore(db)
	feeConfigs := service.NewStaticFeeConfigProvider(cfg)
	ledgerService := service.NewLedgerService(store, redisClient, cfg, feeConfigs)

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		log.Fatalf("Invalid scheduler timezone: %v", err)
	}

	// Initialize cron scheduler
	c := cron.New(cron.WithSeconds(), cron.WithLocation(location))

	// Schedule tasks
	setupCronJobs(c, cfg, ledgerService)

	// Start the scheduler
	c.Start()
	log.Println("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down scheduler...")
	c.Stop()
	log.Println("Scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, ledgerService *service.LedgerService) {
	// Nightly sweep: active debts past their due date move to InArrears.
	_, err := c.AddFunc(cfg.Scheduler.ArrearsSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		moved, err := ledgerService.MarkArrears(ctx, time.Now().UTC())
		if err != nil {
			log.Printf("Arrears sweep failed: %v", err)
			return
		}
		log.Printf("Arrears sweep complete: %d debts moved to in_arrears", moved)
	})
	if err != nil {
		log.Printf("Error scheduling arrears sweep: %v", err)
	}

	// Nightly sweep: settlement offers past their expiry are withdrawn.
	_, err = c.AddFunc(cfg.Scheduler.OfferExpirySpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		expired, err := ledgerService.ExpireSettlementOffers(ctx, time.Now().UTC())
		if err != nil {
			log.Printf("Offer expiry sweep failed: %v", err)
			return
		}
		log.Printf("Offer expiry sweep complete: %d offers withdrawn", expired)
	})
	if err != nil {
		log.Printf("Error scheduling offer expiry sweep: %v", err)
	}

	// Nightly sweep: overdue installments past grace accrue late fees.
	_, err = c.AddFunc(cfg.Scheduler.LateFeeSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		charged, err := ledgerService.AccrueLateFees(ctx, time.Now().UTC())
		if err != nil {
			log.Printf("Late fee sweep failed: %v", err)
			return
		}
		log.Printf("Late fee sweep complete: %d installments charged", charged)
	})
	if err != nil {
		log.Printf("Error scheduling late fee sweep: %v", err)
	}

	log.Println("Cron jobs scheduled successfully")
}
