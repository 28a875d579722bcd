package cron

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"

	"invoice-billing-backend/internal/config"
	"invoice-billing-backend/internal/services/billing"
)

const TypeBillingRun = "billing:run"

// InitBillingWorker starts the async worker and the cron scheduler that
// enqueues a billing run on the configured cadence. The pipeline itself
// stays scheduler-agnostic; this is only the trigger.
func InitBillingWorker(billingService *billing.Service) {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			// the pipeline bounds its own concurrency; one run at a time here
			Concurrency: 1,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeBillingRun, handleBillingRun(billingService))

	go monitorRedisConnection()

	go func() {
		log.Println("[BillingWorker] starting async worker...")
		if err := srv.Run(mux); err != nil {
			log.Printf("[BillingWorker] worker stopped: %v", err)
		}
	}()

	scheduler := asynq.NewScheduler(redisOpts, nil)
	if _, err := scheduler.Register(config.AppConfig.BillingCronSpec, asynq.NewTask(TypeBillingRun, nil)); err != nil {
		log.Printf("[BillingWorker] failed to register billing cron: %v", err)
		return
	}

	go func() {
		if err := scheduler.Run(); err != nil {
			log.Printf("[BillingWorker] scheduler stopped: %v", err)
		}
	}()
}

func handleBillingRun(billingService *billing.Service) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		log.Println("[BillingWorker] scheduled billing run starting")

		billings, err := billingService.Run(ctx)
		if err != nil {
			log.Printf("[BillingWorker] billing run failed: %v", err)
			return err
		}

		// sweep up any invoice the two-step commit left behind
		if _, err := billingService.Reconcile(ctx); err != nil {
			log.Printf("[BillingWorker] reconcile failed: %v", err)
		}

		log.Printf("[BillingWorker] billing run finished, %d attempts finalized", len(billings))
		return nil
	}
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func monitorRedisConnection() {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})

	ctx := context.Background()

	for {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[BillingWorker] redis connection lost: %v", err)
		}
		time.Sleep(10 * time.Second)
	}
}
