package main

import (
	"log"
	"time"

	"invoice-billing-backend/internal/config"
	"invoice-billing-backend/internal/cron"
	"invoice-billing-backend/internal/gateway"
	"invoice-billing-backend/internal/logger"
	"invoice-billing-backend/internal/models"
	"invoice-billing-backend/internal/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	config.LoadConfig()
	zapLogger := logger.Get()
	defer zapLogger.Sync()

	db := config.InitDB()

	db.AutoMigrate(
		&models.Customer{},
		&models.Invoice{},
		&models.Billing{},
		&models.BillingRun{},
	)

	var provider gateway.PaymentProvider
	if config.AppConfig.StripeKey != "" {
		provider = gateway.NewStripeProvider(config.AppConfig.StripeKey)
	} else {
		log.Println("No Stripe key configured, using sandbox payment provider")
		provider = gateway.NewSandboxProvider(time.Now().UnixNano())
	}

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	billingService := routes.RegisterRoutes(r, db, provider, zapLogger)

	cron.InitBillingWorker(billingService)

	r.Run(":" + config.AppConfig.AppPort)
}
