package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"invoice-billing-backend/internal/config"
	"invoice-billing-backend/internal/gateway"
	handler "invoice-billing-backend/internal/handlers"
	"invoice-billing-backend/internal/repository"
	service "invoice-billing-backend/internal/services/billing"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, provider gateway.PaymentProvider, logger *zap.Logger) *service.Service {
	invoiceRepo := repository.NewInvoiceRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	store := repository.NewStore(db)

	billingService := service.NewService(store, provider, logger, config.AppConfig.BillingConcurrency)

	billingHandler := handler.NewBillingHandler(billingService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceRepo, customerRepo)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Billing pipeline routes
	billing := api.Group("/billing")
	billing.POST("/run", billingHandler.Run)
	billing.POST("/reconcile", billingHandler.Reconcile)
	billing.GET("", billingHandler.ListBillings)
	billing.GET("/:id", billingHandler.GetBilling)

	// Invoice routes
	invoices := api.Group("/invoices")
	{
		invoices.POST("", invoiceHandler.CreateInvoice)
		invoices.GET("", invoiceHandler.ListInvoices)
		invoices.GET("/:id", invoiceHandler.GetInvoice)
	}

	// Customer routes
	customers := api.Group("/customers")
	{
		customers.POST("", invoiceHandler.CreateCustomer)
		customers.GET("", invoiceHandler.ListCustomers)
		customers.GET("/:id", invoiceHandler.GetCustomer)
	}

	return billingService
}
