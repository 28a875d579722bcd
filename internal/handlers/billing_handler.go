package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	service "invoice-billing-backend/internal/services/billing"
)

type BillingHandler struct {
	service *service.Service
}

func NewBillingHandler(s *service.Service) *BillingHandler {
	return &BillingHandler{service: s}
}

// Run triggers one full billing cycle over all pending invoices.
func (h *BillingHandler) Run(c *gin.Context) {
	billings, err := h.service.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "billing cycle completed",
		"billings": billings,
	})
}

// Reconcile repairs successful attempts whose invoice is not yet PAID.
func (h *BillingHandler) Reconcile(c *gin.Context) {
	repaired, err := h.service.Reconcile(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "reconciliation completed",
		"repaired": repaired,
	})
}

// ListBillings returns attempts for a month, defaulting to the current one.
func (h *BillingHandler) ListBillings(c *gin.Context) {
	now := time.Now()
	year := now.Year()
	month := now.Month()

	if y := c.Query("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid year"})
			return
		}
		year = parsed
	}
	if m := c.Query("month"); m != "" {
		parsed, err := strconv.Atoi(m)
		if err != nil || parsed < 1 || parsed > 12 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid month"})
			return
		}
		month = time.Month(parsed)
	}

	billings, err := h.service.BillingsForMonth(c.Request.Context(), year, month)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"billings": billings})
}

func (h *BillingHandler) GetBilling(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid billing ID"})
		return
	}

	billing, err := h.service.Billing(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "billing not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"billing": billing})
}
