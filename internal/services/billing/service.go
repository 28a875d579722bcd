package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"invoice-billing-backend/internal/gateway"
	"invoice-billing-backend/internal/models"
)

// DefaultConcurrency bounds how many invoices are in flight at once.
const DefaultConcurrency = 10

// chargeTimeout caps a single gateway call; the retry gets a fresh budget.
const chargeTimeout = 30 * time.Second

type Service struct {
	store       Store
	provider    gateway.PaymentProvider
	logger      *zap.Logger
	concurrency int
}

func NewService(store Store, provider gateway.PaymentProvider, logger *zap.Logger, concurrency int) *Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Service{
		store:       store,
		provider:    provider,
		logger:      logger,
		concurrency: concurrency,
	}
}

type result struct {
	billing *models.Billing
	err     error
}

// Run executes one billing cycle: every PENDING invoice is charged once,
// with at most `concurrency` invoices in flight. Each invoice is processed
// independently; a failure on one never aborts the others. The returned
// slice holds one finalized attempt per invoice that reached a terminal
// state this run.
func (s *Service) Run(ctx context.Context) ([]models.Billing, error) {
	invoices, err := s.store.FetchEligibleInvoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch eligible invoices: %w", err)
	}

	run, err := s.store.CreateRun(ctx, len(invoices))
	if err != nil {
		// the run record is bookkeeping, not part of the pipeline
		s.logger.Warn("failed to record billing run", zap.Error(err))
	}

	jobs := make(chan models.Invoice)
	results := make(chan result, len(invoices))

	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for invoice := range jobs {
				billing, err := s.processInvoice(ctx, invoice)
				results <- result{billing: billing, err: err}
			}
		}()
	}

	for _, invoice := range invoices {
		jobs <- invoice
	}
	close(jobs)
	wg.Wait()
	close(results)

	var billings []models.Billing
	var successful, failed, errored int
	for res := range results {
		if res.err != nil {
			errored++
			s.logger.Error("invoice left unfinalized", zap.Error(res.err))
			continue
		}
		switch res.billing.Status {
		case models.BillingSuccessful:
			successful++
		case models.BillingFailure:
			failed++
		}
		billings = append(billings, *res.billing)
	}

	if run != nil {
		if err := s.store.CompleteRun(ctx, run.ID, successful, failed, errored); err != nil {
			s.logger.Warn("failed to complete billing run record", zap.Error(err))
		}
	}

	s.logger.Info("billing cycle completed",
		zap.Int("invoices", len(invoices)),
		zap.Int("successful", successful),
		zap.Int("failed", failed),
		zap.Int("errored", errored),
	)
	return billings, nil
}

// processInvoice owns one invoice end to end: create the IN_PROGRESS attempt,
// charge, classify, finalize the attempt, then project PAID onto the invoice
// only when the attempt succeeded.
func (s *Service) processInvoice(ctx context.Context, invoice models.Invoice) (*models.Billing, error) {
	billing, err := s.store.CreateBilling(ctx, invoice.ID)
	if err != nil {
		return nil, fmt.Errorf("create billing for invoice %s: %w", invoice.ID, err)
	}
	if billing.Status != models.BillingInProgress {
		// finalized by a previous run, nothing left to do
		return billing, nil
	}

	captured, chargeErr := s.charge(ctx, invoice)
	status, message := classifyOutcome(captured, chargeErr)

	chargingDate := time.Now()
	if err := s.store.FinalizeBilling(ctx, billing.ID, status, message, chargingDate); err != nil {
		return nil, fmt.Errorf("finalize billing %s: %w", billing.ID, err)
	}
	billing.Status = status
	billing.StatusMessage = message
	billing.ChargingDate = datatypes.Date(chargingDate)

	if status == models.BillingSuccessful {
		if err := s.store.SetInvoiceStatus(ctx, invoice.ID, models.InvoicePaid, nil); err != nil {
			return nil, fmt.Errorf("billing %s succeeded but invoice %s was not marked paid: %w", billing.ID, invoice.ID, err)
		}
		s.logger.Info("payment completed", zap.String("invoice_id", invoice.ID.String()))
	} else {
		s.logger.Warn("payment failed",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Stringp("message", message),
		)
	}
	return billing, nil
}

// charge calls the gateway, retrying exactly once on a network error. The
// second outcome is final whatever it is.
func (s *Service) charge(ctx context.Context, invoice models.Invoice) (bool, error) {
	captured, err := s.chargeOnce(ctx, invoice)
	var netErr *gateway.NetworkError
	if err != nil && errors.As(err, &netErr) {
		s.logger.Warn("network error during charge, retrying",
			zap.String("invoice_id", invoice.ID.String()),
		)
		return s.chargeOnce(ctx, invoice)
	}
	return captured, err
}

func (s *Service) chargeOnce(ctx context.Context, invoice models.Invoice) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, chargeTimeout)
	defer cancel()
	return s.provider.Charge(ctx, invoice)
}

// Reconcile repairs the gap the two-step commit can leave behind: attempts
// already SUCCESSFUL whose invoice never reached PAID. Returns the attempts
// whose invoice it repaired.
func (s *Service) Reconcile(ctx context.Context) ([]models.Billing, error) {
	billings, err := s.store.FetchUnreconciled(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch unreconciled billings: %w", err)
	}

	var repaired []models.Billing
	for _, b := range billings {
		invoice, err := s.store.FetchInvoice(ctx, b.InvoiceID)
		if err != nil {
			s.logger.Error("reconcile: invoice lookup failed",
				zap.String("invoice_id", b.InvoiceID.String()), zap.Error(err))
			continue
		}
		if invoice.Status == models.InvoicePaid {
			continue
		}
		if err := s.store.SetInvoiceStatus(ctx, invoice.ID, models.InvoicePaid, nil); err != nil {
			s.logger.Error("reconcile: invoice update failed",
				zap.String("invoice_id", invoice.ID.String()), zap.Error(err))
			continue
		}
		s.logger.Info("reconciled invoice with successful billing",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("billing_id", b.ID.String()),
		)
		repaired = append(repaired, b)
	}
	return repaired, nil
}

// BillingsForMonth returns the attempts recorded during the given month.
func (s *Service) BillingsForMonth(ctx context.Context, year int, month time.Month) ([]models.Billing, error) {
	return s.store.FetchBillingsForMonth(ctx, year, month)
}

// Billing returns one attempt by id.
func (s *Service) Billing(ctx context.Context, id uuid.UUID) (*models.Billing, error) {
	return s.store.FetchBilling(ctx, id)
}
