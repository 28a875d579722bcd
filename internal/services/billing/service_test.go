package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"invoice-billing-backend/internal/gateway"
	"invoice-billing-backend/internal/models"
)

// fakeStore is an in-memory Store with the same idempotent-creation
// semantics the real one gets from the unique invoice index.
type fakeStore struct {
	mu        sync.Mutex
	invoices  map[uuid.UUID]*models.Invoice
	byInvoice map[uuid.UUID]*models.Billing

	finalizeErrFor map[uuid.UUID]error // invoice id -> error to return on finalize
	setStatusErr   error

	createCalls   int
	finalizeCalls int
}

func newFakeStore(invoices ...*models.Invoice) *fakeStore {
	s := &fakeStore{
		invoices:       make(map[uuid.UUID]*models.Invoice),
		byInvoice:      make(map[uuid.UUID]*models.Billing),
		finalizeErrFor: make(map[uuid.UUID]error),
	}
	for _, inv := range invoices {
		s.invoices[inv.ID] = inv
	}
	return s
}

func (s *fakeStore) FetchEligibleInvoices(ctx context.Context) ([]models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []models.Invoice
	for _, inv := range s.invoices {
		if inv.Status == models.InvoicePending {
			pending = append(pending, *inv)
		}
	}
	return pending, nil
}

func (s *fakeStore) CreateBilling(ctx context.Context, invoiceID uuid.UUID) (*models.Billing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if existing, ok := s.byInvoice[invoiceID]; ok {
		cp := *existing
		return &cp, nil
	}
	billing := &models.Billing{
		ID:           uuid.New(),
		InvoiceID:    invoiceID,
		Status:       models.BillingInProgress,
		ChargingDate: datatypes.Date(time.Now()),
		CreatedAt:    time.Now(),
	}
	s.byInvoice[invoiceID] = billing
	cp := *billing
	return &cp, nil
}

func (s *fakeStore) FinalizeBilling(ctx context.Context, id uuid.UUID, status models.BillingStatus, message *string, chargingDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalizeCalls++
	for _, b := range s.byInvoice {
		if b.ID == id {
			if err, ok := s.finalizeErrFor[b.InvoiceID]; ok {
				return err
			}
			b.Status = status
			b.StatusMessage = message
			b.ChargingDate = datatypes.Date(chargingDate)
			return nil
		}
	}
	return fmt.Errorf("billing %s not found", id)
}

func (s *fakeStore) SetInvoiceStatus(ctx context.Context, id uuid.UUID, status models.InvoiceStatus, message *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setStatusErr != nil {
		return s.setStatusErr
	}
	inv, ok := s.invoices[id]
	if !ok {
		return fmt.Errorf("invoice %s not found", id)
	}
	inv.Status = status
	inv.StatusMessage = message
	return nil
}

func (s *fakeStore) FetchBilling(ctx context.Context, id uuid.UUID) (*models.Billing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.byInvoice {
		if b.ID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("billing %s not found", id)
}

func (s *fakeStore) FetchInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %s not found", id)
	}
	cp := *inv
	return &cp, nil
}

func (s *fakeStore) FetchUnreconciled(ctx context.Context) ([]models.Billing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Billing
	for invoiceID, b := range s.byInvoice {
		if b.Status != models.BillingSuccessful {
			continue
		}
		if inv, ok := s.invoices[invoiceID]; ok && inv.Status != models.InvoicePaid {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *fakeStore) FetchBillingsForMonth(ctx context.Context, year int, month time.Month) ([]models.Billing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Billing
	for _, b := range s.byInvoice {
		d := time.Time(b.ChargingDate)
		if d.Year() == year && d.Month() == month {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateRun(ctx context.Context, totalInvoices int) (*models.BillingRun, error) {
	return &models.BillingRun{ID: uuid.New(), TotalInvoices: totalInvoices, Status: "processing"}, nil
}

func (s *fakeStore) CompleteRun(ctx context.Context, id uuid.UUID, successful, failed, errored int) error {
	return nil
}

func (s *fakeStore) billingFor(invoiceID uuid.UUID) *models.Billing {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.byInvoice[invoiceID]; ok {
		cp := *b
		return &cp
	}
	return nil
}

func (s *fakeStore) invoice(id uuid.UUID) *models.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.invoices[id]
	return &cp
}

// fakeProvider scripts gateway outcomes per call and tracks how many
// charges are in flight simultaneously.
type fakeProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, invoice models.Invoice) (bool, error)

	inFlight    int32
	maxInFlight int32
	delay       time.Duration
}

func (p *fakeProvider) Charge(ctx context.Context, invoice models.Invoice) (bool, error) {
	cur := atomic.AddInt32(&p.inFlight, 1)
	defer atomic.AddInt32(&p.inFlight, -1)
	for {
		max := atomic.LoadInt32(&p.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&p.maxInFlight, max, cur) {
			break
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()
	return p.fn(call, invoice)
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func pendingInvoice() *models.Invoice {
	return &models.Invoice{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		Amount:     decimal.NewFromFloat(42.50),
		Currency:   "EUR",
		Status:     models.InvoicePending,
		CreatedAt:  time.Now(),
	}
}

func newTestService(store Store, provider gateway.PaymentProvider, concurrency int) *Service {
	return NewService(store, provider, zap.NewNop(), concurrency)
}

func TestRun_SuccessfulChargeMarksInvoicePaid(t *testing.T) {
	invoice := pendingInvoice()
	store := newFakeStore(invoice)
	provider := &fakeProvider{fn: func(call int, inv models.Invoice) (bool, error) {
		return true, nil
	}}

	billings, err := newTestService(store, provider, 0).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, billings, 1)

	assert.Equal(t, models.BillingSuccessful, billings[0].Status)
	assert.Nil(t, billings[0].StatusMessage)
	assert.Equal(t, models.InvoicePaid, store.invoice(invoice.ID).Status)
}

func TestRun_DeclinedChargeLeavesInvoicePending(t *testing.T) {
	invoice := pendingInvoice()
	store := newFakeStore(invoice)
	provider := &fakeProvider{fn: func(call int, inv models.Invoice) (bool, error) {
		return false, nil
	}}

	billings, err := newTestService(store, provider, 0).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, billings, 1)

	assert.Equal(t, models.BillingFailure, billings[0].Status)
	require.NotNil(t, billings[0].StatusMessage)
	assert.Equal(t, "account balance did not allow the charge", *billings[0].StatusMessage)
	assert.Equal(t, models.InvoicePending, store.invoice(invoice.ID).Status)
}

func TestRun_NetworkErrorRetriesOnceThenSucceeds(t *testing.T) {
	invoice := pendingInvoice()
	store := newFakeStore(invoice)
	provider := &fakeProvider{fn: func(call int, inv models.Invoice) (bool, error) {
		if call == 1 {
			return false, &gateway.NetworkError{}
		}
		return true, nil
	}}

	billings, err := newTestService(store, provider, 0).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, billings, 1)

	assert.Equal(t, 2, provider.callCount())
	assert.Equal(t, models.BillingSuccessful, billings[0].Status)
	assert.Nil(t, billings[0].StatusMessage)
	assert.Equal(t, models.InvoicePaid, store.invoice(invoice.ID).Status)
}

func TestRun_NetworkErrorTwiceFailsWithoutThirdAttempt(t *testing.T) {
	invoice := pendingInvoice()
	store := newFakeStore(invoice)
	provider := &fakeProvider{fn: func(call int, inv models.Invoice) (bool, error) {
		return false, &gateway.NetworkError{}
	}}

	billings, err := newTestService(store, provider, 0).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, billings, 1)

	assert.Equal(t, 2, provider.callCount())
	assert.Equal(t, models.BillingFailure, billings[0].Status)
	require.NotNil(t, billings[0].StatusMessage)
	assert.Equal(t, "A network error happened please try again.", *billings[0].StatusMessage)
	assert.Equal(t, models.InvoicePending, store.invoice(invoice.ID).Status)
}

func TestRun_CustomerNotFound(t *testing.T) {
	invoice := pendingInvoice()
	store := newFakeStore(invoice)
	provider := &fakeProvider{fn: func(call int, inv models.Invoice) (bool, error) {
		return false, &gateway.CustomerNotFoundError{CustomerID: inv.CustomerID}
	}}

	billings, err := newTestService(store, provider, 0).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, billings, 1)

	assert.Equal(t, 1, provider.callCount(), "domain errors must not be retried")
	assert.Equal(t, models.BillingFailure, billings[0].Status)
	require.NotNil(t, billings[0].StatusMessage)
	assert.Equal(t, fmt.Sprintf("Customer '%s' was not found", invoice.CustomerID), *billings[0].StatusMessage)
	assert.Equal(t, models.InvoicePending, store.invoice(invoice.ID).Status)
}

func TestRun_CurrencyMismatch(t *testing.T) {
	invoice := pendingInvoice()
	store := newFakeStore(invoice)
	provider := &fakeProvider{fn: func(call int, inv models.Invoice) (bool, error) {
		return false, &gateway.CurrencyMismatchError{InvoiceID: inv.ID, CustomerID: inv.CustomerID}
	}}

	billings, err := newTestService(store, provider, 0).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, billings, 1)

	require.NotNil(t, billings[0].StatusMessage)
	assert.Equal(t,
		fmt.Sprintf("Currency of invoice '%s' does not match currency of customer '%s'", invoice.ID, invoice.CustomerID),
		*billings[0].StatusMessage)
	assert.Equal(t, models.InvoicePending, store.invoice(invoice.ID).Status)
}

func TestRun_UnclassifiedErrorUsesItsMessage(t *testing.T) {
	invoice := pendingInvoice()
	store := newFakeStore(invoice)
	provider := &fakeProvider{fn: func(call int, inv models.Invoice) (bool, error) {
		return false, errors.New("gateway exploded")
	}}

	billings, err := newTestService(store, provider, 0).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, billings, 1)

	assert.Equal(t, 1, provider.callCount())
	require.NotNil(t, billings[0].StatusMessage)
	assert.Equal(t, "gateway exploded", *billings[0].StatusMessage)
}

func TestRun_AlreadyFinalizedAttemptIsNotChargedAgain(t *testing.T) {
	invoice := pendingInvoice()
	store := newFakeStore(invoice)
	// a previous run already finalized this invoice's attempt
	existing, err := store.CreateBilling(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.NoError(t, store.FinalizeBilling(context.Background(), existing.ID, models.BillingSuccessful, nil, time.Now()))
	require.NoError(t, store.SetInvoiceStatus(context.Background(), invoice.ID, models.InvoicePaid, nil))
	// the eligibility query excludes PAID invoices; force one through anyway
	store.invoices[invoice.ID].Status = models.InvoicePending

	provider := &fakeProvider{fn: func(call int, inv models.Invoice) (bool, error) {
		return true, nil
	}}

	billings, err := newTestService(store, provider, 0).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, billings, 1)

	assert.Equal(t, 0, provider.callCount(), "finalized attempts must not be re-charged")
	assert.Equal(t, existing.ID, billings[0].ID)
	assert.Equal(t, models.BillingSuccessful, billings[0].Status)
}

func TestRun_OneAttemptPerInvoice(t *testing.T) {
	var invoices []*models.Invoice
	for i := 0; i < 25; i++ {
		invoices = append(invoices, pendingInvoice())
	}
	store := newFakeStore(invoices...)
	provider := &fakeProvider{fn: func(call int, inv models.Invoice) (bool, error) {
		return true, nil
	}}

	billings, err := newTestService(store, provider, 5).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, billings, 25)

	seen := make(map[uuid.UUID]bool)
	for _, b := range billings {
		assert.False(t, seen[b.InvoiceID], "invoice %s billed twice", b.InvoiceID)
		seen[b.InvoiceID] = true
	}
}

func TestRun_ConcurrencyBoundIsRespected(t *testing.T) {
	var invoices []*models.Invoice
	for i := 0; i < 40; i++ {
		invoices = append(invoices, pendingInvoice())
	}
	store := newFakeStore(invoices...)
	provider := &fakeProvider{
		delay: 2 * time.Millisecond,
		fn: func(call int, inv models.Invoice) (bool, error) {
			return true, nil
		},
	}

	_, err := newTestService(store, provider, 4).Run(context.Background())
	require.NoError(t, err)

	assert.LessOrEqual(t, atomic.LoadInt32(&provider.maxInFlight), int32(4))
}

func TestRun_StorageErrorOnOneInvoiceDoesNotAbortSiblings(t *testing.T) {
	broken := pendingInvoice()
	healthy1 := pendingInvoice()
	healthy2 := pendingInvoice()
	store := newFakeStore(broken, healthy1, healthy2)
	store.finalizeErrFor[broken.ID] = errors.New("disk on fire")

	provider := &fakeProvider{fn: func(call int, inv models.Invoice) (bool, error) {
		return true, nil
	}}

	billings, err := newTestService(store, provider, 2).Run(context.Background())
	require.NoError(t, err, "a single invoice's storage error must not fail the run")
	require.Len(t, billings, 2)

	for _, b := range billings {
		assert.NotEqual(t, broken.ID, b.InvoiceID)
		assert.Equal(t, models.BillingSuccessful, b.Status)
	}
	assert.Equal(t, models.InvoicePaid, store.invoice(healthy1.ID).Status)
	assert.Equal(t, models.InvoicePaid, store.invoice(healthy2.ID).Status)
}

func TestRun_InvoiceUpdateFailureSurfacesReconciliationError(t *testing.T) {
	invoice := pendingInvoice()
	store := newFakeStore(invoice)
	store.setStatusErr = errors.New("connection reset")

	provider := &fakeProvider{fn: func(call int, inv models.Invoice) (bool, error) {
		return true, nil
	}}

	billings, err := newTestService(store, provider, 0).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, billings, "the half-committed invoice is reported as errored, not returned")

	// the attempt itself was finalized; reconciliation can repair the invoice
	b := store.billingFor(invoice.ID)
	require.NotNil(t, b)
	assert.Equal(t, models.BillingSuccessful, b.Status)
}

func TestReconcile_RepairsPaidProjection(t *testing.T) {
	invoice := pendingInvoice()
	store := newFakeStore(invoice)
	b, err := store.CreateBilling(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.NoError(t, store.FinalizeBilling(context.Background(), b.ID, models.BillingSuccessful, nil, time.Now()))

	provider := &fakeProvider{fn: func(call int, inv models.Invoice) (bool, error) {
		return true, nil
	}}

	repaired, err := newTestService(store, provider, 0).Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, repaired, 1)

	assert.Equal(t, b.ID, repaired[0].ID)
	assert.Equal(t, models.InvoicePaid, store.invoice(invoice.ID).Status)
}

func TestReconcile_NothingToRepair(t *testing.T) {
	invoice := pendingInvoice()
	store := newFakeStore(invoice)

	provider := &fakeProvider{fn: func(call int, inv models.Invoice) (bool, error) {
		return true, nil
	}}

	repaired, err := newTestService(store, provider, 0).Reconcile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, repaired)
}
