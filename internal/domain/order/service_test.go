package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rdistribuidora/storefront/internal/domain/product"
)

// --- Mock implementations ---

// stockEntry is one catalog row known to the mock repository.
type stockEntry struct {
	name  string
	price decimal.Decimal
	stock int
}

// mockOrderRepo backs the service with an in-memory catalog. InTx mirrors
// real transaction semantics: stock mutations and the created order are
// only applied when fn succeeds.
type mockOrderRepo struct {
	stock  map[int64]*stockEntry
	orders map[int64]*Order
	nextID int64

	reserveErr error
	createErr  error

	setStatusCalls [][2]Status
	deletedAll     bool
	deletedSince   time.Time
	deletedBefore  time.Time
}

func newMockRepo(entries map[int64]*stockEntry) *mockOrderRepo {
	return &mockOrderRepo{
		stock:  entries,
		orders: make(map[int64]*Order),
		nextID: 1,
	}
}

type mockTx struct {
	repo    *mockOrderRepo
	pending map[int64]int // productID -> reserved qty
	created *Order
}

func (t *mockTx) Reserve(_ context.Context, productID int64, qty int) (product.Snapshot, error) {
	if t.repo.reserveErr != nil {
		return product.Snapshot{}, t.repo.reserveErr
	}
	e, ok := t.repo.stock[productID]
	if !ok {
		return product.Snapshot{}, product.ErrNotFound
	}
	if e.stock-t.pending[productID]-qty < 0 {
		return product.Snapshot{}, &product.OutOfStockError{ProductID: productID, Requested: qty}
	}
	t.pending[productID] += qty
	return product.Snapshot{Name: e.name, Price: e.price}, nil
}

func (t *mockTx) CreateOrder(_ context.Context, o *Order) error {
	if t.repo.createErr != nil {
		return t.repo.createErr
	}
	o.ID = t.repo.nextID
	o.CreatedAt = time.Now()
	t.created = o
	return nil
}

func (m *mockOrderRepo) InTx(_ context.Context, fn func(tx Tx) error) error {
	tx := &mockTx{repo: m, pending: make(map[int64]int)}
	if err := fn(tx); err != nil {
		return err // rollback: nothing applied
	}
	for id, qty := range tx.pending {
		m.stock[id].stock -= qty
	}
	if tx.created != nil {
		m.orders[tx.created.ID] = tx.created
		m.nextID++
	}
	return nil
}

func (m *mockOrderRepo) Get(_ context.Context, id int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) ListByStatus(_ context.Context, status Status) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) SetStatus(_ context.Context, id int64, from, to Status) error {
	m.setStatusCalls = append(m.setStatusCalls, [2]Status{from, to})
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.Status != from {
		return &StatusConflictError{OrderID: id, Actual: o.Status}
	}
	o.Status = to
	return nil
}

func (m *mockOrderRepo) DeleteAll(_ context.Context) (int64, error) {
	m.deletedAll = true
	n := int64(len(m.orders))
	m.orders = make(map[int64]*Order)
	return n, nil
}

func (m *mockOrderRepo) DeleteBefore(_ context.Context, t time.Time) (int64, error) {
	m.deletedBefore = t
	return 0, nil
}

func (m *mockOrderRepo) DeleteSince(_ context.Context, t time.Time) (int64, error) {
	m.deletedSince = t
	return 0, nil
}

// --- Helpers ---

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func catalogWaterAndGas() map[int64]*stockEntry {
	return map[int64]*stockEntry{
		1: {name: "Water 20L", price: price("8.50"), stock: 5},
		2: {name: "Gas Canister", price: price("95.00"), stock: 2},
	}
}

func validSubmit(cart ...CartLine) SubmitRequest {
	return SubmitRequest{
		Cart:     cart,
		Delivery: LocationDelivery("Vila Verde"),
		Unit:     "12B",
		Payment:  PaymentInfo{Method: PaymentPix},
	}
}

// --- Submit ---

func TestSubmit_Success(t *testing.T) {
	repo := newMockRepo(catalogWaterAndGas())
	svc := NewService(repo)

	o, err := svc.Submit(context.Background(), validSubmit(
		CartLine{ProductID: 1, Quantity: 2},
		CartLine{ProductID: 2, Quantity: 1},
	))
	require.NoError(t, err)
	require.NotNil(t, o)

	assert.Equal(t, "112.00", o.Total.StringFixed(2))
	assert.Equal(t, StatusPending, o.Status)
	require.Len(t, o.Lines, 2)
	assert.Equal(t, "Water 20L", o.Lines[0].ProductName)
	assert.Equal(t, "8.50", o.Lines[0].UnitPrice.StringFixed(2))
	assert.Equal(t, 2, o.Lines[0].Quantity)
	assert.Equal(t, "17.00", o.Lines[0].Subtotal().StringFixed(2))
	assert.Equal(t, "Gas Canister", o.Lines[1].ProductName)

	// Stock decremented by exactly the submitted quantities.
	assert.Equal(t, 3, repo.stock[1].stock)
	assert.Equal(t, 1, repo.stock[2].stock)

	// Persisted.
	stored, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Total, stored.Total)
}

func TestSubmit_TotalIgnoresClientPrices(t *testing.T) {
	// The service never sees client-side prices; the total always comes
	// from the catalog snapshot returned by the reservation.
	repo := newMockRepo(map[int64]*stockEntry{
		7: {name: "Ice Bag 5kg", price: price("0.10"), stock: 100},
	})
	svc := NewService(repo)

	o, err := svc.Submit(context.Background(), validSubmit(CartLine{ProductID: 7, Quantity: 3}))
	require.NoError(t, err)
	assert.Equal(t, "0.30", o.Total.StringFixed(2))
}

func TestSubmit_EmptyCart(t *testing.T) {
	svc := NewService(newMockRepo(nil))

	_, err := svc.Submit(context.Background(), validSubmit())
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestSubmit_InvalidQuantity(t *testing.T) {
	repo := newMockRepo(catalogWaterAndGas())
	svc := NewService(repo)

	_, err := svc.Submit(context.Background(), validSubmit(CartLine{ProductID: 1, Quantity: 0}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	var rErr *ReservationError
	require.ErrorAs(t, err, &rErr)
	assert.Equal(t, int64(1), rErr.ProductID)
	assert.Equal(t, 5, repo.stock[1].stock)
}

func TestSubmit_InvalidDelivery(t *testing.T) {
	svc := NewService(newMockRepo(catalogWaterAndGas()))

	for _, delivery := range []DeliveryInfo{
		{},
		{Kind: DeliveryLocation},
		{Kind: "pigeon", Value: "rooftop"},
	} {
		req := validSubmit(CartLine{ProductID: 1, Quantity: 1})
		req.Delivery = delivery
		_, err := svc.Submit(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidDelivery)
	}
}

func TestSubmit_InvalidPayment(t *testing.T) {
	svc := NewService(newMockRepo(catalogWaterAndGas()))
	change := price("50.00")
	negChange := price("-1.00")

	for name, payment := range map[string]PaymentInfo{
		"unknown method":      {Method: "cheque"},
		"change on card":      {Method: PaymentCard, ChangeDue: &change},
		"change on pix":       {Method: PaymentPix, ChangeDue: &change},
		"non-positive change": {Method: PaymentCash, ChangeDue: &negChange},
	} {
		req := validSubmit(CartLine{ProductID: 1, Quantity: 1})
		req.Payment = payment
		_, err := svc.Submit(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidPayment, name)
	}
}

func TestSubmit_CashWithChange(t *testing.T) {
	repo := newMockRepo(catalogWaterAndGas())
	svc := NewService(repo)
	change := price("100.00")

	req := validSubmit(CartLine{ProductID: 1, Quantity: 1})
	req.Payment = CashPayment(&change)

	o, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, o.Payment.ChangeDue)
	assert.Equal(t, "100.00", o.Payment.ChangeDue.StringFixed(2))
}

func TestSubmit_OutOfStockAbortsEverything(t *testing.T) {
	repo := newMockRepo(catalogWaterAndGas())
	svc := NewService(repo)

	// First line fits, second exceeds stock: the whole unit rolls back.
	_, err := svc.Submit(context.Background(), validSubmit(
		CartLine{ProductID: 1, Quantity: 2},
		CartLine{ProductID: 2, Quantity: 3},
	))
	require.Error(t, err)

	var rErr *ReservationError
	require.ErrorAs(t, err, &rErr)
	assert.Equal(t, int64(2), rErr.ProductID)

	var oosErr *product.OutOfStockError
	assert.ErrorAs(t, err, &oosErr)

	// No partial effects: stock untouched, no order stored.
	assert.Equal(t, 5, repo.stock[1].stock)
	assert.Equal(t, 2, repo.stock[2].stock)
	assert.Empty(t, repo.orders)
}

func TestSubmit_ProductNotFound(t *testing.T) {
	repo := newMockRepo(catalogWaterAndGas())
	svc := NewService(repo)

	_, err := svc.Submit(context.Background(), validSubmit(CartLine{ProductID: 99, Quantity: 1}))
	require.Error(t, err)
	assert.ErrorIs(t, err, product.ErrNotFound)

	var rErr *ReservationError
	require.ErrorAs(t, err, &rErr)
	assert.Equal(t, int64(99), rErr.ProductID)
	assert.Empty(t, repo.orders)
}

func TestSubmit_CreateFailureRollsBackStock(t *testing.T) {
	repo := newMockRepo(catalogWaterAndGas())
	repo.createErr = errors.New("connection lost")
	svc := NewService(repo)

	_, err := svc.Submit(context.Background(), validSubmit(CartLine{ProductID: 1, Quantity: 2}))
	require.Error(t, err)
	assert.Equal(t, 5, repo.stock[1].stock)
	assert.Empty(t, repo.orders)
}

// --- MarkPrinted ---

func TestMarkPrinted(t *testing.T) {
	repo := newMockRepo(catalogWaterAndGas())
	svc := NewService(repo)

	o, err := svc.Submit(context.Background(), validSubmit(CartLine{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)

	require.NoError(t, svc.MarkPrinted(context.Background(), o.ID))
	stored, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPrinted, stored.Status)

	// Second print attempt is reported, not repeated.
	err = svc.MarkPrinted(context.Background(), o.ID)
	assert.ErrorIs(t, err, ErrAlreadyPrinted)
	assert.Equal(t, StatusPrinted, stored.Status)
}

func TestMarkPrinted_NotFound(t *testing.T) {
	svc := NewService(newMockRepo(nil))

	err := svc.MarkPrinted(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- ClearHistory ---

func TestClearHistory_All(t *testing.T) {
	repo := newMockRepo(catalogWaterAndGas())
	svc := NewService(repo)

	_, err := svc.Submit(context.Background(), validSubmit(CartLine{ProductID: 1, Quantity: 1}))
	require.NoError(t, err)

	n, err := svc.ClearHistory(context.Background(), ScopeAll)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, repo.deletedAll)
	assert.Empty(t, repo.orders)

	// Deleting history never reverses stock.
	assert.Equal(t, 4, repo.stock[1].stock)
}

func TestClearHistory_TodayUsesLocalMidnight(t *testing.T) {
	repo := newMockRepo(nil)
	svc := NewService(repo)
	svc.now = func() time.Time {
		return time.Date(2025, 3, 14, 15, 9, 26, 0, time.Local)
	}

	_, err := svc.ClearHistory(context.Background(), ScopeToday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.Local), repo.deletedSince)
}

func TestPruneBefore(t *testing.T) {
	repo := newMockRepo(nil)
	svc := NewService(repo)
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.PruneBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, cutoff, repo.deletedBefore)
}
