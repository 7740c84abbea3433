package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ReservationError tags a failed stock reservation with the offending
// product, so callers can tell the customer which cart line to fix.
type ReservationError struct {
	ProductID int64
	Err       error
}

func (e *ReservationError) Error() string {
	return fmt.Sprintf("reserve product %d: %v", e.ProductID, e.Err)
}

func (e *ReservationError) Unwrap() error { return e.Err }

// SubmitRequest holds the input for submitting an order.
type SubmitRequest struct {
	Cart     []CartLine
	Delivery DeliveryInfo
	Unit     string
	Payment  PaymentInfo
	Note     string
}

// HistoryScope selects which orders ClearHistory removes.
type HistoryScope int

const (
	// ScopeAll removes every order.
	ScopeAll HistoryScope = iota
	// ScopeToday removes orders created since local midnight.
	ScopeToday
)

// Service implements order submission and lifecycle transitions on top of
// the transactional order repository.
type Service struct {
	orders Repository
	now    func() time.Time
}

// NewService creates an order Service.
func NewService(orders Repository) *Service {
	return &Service{orders: orders, now: time.Now}
}

// Submit validates the cart, reserves stock for every line, and persists
// the order with its line items in one atomic unit of work. Either all
// reservations, the order header, and all lines commit together, or
// nothing is persisted at all.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Order, error) {
	if len(req.Cart) == 0 {
		return nil, ErrEmptyCart
	}
	for _, line := range req.Cart {
		if line.Quantity <= 0 {
			return nil, &ReservationError{ProductID: line.ProductID, Err: ErrInvalidQuantity}
		}
	}
	if err := req.Delivery.Validate(); err != nil {
		return nil, err
	}
	if err := req.Payment.Validate(); err != nil {
		return nil, err
	}

	o := &Order{
		Delivery: req.Delivery,
		Unit:     req.Unit,
		Payment:  req.Payment,
		Note:     req.Note,
		Status:   StatusPending,
	}

	err := s.orders.InTx(ctx, func(tx Tx) error {
		total := decimal.Zero
		lines := make([]Line, 0, len(req.Cart))

		// Every reservation locks its product row, so concurrent
		// submissions against the same product serialize here; a failed
		// reservation aborts the whole unit.
		for _, cl := range req.Cart {
			snap, err := tx.Reserve(ctx, cl.ProductID, cl.Quantity)
			if err != nil {
				return &ReservationError{ProductID: cl.ProductID, Err: err}
			}

			line := Line{
				ProductName: snap.Name,
				Quantity:    cl.Quantity,
				UnitPrice:   snap.Price,
			}
			lines = append(lines, line)
			total = total.Add(line.Subtotal())
		}

		o.Lines = lines
		o.Total = total.Round(2)

		return tx.CreateOrder(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	return o, nil
}

// Get returns one order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.orders.Get(ctx, id)
}

// ListByStatus returns orders in the given status, newest first, with
// lines attached.
func (s *Service) ListByStatus(ctx context.Context, status Status) ([]Order, error) {
	return s.orders.ListByStatus(ctx, status)
}

// MarkPrinted transitions the order PENDING -> PRINTED. Re-printing an
// already printed order is reported as ErrAlreadyPrinted and changes
// nothing; the compare-and-set in the repository prevents lost updates
// when two staff members print concurrently.
func (s *Service) MarkPrinted(ctx context.Context, id int64) error {
	err := s.orders.SetStatus(ctx, id, StatusPending, StatusPrinted)
	if err == nil {
		return nil
	}
	var conflict *StatusConflictError
	if errors.As(err, &conflict) && conflict.Actual == StatusPrinted {
		return ErrAlreadyPrinted
	}
	return err
}

// ClearHistory bulk-deletes orders in scope, cascading to their lines.
// Product stock is untouched: clearing history never reverses inventory.
func (s *Service) ClearHistory(ctx context.Context, scope HistoryScope) (int64, error) {
	switch scope {
	case ScopeAll:
		return s.orders.DeleteAll(ctx)
	case ScopeToday:
		now := s.now()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		return s.orders.DeleteSince(ctx, midnight)
	default:
		return 0, errors.Errorf("unknown history scope %d", scope)
	}
}

// PruneBefore removes orders created before t, for periodic archival of
// old history.
func (s *Service) PruneBefore(ctx context.Context, t time.Time) (int64, error) {
	return s.orders.DeleteBefore(ctx, t)
}
