package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/rdistribuidora/storefront/internal/domain/product"
)

// Status is the lifecycle state of an order. The only legal transition is
// StatusPending -> StatusPrinted; it is enforced by Repository.SetStatus.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPrinted Status = "PRINTED"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusPrinted
}

// DeliveryKind discriminates the two delivery descriptor variants.
type DeliveryKind string

const (
	// DeliveryLocation is a named community/condominium from the
	// storefront's delivery area.
	DeliveryLocation DeliveryKind = "location"
	// DeliveryOther is a free-text address outside the named locations.
	DeliveryOther DeliveryKind = "other"
)

// DeliveryInfo is a tagged union: exactly one variant is authoritative per
// order. Construct values with LocationDelivery or OtherDelivery.
type DeliveryInfo struct {
	Kind  DeliveryKind
	Value string
}

// LocationDelivery returns a delivery descriptor for a named location.
func LocationDelivery(name string) DeliveryInfo {
	return DeliveryInfo{Kind: DeliveryLocation, Value: name}
}

// OtherDelivery returns a delivery descriptor for a free-text address.
func OtherDelivery(address string) DeliveryInfo {
	return DeliveryInfo{Kind: DeliveryOther, Value: address}
}

// Validate checks that the descriptor carries a recognized kind and a
// non-empty value.
func (d DeliveryInfo) Validate() error {
	if d.Kind != DeliveryLocation && d.Kind != DeliveryOther {
		return ErrInvalidDelivery
	}
	if d.Value == "" {
		return ErrInvalidDelivery
	}
	return nil
}

// PaymentMethod is the closed set of accepted payment methods. Payment is
// recorded, never charged or verified.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
	PaymentPix  PaymentMethod = "pix"
)

// PaymentInfo holds the payment method and, for cash payments only, the
// optional amount the customer will pay with (so the courier brings change).
type PaymentInfo struct {
	Method    PaymentMethod
	ChangeDue *decimal.Decimal
}

// CashPayment returns a cash payment descriptor. changeDue may be nil when
// the customer needs no change.
func CashPayment(changeDue *decimal.Decimal) PaymentInfo {
	return PaymentInfo{Method: PaymentCash, ChangeDue: changeDue}
}

// Validate checks the method is recognized and that a change-due amount is
// only present (and positive) for cash payments.
func (p PaymentInfo) Validate() error {
	switch p.Method {
	case PaymentCash:
		if p.ChangeDue != nil && !p.ChangeDue.IsPositive() {
			return ErrInvalidPayment
		}
	case PaymentCard, PaymentPix:
		if p.ChangeDue != nil {
			return ErrInvalidPayment
		}
	default:
		return ErrInvalidPayment
	}
	return nil
}

// CartLine is one client-supplied cart entry. Only the product id and
// quantity are trusted; name and price are re-read from the catalog during
// reservation.
type CartLine struct {
	ProductID int64
	Quantity  int
}

// Line is one persisted line item of an order. Name and unit price are
// snapshots taken at commit time and are never recomputed.
type Line struct {
	ID          int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// Subtotal returns quantity x unit price.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is a durable customer order with its line items.
type Order struct {
	ID        int64
	CreatedAt time.Time
	Delivery  DeliveryInfo
	Unit      string
	Payment   PaymentInfo
	Note      string
	Total     decimal.Decimal
	Status    Status
	Lines     []Line
}

// Sentinel errors for order validation and lifecycle.
var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrInvalidDelivery = errors.New("delivery descriptor requires a location or an address")
	ErrInvalidPayment  = errors.New("invalid payment info")
	ErrNotFound        = errors.New("order not found")
	ErrAlreadyPrinted  = errors.New("order already printed")
)

// StatusConflictError is returned by SetStatus when the order exists but
// its current status does not match the expected one.
type StatusConflictError struct {
	OrderID int64
	Actual  Status
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("order %d: status is %s", e.OrderID, e.Actual)
}

// Tx is the transactional surface available inside one atomic unit of work
// opened by Repository.InTx. Reservations and the order insert commit or
// roll back together.
type Tx interface {
	// Reserve decrements the product's stock by qty and returns the
	// product's current name and price. It fails with product.ErrNotFound
	// or *product.OutOfStockError without mutating anything; the row lock
	// it takes serializes concurrent reservations on the same product.
	Reserve(ctx context.Context, productID int64, qty int) (product.Snapshot, error)

	// CreateOrder inserts the order header and all lines, assigning
	// o.ID and o.CreatedAt.
	CreateOrder(ctx context.Context, o *Order) error
}

// Repository defines persistence operations for orders.
type Repository interface {
	// InTx runs fn inside a single atomic unit of work. If fn returns an
	// error nothing is persisted.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Get(ctx context.Context, id int64) (*Order, error)
	ListByStatus(ctx context.Context, status Status) ([]Order, error)

	// SetStatus transitions the order from one status to another using a
	// compare-and-set on the current value. Returns ErrNotFound when the
	// order does not exist or *StatusConflictError when the current
	// status differs from the expected one.
	SetStatus(ctx context.Context, id int64, from, to Status) error

	DeleteAll(ctx context.Context) (int64, error)
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
	DeleteSince(ctx context.Context, t time.Time) (int64, error)
}
