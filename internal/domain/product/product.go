package product

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// OutOfStockError indicates a reservation asked for more units than the
// product has in stock. The failed reservation leaves stock unchanged.
type OutOfStockError struct {
	ProductID int64
	Requested int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("product %d: insufficient stock for %d units", e.ProductID, e.Requested)
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID       int64
	Name     string
	Price    decimal.Decimal
	Stock    int
	ImageRef string
}

// Snapshot is the name and unit price captured at reservation time.
// Order lines store snapshots, never live product references, so editing
// or deleting a product leaves historical orders intact.
type Snapshot struct {
	Name  string
	Price decimal.Decimal
}

// Repository defines persistence operations for the product catalog.
// Stock reservation is deliberately absent here: reserving only happens
// inside an order submission's unit of work (see order.Tx).
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
}
