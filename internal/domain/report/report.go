// Package report provides read-only aggregates over the order store for
// the staff dashboard.
package report

import "context"

// DeliveryCount is the number of orders destined for one delivery
// descriptor value.
type DeliveryCount struct {
	Delivery string
	Count    int64
}

// Summary is the dashboard snapshot. All counts are zero, and ByDelivery
// empty, when no orders exist.
type Summary struct {
	Total      int64
	Pending    int64
	Printed    int64
	ByDelivery []DeliveryCount
}

// Repository defines the read-only reporting queries.
type Repository interface {
	// Summary returns order counts in total, by status, and grouped by
	// delivery descriptor ordered by descending count.
	Summary(ctx context.Context) (*Summary, error)
}
