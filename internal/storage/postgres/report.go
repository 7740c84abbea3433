package postgres

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rdistribuidora/storefront/internal/domain/order"
	"github.com/rdistribuidora/storefront/internal/domain/report"
)

const dialectPostgres = "postgres"

var _ report.Repository = (*ReportRepository)(nil)

// ReportRepository implements the read-only dashboard queries. Statements
// are built with goqu so the grouping and filtering stay declarative.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository returns a ReportRepository that uses the given pool.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// Summary returns the dashboard aggregate: order counts in total, per
// status, and per delivery descriptor (descending). An empty order set
// yields zero counts, not an error.
func (r *ReportRepository) Summary(ctx context.Context) (*report.Summary, error) {
	s := &report.Summary{}

	countsSQL, countsArgs, err := goqu.Dialect(dialectPostgres).
		From("orders").
		Select(
			goqu.COUNT(goqu.Star()),
			goqu.COUNT(goqu.Case().When(goqu.C("status").Eq(string(order.StatusPending)), 1)),
			goqu.COUNT(goqu.Case().When(goqu.C("status").Eq(string(order.StatusPrinted)), 1)),
		).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building counts query: %w", err)
	}

	err = r.pool.QueryRow(ctx, countsSQL, countsArgs...).Scan(&s.Total, &s.Pending, &s.Printed)
	if err != nil {
		return nil, fmt.Errorf("counting orders: %w", err)
	}

	bySQL, byArgs, err := goqu.Dialect(dialectPostgres).
		From("orders").
		Select(goqu.C("delivery_value"), goqu.COUNT(goqu.Star()).As("total")).
		GroupBy(goqu.C("delivery_value")).
		Order(goqu.I("total").Desc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building delivery grouping query: %w", err)
	}

	rows, err := r.pool.Query(ctx, bySQL, byArgs...)
	if err != nil {
		return nil, fmt.Errorf("grouping orders by delivery: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dc report.DeliveryCount
		if err := rows.Scan(&dc.Delivery, &dc.Count); err != nil {
			return nil, fmt.Errorf("scanning delivery count: %w", err)
		}
		s.ByDelivery = append(s.ByDelivery, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("grouping orders by delivery: %w", err)
	}

	return s, nil
}
