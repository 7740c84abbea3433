package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rdistribuidora/storefront/internal/domain/order"
	"github.com/rdistribuidora/storefront/internal/domain/product"
	"github.com/rdistribuidora/storefront/internal/domain/report"
	"github.com/rdistribuidora/storefront/internal/storage/postgres"
)

// setupPool starts a disposable PostgreSQL container, runs migrations, and
// returns a connected pool. Requires Docker; skipped with -short.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed storage tests in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "storefront",
				"POSTGRES_PASSWORD": "storefront",
				"POSTGRES_DB":       "storefront",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://storefront:storefront@%s:%s/storefront?sslmode=disable", host, port.Port())
	pool, err := postgres.NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.RunMigrations(ctx, pool))
	return pool
}

func seedProduct(t *testing.T, repo *postgres.ProductRepository, name, price string, stock int) int64 {
	t.Helper()
	p := &product.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, repo.Create(context.Background(), p))
	return p.ID
}

func submitReq(cart ...order.CartLine) order.SubmitRequest {
	return order.SubmitRequest{
		Cart:     cart,
		Delivery: order.LocationDelivery("Vila Verde"),
		Unit:     "7A",
		Payment:  order.PaymentInfo{Method: order.PaymentPix},
	}
}

func TestStorage(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()

	products := postgres.NewProductRepository(pool)
	orders := postgres.NewOrderRepository(pool)
	reports := postgres.NewReportRepository(pool)
	svc := order.NewService(orders)

	waterID := seedProduct(t, products, "Water 20L", "8.50", 5)
	gasID := seedProduct(t, products, "Gas Canister", "95.00", 2)

	t.Run("product CRUD", func(t *testing.T) {
		p, err := products.Get(ctx, waterID)
		require.NoError(t, err)
		assert.Equal(t, "Water 20L", p.Name)
		assert.Equal(t, 5, p.Stock)

		p.ImageRef = "/uploads/water.png"
		require.NoError(t, products.Update(ctx, p))

		list, err := products.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)

		_, err = products.Get(ctx, 99999)
		assert.ErrorIs(t, err, product.ErrNotFound)
		assert.ErrorIs(t, products.Delete(ctx, 99999), product.ErrNotFound)
	})

	t.Run("empty report", func(t *testing.T) {
		s, err := reports.Summary(ctx)
		require.NoError(t, err)
		assert.Equal(t, &report.Summary{}, s)
	})

	var orderID int64
	t.Run("submit decrements stock and persists", func(t *testing.T) {
		o, err := svc.Submit(ctx, submitReq(
			order.CartLine{ProductID: waterID, Quantity: 2},
			order.CartLine{ProductID: gasID, Quantity: 1},
		))
		require.NoError(t, err)
		orderID = o.ID
		assert.Equal(t, "112.00", o.Total.StringFixed(2))

		water, err := products.Get(ctx, waterID)
		require.NoError(t, err)
		assert.Equal(t, 3, water.Stock)
		gas, err := products.Get(ctx, gasID)
		require.NoError(t, err)
		assert.Equal(t, 1, gas.Stock)

		stored, err := orders.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusPending, stored.Status)
		require.Len(t, stored.Lines, 2)
		assert.Equal(t, "Water 20L", stored.Lines[0].ProductName)
		assert.Equal(t, "8.50", stored.Lines[0].UnitPrice.StringFixed(2))
	})

	t.Run("out of stock aborts atomically", func(t *testing.T) {
		_, err := svc.Submit(ctx, submitReq(
			order.CartLine{ProductID: waterID, Quantity: 1},
			order.CartLine{ProductID: gasID, Quantity: 5},
		))
		require.Error(t, err)

		var oosErr *product.OutOfStockError
		require.ErrorAs(t, err, &oosErr)
		assert.Equal(t, gasID, oosErr.ProductID)

		// First line's reservation rolled back with the rest.
		water, err := products.Get(ctx, waterID)
		require.NoError(t, err)
		assert.Equal(t, 3, water.Stock)

		pending, err := orders.ListByStatus(ctx, order.StatusPending)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})

	t.Run("concurrent submissions never oversell", func(t *testing.T) {
		id := seedProduct(t, products, "Ice Bag 5kg", "10.00", 10)

		var (
			wg   sync.WaitGroup
			errs = make([]error, 2)
		)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = svc.Submit(ctx, submitReq(order.CartLine{ProductID: id, Quantity: 6}))
			}()
		}
		wg.Wait()

		var failed int
		for _, err := range errs {
			if err != nil {
				var oosErr *product.OutOfStockError
				assert.ErrorAs(t, err, &oosErr)
				failed++
			}
		}
		assert.Equal(t, 1, failed, "exactly one of two submissions must fail")

		p, err := products.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 4, p.Stock)
	})

	t.Run("status compare-and-set", func(t *testing.T) {
		require.NoError(t, orders.SetStatus(ctx, orderID, order.StatusPending, order.StatusPrinted))

		err := orders.SetStatus(ctx, orderID, order.StatusPending, order.StatusPrinted)
		var conflict *order.StatusConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, order.StatusPrinted, conflict.Actual)

		err = orders.SetStatus(ctx, 99999, order.StatusPending, order.StatusPrinted)
		assert.ErrorIs(t, err, order.ErrNotFound)

		printed, err := orders.ListByStatus(ctx, order.StatusPrinted)
		require.NoError(t, err)
		require.Len(t, printed, 1)
		assert.Equal(t, orderID, printed[0].ID)
	})

	t.Run("report counts", func(t *testing.T) {
		s, err := reports.Summary(ctx)
		require.NoError(t, err)
		assert.Equal(t, s.Pending+s.Printed, s.Total)
		assert.Equal(t, int64(1), s.Printed)
		require.NotEmpty(t, s.ByDelivery)
		assert.Equal(t, "Vila Verde", s.ByDelivery[0].Delivery)
	})

	t.Run("clear history cascades to lines", func(t *testing.T) {
		n, err := orders.DeleteBefore(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, n, "all orders are recent")

		n, err = orders.DeleteAll(ctx)
		require.NoError(t, err)
		assert.NotZero(t, n)

		var lines int64
		require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM order_lines").Scan(&lines))
		assert.Zero(t, lines)

		// History clearing never touches stock.
		water, err := products.Get(ctx, waterID)
		require.NoError(t, err)
		assert.Equal(t, 3, water.Stock)
	})
}
