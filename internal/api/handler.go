// Package api is the thin HTTP adapter over the storefront core: routing,
// JSON (de)serialization, and error envelope mapping. Business rules live
// in the domain packages.
package api

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/rdistribuidora/storefront/internal/domain/order"
	"github.com/rdistribuidora/storefront/internal/domain/product"
	"github.com/rdistribuidora/storefront/internal/domain/report"
	"github.com/rdistribuidora/storefront/internal/imagestore"
	"github.com/rdistribuidora/storefront/internal/printer"
)

// Handler exposes the core's operations over HTTP.
type Handler struct {
	products product.Repository
	orders   *order.Service
	reports  report.Repository
	printer  *printer.Printer
	images   *imagestore.Store

	ordersSubmitted metric.Int64Counter
}

// NewHandler constructs a Handler with the required collaborators. meter
// may come from the ambient telemetry setup; it records the submitted
// order counter.
func NewHandler(
	products product.Repository,
	orders *order.Service,
	reports report.Repository,
	prn *printer.Printer,
	images *imagestore.Store,
	meter metric.Meter,
) (*Handler, error) {
	ordersSubmitted, err := meter.Int64Counter("storefront.orders.submitted",
		metric.WithDescription("Orders accepted by the intake pipeline"),
	)
	if err != nil {
		return nil, err
	}

	return &Handler{
		products:        products,
		orders:          orders,
		reports:         reports,
		printer:         prn,
		images:          images,
		ordersSubmitted: ordersSubmitted,
	}, nil
}

// Routes registers all endpoints on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /products", h.ListProducts)
	mux.HandleFunc("POST /orders", h.SubmitOrder)

	mux.HandleFunc("POST /admin/products", h.CreateProduct)
	mux.HandleFunc("PUT /admin/products/{id}", h.UpdateProduct)
	mux.HandleFunc("DELETE /admin/products/{id}", h.DeleteProduct)

	mux.HandleFunc("GET /admin/orders", h.ListOrders)
	mux.HandleFunc("GET /admin/orders/{id}/receipt", h.OrderReceipt)
	mux.HandleFunc("POST /admin/orders/{id}/print", h.PrintOrder)

	mux.HandleFunc("GET /admin/dashboard", h.Dashboard)
	mux.HandleFunc("DELETE /admin/history", h.ClearHistory)

	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(h.images.Dir()))))

	return mux
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// writeJSON encodes the response produced by fn with a jx encoder.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError emits the {code, message} error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

// writeInternalError logs the unexpected error and hides it from clients.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
