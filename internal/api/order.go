package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/rdistribuidora/storefront/internal/domain/order"
	"github.com/rdistribuidora/storefront/internal/domain/product"
	"github.com/rdistribuidora/storefront/internal/printer"
	"github.com/rdistribuidora/storefront/internal/receipt"
)

// maxOrderBody bounds order submission payloads at 256 KiB.
const maxOrderBody = 256 << 10

// SubmitOrder decodes the cart payload, delegates to the order service,
// and maps the result or error to a response.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxOrderBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body")
		return
	}

	req, err := decodeSubmitRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed order payload: "+err.Error())
		return
	}

	o, err := h.orders.Submit(r.Context(), *req)
	if err != nil {
		h.writeSubmitError(w, r, err)
		return
	}

	h.ordersSubmitted.Add(r.Context(), 1)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, *o) })
}

// ListOrders returns orders filtered by the status query parameter,
// defaulting to the pending queue staff review first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := order.StatusPending
	if v := r.URL.Query().Get("status"); v != "" {
		status = order.Status(v)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "unknown status "+v)
			return
		}
	}

	orders, err := h.orders.ListByStatus(r.Context(), status)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, o := range orders {
				encodeOrder(e, o)
			}
		})
	})
}

// OrderReceipt renders an order in the requested format. The thermal
// variant is served as a raw byte stream, the document variant as an HTML
// page for the browser print dialog.
func (h *Handler) OrderReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	format := receipt.FormatDocument
	if v := r.URL.Query().Get("format"); v != "" {
		format = receipt.Format(v)
	}

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	out, err := receipt.Render(o, format)
	if err != nil {
		if errors.Is(err, receipt.ErrUnknownFormat) {
			writeError(w, http.StatusBadRequest, "unknown receipt format")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	switch format {
	case receipt.FormatThermal:
		w.Header().Set("Content-Type", "application/octet-stream")
	default:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// PrintOrder renders the thermal receipt, sends it to the printer device,
// and marks the order printed. A second print reports a conflict instead
// of printing again.
func (h *Handler) PrintOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}
	if o.Status == order.StatusPrinted {
		writeError(w, http.StatusConflict, "order already printed")
		return
	}

	payload, err := receipt.Render(o, receipt.FormatThermal)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if err := h.printer.Print(r.Context(), payload); err != nil {
		if errors.Is(err, printer.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, "no printer configured")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	if err := h.orders.MarkPrinted(r.Context(), id); err != nil {
		if errors.Is(err, order.ErrAlreadyPrinted) {
			writeError(w, http.StatusConflict, "order already printed")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ClearHistory bulk-deletes orders. scope=all|today selects the range;
// alternatively before=<RFC3339> prunes older history.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	var (
		n   int64
		err error
	)
	switch {
	case r.URL.Query().Get("before") != "":
		var cutoff time.Time
		cutoff, err = time.Parse(time.RFC3339, r.URL.Query().Get("before"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "before must be an RFC 3339 timestamp")
			return
		}
		n, err = h.orders.PruneBefore(r.Context(), cutoff)
	case r.URL.Query().Get("scope") == "today":
		n, err = h.orders.ClearHistory(r.Context(), order.ScopeToday)
	case r.URL.Query().Get("scope") == "all", r.URL.Query().Get("scope") == "":
		n, err = h.orders.ClearHistory(r.Context(), order.ScopeAll)
	default:
		writeError(w, http.StatusBadRequest, "scope must be all or today")
		return
	}
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("deleted", func(e *jx.Encoder) { e.Int64(n) })
		})
	})
}

// writeSubmitError maps domain submission errors to HTTP responses.
func (h *Handler) writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrInvalidDelivery),
		errors.Is(err, order.ErrInvalidPayment):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		var oosErr *product.OutOfStockError
		if errors.As(err, &oosErr) {
			writeError(w, http.StatusUnprocessableEntity, oosErr.Error())
			return
		}
		writeInternalError(w, r, err)
	}
}

// decodeSubmitRequest parses the order submission payload:
//
//	{
//	  "cart": [{"product_id": 1, "quantity": 2}],
//	  "delivery": {"kind": "location", "value": "Vila Verde"},
//	  "unit": "12B",
//	  "payment": {"method": "cash", "change_due": "100.00"},
//	  "note": "ring twice"
//	}
func decodeSubmitRequest(body []byte) (*order.SubmitRequest, error) {
	var req order.SubmitRequest

	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "cart":
			return d.Arr(func(d *jx.Decoder) error {
				var line order.CartLine
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "product_id":
						line.ProductID, err = d.Int64()
					case "quantity":
						line.Quantity, err = d.Int()
					default:
						return d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				req.Cart = append(req.Cart, line)
				return nil
			})
		case "delivery":
			return d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "kind":
					var kind string
					kind, err = d.Str()
					req.Delivery.Kind = order.DeliveryKind(kind)
				case "value":
					req.Delivery.Value, err = d.Str()
				default:
					return d.Skip()
				}
				return err
			})
		case "unit":
			var err error
			req.Unit, err = d.Str()
			return err
		case "payment":
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "method":
					method, err := d.Str()
					req.Payment.Method = order.PaymentMethod(method)
					return err
				case "change_due":
					if d.Next() == jx.Null {
						return d.Null()
					}
					raw, err := decodeDecimal(d)
					if err != nil {
						return err
					}
					req.Payment.ChangeDue = &raw
					return nil
				default:
					return d.Skip()
				}
			})
		case "note":
			var err error
			req.Note, err = d.Str()
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, err
	}

	return &req, nil
}

// decodeDecimal accepts a monetary amount encoded either as a JSON string
// or as a JSON number.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	}

	raw, err := d.Raw()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(string(raw))
}

func encodeOrder(e *jx.Encoder, o order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.Format(time.RFC3339)) })
		e.Field("delivery", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("kind", func(e *jx.Encoder) { e.Str(string(o.Delivery.Kind)) })
				e.Field("value", func(e *jx.Encoder) { e.Str(o.Delivery.Value) })
			})
		})
		e.Field("unit", func(e *jx.Encoder) { e.Str(o.Unit) })
		e.Field("payment", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("method", func(e *jx.Encoder) { e.Str(string(o.Payment.Method)) })
				if o.Payment.ChangeDue != nil {
					e.Field("change_due", func(e *jx.Encoder) { e.Str(o.Payment.ChangeDue.StringFixed(2)) })
				}
			})
		})
		e.Field("note", func(e *jx.Encoder) { e.Str(o.Note) })
		e.Field("total", func(e *jx.Encoder) { e.Str(o.Total.StringFixed(2)) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(o.Status)) })
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range o.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_name", func(e *jx.Encoder) { e.Str(l.ProductName) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
						e.Field("unit_price", func(e *jx.Encoder) { e.Str(l.UnitPrice.StringFixed(2)) })
						e.Field("subtotal", func(e *jx.Encoder) { e.Str(l.Subtotal().StringFixed(2)) })
					})
				}
			})
		})
	})
}
