package api

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rdistribuidora/storefront/internal/domain/product"
)

// maxImageUpload bounds product image uploads at 8 MiB.
const maxImageUpload = 8 << 20

// ListProducts returns the whole catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, p := range products {
				encodeProduct(e, p)
			}
		})
	})
}

// CreateProduct adds a catalog entry from a multipart form (name, price,
// stock, optional image file).
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.productFromForm(w, r, nil)
	if !ok {
		return
	}

	if err := h.products.Create(r.Context(), p); err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeProduct(e, *p) })
}

// UpdateProduct overwrites a product's fields. When no new image is
// uploaded the stored reference is kept, matching the admin UI's
// edit-without-reupload flow.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	existing, err := h.products.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	p, ok := h.productFromForm(w, r, existing)
	if !ok {
		return
	}
	p.ID = id

	if err := h.products.Update(r.Context(), p); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, *p) })
}

// DeleteProduct removes a product and its stored image. Historical orders
// keep their snapshots.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	existing, err := h.products.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}

	if existing.ImageRef != "" {
		if err := h.images.Remove(existing.ImageRef); err != nil {
			zctx.From(r.Context()).Warn("Orphaned product image", zap.Error(err))
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// productFromForm parses the multipart product form. existing, when not
// nil, provides the image reference to keep if no file is uploaded. On
// a validation failure it writes the error response and returns ok=false.
func (h *Handler) productFromForm(w http.ResponseWriter, r *http.Request, existing *product.Product) (*product.Product, bool) {
	if err := r.ParseMultipartForm(maxImageUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return nil, false
	}

	name := r.FormValue("name")
	if name == "" {
		writeError(w, http.StatusUnprocessableEntity, "name is required")
		return nil, false
	}

	price, err := decimal.NewFromString(r.FormValue("price"))
	if err != nil || price.IsNegative() {
		writeError(w, http.StatusUnprocessableEntity, "price must be a non-negative decimal")
		return nil, false
	}

	var stock int
	if v := r.FormValue("stock"); v != "" {
		stock, err = strconv.Atoi(v)
		if err != nil || stock < 0 {
			writeError(w, http.StatusUnprocessableEntity, "stock must be a non-negative integer")
			return nil, false
		}
	}

	imageRef := ""
	if existing != nil {
		imageRef = existing.ImageRef
	}
	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		ref, err := h.images.Save(header.Filename, file)
		if err != nil {
			writeInternalError(w, r, err)
			return nil, false
		}
		imageRef = ref
	}

	return &product.Product{
		Name:     name,
		Price:    price,
		Stock:    stock,
		ImageRef: imageRef,
	}, true
}

func encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { e.Str(p.Price.StringFixed(2)) })
		e.Field("stock", func(e *jx.Encoder) { e.Int(p.Stock) })
		e.Field("image", func(e *jx.Encoder) { e.Str(p.ImageRef) })
	})
}
