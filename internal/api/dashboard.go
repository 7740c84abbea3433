package api

import (
	"net/http"

	"github.com/go-faster/jx"
)

// Dashboard returns the staff dashboard summary: order counts and the
// delivery-location leaderboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	s, err := h.reports.Summary(r.Context())
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("total", func(e *jx.Encoder) { e.Int64(s.Total) })
			e.Field("pending", func(e *jx.Encoder) { e.Int64(s.Pending) })
			e.Field("printed", func(e *jx.Encoder) { e.Int64(s.Printed) })
			e.Field("by_delivery", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, dc := range s.ByDelivery {
						e.Obj(func(e *jx.Encoder) {
							e.Field("delivery", func(e *jx.Encoder) { e.Str(dc.Delivery) })
							e.Field("count", func(e *jx.Encoder) { e.Int64(dc.Count) })
						})
					}
				})
			})
		})
	})
}
