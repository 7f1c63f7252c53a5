package web

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"logistics-backend/internal/app"
	"logistics-backend/internal/core"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// apiTransferProduct handles POST /api/products/{id}/transfer.
// Body: { from_warehouse_id, to_warehouse_id, quantity, note? }
func (h *Handler) apiTransferProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ProductID = productID
	h.transfer(w, r, req)
}

// apiCreateTransfer handles POST /api/transfers.
// Body: { product_id, from_warehouse_id, to_warehouse_id, quantity, note? }
func (h *Handler) apiCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req app.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.transfer(w, r, req)
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request, req app.TransferRequest) {
	result, err := h.svc.TransferStock(r.Context(), actorFrom(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Transfer)
}

// apiGetTransfer handles GET /api/transfers/{id}.
func (h *Handler) apiGetTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetTransfer(r.Context(), actorFrom(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Transfer)
}

func transferFilter(w http.ResponseWriter, r *http.Request) (core.TransferFilter, bool) {
	var filter core.TransferFilter
	ok := queryInts(w, r, map[string]*int{
		"product_id":        &filter.ProductID,
		"from_warehouse_id": &filter.FromWarehouseID,
		"to_warehouse_id":   &filter.ToWarehouseID,
		"user_id":           &filter.UserID,
		"limit":             &filter.Limit,
	})
	return filter, ok
}

// apiListTransfers handles GET /api/transfers.
func (h *Handler) apiListTransfers(w http.ResponseWriter, r *http.Request) {
	filter, ok := transferFilter(w, r)
	if !ok {
		return
	}
	result, err := h.svc.ListTransfers(r.Context(), actorFrom(r), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, nonNil(result.Transfers))
}

// apiExportTransfers handles GET /api/transfers/export and returns an XLSX attachment.
// The workbook is buffered so a failure can still be reported as JSON.
func (h *Handler) apiExportTransfers(w http.ResponseWriter, r *http.Request) {
	filter, ok := transferFilter(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.svc.ExportTransfers(r.Context(), actorFrom(r), filter, &buf); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	filename := fmt.Sprintf("transfers_%s.xlsx", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(buf.Bytes())
}
