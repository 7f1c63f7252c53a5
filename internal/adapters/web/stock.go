package web

import (
	"net/http"
	"strings"

	"logistics-backend/internal/app"
	"logistics-backend/internal/core"
)

// apiListWarehouses handles GET /api/warehouses.
func (h *Handler) apiListWarehouses(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListWarehouses(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, nonNil(result.Warehouses))
}

// apiListProducts handles GET /api/products?container_id=&supplier_id=&search=.
func (h *Handler) apiListProducts(w http.ResponseWriter, r *http.Request) {
	var filter core.ProductFilter
	if !queryInts(w, r, map[string]*int{
		"container_id": &filter.ContainerID,
		"supplier_id":  &filter.SupplierID,
	}) {
		return
	}
	filter.Search = strings.TrimSpace(r.URL.Query().Get("search"))

	result, err := h.svc.ListProducts(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, nonNil(result.Products))
}

// apiCreateProduct handles POST /api/products.
// Body: { sku, name, description?, cost_price?, selling_price?, container_id?, supplier_id? }
func (h *Handler) apiCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req app.CreateProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), actorFrom(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, p)
}

// apiCreateWarehouse handles POST /api/warehouses.
func (h *Handler) apiCreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req app.CreateWarehouseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	wh, err := h.svc.CreateWarehouse(r.Context(), actorFrom(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, wh)
}

// apiCreateSupplier handles POST /api/suppliers.
func (h *Handler) apiCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req app.CreateSupplierRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sp, err := h.svc.CreateSupplier(r.Context(), actorFrom(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, sp)
}

// apiListSuppliers handles GET /api/suppliers.
func (h *Handler) apiListSuppliers(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListSuppliers(r.Context(), actorFrom(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, nonNil(result.Suppliers))
}

// apiStockLevels handles GET /api/stock?product_id=&warehouse_id=.
func (h *Handler) apiStockLevels(w http.ResponseWriter, r *http.Request) {
	var filter core.StockFilter
	if !queryInts(w, r, map[string]*int{
		"product_id":   &filter.ProductID,
		"warehouse_id": &filter.WarehouseID,
	}) {
		return
	}

	result, err := h.svc.GetStockLevels(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, nonNil(result.Levels))
}

// apiReceiveStock handles POST /api/stock/receive.
// Body: { product_id, warehouse_id, quantity, note? }
func (h *Handler) apiReceiveStock(w http.ResponseWriter, r *http.Request) {
	var req app.ReceiveStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.svc.ReceiveStock(r.Context(), actorFrom(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, entry)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
