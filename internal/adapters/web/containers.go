package web

import (
	"net/http"

	"logistics-backend/internal/app"
	"logistics-backend/internal/core"
)

// apiCreateContainer handles POST /api/containers.
// An omitted code draws the next #C-NNNNN code.
func (h *Handler) apiCreateContainer(w http.ResponseWriter, r *http.Request) {
	var req app.CreateContainerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateContainer(r.Context(), actorFrom(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Container)
}

// apiListContainers handles GET /api/containers?status=&customer_id=&warehouse_id=.
func (h *Handler) apiListContainers(w http.ResponseWriter, r *http.Request) {
	var filter core.ContainerFilter
	if !queryInts(w, r, map[string]*int{
		"customer_id":  &filter.AssignedCustomerID,
		"warehouse_id": &filter.WarehouseID,
	}) {
		return
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := core.ParseContainerStatus(s)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		filter.Status = status
	}

	result, err := h.svc.ListContainers(r.Context(), actorFrom(r), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, nonNil(result.Containers))
}

// apiGetContainer handles GET /api/containers/{id}.
func (h *Handler) apiGetContainer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetContainer(r.Context(), actorFrom(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Container)
}

// apiUpdateContainerStatus handles PATCH /api/containers/{id}/status.
func (h *Handler) apiUpdateContainerStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.UpdateContainerStatus(r.Context(), actorFrom(r), id, req.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Container)
}

// apiUpdateContainerFees handles PATCH /api/containers/{id}/fees.
func (h *Handler) apiUpdateContainerFees(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.ContainerFeesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.UpdateContainerFees(r.Context(), actorFrom(r), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Container)
}

// apiTransferContainerWarehouse handles POST /api/containers/{id}/transfer-warehouse.
// Body: { new_warehouse_id }
func (h *Handler) apiTransferContainerWarehouse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.ContainerWarehouseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.TransferContainerWarehouse(r.Context(), actorFrom(r), id, req.NewWarehouseID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Container)
}

// apiAssignContainerProduct handles POST /api/containers/{id}/products.
// Body: { product_id }
func (h *Handler) apiAssignContainerProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.ContainerProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	product, err := h.svc.AssignProductToContainer(r.Context(), actorFrom(r), id, req.ProductID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, product)
}

// apiDeleteContainer handles DELETE /api/containers/{id}.
func (h *Handler) apiDeleteContainer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteContainer(r.Context(), actorFrom(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
