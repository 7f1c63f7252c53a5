package web

import (
	"net/http"

	"logistics-backend/internal/app"
	"logistics-backend/internal/core"
)

// apiCreateShipment handles POST /api/shipments.
// Body: { customer_id, origin_warehouse_id, destination_address, items: [{product_id, quantity}], ... }
func (h *Handler) apiCreateShipment(w http.ResponseWriter, r *http.Request) {
	var req app.CreateShipmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateShipment(r.Context(), actorFrom(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Shipment)
}

// apiListShipments handles GET /api/shipments?status=&customer_id=&limit=.
func (h *Handler) apiListShipments(w http.ResponseWriter, r *http.Request) {
	var filter core.ShipmentFilter
	if !queryInts(w, r, map[string]*int{
		"customer_id": &filter.CustomerID,
		"limit":       &filter.Limit,
	}) {
		return
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status, err := core.ParseShipmentStatus(s)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		filter.Status = status
	}

	result, err := h.svc.ListShipments(r.Context(), actorFrom(r), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, nonNil(result.Shipments))
}

// apiGetShipment handles GET /api/shipments/{id}.
func (h *Handler) apiGetShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetShipment(r.Context(), actorFrom(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Shipment)
}

// apiUpdateShipmentStatus handles PATCH /api/shipments/{id}/status.
// Body: { status }
func (h *Handler) apiUpdateShipmentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.UpdateShipmentStatus(r.Context(), actorFrom(r), id, req.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Shipment)
}
