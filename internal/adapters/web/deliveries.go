package web

import (
	"net/http"

	"logistics-backend/internal/app"
	"logistics-backend/internal/core"
)

// apiCreateDeliveryTask handles POST /api/deliveries/tasks.
func (h *Handler) apiCreateDeliveryTask(w http.ResponseWriter, r *http.Request) {
	var req app.CreateDeliveryTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.CreateDeliveryTask(r.Context(), actorFrom(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, result.Task)
}

// apiListDeliveryTasks handles GET /api/deliveries/tasks?shipment_id=&dispatcher_id=&status=&active=&limit=.
func (h *Handler) apiListDeliveryTasks(w http.ResponseWriter, r *http.Request) {
	var filter core.DeliveryTaskFilter
	if !queryInts(w, r, map[string]*int{
		"shipment_id":   &filter.ShipmentID,
		"dispatcher_id": &filter.DispatcherID,
		"limit":         &filter.Limit,
	}) {
		return
	}
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		status, err := core.ParseDeliveryStatus(s)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		filter.Status = status
	}
	filter.Active = q.Get("active") == "true"

	result, err := h.svc.ListDeliveryTasks(r.Context(), actorFrom(r), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, nonNil(result.Tasks))
}

// apiListMyDeliveryTasks handles GET /api/deliveries/tasks/mine.
func (h *Handler) apiListMyDeliveryTasks(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListMyDeliveryTasks(r.Context(), actorFrom(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, nonNil(result.Tasks))
}

// apiGetDeliveryTask handles GET /api/deliveries/tasks/{id}.
func (h *Handler) apiGetDeliveryTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetDeliveryTask(r.Context(), actorFrom(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Task)
}

// apiAssignDeliveryTask handles POST /api/deliveries/tasks/{id}/assign.
// Body: { dispatcher_id }
func (h *Handler) apiAssignDeliveryTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.AssignDispatcherRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.AssignDeliveryDispatcher(r.Context(), actorFrom(r), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Task)
}

// apiUpdateDeliveryStatus handles PATCH /api/deliveries/tasks/{id}/status.
// Body: { status, dispatcher_notes? }
func (h *Handler) apiUpdateDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.DeliveryStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.UpdateDeliveryStatus(r.Context(), actorFrom(r), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Task)
}

// apiMarkPickedUp handles POST /api/deliveries/tasks/{id}/mark-picked-up.
func (h *Handler) apiMarkPickedUp(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.MarkDeliveryPickedUp(r.Context(), actorFrom(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Task)
}

// apiMarkDelivered handles POST /api/deliveries/tasks/{id}/mark-delivered.
// Body (optional): { recipient_name?, signature_data? }
func (h *Handler) apiMarkDelivered(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req app.MarkDeliveredRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.svc.MarkDeliveryDelivered(r.Context(), actorFrom(r), id, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Task)
}
