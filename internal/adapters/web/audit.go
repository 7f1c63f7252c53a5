package web

import (
	"net/http"
	"strconv"

	"logistics-backend/internal/core"
)

// apiListAuditLogs handles GET /api/audit-logs?user_id=&action_verb=&entity_kind=&entity_id=&limit=.
// entity_kind and entity_id narrow to one related object and must be given together.
func (h *Handler) apiListAuditLogs(w http.ResponseWriter, r *http.Request) {
	var (
		filter   core.ActionFilter
		entityID int
	)
	if !queryInts(w, r, map[string]*int{
		"user_id":   &filter.UserID,
		"entity_id": &entityID,
		"limit":     &filter.Limit,
	}) {
		return
	}
	filter.ActionVerb = r.URL.Query().Get("action_verb")

	if kind := r.URL.Query().Get("entity_kind"); kind != "" || entityID > 0 {
		k, err := core.ParseEntityKind(kind)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		if entityID <= 0 {
			writeError(w, r, "entity_id is required with entity_kind", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		filter.Related = core.Ref(k, entityID)
	}

	result, err := h.svc.ListActions(r.Context(), actorFrom(r), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, nonNil(result.Actions))
}

// apiListNotifications handles GET /api/notifications?unread=true.
func (h *Handler) apiListNotifications(w http.ResponseWriter, r *http.Request) {
	unread := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, "invalid unread: must be a boolean", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		unread = v
	}
	result, err := h.svc.ListNotifications(r.Context(), actorFrom(r), unread)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, nonNil(result.Notifications))
}

// apiMarkNotificationRead handles POST /api/notifications/{id}/read.
func (h *Handler) apiMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	n, err := h.svc.MarkNotificationRead(r.Context(), actorFrom(r), int64(id))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, n)
}
