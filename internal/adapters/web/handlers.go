package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"

	"logistics-backend/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"
	"go.uber.org/zap"
)

// Handler holds the ApplicationService and everything the routes share.
type Handler struct {
	svc       app.ApplicationService
	log       *zap.Logger
	jwtSecret string
	schemas   map[string]*jsonschema.Schema
}

// NewHandler creates and wires the chi router with all routes.
// trustedProxies lists the peers whose X-Forwarded-For header is believed.
func NewHandler(svc app.ApplicationService, log *zap.Logger, allowedOrigins, jwtSecret string, trustedProxies []netip.Prefix) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		svc:       svc,
		log:       log,
		jwtSecret: jwtSecret,
		schemas:   requestSchemas(),
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(ClientIP(trustedProxies))
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))

	// ── Public ────────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Get("/api/schema/{name}", h.apiSchema)
	r.With(RequestBodyLimit(1<<20)).Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)

		// Catalog & stock
		r.Get("/api/warehouses", h.apiListWarehouses)
		r.Post("/api/warehouses", h.apiCreateWarehouse)
		r.Get("/api/products", h.apiListProducts)
		r.Post("/api/products", h.apiCreateProduct)
		r.Get("/api/suppliers", h.apiListSuppliers)
		r.Post("/api/suppliers", h.apiCreateSupplier)
		r.Get("/api/stock", h.apiStockLevels)
		r.Post("/api/stock/receive", h.apiReceiveStock)

		// Transfers
		r.Post("/api/products/{id}/transfer", h.apiTransferProduct)
		r.Post("/api/transfers", h.apiCreateTransfer)
		r.Get("/api/transfers", h.apiListTransfers)
		r.Get("/api/transfers/export", h.apiExportTransfers)
		r.Get("/api/transfers/{id}", h.apiGetTransfer)

		// Shipments
		r.Post("/api/shipments", h.apiCreateShipment)
		r.Get("/api/shipments", h.apiListShipments)
		r.Get("/api/shipments/{id}", h.apiGetShipment)
		r.Patch("/api/shipments/{id}/status", h.apiUpdateShipmentStatus)

		// Containers
		r.Post("/api/containers", h.apiCreateContainer)
		r.Get("/api/containers", h.apiListContainers)
		r.Get("/api/containers/{id}", h.apiGetContainer)
		r.Patch("/api/containers/{id}/status", h.apiUpdateContainerStatus)
		r.Patch("/api/containers/{id}/fees", h.apiUpdateContainerFees)
		r.Post("/api/containers/{id}/transfer-warehouse", h.apiTransferContainerWarehouse)
		r.Post("/api/containers/{id}/products", h.apiAssignContainerProduct)
		r.Delete("/api/containers/{id}", h.apiDeleteContainer)

		// Deliveries
		r.Post("/api/deliveries/tasks", h.apiCreateDeliveryTask)
		r.Get("/api/deliveries/tasks", h.apiListDeliveryTasks)
		r.Get("/api/deliveries/tasks/mine", h.apiListMyDeliveryTasks)
		r.Get("/api/deliveries/tasks/{id}", h.apiGetDeliveryTask)
		r.Post("/api/deliveries/tasks/{id}/assign", h.apiAssignDeliveryTask)
		r.Patch("/api/deliveries/tasks/{id}/status", h.apiUpdateDeliveryStatus)
		r.Post("/api/deliveries/tasks/{id}/mark-picked-up", h.apiMarkPickedUp)
		r.Post("/api/deliveries/tasks/{id}/mark-delivered", h.apiMarkDelivered)

		// Audit & notifications
		r.Get("/api/audit-logs", h.apiListAuditLogs)
		r.Get("/api/notifications", h.apiListNotifications)
		r.Post("/api/notifications/{id}/read", h.apiMarkNotificationRead)
	})

	return r
}

// health reports liveness. It does not touch the database.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

// pathID parses a positive integer URL parameter. On failure it writes 400 and returns false.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		writeError(w, r, "invalid "+name+": must be a positive integer", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryInts parses the named query parameters as integers into the given targets.
// Missing parameters leave the target untouched. On failure it writes 400 and returns false.
func queryInts(w http.ResponseWriter, r *http.Request, targets map[string]*int) bool {
	q := r.URL.Query()
	for name, dst := range targets {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, "invalid "+name+": must be a non-negative integer", "BAD_REQUEST", http.StatusBadRequest)
			return false
		}
		*dst = n
	}
	return true
}
