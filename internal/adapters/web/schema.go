package web

import (
	"encoding/json"
	"net/http"
	"reflect"

	"logistics-backend/internal/app"

	"github.com/go-chi/chi/v5"
	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

// requestSchemas reflects every request body once at startup.
func requestSchemas() map[string]*jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == decimalType {
				return &jsonschema.Schema{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`}
			}
			return nil
		},
	}
	bodies := map[string]any{
		"login":                        app.LoginRequest{},
		"product":                      app.CreateProductRequest{},
		"warehouse":                    app.CreateWarehouseRequest{},
		"supplier":                     app.CreateSupplierRequest{},
		"receive-stock":                app.ReceiveStockRequest{},
		"transfer":                     app.TransferRequest{},
		"shipment":                     app.CreateShipmentRequest{},
		"status":                       app.StatusRequest{},
		"container":                    app.CreateContainerRequest{},
		"container-fees":               app.ContainerFeesRequest{},
		"container-transfer-warehouse": app.ContainerWarehouseRequest{},
		"container-product":            app.ContainerProductRequest{},
		"delivery-task":                app.CreateDeliveryTaskRequest{},
		"delivery-assign":              app.AssignDispatcherRequest{},
		"delivery-status":              app.DeliveryStatusRequest{},
		"delivery-proof":               app.MarkDeliveredRequest{},
	}
	out := make(map[string]*jsonschema.Schema, len(bodies))
	for name, v := range bodies {
		out[name] = reflector.Reflect(v)
	}
	return out
}

// apiSchema handles GET /api/schema/{name}.
func (h *Handler) apiSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	schema, ok := h.schemas[name]
	if !ok {
		writeError(w, r, "unknown schema "+name, "NOT_FOUND", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	_ = json.NewEncoder(w).Encode(schema)
}
