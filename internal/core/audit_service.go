package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Action verbs written to the audit log.
const (
	ActionStockReceived         = "PRODUCT_STOCK_RECEIVED"
	ActionStockTransferred      = "PRODUCT_STOCK_TRANSFERRED"
	ActionShipmentCreated       = "SHIPMENT_CREATED"
	ActionShipmentStatusChanged = "SHIPMENT_STATUS_CHANGED"
	ActionContainerCreated      = "CONTAINER_CREATED"
	ActionContainerStatus       = "CONTAINER_STATUS_CHANGED"
	ActionContainerFees         = "CONTAINER_FEES_UPDATED"
	ActionContainerWarehouse    = "CONTAINER_WAREHOUSE_TRANSFERRED"
	ActionContainerProduct      = "CONTAINER_PRODUCT_ASSIGNED"
	ActionContainerDeleted      = "CONTAINER_DELETED"
	ActionUserLoggedIn          = "USER_LOGGED_IN"
	ActionProductCreated        = "PRODUCT_CREATED"
	ActionWarehouseCreated      = "WAREHOUSE_CREATED"
	ActionSupplierCreated       = "SUPPLIER_CREATED"
	ActionDeliveryCreated       = "DELIVERY_TASK_CREATED"
	ActionDeliveryAssigned      = "DELIVERY_TASK_ASSIGNED"
	ActionDeliveryStatus        = "DELIVERY_TASK_STATUS_CHANGED"
)

// ActionLog is one audit entry.
type ActionLog struct {
	ID           int64          `json:"id"`
	UserID       *int           `json:"user_id,omitempty"`
	UserEmail    string         `json:"user_email,omitempty"`
	ActionVerb   string         `json:"action_verb"`
	Related      *RelatedObject `json:"related,omitempty"`
	RelatedLabel string         `json:"related_label,omitempty"`
	Details      map[string]any `json:"details"`
	IPAddress    string         `json:"ip_address,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ActionFilter narrows ListActions. Zero values match everything.
type ActionFilter struct {
	UserID     int
	ActionVerb string
	Related    *RelatedObject
	Limit      int
}

// ActionLogger records who did what to which entity.
// Record never fails the caller: write errors are logged and dropped.
type ActionLogger interface {
	Record(ctx context.Context, userID *int, verb string, related *RelatedObject, details map[string]any)
	ListActions(ctx context.Context, filter ActionFilter) ([]ActionLog, error)
}

type clientIPKey struct{}

// WithClientIP attaches the caller's address to ctx for audit entries.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIPFromContext returns the address stored by WithClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey{}).(string)
	return v
}

const auditWriteTimeout = 3 * time.Second

type actionLogger struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewActionLogger constructs a PostgreSQL-backed ActionLogger.
func NewActionLogger(pool *pgxpool.Pool, log *zap.Logger) ActionLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &actionLogger{pool: pool, log: log}
}

func (a *actionLogger) Record(ctx context.Context, userID *int, verb string, related *RelatedObject, details map[string]any) {
	// The request may already be finished; the entry still has to land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if details == nil {
		details = map[string]any{}
	}
	var kind *string
	var entityID *int
	if related != nil {
		k := string(related.Kind)
		kind, entityID = &k, &related.ID
	}

	_, err := a.pool.Exec(ctx, `
		INSERT INTO action_logs (user_id, action_verb, entity_kind, entity_id, details, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, verb, kind, entityID, details, ClientIPFromContext(ctx),
	)
	if err != nil {
		a.log.Warn("failed to write audit entry",
			zap.String("verb", verb), zap.Any("related", related), zap.Error(err))
		return
	}
	a.log.Debug("audit", zap.String("verb", verb), zap.Any("related", related), zap.Intp("user_id", userID))
}

func (a *actionLogger) ListActions(ctx context.Context, filter ActionFilter) ([]ActionLog, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID > 0 {
		add("l.user_id = $%d", filter.UserID)
	}
	if filter.ActionVerb != "" {
		add("l.action_verb = $%d", filter.ActionVerb)
	}
	if filter.Related != nil {
		add("l.entity_kind = $%d", string(filter.Related.Kind))
		add("l.entity_id = $%d", filter.Related.ID)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT l.id, l.user_id, COALESCE(u.email, ''), l.action_verb, l.entity_kind, l.entity_id,
		       l.details, l.ip_address, l.created_at
		FROM action_logs l
		LEFT JOIN users u ON u.id = l.user_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY l.created_at DESC, l.id DESC LIMIT %d", limit)

	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query action logs: %w", err)
	}
	defer rows.Close()

	var logs []ActionLog
	for rows.Next() {
		var l ActionLog
		var kind *string
		var entityID *int
		if err := rows.Scan(&l.ID, &l.UserID, &l.UserEmail, &l.ActionVerb, &kind, &entityID,
			&l.Details, &l.IPAddress, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan action log: %w", err)
		}
		if kind != nil && entityID != nil {
			l.Related = &RelatedObject{Kind: EntityKind(*kind), ID: *entityID}
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action logs: %w", err)
	}

	for i := range logs {
		if logs[i].Related == nil || !logs[i].Related.Kind.Valid() {
			continue
		}
		label, err := resolveLabel(ctx, a.pool, *logs[i].Related)
		if err != nil {
			return nil, err
		}
		logs[i].RelatedLabel = label
	}
	return logs, nil
}
