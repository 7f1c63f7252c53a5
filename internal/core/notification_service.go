package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationChannel is how a notification reaches its recipient.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "EMAIL"
	ChannelPush  NotificationChannel = "PUSH"
	ChannelInApp NotificationChannel = "IN_APP"
)

// NotificationStatus is the delivery state of a notification.
type NotificationStatus string

const (
	NotificationPending  NotificationStatus = "PENDING"
	NotificationSent     NotificationStatus = "SENT"
	NotificationFailed   NotificationStatus = "FAILED"
	NotificationRead     NotificationStatus = "READ"
	NotificationArchived NotificationStatus = "ARCHIVED"
)

// Notification is a message addressed to one user.
type Notification struct {
	ID             int64               `json:"id"`
	RecipientID    int                 `json:"recipient_id"`
	RecipientEmail string              `json:"recipient_email,omitempty"`
	Title          string              `json:"title"`
	Message        string              `json:"message"`
	Channel        NotificationChannel `json:"channel"`
	Status         NotificationStatus  `json:"status"`
	Related        *RelatedObject      `json:"related,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	SentAt         *time.Time          `json:"sent_at,omitempty"`
	ReadAt         *time.Time          `json:"read_at,omitempty"`
}

// NotificationInput is the input for a new notification.
type NotificationInput struct {
	RecipientID int
	Title       string
	Message     string
	Channel     NotificationChannel
	Related     *RelatedObject
}

// Notifier queues a notification for asynchronous delivery.
type Notifier interface {
	Notify(ctx context.Context, input NotificationInput) error
}

// NotificationService stores notifications and their delivery state.
type NotificationService interface {
	Create(ctx context.Context, input NotificationInput) (*Notification, error)
	Get(ctx context.Context, id int64) (*Notification, error)
	// ListForRecipient returns the newest notifications of one user.
	ListForRecipient(ctx context.Context, recipientID int, unreadOnly bool) ([]Notification, error)
	// MarkDelivered sets SENT or FAILED on a PENDING notification. It reports false when
	// the notification was not pending, so a redelivered queue message is a no-op.
	MarkDelivered(ctx context.Context, id int64, ok bool) (bool, error)
	// MarkRead marks a notification read on behalf of its recipient.
	MarkRead(ctx context.Context, id int64, recipientID int) (*Notification, error)
}

type notificationService struct {
	pool *pgxpool.Pool
}

// NewNotificationService constructs a NotificationService backed by PostgreSQL.
func NewNotificationService(pool *pgxpool.Pool) NotificationService {
	return &notificationService{pool: pool}
}

const notificationSelect = `
	SELECT n.id, n.recipient_id, COALESCE(u.email, ''), n.title, n.message, n.channel, n.status,
	       n.entity_kind, n.entity_id, n.created_at, n.sent_at, n.read_at
	FROM notifications n
	LEFT JOIN users u ON u.id = n.recipient_id`

func scanNotification(row pgx.Row, n *Notification) error {
	var kind *string
	var entityID *int
	err := row.Scan(&n.ID, &n.RecipientID, &n.RecipientEmail, &n.Title, &n.Message, &n.Channel, &n.Status,
		&kind, &entityID, &n.CreatedAt, &n.SentAt, &n.ReadAt)
	if err != nil {
		return err
	}
	if kind != nil && entityID != nil {
		n.Related = &RelatedObject{Kind: EntityKind(*kind), ID: *entityID}
	}
	return nil
}

func (s *notificationService) Create(ctx context.Context, input NotificationInput) (*Notification, error) {
	if input.RecipientID <= 0 {
		return nil, invalid("recipient_id", "is required")
	}
	if input.Title == "" {
		return nil, invalid("title", "is required")
	}
	switch input.Channel {
	case "":
		input.Channel = ChannelInApp
	case ChannelEmail, ChannelPush, ChannelInApp:
	default:
		return nil, invalid("channel", "unknown channel %q", input.Channel)
	}
	var kind *string
	var entityID *int
	if input.Related != nil {
		if !input.Related.Kind.Valid() {
			return nil, invalid("entity_kind", "unknown entity kind %q", input.Related.Kind)
		}
		k := string(input.Related.Kind)
		kind, entityID = &k, &input.Related.ID
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO notifications (recipient_id, title, message, channel, entity_kind, entity_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		input.RecipientID, input.Title, input.Message, string(input.Channel), kind, entityID,
	).Scan(&id)
	if err != nil {
		if pgErrorCode(err) == pgForeignKeyViolation {
			return nil, notFound("user", input.RecipientID)
		}
		return nil, fmt.Errorf("failed to insert notification: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *notificationService) Get(ctx context.Context, id int64) (*Notification, error) {
	n := &Notification{}
	if err := scanNotification(s.pool.QueryRow(ctx, notificationSelect+" WHERE n.id = $1", id), n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("notification", id)
		}
		return nil, fmt.Errorf("failed to load notification %d: %w", id, err)
	}
	return n, nil
}

func (s *notificationService) ListForRecipient(ctx context.Context, recipientID int, unreadOnly bool) ([]Notification, error) {
	query := notificationSelect + " WHERE n.recipient_id = $1 AND n.status <> 'ARCHIVED'"
	if unreadOnly {
		query += " AND n.read_at IS NULL"
	}
	query += " ORDER BY n.created_at DESC, n.id DESC LIMIT 200"

	rows, err := s.pool.Query(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := scanNotification(rows, &n); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *notificationService) MarkDelivered(ctx context.Context, id int64, ok bool) (bool, error) {
	status := NotificationFailed
	if ok {
		status = NotificationSent
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET status = $1, sent_at = CASE WHEN $2 THEN NOW() ELSE sent_at END
		WHERE id = $3 AND status = 'PENDING'`,
		string(status), ok, id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id int64, recipientID int) (*Notification, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'READ', read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND recipient_id = $2`,
		id, recipientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark notification %d read: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, notFound("notification", id)
	}
	return s.Get(ctx, id)
}
