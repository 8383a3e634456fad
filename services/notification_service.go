package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/food-delivery/metrics"
	"github.com/yeremiapane/food-delivery/models"
	"github.com/yeremiapane/food-delivery/utils"
)

// NotificationListLimit caps every pull to the most recent entries.
const NotificationListLimit = 50

// notificationNamespace seeds the name-based UUIDs derived from idempotency keys.
var notificationNamespace = uuid.MustParse("6f1c9a52-3b8e-4d0a-9a57-2e4a8f0c7d11")

// LivePusher delivers a stored notification to whatever live connections the
// recipient has. It must not block on slow connections.
type LivePusher interface {
	PushNotification(ctx context.Context, recipientID uint, n models.Notification) error
}

type NotificationService struct {
	DB     *gorm.DB
	Pusher LivePusher
}

func NewNotificationService(db *gorm.DB, pusher LivePusher) *NotificationService {
	return &NotificationService{DB: db, Pusher: pusher}
}

// IdempotencyKey identifies one (order, recipient, new status) notification.
func IdempotencyKey(orderID, recipientID uint, label string) string {
	return fmt.Sprintf("%d:%d:%s", orderID, recipientID, label)
}

// NotificationID is the id a notification with the given key always gets.
func NotificationID(key string) string {
	return uuid.NewSHA1(notificationNamespace, []byte(key)).String()
}

// HandleOrderEvent persists one notification per recipient and pushes the new ones.
// Replayed events hit the unique key and are neither stored nor pushed again.
func (s *NotificationService) HandleOrderEvent(ctx context.Context, ev OrderEvent) error {
	var errs []error
	for _, recipient := range ev.Recipients() {
		n := BuildNotification(ev, recipient)

		created, err := s.record(ctx, &n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !created {
			metrics.NotificationsDeduplicated.Inc()
			continue
		}
		metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()

		if s.Pusher == nil {
			continue
		}
		if err := s.Pusher.PushNotification(ctx, recipient, n); err != nil {
			// The row is already durable; the client catches up on its next pull.
			utils.ErrorLogger.WithFields(logrus.Fields{
				"recipient_id":    recipient,
				"notification_id": n.ID,
			}).Errorf("live push failed: %v", err)
		}
	}
	return errors.Join(errs...)
}

func (s *NotificationService) record(ctx context.Context, n *models.Notification) (bool, error) {
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(n)
	if res.Error != nil {
		return false, fmt.Errorf("%w: store notification %s: %v", ErrStoreUnavailable, n.IdempotencyKey, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// BuildNotification renders the notification a recipient gets for an event.
func BuildNotification(ev OrderEvent, recipientID uint) models.Notification {
	n := models.Notification{
		RecipientID: recipientID,
		OrderID:     ev.OrderID,
		Timestamp:   ev.OccurredAt,
	}

	if ev.Kind == EventDeliveryAssigned {
		n.Type = models.NotificationDeliveryAssigned
		n.Message = fmt.Sprintf("A delivery partner has been assigned to order #%d", ev.OrderID)
		n.IdempotencyKey = IdempotencyKey(ev.OrderID, recipientID, "assigned")
	} else {
		oldStatus, newStatus := ev.OldStatus, ev.NewStatus
		n.OldStatus = &oldStatus
		n.NewStatus = &newStatus
		n.Type = models.NotificationStatusUpdate
		if newStatus == models.StatusConfirmed {
			n.Type = models.NotificationOrderConfirmed
		}
		n.Message = statusMessage(ev.OrderID, newStatus)
		n.IdempotencyKey = IdempotencyKey(ev.OrderID, recipientID, string(newStatus))
	}

	n.ID = NotificationID(n.IdempotencyKey)
	return n
}

func statusMessage(orderID uint, status models.OrderStatus) string {
	switch status {
	case models.StatusConfirmed:
		return fmt.Sprintf("Order #%d has been confirmed by the restaurant", orderID)
	case models.StatusPrepared:
		return fmt.Sprintf("Order #%d is prepared and waiting for pickup", orderID)
	case models.StatusDelivering:
		return fmt.Sprintf("Order #%d is on its way", orderID)
	case models.StatusDelivered:
		return fmt.Sprintf("Order #%d has been delivered", orderID)
	case models.StatusCancelled:
		return fmt.Sprintf("Order #%d has been cancelled", orderID)
	default:
		return fmt.Sprintf("Order #%d is now %s", orderID, status)
	}
}

// List returns the recipient's most recent notifications, newest first.
func (s *NotificationService) List(ctx context.Context, recipientID uint) ([]models.Notification, error) {
	notifications := make([]models.Notification, 0)
	err := s.DB.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("sent_at DESC").
		Order("id DESC").
		Limit(NotificationListLimit).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list notifications: %v", ErrStoreUnavailable, err)
	}
	return notifications, nil
}

func (s *NotificationService) HasUnread(ctx context.Context, recipientID uint) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: unread probe: %v", ErrStoreUnavailable, err)
	}
	return count > 0, nil
}

// MarkRead flips one notification owned by the recipient.
func (s *NotificationService) MarkRead(ctx context.Context, recipientID uint, id string) error {
	var n models.Notification
	err := s.DB.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: notification %s", ErrNotFound, id)
		}
		return fmt.Errorf("%w: mark read: %v", ErrStoreUnavailable, err)
	}
	if n.Read {
		return nil
	}
	if err := s.DB.WithContext(ctx).Model(&n).Update("is_read", true).Error; err != nil {
		return fmt.Errorf("%w: mark read: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// MarkAllRead empties the recipient's unread queue and reports how many rows changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("%w: mark all read: %v", ErrStoreUnavailable, res.Error)
	}
	return res.RowsAffected, nil
}

// Clear is the client's "clear" action. Rows are kept as history and simply leave
// the unread queue, so a later pull cannot resurrect them as new.
func (s *NotificationService) Clear(ctx context.Context, recipientID uint) (int64, error) {
	return s.MarkAllRead(ctx, recipientID)
}

// PurgeOlderThan deletes read notifications older than the cutoff.
func (s *NotificationService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("is_read = ? AND sent_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("%w: purge notifications: %v", ErrStoreUnavailable, res.Error)
	}
	return res.RowsAffected, nil
}
