package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/food-delivery/metrics"
	"github.com/yeremiapane/food-delivery/models"
	"github.com/yeremiapane/food-delivery/utils"
)

const (
	defaultTransitionAttempts = 3
	availableOrdersLimit      = 50
)

var claimableStatuses = []string{string(models.StatusConfirmed), string(models.StatusPrepared)}

type CheckoutItem struct {
	MenuID   uint   `json:"menu_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
	Notes    string `json:"notes"`
}

type CheckoutRequest struct {
	RestaurantID    uint           `json:"restaurant_id" binding:"required"`
	DeliveryAddress string         `json:"delivery_address" binding:"required"`
	Items           []CheckoutItem `json:"items" binding:"required"`
}

// OrderService owns every write to an order. All exclusion is done by conditional
// updates in the database so several API instances can run side by side.
type OrderService struct {
	DB          *gorm.DB
	Publisher   *StatusEventPublisher
	MaxAttempts int
	now         func() time.Time
}

func NewOrderService(db *gorm.DB, publisher *StatusEventPublisher) *OrderService {
	if publisher == nil {
		publisher = NewStatusEventPublisher()
	}
	return &OrderService{
		DB:          db,
		Publisher:   publisher,
		MaxAttempts: defaultTransitionAttempts,
		now:         time.Now,
	}
}

// Checkout creates a pending order. Names and prices are copied from the menu so later
// menu edits never change a placed order.
func (s *OrderService) Checkout(ctx context.Context, clientID uint, req CheckoutRequest) (*models.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order has no items", ErrInvalidInput)
	}
	address := strings.TrimSpace(req.DeliveryAddress)
	if address == "" {
		return nil, fmt.Errorf("%w: delivery address is required", ErrInvalidInput)
	}

	var order models.Order
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var restaurant models.Restaurant
		if err := tx.First(&restaurant, req.RestaurantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: restaurant %d", ErrNotFound, req.RestaurantID)
			}
			return err
		}

		now := s.now()
		items := make([]models.OrderItem, 0, len(req.Items))
		for _, it := range req.Items {
			if it.Quantity <= 0 {
				return fmt.Errorf("%w: quantity must be positive for menu %d", ErrInvalidInput, it.MenuID)
			}
			var menu models.Menu
			if err := tx.Where("id = ? AND restaurant_id = ?", it.MenuID, restaurant.ID).First(&menu).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: menu %d is not offered by restaurant %d", ErrInvalidInput, it.MenuID, restaurant.ID)
				}
				return err
			}
			if !menu.Available {
				return fmt.Errorf("%w: menu %d is not available", ErrInvalidInput, menu.ID)
			}
			items = append(items, models.OrderItem{
				MenuID:    menu.ID,
				Name:      menu.Name,
				Quantity:  it.Quantity,
				Price:     menu.Price,
				Notes:     it.Notes,
				CreatedAt: now,
			})
		}

		order = models.Order{
			ClientID:        clientID,
			RestaurantID:    restaurant.ID,
			Restaurant:      restaurant,
			Status:          models.StatusPending,
			DeliveryAddress: address,
			OrderItems:      items,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		order.TotalAmount = order.ComputeTotal()

		return tx.Omit("Restaurant").Create(&order).Error
	})
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: checkout: %v", ErrStoreUnavailable, err)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":  order.ID,
		"client_id": clientID,
		"total":     order.TotalAmount,
	}).Info("order placed")
	return &order, nil
}

// Transition moves an order to a new status. The legality check and the write are
// bound together by conditioning the update on the status that was checked; a lost
// race reloads and re-checks. Exactly one event is published per applied transition.
func (s *OrderService) Transition(ctx context.Context, orderID uint, actor Actor, to models.OrderStatus) (*models.Order, error) {
	if _, ok := models.ParseOrderStatus(string(to)); !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}

	for attempt := 0; attempt < s.MaxAttempts; attempt++ {
		order, err := s.load(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if err := authorizeTransition(order, actor, to); err != nil {
			metrics.OrderTransitions.WithLabelValues(string(to), "rejected").Inc()
			return nil, err
		}

		from := order.Status
		now := s.now()
		applied := false
		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Order{}).
				Where("id = ? AND status = ?", order.ID, from).
				Updates(map[string]interface{}{"status": to, "updated_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			applied = true
			return tx.Create(&models.OrderStatusLog{
				OrderID:    order.ID,
				FromStatus: from,
				ToStatus:   to,
				ActorID:    actor.UserID,
				ActorRole:  actor.Role,
				CreatedAt:  now,
			}).Error
		})
		if err != nil {
			return nil, fmt.Errorf("%w: transition order %d: %v", ErrStoreUnavailable, orderID, err)
		}
		if !applied {
			utils.InfoLogger.WithFields(logrus.Fields{
				"order_id": orderID,
				"attempt":  attempt + 1,
			}).Warn("order changed underneath transition, retrying")
			continue
		}

		order.Status = to
		order.UpdatedAt = now
		metrics.OrderTransitions.WithLabelValues(string(to), "applied").Inc()
		utils.InfoLogger.WithFields(logrus.Fields{
			"order_id": order.ID,
			"from":     from,
			"to":       to,
			"actor_id": actor.UserID,
			"role":     actor.Role,
		}).Info("order status changed")

		// The change is committed; a caller hanging up must not stop its notifications.
		s.Publisher.Publish(context.WithoutCancel(ctx), *order, from, to)
		return order, nil
	}

	metrics.OrderTransitions.WithLabelValues(string(to), "conflict").Inc()
	return nil, ErrConcurrentUpdate
}

// Claim assigns a delivery partner with a single conditional write. Under concurrent
// claims exactly one caller wins; the rest get ErrAlreadyClaimed. Claiming an order you
// already hold returns it again without a new event.
func (s *OrderService) Claim(ctx context.Context, orderID uint, actor Actor) (*models.Order, error) {
	if actor.Role != models.RoleDelivery {
		return nil, ErrForbidden
	}

	now := s.now()
	var order models.Order
	claimed := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND delivery_partner_id IS NULL AND status IN ?", orderID, claimableStatuses).
			Updates(map[string]interface{}{
				"delivery_partner_id": actor.UserID,
				"assigned_at":         now,
				"updated_at":          now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		claimed = true

		if err := tx.Preload("Restaurant").Preload("OrderItems").First(&order, orderID).Error; err != nil {
			return err
		}
		return tx.Create(&models.OrderStatusLog{
			OrderID:    order.ID,
			FromStatus: order.Status,
			ToStatus:   order.Status,
			ActorID:    actor.UserID,
			ActorRole:  actor.Role,
			Note:       "claimed",
			CreatedAt:  now,
		}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%w: claim order %d: %v", ErrStoreUnavailable, orderID, err)
	}

	if claimed {
		metrics.DeliveryClaims.WithLabelValues("won").Inc()
		utils.InfoLogger.WithFields(logrus.Fields{
			"order_id":   order.ID,
			"partner_id": actor.UserID,
		}).Info("delivery claimed")
		s.Publisher.PublishAssigned(context.WithoutCancel(ctx), order)
		return &order, nil
	}

	current, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch {
	case !current.Status.IsClaimable():
		metrics.DeliveryClaims.WithLabelValues("not_claimable").Inc()
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderNotClaimable, orderID, current.Status)
	case current.DeliveryPartnerID != nil && *current.DeliveryPartnerID == actor.UserID:
		metrics.DeliveryClaims.WithLabelValues("repeat").Inc()
		return current, nil
	case current.DeliveryPartnerID != nil:
		metrics.DeliveryClaims.WithLabelValues("already_claimed").Inc()
		return nil, ErrAlreadyClaimed
	default:
		metrics.DeliveryClaims.WithLabelValues("not_claimable").Inc()
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderNotClaimable, orderID, current.Status)
	}
}

// AvailableOrders lists unassigned claimable orders, oldest first.
func (s *OrderService) AvailableOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).
		Preload("OrderItems").
		Where("delivery_partner_id IS NULL AND status IN ?", claimableStatuses).
		Order("created_at ASC").
		Limit(availableOrdersLimit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("%w: available orders: %v", ErrStoreUnavailable, err)
	}
	return orders, nil
}

// ListOrders returns the orders visible to the actor, newest first.
func (s *OrderService) ListOrders(ctx context.Context, actor Actor) ([]models.Order, error) {
	q := s.DB.WithContext(ctx).Preload("OrderItems").Order("created_at DESC")
	switch actor.Role {
	case models.RoleClient:
		q = q.Where("client_id = ?", actor.UserID)
	case models.RoleRestaurant:
		q = q.Where("restaurant_id IN (?)", s.DB.Model(&models.Restaurant{}).Select("id").Where("operator_id = ?", actor.UserID))
	case models.RoleDelivery:
		q = q.Where("delivery_partner_id = ?", actor.UserID)
	case models.RoleAdmin:
	default:
		return nil, ErrForbidden
	}

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("%w: list orders: %v", ErrStoreUnavailable, err)
	}
	return orders, nil
}

// GetOrder returns one order if the actor is a party to it. Delivery partners may
// also see orders that are open for claiming.
func (s *OrderService) GetOrder(ctx context.Context, orderID uint, actor Actor) (*models.Order, error) {
	if _, ok := models.ParseRole(string(actor.Role)); !ok {
		return nil, ErrForbidden
	}
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if isParty(actor, order) {
		return order, nil
	}
	if actor.Role == models.RoleDelivery && order.DeliveryPartnerID == nil && order.Status.IsClaimable() {
		return order, nil
	}
	return nil, ErrForbidden
}

// StatusHistory returns the audit trail of an order, oldest first.
func (s *OrderService) StatusHistory(ctx context.Context, orderID uint) ([]models.OrderStatusLog, error) {
	var logs []models.OrderStatusLog
	if err := s.DB.WithContext(ctx).Where("order_id = ?", orderID).Order("id ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("%w: status history: %v", ErrStoreUnavailable, err)
	}
	return logs, nil
}

func (s *OrderService) load(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).Preload("Restaurant").Preload("OrderItems").First(&order, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
		}
		return nil, fmt.Errorf("%w: load order %d: %v", ErrStoreUnavailable, orderID, err)
	}
	return &order, nil
}

func isDomainError(err error) bool {
	for _, target := range []error{
		ErrInvalidTransition, ErrAlreadyClaimed, ErrOrderNotClaimable, ErrUnauthorized,
		ErrTokenRevoked, ErrNotFound, ErrForbidden, ErrInvalidInput, ErrConcurrentUpdate,
		ErrStoreUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
