package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/food-delivery/database"
	"github.com/yeremiapane/food-delivery/models"
	"github.com/yeremiapane/food-delivery/utils"
)

func init() {
	utils.SilenceLoggers()
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory("svc_" + uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type fixture struct {
	db         *gorm.DB
	client     models.User
	operator   models.User
	partnerA   models.User
	partnerB   models.User
	admin      models.User
	restaurant models.Restaurant
	menu       models.Menu
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{db: db}

	mk := func(name string, role models.Role) models.User {
		u := models.User{Name: name, Email: name + "@example.com", Password: "x", Role: role}
		require.NoError(t, db.Create(&u).Error)
		return u
	}
	f.client = mk("client", models.RoleClient)
	f.operator = mk("operator", models.RoleRestaurant)
	f.partnerA = mk("partner-a", models.RoleDelivery)
	f.partnerB = mk("partner-b", models.RoleDelivery)
	f.admin = mk("admin", models.RoleAdmin)

	f.restaurant = models.Restaurant{Name: "Warung", OperatorID: f.operator.ID}
	require.NoError(t, db.Create(&f.restaurant).Error)
	f.menu = models.Menu{RestaurantID: f.restaurant.ID, Name: "Nasi Goreng", Price: 25000, Available: true}
	require.NoError(t, db.Create(&f.menu).Error)
	return f
}

func (f *fixture) actor(u models.User) Actor {
	return Actor{UserID: u.ID, Role: u.Role}
}

// insertOrder writes an order in any state directly, bypassing the state machine.
func (f *fixture) insertOrder(t *testing.T, status models.OrderStatus, partner *models.User) models.Order {
	t.Helper()
	now := time.Now()
	o := models.Order{
		ClientID:        f.client.ID,
		RestaurantID:    f.restaurant.ID,
		Status:          status,
		DeliveryAddress: "Jl. Sudirman 1",
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if partner != nil {
		id := partner.ID
		o.DeliveryPartnerID = &id
		o.AssignedAt = &now
	}
	require.NoError(t, f.db.Omit("Restaurant").Create(&o).Error)
	return o
}

func (f *fixture) statusOf(t *testing.T, orderID uint) models.OrderStatus {
	t.Helper()
	var o models.Order
	require.NoError(t, f.db.First(&o, orderID).Error)
	return o.Status
}

// recordingSubscriber captures published events.
type recordingSubscriber struct {
	mu     sync.Mutex
	events []OrderEvent
	err    error
}

func (r *recordingSubscriber) HandleOrderEvent(_ context.Context, ev OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingSubscriber) Events() []OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OrderEvent(nil), r.events...)
}

// recordingPusher captures live pushes.
type recordingPusher struct {
	mu     sync.Mutex
	pushes map[uint][]models.Notification
	err    error
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{pushes: make(map[uint][]models.Notification)}
}

func (p *recordingPusher) PushNotification(_ context.Context, recipientID uint, n models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushes[recipientID] = append(p.pushes[recipientID], n)
	return p.err
}

func (p *recordingPusher) For(userID uint) []models.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Notification(nil), p.pushes[userID]...)
}
