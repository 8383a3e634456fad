package Controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yeremiapane/food-delivery/database"
	"github.com/yeremiapane/food-delivery/hub"
	"github.com/yeremiapane/food-delivery/middlewares"
	"github.com/yeremiapane/food-delivery/models"
	"github.com/yeremiapane/food-delivery/router"
	"github.com/yeremiapane/food-delivery/services"
	"github.com/yeremiapane/food-delivery/utils"
)

const testPassword = "password123"

func init() {
	gin.SetMode(gin.TestMode)
	utils.SilenceLoggers()
}

type testApp struct {
	t             *testing.T
	db            *gorm.DB
	router        *gin.Engine
	store         *services.SQLCredentialStore
	notifications *services.NotificationService
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func newTestApp(t *testing.T, loginLimiter *middlewares.RateLimiter) *testApp {
	t.Helper()
	db, err := database.OpenInMemory("ctrl_" + uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	issuer := utils.NewTokenIssuer([]byte("test-secret"), time.Hour)
	store := services.NewSQLCredentialStore(db)
	liveHub := hub.New(services.NewSessionAuthenticator(issuer, store), hub.Options{})

	notifications := services.NewNotificationService(db, liveHub)
	publisher := services.NewStatusEventPublisher()
	publisher.Subscribe("notifications", notifications)

	if loginLimiter == nil {
		loginLimiter = middlewares.NewRateLimiter(1000, time.Second)
	}
	r := router.SetupRouter(router.Deps{
		DB:            db,
		Issuer:        issuer,
		Store:         store,
		Orders:        services.NewOrderService(db, publisher),
		Notifications: notifications,
		Hub:           liveHub,
		AllowedOrigin: "*",
		LoginLimiter:  loginLimiter,
		ClaimLimiter:  middlewares.NewRateLimiter(1000, time.Second),
	})
	return &testApp{t: t, db: db, router: r, store: store, notifications: notifications}
}

func (a *testApp) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) seedUser(name string, role models.Role) models.User {
	a.t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(a.t, err)
	u := models.User{Name: name, Email: name + "@example.com", Password: string(hashed), Role: role}
	require.NoError(a.t, a.db.Create(&u).Error)
	return u
}

func (a *testApp) login(u models.User) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/login", "", map[string]string{"email": u.Email, "password": testPassword})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var data struct {
		Token string `json:"token"`
	}
	decode(a.t, w, &data)
	require.NotEmpty(a.t, data.Token)
	return data.Token
}

// seedRestaurant creates a restaurant with one available menu item for the operator.
func (a *testApp) seedRestaurant(operator models.User) (models.Restaurant, models.Menu) {
	a.t.Helper()
	restaurant := models.Restaurant{Name: "Warung " + operator.Name, OperatorID: operator.ID}
	require.NoError(a.t, a.db.Create(&restaurant).Error)
	menu := models.Menu{RestaurantID: restaurant.ID, Name: "Mie Ayam", Price: 18000, Available: true}
	require.NoError(a.t, a.db.Create(&menu).Error)
	return restaurant, menu
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}
