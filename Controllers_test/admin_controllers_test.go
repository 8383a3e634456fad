package Controllers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/food-delivery/models"
)

func TestAdminRevokeSessions(t *testing.T) {
	app := newTestApp(t, nil)
	admin := app.seedUser("root", models.RoleAdmin)
	rider := app.seedUser("rider", models.RoleDelivery)
	adminToken := app.login(admin)
	riderToken := app.login(rider)

	require.Equal(t, http.StatusOK, app.do(http.MethodGet, "/notifications", riderToken, nil).Code)

	// Non-admins cannot revoke.
	w := app.do(http.MethodPost, fmt.Sprintf("/admin/users/%d/revoke-sessions", admin.ID), riderToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodPost, fmt.Sprintf("/admin/users/%d/revoke-sessions", rider.ID), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(http.MethodGet, "/notifications", riderToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token_revoked", decode(t, w, nil).Code)

	w = app.do(http.MethodPost, "/admin/users/9999/revoke-sessions", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminUsersAndStats(t *testing.T) {
	app := newTestApp(t, nil)
	admin := app.seedUser("root", models.RoleAdmin)
	token := app.login(admin)

	w := app.do(http.MethodPost, "/admin/users", token, map[string]string{
		"name": "Second Admin", "email": "admin2@example.com", "password": testPassword, "role": "admin",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = app.do(http.MethodGet, "/admin/users?role=admin", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var admins []models.User
	decode(t, w, &admins)
	assert.Len(t, admins, 2)

	w = app.do(http.MethodGet, "/admin/users?role=pilot", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	client := app.seedUser("client", models.RoleClient)
	operator := app.seedUser("operator", models.RoleRestaurant)
	restaurant, menu := app.seedRestaurant(operator)
	clientToken := app.login(client)
	for i := 0; i < 2; i++ {
		w = app.do(http.MethodPost, "/orders", clientToken, map[string]interface{}{
			"restaurant_id":    restaurant.ID,
			"delivery_address": "Jl. Asia Afrika 8",
			"items":            []map[string]interface{}{{"menu_id": menu.ID, "quantity": 1}},
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w = app.do(http.MethodGet, "/admin/orders/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]int64
	decode(t, w, &stats)
	assert.Equal(t, int64(2), stats["pending"])
	assert.Equal(t, int64(0), stats["delivered"])
}

func TestRestaurantMenus(t *testing.T) {
	app := newTestApp(t, nil)
	operator := app.seedUser("operator", models.RoleRestaurant)
	other := app.seedUser("other", models.RoleRestaurant)
	token := app.login(operator)
	otherToken := app.login(other)

	w := app.do(http.MethodPost, "/restaurants", token, map[string]string{"name": "Sate Pak Kumis"})
	require.Equal(t, http.StatusCreated, w.Code)
	var restaurant models.Restaurant
	decode(t, w, &restaurant)
	assert.Equal(t, operator.ID, restaurant.OperatorID)

	path := fmt.Sprintf("/restaurants/%d/menus", restaurant.ID)
	w = app.do(http.MethodPost, path, otherToken, map[string]interface{}{"name": "Sate", "price": 20000})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodPost, path, token, map[string]interface{}{"name": "Sate", "price": 20000, "available": false})
	require.Equal(t, http.StatusCreated, w.Code)

	w = app.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var menus []models.Menu
	decode(t, w, &menus)
	require.Len(t, menus, 1)
	assert.False(t, menus[0].Available)
}
