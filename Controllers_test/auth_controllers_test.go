package Controllers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/food-delivery/middlewares"
	"github.com/yeremiapane/food-delivery/models"
)

func TestRegister(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.do(http.MethodPost, "/register", "", map[string]string{
		"name": "Budi", "email": "Budi@Example.com", "password": testPassword,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		UserID uint        `json:"user_id"`
		Role   models.Role `json:"role"`
	}
	decode(t, w, &created)
	assert.Equal(t, models.RoleClient, created.Role)

	w = app.do(http.MethodPost, "/register", "", map[string]string{
		"name": "Budi", "email": "budi@example.com", "password": testPassword,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = app.do(http.MethodPost, "/register", "", map[string]string{
		"name": "Eve", "email": "eve@example.com", "password": testPassword, "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(http.MethodPost, "/register", "", map[string]string{
		"name": "Rider", "email": "rider@example.com", "password": testPassword, "role": "delivery",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// The lowered email logs in.
	w = app.do(http.MethodPost, "/login", "", map[string]string{"email": "budi@example.com", "password": testPassword})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	app := newTestApp(t, nil)
	u := app.seedUser("sari", models.RoleClient)

	w := app.do(http.MethodPost, "/login", "", map[string]string{"email": u.Email, "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = app.do(http.MethodPost, "/login", "", map[string]string{"email": "nobody@example.com", "password": testPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSecondLoginRevokesFirst(t *testing.T) {
	app := newTestApp(t, nil)
	u := app.seedUser("dewi", models.RoleClient)

	first := app.login(u)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/orders", first, nil).Code)

	second := app.login(u)
	w := app.do(http.MethodGet, "/orders", first, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token_revoked", decode(t, w, nil).Code)

	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/orders", second, nil).Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	app := newTestApp(t, nil)
	u := app.seedUser("agus", models.RoleDelivery)
	token := app.login(u)

	require.Equal(t, http.StatusOK, app.do(http.MethodPost, "/logout", token, nil).Code)

	w := app.do(http.MethodGet, "/notifications", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token_revoked", decode(t, w, nil).Code)

	// Signing in again works.
	token = app.login(u)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/notifications", token, nil).Code)
}

func TestMissingOrMalformedToken(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.do(http.MethodGet, "/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = app.do(http.MethodGet, "/orders", "abc.def.ghi", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decode(t, w, nil).Code)
}

func TestLoginRateLimited(t *testing.T) {
	app := newTestApp(t, middlewares.NewRateLimiter(2, time.Minute))
	u := app.seedUser("tono", models.RoleClient)

	for i := 0; i < 2; i++ {
		w := app.do(http.MethodPost, "/login", "", map[string]string{"email": u.Email, "password": "nope-nope"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := app.do(http.MethodPost, "/login", "", map[string]string{"email": u.Email, "password": testPassword})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
