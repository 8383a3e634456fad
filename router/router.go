package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/yeremiapane/food-delivery/controllers"
	"github.com/yeremiapane/food-delivery/hub"
	"github.com/yeremiapane/food-delivery/middlewares"
	"github.com/yeremiapane/food-delivery/models"
	"github.com/yeremiapane/food-delivery/services"
	"github.com/yeremiapane/food-delivery/utils"
)

// Deps is everything the HTTP layer needs; main builds it once.
type Deps struct {
	DB            *gorm.DB
	Issuer        *utils.TokenIssuer
	Store         services.CredentialStore
	Orders        *services.OrderService
	Notifications *services.NotificationService
	Hub           *hub.Hub
	AllowedOrigin string
	LoginLimiter  *middlewares.RateLimiter
	ClaimLimiter  *middlewares.RateLimiter
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(d.AllowedOrigin))
	r.Use(middlewares.LoggerMiddleware())

	if d.LoginLimiter == nil {
		d.LoginLimiter = middlewares.NewStrictRateLimiter()
	}
	if d.ClaimLimiter == nil {
		d.ClaimLimiter = middlewares.NewRateLimiter(10, time.Second)
	}

	authn := services.NewSessionAuthenticator(d.Issuer, d.Store)

	authCtrl := controllers.NewAuthController(d.DB, d.Issuer, d.Store)
	orderCtrl := controllers.NewOrderController(d.Orders)
	notificationCtrl := controllers.NewNotificationController(d.Notifications)
	adminCtrl := controllers.NewAdminController(d.DB, d.Store)
	restaurantCtrl := controllers.NewRestaurantController(d.DB)
	liveCtrl := controllers.NewLiveController(d.Hub)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := r.Group("/")
	public.Use(d.LoginLimiter.RateLimit())
	{
		public.POST("/register", authCtrl.Register)
		public.POST("/login", authCtrl.Login)
	}

	// The live channel authenticates inside the socket, not with a header.
	r.GET("/ws/notifications", liveCtrl.LiveHandler)

	r.GET("/restaurants/:id/menus", restaurantCtrl.GetMenus)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/")
	auth.Use(middlewares.AuthMiddleware(authn))

	auth.POST("/logout", authCtrl.Logout)

	// RESTAURANTS (operators)
	operators := auth.Group("/restaurants")
	operators.Use(middlewares.RequireRoles(models.RoleRestaurant, models.RoleAdmin))
	{
		operators.POST("", restaurantCtrl.CreateRestaurant)
		operators.POST("/:id/menus", restaurantCtrl.CreateMenu)
	}

	// ORDERS
	auth.POST("/orders", middlewares.RequireRoles(models.RoleClient), orderCtrl.CreateOrder)
	auth.GET("/orders", orderCtrl.GetOrders)
	auth.GET("/orders/available", middlewares.RequireRoles(models.RoleDelivery), orderCtrl.GetAvailableOrders)
	auth.GET("/orders/:id", orderCtrl.GetOrderByID)
	auth.GET("/orders/:id/history", orderCtrl.GetOrderHistory)
	auth.PUT("/orders/:id/status", orderCtrl.UpdateOrderStatus)
	auth.POST("/orders/:id/assign",
		middlewares.RequireRoles(models.RoleDelivery),
		d.ClaimLimiter.RateLimitByUser(),
		orderCtrl.AssignOrder)

	// NOTIFICATIONS
	auth.GET("/notifications", notificationCtrl.GetNotifications)
	auth.GET("/notifications/pending", notificationCtrl.GetPending)
	auth.PUT("/notifications/read-all", notificationCtrl.MarkAllAsRead)
	auth.PUT("/notifications/:id/read", notificationCtrl.MarkAsRead)
	auth.DELETE("/notifications/clear", notificationCtrl.ClearNotifications)

	// ADMIN
	admin := auth.Group("/admin")
	admin.Use(middlewares.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/users", adminCtrl.ListUsers)
		admin.POST("/users", adminCtrl.CreateUser)
		admin.POST("/users/:id/revoke-sessions", adminCtrl.RevokeSessions)
		admin.GET("/orders/stats", adminCtrl.GetOrderStats)
	}

	return r
}
