package api

import (
	"net/http"

	"laundry-pickup/internal/api/middleware"
	"laundry-pickup/internal/auth"
	"laundry-pickup/internal/modules/admin"
	"laundry-pickup/internal/modules/catalog"
	"laundry-pickup/internal/modules/coupons"
	"laundry-pickup/internal/modules/logistics"
	"laundry-pickup/internal/modules/orders"
	"laundry-pickup/internal/modules/payments"
	"laundry-pickup/internal/modules/realtime"
	"laundry-pickup/internal/modules/users"

	"github.com/labstack/echo/v4"
)

// Handlers bundles every module's HTTP handler.
type Handlers struct {
	Users    *users.Handler
	Orders   *orders.Handler
	Coupons  *coupons.Handler
	Catalog  *catalog.Handler
	Shifts   *logistics.ShiftHandler
	Geo      *logistics.GeoHandler
	Payments *payments.Handler
	Feed     *realtime.Handler
	Reports  *admin.Handler
}

// SetupRoutes sets up all the API endpoints for the application.
func SetupRoutes(e *echo.Echo, h Handlers, roles middleware.RoleLookup, jwtSecret string) {
	// Token check first, then the session with the role as stored right now.
	authMiddleware := []echo.MiddlewareFunc{middleware.JWTMAuth(jwtSecret), middleware.LoadSession(roles)}
	driverRequired := middleware.RequireRoles(auth.RoleDriver)
	adminRequired := middleware.RequireRoles(auth.RoleAdmin)

	// --- Public Routes ---
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Welcome to Laundry Pickup!"})
	})

	authGroup := e.Group("/auth")
	{
		authGroup.POST("/signup", h.Users.Signup)
		authGroup.POST("/login", h.Users.Login)
		authGroup.GET("/google/login", h.Users.GoogleLogin)
		authGroup.GET("/google/callback", h.Users.GoogleCallback)
	}

	e.GET("/catalog", h.Catalog.List)
	e.GET("/slots", h.Orders.ListSlots)
	e.GET("/slots/return-estimate", h.Orders.ReturnEstimate)
	e.POST("/coupons/validate", h.Coupons.ValidateCoupon)
	e.POST("/payments/webhook", h.Payments.Webhook)

	// The feed authenticates with ?token= itself.
	e.GET("/ws/orders", h.Feed.ServeOrders)

	// --- Customer Routes ---
	profileGroup := e.Group("/profile", authMiddleware...)
	{
		profileGroup.GET("", h.Users.GetProfile)
		profileGroup.PATCH("", h.Users.UpdateProfile)
		profileGroup.DELETE("", h.Users.DeleteMe)
	}

	geoGroup := e.Group("/geo", authMiddleware...)
	logistics.RegisterGeoRoutes(geoGroup, h.Geo)

	orderGroup := e.Group("/orders", authMiddleware...)
	{
		orderGroup.POST("/quote", h.Orders.Quote)
		orderGroup.POST("", h.Orders.CreateOrder)
		orderGroup.GET("", h.Orders.ListMyOrders)
		orderGroup.GET("/:orderId", h.Orders.GetOrder)
		orderGroup.GET("/:orderId/history", h.Orders.History)
		orderGroup.POST("/:orderId/cancel", h.Orders.CancelOrder)
		orderGroup.POST("/:orderId/payment-session", h.Payments.CreateSession)
	}

	// --- Driver Routes ---
	driverGroup := e.Group("/driver", append(authMiddleware, driverRequired)...)
	{
		driverGroup.GET("/orders/pool", h.Orders.ListPool)
		driverGroup.GET("/orders", h.Orders.ListAssignments)
		driverGroup.POST("/orders/:orderId/accept", h.Orders.Accept)
		driverGroup.POST("/orders/:orderId/reject", h.Orders.Reject)
		driverGroup.POST("/orders/:orderId/advance", h.Orders.Advance)
		driverGroup.PATCH("/orders/:orderId/schedule", h.Orders.Reschedule)
		logistics.RegisterShiftRoutes(driverGroup, h.Shifts)
	}

	// --- Admin Routes ---
	adminGroup := e.Group("/admin", append(authMiddleware, adminRequired)...)
	{
		// Order Management
		adminGroup.GET("/orders", h.Orders.ListAllOrders)
		adminGroup.GET("/orders/:orderId", h.Orders.GetOrder)
		adminGroup.PATCH("/orders/:orderId/status", h.Orders.UpdateStatus)
		adminGroup.POST("/orders/:orderId/override", h.Orders.Override)
		adminGroup.PUT("/orders/:orderId/driver", h.Orders.AssignDriver)
		adminGroup.PATCH("/orders/:orderId/schedule", h.Orders.Reschedule)

		// User Management
		adminGroup.GET("/users", h.Users.ListUsers)
		adminGroup.PATCH("/users/:userId/role", h.Users.SetRole)
		adminGroup.DELETE("/users/:userId", h.Users.DeleteUser)

		// Coupons
		adminGroup.GET("/coupons", h.Coupons.List)
		adminGroup.POST("/coupons", h.Coupons.Create)
		adminGroup.GET("/coupons/:couponId", h.Coupons.Get)
		adminGroup.PUT("/coupons/:couponId", h.Coupons.Update)
		adminGroup.DELETE("/coupons/:couponId", h.Coupons.Delete)

		adminGroup.GET("/reports/summary", h.Reports.Summary)
	}
}
