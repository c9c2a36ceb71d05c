package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"  // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9" // Redis client handed to the rate limiter

	"github.com/ridehub/bus-booking/internal/config"
	"github.com/ridehub/bus-booking/internal/handler"
	"github.com/ridehub/bus-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring probe this endpoint to verify that the
	// service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterBooking registers the booking endpoints under /v1.  Every route
// requires a valid access token; the token bucket additionally guards
// creation, which is the only route that can pin seat inventory.  The
// Redis client may be nil, in which case the limiter is a pass-through.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, rl config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1")
	// Apply the JWTAuth middleware to the protected group using the provided secret.
	g.Use(middleware.JWTAuth(jwtSecret))

	// Booking creation is rate limited per user and route so one caller
	// cannot hold a schedule hostage by spamming seat holds.
	g.POST("/bookings", b.Create, middleware.NewTokenBucket(rl, rdb))

	// Read and lifecycle endpoints for a single booking.
	g.GET("/bookings/:id", b.Get)
	g.POST("/bookings/:id/checkin", b.CheckIn)
	g.POST("/bookings/:id/cancel", b.Cancel)
	g.GET("/bookings/:id/qr", b.QR)
}
